package security

import (
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// NameSanitizerService はユーザー入力テキストのサニタイズ機能のインターフェースを定義する。
// 表示名はフォーム入力とOAuthプロバイダーのメタデータの両方から来るため、
// プロフィール保存前に必ずサニタイズする。
type NameSanitizerService interface {
	// Sanitize はテキストからHTMLタグをすべて除去し、前後の空白を削除して返す。
	// 許可リストは空（StrictPolicy）で、script等のタグは内容ごと除去される。
	// 同一入力に対して常に同一出力を返す（冪等）。
	Sanitize(raw string) string
}

// nameSanitizer はNameSanitizerServiceの実装。
// bluemondayのポリシーを保持し、スレッドセーフにサニタイズ処理を行う。
type nameSanitizer struct {
	policy *bluemonday.Policy
}

// NewNameSanitizer はNameSanitizerServiceの新しいインスタンスを生成する。
// 表示名はプレーンテキストとして扱うため、タグを一切許可しない
// StrictPolicyを使用する。
func NewNameSanitizer() *nameSanitizer {
	return &nameSanitizer{
		policy: bluemonday.StrictPolicy(),
	}
}

// Sanitize はテキストからHTMLタグをすべて除去して返す。
func (s *nameSanitizer) Sanitize(raw string) string {
	return strings.TrimSpace(s.policy.Sanitize(raw))
}

// compile-time interface check
var _ NameSanitizerService = (*nameSanitizer)(nil)
