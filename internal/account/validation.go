package account

import (
	"net/mail"
	"unicode/utf8"

	"github.com/tomerbro/saas-starter/internal/model"
)

const (
	passwordMinLength = 8
	passwordMaxLength = 100
	nameMaxLength     = 100
	emailMaxLength    = 255
)

// validateEmail はメールアドレスの形式と長さを検証する。
// 外部サービス呼び出し前のローカル検証として使用する。
func validateEmail(email string) error {
	if email == "" {
		return model.NewValidationError("メールアドレスを入力してください。")
	}
	if len(email) > emailMaxLength {
		return model.NewValidationError("メールアドレスは255文字以内で入力してください。")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return model.NewValidationError("メールアドレスの形式が正しくありません。")
	}
	return nil
}

// validatePassword はパスワードの長さを検証する。
func validatePassword(password string) error {
	if len(password) < passwordMinLength {
		return model.NewValidationError("パスワードは8文字以上で入力してください。")
	}
	if len(password) > passwordMaxLength {
		return model.NewValidationError("パスワードは100文字以内で入力してください。")
	}
	return nil
}

// validateName は表示名の必須・長さを検証する。
func validateName(name string) error {
	if name == "" {
		return model.NewValidationError("名前を入力してください。")
	}
	if utf8.RuneCountInString(name) > nameMaxLength {
		return model.NewValidationError("名前は100文字以内で入力してください。")
	}
	return nil
}
