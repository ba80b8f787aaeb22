package security

import "testing"

// 表示名サニタイズの挙動を検証
func TestNameSanitizer_Sanitize(t *testing.T) {
	sanitizer := NewNameSanitizer()

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"プレーンテキストはそのまま", "Taro Yamada", "Taro Yamada"},
		{"空文字列は空のまま", "", ""},
		{"scriptタグは内容ごと除去", `<script>alert("xss")</script>Taro`, "Taro"},
		{"HTMLタグ除去", "<b>Taro</b> <i>Yamada</i>", "Taro Yamada"},
		{"imgタグ除去", `Taro<img src="x" onerror="alert(1)">`, "Taro"},
		{"前後の空白除去", "  Taro  ", "Taro"},
		{"日本語名はそのまま", "山田 太郎", "山田 太郎"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := sanitizer.Sanitize(tt.input); got != tt.want {
				t.Errorf("Sanitize(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

// 冪等性: サニタイズ済みの出力を再度サニタイズしても変化しないことを検証
func TestNameSanitizer_Idempotent(t *testing.T) {
	sanitizer := NewNameSanitizer()

	input := `<div>Taro</div> <script>x</script>Yamada`
	once := sanitizer.Sanitize(input)
	twice := sanitizer.Sanitize(once)
	if once != twice {
		t.Errorf("not idempotent: first=%q second=%q", once, twice)
	}
}
