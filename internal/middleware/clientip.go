package middleware

import (
	"net"
	"net/http"
	"strings"
)

// ClientIP はリクエスト元のIPアドレスを返す。
// リバースプロキシ経由の場合はX-Forwarded-Forの先頭エントリを使用し、
// 無ければRemoteAddrからポートを除いて返す。
func ClientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		parts := strings.Split(forwarded, ",")
		ip := strings.TrimSpace(parts[0])
		if ip != "" {
			return ip
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
