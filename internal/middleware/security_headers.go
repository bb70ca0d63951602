package middleware

import (
	"net/http"
	"strings"
)

// hstsValue はHTTPS経由のリクエストに付与するStrict-Transport-Securityの値。
const hstsValue = "max-age=63072000; includeSubDomains"

// NewSecurityHeadersMiddleware はJSON APIとしての防御ヘッダーを付与するミドルウェアを返す。
// HSTSはTLS終端（直接またはX-Forwarded-Proto）経由の場合のみ付与する。
// Authorization付きのリクエストは利用者ごとの応答になるため、共有キャッシュに残さない。
func NewSecurityHeadersMiddleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("X-Frame-Options", "DENY")
			h.Set("Referrer-Policy", "no-referrer")
			h.Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
			if isHTTPS(r) {
				h.Set("Strict-Transport-Security", hstsValue)
			}
			if r.Header.Get("Authorization") != "" {
				h.Set("Cache-Control", "no-store")
			}
			next.ServeHTTP(w, r)
		})
	}
}

func isHTTPS(r *http.Request) bool {
	if r.TLS != nil {
		return true
	}
	return strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https")
}
