package middleware

import (
	"net/http"
	"strings"
)

// corsPolicy は許可オリジンの集合。"*"を含む場合は全オリジンを許可する。
type corsPolicy struct {
	origins  map[string]struct{}
	allowAny bool
}

func parseCORSOrigins(allowedOrigins string) corsPolicy {
	p := corsPolicy{origins: make(map[string]struct{})}
	for _, o := range strings.Split(allowedOrigins, ",") {
		o = strings.TrimRight(strings.TrimSpace(o), "/")
		switch o {
		case "":
		case "*":
			p.allowAny = true
		default:
			p.origins[strings.ToLower(o)] = struct{}{}
		}
	}
	return p
}

// allowOrigin はレスポンスに返すAccess-Control-Allow-Originの値を返す。
// 許可しない場合は空文字。
func (p corsPolicy) allowOrigin(origin string) string {
	if origin == "" {
		return ""
	}
	if p.allowAny {
		return "*"
	}
	if _, ok := p.origins[strings.ToLower(origin)]; ok {
		return origin
	}
	return ""
}

// NewCORSMiddleware はカンマ区切りで指定されたオリジンに対するCORSミドルウェアを返す。
// 一致したOriginをそのまま返し、一致しないOriginにはCORSヘッダーを付与しない。
// 認証はBearerトークンで行うため、Allow-Credentialsは送らない。
// OPTIONSプリフライトは後続に渡さず204で応答する。
func NewCORSMiddleware(allowedOrigins string) func(next http.Handler) http.Handler {
	policy := parseCORSOrigins(allowedOrigins)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			h.Add("Vary", "Origin")

			if allowed := policy.allowOrigin(r.Header.Get("Origin")); allowed != "" {
				h.Set("Access-Control-Allow-Origin", allowed)
				h.Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
				h.Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
				h.Set("Access-Control-Expose-Headers", "Retry-After")
				h.Set("Access-Control-Max-Age", "86400")
			}

			if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
