package middleware

import (
	"net/http"
	"strings"
)

// NewCORSMiddleware はCORSミドルウェアを返す。
// allowedOriginsはカンマ区切りのオリジン一覧で、"*" を含む場合は全オリジンを許可しcredentialsは許可しない。
// 一覧指定の場合はリクエストのOriginが一致したときのみ、そのOriginを許可する。
// OPTIONSプリフライトリクエストには許可の有無にかかわらず204で応答する。
func NewCORSMiddleware(allowedOrigins string) func(next http.Handler) http.Handler {
	policy := parseOriginPolicy(allowedOrigins)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			if !policy.wildcard {
				h.Add("Vary", "Origin")
			}

			if origin, ok := policy.allow(r.Header.Get("Origin")); ok {
				h.Set("Access-Control-Allow-Origin", origin)
				h.Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
				h.Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
				if !policy.wildcard {
					h.Set("Access-Control-Allow-Credentials", "true")
				}
				h.Set("Access-Control-Max-Age", "86400")
			}

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

type originPolicy struct {
	wildcard bool
	origins  []string
}

func parseOriginPolicy(s string) originPolicy {
	var p originPolicy
	for _, o := range strings.Split(s, ",") {
		o = strings.TrimRight(strings.TrimSpace(o), "/")
		switch o {
		case "":
		case "*":
			p.wildcard = true
		default:
			p.origins = append(p.origins, o)
		}
	}
	return p
}

// allow は応答に設定するAccess-Control-Allow-Originの値を返す。
// Originヘッダーのない要求（curlや同一オリジン）には、単一オリジン指定の場合のみその値を返す。
func (p originPolicy) allow(origin string) (string, bool) {
	if p.wildcard {
		return "*", true
	}
	if origin == "" {
		if len(p.origins) == 1 {
			return p.origins[0], true
		}
		return "", false
	}
	for _, o := range p.origins {
		if o == origin {
			return origin, true
		}
	}
	return "", false
}
