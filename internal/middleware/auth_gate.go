package middleware

import (
	"net/http"
	"strings"

	"github.com/hitoshi/slotkeeper/internal/model"
)

// TokenVerifier はログイントークンを検証する。
// auth.Serviceの部分集合として定義する。
type TokenVerifier interface {
	VerifyToken(token string) error
}

// NewAuthGateMiddleware は書き込み系メソッドにBearerトークンを要求するミドルウェアを返す。
// GET、HEAD、OPTIONSは検証せずに通す。
// トークンがない、または無効な場合は401 invalid_credentialsを返す。
func NewAuthGateMiddleware(verifier TokenVerifier) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet, http.MethodHead, http.MethodOptions:
				next.ServeHTTP(w, r)
				return
			}

			token := bearerToken(r)
			if token == "" {
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewInvalidCredentialsError())
				return
			}
			if err := verifier.VerifyToken(token); err != nil {
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewInvalidCredentialsError())
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(h) <= len(prefix) || !strings.EqualFold(h[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(h[len(prefix):])
}
