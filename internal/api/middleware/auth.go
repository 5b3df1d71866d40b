package middleware

import (
	"net/http"
	"strings"

	"perpbot/pkg/crypto"
)

// OperatorAuth защищает операторские endpoint'ы (halt/reset).
//
// Токен передается в заголовке Authorization: Bearer <token> и
// сверяется с bcrypt-хешем из конфигурации. Пустой хеш означает,
// что операторские команды выключены (403 на любой запрос).
//
// bcrypt сам по себе устойчив к timing-атакам, отдельное
// constant-time сравнение не требуется.
func OperatorAuth(tokenHash string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if tokenHash == "" {
				http.Error(w, "Operator endpoints disabled. Set OPERATOR_TOKEN_HASH.", http.StatusForbidden)
				return
			}

			token := bearerToken(r)
			if token == "" {
				w.Header().Set("WWW-Authenticate", `Bearer realm="Operator commands"`)
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			if !crypto.CheckTokenMatch(token, tokenHash) {
				w.Header().Set("WWW-Authenticate", `Bearer realm="Operator commands"`)
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
