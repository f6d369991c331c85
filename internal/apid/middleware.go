package apid

import (
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/vaultbox/emts/internal/logging"
)

// bearerAuth validates a HS256 JWT signed with the single shared service
// secret, standing in for the OAuth/TOTP account system spec.md excludes.
// There are no user claims to check beyond signature and expiry: any
// holder of a validly signed token is the API collaborator itself.
func bearerAuth(secret []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			parts := strings.SplitN(header, " ", 2)
			if len(parts) != 2 || parts[0] != "Bearer" {
				respondError(w, http.StatusUnauthorized, "missing bearer token")
				return
			}

			token, err := jwt.Parse(parts[1], func(t *jwt.Token) (interface{}, error) {
				if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
					return nil, jwt.ErrSignatureInvalid
				}
				return secret, nil
			}, jwt.WithValidMethods([]string{"HS256"}))
			if err != nil || !token.Valid {
				logging.WarnLog("apid: bearer auth rejected: %v", err)
				respondError(w, http.StatusUnauthorized, "invalid or expired token")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
