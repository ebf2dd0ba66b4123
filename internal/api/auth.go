package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/BTreeMap/NutriPipe/internal/models"
	"github.com/golang-jwt/jwt/v5"
)

type contextKey string

// SubjectContextKey holds the authenticated token subject.
const SubjectContextKey = contextKey("subject")

// tokenIssuer is the iss claim minted and required by the admin API.
const tokenIssuer = "nutripipe"

// BearerAuth validates HS256 tokens minted by MintToken. An empty secret
// disables the check.
func BearerAuth(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if secret == "" {
				next.ServeHTTP(w, r)
				return
			}
			if r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}

			authHeader := r.Header.Get("Authorization")
			tokenString := strings.TrimPrefix(authHeader, "Bearer ")
			if authHeader == "" || tokenString == authHeader {
				writeJSONResponse(w, http.StatusUnauthorized, models.Error("Bearer token required"))
				return
			}

			token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
				if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
				}
				return []byte(secret), nil
			}, jwt.WithIssuer(tokenIssuer), jwt.WithExpirationRequired())
			if err != nil || !token.Valid {
				slog.Warn("BearerAuth rejected token", "error", err, "path", r.URL.Path)
				writeJSONResponse(w, http.StatusUnauthorized, models.Error("Invalid token"))
				return
			}

			sub, _ := token.Claims.GetSubject()
			ctx := context.WithValue(r.Context(), SubjectContextKey, sub)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// MintToken signs an admin token for subject valid for ttl.
func MintToken(secret, subject string, ttl time.Duration) (string, error) {
	if secret == "" {
		return "", fmt.Errorf("cannot mint token: API_JWT_SECRET is empty")
	}
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Issuer:    tokenIssuer,
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// SubjectFromContext returns the token subject set by BearerAuth.
func SubjectFromContext(ctx context.Context) (string, bool) {
	sub, ok := ctx.Value(SubjectContextKey).(string)
	return sub, ok
}
