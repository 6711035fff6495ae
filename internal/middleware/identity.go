package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v4"
	"github.com/rs/zerolog"
)

const bearerPrefix = "bearer "

type ownerIDKey struct{}

// OwnerID returns the authenticated owner of the request, or "" when anonymous.
func OwnerID(ctx context.Context) string {
	id, _ := ctx.Value(ownerIDKey{}).(string)
	return id
}

// WithOwnerID stores the authenticated owner in ctx.
func WithOwnerID(ctx context.Context, ownerID string) context.Context {
	return context.WithValue(ctx, ownerIDKey{}, ownerID)
}

// Identity verifies an HS256 bearer token and exposes its subject as the
// owner id. Requests without a valid token continue anonymously; handlers
// decide whether that is acceptable.
func Identity(secret []byte, issuer string, logger zerolog.Logger) func(http.Handler) http.Handler {
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := bearerToken(r)
			if raw == "" {
				next.ServeHTTP(w, r)
				return
			}

			subject, err := verify(parser, raw, secret, issuer)
			if err != nil {
				logger.Debug().
					Err(err).
					Str("path", r.URL.Path).
					Str("correlation_id", CorrelationID(r.Context())).
					Msg("ignoring invalid bearer token")
				next.ServeHTTP(w, r)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithOwnerID(r.Context(), subject)))
		})
	}
}

func bearerToken(r *http.Request) string {
	h := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(h) <= len(bearerPrefix) || !strings.EqualFold(h[:len(bearerPrefix)], bearerPrefix) {
		return ""
	}
	return strings.TrimSpace(h[len(bearerPrefix):])
}

func verify(parser *jwt.Parser, raw string, secret []byte, issuer string) (string, error) {
	var claims jwt.RegisteredClaims
	token, err := parser.ParseWithClaims(raw, &claims, func(t *jwt.Token) (interface{}, error) {
		return secret, nil
	})
	if err != nil {
		return "", err
	}
	if !token.Valid {
		return "", errors.New("token is not valid")
	}
	if issuer != "" && !claims.VerifyIssuer(issuer, true) {
		return "", errors.New("unexpected token issuer")
	}

	subject := strings.TrimSpace(claims.Subject)
	if subject == "" {
		return "", errors.New("token has no subject")
	}
	return subject, nil
}
