package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"giftletter/pkg/logger"

	"github.com/golang-jwt/jwt/v5"
)

type contextKey string

const GiftIDKey contextKey = "giftID"

var ErrWrongGift = errors.New("token was issued for another gift")

// IssueToken signs an editor token for giftID. A zero ttl never expires.
func IssueToken(secret []byte, giftID string, ttl time.Duration) (string, error) {
	if len(secret) == 0 {
		return "", errors.New("server is not configured to sign tokens")
	}
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:  giftID,
		IssuedAt: jwt.NewNumericDate(now),
	}
	if ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

// TokenIssuer binds IssueToken to a secret.
func TokenIssuer(secret []byte) func(giftID string) (string, error) {
	return func(giftID string) (string, error) {
		return IssueToken(secret, giftID, 0)
	}
}

// ParseToken validates an editor token and returns the gift it grants.
func ParseToken(secret []byte, tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		if len(secret) == 0 {
			return nil, fmt.Errorf("server is not configured to validate JWTs")
		}
		return secret, nil
	})
	if err != nil || !token.Valid {
		return "", fmt.Errorf("invalid token: %w", err)
	}
	giftID, err := token.Claims.GetSubject()
	if err != nil || giftID == "" {
		return "", errors.New("gift id (sub) claim is missing or invalid")
	}
	return giftID, nil
}

// AuthMiddleware only lets through requests carrying an editor token for the
// gift they address: the {id} path value, or the giftId query parameter on
// the socket endpoint.
func AuthMiddleware(secret []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Browsers cannot set headers on a WebSocket handshake.
			tokenString := r.URL.Query().Get("token")
			if tokenString == "" {
				authHeader := r.Header.Get("Authorization")
				tokenString = strings.TrimPrefix(authHeader, "Bearer ")
			}
			if tokenString == "" {
				http.Error(w, "Unauthorized: No token provided", http.StatusUnauthorized)
				return
			}

			giftID, err := ParseToken(secret, tokenString)
			if err != nil {
				logger.Sugar.Warnf("Invalid token: %v", err)
				http.Error(w, "Unauthorized: Invalid or expired token", http.StatusUnauthorized)
				return
			}

			target := r.PathValue("id")
			if target == "" {
				target = r.URL.Query().Get("giftId")
			}
			if target != giftID {
				logger.Sugar.Warnf("Token for gift %s used on gift %q", giftID, target)
				http.Error(w, "Forbidden: "+ErrWrongGift.Error(), http.StatusForbidden)
				return
			}

			ctx := context.WithValue(r.Context(), GiftIDKey, giftID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
