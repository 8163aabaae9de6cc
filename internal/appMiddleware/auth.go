package appMiddleware

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v4"

	"VolunteerHub/server/internal/models"
)

type ctxKey string

const actorKey ctxKey = "actor"

// ActorFromContext returns the authenticated caller placed by Auth.
func ActorFromContext(ctx context.Context) (models.Actor, bool) {
	actor, ok := ctx.Value(actorKey).(models.Actor)
	return actor, ok
}

// WithActor attaches an actor to the context. Exposed for handler tests.
func WithActor(ctx context.Context, actor models.Actor) context.Context {
	return context.WithValue(ctx, actorKey, actor)
}

// ParseToken validates an HS256 token and extracts the caller identity.
func ParseToken(tokenStr string, secret []byte) (models.Actor, string, error) {
	token, err := jwt.Parse(tokenStr, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		return secret, nil
	})
	if err != nil || !token.Valid {
		return models.Actor{}, "", errors.New("invalid token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || claims["user_id"] == nil || claims["role"] == nil {
		return models.Actor{}, "", errors.New("invalid claims")
	}

	userID, ok := claims["user_id"].(float64)
	if !ok {
		return models.Actor{}, "", errors.New("invalid claims")
	}
	roleStr, ok := claims["role"].(string)
	if !ok {
		return models.Actor{}, "", errors.New("invalid claims")
	}
	username, _ := claims["username"].(string)

	actor := models.Actor{Role: models.Role(roleStr), ID: int(userID)}
	if !actor.Role.Valid() {
		return models.Actor{}, "", errors.New("invalid role claim")
	}

	return actor, username, nil
}

func Auth(secret []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				log.Println("Missing Authorization header")
				http.Error(w, "Missing token", http.StatusUnauthorized)
				return
			}

			tokenStr := strings.TrimPrefix(authHeader, "Bearer ")
			if tokenStr == authHeader {
				log.Printf("Invalid token format")
				http.Error(w, "Invalid token format", http.StatusUnauthorized)
				return
			}

			actor, _, err := ParseToken(tokenStr, secret)
			if err != nil {
				log.Printf("Invalid token: %v", err)
				http.Error(w, "Invalid token", http.StatusUnauthorized)
				return
			}

			ctx := WithActor(r.Context(), actor)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
