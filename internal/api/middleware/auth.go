package middleware

import (
	"context"
	"net/http"
	"strings"

	"quizclash/internal/common"
	"quizclash/internal/common/security"

	"github.com/go-chi/jwtauth/v5"
)

type contextKey string

const (
	UserIDCtxKey   contextKey = "userID"
	UsernameCtxKey contextKey = "username"
)

func Authenticator(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, claims, err := jwtauth.FromContext(r.Context())

		if err != nil {
			if strings.Contains(err.Error(), "token not found") || token == nil {
				common.RespondWithError(w, http.StatusUnauthorized, "Authorization token required")
			} else {
				common.RespondWithError(w, http.StatusUnauthorized, "Invalid token: "+err.Error())
			}
			return
		}
		if token == nil {
			common.RespondWithError(w, http.StatusUnauthorized, "Invalid token")
			return
		}

		userID, err := security.GetUserIDFromClaims(claims)
		if err != nil {
			common.RespondWithError(w, http.StatusUnauthorized, "Invalid token claims: "+err.Error())
			return
		}
		username, err := security.GetUsernameFromClaims(claims)
		if err != nil {
			common.RespondWithError(w, http.StatusUnauthorized, "Invalid token claims: "+err.Error())
			return
		}

		ctx := context.WithValue(r.Context(), UserIDCtxKey, userID)
		ctx = context.WithValue(ctx, UsernameCtxKey, username)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func GetUserIDFromContext(ctx context.Context) (string, bool) {
	userID, ok := ctx.Value(UserIDCtxKey).(string)
	return userID, ok
}

func GetUsernameFromContext(ctx context.Context) (string, bool) {
	username, ok := ctx.Value(UsernameCtxKey).(string)
	return username, ok
}
