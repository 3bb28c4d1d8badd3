package security

import (
	"errors"
	"time"

	"quizclash/internal/platform/config"

	"github.com/go-chi/jwtauth/v5"
	"github.com/golang-jwt/jwt/v5"
)

var TokenAuth *jwtauth.JWTAuth

func InitJWT() {
	TokenAuth = jwtauth.New("HS256", config.AppConfig.JWTKey, nil)
}

func GenerateToken(userID, username string) (string, error) {
	claims := jwt.MapClaims{
		"user_id":  userID,
		"username": username,
		"exp":      time.Now().Add(config.AppConfig.JWTExp).Unix(),
		"iat":      time.Now().Unix(),
	}
	_, tokenString, err := TokenAuth.Encode(claims)
	return tokenString, err
}

func GetUserIDFromClaims(claims jwt.MapClaims) (string, error) {
	id, ok := claims["user_id"].(string)
	if !ok {
		return "", errors.New("user_id claim is missing or not a string")
	}
	return id, nil
}

func GetUsernameFromClaims(claims jwt.MapClaims) (string, error) {
	username, ok := claims["username"].(string)
	if !ok {
		return "", errors.New("username claim is missing or not a string")
	}
	return username, nil
}
