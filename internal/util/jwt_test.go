package util

import (
	"testing"
	"time"

	"quizzify_backend/internal/config"
	"quizzify_backend/internal/model"
)

func jwtConfig(secret string, ttl time.Duration) config.JWTConfig {
	return config.JWTConfig{Secret: secret, Issuer: "quizzify", ExpireTime: ttl}
}

func TestJWTRoundTrip(t *testing.T) {
	user := &model.User{Email: "a@example.com", Role: model.Student}
	user.ID = 42

	token, err := GenerateJWT(user, jwtConfig("secret", time.Hour))
	if err != nil {
		t.Fatalf("GenerateJWT: %v", err)
	}
	claims, err := ParseJWT(token, jwtConfig("secret", time.Hour))
	if err != nil {
		t.Fatalf("ParseJWT: %v", err)
	}
	if claims.UserID != 42 || claims.Role != model.Student || claims.Email != "a@example.com" {
		t.Fatalf("claims = %+v", claims)
	}
	if claims.Subject != "42" || claims.Issuer != "quizzify" {
		t.Fatalf("registered claims = %+v", claims.RegisteredClaims)
	}
}

func TestJWTRejectsWrongSecretIssuerAndExpired(t *testing.T) {
	user := &model.User{Email: "a@example.com"}
	cfg := jwtConfig("secret", time.Hour)
	token, _ := GenerateJWT(user, cfg)

	if _, err := ParseJWT(token, jwtConfig("other", time.Hour)); err == nil {
		t.Fatal("expected signature error")
	}

	foreign := cfg
	foreign.Issuer = "someone-else"
	if _, err := ParseJWT(token, foreign); err == nil {
		t.Fatal("expected issuer error")
	}

	expired, _ := GenerateJWT(user, jwtConfig("secret", -time.Minute))
	if _, err := ParseJWT(expired, cfg); err == nil {
		t.Fatal("expected expiry error")
	}
}
