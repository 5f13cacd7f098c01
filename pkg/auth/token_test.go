package auth

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/ojalabs/oja-backend/pkg/config"
	"github.com/ojalabs/oja-backend/pkg/enums"
)

func TestMintAndParseAccessToken(t *testing.T) {
	cfg := config.JWTConfig{
		Secret:            "secret",
		Issuer:            "oja",
		ExpirationMinutes: 30,
	}
	now := time.Now().UTC()
	userID := uuid.New()

	token, err := MintAccessToken(cfg, now, AccessTokenPayload{
		UserID: userID,
		Role:   enums.UserRoleVendor,
	})
	if err != nil {
		t.Fatalf("mint access token: %v", err)
	}

	claims, err := ParseAccessToken(cfg, token)
	if err != nil {
		t.Fatalf("parse access token: %v", err)
	}

	if claims.UserID != userID {
		t.Fatalf("expected user_id %s, got %s", userID, claims.UserID)
	}
	if claims.Role != enums.UserRoleVendor {
		t.Fatalf("unexpected role %s", claims.Role)
	}
	if claims.Issuer != cfg.Issuer {
		t.Fatalf("unexpected issuer %s", claims.Issuer)
	}
	if claims.ID == "" {
		t.Fatalf("expected generated jti")
	}
}

func TestParseAccessTokenRejectsWrongIssuer(t *testing.T) {
	minted := config.JWTConfig{Secret: "secret", Issuer: "someone-else", ExpirationMinutes: 5}
	token, err := MintAccessToken(minted, time.Now(), AccessTokenPayload{
		UserID: uuid.New(),
		Role:   enums.UserRoleBuyer,
	})
	if err != nil {
		t.Fatalf("mint access token: %v", err)
	}

	verifier := config.JWTConfig{Secret: "secret", Issuer: "oja"}
	if _, err := ParseAccessToken(verifier, token); err == nil {
		t.Fatalf("expected issuer mismatch to fail")
	}
}

func TestMintAccessTokenRejectsUnknownRole(t *testing.T) {
	cfg := config.JWTConfig{Secret: "secret", Issuer: "oja", ExpirationMinutes: 5}
	if _, err := MintAccessToken(cfg, time.Now(), AccessTokenPayload{
		UserID: uuid.New(),
		Role:   enums.UserRole("superuser"),
	}); err == nil {
		t.Fatalf("expected invalid role to fail")
	}
}
