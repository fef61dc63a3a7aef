package auth_test

import (
	"testing"

	"github.com/google/uuid"

	"eventdesk/internal/auth"
)

func TestTokenRoundTrip(t *testing.T) {
	uid := uuid.New().String()

	tok, err := auth.MakeToken(uid, "test-secret", true)
	if err != nil {
		t.Fatalf("make token: %v", err)
	}

	claims, err := auth.ParseToken(tok, "test-secret")
	if err != nil {
		t.Fatalf("parse token: %v", err)
	}
	if claims.UserID != uid {
		t.Errorf("uid = %s, want %s", claims.UserID, uid)
	}
	if !claims.IsAdmin {
		t.Error("expected admin claim to survive the round trip")
	}
}

func TestWrongSecretRejected(t *testing.T) {
	tok, err := auth.MakeToken(uuid.New().String(), "test-secret", false)
	if err != nil {
		t.Fatalf("make token: %v", err)
	}

	if _, err := auth.ParseToken(tok, "other-secret"); err == nil {
		t.Fatal("expected token signed with another secret to be rejected")
	}
}

func TestGarbageRejected(t *testing.T) {
	if _, err := auth.ParseToken("not-a-token", "test-secret"); err == nil {
		t.Fatal("expected garbage token to be rejected")
	}
}
