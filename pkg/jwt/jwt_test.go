package jwt

import (
	"errors"
	"sync"
	"testing"
	"time"
)

var (
	keyOnce        sync.Once
	testPrivatePEM string
	testPublicPEM  string
)

func testKeys(t *testing.T) (string, string) {
	t.Helper()
	var err error
	keyOnce.Do(func() {
		testPrivatePEM, testPublicPEM, err = GenerateKeyPair()
	})
	if err != nil {
		t.Fatalf("GenerateKeyPair() error = %v", err)
	}
	return testPrivatePEM, testPublicPEM
}

func setupTestManager(t *testing.T, access, refresh time.Duration) *Manager {
	t.Helper()
	priv, pub := testKeys(t)
	manager, err := NewManager(priv, pub, access, refresh)
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}
	return manager
}

func TestNewManagerInvalidKeys(t *testing.T) {
	tests := []struct {
		name          string
		privateKeyPEM string
		publicKeyPEM  string
	}{
		{name: "empty private key", privateKeyPEM: "", publicKeyPEM: "valid-key"},
		{name: "empty public key", privateKeyPEM: "valid-key", publicKeyPEM: ""},
		{name: "garbage", privateKeyPEM: "not-a-valid-key", publicKeyPEM: "not-a-valid-key"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewManager(tt.privateKeyPEM, tt.publicKeyPEM, time.Minute, time.Hour); err == nil {
				t.Error("NewManager() expected error")
			}
		})
	}
}

func TestGenerateAndValidate(t *testing.T) {
	manager := setupTestManager(t, 15*time.Minute, 24*time.Hour)

	pair, err := manager.GenerateTokenPair(42, "rep@example.com", "user")
	if err != nil {
		t.Fatalf("GenerateTokenPair() error = %v", err)
	}
	if pair.AccessToken == pair.RefreshToken {
		t.Error("access and refresh tokens should differ")
	}
	if pair.ExpiresIn != int64((15 * time.Minute).Seconds()) {
		t.Errorf("ExpiresIn = %d", pair.ExpiresIn)
	}

	claims, err := manager.ValidateTokenOfType(pair.AccessToken, TokenTypeAccess)
	if err != nil {
		t.Fatalf("ValidateTokenOfType() error = %v", err)
	}
	if claims.UserID != 42 || claims.Email != "rep@example.com" || claims.Role != "user" {
		t.Errorf("unexpected claims: %+v", claims)
	}
	if claims.Subject != "42" {
		t.Errorf("Subject = %q, want 42", claims.Subject)
	}
	if claims.ID == "" {
		t.Error("Claims.ID (JTI) is empty")
	}

	if _, err := manager.ValidateTokenOfType(pair.RefreshToken, TokenTypeAccess); !errors.Is(err, ErrWrongTokenType) {
		t.Errorf("refresh token accepted as access token: %v", err)
	}
}

func TestValidateInvalidToken(t *testing.T) {
	manager := setupTestManager(t, time.Minute, time.Hour)

	for _, token := range []string{"", "not.a.valid.token", "random-string-not-jwt"} {
		t.Run(token, func(t *testing.T) {
			if _, err := manager.ValidateToken(token); !errors.Is(err, ErrInvalidToken) {
				t.Errorf("ValidateToken() error = %v, want ErrInvalidToken", err)
			}
		})
	}
}

func TestValidateExpiredToken(t *testing.T) {
	manager := setupTestManager(t, -time.Minute, -time.Minute)

	pair, err := manager.GenerateTokenPair(1, "admin@example.com", "admin")
	if err != nil {
		t.Fatalf("GenerateTokenPair() error = %v", err)
	}

	if _, err := manager.ValidateToken(pair.AccessToken); !errors.Is(err, ErrTokenExpired) {
		t.Errorf("ValidateToken() error = %v, want ErrTokenExpired", err)
	}
}

func TestValidateForeignKey(t *testing.T) {
	manager := setupTestManager(t, time.Minute, time.Hour)

	otherPriv, otherPub, err := GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair() error = %v", err)
	}
	other, err := NewManager(otherPriv, otherPub, time.Minute, time.Hour)
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}

	pair, _ := other.GenerateTokenPair(1, "admin@example.com", "admin")
	if _, err := manager.ValidateToken(pair.AccessToken); err == nil {
		t.Error("token signed with another key should be rejected")
	}
}
