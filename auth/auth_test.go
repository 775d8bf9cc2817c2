package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/wfunc/gardien/models"
)

func TestIssuer_RoundTrip(t *testing.T) {
	issuer, err := NewIssuer("s3cret", time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	user := &models.User{ID: "u-1", Name: "Alice", Role: models.RoleAdmin}

	token, err := issuer.Issue(user)
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	claims, err := issuer.Parse(token)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if claims.UserID != "u-1" || claims.Role != models.RoleAdmin || claims.Name != "Alice" {
		t.Errorf("Unexpected claims %+v", claims)
	}
}

func TestIssuer_Rejects(t *testing.T) {
	issuer, _ := NewIssuer("s3cret", time.Hour)
	other, _ := NewIssuer("other", time.Hour)
	user := &models.User{ID: "u-1", Role: models.RolePlayer}

	token, _ := other.Issue(user)
	if _, err := issuer.Parse(token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Wrong signature: expected ErrInvalidToken, got %v", err)
	}

	base := time.Now()
	issuer.now = func() time.Time { return base }
	token, _ = issuer.Issue(user)
	issuer.now = func() time.Time { return base.Add(2 * time.Hour) }
	if _, err := issuer.Parse(token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Expired token: expected ErrInvalidToken, got %v", err)
	}

	if _, err := issuer.Parse("garbage"); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Garbage: expected ErrInvalidToken, got %v", err)
	}
}

func TestNewIssuer_EmptySecret(t *testing.T) {
	if _, err := NewIssuer("", time.Hour); !errors.Is(err, ErrNoSecret) {
		t.Errorf("Expected ErrNoSecret, got %v", err)
	}
}
