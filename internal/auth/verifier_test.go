package auth

import (
	"errors"
	"testing"
	"time"
)

func TestDevToken(t *testing.T) {
	v := NewVerifier("", "")
	p, err := v.Verify("t_acme:Admin")
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if p.Tenant != "t_acme" || p.Role != "admin" {
		t.Fatalf("unexpected principal %+v", p)
	}
	if _, err := v.Verify("nocolon"); err == nil {
		t.Fatalf("expected error for malformed dev token")
	}
}

func TestHMACToken(t *testing.T) {
	secret := []byte("s3cret")
	v := NewVerifier("hmac", string(secret))
	v.now = func() time.Time { return time.Unix(1000, 0) }

	tok, err := SignHS256(secret, map[string]any{"tenant": "t1", "exp": 2000})
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	p, err := v.Verify(tok)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if p.Tenant != "t1" || p.Role != "user" {
		t.Fatalf("unexpected principal %+v", p)
	}

	expired, _ := SignHS256(secret, map[string]any{"tenant": "t1", "exp": 999})
	if _, err := v.Verify(expired); !errors.Is(err, ErrExpired) {
		t.Fatalf("want ErrExpired, got %v", err)
	}

	forged, _ := SignHS256([]byte("other"), map[string]any{"tenant": "t1"})
	if _, err := v.Verify(forged); err == nil {
		t.Fatalf("forged token accepted")
	}

	noTenant, _ := SignHS256(secret, map[string]any{"role": "admin"})
	if _, err := v.Verify(noTenant); err == nil {
		t.Fatalf("token without tenant accepted")
	}
	if _, err := v.Verify("a.b"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("want ErrInvalidToken, got %v", err)
	}
}
