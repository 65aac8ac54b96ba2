package service

import (
	"errors"
	"testing"
	"time"
)

func TestJWTIssueAndParse(t *testing.T) {
	svc := NewJWTService("secreto", time.Minute)

	token, err := svc.IssueAccessToken("u1")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	claims, err := svc.ParseAccessToken(token)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.UserID != "u1" {
		t.Fatalf("expected uid u1, got %q", claims.UserID)
	}
}

func TestJWTRejectsWrongSecret(t *testing.T) {
	token, err := NewJWTService("secreto", time.Minute).IssueAccessToken("u1")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := NewJWTService("otro", time.Minute).ParseAccessToken(token); !errors.Is(err, ErrJWTInvalid) {
		t.Fatalf("expected ErrJWTInvalid, got %v", err)
	}
}

func TestJWTRejectsExpired(t *testing.T) {
	// El constructor normaliza TTLs no positivos, asi que armamos el
	// servicio a mano para emitir un token ya vencido.
	svc := &JWTService{secret: []byte("secreto"), accessTTL: -time.Minute, issuer: "scoutlink"}

	token, err := svc.IssueAccessToken("u1")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := svc.ParseAccessToken(token); !errors.Is(err, ErrJWTExpired) {
		t.Fatalf("expected ErrJWTExpired, got %v", err)
	}
}

func TestJWTRejectsGarbage(t *testing.T) {
	svc := NewJWTService("secreto", time.Minute)
	for _, token := range []string{"", "   ", "no.un.jwt"} {
		if _, err := svc.ParseAccessToken(token); !errors.Is(err, ErrJWTInvalid) {
			t.Fatalf("expected ErrJWTInvalid for %q, got %v", token, err)
		}
	}
}

func TestJWTEmptySecret(t *testing.T) {
	svc := NewJWTService("", time.Minute)
	if _, err := svc.IssueAccessToken("u1"); !errors.Is(err, ErrJWTInvalid) {
		t.Fatalf("expected ErrJWTInvalid, got %v", err)
	}
}
