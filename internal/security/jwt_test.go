package security

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const testSecret = "test-secret"

func TestParseTokenRoundTrip(t *testing.T) {
	token, errSign := GenerateToken(testSecret, "sub-1", "user@example.com", time.Hour)
	if errSign != nil {
		t.Fatalf("sign token: %v", errSign)
	}

	principal, errParse := ParseToken(testSecret, token)
	if errParse != nil {
		t.Fatalf("parse token: %v", errParse)
	}
	if principal.SubjectID != "sub-1" || principal.Email != "user@example.com" {
		t.Fatalf("unexpected principal: %+v", principal)
	}
}

func TestParseTokenWrongSecret(t *testing.T) {
	token, _ := GenerateToken(testSecret, "sub-1", "", time.Hour)

	if _, errParse := ParseToken("other-secret", token); !errors.Is(errParse, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", errParse)
	}
}

func TestParseTokenExpired(t *testing.T) {
	claims := SubjectClaims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:   "sub-1",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
	}}
	token, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))

	if _, errParse := ParseToken(testSecret, token); !errors.Is(errParse, ErrExpiredToken) {
		t.Fatalf("expected ErrExpiredToken, got %v", errParse)
	}
}

func TestParseTokenMissingSubject(t *testing.T) {
	token, _ := GenerateToken(testSecret, "", "user@example.com", time.Hour)

	if _, errParse := ParseToken(testSecret, token); !errors.Is(errParse, ErrMissingSubject) {
		t.Fatalf("expected ErrMissingSubject, got %v", errParse)
	}
}

func TestParseTokenIgnoresAudience(t *testing.T) {
	claims := SubjectClaims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:  "sub-1",
		Audience: jwt.ClaimStrings{"authenticated"},
	}}
	token, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))

	principal, errParse := ParseToken(testSecret, token)
	if errParse != nil {
		t.Fatalf("parse token with audience: %v", errParse)
	}
	if principal.SubjectID != "sub-1" {
		t.Fatalf("unexpected subject %q", principal.SubjectID)
	}
}

func TestParseTokenRejectsOtherAlgorithms(t *testing.T) {
	claims := SubjectClaims{RegisteredClaims: jwt.RegisteredClaims{Subject: "sub-1"}}
	token, _ := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString([]byte(testSecret))

	if _, errParse := ParseToken(testSecret, token); !errors.Is(errParse, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for HS512, got %v", errParse)
	}
}

func TestParseTokenGarbage(t *testing.T) {
	if _, errParse := ParseToken(testSecret, "not-a-jwt"); !errors.Is(errParse, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", errParse)
	}
}
