package security

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// JWT validation errors.
var (
	// ErrInvalidToken indicates a token is malformed or fails validation.
	ErrInvalidToken = errors.New("invalid token")
	// ErrExpiredToken indicates a token has expired.
	ErrExpiredToken = errors.New("token expired")
	// ErrMissingSubject indicates a valid token without a subject claim.
	ErrMissingSubject = errors.New("token missing subject")
)

// SubjectClaims are the claims of a bearer credential issued by the identity provider.
// The subject identifies the calling user; the audience is not validated.
type SubjectClaims struct {
	Email string `json:"email,omitempty"`
	Role  string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// Principal is the authenticated caller.
type Principal struct {
	SubjectID string
	Email     string
}

// ParseToken validates an HS256 bearer token and returns the caller it identifies.
func ParseToken(secret string, tokenString string) (*Principal, error) {
	token, err := jwt.ParseWithClaims(tokenString, &SubjectClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}
	claims, ok := token.Claims.(*SubjectClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	subject := strings.TrimSpace(claims.Subject)
	if subject == "" {
		return nil, ErrMissingSubject
	}
	return &Principal{SubjectID: subject, Email: claims.Email}, nil
}

// GenerateToken signs an HS256 token for a subject. A zero expiry produces a token without exp.
func GenerateToken(secret string, subjectID, email string, expiry time.Duration) (string, error) {
	now := time.Now().UTC()
	claims := SubjectClaims{
		Email: email,
		Role:  "authenticated",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:  subjectID,
			IssuedAt: jwt.NewNumericDate(now),
		},
	}
	if expiry > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(expiry))
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}
