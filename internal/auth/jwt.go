package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Roles carried in tokens.
const (
	RoleTrainer = "trainer"
	RoleAdmin   = "admin"
)

// Token is a signed access token and its expiry.
type Token struct {
	AccessToken string    `json:"accessToken"`
	ExpiresAt   time.Time `json:"expiresAt"`
}

// Identity is who a token speaks for. Admin tokens carry no court.
type Identity struct {
	TrainerID   string
	TrainerName string
	CourtID     string
	Role        string
}

// Claims represents JWT payload.
type Claims struct {
	TrainerName string `json:"name,omitempty"`
	CourtID     string `json:"court,omitempty"`
	Role        string `json:"role"`
	jwt.RegisteredClaims
}

// TrainerID is the token subject.
func (c Claims) TrainerID() string { return c.Subject }

// Issue signs an HS256 access token for id.
func Issue(id Identity, issuer, key string, ttl time.Duration) (Token, error) {
	now := time.Now()
	exp := now.Add(ttl)
	claims := Claims{
		TrainerName: id.TrainerName,
		CourtID:     id.CourtID,
		Role:        id.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   id.TrainerID,
			ExpiresAt: jwt.NewNumericDate(exp),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(key))
	if err != nil {
		return Token{}, err
	}
	return Token{AccessToken: signed, ExpiresAt: exp}, nil
}

// Parse validates a token and returns claims.
func Parse(tokenStr, key, issuer string) (Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(key), nil
	})
	if err != nil {
		return Claims{}, err
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return Claims{}, errors.New("invalid token")
	}
	if issuer != "" && claims.Issuer != issuer {
		return Claims{}, errors.New("issuer mismatch")
	}
	if claims.Role != RoleTrainer && claims.Role != RoleAdmin {
		return Claims{}, errors.New("unknown role")
	}
	return *claims, nil
}
