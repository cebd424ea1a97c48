package auth

import (
	"errors"
	"fmt"
	"time"

	"marketplace-core/internal/domain"

	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidToken = errors.New("invalid token")

// Claims is the JWT payload issued for marketplace users.
type Claims struct {
	Role     domain.Role `json:"role"`
	StoreIDs []string    `json:"store_ids,omitempty"`
	jwt.RegisteredClaims
}

// TokenParser verifies HS256 bearer tokens.
type TokenParser struct {
	secret []byte
	now    func() time.Time
}

func NewTokenParser(secret string) *TokenParser {
	return &TokenParser{secret: []byte(secret), now: time.Now}
}

// Parse validates the token and returns the actor it names.
func (p *TokenParser) Parse(raw string) (domain.Actor, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return p.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(p.now))
	if err != nil {
		return domain.Actor{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Subject == "" || !claims.Role.Valid() {
		return domain.Actor{}, fmt.Errorf("%w: missing subject or unknown role", ErrInvalidToken)
	}
	return domain.Actor{ID: claims.Subject, Role: claims.Role, StoreIDs: claims.StoreIDs}, nil
}

// Issue signs a token for actor, valid for ttl. Used by the seed tool and tests.
func (p *TokenParser) Issue(actor domain.Actor, ttl time.Duration) (string, error) {
	now := p.now()
	claims := Claims{
		Role:     actor.Role,
		StoreIDs: actor.StoreIDs,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   actor.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(p.secret)
}
