package auth

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

type ctxKey int

// ClaimsKey is used to store authenticated claims on the request context.
const ClaimsKey ctxKey = 1

const RoleUser = "USER"

// Claims carried by the storefront's session token. PriorOrderCount and
// VIP are stamped by the user service at token issuance and feed the
// coupon evaluator's segment checks.
type Claims struct {
	jwt.RegisteredClaims
	Roles           []string `json:"roles"`
	Email           string   `json:"email"`
	PriorOrderCount int      `json:"prior_order_count"`
	VIP             bool     `json:"vip"`
}

// Keys verifies HS256 session tokens with the shared secret.
type Keys struct {
	secret []byte
}

func NewKeys(secret string) (*Keys, error) {
	if secret == "" {
		return nil, fmt.Errorf("token secret is empty")
	}
	return &Keys{secret: []byte(secret)}, nil
}

// ValidateToken parses and verifies the bearer token, returning its claims.
func (k *Keys) ValidateToken(tokenStr string) (Claims, error) {
	var claims Claims
	token, err := jwt.ParseWithClaims(tokenStr, &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return k.secret, nil
	})
	if err != nil {
		return Claims{}, fmt.Errorf("failed to parse token: %w", err)
	}
	if !token.Valid {
		return Claims{}, fmt.Errorf("invalid token")
	}
	return claims, nil
}

// SignToken issues a token for the given claims. Used by tests and local tooling;
// production tokens come from the user service.
func (k *Keys) SignToken(claims Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(k.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}
