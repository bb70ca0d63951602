package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// errInvalidToken はトークンの署名・有効期限・形式のいずれかが不正であることを示す。
var errInvalidToken = errors.New("invalid token")

// tokenClaims はベアラートークンのクレーム。ユーザーIDのみを運ぶ。
type tokenClaims struct {
	ID string `json:"id"`
	jwt.RegisteredClaims
}

// TokenIssuer はHS256署名のステートレストークンを発行・検証する。
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenIssuer はTokenIssuerを生成する。
func NewTokenIssuer(secret []byte, ttl time.Duration) *TokenIssuer {
	return &TokenIssuer{secret: secret, ttl: ttl, now: time.Now}
}

// Issue はユーザーIDを持つトークンを発行する。有効期限は発行時刻からttl後。
func (t *TokenIssuer) Issue(userID string) (string, error) {
	now := t.now()
	claims := tokenClaims{
		ID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Verify はトークンを検証し、ユーザーIDを返す。
func (t *TokenIssuer) Verify(token string) (string, error) {
	claims := &tokenClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims,
		func(*jwt.Token) (any, error) { return t.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %v", errInvalidToken, err)
	}
	if !parsed.Valid || claims.ID == "" {
		return "", errInvalidToken
	}
	return claims.ID, nil
}
