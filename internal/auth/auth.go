// Package auth handles password hashing and JWT issuance/verification.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/configsync/configsync/internal/idgen"
	"github.com/configsync/configsync/internal/model"
)

// ErrInvalidToken is returned for tokens that are malformed, forged,
// expired, or carry unusable claims.
var ErrInvalidToken = errors.New("auth: invalid token")

// Identity is the authenticated caller attached to a request.
type Identity struct {
	UserID   int64
	Username string
	Role     model.Role
}

// HashPassword returns a bcrypt hash of the plaintext password.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// CheckPassword reports whether the plaintext password matches the hash.
func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// Claims are the JWT claims carried by issued tokens.
type Claims struct {
	Username string `json:"username"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// TokenIssuer mints and verifies HMAC-signed bearer tokens.
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
}

// NewTokenIssuer creates an issuer signing with secret. Tokens expire after
// ttl; a zero ttl defaults to 30 minutes.
func NewTokenIssuer(secret string, ttl time.Duration) *TokenIssuer {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &TokenIssuer{secret: []byte(secret), ttl: ttl}
}

// Issue mints a token for the user. The jti claim is unique per token so a
// single session can be revoked without touching the user's other sessions.
func (i *TokenIssuer) Issue(user *model.User) (string, *Claims, error) {
	jti, err := idgen.Generate()
	if err != nil {
		return "", nil, err
	}
	now := time.Now()
	claims := &Claims{
		Username: user.Username,
		Role:     string(user.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   fmt.Sprintf("%d", user.ID),
			ID:        jti,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(i.secret)
	if err != nil {
		return "", nil, fmt.Errorf("sign token: %w", err)
	}
	return signed, claims, nil
}

// Verify parses and validates a token string and returns its claims.
func (i *TokenIssuer) Verify(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return i.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.ID == "" || claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing jti or subject", ErrInvalidToken)
	}
	return claims, nil
}

// Identity derives the caller identity from verified claims.
func (c *Claims) Identity() (Identity, error) {
	var userID int64
	if _, err := fmt.Sscanf(c.Subject, "%d", &userID); err != nil || userID <= 0 {
		return Identity{}, fmt.Errorf("%w: bad subject %q", ErrInvalidToken, c.Subject)
	}
	role := model.Role(c.Role)
	if !role.Valid() {
		return Identity{}, fmt.Errorf("%w: bad role %q", ErrInvalidToken, c.Role)
	}
	return Identity{UserID: userID, Username: c.Username, Role: role}, nil
}
