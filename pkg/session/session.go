/**
 * @description
 * This package issues and verifies the signed session tokens that identify the caller of the
 * rewards API. Tokens are HS256 JWTs whose subject is the account id; the business flag is
 * carried as a private claim so handlers can gate business-only routes without a lookup.
 *
 * @dependencies
 * - github.com/golang-jwt/jwt/v5: JWT signing and validation.
 * - github.com/google/uuid: Account identifiers.
 * - internal/domain: The Identity handed to the API layer.
 */
package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/loyalty/rewards-service/internal/domain"
)

const issuer = "rewards-service"

// ErrInvalidToken is returned for any token that fails verification.
var ErrInvalidToken = errors.New("invalid session token")

// Identity is the verified caller.
type Identity = domain.Identity

// Claims is the JWT payload of a session.
type Claims struct {
	IsBusinessAccount bool `json:"is_business_account"`
	jwt.RegisteredClaims
}

// Manager signs and verifies session tokens with a shared secret.
type Manager struct {
	secret []byte
	ttl    time.Duration
}

// NewManager returns a Manager. The secret must be at least 32 bytes.
func NewManager(secret string, ttl time.Duration) (*Manager, error) {
	if len(secret) < 32 {
		return nil, fmt.Errorf("session secret must be at least 32 bytes, got %d", len(secret))
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Manager{secret: []byte(secret), ttl: ttl}, nil
}

// Issue returns a signed token for the account, valid from now for the manager's TTL.
func (m *Manager) Issue(id Identity, now time.Time) (string, error) {
	claims := Claims{
		IsBusinessAccount: id.IsBusinessAccount,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   id.AccountID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
			ID:        uuid.NewString(),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
}

// Verify parses and validates a token and returns the identity it carries.
func (m *Manager) Verify(token string) (Identity, error) {
	var claims Claims
	parsed, err := jwt.ParseWithClaims(token, &claims,
		func(t *jwt.Token) (interface{}, error) { return m.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !parsed.Valid {
		return Identity{}, ErrInvalidToken
	}

	accountID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: subject is not an account id", ErrInvalidToken)
	}
	return Identity{AccountID: accountID, IsBusinessAccount: claims.IsBusinessAccount}, nil
}
