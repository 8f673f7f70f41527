package generates

import (
	"crypto"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/legit-games/user-registry/errors"
	"github.com/legit-games/user-registry/models"
)

// JWTAccessClaims jwt claims
type JWTAccessClaims struct {
	jwt.RegisteredClaims
	Username string `json:"username,omitempty"`
}

// NewJWTAccessGenerate create to generate the jwt access token instance
func NewJWTAccessGenerate(kid string, key []byte, method jwt.SigningMethod, ttl time.Duration) *JWTAccessGenerate {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &JWTAccessGenerate{
		SignedKeyID:  kid,
		SignedKey:    key,
		SignedMethod: method,
		TTL:          ttl,
	}
}

// JWTAccessGenerate issues and verifies access tokens for users.
type JWTAccessGenerate struct {
	SignedKeyID  string
	SignedKey    []byte
	SignedMethod jwt.SigningMethod
	TTL          time.Duration
}

// Token signs an access token for user and returns it with its expiry.
func (a *JWTAccessGenerate) Token(user *models.User) (string, time.Time, error) {
	now := time.Now()
	exp := now.Add(a.TTL)
	claims := &JWTAccessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
			ID:        uuid.NewString(),
		},
		Username: user.Username,
	}

	token := jwt.NewWithClaims(a.SignedMethod, claims)
	if a.SignedKeyID != "" {
		token.Header["kid"] = a.SignedKeyID
	}
	signKey, _, err := a.keys()
	if err != nil {
		return "", time.Time{}, err
	}
	access, err := token.SignedString(signKey)
	if err != nil {
		return "", time.Time{}, err
	}
	return access, exp, nil
}

// Parse verifies raw and returns its claims. Invalid or expired tokens are ErrUnauthorized.
func (a *JWTAccessGenerate) Parse(raw string) (*JWTAccessClaims, error) {
	_, verifyKey, err := a.keys()
	if err != nil {
		return nil, err
	}
	claims := &JWTAccessClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		return verifyKey, nil
	}, jwt.WithValidMethods([]string{a.SignedMethod.Alg()}), jwt.WithExpirationRequired())
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("invalid access token: %w", errors.ErrUnauthorized)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("access token has no subject: %w", errors.ErrUnauthorized)
	}
	return claims, nil
}

// keys returns the signing key and the matching verification key for the configured method.
func (a *JWTAccessGenerate) keys() (interface{}, interface{}, error) {
	switch {
	case a.isHs():
		return a.SignedKey, a.SignedKey, nil
	case a.isEs():
		v, err := jwt.ParseECPrivateKeyFromPEM(a.SignedKey)
		if err != nil {
			return nil, nil, err
		}
		return v, v.Public(), nil
	case a.isRsOrPS():
		v, err := jwt.ParseRSAPrivateKeyFromPEM(a.SignedKey)
		if err != nil {
			return nil, nil, err
		}
		return v, v.Public(), nil
	case a.isEd():
		v, err := jwt.ParseEdPrivateKeyFromPEM(a.SignedKey)
		if err != nil {
			return nil, nil, err
		}
		return v, v.(crypto.Signer).Public(), nil
	}
	return nil, nil, errors.New("unsupported sign method")
}

func (a *JWTAccessGenerate) isEs() bool {
	return strings.HasPrefix(a.SignedMethod.Alg(), "ES")
}

func (a *JWTAccessGenerate) isRsOrPS() bool {
	isRs := strings.HasPrefix(a.SignedMethod.Alg(), "RS")
	isPs := strings.HasPrefix(a.SignedMethod.Alg(), "PS")
	return isRs || isPs
}

func (a *JWTAccessGenerate) isHs() bool { return strings.HasPrefix(a.SignedMethod.Alg(), "HS") }
func (a *JWTAccessGenerate) isEd() bool { return strings.HasPrefix(a.SignedMethod.Alg(), "Ed") }
