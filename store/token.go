package store

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/legit-games/user-registry/errors"
	"gorm.io/gorm"
)

// Token kinds.
const (
	TokenVerify = "verify"
	TokenReset  = "reset"
)

// OneTimeToken is a single-use secret mailed to a user for email verification or password reset.
type OneTimeToken struct {
	Token     string    `gorm:"column:token;primaryKey"`
	Kind      string    `gorm:"column:kind"`
	UserID    string    `gorm:"column:user_id"`
	ExpiresAt time.Time `gorm:"column:expires_at"`
	CreatedAt time.Time `gorm:"column:created_at"`
}

func (OneTimeToken) TableName() string { return "one_time_tokens" }

// TokenStore issues and redeems one-time tokens.
type TokenStore struct {
	DB  *gorm.DB
	TTL map[string]time.Duration
}

// NewTokenStore returns a store where verification tokens last a day and reset tokens an hour.
func NewTokenStore(db *gorm.DB) *TokenStore {
	return &TokenStore{DB: db, TTL: map[string]time.Duration{
		TokenVerify: 24 * time.Hour,
		TokenReset:  time.Hour,
	}}
}

func generateToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// Issue creates a token of kind for userID. Earlier tokens of the same kind are revoked.
func (s *TokenStore) Issue(ctx context.Context, kind, userID string) (string, error) {
	ttl, ok := s.TTL[kind]
	if !ok {
		return "", fmt.Errorf("unknown token kind %q: %w", kind, errors.ErrValidation)
	}
	tok, err := generateToken()
	if err != nil {
		return "", err
	}
	now := time.Now().UTC()
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ? AND kind = ?", userID, kind).Delete(&OneTimeToken{}).Error; err != nil {
			return err
		}
		return tx.Create(&OneTimeToken{Token: tok, Kind: kind, UserID: userID, ExpiresAt: now.Add(ttl), CreatedAt: now}).Error
	})
	if err != nil {
		return "", mapErr("token", err)
	}
	return tok, nil
}

// Consume redeems token and returns the user it was issued to. A token works once.
func (s *TokenStore) Consume(ctx context.Context, kind, token string) (string, error) {
	var userID string
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var t OneTimeToken
		if err := tx.Where("token = ? AND kind = ?", token, kind).First(&t).Error; err != nil {
			return err
		}
		res := tx.Where("token = ?", t.Token).Delete(&OneTimeToken{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 || time.Now().UTC().After(t.ExpiresAt) {
			return gorm.ErrRecordNotFound
		}
		userID = t.UserID
		return nil
	})
	if err != nil {
		return "", mapErr("token", err)
	}
	return userID, nil
}

// DeleteExpired removes tokens past their expiry.
func (s *TokenStore) DeleteExpired(ctx context.Context) (int64, error) {
	res := s.DB.WithContext(ctx).Where("expires_at < ?", time.Now().UTC()).Delete(&OneTimeToken{})
	return res.RowsAffected, res.Error
}
