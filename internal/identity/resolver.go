package identity

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// APIToken maps a hashed bearer token to the identity it authenticates.
type APIToken struct {
	Hash      string    `gorm:"primaryKey;type:text" json:"-"`
	Identity  string    `gorm:"not null;index" json:"identity"`
	CreatedAt time.Time `gorm:"not null" json:"created_at"`
}

func (APIToken) TableName() string { return "api_tokens" }

// HashToken hashes a raw API token using the same strategy as token creation.
func HashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// Resolver turns a presented API token into an authenticated identity.
type Resolver struct {
	db *gorm.DB
}

func NewResolver(db *gorm.DB) *Resolver {
	return &Resolver{db: db}
}

func (r *Resolver) Resolve(ctx context.Context, rawToken string) (Identity, error) {
	rawToken = strings.TrimSpace(rawToken)
	if rawToken == "" {
		return "", ErrUnauthenticated
	}

	var record APIToken
	err := r.db.WithContext(ctx).
		Where("hash = ?", HashToken(rawToken)).
		First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", ErrUnauthenticated
		}
		return "", err
	}
	return Identity(record.Identity), nil
}

// Seed registers token=identity pairs from the bootstrap configuration.
// Existing hashes are left untouched so rotation stays explicit.
func (r *Resolver) Seed(ctx context.Context, pairs string, now time.Time) error {
	for _, pair := range strings.Split(pairs, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		token, id, ok := strings.Cut(pair, "=")
		if !ok || strings.TrimSpace(token) == "" || strings.TrimSpace(id) == "" {
			continue
		}
		record := APIToken{
			Hash:      HashToken(strings.TrimSpace(token)),
			Identity:  strings.TrimSpace(id),
			CreatedAt: now,
		}
		err := r.db.WithContext(ctx).
			Clauses(clause.OnConflict{DoNothing: true}).
			Create(&record).Error
		if err != nil {
			return err
		}
	}
	return nil
}
