// Package storage is the persistent key-value layer underneath the payment
// and refund repositories. Records, counters, and index buckets all live in a
// single kv_entries table addressed by structured keys, so one gorm
// transaction covers every write an operation performs.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Key is a structured storage key. Parts are escaped before joining, so an
// identity containing the separator cannot collide with another key.
type Key []string

func NewKey(parts ...string) Key {
	return Key(parts)
}

func (k Key) With(parts ...string) Key {
	out := make(Key, 0, len(k)+len(parts))
	out = append(out, k...)
	out = append(out, parts...)
	return out
}

func (k Key) String() string {
	escaped := make([]string, len(k))
	for i, part := range k {
		escaped[i] = url.PathEscape(part)
	}
	return strings.Join(escaped, "/")
}

// Entry is a single key-value row.
type Entry struct {
	Key       string         `gorm:"primaryKey;type:text"`
	Value     datatypes.JSON `gorm:"not null"`
	UpdatedAt time.Time      `gorm:"not null"`
}

func (Entry) TableName() string { return "kv_entries" }

// Get loads the value stored under key into dest. The second return reports
// whether the key exists.
func Get(ctx context.Context, db *gorm.DB, key Key, dest any) (bool, error) {
	var entry Entry
	err := db.WithContext(ctx).Where("key = ?", key.String()).First(&entry).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, err
	}
	if err := json.Unmarshal(entry.Value, dest); err != nil {
		return false, err
	}
	return true, nil
}

// Set stores value under key, overwriting any previous value.
func Set(ctx context.Context, db *gorm.DB, key Key, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	entry := Entry{Key: key.String(), Value: datatypes.JSON(raw), UpdatedAt: time.Now().UTC()}
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}},
			DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
		}).
		Create(&entry).Error
}

// Has reports whether key exists.
func Has(ctx context.Context, db *gorm.DB, key Key) (bool, error) {
	var count int64
	err := db.WithContext(ctx).Model(&Entry{}).Where("key = ?", key.String()).Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
