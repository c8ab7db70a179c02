package storage

import (
	"context"

	"gorm.io/gorm"
)

// NextID increments the counter stored under key and returns the new value.
// Counters start at zero, so the first allocated ID is 1. Callers must invoke
// this inside the same transaction that stores the record the ID is for; a
// rolled-back operation then never burns an ID.
func NextID(ctx context.Context, db *gorm.DB, key Key) (uint64, error) {
	var current uint64
	if _, err := Get(ctx, db, key, &current); err != nil {
		return 0, err
	}
	next := current + 1
	if err := Set(ctx, db, key, next); err != nil {
		return 0, err
	}
	return next, nil
}
