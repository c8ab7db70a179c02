package storage

import (
	"context"
	"strconv"

	"gorm.io/gorm"
)

// Index buckets are append-only sequences of entity IDs keyed by an owner
// (customer, merchant, or payment). Position entries live under
// bucket/<position> and the bucket size under bucket/count. Counts only ever
// grow; later status changes never remove an entry.

func indexCountKey(bucket Key) Key {
	return bucket.With("count")
}

func indexEntryKey(bucket Key, position uint64) Key {
	return bucket.With(strconv.FormatUint(position, 10))
}

// IndexAppend stores id at the next free position of bucket and bumps the count.
func IndexAppend(ctx context.Context, db *gorm.DB, bucket Key, id uint64) error {
	count, err := IndexCount(ctx, db, bucket)
	if err != nil {
		return err
	}
	if err := Set(ctx, db, indexEntryKey(bucket, count), id); err != nil {
		return err
	}
	return Set(ctx, db, indexCountKey(bucket), count+1)
}

// IndexCount returns the number of entries ever appended to bucket.
func IndexCount(ctx context.Context, db *gorm.DB, bucket Key) (uint64, error) {
	var count uint64
	if _, err := Get(ctx, db, indexCountKey(bucket), &count); err != nil {
		return 0, err
	}
	return count, nil
}

// IndexSlice returns the IDs stored at positions [start, end) of bucket.
// Positions with no stored entry are skipped rather than reported as errors.
func IndexSlice(ctx context.Context, db *gorm.DB, bucket Key, start, end uint64) ([]uint64, error) {
	ids := make([]uint64, 0, end-start)
	for pos := start; pos < end; pos++ {
		var id uint64
		ok, err := Get(ctx, db, indexEntryKey(bucket, pos), &id)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}
