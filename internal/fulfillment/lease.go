package fulfillment

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrRecordLeased means another worker holds the record; the caller must
// skip it rather than wait.
var ErrRecordLeased = errors.New("fulfillment record is leased by another worker")

const recordLeaseKeyPrefix = "fulfillment:record-lease:"

type leaseStore interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Del(ctx context.Context, keys ...string) error
}

// RecordLeaser implements per-record mutual exclusion with a redis SETNX
// lease. The TTL bounds how long a crashed worker can block a record.
type RecordLeaser struct {
	store leaseStore
}

func NewRecordLeaser(store leaseStore) *RecordLeaser {
	return &RecordLeaser{store: store}
}

func (l *RecordLeaser) AcquireRecord(ctx context.Context, recordID uuid.UUID, ttl time.Duration) (func(), error) {
	key := recordLeaseKeyPrefix + recordID.String()
	acquired, err := l.store.SetNX(ctx, key, uuid.NewString(), ttl)
	if err != nil {
		return nil, err
	}
	if !acquired {
		return nil, ErrRecordLeased
	}
	release := func() {
		// TTL expiry covers a failed Del.
		_ = l.store.Del(context.WithoutCancel(ctx), key)
	}
	return release, nil
}
