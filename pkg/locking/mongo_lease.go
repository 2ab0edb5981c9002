package locking

import (
	"context"
	"fmt"
	"sync"
	"time"

	"minidoodle/pkg/logger"
	"minidoodle/pkg/model"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

const (
	LeaseCollection = "Slot_locks"

	leaseInitialBackoff = 5 * time.Millisecond
	leaseMaxBackoff     = 200 * time.Millisecond
	leaseReleaseTimeout = 5 * time.Second
)

// MongoLeaseLocker stores one document per held key. A duplicate _id means
// the key is held; expired leases are taken over so a crashed holder cannot
// wedge a slot forever.
type MongoLeaseLocker struct {
	collection  *mongo.Collection
	ttl         time.Duration
	waitTimeout time.Duration
	log         *logger.Logger
}

func NewMongoLeaseLocker(db *mongo.Database, ttl, waitTimeout time.Duration, log *logger.Logger) *MongoLeaseLocker {
	return &MongoLeaseLocker{
		collection:  db.Collection(LeaseCollection),
		ttl:         ttl,
		waitTimeout: waitTimeout,
		log:         log,
	}
}

func (l *MongoLeaseLocker) Lock(ctx context.Context, key string) (Unlock, error) {
	waitCtx, cancel := withWait(ctx, l.waitTimeout)
	defer cancel()

	token := uuid.NewString()
	backoff := leaseInitialBackoff

	for {
		now := time.Now().UTC()
		lease := model.Lease{
			Key:       key,
			Token:     token,
			ExpiresAt: now.Add(l.ttl),
			CreatedAt: now,
		}

		_, err := l.collection.InsertOne(waitCtx, lease)
		if err == nil {
			return l.unlocker(key, token), nil
		}
		if !mongo.IsDuplicateKeyError(err) {
			if waitCtx.Err() != nil {
				return nil, fmt.Errorf("%w: %s: %v", ErrLockTimeout, key, waitCtx.Err())
			}
			return nil, fmt.Errorf("failed to acquire lease %s: %w", key, err)
		}

		res, err := l.collection.DeleteOne(waitCtx, bson.M{
			"_id":        key,
			"expires_at": bson.M{"$lt": now},
		})
		if err == nil && res.DeletedCount > 0 {
			continue
		}

		select {
		case <-time.After(backoff):
		case <-waitCtx.Done():
			return nil, fmt.Errorf("%w: %s: %v", ErrLockTimeout, key, waitCtx.Err())
		}
		backoff = min(backoff*2, leaseMaxBackoff)
	}
}

// unlocker deletes only the lease this caller inserted, so a holder whose
// lease expired and was taken over cannot release the new owner's lock.
func (l *MongoLeaseLocker) unlocker(key, token string) Unlock {
	return releaseOnce(l.log, key, func(ctx context.Context) error {
		_, err := l.collection.DeleteOne(ctx, bson.M{"_id": key, "token": token})
		return err
	})
}

// releaseOnce runs release at most once. A failed release leaves the lease
// in place until it expires.
func releaseOnce(log *logger.Logger, key string, release func(ctx context.Context) error) Unlock {
	var once sync.Once
	return func() {
		once.Do(func() {
			ctx, cancel := context.WithTimeout(context.Background(), leaseReleaseTimeout)
			defer cancel()
			if err := release(ctx); err != nil {
				log.Error("Failed to release lease, key stays locked until expiry", "key", key, "error", err)
			}
		})
	}
}
