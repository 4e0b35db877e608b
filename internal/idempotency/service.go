package idempotency

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"erp-connector-service/internal/models"
)

// DefaultRetention is how long a stored result is replayed before the
// operation may execute again. Retention is a configuration knob, not a
// hard invariant.
const DefaultRetention = 24 * time.Hour

// Store persists idempotency records. Insert must be atomic per
// (key, fingerprint): when two concurrent identical operations race, only
// one insert wins and the loser receives the stored record.
type Store interface {
	// Get returns the stored record for (key, fingerprint), or nil when
	// unknown or expired
	Get(ctx context.Context, key, fingerprint string) (*models.IdempotencyRecord, error)
	// Insert stores the record; when a live record for the same
	// (key, fingerprint) already exists, created=false and the existing
	// record is returned
	Insert(ctx context.Context, record *models.IdempotencyRecord) (created bool, existing *models.IdempotencyRecord, err error)
	// Purge removes records whose retention window has elapsed
	Purge(ctx context.Context, now time.Time) (int64, error)
}

// Operation is a side-effecting closure guarded by the service. Its
// result must be JSON-serializable so it can be replayed.
type Operation func(ctx context.Context) (interface{}, error)

// Service guarantees that a wrapped operation executes its side effect
// at most once per (key, payload fingerprint). Duplicate calls replay
// the stored result without invoking the operation. A failed operation
// stores nothing, so a retry re-attempts the full operation.
type Service struct {
	store     Store
	retention time.Duration
	log       *logrus.Entry

	// inflight serializes concurrent identical operations so the
	// check-then-execute-then-insert sequence is atomic per fingerprint.
	// Entries are reference counted and removed once the last holder
	// releases, so the map does not grow with every distinct batch.
	mu       sync.Mutex
	inflight map[string]*opLock
}

type opLock struct {
	mu   sync.Mutex
	refs int
}

// NewService creates an idempotency service backed by the given store
func NewService(store Store, retention time.Duration) *Service {
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &Service{
		store:     store,
		retention: retention,
		log:       logrus.WithField("component", "idempotency"),
		inflight:  make(map[string]*opLock),
	}
}

// Fingerprint derives the payload fingerprint: SHA-256 over the
// serialized payload
func Fingerprint(payload interface{}) (string, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to serialize payload: %w", err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// Result is the outcome of a guarded operation
type Result struct {
	// Value is the operation result as JSON
	Value json.RawMessage
	// Replayed is true when the result came from a stored record instead
	// of a fresh execution
	Replayed bool
	// Fingerprint is the payload fingerprint the result is stored under
	Fingerprint string
}

// Do executes op at most once per (key, payload fingerprint). Identical
// duplicate calls, concurrent or sequential, observe the first call's
// stored result. A different payload under the same key is a different
// fingerprint and executes independently.
func (s *Service) Do(ctx context.Context, key string, payload interface{}, op Operation) (*Result, error) {
	fingerprint, err := Fingerprint(payload)
	if err != nil {
		return nil, err
	}

	lockID := key + ":" + fingerprint
	lock := s.acquire(lockID)
	defer s.release(lockID, lock)

	record, err := s.store.Get(ctx, key, fingerprint)
	if err != nil {
		return nil, fmt.Errorf("idempotency lookup failed: %w", err)
	}
	if record != nil {
		s.log.WithFields(logrus.Fields{"key": key, "fingerprint": fingerprint}).
			Debug("replaying stored result")
		return &Result{
			Value:       json.RawMessage(record.Result),
			Replayed:    true,
			Fingerprint: fingerprint,
		}, nil
	}

	value, err := op(ctx)
	if err != nil {
		// No record on failure: the next identical call re-attempts the
		// full operation.
		return nil, err
	}

	encoded, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize operation result: %w", err)
	}

	now := time.Now()
	created, existing, err := s.store.Insert(ctx, &models.IdempotencyRecord{
		Key:         key,
		Fingerprint: fingerprint,
		Result:      models.RawJSON(encoded),
		StoredAt:    now,
		ExpiresAt:   now.Add(s.retention),
	})
	if err != nil {
		return nil, fmt.Errorf("idempotency store failed: %w", err)
	}
	if !created && existing != nil {
		// Lost an insert race with an identical operation in another
		// process; its result wins.
		return &Result{
			Value:       json.RawMessage(existing.Result),
			Replayed:    true,
			Fingerprint: fingerprint,
		}, nil
	}

	return &Result{
		Value:       encoded,
		Replayed:    false,
		Fingerprint: fingerprint,
	}, nil
}

// Purge drops expired records
func (s *Service) Purge(ctx context.Context) (int64, error) {
	return s.store.Purge(ctx, time.Now())
}

// acquire registers interest in the (key, fingerprint) lock and blocks
// until it is held
func (s *Service) acquire(id string) *opLock {
	s.mu.Lock()
	lock, ok := s.inflight[id]
	if !ok {
		lock = &opLock{}
		s.inflight[id] = lock
	}
	lock.refs++
	s.mu.Unlock()

	lock.mu.Lock()
	return lock
}

// release unlocks and drops the map entry once the last holder is done
func (s *Service) release(id string, lock *opLock) {
	lock.mu.Unlock()

	s.mu.Lock()
	lock.refs--
	if lock.refs == 0 {
		delete(s.inflight, id)
	}
	s.mu.Unlock()
}
