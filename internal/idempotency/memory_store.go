package idempotency

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"erp-connector-service/internal/models"
)

// MemoryStore is an in-process Store. Suitable for a single-instance
// deployment and for tests; multi-instance deployments should use the
// database-backed store so duplicates are deduplicated across processes.
type MemoryStore struct {
	mu      sync.Mutex
	records map[string]*models.IdempotencyRecord
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[string]*models.IdempotencyRecord),
	}
}

// Get returns the live record for (key, fingerprint), or nil
func (s *MemoryStore) Get(ctx context.Context, key, fingerprint string) (*models.IdempotencyRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.records[recordID(key, fingerprint)]
	if !ok {
		return nil, nil
	}
	if record.Expired(time.Now()) {
		delete(s.records, recordID(key, fingerprint))
		return nil, nil
	}
	copy := *record
	return &copy, nil
}

// Insert atomically stores the record unless a live one already exists
func (s *MemoryStore) Insert(ctx context.Context, record *models.IdempotencyRecord) (bool, *models.IdempotencyRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := recordID(record.Key, record.Fingerprint)
	if existing, ok := s.records[id]; ok && !existing.Expired(time.Now()) {
		copy := *existing
		return false, &copy, nil
	}

	stored := *record
	if stored.ID == uuid.Nil {
		stored.ID = uuid.New()
	}
	s.records[id] = &stored
	return true, nil, nil
}

// Purge removes expired records
func (s *MemoryStore) Purge(ctx context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var purged int64
	for id, record := range s.records {
		if record.Expired(now) {
			delete(s.records, id)
			purged++
		}
	}
	return purged, nil
}

func recordID(key, fingerprint string) string {
	return key + ":" + fingerprint
}
