// Package idempotency remembers the outcome of each client-keyed request so
// repeats of the same logical request return the original result.
package idempotency

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/yungbote/agreement-orchestrator/internal/domain/agreement"
)

var (
	// ErrConflict means the key is bound to a different request payload.
	ErrConflict = errors.New("idempotency: key reused with a different request")
	// ErrRecordExists means a record for the key was already written.
	ErrRecordExists = errors.New("idempotency: record already exists")
	// ErrClaimNotHeld means Complete or Release was called with a stale claim.
	ErrClaimNotHeld = errors.New("idempotency: claim not held")
)

// Record is the cached outcome for one key. It is never modified after insert.
type Record struct {
	Fingerprint string
	Response    agreement.Response
	CreatedAt   time.Time
}

type Decision int

const (
	// DecisionAcquired: the caller owns the key and must Complete or Release it.
	DecisionAcquired Decision = iota + 1
	// DecisionReplay: a record exists for the same request; Claim.Record is set.
	DecisionReplay
)

func (d Decision) String() string {
	switch d {
	case DecisionAcquired:
		return "acquired"
	case DecisionReplay:
		return "replay"
	default:
		return "unknown"
	}
}

type Claim struct {
	Key         string
	Fingerprint string
	Decision    Decision
	Record      Record

	token uint64
}

type inflight struct {
	fingerprint string
	token       uint64
	done        chan struct{}
}

// Store is an in-memory idempotency cache safe for concurrent use. Records
// live for the lifetime of the process.
type Store struct {
	mu       sync.Mutex
	records  map[string]Record
	inflight map[string]*inflight
	seq      uint64
	now      func() time.Time
}

func NewStore() *Store {
	return &Store{
		records:  make(map[string]Record),
		inflight: make(map[string]*inflight),
		now:      time.Now,
	}
}

// Get returns the stored record for key.
func (s *Store) Get(key string) (Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[key]
	return rec, ok
}

// ValidateSameRequest reports whether req may be processed under key: true
// if the key is unseen or bound to the same request fingerprint.
func (s *Store) ValidateSameRequest(key string, req agreement.Request) bool {
	fp := agreement.Fingerprint(req)
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec, ok := s.records[key]; ok {
		return rec.Fingerprint == fp
	}
	if f, ok := s.inflight[key]; ok {
		return f.fingerprint == fp
	}
	return true
}

// Put stores the outcome of req under key. Existing records are never
// overwritten.
func (s *Store) Put(key string, req agreement.Request, resp agreement.Response) (Record, error) {
	fp := agreement.Fingerprint(req)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[key]; ok {
		return Record{}, fmt.Errorf("%w: %s", ErrRecordExists, key)
	}
	rec := Record{Fingerprint: fp, Response: resp, CreatedAt: s.now()}
	s.records[key] = rec
	return rec, nil
}

// Claim decides atomically how a request under key proceeds. When another
// caller holds the key for the same payload, Claim waits for it to finish and
// then decides again. It returns ErrConflict for a payload mismatch and
// ctx.Err() if ctx ends while waiting.
func (s *Store) Claim(ctx context.Context, key string, req agreement.Request) (Claim, error) {
	fp := agreement.Fingerprint(req)
	for {
		s.mu.Lock()
		if rec, ok := s.records[key]; ok {
			s.mu.Unlock()
			if rec.Fingerprint != fp {
				return Claim{}, ErrConflict
			}
			return Claim{Key: key, Fingerprint: fp, Decision: DecisionReplay, Record: rec}, nil
		}
		if f, ok := s.inflight[key]; ok {
			s.mu.Unlock()
			if f.fingerprint != fp {
				return Claim{}, ErrConflict
			}
			select {
			case <-f.done:
				continue
			case <-ctx.Done():
				return Claim{}, ctx.Err()
			}
		}
		s.seq++
		f := &inflight{fingerprint: fp, token: s.seq, done: make(chan struct{})}
		s.inflight[key] = f
		s.mu.Unlock()
		return Claim{Key: key, Fingerprint: fp, Decision: DecisionAcquired, token: f.token}, nil
	}
}

// Complete turns an acquired claim into a permanent record and wakes waiters.
func (s *Store) Complete(c Claim, resp agreement.Response) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.inflight[c.Key]
	if !ok || f.token != c.token {
		return Record{}, ErrClaimNotHeld
	}
	delete(s.inflight, c.Key)
	close(f.done)
	if _, exists := s.records[c.Key]; exists {
		return Record{}, fmt.Errorf("%w: %s", ErrRecordExists, c.Key)
	}
	rec := Record{Fingerprint: c.Fingerprint, Response: resp, CreatedAt: s.now()}
	s.records[c.Key] = rec
	return rec, nil
}

// Release drops an acquired claim without recording an outcome. Waiters
// re-evaluate and one of them acquires the key.
func (s *Store) Release(c Claim) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.inflight[c.Key]
	if !ok || f.token != c.token {
		return
	}
	delete(s.inflight, c.Key)
	close(f.done)
}

// Len returns the number of stored records.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}
