package orders

import (
	"context"
	"sync"
	"time"

	"github.com/troopfundraiser/frclient/pkg/backend"
	"github.com/troopfundraiser/frclient/pkg/logger"
)

const defaultStoreIdleTTL = 12 * time.Hour

// Stores keeps one Store per session, so the submission guard applies to each signed-in user.
// Sessions logged out by another process never reach Forget here, so entries idle for
// longer than the idle TTL are dropped lazily by For.
type Stores struct {
	caller   backend.Caller
	identity IdentitySource
	logg     *logger.Logger
	idleTTL  time.Duration
	now      func() time.Time

	mu        sync.Mutex
	stores    map[string]*sessionStore
	lastSweep time.Time
}

type sessionStore struct {
	store    *Store
	lastUsed time.Time
}

// StoresOption customizes NewStores.
type StoresOption func(*Stores)

// WithIdleTTL sets how long an unused session Store is kept. Non-positive values are ignored.
func WithIdleTTL(ttl time.Duration) StoresOption {
	return func(s *Stores) {
		if ttl > 0 {
			s.idleTTL = ttl
		}
	}
}

func NewStores(caller backend.Caller, identity IdentitySource, logg *logger.Logger, opts ...StoresOption) (*Stores, error) {
	if _, err := NewStore(caller, identity, logg); err != nil {
		return nil, err
	}
	if logg == nil {
		logg = logger.Nop()
	}
	s := &Stores{
		caller:   caller,
		identity: identity,
		logg:     logg,
		idleTTL:  defaultStoreIdleTTL,
		now:      time.Now,
		stores:   map[string]*sessionStore{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s, nil
}

// For returns the Store of sessionID, creating it on first use.
func (s *Stores) For(sessionID string) *Store {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.sweepLocked(now)
	if entry, ok := s.stores[sessionID]; ok {
		entry.lastUsed = now
		return entry.store
	}
	st := &Store{caller: s.caller, identity: s.identity, logg: s.logg}
	s.stores[sessionID] = &sessionStore{store: st, lastUsed: now}
	return st
}

// sweepLocked drops idle entries at most once per half idle TTL.
// A Store with a submission in flight is kept.
func (s *Stores) sweepLocked(now time.Time) {
	if now.Sub(s.lastSweep) < s.idleTTL/2 {
		return
	}
	s.lastSweep = now
	for id, entry := range s.stores {
		if now.Sub(entry.lastUsed) < s.idleTTL {
			continue
		}
		if !entry.store.inflight.TryLock() {
			continue
		}
		entry.store.inflight.Unlock()
		delete(s.stores, id)
	}
}

// Len reports how many session Stores are held.
func (s *Stores) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.stores)
}

// Forget drops the Store of sessionID. It has the session logout hook signature.
func (s *Stores) Forget(_ context.Context, sessionID string) error {
	s.mu.Lock()
	delete(s.stores, sessionID)
	s.mu.Unlock()
	return nil
}
