package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/hoteldesk/concierge/internal/core/domain"
)

// State is the per-session conversation context. LastTopic and LastChunks
// carry retrieval context into follow-up turns; both are cleared when the
// conversation moves to a new topic.
type State struct {
	ID         string
	PropertyID string
	History    []domain.ConversationTurn

	LastTopic    string
	LastCategory string
	LastChunks   []domain.EvidenceRecord

	CreatedAt time.Time
	LastSeen  time.Time
}

type entry struct {
	// turn serializes whole pipeline runs for one session; mu guards the
	// state for individual reads and writes within a run.
	turn  sync.Mutex
	mu    sync.Mutex
	state State
}

// Store keeps live sessions in memory with a TTL. A background sweep
// removes expired sessions; reads also expire lazily so a stale session is
// never served between sweeps.
type Store struct {
	ttl      time.Duration
	sweepInt time.Duration
	maxLive  int
	logger   *slog.Logger
	now      func() time.Time

	mu       sync.RWMutex
	sessions map[string]*entry
}

type Options struct {
	TTL           time.Duration
	SweepInterval time.Duration
	MaxSessions   int
	Logger        *slog.Logger

	// Clock override for tests.
	Now func() time.Time
}

func NewStore(opts Options) *Store {
	if opts.TTL <= 0 {
		opts.TTL = 30 * time.Minute
	}
	if opts.SweepInterval <= 0 {
		opts.SweepInterval = 5 * time.Minute
	}
	if opts.MaxSessions <= 0 {
		opts.MaxSessions = 1000
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Store{
		ttl:      opts.TTL,
		sweepInt: opts.SweepInterval,
		maxLive:  opts.MaxSessions,
		logger:   opts.Logger,
		now:      opts.Now,
		sessions: make(map[string]*entry),
	}
}

// Run drives the periodic sweep until ctx is cancelled.
func (s *Store) Run(ctx context.Context) {
	ticker := time.NewTicker(s.sweepInt)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed := s.sweep()
			if removed > 0 {
				s.logger.Debug("session_sweep", "removed", removed, "live", s.Len())
			}
		}
	}
}

func (s *Store) sweep() int {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, e := range s.sessions {
		if now.Sub(e.state.LastSeen) > s.ttl {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed
}

// BeginTurn blocks until no other turn is in flight for the session, then
// claims it. The returned release must be called when the turn's pipeline
// run is complete, including its history append. Two concurrent requests on
// one session therefore run strictly one after the other, and the second
// observes the first's exchange.
func (s *Store) BeginTurn(id, propertyID string) (release func()) {
	e := s.acquire(id, propertyID)
	e.turn.Lock()
	return e.turn.Unlock
}

// Snapshot returns a copy of the session state, creating the session if it
// does not exist or has expired. The copy is safe for the caller to read
// while other requests mutate the session.
func (s *Store) Snapshot(id, propertyID string) State {
	e := s.acquire(id, propertyID)
	e.mu.Lock()
	defer e.mu.Unlock()

	snap := e.state
	snap.History = append([]domain.ConversationTurn(nil), e.state.History...)
	snap.LastChunks = append([]domain.EvidenceRecord(nil), e.state.LastChunks...)
	return snap
}

// AppendExchange records the user turn and the assistant turn together, so a
// concurrent reader never observes a user turn without its reply.
func (s *Store) AppendExchange(id, propertyID, userText, assistantText string) {
	e := s.acquire(id, propertyID)
	e.mu.Lock()
	defer e.mu.Unlock()

	e.state.History = append(e.state.History,
		domain.ConversationTurn{Role: domain.RoleUser, Content: userText},
		domain.ConversationTurn{Role: domain.RoleAssistant, Content: assistantText},
	)
	e.state.LastSeen = s.now()
}

// SetContext updates the carried topic, category, and chunk cache after a
// successfully answered turn. Passing an empty topic clears the carry-over.
func (s *Store) SetContext(id, propertyID, topic, category string, chunks []domain.EvidenceRecord) {
	e := s.acquire(id, propertyID)
	e.mu.Lock()
	defer e.mu.Unlock()

	e.state.LastTopic = topic
	e.state.LastCategory = category
	if topic == "" {
		e.state.LastChunks = nil
	} else {
		e.state.LastChunks = append([]domain.EvidenceRecord(nil), chunks...)
	}
	e.state.LastSeen = s.now()
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

func (s *Store) acquire(id, propertyID string) *entry {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.sessions[id]; ok {
		if now.Sub(e.state.LastSeen) <= s.ttl {
			e.state.LastSeen = now
			return e
		}
		delete(s.sessions, id)
	}

	if len(s.sessions) >= s.maxLive {
		s.evictOldestLocked()
	}

	e := &entry{state: State{
		ID:         id,
		PropertyID: propertyID,
		CreatedAt:  now,
		LastSeen:   now,
	}}
	s.sessions[id] = e
	return e
}

func (s *Store) evictOldestLocked() {
	var oldestID string
	var oldest time.Time
	for id, e := range s.sessions {
		if oldestID == "" || e.state.LastSeen.Before(oldest) {
			oldestID = id
			oldest = e.state.LastSeen
		}
	}
	if oldestID != "" {
		delete(s.sessions, oldestID)
		s.logger.Warn("session_evicted", "session_id", oldestID, "live", len(s.sessions)-1)
	}
}
