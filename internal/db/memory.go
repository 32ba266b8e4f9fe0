package db

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"earcheck/pkg"
)

// MemoryStore keeps sessions in process memory.  It is used when no
// DATABASE_URL is configured and in tests; everything is lost on restart.
type MemoryStore struct {
	mu        sync.Mutex
	sessions  map[string]*pkg.Session
	summaries map[string][]pkg.SummaryRecord
	now       func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions:  make(map[string]*pkg.Session),
		summaries: make(map[string][]pkg.SummaryRecord),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (m *MemoryStore) CreateSession(_ context.Context, audience pkg.Audience) (pkg.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	s := &pkg.Session{ID: uuid.NewString(), Audience: audience, Events: []pkg.AnswerEvent{}, CreatedAt: now, UpdatedAt: now}
	m.sessions[s.ID] = s
	return copySession(s), nil
}

func (m *MemoryStore) GetSession(_ context.Context, id string) (pkg.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return pkg.Session{}, fmt.Errorf("session %q: %w", id, ErrNotFound)
	}
	return copySession(s), nil
}

func (m *MemoryStore) AppendEvent(_ context.Context, sessionID string, seq int, ev pkg.AnswerEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return fmt.Errorf("session %q: %w", sessionID, ErrNotFound)
	}
	if seq != len(s.Events) {
		return fmt.Errorf("session %q event %d: %w", sessionID, seq, ErrConflict)
	}
	s.Events = append(s.Events, ev)
	s.UpdatedAt = m.now()
	return nil
}

func (m *MemoryStore) TruncateEvents(_ context.Context, sessionID string, keep int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return fmt.Errorf("session %q: %w", sessionID, ErrNotFound)
	}
	if keep < len(s.Events) {
		s.Events = s.Events[:max(keep, 0):max(keep, 0)]
	}
	s.UpdatedAt = m.now()
	return nil
}

func (m *MemoryStore) SaveSummary(_ context.Context, rec pkg.SummaryRecord) (pkg.SummaryRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[rec.SessionID]; !ok {
		return pkg.SummaryRecord{}, fmt.Errorf("session %q: %w", rec.SessionID, ErrNotFound)
	}
	rec.ID = uuid.NewString()
	rec.CreatedAt = m.now()
	m.summaries[rec.SessionID] = append(m.summaries[rec.SessionID], rec)
	return rec, nil
}

func (m *MemoryStore) LatestSummary(_ context.Context, sessionID string) (pkg.SummaryRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	recs := m.summaries[sessionID]
	if len(recs) == 0 {
		return pkg.SummaryRecord{}, fmt.Errorf("summary for session %q: %w", sessionID, ErrNotFound)
	}
	return recs[len(recs)-1], nil
}

func copySession(s *pkg.Session) pkg.Session {
	out := *s
	out.Events = make([]pkg.AnswerEvent, len(s.Events))
	copy(out.Events, s.Events)
	return out
}
