package session

import (
	"context"
	"sync"
	"time"

	"banking-chatbot/engine/internal/models"

	"github.com/google/uuid"
)

// MemoryStore is an in-process Store for tests and development. One mutex
// covers the whole map, which trivially satisfies the per-session
// serialization requirement.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]*models.Session
}

// NewMemoryStore creates an empty in-memory session store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]*models.Session)}
}

func (s *MemoryStore) Create(_ context.Context, channel, owner, initialState string, data models.DataBag, ttl time.Duration) (*models.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	for _, sess := range s.sessions {
		if sess.Channel == channel && sess.Owner == owner && sess.Status == models.SessionActive {
			sess.Status = models.SessionEnded
			sess.UpdatedAt = now
		}
	}

	sess := &models.Session{
		ID:        uuid.New().String(),
		Channel:   channel,
		Owner:     owner,
		State:     initialState,
		Data:      data.Copy(),
		Status:    models.SessionActive,
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
	if sess.Data == nil {
		sess.Data = models.DataBag{}
	}
	s.sessions[sess.ID] = sess
	return copySession(sess), nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (*models.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok || !sess.Active(time.Now()) {
		return nil, nil
	}
	return copySession(sess), nil
}

func (s *MemoryStore) GetActiveByOwner(_ context.Context, channel, owner string) (*models.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	for _, sess := range s.sessions {
		if sess.Channel == channel && sess.Owner == owner && sess.Active(now) {
			return copySession(sess), nil
		}
	}
	return nil, nil
}

func (s *MemoryStore) Update(_ context.Context, id string, patch Patch) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	now := time.Now()
	if !ok || !sess.Active(now) {
		return false, nil
	}

	sess.Data = sess.Data.Merge(patch.Data)
	if patch.State != "" {
		sess.State = patch.State
	}
	if patch.ExtendTTL > 0 {
		sess.ExpiresAt = now.Add(patch.ExtendTTL)
	}
	sess.Version++
	sess.UpdatedAt = now
	return true, nil
}

func (s *MemoryStore) End(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok || sess.Status != models.SessionActive {
		return false, nil
	}
	sess.Status = models.SessionEnded
	sess.UpdatedAt = time.Now()
	return true, nil
}

func copySession(sess *models.Session) *models.Session {
	clone := *sess
	clone.Data = sess.Data.Copy()
	return &clone
}
