package session

import (
	"context"
	"errors"
	"time"

	"banking-chatbot/engine/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// casRetries bounds how often an update re-reads and re-applies after losing
// the version race to a concurrent writer for the same session.
const casRetries = 3

// GormStore persists sessions in postgres. Updates are serialized per
// session id with an optimistic version column: state and single-valued
// fields get strict ordering, data merges are reapplied on conflict.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore creates a session store over the given database.
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) Create(ctx context.Context, channel, owner, initialState string, data models.DataBag, ttl time.Duration) (*models.Session, error) {
	now := time.Now()
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

	// Ending priors and inserting the new session share one transaction so
	// two concurrent creates for the same owner cannot both stay active.
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Session{}).
			Where("channel = ? AND owner = ? AND status = ?", channel, owner, models.SessionActive).
			Updates(map[string]any{"status": models.SessionEnded, "updated_at": now}).Error; err != nil {
			return err
		}
		return tx.Create(sess).Error
	})
	if err != nil {
		return nil, err
	}
	return sess, nil
}

func (s *GormStore) Get(ctx context.Context, id string) (*models.Session, error) {
	var sess models.Session
	err := s.db.WithContext(ctx).First(&sess, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	if !sess.Active(time.Now()) {
		return nil, nil
	}
	return &sess, nil
}

func (s *GormStore) GetActiveByOwner(ctx context.Context, channel, owner string) (*models.Session, error) {
	var sess models.Session
	err := s.db.WithContext(ctx).
		Where("channel = ? AND owner = ? AND status = ?", channel, owner, models.SessionActive).
		Order("created_at DESC").
		First(&sess).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	if !sess.Active(time.Now()) {
		return nil, nil
	}
	return &sess, nil
}

func (s *GormStore) Update(ctx context.Context, id string, patch Patch) (bool, error) {
	for i := 0; i < casRetries; i++ {
		var sess models.Session
		err := s.db.WithContext(ctx).First(&sess, "id = ?", id).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return false, nil
			}
			return false, err
		}

		now := time.Now()
		if !sess.Active(now) {
			return false, nil
		}

		updates := map[string]any{
			"data":       sess.Data.Copy().Merge(patch.Data),
			"version":    sess.Version + 1,
			"updated_at": now,
		}
		if patch.State != "" {
			updates["state"] = patch.State
		}
		if patch.ExtendTTL > 0 {
			updates["expires_at"] = now.Add(patch.ExtendTTL)
		}

		res := s.db.WithContext(ctx).Model(&models.Session{}).
			Where("id = ? AND version = ? AND status = ?", id, sess.Version, models.SessionActive).
			Updates(updates)
		if res.Error != nil {
			return false, res.Error
		}
		if res.RowsAffected == 1 {
			return true, nil
		}
		// Lost the version race; reload and reapply the merge.
	}
	return false, ErrConflict
}

func (s *GormStore) End(ctx context.Context, id string) (bool, error) {
	res := s.db.WithContext(ctx).Model(&models.Session{}).
		Where("id = ? AND status = ?", id, models.SessionActive).
		Updates(map[string]any{"status": models.SessionEnded, "updated_at": time.Now()})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}
