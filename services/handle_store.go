package services

import (
	"context"
	"errors"

	"duel-engine/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DefaultRating is assigned to a user when a handle is first linked.
const DefaultRating = 1500

// GormHandleStore keeps linked handles and ratings in the relational store.
type GormHandleStore struct {
	DB *gorm.DB
}

func NewGormHandleStore(db *gorm.DB) *GormHandleStore {
	return &GormHandleStore{DB: db}
}

func (s *GormHandleStore) WithTx(tx *gorm.DB) HandleStore {
	return &GormHandleStore{DB: tx}
}

func (s *GormHandleStore) find(ctx context.Context, scopeID, userID string) (*models.LinkedHandle, error) {
	var h models.LinkedHandle
	err := s.DB.WithContext(ctx).
		Where("scope_id = ? AND user_id = ?", scopeID, userID).
		First(&h).Error
	if err != nil {
		return nil, err
	}
	return &h, nil
}

// GetRating returns the persisted rating, or DefaultRating for users that never linked.
func (s *GormHandleStore) GetRating(ctx context.Context, scopeID, userID string) (int, error) {
	h, err := s.find(ctx, scopeID, userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return DefaultRating, nil
	}
	if err != nil {
		return 0, err
	}
	return h.Rating, nil
}

func (s *GormHandleStore) UpdateRating(ctx context.Context, scopeID, userID string, rating int) error {
	res := s.DB.WithContext(ctx).Model(&models.LinkedHandle{}).
		Where("scope_id = ? AND user_id = ?", scopeID, userID).
		Update("rating", rating)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return notFound("no linked handle for user %s in scope %s", userID, scopeID)
	}
	return nil
}

func (s *GormHandleStore) GetLinkedHandle(ctx context.Context, scopeID, userID string) (string, bool, error) {
	h, err := s.find(ctx, scopeID, userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return h.Handle, true, nil
}

// LinkHandle creates or re-points a user's handle. The rating of an existing link is kept.
func (s *GormHandleStore) LinkHandle(ctx context.Context, scopeID, userID, handle string) error {
	link := models.LinkedHandle{
		ID:      uuid.NewString(),
		ScopeID: scopeID,
		UserID:  userID,
		Handle:  handle,
		Rating:  DefaultRating,
	}
	return s.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "scope_id"}, {Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"handle", "updated_at"}),
	}).Create(&link).Error
}
