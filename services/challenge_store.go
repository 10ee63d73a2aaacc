package services

import (
	"context"
	"errors"

	"duel-engine/models"

	"gorm.io/gorm"
)

// streakLookback bounds how many past challenges are scanned for a solve streak.
const streakLookback = 50

// ChallengeStore persists challenges and their participants.
type ChallengeStore struct {
	DB *gorm.DB
}

func NewChallengeStore(db *gorm.DB) *ChallengeStore {
	return &ChallengeStore{DB: db}
}

// WithTx returns a store whose queries run inside tx.
func (s *ChallengeStore) WithTx(tx *gorm.DB) *ChallengeStore {
	return &ChallengeStore{DB: tx}
}

func orderedParticipants(db *gorm.DB) *gorm.DB {
	return db.Order("position ASC")
}

// Create inserts the challenge and its participant rows.
func (s *ChallengeStore) Create(ctx context.Context, ch *models.Challenge) error {
	return s.DB.WithContext(ctx).Create(ch).Error
}

// Get loads one challenge with participants. Missing challenges yield ErrNotFound.
func (s *ChallengeStore) Get(ctx context.Context, id string) (*models.Challenge, error) {
	var ch models.Challenge
	err := s.DB.WithContext(ctx).
		Preload("Participants", orderedParticipants).
		First(&ch, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, notFound("challenge %s not found", id)
	}
	if err != nil {
		return nil, err
	}
	return &ch, nil
}

// ListActive returns every active challenge, oldest deadline first.
func (s *ChallengeStore) ListActive(ctx context.Context) ([]models.Challenge, error) {
	var challenges []models.Challenge
	err := s.DB.WithContext(ctx).
		Preload("Participants", orderedParticipants).
		Where("status = ?", models.ChallengeStatusActive).
		Order("ends_at ASC").
		Find(&challenges).Error
	return challenges, err
}

// GetActiveForUsers maps each given user that is enrolled in an active challenge to it.
func (s *ChallengeStore) GetActiveForUsers(ctx context.Context, userIDs []string) (map[string]models.Challenge, error) {
	out := make(map[string]models.Challenge)
	if len(userIDs) == 0 {
		return out, nil
	}

	var rows []struct {
		UserID      string
		ChallengeID string
	}
	err := s.DB.WithContext(ctx).
		Table("challenge_participants").
		Select("challenge_participants.user_id, challenge_participants.challenge_id").
		Joins("JOIN challenges ON challenges.id = challenge_participants.challenge_id").
		Where("challenges.status = ? AND challenges.deleted_at IS NULL", models.ChallengeStatusActive).
		Where("challenge_participants.user_id IN ?", userIDs).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return out, nil
	}

	ids := make([]string, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.ChallengeID)
	}
	var challenges []models.Challenge
	if err := s.DB.WithContext(ctx).
		Preload("Participants", orderedParticipants).
		Where("id IN ?", ids).
		Find(&challenges).Error; err != nil {
		return nil, err
	}
	byID := make(map[string]models.Challenge, len(challenges))
	for _, ch := range challenges {
		byID[ch.ID] = ch
	}
	for _, r := range rows {
		if ch, ok := byID[r.ChallengeID]; ok {
			out[r.UserID] = ch
		}
	}
	return out, nil
}

// ListActiveForUser returns the active challenges the user is enrolled in.
func (s *ChallengeStore) ListActiveForUser(ctx context.Context, userID string) ([]models.Challenge, error) {
	var challenges []models.Challenge
	err := s.DB.WithContext(ctx).
		Preload("Participants", orderedParticipants).
		Joins("JOIN challenge_participants cp ON cp.challenge_id = challenges.id").
		Where("challenges.status = ? AND cp.user_id = ?", models.ChallengeStatusActive, userID).
		Order("challenges.ends_at ASC").
		Find(&challenges).Error
	return challenges, err
}

// ListRecentCompleted returns completed challenges of a scope, most recently completed first.
func (s *ChallengeStore) ListRecentCompleted(ctx context.Context, scopeID string, limit int) ([]models.Challenge, error) {
	var challenges []models.Challenge
	q := s.DB.WithContext(ctx).
		Preload("Participants", orderedParticipants).
		Where("status = ?", models.ChallengeStatusCompleted)
	if scopeID != "" {
		q = q.Where("scope_id = ?", scopeID)
	}
	err := q.Order("completed_at DESC").Limit(limit).Find(&challenges).Error
	return challenges, err
}

// Touch bumps check_index and records the summary bucket, but only while the challenge
// is still active. It reports false when another writer already ended the challenge.
func (s *ChallengeStore) Touch(ctx context.Context, id string, bucket int) (bool, error) {
	res := s.DB.WithContext(ctx).Model(&models.Challenge{}).
		Where("id = ? AND status = ?", id, models.ChallengeStatusActive).
		Updates(map[string]interface{}{
			"check_index":    gorm.Expr("check_index + 1"),
			"summary_bucket": bucket,
		})
	return res.RowsAffected > 0, res.Error
}

// Transition moves an active challenge to a terminal status. The status guard makes a
// racing cancel and completion resolve to exactly one winner.
func (s *ChallengeStore) Transition(ctx context.Context, id, to string, at int64) (bool, error) {
	res := s.DB.WithContext(ctx).Model(&models.Challenge{}).
		Where("id = ? AND status = ?", id, models.ChallengeStatusActive).
		Updates(map[string]interface{}{
			"status":       to,
			"completed_at": at,
		})
	return res.RowsAffected > 0, res.Error
}

// RecordSolve stores the first accepted submission of a participant together with the
// reward. It reports false if the participant was already solved.
func (s *ChallengeStore) RecordSolve(ctx context.Context, participantID string, solvedAt, submissionID int64, delta int) (bool, error) {
	res := s.DB.WithContext(ctx).Model(&models.ChallengeParticipant{}).
		Where("id = ? AND solved_at IS NULL AND rating_delta IS NULL", participantID).
		Updates(map[string]interface{}{
			"solved_at":     solvedAt,
			"submission_id": submissionID,
			"rating_delta":  delta,
		})
	return res.RowsAffected > 0, res.Error
}

// RecordDelta stores the penalty of an unsolved participant. It reports false if a
// delta was already written.
func (s *ChallengeStore) RecordDelta(ctx context.Context, participantID string, delta int) (bool, error) {
	res := s.DB.WithContext(ctx).Model(&models.ChallengeParticipant{}).
		Where("id = ? AND rating_delta IS NULL", participantID).
		Update("rating_delta", delta)
	return res.RowsAffected > 0, res.Error
}

// SolveStreak counts the user's consecutive solved challenges in a scope, newest first,
// ignoring excludeID.
func (s *ChallengeStore) SolveStreak(ctx context.Context, scopeID, userID, excludeID string) (int, error) {
	var rows []struct {
		SolvedAt *int64
	}
	err := s.DB.WithContext(ctx).
		Table("challenge_participants").
		Select("challenge_participants.solved_at").
		Joins("JOIN challenges ON challenges.id = challenge_participants.challenge_id").
		Where("challenges.scope_id = ? AND challenges.status = ? AND challenges.id <> ?",
			scopeID, models.ChallengeStatusCompleted, excludeID).
		Where("challenge_participants.user_id = ?", userID).
		Order("challenges.completed_at DESC").
		Limit(streakLookback).
		Scan(&rows).Error
	if err != nil {
		return 0, err
	}
	streak := 0
	for _, r := range rows {
		if r.SolvedAt == nil {
			break
		}
		streak++
	}
	return streak, nil
}
