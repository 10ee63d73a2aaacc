package services

import (
	"context"
	"errors"

	"duel-engine/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// TournamentStore persists tournaments, their roster, rounds, matches and arena state.
type TournamentStore struct {
	DB *gorm.DB
}

func NewTournamentStore(db *gorm.DB) *TournamentStore {
	return &TournamentStore{DB: db}
}

func (s *TournamentStore) WithTx(tx *gorm.DB) *TournamentStore {
	return &TournamentStore{DB: tx}
}

func orderedBySeed(db *gorm.DB) *gorm.DB {
	return db.Order("seed ASC")
}

func (s *TournamentStore) CreateTournament(ctx context.Context, t *models.Tournament) error {
	return s.DB.WithContext(ctx).Create(t).Error
}

// GetTournament loads a tournament with its roster ordered by seed.
func (s *TournamentStore) GetTournament(ctx context.Context, id string) (*models.Tournament, error) {
	var t models.Tournament
	err := s.DB.WithContext(ctx).
		Preload("Participants", orderedBySeed).
		First(&t, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, notFound("tournament %s not found", id)
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// ListTournamentsPage returns one page of a scope's tournaments, newest first, and the total.
func (s *TournamentStore) ListTournamentsPage(ctx context.Context, scopeID string, offset, limit int) ([]models.Tournament, int64, error) {
	scoped := func() *gorm.DB {
		q := s.DB.WithContext(ctx).Model(&models.Tournament{})
		if scopeID != "" {
			q = q.Where("scope_id = ?", scopeID)
		}
		return q
	}
	var total int64
	if err := scoped().Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var tournaments []models.Tournament
	err := scoped().
		Preload("Participants", orderedBySeed).
		Order("created_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&tournaments).Error
	return tournaments, total, err
}

// TransitionTournament moves an active tournament to a terminal status.
func (s *TournamentStore) TransitionTournament(ctx context.Context, id, to string, at int64) (bool, error) {
	res := s.DB.WithContext(ctx).Model(&models.Tournament{}).
		Where("id = ? AND status = ?", id, models.TournamentStatusActive).
		Updates(map[string]interface{}{
			"status":       to,
			"completed_at": at,
		})
	return res.RowsAffected > 0, res.Error
}

// AdvanceCurrentRound sets current_round to number if it is still number-1.
func (s *TournamentStore) AdvanceCurrentRound(ctx context.Context, id string, number int) (bool, error) {
	res := s.DB.WithContext(ctx).Model(&models.Tournament{}).
		Where("id = ? AND status = ? AND current_round = ?", id, models.TournamentStatusActive, number-1).
		Update("current_round", number)
	return res.RowsAffected > 0, res.Error
}

func (s *TournamentStore) ListParticipants(ctx context.Context, tournamentID string) ([]models.TournamentParticipant, error) {
	var participants []models.TournamentParticipant
	err := s.DB.WithContext(ctx).
		Where("tournament_id = ?", tournamentID).
		Order("seed ASC").
		Find(&participants).Error
	return participants, err
}

// ApplyResult adds a match outcome to a participant's counters.
func (s *TournamentStore) ApplyResult(ctx context.Context, tournamentID, userID string, score float64, wins, losses, draws int) error {
	res := s.DB.WithContext(ctx).Model(&models.TournamentParticipant{}).
		Where("tournament_id = ? AND user_id = ?", tournamentID, userID).
		Updates(map[string]interface{}{
			"score":  gorm.Expr("score + ?", score),
			"wins":   gorm.Expr("wins + ?", wins),
			"losses": gorm.Expr("losses + ?", losses),
			"draws":  gorm.Expr("draws + ?", draws),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return notFound("user %s is not in tournament %s", userID, tournamentID)
	}
	return nil
}

func (s *TournamentStore) SetEliminated(ctx context.Context, tournamentID, userID string) error {
	return s.DB.WithContext(ctx).Model(&models.TournamentParticipant{}).
		Where("tournament_id = ? AND user_id = ?", tournamentID, userID).
		Update("eliminated", true).Error
}

// SetParticipantScore overwrites the score; arenas derive it from the solve count.
func (s *TournamentStore) SetParticipantScore(ctx context.Context, tournamentID, userID string, score float64) error {
	return s.DB.WithContext(ctx).Model(&models.TournamentParticipant{}).
		Where("tournament_id = ? AND user_id = ?", tournamentID, userID).
		Update("score", score).Error
}

func (s *TournamentStore) CountActiveParticipants(ctx context.Context, tournamentID string) (int64, error) {
	var n int64
	err := s.DB.WithContext(ctx).Model(&models.TournamentParticipant{}).
		Where("tournament_id = ? AND eliminated = ?", tournamentID, false).
		Count(&n).Error
	return n, err
}

// CreateRound inserts a round together with its matches.
func (s *TournamentStore) CreateRound(ctx context.Context, r *models.TournamentRound) error {
	return s.DB.WithContext(ctx).Create(r).Error
}

// GetRound loads a round by number with its matches.
func (s *TournamentStore) GetRound(ctx context.Context, tournamentID string, number int) (*models.TournamentRound, error) {
	var r models.TournamentRound
	err := s.DB.WithContext(ctx).
		Preload("Matches", func(db *gorm.DB) *gorm.DB { return db.Order("match_number ASC") }).
		First(&r, "tournament_id = ? AND number = ?", tournamentID, number).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, notFound("round %d of tournament %s not found", number, tournamentID)
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *TournamentStore) ListRounds(ctx context.Context, tournamentID string) ([]models.TournamentRound, error) {
	var rounds []models.TournamentRound
	err := s.DB.WithContext(ctx).
		Preload("Matches", func(db *gorm.DB) *gorm.DB { return db.Order("match_number ASC") }).
		Where("tournament_id = ?", tournamentID).
		Order("number ASC").
		Find(&rounds).Error
	return rounds, err
}

// CompleteRound marks a round completed unless it already is.
func (s *TournamentStore) CompleteRound(ctx context.Context, roundID string, at int64) (bool, error) {
	res := s.DB.WithContext(ctx).Model(&models.TournamentRound{}).
		Where("id = ? AND status <> ?", roundID, models.RoundStatusCompleted).
		Updates(map[string]interface{}{
			"status":       models.RoundStatusCompleted,
			"completed_at": at,
		})
	return res.RowsAffected > 0, res.Error
}

func (s *TournamentStore) ListMatches(ctx context.Context, tournamentID string) ([]models.TournamentMatch, error) {
	var matches []models.TournamentMatch
	err := s.DB.WithContext(ctx).
		Where("tournament_id = ?", tournamentID).
		Order("round_number ASC, match_number ASC").
		Find(&matches).Error
	return matches, err
}

// GetMatchByChallenge returns the match backed by challengeID, or nil when there is none.
func (s *TournamentStore) GetMatchByChallenge(ctx context.Context, challengeID string) (*models.TournamentMatch, error) {
	var m models.TournamentMatch
	err := s.DB.WithContext(ctx).First(&m, "challenge_id = ?", challengeID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// ResolveMatch stores the outcome of an unresolved match. It reports false when the
// match was already resolved, which makes repeated resolution a no-op.
func (s *TournamentStore) ResolveMatch(ctx context.Context, matchID string, winnerID *string, isDraw bool) (bool, error) {
	res := s.DB.WithContext(ctx).Model(&models.TournamentMatch{}).
		Where("id = ? AND status IN ?", matchID, []string{models.MatchStatusPending, models.MatchStatusActive}).
		Updates(map[string]interface{}{
			"winner_id": winnerID,
			"is_draw":   isDraw,
			"status":    models.MatchStatusCompleted,
		})
	return res.RowsAffected > 0, res.Error
}

// CountOpenMatches counts matches of a round that are neither completed nor byes.
func (s *TournamentStore) CountOpenMatches(ctx context.Context, roundID string) (int64, error) {
	var n int64
	err := s.DB.WithContext(ctx).Model(&models.TournamentMatch{}).
		Where("round_id = ? AND status IN ?", roundID, []string{models.MatchStatusPending, models.MatchStatusActive}).
		Count(&n).Error
	return n, err
}

// ListStaleMatchChallenges returns challenge ids of active matches in active tournaments
// whose challenge is no longer active. These are completions whose resolution did not go through.
func (s *TournamentStore) ListStaleMatchChallenges(ctx context.Context) ([]string, error) {
	var ids []string
	err := s.DB.WithContext(ctx).
		Table("tournament_matches").
		Select("tournament_matches.challenge_id").
		Joins("JOIN challenges ON challenges.id = tournament_matches.challenge_id").
		Joins("JOIN tournaments ON tournaments.id = tournament_matches.tournament_id").
		Where("tournament_matches.status = ? AND challenges.status <> ?", models.MatchStatusActive, models.ChallengeStatusActive).
		Where("tournaments.status = ?", models.TournamentStatusActive).
		Scan(&ids).Error
	return ids, err
}

// ListActiveMatchChallenges returns challenge ids of the tournament's unresolved matches.
func (s *TournamentStore) ListActiveMatchChallenges(ctx context.Context, tournamentID string) ([]string, error) {
	var ids []string
	err := s.DB.WithContext(ctx).Model(&models.TournamentMatch{}).
		Where("tournament_id = ? AND status = ? AND challenge_id IS NOT NULL", tournamentID, models.MatchStatusActive).
		Pluck("challenge_id", &ids).Error
	return ids, err
}

func (s *TournamentStore) CreateArena(ctx context.Context, state *models.ArenaState, problems []models.ArenaProblem) error {
	if err := s.DB.WithContext(ctx).Create(state).Error; err != nil {
		return err
	}
	if len(problems) == 0 {
		return nil
	}
	return s.DB.WithContext(ctx).Create(&problems).Error
}

// ListActiveArenas returns active arena tournaments with their roster.
func (s *TournamentStore) ListActiveArenas(ctx context.Context) ([]models.Tournament, error) {
	var tournaments []models.Tournament
	err := s.DB.WithContext(ctx).
		Preload("Participants", orderedBySeed).
		Where("format = ? AND status = ?", models.FormatArena, models.TournamentStatusActive).
		Find(&tournaments).Error
	return tournaments, err
}

func (s *TournamentStore) GetArenaState(ctx context.Context, tournamentID string) (*models.ArenaState, error) {
	var state models.ArenaState
	err := s.DB.WithContext(ctx).First(&state, "tournament_id = ?", tournamentID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, notFound("arena state for tournament %s not found", tournamentID)
	}
	if err != nil {
		return nil, err
	}
	return &state, nil
}

func (s *TournamentStore) ListArenaProblems(ctx context.Context, tournamentID string) ([]models.ArenaProblem, error) {
	var problems []models.ArenaProblem
	err := s.DB.WithContext(ctx).
		Where("tournament_id = ?", tournamentID).
		Order("position ASC").
		Find(&problems).Error
	return problems, err
}

func (s *TournamentStore) ListArenaSolves(ctx context.Context, tournamentID string) ([]models.ArenaSolve, error) {
	var solves []models.ArenaSolve
	err := s.DB.WithContext(ctx).
		Where("tournament_id = ?", tournamentID).
		Order("solved_at ASC").
		Find(&solves).Error
	return solves, err
}

// InsertArenaSolve appends a solve. It reports false when the (tournament, user, problem)
// triple already had one; the earlier row is kept.
func (s *TournamentStore) InsertArenaSolve(ctx context.Context, solve *models.ArenaSolve) (bool, error) {
	res := s.DB.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(solve)
	return res.RowsAffected > 0, res.Error
}

func (s *TournamentStore) CountArenaSolves(ctx context.Context, tournamentID, userID string) (int64, error) {
	var n int64
	err := s.DB.WithContext(ctx).Model(&models.ArenaSolve{}).
		Where("tournament_id = ? AND user_id = ?", tournamentID, userID).
		Count(&n).Error
	return n, err
}
