package services

import (
	"context"
	"encoding/json"
	"fmt"

	"duel-engine/models"

	"github.com/gosimple/slug"
	"go.uber.org/zap"
)

// RoundSummary is the read-only projection of one round.
type RoundSummary struct {
	Number         int    `json:"number"`
	Status         string `json:"status"`
	ContestID      int    `json:"contest_id"`
	ProblemIndex   string `json:"problem_index"`
	ProblemName    string `json:"problem_name"`
	MatchCount     int    `json:"match_count"`
	CompletedCount int    `json:"completed_count"`
	ByeCount       int    `json:"bye_count"`
	DrawCount      int    `json:"draw_count"`
}

// MatchSummary is the read-only projection of one match.
type MatchSummary struct {
	RoundNumber int     `json:"round_number"`
	MatchNumber int     `json:"match_number"`
	ChallengeID *string `json:"challenge_id,omitempty"`
	Player1ID   string  `json:"player1_id"`
	Player2ID   *string `json:"player2_id,omitempty"`
	WinnerID    *string `json:"winner_id,omitempty"`
	Status      string  `json:"status"`
	IsDraw      bool    `json:"is_draw"`
	IsBye       bool    `json:"is_bye"`
}

type HistoryItem struct {
	ID               string `json:"id"`
	Name             string `json:"name"`
	Format           string `json:"format"`
	Status           string `json:"status"`
	CurrentRound     int    `json:"current_round"`
	RoundCount       int    `json:"round_count"`
	ParticipantCount int    `json:"participant_count"`
	CompletedAt      *int64 `json:"completed_at,omitempty"`
	CreatedAt        int64  `json:"created_at"`
}

type HistoryPage struct {
	Items      []HistoryItem `json:"items"`
	Page       int           `json:"page"`
	Size       int           `json:"size"`
	TotalItems int64         `json:"total_items"`
	TotalPages int           `json:"total_pages"`
}

type ArenaDetail struct {
	State    models.ArenaState     `json:"state"`
	Problems []models.ArenaProblem `json:"problems"`
}

type HistoryDetail struct {
	Tournament HistoryItem    `json:"tournament"`
	Rounds     []RoundSummary `json:"rounds"`
	Standings  []Standing     `json:"standings"`
	Arena      *ArenaDetail   `json:"arena,omitempty"`
}

type RecapEntry struct {
	Standing
	Handle string `json:"handle"`
}

// Recap is the shareable end-of-tournament view; it is also what gets archived.
type Recap struct {
	TournamentID string         `json:"tournament_id"`
	ScopeID      string         `json:"scope_id"`
	Name         string         `json:"name"`
	Format       string         `json:"format"`
	Status       string         `json:"status"`
	Rounds       []RoundSummary `json:"rounds"`
	Standings    []RecapEntry   `json:"standings"`
}

func summarizeRound(r models.TournamentRound) RoundSummary {
	sum := RoundSummary{
		Number:       r.Number,
		Status:       r.Status,
		ContestID:    r.ContestID,
		ProblemIndex: r.ProblemIndex,
		ProblemName:  r.ProblemName,
		MatchCount:   len(r.Matches),
	}
	for _, m := range r.Matches {
		switch m.Status {
		case models.MatchStatusCompleted:
			sum.CompletedCount++
		case models.MatchStatusBye:
			sum.ByeCount++
		}
		if m.IsDraw {
			sum.DrawCount++
		}
	}
	return sum
}

func summarizeMatch(m models.TournamentMatch) MatchSummary {
	return MatchSummary{
		RoundNumber: m.RoundNumber,
		MatchNumber: m.MatchNumber,
		ChallengeID: m.ChallengeID,
		Player1ID:   m.Player1ID,
		Player2ID:   m.Player2ID,
		WinnerID:    m.WinnerID,
		Status:      m.Status,
		IsDraw:      m.IsDraw,
		IsBye:       m.IsBye(),
	}
}

func historyItem(t *models.Tournament) HistoryItem {
	return HistoryItem{
		ID:               t.ID,
		Name:             t.Name,
		Format:           t.Format,
		Status:           t.Status,
		CurrentRound:     t.CurrentRound,
		RoundCount:       t.RoundCount,
		ParticipantCount: len(t.Participants),
		CompletedAt:      t.CompletedAt,
		CreatedAt:        t.CreatedAt.Unix(),
	}
}

// ListRoundSummaries reports per-round match counts. roundNumber 0 lists every round.
func (s *TournamentService) ListRoundSummaries(ctx context.Context, tournamentID string, roundNumber int) ([]RoundSummary, error) {
	rounds, err := s.rounds(ctx, tournamentID, roundNumber)
	if err != nil {
		return nil, err
	}
	out := make([]RoundSummary, 0, len(rounds))
	for _, r := range rounds {
		out = append(out, summarizeRound(r))
	}
	return out, nil
}

// ListRoundMatches lists the matches of one round, or of every round for roundNumber 0.
func (s *TournamentService) ListRoundMatches(ctx context.Context, tournamentID string, roundNumber int) ([]MatchSummary, error) {
	rounds, err := s.rounds(ctx, tournamentID, roundNumber)
	if err != nil {
		return nil, err
	}
	out := []MatchSummary{}
	for _, r := range rounds {
		for _, m := range r.Matches {
			out = append(out, summarizeMatch(m))
		}
	}
	return out, nil
}

func (s *TournamentService) rounds(ctx context.Context, tournamentID string, roundNumber int) ([]models.TournamentRound, error) {
	if roundNumber > 0 {
		r, err := s.Store.GetRound(ctx, tournamentID, roundNumber)
		if err != nil {
			return nil, dbError("load round", err)
		}
		return []models.TournamentRound{*r}, nil
	}
	if _, err := s.Store.GetTournament(ctx, tournamentID); err != nil {
		return nil, dbError("load tournament", err)
	}
	rounds, err := s.Store.ListRounds(ctx, tournamentID)
	if err != nil {
		return nil, dbError("load rounds", err)
	}
	return rounds, nil
}

// GetHistoryPage lists a scope's tournaments, newest first.
func (s *TournamentService) GetHistoryPage(ctx context.Context, scopeID string, page, size int) (*HistoryPage, error) {
	if page < 1 {
		page = 1
	}
	if size < 1 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	tournaments, total, err := s.Store.ListTournamentsPage(ctx, scopeID, offset, size)
	if err != nil {
		return nil, dbError("list tournaments", err)
	}
	items := make([]HistoryItem, 0, len(tournaments))
	for i := range tournaments {
		items = append(items, historyItem(&tournaments[i]))
	}
	return &HistoryPage{
		Items:      items,
		Page:       page,
		Size:       size,
		TotalItems: total,
		TotalPages: int((total + int64(size) - 1) / int64(size)),
	}, nil
}

// GetHistoryDetail returns a tournament with its rounds and standings. Tournaments that
// have not played a round yield empty lists.
func (s *TournamentService) GetHistoryDetail(ctx context.Context, tournamentID string) (*HistoryDetail, error) {
	t, err := s.Store.GetTournament(ctx, tournamentID)
	if err != nil {
		return nil, dbError("load tournament", err)
	}
	rounds, err := s.Store.ListRounds(ctx, t.ID)
	if err != nil {
		return nil, dbError("load rounds", err)
	}
	standings, err := s.standingsFor(ctx, t)
	if err != nil {
		return nil, dbError("compute standings", err)
	}

	detail := &HistoryDetail{
		Tournament: historyItem(t),
		Rounds:     make([]RoundSummary, 0, len(rounds)),
		Standings:  standings,
	}
	for _, r := range rounds {
		detail.Rounds = append(detail.Rounds, summarizeRound(r))
	}
	if t.Format == models.FormatArena {
		state, err := s.Store.GetArenaState(ctx, t.ID)
		if err != nil {
			return nil, dbError("load arena state", err)
		}
		problems, err := s.Store.ListArenaProblems(ctx, t.ID)
		if err != nil {
			return nil, dbError("load arena problems", err)
		}
		detail.Arena = &ArenaDetail{State: *state, Problems: problems}
	}
	return detail, nil
}

// GetRecap builds the recap with handles as display names. Users whose handle cannot be
// resolved are shown by user id.
func (s *TournamentService) GetRecap(ctx context.Context, tournamentID string) (*Recap, error) {
	detail, err := s.GetHistoryDetail(ctx, tournamentID)
	if err != nil {
		return nil, err
	}
	t, err := s.Store.GetTournament(ctx, tournamentID)
	if err != nil {
		return nil, dbError("load tournament", err)
	}

	recap := &Recap{
		TournamentID: t.ID,
		ScopeID:      t.ScopeID,
		Name:         t.Name,
		Format:       FormatName(t.Format),
		Status:       t.Status,
		Rounds:       detail.Rounds,
		Standings:    make([]RecapEntry, 0, len(detail.Standings)),
	}
	for _, st := range detail.Standings {
		recap.Standings = append(recap.Standings, RecapEntry{Standing: st, Handle: s.displayName(ctx, t.ScopeID, st.UserID)})
	}
	return recap, nil
}

func (s *TournamentService) displayName(ctx context.Context, scopeID, userID string) string {
	if s.Handles == nil {
		return userID
	}
	handle, linked, err := s.Handles.GetLinkedHandle(ctx, scopeID, userID)
	if err != nil || !linked {
		return userID
	}
	return handle
}

// RecapKey is the object key a tournament's recap is archived under.
func RecapKey(t *models.Tournament) string {
	return fmt.Sprintf("recaps/%s/%s-%s.json", slug.Make(t.ScopeID), slug.Make(t.Name), t.ID)
}

func (s *TournamentService) archiveRecap(ctx context.Context, tournamentID string) {
	if s.Archive == nil {
		return
	}
	recap, err := s.GetRecap(ctx, tournamentID)
	if err != nil {
		s.Log.Warn("build recap", zap.String("tournament_id", tournamentID), zap.Error(err))
		return
	}
	body, err := json.Marshal(recap)
	if err != nil {
		s.Log.Warn("encode recap", zap.String("tournament_id", tournamentID), zap.Error(err))
		return
	}
	t := &models.Tournament{ID: recap.TournamentID, ScopeID: recap.ScopeID, Name: recap.Name}
	if err := s.Archive.PutRecap(ctx, RecapKey(t), body); err != nil {
		s.Log.Warn("archive recap", zap.String("tournament_id", tournamentID), zap.Error(err))
		return
	}
	s.Log.Info("recap archived", zap.String("tournament_id", tournamentID))
}
