package services

import (
	"context"
	"slices"
	"sync/atomic"
	"time"

	"duel-engine/metrics"
	"duel-engine/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ChallengeRunner is the part of the challenge scheduler the tournament engine drives.
type ChallengeRunner interface {
	CreateChallengeWithTx(ctx context.Context, tx *gorm.DB, spec ChallengeSpec) (*models.Challenge, error)
	CancelLinkedChallengeWithTx(ctx context.Context, tx *gorm.DB, challengeID string) (bool, error)
	Announce(ctx context.Context, ch *models.Challenge)
	AnnounceByID(ctx context.Context, challengeID string)
}

type TournamentConfig struct {
	SupportedLengths []int
	MaxArenaMinutes  int
	MaxArenaProblems int
	QueryTimeout     time.Duration
	FanOut           int
	// ArenaFinalGrace is how long past endsAt an arena waits for failed participant
	// queries to succeed before it completes anyway.
	ArenaFinalGrace time.Duration
}

func DefaultTournamentConfig() TournamentConfig {
	return TournamentConfig{
		SupportedLengths: []int{40, 60, 80},
		MaxArenaMinutes:  24 * 60,
		MaxArenaProblems: 26,
		QueryTimeout:     15 * time.Second,
		FanOut:           4,
		ArenaFinalGrace:  10 * time.Minute,
	}
}

// TournamentSpec is the input of CreateTournament; roster order is seed order.
type TournamentSpec struct {
	ScopeID        string   `json:"scope_id"`
	HostID         string   `json:"host_id"`
	Name           string   `json:"name"`
	Format         string   `json:"format"`
	LengthMinutes  int      `json:"length_minutes"`
	RoundCount     int      `json:"round_count"`
	ParticipantIDs []string `json:"participant_ids"`
}

// ArenaSpec is the input of CreateArena. A zero StartsAt starts the arena immediately.
type ArenaSpec struct {
	ScopeID        string              `json:"scope_id"`
	HostID         string              `json:"host_id"`
	Name           string              `json:"name"`
	LengthMinutes  int                 `json:"length_minutes"`
	StartsAt       int64               `json:"starts_at"`
	Problems       []models.ProblemKey `json:"problems"`
	ParticipantIDs []string            `json:"participant_ids"`
}

// Pairing is one externally generated match; an empty Player2ID is a bye.
type Pairing struct {
	Player1ID string `json:"player1_id"`
	Player2ID string `json:"player2_id,omitempty"`
}

// RoundPlan carries the pairings and problem of the next round.
type RoundPlan struct {
	ContestID int       `json:"contest_id"`
	Index     string    `json:"index"`
	Pairings  []Pairing `json:"pairings"`
}

// TournamentService resolves matches from challenge outcomes, keeps participant counters,
// creates rounds from pairings and runs the arena tick.
type TournamentService struct {
	DB             *gorm.DB
	Store          *TournamentStore
	ChallengeStore *ChallengeStore
	Challenges     ChallengeRunner
	Handles        HandleStore
	Submissions    SubmissionSource
	Catalog        ProblemCatalog
	Sink           MessageSink
	Archive        RecapArchive
	Config         TournamentConfig
	Log            *zap.Logger
	Now            func() time.Time

	arenaTicking atomic.Bool
}

func NewTournamentService(db *gorm.DB, challenges ChallengeRunner, handles HandleStore, submissions SubmissionSource, catalog ProblemCatalog, sink MessageSink, cfg TournamentConfig, log *zap.Logger) *TournamentService {
	if log == nil {
		log = zap.NewNop()
	}
	return &TournamentService{
		DB:             db,
		Store:          NewTournamentStore(db),
		ChallengeStore: NewChallengeStore(db),
		Challenges:     challenges,
		Handles:        handles,
		Submissions:    submissions,
		Catalog:        catalog,
		Sink:           sink,
		Config:         cfg,
		Log:            log,
		Now:            time.Now,
	}
}

func validateRoster(ids []string, minCount int) error {
	if len(ids) < minCount {
		return invalidSpec("at least %d participants required, got %d", minCount, len(ids))
	}
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if id == "" {
			return invalidSpec("empty participant id")
		}
		if seen[id] {
			return invalidSpec("participant %s listed twice", id)
		}
		seen[id] = true
	}
	return nil
}

func newRoster(tournamentID string, ids []string) []models.TournamentParticipant {
	roster := make([]models.TournamentParticipant, 0, len(ids))
	for i, id := range ids {
		roster = append(roster, models.TournamentParticipant{
			ID:           uuid.NewString(),
			TournamentID: tournamentID,
			UserID:       id,
			Seed:         i + 1,
		})
	}
	return roster
}

// CreateTournament inserts a swiss or elimination tournament with its roster. Rounds are
// added with StartRound.
func (s *TournamentService) CreateTournament(ctx context.Context, spec TournamentSpec) (*models.Tournament, error) {
	if spec.ScopeID == "" || spec.HostID == "" || spec.Name == "" {
		return nil, invalidSpec("scope, host and name are required")
	}
	if spec.Format != models.FormatSwiss && spec.Format != models.FormatElimination {
		return nil, invalidSpec("unsupported tournament format %q", spec.Format)
	}
	if !slices.Contains(s.Config.SupportedLengths, spec.LengthMinutes) {
		return nil, invalidSpec("unsupported round length %d, expected one of %v", spec.LengthMinutes, s.Config.SupportedLengths)
	}
	if spec.RoundCount < 1 {
		return nil, invalidSpec("round count must be positive")
	}
	if err := validateRoster(spec.ParticipantIDs, 2); err != nil {
		return nil, err
	}

	t := &models.Tournament{
		ID:            uuid.NewString(),
		ScopeID:       spec.ScopeID,
		HostID:        spec.HostID,
		Name:          spec.Name,
		Format:        spec.Format,
		Status:        models.TournamentStatusActive,
		LengthMinutes: spec.LengthMinutes,
		RoundCount:    spec.RoundCount,
	}
	t.Participants = newRoster(t.ID, spec.ParticipantIDs)

	if err := s.Store.CreateTournament(ctx, t); err != nil {
		return nil, dbError("create tournament", err)
	}
	s.Log.Info("tournament created",
		zap.String("tournament_id", t.ID),
		zap.String("format", t.Format),
		zap.Int("participants", len(t.Participants)),
	)
	s.announce(ctx, t.ID)
	return t, nil
}

// CreateArena inserts an arena tournament, its solving window and the resolved problem set.
func (s *TournamentService) CreateArena(ctx context.Context, spec ArenaSpec) (*models.Tournament, error) {
	if spec.ScopeID == "" || spec.HostID == "" || spec.Name == "" {
		return nil, invalidSpec("scope, host and name are required")
	}
	if spec.LengthMinutes <= 0 || spec.LengthMinutes > s.Config.MaxArenaMinutes {
		return nil, invalidSpec("arena length must be between 1 and %d minutes", s.Config.MaxArenaMinutes)
	}
	if len(spec.Problems) == 0 || len(spec.Problems) > s.Config.MaxArenaProblems {
		return nil, invalidSpec("arena needs 1 to %d problems", s.Config.MaxArenaProblems)
	}
	if err := validateRoster(spec.ParticipantIDs, 1); err != nil {
		return nil, err
	}
	for _, id := range spec.ParticipantIDs {
		_, linked, err := s.Handles.GetLinkedHandle(ctx, spec.ScopeID, id)
		if err != nil {
			return nil, dbError("look up handle", err)
		}
		if !linked {
			return nil, invalidSpec("user %s has no linked handle", id)
		}
	}

	t := &models.Tournament{
		ID:            uuid.NewString(),
		ScopeID:       spec.ScopeID,
		HostID:        spec.HostID,
		Name:          spec.Name,
		Format:        models.FormatArena,
		Status:        models.TournamentStatusActive,
		LengthMinutes: spec.LengthMinutes,
		RoundCount:    1,
		CurrentRound:  1,
	}
	t.Participants = newRoster(t.ID, spec.ParticipantIDs)

	seen := make(map[models.ProblemKey]bool, len(spec.Problems))
	problems := make([]models.ArenaProblem, 0, len(spec.Problems))
	for i, key := range spec.Problems {
		if seen[key] {
			return nil, invalidSpec("problem %d%s listed twice", key.ContestID, key.Index)
		}
		seen[key] = true
		info, err := s.resolveProblem(ctx, key.ContestID, key.Index)
		if err != nil {
			return nil, err
		}
		problems = append(problems, models.ArenaProblem{
			ID:           uuid.NewString(),
			TournamentID: t.ID,
			ContestID:    info.ContestID,
			ProblemIndex: info.Index,
			Name:         info.Name,
			Rating:       info.Rating,
			Position:     i,
		})
	}

	startsAt := spec.StartsAt
	if startsAt == 0 {
		startsAt = s.Now().Unix()
	}
	state := &models.ArenaState{
		TournamentID: t.ID,
		StartsAt:     startsAt,
		EndsAt:       startsAt + int64(spec.LengthMinutes)*60,
		ProblemCount: len(problems),
	}

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		store := s.Store.WithTx(tx)
		if err := store.CreateTournament(ctx, t); err != nil {
			return err
		}
		return store.CreateArena(ctx, state, problems)
	})
	if err != nil {
		return nil, dbError("create arena", err)
	}
	s.Log.Info("arena created",
		zap.String("tournament_id", t.ID),
		zap.Int64("starts_at", state.StartsAt),
		zap.Int64("ends_at", state.EndsAt),
		zap.Int("problems", len(problems)),
	)
	s.announce(ctx, t.ID)
	return t, nil
}

func (s *TournamentService) resolveProblem(ctx context.Context, contestID int, index string) (*ProblemInfo, error) {
	if contestID <= 0 || index == "" {
		return nil, invalidSpec("problem reference is incomplete")
	}
	if s.Catalog == nil {
		return &ProblemInfo{ContestID: contestID, Index: index}, nil
	}
	info, err := s.Catalog.ResolveProblem(ctx, contestID, index)
	if err != nil {
		return nil, NewAppError(CodeExternal, "problem catalog unavailable", err)
	}
	if info == nil {
		return nil, invalidSpec("unknown problem %d%s", contestID, index)
	}
	return info, nil
}

// StartRound creates round currentRound+1 from already generated pairings. Byes are
// resolved on the spot; every other pairing gets a live challenge.
func (s *TournamentService) StartRound(ctx context.Context, tournamentID string, plan RoundPlan) (*models.TournamentRound, error) {
	if len(plan.Pairings) == 0 {
		return nil, invalidSpec("round has no pairings")
	}
	problem, err := s.resolveProblem(ctx, plan.ContestID, plan.Index)
	if err != nil {
		return nil, err
	}

	var (
		round      *models.TournamentRound
		challenges []*models.Challenge
		finished   bool
	)
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		store := s.Store.WithTx(tx)
		t, err := store.GetTournament(ctx, tournamentID)
		if err != nil {
			return err
		}
		if t.Status != models.TournamentStatusActive {
			return conflict("tournament %s is %s", t.ID, t.Status)
		}
		if t.Format == models.FormatArena {
			return invalidSpec("arena tournaments have no rounds")
		}
		if t.CurrentRound >= t.RoundCount {
			return conflict("tournament %s already played all %d rounds", t.ID, t.RoundCount)
		}
		if t.CurrentRound > 0 {
			prev, err := store.GetRound(ctx, t.ID, t.CurrentRound)
			if err != nil {
				return err
			}
			if prev.Status != models.RoundStatusCompleted {
				return conflict("round %d of tournament %s is still running", prev.Number, t.ID)
			}
		}
		if err := validatePairings(t, plan.Pairings); err != nil {
			return err
		}

		now := s.Now().Unix()
		round = &models.TournamentRound{
			ID:            uuid.NewString(),
			TournamentID:  t.ID,
			Number:        t.CurrentRound + 1,
			Status:        models.RoundStatusActive,
			ContestID:     problem.ContestID,
			ProblemIndex:  problem.Index,
			ProblemName:   problem.Name,
			ProblemRating: problem.Rating,
			StartedAt:     now,
		}

		for i, pr := range plan.Pairings {
			m := models.TournamentMatch{
				ID:           uuid.NewString(),
				TournamentID: t.ID,
				RoundID:      round.ID,
				RoundNumber:  round.Number,
				MatchNumber:  i + 1,
				Player1ID:    pr.Player1ID,
			}
			if pr.Player2ID == "" {
				winner := pr.Player1ID
				m.WinnerID = &winner
				m.Status = models.MatchStatusBye
				round.Matches = append(round.Matches, m)
				continue
			}
			p2 := pr.Player2ID
			m.Player2ID = &p2
			m.Status = models.MatchStatusActive
			ch, err := s.Challenges.CreateChallengeWithTx(ctx, tx, ChallengeSpec{
				ScopeID:        t.ScopeID,
				HostID:         t.HostID,
				Problem:        ProblemRef{ContestID: problem.ContestID, Index: problem.Index, Name: problem.Name, Rating: problem.Rating},
				LengthMinutes:  t.LengthMinutes,
				ParticipantIDs: []string{pr.Player1ID, pr.Player2ID},
				MatchID:        &m.ID,
			})
			if err != nil {
				return err
			}
			m.ChallengeID = &ch.ID
			challenges = append(challenges, ch)
			round.Matches = append(round.Matches, m)
		}

		if err := store.CreateRound(ctx, round); err != nil {
			return err
		}
		for _, m := range round.Matches {
			if m.Status == models.MatchStatusBye {
				if err := store.ApplyResult(ctx, t.ID, m.Player1ID, 1, 1, 0, 0); err != nil {
					return err
				}
			}
		}
		ok, err := store.AdvanceCurrentRound(ctx, t.ID, round.Number)
		if err != nil {
			return err
		}
		if !ok {
			return conflict("tournament %s advanced concurrently", t.ID)
		}
		finished, err = s.closeRoundIfDone(ctx, store, t, round.ID, round.Number, now)
		return err
	})
	if err != nil {
		return nil, dbError("start round", err)
	}

	s.Log.Info("round started",
		zap.String("tournament_id", tournamentID),
		zap.Int("round", round.Number),
		zap.Int("matches", len(round.Matches)),
		zap.Int("challenges", len(challenges)),
	)
	for _, ch := range challenges {
		s.Challenges.Announce(ctx, ch)
	}
	s.afterResolution(ctx, tournamentID, finished)
	return round, nil
}

func validatePairings(t *models.Tournament, pairings []Pairing) error {
	roster := make(map[string]models.TournamentParticipant, len(t.Participants))
	for _, p := range t.Participants {
		roster[p.UserID] = p
	}
	seen := make(map[string]bool)
	check := func(userID string) error {
		p, ok := roster[userID]
		if !ok {
			return invalidSpec("user %s is not in tournament %s", userID, t.ID)
		}
		if p.Eliminated {
			return invalidSpec("user %s is eliminated", userID)
		}
		if seen[userID] {
			return invalidSpec("user %s is paired twice", userID)
		}
		seen[userID] = true
		return nil
	}
	for _, pr := range pairings {
		if err := check(pr.Player1ID); err != nil {
			return err
		}
		if pr.Player2ID != "" {
			if err := check(pr.Player2ID); err != nil {
				return err
			}
		}
	}
	return nil
}

// OnChallengeCompleted resolves the match backed by the challenge. Challenges without a
// match and matches that are already resolved are no-ops.
func (s *TournamentService) OnChallengeCompleted(ctx context.Context, challengeID string) error {
	var (
		tournamentID string
		resolved     bool
		finished     bool
	)
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		store := s.Store.WithTx(tx)
		m, err := store.GetMatchByChallenge(ctx, challengeID)
		if err != nil || m == nil || m.Resolved() || m.IsBye() {
			return err
		}
		ch, err := s.ChallengeStore.WithTx(tx).Get(ctx, challengeID)
		if err != nil {
			return err
		}
		if ch.Status == models.ChallengeStatusActive {
			return conflict("challenge %s is still active", challengeID)
		}
		t, err := store.GetTournament(ctx, m.TournamentID)
		if err != nil {
			return err
		}
		if t.Status != models.TournamentStatusActive {
			return nil
		}

		winner, draw := decideMatch(m, ch)
		ok, err := store.ResolveMatch(ctx, m.ID, winner, draw)
		if err != nil || !ok {
			return err
		}
		tournamentID, resolved = t.ID, true

		p1, p2 := m.Player1ID, *m.Player2ID
		if draw {
			if err := store.ApplyResult(ctx, t.ID, p1, 0.5, 0, 0, 1); err != nil {
				return err
			}
			if err := store.ApplyResult(ctx, t.ID, p2, 0.5, 0, 0, 1); err != nil {
				return err
			}
		} else {
			loser := m.Opponent(*winner)
			if err := store.ApplyResult(ctx, t.ID, *winner, 1, 1, 0, 0); err != nil {
				return err
			}
			if err := store.ApplyResult(ctx, t.ID, loser, 0, 0, 1, 0); err != nil {
				return err
			}
		}
		if t.Format == models.FormatElimination {
			if err := store.SetEliminated(ctx, t.ID, eliminatedPlayer(t, m, winner)); err != nil {
				return err
			}
		}

		finished, err = s.closeRoundIfDone(ctx, store, t, m.RoundID, m.RoundNumber, s.Now().Unix())
		return err
	})
	if err != nil {
		return dbError("resolve match for challenge "+challengeID, err)
	}
	if !resolved {
		return nil
	}
	s.Log.Info("match resolved", zap.String("tournament_id", tournamentID), zap.String("challenge_id", challengeID))
	s.afterResolution(ctx, tournamentID, finished)
	return nil
}

// decideMatch picks the earlier solver of the two players. Equal solve times go to the
// lower submission id; two non-solvers draw.
func decideMatch(m *models.TournamentMatch, ch *models.Challenge) (*string, bool) {
	var a, b *models.ChallengeParticipant
	for i := range ch.Participants {
		switch ch.Participants[i].UserID {
		case m.Player1ID:
			a = &ch.Participants[i]
		case *m.Player2ID:
			b = &ch.Participants[i]
		}
	}
	solved := func(p *models.ChallengeParticipant) bool { return p != nil && p.SolvedAt != nil }
	p1, p2 := m.Player1ID, *m.Player2ID

	switch {
	case !solved(a) && !solved(b):
		return nil, true
	case solved(a) && !solved(b):
		return &p1, false
	case !solved(a) && solved(b):
		return &p2, false
	}
	if *a.SolvedAt != *b.SolvedAt {
		if *a.SolvedAt < *b.SolvedAt {
			return &p1, false
		}
		return &p2, false
	}
	if a.SubmissionID != nil && b.SubmissionID != nil && *a.SubmissionID != *b.SubmissionID {
		if *a.SubmissionID < *b.SubmissionID {
			return &p1, false
		}
		return &p2, false
	}
	return nil, true
}

// eliminatedPlayer returns the loser, or on a draw the player with the larger seed number.
func eliminatedPlayer(t *models.Tournament, m *models.TournamentMatch, winner *string) string {
	if winner != nil {
		return m.Opponent(*winner)
	}
	seeds := make(map[string]int, len(t.Participants))
	for _, p := range t.Participants {
		seeds[p.UserID] = p.Seed
	}
	if seeds[m.Player1ID] > seeds[*m.Player2ID] {
		return m.Player1ID
	}
	return *m.Player2ID
}

// closeRoundIfDone completes the round once no match is open, and the tournament when
// that was the last round or an elimination bracket is down to one player.
func (s *TournamentService) closeRoundIfDone(ctx context.Context, store *TournamentStore, t *models.Tournament, roundID string, number int, now int64) (bool, error) {
	open, err := store.CountOpenMatches(ctx, roundID)
	if err != nil || open > 0 {
		return false, err
	}
	if _, err := store.CompleteRound(ctx, roundID, now); err != nil {
		return false, err
	}

	last := number >= t.RoundCount
	if !last && t.Format == models.FormatElimination {
		remaining, err := store.CountActiveParticipants(ctx, t.ID)
		if err != nil {
			return false, err
		}
		last = remaining <= 1
	}
	if !last {
		return false, nil
	}
	return store.TransitionTournament(ctx, t.ID, models.TournamentStatusCompleted, now)
}

// afterResolution posts the standings and archives the recap of a finished tournament.
func (s *TournamentService) afterResolution(ctx context.Context, tournamentID string, finished bool) {
	if finished {
		s.Log.Info("tournament completed", zap.String("tournament_id", tournamentID))
		s.archiveRecap(ctx, tournamentID)
	}
	s.announce(ctx, tournamentID)
}

// CancelTournament ends an active tournament on behalf of its host, cancelling the
// challenges of unresolved matches. Counters stay as they are.
func (s *TournamentService) CancelTournament(ctx context.Context, id, requesterID string) error {
	t, err := s.Store.GetTournament(ctx, id)
	if err != nil {
		return dbError("load tournament", err)
	}
	if t.Status != models.TournamentStatusActive {
		return notFound("no active tournament %s", id)
	}
	if t.HostID != requesterID {
		return forbidden("only the host can cancel tournament %s", id)
	}

	var cancelled []string
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		store := s.Store.WithTx(tx)
		ok, err := store.TransitionTournament(ctx, id, models.TournamentStatusCancelled, s.Now().Unix())
		if err != nil {
			return err
		}
		if !ok {
			return notFound("no active tournament %s", id)
		}
		ids, err := store.ListActiveMatchChallenges(ctx, id)
		if err != nil {
			return err
		}
		for _, chID := range ids {
			ok, err := s.Challenges.CancelLinkedChallengeWithTx(ctx, tx, chID)
			if err != nil {
				return err
			}
			if ok {
				cancelled = append(cancelled, chID)
			}
		}
		return nil
	})
	if err != nil {
		return dbError("cancel tournament", err)
	}

	for range cancelled {
		metrics.ChallengeTransitioned(models.ChallengeStatusCancelled)
	}
	s.Log.Info("tournament cancelled",
		zap.String("tournament_id", id),
		zap.String("requester", requesterID),
		zap.Int("challenges_cancelled", len(cancelled)),
	)
	for _, chID := range cancelled {
		s.Challenges.AnnounceByID(ctx, chID)
	}
	s.announce(ctx, id)
	return nil
}

// ReconcileMatches resolves matches whose challenge finished without the completion
// callback getting through.
func (s *TournamentService) ReconcileMatches(ctx context.Context) (err error) {
	start := time.Now()
	defer func() { metrics.ObserveTick("reconcile", start, err) }()

	ids, err := s.Store.ListStaleMatchChallenges(ctx)
	if err != nil {
		return dbError("list stale matches", err)
	}
	for _, id := range ids {
		s.Log.Info("reconciling match", zap.String("challenge_id", id))
		if rerr := s.OnChallengeCompleted(ctx, id); rerr != nil {
			s.Log.Error("match reconciliation failed", zap.String("challenge_id", id), zap.Error(rerr))
			err = rerr
		}
	}
	return err
}

func (s *TournamentService) announce(ctx context.Context, tournamentID string) {
	if s.Sink == nil {
		return
	}
	t, err := s.Store.GetTournament(ctx, tournamentID)
	if err != nil {
		s.Log.Warn("load tournament for summary", zap.String("tournament_id", tournamentID), zap.Error(err))
		return
	}
	standings, err := s.standingsFor(ctx, t)
	if err != nil {
		s.Log.Warn("standings for summary", zap.String("tournament_id", tournamentID), zap.Error(err))
		return
	}
	notify(ctx, s.Sink, s.Log, SummaryRef{Kind: SummaryKindTournament, ID: t.ID}, renderTournament(t, standings))
}

// GetStandings computes the current standings. An empty format uses the tournament's own.
func (s *TournamentService) GetStandings(ctx context.Context, tournamentID, format string) ([]Standing, error) {
	t, err := s.Store.GetTournament(ctx, tournamentID)
	if err != nil {
		return nil, dbError("load tournament", err)
	}
	if format != "" {
		t.Format = format
	}
	standings, err := s.standingsFor(ctx, t)
	if err != nil {
		return nil, dbError("compute standings", err)
	}
	return standings, nil
}

func (s *TournamentService) standingsFor(ctx context.Context, t *models.Tournament) ([]Standing, error) {
	switch t.Format {
	case models.FormatArena:
		solves, err := s.Store.ListArenaSolves(ctx, t.ID)
		if err != nil {
			return nil, err
		}
		return ComputeArenaStandings(t.Participants, solves), nil
	case models.FormatSwiss, models.FormatElimination:
		matches, err := s.Store.ListMatches(ctx, t.ID)
		if err != nil {
			return nil, err
		}
		return ComputeMatchStandings(t.Participants, matches), nil
	}
	return nil, invalidSpec("unsupported tournament format %q", t.Format)
}
