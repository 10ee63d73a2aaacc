package services

import (
	"context"
	"errors"
	"slices"
	"sync/atomic"
	"time"

	"duel-engine/metrics"
	"duel-engine/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

// summaryBucketSeconds is the granularity of the remaining-time display; an in-progress
// summary without new solves is only re-posted when the bucket changes.
const summaryBucketSeconds = 5 * 60

const (
	defaultRecentLimit = 10
	maxRecentLimit     = 50
)

var errNoLongerActive = errors.New("challenge is no longer active")

type ChallengeConfig struct {
	SupportedLengths []int
	MinParticipants  int
	MaxParticipants  int
	QueryTimeout     time.Duration
	FanOut           int
}

func DefaultChallengeConfig() ChallengeConfig {
	return ChallengeConfig{
		SupportedLengths: []int{40, 60, 80},
		MinParticipants:  1,
		MaxParticipants:  5,
		QueryTimeout:     15 * time.Second,
		FanOut:           4,
	}
}

// ProblemRef identifies the problem a challenge or round is played on.
type ProblemRef struct {
	ContestID int    `json:"contest_id"`
	Index     string `json:"index"`
	Name      string `json:"name"`
	Rating    int    `json:"rating"`
}

// ChallengeSpec is the input of CreateChallenge. MatchID links the challenge to a
// tournament match and is only set by the tournament engine.
type ChallengeSpec struct {
	ScopeID        string     `json:"scope_id"`
	HostID         string     `json:"host_id"`
	Problem        ProblemRef `json:"problem"`
	LengthMinutes  int        `json:"length_minutes"`
	ParticipantIDs []string   `json:"participant_ids"`
	MatchID        *string    `json:"-"`
}

// ActiveChallengeSummary is the read model returned for users with a running challenge.
type ActiveChallengeSummary struct {
	ChallengeID      string `json:"challenge_id"`
	HostID           string `json:"host_id"`
	ContestID        int    `json:"contest_id"`
	ProblemIndex     string `json:"problem_index"`
	ProblemName      string `json:"problem_name"`
	EndsAt           int64  `json:"ends_at"`
	RemainingSeconds int64  `json:"remaining_seconds"`
}

// ChallengeService runs the challenge state machine: creation, the periodic evaluation
// tick, cancellation and the read APIs used by the command layer.
type ChallengeService struct {
	DB          *gorm.DB
	Store       *ChallengeStore
	Handles     HandleStore
	Submissions SubmissionSource
	Sink        MessageSink
	Listener    CompletionListener
	Config      ChallengeConfig
	Log         *zap.Logger
	Now         func() time.Time

	ticking atomic.Bool
}

func NewChallengeService(db *gorm.DB, handles HandleStore, submissions SubmissionSource, sink MessageSink, cfg ChallengeConfig, log *zap.Logger) *ChallengeService {
	if log == nil {
		log = zap.NewNop()
	}
	return &ChallengeService{
		DB:          db,
		Store:       NewChallengeStore(db),
		Handles:     handles,
		Submissions: submissions,
		Sink:        sink,
		Config:      cfg,
		Log:         log,
		Now:         time.Now,
	}
}

// SetCompletionListener registers the receiver of match-linked completions.
func (s *ChallengeService) SetCompletionListener(l CompletionListener) {
	s.Listener = l
}

func (s *ChallengeService) validate(spec ChallengeSpec) error {
	if spec.ScopeID == "" || spec.HostID == "" {
		return invalidSpec("scope and host are required")
	}
	if spec.Problem.ContestID <= 0 || spec.Problem.Index == "" {
		return invalidSpec("problem reference is incomplete")
	}
	if !slices.Contains(s.Config.SupportedLengths, spec.LengthMinutes) {
		return invalidSpec("unsupported challenge length %d, expected one of %v", spec.LengthMinutes, s.Config.SupportedLengths)
	}
	n := len(spec.ParticipantIDs)
	if n < s.Config.MinParticipants || n > s.Config.MaxParticipants {
		return invalidSpec("challenge needs %d to %d participants, got %d", s.Config.MinParticipants, s.Config.MaxParticipants, n)
	}
	seen := make(map[string]bool, n)
	for _, id := range spec.ParticipantIDs {
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

// CreateChallenge validates the request and inserts an active challenge with its participants.
func (s *ChallengeService) CreateChallenge(ctx context.Context, spec ChallengeSpec) (*models.Challenge, error) {
	var ch *models.Challenge
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		ch, err = s.CreateChallengeWithTx(ctx, tx, spec)
		return err
	})
	if err != nil {
		return nil, dbError("create challenge", err)
	}
	s.Log.Info("challenge created",
		zap.String("challenge_id", ch.ID),
		zap.String("scope_id", ch.ScopeID),
		zap.Int("participants", len(ch.Participants)),
	)
	s.Announce(ctx, ch)
	return ch, nil
}

// CreateChallengeWithTx is CreateChallenge inside a caller-owned transaction. It does not
// post a summary; callers announce after commit.
func (s *ChallengeService) CreateChallengeWithTx(ctx context.Context, tx *gorm.DB, spec ChallengeSpec) (*models.Challenge, error) {
	if err := s.validate(spec); err != nil {
		return nil, err
	}
	store := s.Store.WithTx(tx)
	handles := s.Handles.WithTx(tx)

	active, err := store.GetActiveForUsers(ctx, spec.ParticipantIDs)
	if err != nil {
		return nil, err
	}
	for _, id := range spec.ParticipantIDs {
		if other, ok := active[id]; ok {
			return nil, invalidSpec("user %s already has an active challenge %s", id, other.ID)
		}
	}

	now := s.Now().Unix()
	ch := &models.Challenge{
		ID:            uuid.NewString(),
		ScopeID:       spec.ScopeID,
		HostID:        spec.HostID,
		ContestID:     spec.Problem.ContestID,
		ProblemIndex:  spec.Problem.Index,
		ProblemName:   spec.Problem.Name,
		ProblemRating: spec.Problem.Rating,
		LengthMinutes: spec.LengthMinutes,
		Status:        models.ChallengeStatusActive,
		StartedAt:     now,
		EndsAt:        now + int64(spec.LengthMinutes)*60,
		MatchID:       spec.MatchID,
	}
	ch.SummaryBucket = remainingBucket(now, ch.EndsAt)

	for i, userID := range spec.ParticipantIDs {
		_, linked, err := handles.GetLinkedHandle(ctx, spec.ScopeID, userID)
		if err != nil {
			return nil, err
		}
		if !linked {
			return nil, invalidSpec("user %s has no linked handle", userID)
		}
		rating, err := handles.GetRating(ctx, spec.ScopeID, userID)
		if err != nil {
			return nil, err
		}
		ch.Participants = append(ch.Participants, models.ChallengeParticipant{
			ID:           uuid.NewString(),
			ChallengeID:  ch.ID,
			UserID:       userID,
			Position:     i,
			RatingBefore: &rating,
		})
	}

	if err := store.Create(ctx, ch); err != nil {
		return nil, err
	}
	return ch, nil
}

// CancelChallenge ends an active challenge on behalf of its host. No rating changes apply.
func (s *ChallengeService) CancelChallenge(ctx context.Context, id, requesterID string) error {
	ch, err := s.Store.Get(ctx, id)
	if err != nil {
		return dbError("load challenge", err)
	}
	if ch.Status != models.ChallengeStatusActive {
		return notFound("no active challenge %s", id)
	}
	if ch.HostID != requesterID {
		return forbidden("only the host can cancel challenge %s", id)
	}
	if ch.MatchID != nil {
		return forbidden("challenge %s is part of a tournament and ends with it", id)
	}

	now := s.Now().Unix()
	ok, err := s.Store.Transition(ctx, id, models.ChallengeStatusCancelled, now)
	if err != nil {
		return dbError("cancel challenge", err)
	}
	if !ok {
		return notFound("no active challenge %s", id)
	}

	metrics.ChallengeTransitioned(models.ChallengeStatusCancelled)
	s.Log.Info("challenge cancelled", zap.String("challenge_id", id), zap.String("requester", requesterID))

	ch.Status = models.ChallengeStatusCancelled
	ch.CompletedAt = &now
	s.Announce(ctx, ch)
	return nil
}

// CancelLinkedChallengeWithTx cancels a tournament challenge inside the engine's transaction.
func (s *ChallengeService) CancelLinkedChallengeWithTx(ctx context.Context, tx *gorm.DB, challengeID string) (bool, error) {
	return s.Store.WithTx(tx).Transition(ctx, challengeID, models.ChallengeStatusCancelled, s.Now().Unix())
}

// Announce posts the current state of a challenge.
func (s *ChallengeService) Announce(ctx context.Context, ch *models.Challenge) {
	var streaks map[string]int
	if ch.Status == models.ChallengeStatusActive {
		streaks = s.streaks(ctx, ch)
	}
	notify(ctx, s.Sink, s.Log, SummaryRef{Kind: SummaryKindChallenge, ID: ch.ID}, renderChallenge(ch, streaks, s.Now().Unix()))
}

// AnnounceByID loads a challenge and posts its state.
func (s *ChallengeService) AnnounceByID(ctx context.Context, id string) {
	ch, err := s.Store.Get(ctx, id)
	if err != nil {
		s.Log.Warn("load challenge for summary", zap.String("challenge_id", id), zap.Error(err))
		return
	}
	s.Announce(ctx, ch)
}

func (s *ChallengeService) streaks(ctx context.Context, ch *models.Challenge) map[string]int {
	out := make(map[string]int, len(ch.Participants))
	for _, p := range ch.Participants {
		n, err := s.Store.SolveStreak(ctx, ch.ScopeID, p.UserID, ch.ID)
		if err != nil {
			s.Log.Warn("solve streak lookup failed", zap.String("user_id", p.UserID), zap.Error(err))
			continue
		}
		if p.SolvedAt != nil {
			n++
		}
		out[p.UserID] = n
	}
	return out
}

// Tick evaluates every active challenge once. A run that starts while another is still in
// progress returns immediately. Persistence failures abort the run and are returned; the
// next tick starts over.
func (s *ChallengeService) Tick(ctx context.Context) (err error) {
	if !s.ticking.CompareAndSwap(false, true) {
		s.Log.Debug("challenge tick skipped, previous run still in progress")
		return nil
	}
	defer s.ticking.Store(false)

	start := time.Now()
	defer func() { metrics.ObserveTick("challenge", start, err) }()

	active, err := s.Store.ListActive(ctx)
	if err != nil {
		return dbError("list active challenges", err)
	}
	for i := range active {
		if err := s.evaluate(ctx, &active[i]); err != nil {
			s.Log.Error("challenge tick aborted", zap.String("challenge_id", active[i].ID), zap.Error(err))
			return err
		}
	}
	return nil
}

type solveResult struct {
	index int
	sub   Submission
}

// pollParticipants queries the submission source for every unsolved participant.
// Failures are logged per participant and never stop the others.
func (s *ChallengeService) pollParticipants(ctx context.Context, ch *models.Challenge) []solveResult {
	type job struct {
		index  int
		handle string
	}
	var jobs []job
	for i, p := range ch.Participants {
		if p.SolvedAt != nil {
			continue
		}
		handle, linked, err := s.Handles.GetLinkedHandle(ctx, ch.ScopeID, p.UserID)
		if err != nil {
			metrics.ExternalQueryFailed("challenge")
			s.Log.Warn("handle lookup failed", zap.String("challenge_id", ch.ID), zap.String("user_id", p.UserID), zap.Error(err))
			continue
		}
		if !linked {
			s.Log.Warn("participant has no linked handle", zap.String("challenge_id", ch.ID), zap.String("user_id", p.UserID))
			continue
		}
		jobs = append(jobs, job{index: i, handle: handle})
	}

	found := make([]*Submission, len(jobs))
	var g errgroup.Group
	g.SetLimit(max(s.Config.FanOut, 1))
	for j, jb := range jobs {
		j, jb := j, jb
		g.Go(func() error {
			qctx, cancel := context.WithTimeout(ctx, queryTimeout(s.Config.QueryTimeout))
			defer cancel()
			subs, err := s.Submissions.FetchAcceptedSubmissions(qctx, jb.handle, ch.StartedAt)
			if err != nil {
				metrics.ExternalQueryFailed("challenge")
				s.Log.Warn("submission query failed, retrying next tick",
					zap.String("challenge_id", ch.ID),
					zap.String("handle", jb.handle),
					zap.Error(err),
				)
				return nil
			}
			found[j] = earliestMatch(subs, ch.ContestID, ch.ProblemIndex, ch.StartedAt, ch.EndsAt)
			return nil
		})
	}
	_ = g.Wait()

	var results []solveResult
	for j, sub := range found {
		if sub != nil {
			results = append(results, solveResult{index: jobs[j].index, sub: *sub})
		}
	}
	return results
}

func (s *ChallengeService) evaluate(ctx context.Context, ch *models.Challenge) error {
	solves := s.pollParticipants(ctx, ch)

	now := s.Now().Unix()
	bucket := remainingBucket(now, ch.EndsAt)
	solvedNow := 0
	completed := false

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		store := s.Store.WithTx(tx)
		handles := s.Handles.WithTx(tx)

		ok, err := store.Touch(ctx, ch.ID, bucket)
		if err != nil {
			return err
		}
		if !ok {
			return errNoLongerActive
		}

		for _, sv := range solves {
			p := &ch.Participants[sv.index]
			rating, err := handles.GetRating(ctx, ch.ScopeID, p.UserID)
			if err != nil {
				return err
			}
			solvedAt, subID := sv.sub.CreationTimeSeconds, sv.sub.ID
			frac := ElapsedFraction(ch.StartedAt, ch.EndsAt, solvedAt)
			points := ComputeDelta(rating, ch.ProblemRating, ch.LengthMinutes, true, frac).Points()

			recorded, err := store.RecordSolve(ctx, p.ID, solvedAt, subID, points)
			if err != nil {
				return err
			}
			if !recorded {
				continue
			}
			if err := s.applyRating(ctx, handles, ch.ScopeID, p.UserID, rating+points); err != nil {
				return err
			}
			p.SolvedAt, p.SubmissionID, p.RatingDelta = &solvedAt, &subID, &points
			solvedNow++
		}

		if now < ch.EndsAt && !allSolved(ch.Participants) {
			return nil
		}

		ok, err = store.Transition(ctx, ch.ID, models.ChallengeStatusCompleted, now)
		if err != nil {
			return err
		}
		if !ok {
			return errNoLongerActive
		}
		for i := range ch.Participants {
			p := &ch.Participants[i]
			if p.SolvedAt != nil || p.RatingDelta != nil {
				continue
			}
			rating, err := handles.GetRating(ctx, ch.ScopeID, p.UserID)
			if err != nil {
				return err
			}
			points := ComputeDelta(rating, ch.ProblemRating, ch.LengthMinutes, false, 1).Points()
			recorded, err := store.RecordDelta(ctx, p.ID, points)
			if err != nil {
				return err
			}
			if !recorded {
				continue
			}
			if err := s.applyRating(ctx, handles, ch.ScopeID, p.UserID, rating+points); err != nil {
				return err
			}
			p.RatingDelta = &points
		}
		completed = true
		return nil
	})
	if errors.Is(err, errNoLongerActive) {
		s.Log.Info("challenge ended concurrently, skipping", zap.String("challenge_id", ch.ID))
		return nil
	}
	if err != nil {
		return dbError("evaluate challenge "+ch.ID, err)
	}
	ch.CheckIndex++

	if completed {
		ch.Status = models.ChallengeStatusCompleted
		ch.CompletedAt = &now
		metrics.ChallengeTransitioned(models.ChallengeStatusCompleted)
		s.Log.Info("challenge completed",
			zap.String("challenge_id", ch.ID),
			zap.Int64("check_index", ch.CheckIndex),
			zap.Bool("deadline", now >= ch.EndsAt),
		)
		s.Announce(ctx, ch)
		if ch.MatchID != nil && s.Listener != nil {
			if err := s.Listener.OnChallengeCompleted(ctx, ch.ID); err != nil {
				s.Log.Error("match resolution failed, left for reconciliation", zap.String("challenge_id", ch.ID), zap.Error(err))
			}
		}
		return nil
	}

	if solvedNow > 0 || bucket != ch.SummaryBucket {
		ch.SummaryBucket = bucket
		s.Announce(ctx, ch)
	}
	return nil
}

// applyRating writes a new rating; users whose handle was unlinked mid-challenge keep
// their delta on the participant row only.
func (s *ChallengeService) applyRating(ctx context.Context, handles HandleStore, scopeID, userID string, rating int) error {
	err := handles.UpdateRating(ctx, scopeID, userID, rating)
	if errors.Is(err, ErrNotFound) {
		s.Log.Warn("rating not applied, handle no longer linked", zap.String("user_id", userID))
		return nil
	}
	return err
}

// GetActiveChallengesForUsers reports the running challenge of each given user that has one.
func (s *ChallengeService) GetActiveChallengesForUsers(ctx context.Context, userIDs []string) (map[string]ActiveChallengeSummary, error) {
	active, err := s.Store.GetActiveForUsers(ctx, userIDs)
	if err != nil {
		return nil, dbError("load active challenges", err)
	}
	now := s.Now().Unix()
	out := make(map[string]ActiveChallengeSummary, len(active))
	for userID, ch := range active {
		out[userID] = ActiveChallengeSummary{
			ChallengeID:      ch.ID,
			HostID:           ch.HostID,
			ContestID:        ch.ContestID,
			ProblemIndex:     ch.ProblemIndex,
			ProblemName:      ch.ProblemName,
			EndsAt:           ch.EndsAt,
			RemainingSeconds: max(ch.EndsAt-now, 0),
		}
	}
	return out, nil
}

func (s *ChallengeService) ListActiveChallengesForUser(ctx context.Context, userID string) ([]models.Challenge, error) {
	challenges, err := s.Store.ListActiveForUser(ctx, userID)
	if err != nil {
		return nil, dbError("list active challenges", err)
	}
	return challenges, nil
}

// ListRecentCompletedChallenges returns completed challenges, newest completion first.
func (s *ChallengeService) ListRecentCompletedChallenges(ctx context.Context, scopeID string, limit int) ([]models.Challenge, error) {
	if limit <= 0 {
		limit = defaultRecentLimit
	}
	if limit > maxRecentLimit {
		limit = maxRecentLimit
	}
	challenges, err := s.Store.ListRecentCompleted(ctx, scopeID, limit)
	if err != nil {
		return nil, dbError("list recent challenges", err)
	}
	return challenges, nil
}

// earliestMatch picks the first accepted submission on the problem inside the window.
func earliestMatch(subs []Submission, contestID int, index string, startedAt, endsAt int64) *Submission {
	var best *Submission
	for i := range subs {
		sub := &subs[i]
		if sub.ContestID != contestID || sub.ProblemIndex != index {
			continue
		}
		if sub.CreationTimeSeconds < startedAt || sub.CreationTimeSeconds > endsAt {
			continue
		}
		if best == nil || sub.CreationTimeSeconds < best.CreationTimeSeconds ||
			(sub.CreationTimeSeconds == best.CreationTimeSeconds && sub.ID < best.ID) {
			best = sub
		}
	}
	if best == nil {
		return nil
	}
	out := *best
	return &out
}

func allSolved(participants []models.ChallengeParticipant) bool {
	for _, p := range participants {
		if p.SolvedAt == nil {
			return false
		}
	}
	return len(participants) > 0
}

func remainingBucket(now, endsAt int64) int {
	if now >= endsAt {
		return 0
	}
	return int((endsAt - now + summaryBucketSeconds - 1) / summaryBucketSeconds)
}

func queryTimeout(d time.Duration) time.Duration {
	if d <= 0 {
		return DefaultChallengeConfig().QueryTimeout
	}
	return d
}
