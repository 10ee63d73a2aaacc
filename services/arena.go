package services

import (
	"context"
	"time"

	"duel-engine/metrics"
	"duel-engine/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

// RunArenaTick polls solves for every active arena whose window has opened. An arena
// past its end gets one last poll limited to submissions made before the end and is
// then completed. Runs never overlap.
func (s *TournamentService) RunArenaTick(ctx context.Context) (err error) {
	if !s.arenaTicking.CompareAndSwap(false, true) {
		s.Log.Debug("arena tick skipped, previous run still in progress")
		return nil
	}
	defer s.arenaTicking.Store(false)

	start := time.Now()
	defer func() { metrics.ObserveTick("arena", start, err) }()

	arenas, err := s.Store.ListActiveArenas(ctx)
	if err != nil {
		return dbError("list active arenas", err)
	}
	for i := range arenas {
		if err := s.tickArena(ctx, &arenas[i]); err != nil {
			s.Log.Error("arena tick aborted", zap.String("tournament_id", arenas[i].ID), zap.Error(err))
			return err
		}
	}
	return nil
}

type arenaPoll struct {
	userID string
	subs   []Submission
}

func (s *TournamentService) tickArena(ctx context.Context, t *models.Tournament) error {
	state, err := s.Store.GetArenaState(ctx, t.ID)
	if err != nil {
		return dbError("load arena state", err)
	}
	now := s.Now().Unix()
	if now < state.StartsAt {
		return nil
	}
	final := now >= state.EndsAt

	problems, err := s.Store.ListArenaProblems(ctx, t.ID)
	if err != nil {
		return dbError("load arena problems", err)
	}
	inSet := make(map[models.ProblemKey]bool, len(problems))
	for _, p := range problems {
		inSet[p.Key()] = true
	}

	polls, failures := s.pollArena(ctx, t, state, inSet)

	// Failed polls at the end are retried until the grace period runs out.
	complete := final
	if final && failures > 0 && now < state.EndsAt+int64(s.Config.ArenaFinalGrace/time.Second) {
		s.Log.Warn("arena final poll incomplete, retrying next tick",
			zap.String("tournament_id", t.ID),
			zap.Int("failures", failures),
		)
		complete = false
	}

	inserted := 0
	completed := false
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		store := s.Store.WithTx(tx)
		for _, poll := range polls {
			added := 0
			for _, sub := range poll.subs {
				ok, err := store.InsertArenaSolve(ctx, &models.ArenaSolve{
					ID:           uuid.NewString(),
					TournamentID: t.ID,
					UserID:       poll.userID,
					ContestID:    sub.ContestID,
					ProblemIndex: sub.ProblemIndex,
					SubmissionID: sub.ID,
					SolvedAt:     sub.CreationTimeSeconds,
				})
				if err != nil {
					return err
				}
				if ok {
					added++
				}
			}
			if added == 0 {
				continue
			}
			n, err := store.CountArenaSolves(ctx, t.ID, poll.userID)
			if err != nil {
				return err
			}
			if err := store.SetParticipantScore(ctx, t.ID, poll.userID, float64(n)); err != nil {
				return err
			}
			inserted += added
		}
		if !complete {
			return nil
		}
		ok, err := store.TransitionTournament(ctx, t.ID, models.TournamentStatusCompleted, now)
		completed = ok
		return err
	})
	if err != nil {
		return dbError("record arena solves", err)
	}

	metrics.ArenaSolvesRecorded(inserted)
	if inserted > 0 {
		s.Log.Info("arena solves recorded", zap.String("tournament_id", t.ID), zap.Int("solves", inserted))
	}
	if inserted > 0 || completed {
		s.afterResolution(ctx, t.ID, completed)
	}
	return nil
}

// pollArena fetches every participant's accepted submissions inside the arena window and
// keeps the first one per arena problem.
func (s *TournamentService) pollArena(ctx context.Context, t *models.Tournament, state *models.ArenaState, inSet map[models.ProblemKey]bool) ([]arenaPoll, int) {
	polls := make([]arenaPoll, len(t.Participants))
	failed := make([]bool, len(t.Participants))

	var g errgroup.Group
	g.SetLimit(max(s.Config.FanOut, 1))
	for i, p := range t.Participants {
		i, p := i, p
		polls[i].userID = p.UserID
		g.Go(func() error {
			handle, linked, err := s.Handles.GetLinkedHandle(ctx, t.ScopeID, p.UserID)
			if err != nil || !linked {
				failed[i] = err != nil
				if err != nil {
					metrics.ExternalQueryFailed("arena")
				}
				s.Log.Warn("arena participant skipped", zap.String("user_id", p.UserID), zap.Bool("linked", linked), zap.Error(err))
				return nil
			}
			qctx, cancel := context.WithTimeout(ctx, queryTimeout(s.Config.QueryTimeout))
			defer cancel()
			subs, err := s.Submissions.FetchAcceptedSubmissions(qctx, handle, state.StartsAt)
			if err != nil {
				failed[i] = true
				metrics.ExternalQueryFailed("arena")
				s.Log.Warn("arena submission query failed", zap.String("tournament_id", t.ID), zap.String("handle", handle), zap.Error(err))
				return nil
			}
			polls[i].subs = firstSolves(subs, inSet, state.StartsAt, state.EndsAt)
			return nil
		})
	}
	_ = g.Wait()

	failures := 0
	for _, f := range failed {
		if f {
			failures++
		}
	}
	return polls, failures
}

// firstSolves keeps the earliest in-window submission per arena problem.
func firstSolves(subs []Submission, inSet map[models.ProblemKey]bool, startsAt, endsAt int64) []Submission {
	best := make(map[models.ProblemKey]Submission)
	var order []models.ProblemKey
	for _, sub := range subs {
		key := models.ProblemKey{ContestID: sub.ContestID, Index: sub.ProblemIndex}
		if !inSet[key] || sub.CreationTimeSeconds < startsAt || sub.CreationTimeSeconds > endsAt {
			continue
		}
		cur, ok := best[key]
		if !ok {
			order = append(order, key)
		}
		if !ok || sub.CreationTimeSeconds < cur.CreationTimeSeconds ||
			(sub.CreationTimeSeconds == cur.CreationTimeSeconds && sub.ID < cur.ID) {
			best[key] = sub
		}
	}
	out := make([]Submission, 0, len(order))
	for _, key := range order {
		out = append(out, best[key])
	}
	return out
}
