package services

import (
	"context"
	"testing"

	"duel-engine/models"
	"duel-engine/testhelpers"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func storedChallenge(t *testing.T, store *ChallengeStore, scope string, completedAt int64, solvers map[string]bool) *models.Challenge {
	t.Helper()
	ch := &models.Challenge{
		ID:            uuid.NewString(),
		ScopeID:       scope,
		HostID:        "host",
		ContestID:     1000,
		ProblemIndex:  "A",
		LengthMinutes: 40,
		Status:        models.ChallengeStatusActive,
		StartedAt:     completedAt - 2400,
		EndsAt:        completedAt,
	}
	pos := 0
	for user, solved := range solvers {
		p := models.ChallengeParticipant{ID: uuid.NewString(), ChallengeID: ch.ID, UserID: user, Position: pos}
		if solved {
			at := completedAt - 60
			p.SolvedAt = &at
		}
		ch.Participants = append(ch.Participants, p)
		pos++
	}
	ctx := context.Background()
	require.NoError(t, store.Create(ctx, ch))
	ok, err := store.Transition(ctx, ch.ID, models.ChallengeStatusCompleted, completedAt)
	require.NoError(t, err)
	require.True(t, ok)
	return ch
}

func TestChallengeStore_SolveStreak(t *testing.T) {
	store := NewChallengeStore(testhelpers.SetupTestDB(t))
	ctx := context.Background()

	storedChallenge(t, store, testScope, 100, map[string]bool{"alice": true})
	storedChallenge(t, store, testScope, 200, map[string]bool{"alice": false})
	storedChallenge(t, store, testScope, 300, map[string]bool{"alice": true})
	storedChallenge(t, store, "other", 350, map[string]bool{"alice": false})
	latest := storedChallenge(t, store, testScope, 400, map[string]bool{"alice": true})

	streak, err := store.SolveStreak(ctx, testScope, "alice", "")
	require.NoError(t, err)
	assert.Equal(t, 2, streak)

	streak, err = store.SolveStreak(ctx, testScope, "alice", latest.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, streak)

	streak, err = store.SolveStreak(ctx, testScope, "nobody", "")
	require.NoError(t, err)
	assert.Zero(t, streak)
}

func TestChallengeStore_GuardedWrites(t *testing.T) {
	store := NewChallengeStore(testhelpers.SetupTestDB(t))
	ctx := context.Background()

	ch := &models.Challenge{
		ID: uuid.NewString(), ScopeID: testScope, HostID: "host", ContestID: 1000, ProblemIndex: "A",
		LengthMinutes: 40, Status: models.ChallengeStatusActive, StartedAt: 0, EndsAt: 2400,
		Participants: []models.ChallengeParticipant{{ID: uuid.NewString(), UserID: "alice"}},
	}
	require.NoError(t, store.Create(ctx, ch))
	pid := ch.Participants[0].ID

	ok, err := store.Touch(ctx, ch.ID, 7)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.RecordSolve(ctx, pid, 100, 5, 12)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = store.RecordSolve(ctx, pid, 90, 4, 20)
	require.NoError(t, err)
	assert.False(t, ok, "first solve wins")
	ok, err = store.RecordDelta(ctx, pid, -10)
	require.NoError(t, err)
	assert.False(t, ok, "delta is written once")

	ok, err = store.Transition(ctx, ch.ID, models.ChallengeStatusCancelled, 200)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = store.Transition(ctx, ch.ID, models.ChallengeStatusCompleted, 300)
	require.NoError(t, err)
	assert.False(t, ok)
	ok, err = store.Touch(ctx, ch.ID, 6)
	require.NoError(t, err)
	assert.False(t, ok)

	got, err := store.Get(ctx, ch.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ChallengeStatusCancelled, got.Status)
	assert.Equal(t, int64(1), got.CheckIndex)
	assert.Equal(t, 7, got.SummaryBucket)
	require.NotNil(t, got.CompletedAt)
	assert.Equal(t, int64(200), *got.CompletedAt)
	p := got.Participants[0]
	assert.Equal(t, int64(100), *p.SolvedAt)
	assert.Equal(t, int64(5), *p.SubmissionID)
	assert.Equal(t, 12, *p.RatingDelta)

	_, err = store.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestChallengeStore_ActiveLookups(t *testing.T) {
	store := NewChallengeStore(testhelpers.SetupTestDB(t))
	ctx := context.Background()

	active := &models.Challenge{
		ID: uuid.NewString(), ScopeID: testScope, HostID: "alice", ContestID: 1000, ProblemIndex: "A",
		LengthMinutes: 40, Status: models.ChallengeStatusActive, StartedAt: 0, EndsAt: 2400,
		Participants: []models.ChallengeParticipant{
			{ID: uuid.NewString(), UserID: "alice", Position: 0},
			{ID: uuid.NewString(), UserID: "bob", Position: 1},
		},
	}
	require.NoError(t, store.Create(ctx, active))
	storedChallenge(t, store, testScope, 500, map[string]bool{"carol": true})

	byUser, err := store.GetActiveForUsers(ctx, []string{"alice", "carol", "dave"})
	require.NoError(t, err)
	require.Len(t, byUser, 1)
	assert.Equal(t, active.ID, byUser["alice"].ID)
	assert.Len(t, byUser["alice"].Participants, 2)

	list, err := store.ListActiveForUser(ctx, "bob")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "alice", list[0].Participants[0].UserID)

	recent, err := store.ListRecentCompleted(ctx, testScope, 10)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, "carol", recent[0].Participants[0].UserID)
}
