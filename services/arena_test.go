package services

import (
	"context"
	"testing"

	"duel-engine/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (f *fixture) newArena(t *testing.T, startsAt int64, users ...string) *models.Tournament {
	t.Helper()
	f.link(t, users...)
	tr, err := f.tournaments.CreateArena(context.Background(), ArenaSpec{
		ScopeID:       testScope,
		HostID:        "host",
		Name:          "Friday Arena",
		LengthMinutes: 60,
		StartsAt:      startsAt,
		Problems: []models.ProblemKey{
			{ContestID: 1000, Index: "A"},
			{ContestID: 1000, Index: "B"},
		},
		ParticipantIDs: users,
	})
	require.NoError(t, err)
	return tr
}

func solve(id int64, contest int, index string, at int64) Submission {
	return Submission{ID: id, ContestID: contest, ProblemIndex: index, CreationTimeSeconds: at}
}

func TestCreateArena_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.link(t, "alice")
	base := ArenaSpec{
		ScopeID: testScope, HostID: "host", Name: "Arena", LengthMinutes: 60,
		Problems:       []models.ProblemKey{{ContestID: 1000, Index: "A"}},
		ParticipantIDs: []string{"alice"},
	}

	cases := map[string]func(s *ArenaSpec){
		"unknown problem":   func(s *ArenaSpec) { s.Problems = []models.ProblemKey{{ContestID: 7, Index: "Q"}} },
		"duplicate problem": func(s *ArenaSpec) { s.Problems = append(s.Problems, s.Problems[0]) },
		"no problems":       func(s *ArenaSpec) { s.Problems = nil },
		"unlinked user":     func(s *ArenaSpec) { s.ParticipantIDs = []string{"alice", "ghost"} },
		"too long":          func(s *ArenaSpec) { s.LengthMinutes = 24*60 + 1 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			spec := base
			spec.Problems = append([]models.ProblemKey(nil), base.Problems...)
			mutate(&spec)
			_, err := f.tournaments.CreateArena(ctx, spec)
			assert.ErrorIs(t, err, ErrInvalidSpec)
		})
	}

	tr, err := f.tournaments.CreateArena(ctx, base)
	require.NoError(t, err)
	state, err := f.tournaments.Store.GetArenaState(ctx, tr.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), state.StartsAt, "zero start means now")
	assert.Equal(t, int64(1000+3600), state.EndsAt)

	problems, err := f.tournaments.Store.ListArenaProblems(ctx, tr.ID)
	require.NoError(t, err)
	require.Len(t, problems, 1)
	assert.Equal(t, "Easy Sum", problems[0].Name)

	_, err = f.tournaments.StartRound(ctx, tr.ID, planA(Pairing{Player1ID: "alice"}))
	assert.ErrorIs(t, err, ErrInvalidSpec)
}

func TestArenaTick_WaitsForWindow(t *testing.T) {
	f := newFixture(t)
	f.newArena(t, 2000, "alice")

	require.NoError(t, f.tournaments.RunArenaTick(context.Background()))
	assert.Zero(t, f.source.calls[handleOf("alice")])
}

func TestArenaTick_RecordsFirstInWindowSolves(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tr := f.newArena(t, 2000, "alice", "bob", "carol")

	f.source.accept(handleOf("alice"), solve(1, 1000, "A", 1900)) // before the window
	f.source.accept(handleOf("alice"), solve(2, 1000, "A", 2100))
	f.source.accept(handleOf("alice"), solve(3, 1000, "A", 2200)) // repeat
	f.source.accept(handleOf("alice"), solve(4, 1001, "C", 2150)) // not in the set
	f.source.accept(handleOf("alice"), solve(5, 1000, "B", 2300))
	f.source.accept(handleOf("bob"), solve(6, 1000, "B", 2050))
	f.source.failFor(handleOf("carol"), errJudgeDown)

	f.at(2400)
	require.NoError(t, f.tournaments.RunArenaTick(ctx))
	require.NoError(t, f.tournaments.RunArenaTick(ctx))

	solves, err := f.tournaments.Store.ListArenaSolves(ctx, tr.ID)
	require.NoError(t, err)
	assert.Len(t, solves, 3)

	alice := f.participantRow(t, tr.ID, "alice")
	bob := f.participantRow(t, tr.ID, "bob")
	assert.Equal(t, 2.0, alice.Score)
	assert.Equal(t, 1.0, bob.Score)
	assert.Equal(t, 0.0, f.participantRow(t, tr.ID, "carol").Score)

	standings, err := f.tournaments.GetStandings(ctx, tr.ID, "")
	require.NoError(t, err)
	require.Len(t, standings, 3)
	assert.Equal(t, "alice", standings[0].UserID)
	assert.Equal(t, 2, standings[0].Solved)
	require.NotNil(t, standings[0].LastSolveAt)
	assert.Equal(t, int64(2300), *standings[0].LastSolveAt)
	assert.Equal(t, "bob", standings[1].UserID)
	assert.Equal(t, models.TournamentStatusActive, f.tournament(t, tr.ID).Status)
}

func TestArenaTick_FinalPollCountsOnlyUntilEnd(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tr := f.newArena(t, 2000, "alice", "bob")
	endsAt := int64(2000 + 3600)

	f.source.accept(handleOf("alice"), solve(1, 1000, "A", endsAt))
	f.source.accept(handleOf("bob"), solve(2, 1000, "A", endsAt+1))

	f.at(endsAt + 30)
	require.NoError(t, f.tournaments.RunArenaTick(ctx))

	got := f.tournament(t, tr.ID)
	assert.Equal(t, models.TournamentStatusCompleted, got.Status)
	assert.Equal(t, 1.0, f.participantRow(t, tr.ID, "alice").Score)
	assert.Equal(t, 0.0, f.participantRow(t, tr.ID, "bob").Score)
	assert.Len(t, f.archive.objects, 1)

	// Completed arenas are no longer polled.
	calls := f.source.calls[handleOf("alice")]
	require.NoError(t, f.tournaments.RunArenaTick(ctx))
	assert.Equal(t, calls, f.source.calls[handleOf("alice")])
}

func TestArenaTick_FinalPollRetriedWithinGrace(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tr := f.newArena(t, 2000, "alice", "bob")
	endsAt := int64(2000 + 3600)

	f.source.accept(handleOf("alice"), solve(1, 1000, "B", 3000))
	f.source.failFor(handleOf("bob"), errJudgeDown)

	f.at(endsAt + 60)
	require.NoError(t, f.tournaments.RunArenaTick(ctx))
	assert.Equal(t, models.TournamentStatusActive, f.tournament(t, tr.ID).Status)
	assert.Equal(t, 1.0, f.participantRow(t, tr.ID, "alice").Score)

	f.at(endsAt + 11*60)
	require.NoError(t, f.tournaments.RunArenaTick(ctx))
	assert.Equal(t, models.TournamentStatusCompleted, f.tournament(t, tr.ID).Status)
	assert.Equal(t, 1.0, f.participantRow(t, tr.ID, "alice").Score)
}
