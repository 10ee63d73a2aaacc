package services

import (
	"testing"

	"duel-engine/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func decided(round, number int, p1, p2, winner string) models.TournamentMatch {
	return models.TournamentMatch{
		RoundNumber: round, MatchNumber: number,
		Player1ID: p1, Player2ID: strPtr(p2), WinnerID: strPtr(winner),
		Status: models.MatchStatusCompleted,
	}
}

func userIDs(standings []Standing) []string {
	ids := make([]string, 0, len(standings))
	for _, st := range standings {
		ids = append(ids, st.UserID)
	}
	return ids
}

func TestComputeMatchStandings_SonnebornBerger(t *testing.T) {
	participants := []models.TournamentParticipant{
		{UserID: "B", Seed: 1, Score: 1, Wins: 1},
		{UserID: "A", Seed: 2, Score: 1, Wins: 1},
		{UserID: "C", Seed: 3, Score: 0.5, Losses: 1, Draws: 1},
		{UserID: "D", Seed: 4, Score: 0, Losses: 1},
	}
	matches := []models.TournamentMatch{
		decided(1, 1, "A", "C", "A"),
		decided(1, 2, "B", "D", "B"),
	}

	standings := ComputeMatchStandings(participants, matches)
	require.Len(t, standings, 4)
	assert.Equal(t, []string{"A", "B", "C", "D"}, userIDs(standings))
	assert.InDelta(t, 0.5, standings[0].Tiebreak, 1e-9)
	assert.InDelta(t, 0.0, standings[1].Tiebreak, 1e-9)
	assert.Equal(t, 1, standings[0].Rank)
	assert.Equal(t, 4, standings[3].Rank)
}

func TestComputeMatchStandings_DrawsAndByes(t *testing.T) {
	participants := []models.TournamentParticipant{
		{UserID: "A", Seed: 1, Score: 1.5},
		{UserID: "B", Seed: 2, Score: 1.5},
		{UserID: "C", Seed: 3, Score: 1},
	}
	matches := []models.TournamentMatch{
		{RoundNumber: 1, MatchNumber: 1, Player1ID: "A", Player2ID: strPtr("B"), IsDraw: true, Status: models.MatchStatusCompleted},
		{RoundNumber: 1, MatchNumber: 2, Player1ID: "C", WinnerID: strPtr("C"), Status: models.MatchStatusBye},
		decided(2, 1, "B", "C", "B"),
		{RoundNumber: 2, MatchNumber: 2, Player1ID: "A", WinnerID: strPtr("A"), Status: models.MatchStatusBye},
	}

	standings := ComputeMatchStandings(participants, matches)
	// B: half of A's 1.5 plus all of C's 1; A: half of B's 1.5.
	assert.Equal(t, []string{"B", "A", "C"}, userIDs(standings))
	assert.InDelta(t, 1.75, standings[0].Tiebreak, 1e-9)
	assert.InDelta(t, 0.75, standings[1].Tiebreak, 1e-9)
	assert.InDelta(t, 0.0, standings[2].Tiebreak, 1e-9)
}

func TestComputeMatchStandings_IgnoresOpenMatchesAndFallsBackToSeed(t *testing.T) {
	participants := []models.TournamentParticipant{
		{UserID: "late", Seed: 2},
		{UserID: "early", Seed: 1},
	}
	matches := []models.TournamentMatch{
		{RoundNumber: 1, MatchNumber: 1, Player1ID: "late", Player2ID: strPtr("early"), Status: models.MatchStatusActive},
	}
	assert.Equal(t, []string{"early", "late"}, userIDs(ComputeMatchStandings(participants, matches)))
}

func arenaSolve(user string, contest int, index string, at int64) models.ArenaSolve {
	return models.ArenaSolve{UserID: user, ContestID: contest, ProblemIndex: index, SolvedAt: at}
}

func TestComputeArenaStandings(t *testing.T) {
	participants := []models.TournamentParticipant{
		{UserID: "slow", Seed: 1},
		{UserID: "fast", Seed: 2},
		{UserID: "idle-b", Seed: 4},
		{UserID: "idle-a", Seed: 3},
		{UserID: "one", Seed: 5},
	}
	solves := []models.ArenaSolve{
		arenaSolve("slow", 1000, "A", 1100),
		arenaSolve("slow", 1000, "B", 1500),
		arenaSolve("fast", 1000, "B", 1200),
		arenaSolve("fast", 1000, "A", 1400),
		arenaSolve("fast", 1000, "A", 1450),
		arenaSolve("one", 1001, "C", 1010),
	}

	standings := ComputeArenaStandings(participants, solves)
	assert.Equal(t, []string{"fast", "slow", "one", "idle-a", "idle-b"}, userIDs(standings))
	assert.Equal(t, 2, standings[0].Solved)
	require.NotNil(t, standings[0].LastSolveAt)
	assert.Equal(t, int64(1400), *standings[0].LastSolveAt)
	assert.Equal(t, 2.0, standings[1].Score)
	assert.Nil(t, standings[3].LastSolveAt)
}
