package services

import (
	"cmp"
	"slices"

	"duel-engine/models"
)

// Standing is one computed leaderboard row. Standings are derived on every read.
type Standing struct {
	Rank        int     `json:"rank"`
	UserID      string  `json:"user_id"`
	Seed        int     `json:"seed"`
	Score       float64 `json:"score"`
	Wins        int     `json:"wins"`
	Losses      int     `json:"losses"`
	Draws       int     `json:"draws"`
	Eliminated  bool    `json:"eliminated"`
	Tiebreak    float64 `json:"tiebreak"`
	Solved      int     `json:"solved,omitempty"`
	LastSolveAt *int64  `json:"last_solve_at,omitempty"`
}

func standingFrom(p models.TournamentParticipant) Standing {
	return Standing{
		UserID:     p.UserID,
		Seed:       p.Seed,
		Score:      p.Score,
		Wins:       p.Wins,
		Losses:     p.Losses,
		Draws:      p.Draws,
		Eliminated: p.Eliminated,
	}
}

// ComputeMatchStandings ranks swiss and elimination rosters by score, then by the
// Sonneborn-Berger sum of defeated (full) and drawn (half) opponents' current scores,
// then by seed.
func ComputeMatchStandings(participants []models.TournamentParticipant, matches []models.TournamentMatch) []Standing {
	scores := make(map[string]float64, len(participants))
	for _, p := range participants {
		scores[p.UserID] = p.Score
	}

	tiebreak := make(map[string]float64, len(participants))
	for _, m := range matches {
		if m.Status != models.MatchStatusCompleted || m.IsBye() {
			continue
		}
		p1, p2 := m.Player1ID, *m.Player2ID
		switch {
		case m.IsDraw:
			tiebreak[p1] += 0.5 * scores[p2]
			tiebreak[p2] += 0.5 * scores[p1]
		case m.WinnerID != nil && *m.WinnerID == p1:
			tiebreak[p1] += scores[p2]
		case m.WinnerID != nil && *m.WinnerID == p2:
			tiebreak[p2] += scores[p1]
		}
	}

	out := make([]Standing, 0, len(participants))
	for _, p := range participants {
		st := standingFrom(p)
		st.Tiebreak = tiebreak[p.UserID]
		out = append(out, st)
	}
	slices.SortFunc(out, func(a, b Standing) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		if c := cmp.Compare(b.Tiebreak, a.Tiebreak); c != 0 {
			return c
		}
		return cmp.Compare(a.Seed, b.Seed)
	})
	return ranked(out)
}

// ComputeArenaStandings ranks by distinct problems solved; equal counts go to whoever
// reached the count first, and rows without solves fall back to seed.
func ComputeArenaStandings(participants []models.TournamentParticipant, solves []models.ArenaSolve) []Standing {
	type progress struct {
		problems map[models.ProblemKey]bool
		last     int64
	}
	byUser := make(map[string]*progress)
	for _, sv := range solves {
		pr, ok := byUser[sv.UserID]
		if !ok {
			pr = &progress{problems: make(map[models.ProblemKey]bool)}
			byUser[sv.UserID] = pr
		}
		if pr.problems[sv.Key()] {
			continue
		}
		pr.problems[sv.Key()] = true
		pr.last = max(pr.last, sv.SolvedAt)
	}

	out := make([]Standing, 0, len(participants))
	for _, p := range participants {
		st := standingFrom(p)
		if pr, ok := byUser[p.UserID]; ok {
			st.Solved = len(pr.problems)
			st.Score = float64(st.Solved)
			last := pr.last
			st.LastSolveAt = &last
		}
		out = append(out, st)
	}
	slices.SortFunc(out, func(a, b Standing) int {
		if c := cmp.Compare(b.Solved, a.Solved); c != 0 {
			return c
		}
		if a.Solved > 0 {
			if c := cmp.Compare(*a.LastSolveAt, *b.LastSolveAt); c != 0 {
				return c
			}
		}
		return cmp.Compare(a.Seed, b.Seed)
	})
	return ranked(out)
}

func ranked(standings []Standing) []Standing {
	for i := range standings {
		standings[i].Rank = i + 1
	}
	return standings
}
