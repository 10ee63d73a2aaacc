package services

import "math"

const (
	ratingScale       = 400.0
	baseKFactor       = 32.0
	lateSolveDiscount = 0.5
)

// lengthFactors scale the K factor: longer challenges move ratings less.
var lengthFactors = map[int]float64{
	40: 1.0,
	60: 0.9,
	80: 0.8,
}

// Delta is the rating change of one participant. Down ≤ 0 applies when the problem
// is left unsolved at the deadline, Up ≥ 0 when it is solved in time.
type Delta struct {
	Down    float64
	Up      float64
	Applied float64
}

// Points is the applied change rounded to whole rating points.
func (d Delta) Points() int {
	return int(math.Round(d.Applied))
}

// SolveProbability is the Elo-style expectation that a user rated currentRating solves
// a problem rated problemRating.
// Formula: 1 / (1 + 10^((problemRating - currentRating) / 400))
func SolveProbability(currentRating, problemRating int) float64 {
	return 1.0 / (1.0 + math.Pow(10, float64(problemRating-currentRating)/ratingScale))
}

func kFactor(lengthMinutes int) float64 {
	if f, ok := lengthFactors[lengthMinutes]; ok {
		return baseKFactor * f
	}
	return baseKFactor
}

// ComputeDelta returns the penalty and reward for a challenge attempt.
// elapsedFraction is the share of the challenge duration consumed at solve time and is
// clamped to [0, 1]; the reward shrinks linearly to half its value at the deadline.
func ComputeDelta(currentRating, problemRating, lengthMinutes int, solved bool, elapsedFraction float64) Delta {
	if math.IsNaN(elapsedFraction) || elapsedFraction < 0 {
		elapsedFraction = 0
	}
	if elapsedFraction > 1 {
		elapsedFraction = 1
	}

	k := kFactor(lengthMinutes)
	p := SolveProbability(currentRating, problemRating)

	d := Delta{
		Down: -k * p,
		Up:   k * (1 - p) * (1 - lateSolveDiscount*elapsedFraction),
	}
	if d.Down > 0 {
		d.Down = 0
	}
	if d.Up < 0 {
		d.Up = 0
	}
	if solved {
		d.Applied = d.Up
	} else {
		d.Applied = d.Down
	}
	return d
}

// ElapsedFraction is the share of [startedAt, endsAt] consumed at solvedAt.
func ElapsedFraction(startedAt, endsAt, solvedAt int64) float64 {
	total := endsAt - startedAt
	if total <= 0 {
		return 1
	}
	f := float64(solvedAt-startedAt) / float64(total)
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}
