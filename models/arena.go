package models

// ArenaState is the shared solving window of an arena tournament.
type ArenaState struct {
	TournamentID string `json:"tournament_id" gorm:"primaryKey"`
	StartsAt     int64  `json:"starts_at" gorm:"not null"`
	EndsAt       int64  `json:"ends_at" gorm:"not null"`
	ProblemCount int    `json:"problem_count"`
}

// ArenaProblem is one entry of an arena's problem set.
type ArenaProblem struct {
	ID           string `json:"id" gorm:"primaryKey"`
	TournamentID string `json:"tournament_id" gorm:"not null;uniqueIndex:idx_arena_problem"`
	ContestID    int    `json:"contest_id" gorm:"not null;uniqueIndex:idx_arena_problem"`
	ProblemIndex string `json:"problem_index" gorm:"type:varchar(8);not null;uniqueIndex:idx_arena_problem"`
	Name         string `json:"name"`
	Rating       int    `json:"rating"`
	Position     int    `json:"position"`
}

// Key identifies the problem independently of the arena.
func (p ArenaProblem) Key() ProblemKey {
	return ProblemKey{ContestID: p.ContestID, Index: p.ProblemIndex}
}

// ArenaSolve is append-only: the first accepted submission per (tournament, user, problem) wins.
type ArenaSolve struct {
	ID           string `json:"id" gorm:"primaryKey"`
	TournamentID string `json:"tournament_id" gorm:"not null;uniqueIndex:idx_arena_solve"`
	UserID       string `json:"user_id" gorm:"not null;uniqueIndex:idx_arena_solve"`
	ContestID    int    `json:"contest_id" gorm:"not null;uniqueIndex:idx_arena_solve"`
	ProblemIndex string `json:"problem_index" gorm:"type:varchar(8);not null;uniqueIndex:idx_arena_solve"`
	SubmissionID int64  `json:"submission_id"`
	SolvedAt     int64  `json:"solved_at"`
}

// Key identifies the solved problem.
func (s ArenaSolve) Key() ProblemKey {
	return ProblemKey{ContestID: s.ContestID, Index: s.ProblemIndex}
}

// ProblemKey is an external problem reference: contest id plus problem index.
type ProblemKey struct {
	ContestID int
	Index     string
}
