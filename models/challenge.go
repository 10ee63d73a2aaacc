package models

// Challenge lifecycle markers. Transitions only go active → completed or active → cancelled.
const (
	ChallengeStatusActive    = "active"
	ChallengeStatusCompleted = "completed"
	ChallengeStatusCancelled = "cancelled"
)

// Challenge is one timed attempt at a single problem by one or more users.
// All timestamps are epoch seconds.
type Challenge struct {
	ID            string `json:"id" gorm:"primaryKey"`
	ScopeID       string `json:"scope_id" gorm:"not null;index"`
	HostID        string `json:"host_id" gorm:"not null;index"`
	ContestID     int    `json:"contest_id" gorm:"not null"`
	ProblemIndex  string `json:"problem_index" gorm:"type:varchar(8);not null"`
	ProblemName   string `json:"problem_name"`
	ProblemRating int    `json:"problem_rating"`
	LengthMinutes int    `json:"length_minutes" gorm:"not null"`
	Status        string `json:"status" gorm:"type:varchar(16);not null;index;default:'active'"`
	StartedAt     int64  `json:"started_at" gorm:"not null"`
	EndsAt        int64  `json:"ends_at" gorm:"not null"`
	CompletedAt   *int64 `json:"completed_at,omitempty" gorm:"index"`

	// CheckIndex counts evaluation passes; SummaryBucket remembers the remaining-time
	// bucket of the last in-progress summary so unchanged state isn't re-posted.
	CheckIndex    int64 `json:"check_index"`
	SummaryBucket int   `json:"-"`

	// Set when the challenge backs a tournament match.
	MatchID *string `json:"match_id,omitempty" gorm:"index"`

	Participants []ChallengeParticipant `json:"participants,omitempty" gorm:"foreignKey:ChallengeID"`

	Timestamps
}

// ChallengeParticipant is one entrant of a challenge. RatingDelta is written at most once.
type ChallengeParticipant struct {
	ID           string `json:"id" gorm:"primaryKey"`
	ChallengeID  string `json:"challenge_id" gorm:"not null;uniqueIndex:idx_challenge_participant"`
	UserID       string `json:"user_id" gorm:"not null;index;uniqueIndex:idx_challenge_participant"`
	Position     int    `json:"position"`
	SolvedAt     *int64 `json:"solved_at,omitempty"`
	SubmissionID *int64 `json:"submission_id,omitempty"`
	RatingBefore *int   `json:"rating_before,omitempty"`
	RatingDelta  *int   `json:"rating_delta,omitempty"`
}

// Solved reports whether the participant has an accepted submission recorded.
func (p ChallengeParticipant) Solved() bool {
	return p.SolvedAt != nil
}
