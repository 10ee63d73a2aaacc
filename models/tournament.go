package models

const (
	FormatSwiss       = "swiss"
	FormatElimination = "elimination"
	FormatArena       = "arena"
)

const (
	TournamentStatusActive    = "active"
	TournamentStatusCompleted = "completed"
	TournamentStatusCancelled = "cancelled"
)

const (
	RoundStatusPending   = "pending"
	RoundStatusActive    = "active"
	RoundStatusCompleted = "completed"
)

const (
	MatchStatusPending   = "pending"
	MatchStatusActive    = "active"
	MatchStatusCompleted = "completed"
	MatchStatusBye       = "bye"
)

// Tournament is a sequence of rounds among a fixed roster, or a single arena window.
type Tournament struct {
	ID            string `json:"id" gorm:"primaryKey"`
	ScopeID       string `json:"scope_id" gorm:"not null;index"`
	HostID        string `json:"host_id" gorm:"not null"`
	Name          string `json:"name" gorm:"not null"`
	Format        string `json:"format" gorm:"type:varchar(16);not null;index"`
	Status        string `json:"status" gorm:"type:varchar(16);not null;index;default:'active'"`
	LengthMinutes int    `json:"length_minutes" gorm:"not null"`
	RoundCount    int    `json:"round_count"`
	CurrentRound  int    `json:"current_round"`
	CompletedAt   *int64 `json:"completed_at,omitempty"`

	// Relationships
	Participants []TournamentParticipant `json:"participants,omitempty" gorm:"foreignKey:TournamentID"`
	Rounds       []TournamentRound       `json:"rounds,omitempty" gorm:"foreignKey:TournamentID"`

	Timestamps
}

// TournamentParticipant is created at tournament start and mutated only by match resolution
// (or, for arenas, by solve tracking).
type TournamentParticipant struct {
	ID           string  `json:"id" gorm:"primaryKey"`
	TournamentID string  `json:"tournament_id" gorm:"not null;uniqueIndex:idx_tournament_participant"`
	UserID       string  `json:"user_id" gorm:"not null;index;uniqueIndex:idx_tournament_participant"`
	Seed         int     `json:"seed"`
	Score        float64 `json:"score"`
	Wins         int     `json:"wins"`
	Losses       int     `json:"losses"`
	Draws        int     `json:"draws"`
	Eliminated   bool    `json:"eliminated"`
}

// TournamentRound holds the matches of one round and the problem they are played on.
type TournamentRound struct {
	ID            string `json:"id" gorm:"primaryKey"`
	TournamentID  string `json:"tournament_id" gorm:"not null;uniqueIndex:idx_tournament_round"`
	Number        int    `json:"number" gorm:"not null;uniqueIndex:idx_tournament_round"`
	Status        string `json:"status" gorm:"type:varchar(16);not null;default:'pending'"`
	ContestID     int    `json:"contest_id"`
	ProblemIndex  string `json:"problem_index" gorm:"type:varchar(8)"`
	ProblemName   string `json:"problem_name"`
	ProblemRating int    `json:"problem_rating"`
	StartedAt     int64  `json:"started_at"`
	CompletedAt   *int64 `json:"completed_at,omitempty"`

	// Relationship: One Round has many Matches
	Matches []TournamentMatch `json:"matches,omitempty" gorm:"foreignKey:RoundID"`
}

// TournamentMatch is one pairing within a round. Player2ID nil means a bye.
// Status is completed or bye exactly when WinnerID is set or IsDraw is true.
type TournamentMatch struct {
	ID           string  `json:"id" gorm:"primaryKey"`
	TournamentID string  `json:"tournament_id" gorm:"not null;index"`
	RoundID      string  `json:"round_id" gorm:"not null;index"`
	RoundNumber  int     `json:"round_number"`
	MatchNumber  int     `json:"match_number"`
	ChallengeID  *string `json:"challenge_id,omitempty" gorm:"index"`
	Player1ID    string  `json:"player1_id" gorm:"not null"`
	Player2ID    *string `json:"player2_id,omitempty"`
	WinnerID     *string `json:"winner_id,omitempty"`
	Status       string  `json:"status" gorm:"type:varchar(16);not null;default:'pending'"`
	IsDraw       bool    `json:"is_draw"`
}

// Resolved reports whether the match has a final outcome.
func (m TournamentMatch) Resolved() bool {
	return m.Status == MatchStatusCompleted || m.Status == MatchStatusBye
}

// IsBye reports whether the match has no second player.
func (m TournamentMatch) IsBye() bool {
	return m.Player2ID == nil
}

// Opponent returns the other player of the match, or "" for a bye or a non-player.
func (m TournamentMatch) Opponent(userID string) string {
	if m.Player2ID == nil {
		return ""
	}
	switch userID {
	case m.Player1ID:
		return *m.Player2ID
	case *m.Player2ID:
		return m.Player1ID
	}
	return ""
}
