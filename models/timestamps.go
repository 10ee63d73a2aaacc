package models

import (
	"time"

	"gorm.io/gorm"
)

// Timestamps adds GORM auto-times
type Timestamps struct {
	CreatedAt time.Time      `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time      `json:"updated_at" gorm:"autoUpdateTime"`
	DeletedAt gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"index"`
}

// All lists every persisted model, in migration order.
func All() []interface{} {
	return []interface{}{
		&LinkedHandle{},
		&Challenge{},
		&ChallengeParticipant{},
		&Tournament{},
		&TournamentParticipant{},
		&TournamentRound{},
		&TournamentMatch{},
		&ArenaState{},
		&ArenaProblem{},
		&ArenaSolve{},
	}
}
