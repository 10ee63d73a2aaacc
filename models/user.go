package models

// LinkedHandle maps a platform user, within one scope (guild), to an external judge handle
// and holds the persisted practice rating.
type LinkedHandle struct {
	ID      string `gorm:"primaryKey" json:"id"`
	ScopeID string `gorm:"not null;uniqueIndex:idx_scope_user" json:"scope_id"`
	UserID  string `gorm:"not null;uniqueIndex:idx_scope_user" json:"user_id"`
	Handle  string `gorm:"index;not null" json:"handle"`
	Rating  int    `json:"rating"`

	Timestamps
}
