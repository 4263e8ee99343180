package models

import "time"

// Reaction states. Absence of a row means the user holds no reaction, so
// there is no "none" state at rest.
const (
	ReactionLiked    = "liked"
	ReactionDisliked = "disliked"
)

// Reaction tracks a single user's stance on one target. The composite
// unique index is what keeps concurrent toggles from creating duplicates:
// the losing insert fails and the caller re-reads the winner's row.
type Reaction struct {
	ID         int       `gorm:"primaryKey" json:"id"`
	UserID     int       `gorm:"not null;uniqueIndex:idx_reactions_user_target" json:"user_id"`
	TargetType string    `gorm:"size:20;not null;uniqueIndex:idx_reactions_user_target" json:"target_type"`
	TargetID   int       `gorm:"not null;uniqueIndex:idx_reactions_user_target" json:"target_id"`
	State      string    `gorm:"size:20;not null" json:"state"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}
