package models

import "time"

// Tweet is the platform's short text post, the third reactable kind next
// to videos and comments.
type Tweet struct {
	ID        int       `gorm:"primaryKey" json:"id"`
	Body      string    `gorm:"not null" json:"body"`
	AuthorID  int       `json:"author_id"`
	User      User      `gorm:"foreignKey:AuthorID" json:"user"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type CreateTweetRequest struct {
	Body string `json:"body" binding:"required"`
}
