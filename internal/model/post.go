package model

import "time"

// Post is a piece of user content. Points is the denormalized sum of the
// post's vote values and is only written by the vote service.
type Post struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	Title     string    `json:"title" gorm:"uniqueIndex;size:255;not null"`
	Text      string    `json:"text" gorm:"type:text;not null"`
	CreatorID uint      `json:"creator_id" gorm:"not null;index"`
	Points    int       `json:"points" gorm:"not null;default:0"`
	CreatedAt time.Time `json:"created_at" gorm:"index"`
	UpdatedAt time.Time `json:"updated_at"`

	// Relations
	Creator User `json:"-" gorm:"foreignKey:CreatorID"`
}
