package models

import "time"

// Post is authored by one user and owns its comments and likes.
type Post struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	AuthorID  uint      `gorm:"index;not null" json:"author_id"`
	Title     string    `gorm:"size:100;not null" json:"title"`
	Content   string    `gorm:"size:2000;not null" json:"content"`
	ImageURL  *string   `gorm:"size:1024" json:"image_url"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
