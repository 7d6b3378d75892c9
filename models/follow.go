package models

import "time"

// Follow is a directed edge: FollowerID follows FollowingID.
// The follows table is the source of truth for the social graph.
type Follow struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	FollowerID  uint      `gorm:"not null;uniqueIndex:idx_follows_pair;index" json:"follower_id"`
	FollowingID uint      `gorm:"not null;uniqueIndex:idx_follows_pair;index" json:"following_id"`
	CreatedAt   time.Time `json:"created_at"`
}

// All lists every persisted model, in migration order.
func All() []interface{} {
	return []interface{}{&User{}, &Post{}, &Comment{}, &Like{}, &Follow{}}
}
