package users

import (
	"time"
)

// User carries identity and role only. All subscription and billing state
// lives on the subscription record, keyed by the user id, so the two
// cannot drift apart under independent writes.
type User struct {
	ID         uint `gorm:"primaryKey"`
	Name       string
	Lastname   string
	Email      string  `gorm:"not null;uniqueIndex:idx_users_email"`
	Password   *string `gorm:""`
	Role       string  `gorm:"type:varchar(20);not null;default:'user'"`
	IsVerified bool

	CreatedAt time.Time
	UpdatedAt time.Time
}
