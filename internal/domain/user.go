package domain

import "time"

// User is an account that can create, enter and leave rooms.
type User struct {
	ID        uint      `gorm:"primaryKey"`
	Username  string    `gorm:"type:varchar(191);uniqueIndex:idx_username;not null"`
	Password  string    `gorm:"type:text;not null"` // bcrypt hash
	Email     string    `gorm:"type:varchar(191);index:idx_email"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

// Ref returns the public reference used in room views. The username doubles as display name.
func (u User) Ref() UserRef {
	return UserRef{ID: u.ID, DisplayName: u.Username}
}
