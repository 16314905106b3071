package model

import "time"

// User is an account known to the planner. Telegram users start out
// anonymous and may later attach an email and password.
type User struct {
	ID           string  `gorm:"primaryKey"`
	TelegramID   *int64  `gorm:"uniqueIndex"`
	Email        *string `gorm:"uniqueIndex"`
	PasswordHash string
	Anonymous    bool `gorm:"default:true"`
	FirstName    string
	LastName     string
	Username     string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
