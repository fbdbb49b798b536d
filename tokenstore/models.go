package tokenstore

import "time"

// StatusActive is the users.status value of accounts allowed to authenticate.
const StatusActive = 1

// User is a row of the users table.
type User struct {
	ID       uint   `gorm:"primaryKey"`
	Name     string `gorm:"size:100;not null"`
	LastName string `gorm:"size:100"`
	Email    string `gorm:"size:255;uniqueIndex;not null"`
	RoleID   *uint
	Status   int `gorm:"not null;default:1"`
}

func (User) TableName() string { return "users" }

// UserToken is a row of the user_tokens table.
type UserToken struct {
	ID           uint   `gorm:"primaryKey"`
	UserID       uint   `gorm:"index;not null"`
	TokenHash    string `gorm:"size:64;uniqueIndex;not null"`
	Revoked      bool   `gorm:"not null;default:false"`
	RevokedAt    *time.Time
	CreationDate time.Time `gorm:"not null"`
}

func (UserToken) TableName() string { return "user_tokens" }
