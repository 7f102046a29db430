package model

import (
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// NormalizeEmail lowercases and trims the email string
func NormalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

var (
	ErrInvalidPassword = fmt.Errorf("invalid password")
	ErrTokenExpired    = fmt.Errorf("token expired")
	ErrTokenInvalid    = fmt.Errorf("token invalid")
	ErrTokenNotFound   = fmt.Errorf("token not found")
	ErrTokenDisabled   = fmt.Errorf("token disabled")
	ErrUnauthorized    = fmt.Errorf("unauthorized")
)

// User represents a dealership account.
type User struct {
	gorm.Model
	Email       string `gorm:"uniqueIndex;not null"` // always stored lowercase
	FullName    string
	Password    string `gorm:"not null"`
	Verified    bool   `gorm:"not null;default:false"`
	LastLoginAt *time.Time
	OwnerID     uint

	PasswordResetToken  []byte `gorm:"index"`
	PasswordResetExpiry time.Time
}

// Normalize email before saving
func (u *User) BeforeSave(tx *gorm.DB) error {
	u.Email = NormalizeEmail(u.Email)
	return nil
}

func (store *Store) TouchLastLogin(u *User) error {
	now := time.Now().UTC()
	u.LastLoginAt = &now
	return store.db.Model(u).Update("last_login_at", now).Error
}

// AuthenticateUser checks the credentials and returns the matching user.
func (store *Store) AuthenticateUser(email, password string) (*User, error) {
	user, err := store.GetUserByEMail(NormalizeEmail(email))
	if err != nil {
		return nil, err
	}
	if !store.CheckPassword(user, password) {
		return nil, ErrInvalidPassword
	}
	return user, nil
}

func (store *Store) GetUserByID(id any) (*User, error) {
	if id == nil {
		return nil, fmt.Errorf("user ID cannot be nil")
	}
	var user User
	if err := store.db.First(&user, id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (store *Store) GetUserByEMail(email string) (*User, error) {
	var user User
	if err := store.db.Where("email = ?", NormalizeEmail(email)).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// GetUserByResetToken looks up a user by the stored hash of a password
// reset token. Callers still have to check the expiry.
func (store *Store) GetUserByResetToken(hash []byte) (*User, error) {
	var user User
	if err := store.db.Where("password_reset_token = ?", hash).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (store *Store) CreateUser(u *User) error {
	return store.db.Create(u).Error
}

func (store *Store) UpdateUser(u *User) error {
	return store.db.Save(u).Error
}

func (store *Store) SetPassword(u *User, password string) error {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.Password = string(hashedPassword)
	return nil
}

func (store *Store) CheckPassword(u *User, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(password)) == nil
}
