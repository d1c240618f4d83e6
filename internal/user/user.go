package user

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"harbor-server/internal/db"
)

var ErrNotFound = errors.New("user not found")

type User struct {
	ID           string    `gorm:"primaryKey" json:"id"`
	Email        string    `gorm:"uniqueIndex" json:"email"`
	Username     string    `gorm:"uniqueIndex" json:"username"`
	DisplayName  string    `json:"display_name"`
	PasswordHash string    `json:"-"`
	AvatarPath   string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	return nil
}

func Create(u *User) error {
	return db.DB.Create(u).Error
}

func GetByID(id string) (*User, error) {
	var u User
	if err := db.DB.First(&u, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

func GetByEmail(email string) (*User, error) {
	var u User
	if err := db.DB.First(&u, "email = ?", email).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

func GetByUsername(username string) (*User, error) {
	var u User
	if err := db.DB.First(&u, "username = ?", username).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

// ExistsByEmailOrUsername reports whether any user already holds the
// given email or username.
func ExistsByEmailOrUsername(email, username string) (bool, error) {
	var count int64
	err := db.DB.Model(&User{}).
		Where("email = ? OR username = ?", email, username).
		Count(&count).Error
	return count > 0, err
}

func Save(u *User) error {
	return db.DB.Save(u).Error
}
