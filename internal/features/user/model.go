package user

import (
	"errors"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/mo-amir99/course-market-go/pkg/pagination"
	"github.com/mo-amir99/course-market-go/pkg/types"
)

const bcryptCost = 10

// User represents a marketplace account: student, lecturer or admin.
type User struct {
	types.BaseModel

	FullName     string         `gorm:"type:varchar(60);not null;column:full_name" json:"fullName"`
	Email        string         `gorm:"type:varchar(255);not null;uniqueIndex" json:"email"`
	Phone        *string        `gorm:"type:varchar(20)" json:"phone,omitempty"`
	Password     string         `gorm:"type:varchar(255);not null" json:"-"`
	UserType     types.UserType `gorm:"type:varchar(20);not null;default:'student';column:user_type;index" json:"userType"`
	ProfileImage *string        `gorm:"type:text;column:profile_image" json:"profileImage,omitempty"`
	RefreshToken *string        `gorm:"type:text;column:refresh_token" json:"-"`
	Active       bool           `gorm:"not null;default:true;column:is_active;index" json:"isActive"`
}

// TableName overrides the default table name.
func (User) TableName() string { return "users" }

// ListFilters defines user query filters.
type ListFilters struct {
	Keyword   string
	UserTypes []types.UserType
	Active    *bool
}

// CreateInput carries data for creating a new user.
type CreateInput struct {
	FullName     string
	Email        string
	Phone        *string
	Password     string
	UserType     types.UserType
	ProfileImage *string
	Active       *bool
}

// UpdateInput captures mutable user fields.
type UpdateInput struct {
	FullName      *string
	Phone         *string
	PhoneProvided bool
	ProfileImage  *string
	ImageProvided bool
	Password      *string
	Active        *bool
}

// List queries users with filters and pagination.
func List(db *gorm.DB, filters ListFilters, params pagination.Params) ([]User, int64, error) {
	query := db.Model(&User{})

	if filters.Keyword != "" {
		keyword := "%" + strings.ToLower(filters.Keyword) + "%"
		query = query.Where("LOWER(full_name) LIKE ? OR LOWER(email) LIKE ?", keyword, keyword)
	}

	if len(filters.UserTypes) > 0 {
		query = query.Where("user_type IN ?", filters.UserTypes)
	}

	if filters.Active != nil {
		query = query.Where("is_active = ?", *filters.Active)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var users []User
	if err := query.Order("created_at DESC").Offset(params.Skip).Limit(params.Limit).Find(&users).Error; err != nil {
		return nil, 0, err
	}

	return users, total, nil
}

// Get retrieves a user by ID.
func Get(db *gorm.DB, id uuid.UUID) (User, error) {
	var user User
	if err := db.First(&user, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return user, ErrUserNotFound
		}
		return user, err
	}
	return user, nil
}

// GetByEmail retrieves a user by email.
func GetByEmail(db *gorm.DB, email string) (User, error) {
	var user User
	if err := db.First(&user, "email = ?", strings.ToLower(strings.TrimSpace(email))).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return user, ErrUserNotFound
		}
		return user, err
	}
	return user, nil
}

// IDsByType returns the ids of every active user with the given role.
func IDsByType(db *gorm.DB, userType types.UserType) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := db.Model(&User{}).
		Where("user_type = ? AND is_active = ?", userType, true).
		Pluck("id", &ids).Error
	return ids, err
}

// Create inserts a new user with hashed password.
func Create(db *gorm.DB, input CreateInput) (User, error) {
	if strings.TrimSpace(input.FullName) == "" || strings.TrimSpace(input.Email) == "" {
		return User{}, ErrMissingFields
	}

	if len(input.Password) < 8 {
		return User{}, ErrInvalidPassword
	}

	if input.UserType == "" {
		input.UserType = types.UserTypeStudent
	}
	if !input.UserType.Valid() {
		return User{}, ErrInvalidUserType
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcryptCost)
	if err != nil {
		return User{}, err
	}

	user := User{
		FullName:     strings.TrimSpace(input.FullName),
		Email:        strings.ToLower(strings.TrimSpace(input.Email)),
		Phone:        trimStringPtr(input.Phone),
		Password:     string(hashedPassword),
		UserType:     input.UserType,
		ProfileImage: trimStringPtr(input.ProfileImage),
		Active:       true,
	}

	if input.Active != nil {
		user.Active = *input.Active
	}

	if err := db.Create(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return user, ErrEmailTaken
		}
		return user, err
	}

	// gorm skips zero-valued fields that carry a default tag.
	if !user.Active {
		if err := db.Model(&user).Update("is_active", false).Error; err != nil {
			return user, err
		}
	}

	return user, nil
}

// Update modifies an existing user.
func Update(db *gorm.DB, id uuid.UUID, input UpdateInput) (User, error) {
	user, err := Get(db, id)
	if err != nil {
		return user, err
	}

	updates := map[string]interface{}{}

	if input.FullName != nil {
		trimmed := strings.TrimSpace(*input.FullName)
		if trimmed == "" {
			return user, ErrMissingFields
		}
		updates["full_name"] = trimmed
	}

	if input.PhoneProvided {
		updates["phone"] = trimStringPtr(input.Phone)
	}

	if input.ImageProvided {
		updates["profile_image"] = trimStringPtr(input.ProfileImage)
	}

	if input.Password != nil {
		if len(*input.Password) < 8 {
			return user, ErrInvalidPassword
		}
		hashedPassword, err := bcrypt.GenerateFromPassword([]byte(*input.Password), bcryptCost)
		if err != nil {
			return user, err
		}
		updates["password"] = string(hashedPassword)
	}

	if input.Active != nil {
		updates["is_active"] = *input.Active
	}

	if len(updates) > 0 {
		if err := db.Model(&User{}).Where("id = ?", id).Updates(updates).Error; err != nil {
			return user, err
		}
	}

	return Get(db, id)
}

// SetRefreshToken stores or clears the user's refresh token.
func SetRefreshToken(db *gorm.DB, id uuid.UUID, token *string) error {
	return db.Model(&User{}).Where("id = ?", id).Update("refresh_token", token).Error
}

// ComparePassword checks if the provided password matches the user's hashed password.
func (u *User) ComparePassword(password string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(password))
	return err == nil
}

func trimStringPtr(s *string) *string {
	if s == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*s)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
