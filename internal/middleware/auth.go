package middleware

import (
	"errors"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mo-amir99/course-market-go/internal/utils/jwt"
	"github.com/mo-amir99/course-market-go/pkg/response"
	"github.com/mo-amir99/course-market-go/pkg/types"
)

// User represents the authenticated user in middleware context
type User struct {
	ID        uuid.UUID      `gorm:"column:id;primaryKey"`
	Email     string         `gorm:"column:email"`
	FullName  string         `gorm:"column:full_name"`
	UserType  types.UserType `gorm:"column:user_type"`
	Active    bool           `gorm:"column:is_active"`
	CreatedAt time.Time      `gorm:"column:created_at"`
	UpdatedAt time.Time      `gorm:"column:updated_at"`
}

// TableName specifies the table name for the User model
func (User) TableName() string {
	return "users"
}

// Global instance to be initialized once at startup
var global *AuthMiddleware

// AuthMiddleware holds dependencies for authentication middleware
type AuthMiddleware struct {
	db        *gorm.DB
	jwtSecret string
	logger    *slog.Logger
}

// Initialize sets up the global middleware instance (call once at startup)
func Initialize(db *gorm.DB, jwtSecret string, logger *slog.Logger) {
	global = NewAuthMiddleware(db, jwtSecret, logger)
}

// NewAuthMiddleware creates an auth middleware instance.
func NewAuthMiddleware(db *gorm.DB, jwtSecret string, logger *slog.Logger) *AuthMiddleware {
	return &AuthMiddleware{
		db:        db,
		jwtSecret: jwtSecret,
		logger:    logger,
	}
}

// AuthenticateToken validates JWT tokens and loads user data into context.
func (m *AuthMiddleware) AuthenticateToken() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := m.ensureAuthenticated(c); !ok {
			return
		}
		c.Next()
	}
}

// OptionalAuth attaches the caller when a valid access token is sent and otherwise
// lets the request through anonymously.
func (m *AuthMiddleware) OptionalAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c)
		if !ok {
			c.Next()
			return
		}

		claims, err := jwt.VerifyKind(token, m.jwtSecret, jwt.KindAccess)
		if err != nil {
			c.Next()
			return
		}

		if usr, err := m.loadUser(c, claims.UserID); err == nil && usr.Active {
			setUser(c, usr)
		}
		c.Next()
	}
}

// AuthorizeRoles checks if user has one of the allowed roles. An empty list admits any role.
func (m *AuthMiddleware) AuthorizeRoles(roles ...types.UserType) gin.HandlerFunc {
	return func(c *gin.Context) {
		usr, ok := GetUserFromContext(c)
		if !ok {
			response.ErrorWithLog(m.logger, c, http.StatusUnauthorized, "User not authenticated", nil)
			c.Abort()
			return
		}

		if len(roles) == 0 || slices.Contains(roles, usr.UserType) {
			c.Next()
			return
		}

		response.ErrorWithLog(m.logger, c, http.StatusForbidden, "Access denied: Insufficient permissions.", nil)
		c.Abort()
	}
}

// RequireRoles authenticates the caller and restricts the route to the given roles.
func (m *AuthMiddleware) RequireRoles(roles ...types.UserType) []gin.HandlerFunc {
	return []gin.HandlerFunc{
		m.AuthenticateToken(),
		m.AuthorizeRoles(roles...),
	}
}

func mustGlobal() *AuthMiddleware {
	if global == nil {
		panic("middleware not initialized - call middleware.Initialize() first")
	}
	return global
}

// RequireRoles is the global version used by route files.
func RequireRoles(roles ...types.UserType) []gin.HandlerFunc {
	return mustGlobal().RequireRoles(roles...)
}

// AuthenticateToken is the global version for simple authentication
func AuthenticateToken() gin.HandlerFunc {
	return mustGlobal().AuthenticateToken()
}

func OptionalAuth() gin.HandlerFunc {
	return mustGlobal().OptionalAuth()
}

// GetUserFromContext retrieves the authenticated user from the Gin context.
func GetUserFromContext(c *gin.Context) (*User, bool) {
	usr, ok := c.Get("user")
	if !ok {
		return nil, false
	}
	u, ok := usr.(*User)
	return u, ok && u != nil
}

func setUser(c *gin.Context, usr *User) {
	c.Set("user", usr)
	c.Set("userId", usr.ID)
}

func bearerToken(c *gin.Context) (string, bool) {
	token, found := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer ")
	token = strings.TrimSpace(token)
	return token, found && token != ""
}

func (m *AuthMiddleware) loadUser(c *gin.Context, id uuid.UUID) (*User, error) {
	var usr User
	if err := m.db.WithContext(c.Request.Context()).First(&usr, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &usr, nil
}

// ensureAuthenticated aborts with 401/403 unless the request carries a valid access
// token for an active account.
func (m *AuthMiddleware) ensureAuthenticated(c *gin.Context) (*User, bool) {
	if usr, ok := GetUserFromContext(c); ok {
		return usr, true
	}

	fail := func(status int, message string, err error) (*User, bool) {
		response.ErrorWithLog(m.logger, c, status, message, err)
		c.Abort()
		return nil, false
	}

	token, ok := bearerToken(c)
	if !ok {
		return fail(http.StatusUnauthorized, "No token provided", nil)
	}

	claims, err := jwt.VerifyKind(token, m.jwtSecret, jwt.KindAccess)
	switch {
	case errors.Is(err, jwt.ErrExpiredToken):
		return fail(http.StatusUnauthorized, "Token expired", err)
	case err != nil:
		return fail(http.StatusUnauthorized, "Invalid token", err)
	case claims.UserID == uuid.Nil:
		return fail(http.StatusUnauthorized, "Invalid token payload", nil)
	}

	usr, err := m.loadUser(c, claims.UserID)
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return fail(http.StatusUnauthorized, "User not found", err)
	case err != nil:
		return fail(http.StatusInternalServerError, "Internal Server Error", err)
	case !usr.Active:
		return fail(http.StatusForbidden, "Account is deactivated", nil)
	}

	setUser(c, usr)
	return usr, true
}
