package user

import (
	"errors"
	"net/http"
	"strings"

	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mo-amir99/course-market-go/internal/middleware"
	"github.com/mo-amir99/course-market-go/pkg/pagination"
	"github.com/mo-amir99/course-market-go/pkg/request"
	"github.com/mo-amir99/course-market-go/pkg/response"
	"github.com/mo-amir99/course-market-go/pkg/types"
)

// Handler processes user HTTP requests.
type Handler struct {
	db     *gorm.DB
	logger *slog.Logger
}

// NewHandler constructs a user handler instance.
func NewHandler(db *gorm.DB, logger *slog.Logger) *Handler {
	return &Handler{db: db, logger: logger}
}

// Me returns the caller's profile.
func (h *Handler) Me(c *gin.Context) {
	requester, ok := middleware.GetUserFromContext(c)
	if !ok {
		response.ErrorWithLog(h.logger, c, http.StatusUnauthorized, "Authentication required", nil)
		return
	}

	user, err := Get(h.db, requester.ID)
	if err != nil {
		h.respondError(c, err, "failed to load profile")
		return
	}

	response.Success(c, http.StatusOK, user, "", nil)
}

// UpdateMe lets the caller edit their own profile.
func (h *Handler) UpdateMe(c *gin.Context) {
	requester, ok := middleware.GetUserFromContext(c)
	if !ok {
		response.ErrorWithLog(h.logger, c, http.StatusUnauthorized, "Authentication required", nil)
		return
	}

	body := map[string]interface{}{}
	if err := c.ShouldBindJSON(&body); err != nil {
		response.ErrorWithLog(h.logger, c, http.StatusBadRequest, "invalid profile payload", err)
		return
	}

	input := UpdateInput{}

	if value, ok := body["fullName"]; ok {
		str, err := request.ReadString(value)
		if err != nil {
			response.ErrorWithLog(h.logger, c, http.StatusBadRequest, "fullName must be a string", err)
			return
		}
		input.FullName = &str
	}

	if value, ok := body["phone"]; ok {
		input.PhoneProvided = true
		if value != nil {
			str, err := request.ReadString(value)
			if err != nil {
				response.ErrorWithLog(h.logger, c, http.StatusBadRequest, "phone must be a string", err)
				return
			}
			input.Phone = &str
		}
	}

	if value, ok := body["profileImage"]; ok {
		input.ImageProvided = true
		if value != nil {
			str, err := request.ReadString(value)
			if err != nil {
				response.ErrorWithLog(h.logger, c, http.StatusBadRequest, "profileImage must be a string", err)
				return
			}
			input.ProfileImage = &str
		}
	}

	if value, ok := body["password"]; ok {
		str, err := request.ReadString(value)
		if err != nil {
			response.ErrorWithLog(h.logger, c, http.StatusBadRequest, "password must be a string", err)
			return
		}
		input.Password = &str
	}

	user, err := Update(h.db, requester.ID, input)
	if err != nil {
		h.respondError(c, err, "failed to update profile")
		return
	}

	response.Success(c, http.StatusOK, user, "Profile updated.", nil)
}

// List returns paginated users for administrators.
func (h *Handler) List(c *gin.Context) {
	params := pagination.Extract(c)

	filters := ListFilters{Keyword: strings.TrimSpace(c.Query("filterKeyword"))}

	if role := strings.TrimSpace(c.Query("userType")); role != "" {
		userType := types.UserType(strings.ToLower(role))
		if !userType.Valid() {
			response.ErrorWithLog(h.logger, c, http.StatusBadRequest, "invalid userType filter", ErrInvalidUserType)
			return
		}
		filters.UserTypes = []types.UserType{userType}
	}

	if active := c.Query("isActive"); active != "" {
		value := active == "true"
		filters.Active = &value
	}

	users, total, err := List(h.db, filters, params)
	if err != nil {
		response.ErrorWithLog(h.logger, c, http.StatusInternalServerError, "failed to list users", err)
		return
	}

	response.Success(c, http.StatusOK, users, "", pagination.MetadataFrom(total, params))
}

// GetByID returns a single user for administrators.
func (h *Handler) GetByID(c *gin.Context) {
	id, err := uuid.Parse(c.Param("userId"))
	if err != nil {
		response.ErrorWithLog(h.logger, c, http.StatusBadRequest, "invalid user id", err)
		return
	}

	user, err := Get(h.db, id)
	if err != nil {
		h.respondError(c, err, "failed to load user")
		return
	}

	response.Success(c, http.StatusOK, user, "", nil)
}

type statusRequest struct {
	Active *bool `json:"isActive" binding:"required"`
}

// SetStatus activates or deactivates an account.
func (h *Handler) SetStatus(c *gin.Context) {
	id, err := uuid.Parse(c.Param("userId"))
	if err != nil {
		response.ErrorWithLog(h.logger, c, http.StatusBadRequest, "invalid user id", err)
		return
	}

	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithLog(h.logger, c, http.StatusBadRequest, "isActive is required", err)
		return
	}

	if requester, ok := middleware.GetUserFromContext(c); ok && requester.ID == id && !*req.Active {
		h.respondError(c, ErrSelfDeactivate, "failed to update user")
		return
	}

	user, err := Update(h.db, id, UpdateInput{Active: req.Active})
	if err != nil {
		h.respondError(c, err, "failed to update user")
		return
	}

	if !user.Active {
		if err := SetRefreshToken(h.db, id, nil); err != nil {
			h.logger.Warn("failed to revoke refresh token", "user_id", id, "error", err)
		}
	}

	response.Success(c, http.StatusOK, user, "User status updated.", nil)
}

func (h *Handler) respondError(c *gin.Context, err error, fallback string) {
	status := http.StatusInternalServerError
	message := fallback

	switch {
	case errors.Is(err, ErrUserNotFound):
		status = http.StatusNotFound
		message = "User not found."
	case errors.Is(err, ErrEmailTaken):
		status = http.StatusConflict
		message = "Email already exists."
	case errors.Is(err, ErrInvalidPassword),
		errors.Is(err, ErrMissingFields),
		errors.Is(err, ErrInvalidUserType),
		errors.Is(err, ErrSelfDeactivate):
		status = http.StatusBadRequest
		message = err.Error()
	}

	response.ErrorWithLog(h.logger, c, status, message, err)
}
