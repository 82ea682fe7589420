package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/mo-amir99/course-market-go/internal/testutil"
	"github.com/mo-amir99/course-market-go/internal/utils/jwt"
	"github.com/mo-amir99/course-market-go/pkg/types"
)

const testSecret = "test-secret"

func setupAuth(t *testing.T) (*AuthMiddleware, *gorm.DB) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	db := testutil.NewDB(t, &User{})
	return NewAuthMiddleware(db, testSecret, testutil.Logger()), db
}

func seedUser(t *testing.T, db *gorm.DB, role types.UserType, active bool) User {
	t.Helper()
	usr := User{ID: uuid.New(), Email: uuid.NewString() + "@example.com", FullName: "Test", UserType: role, Active: active}
	require.NoError(t, db.Create(&usr).Error)
	return usr
}

func call(t *testing.T, handlers []gin.HandlerFunc, header string) (*httptest.ResponseRecorder, *User) {
	t.Helper()
	var seen *User
	router := gin.New()
	handlers = append(handlers, func(c *gin.Context) {
		seen, _ = GetUserFromContext(c)
		c.Status(http.StatusOK)
	})
	router.GET("/", handlers...)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec, seen
}

func bearer(t *testing.T, id uuid.UUID) string {
	t.Helper()
	token, err := jwt.GenerateAccessToken(id, testSecret, time.Minute)
	require.NoError(t, err)
	return "Bearer " + token
}

func TestRequireRoles(t *testing.T) {
	m, db := setupAuth(t)
	student := seedUser(t, db, types.UserTypeStudent, true)

	rec, seen := call(t, m.RequireRoles(types.UserTypeStudent), bearer(t, student.ID))
	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, seen)
	assert.Equal(t, student.ID, seen.ID)

	rec, _ = call(t, m.RequireRoles(types.UserTypeAdmin), bearer(t, student.ID))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, _ = call(t, m.RequireRoles(), bearer(t, student.ID))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAuthenticateTokenRejects(t *testing.T) {
	m, db := setupAuth(t)
	inactive := seedUser(t, db, types.UserTypeStudent, false)
	refresh, err := jwt.GenerateRefreshToken(uuid.New(), testSecret, time.Minute)
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{name: "missing header", header: "", want: http.StatusUnauthorized},
		{name: "empty bearer", header: "Bearer  ", want: http.StatusUnauthorized},
		{name: "garbage token", header: "Bearer not-a-jwt", want: http.StatusUnauthorized},
		{name: "refresh token", header: "Bearer " + refresh, want: http.StatusUnauthorized},
		{name: "unknown user", header: bearer(t, uuid.New()), want: http.StatusUnauthorized},
		{name: "deactivated", header: bearer(t, inactive.ID), want: http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, seen := call(t, []gin.HandlerFunc{m.AuthenticateToken()}, tt.header)
			assert.Equal(t, tt.want, rec.Code)
			assert.Nil(t, seen)
		})
	}
}

func TestOptionalAuth(t *testing.T) {
	m, db := setupAuth(t)
	lecturer := seedUser(t, db, types.UserTypeLecturer, true)

	rec, seen := call(t, []gin.HandlerFunc{m.OptionalAuth()}, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Nil(t, seen)

	rec, seen = call(t, []gin.HandlerFunc{m.OptionalAuth()}, "Bearer broken")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Nil(t, seen)

	rec, seen = call(t, []gin.HandlerFunc{m.OptionalAuth()}, bearer(t, lecturer.ID))
	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, seen)
	assert.Equal(t, types.UserTypeLecturer, seen.UserType)
}
