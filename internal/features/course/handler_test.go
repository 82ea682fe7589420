package course

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/mo-amir99/course-market-go/internal/middleware"
	"github.com/mo-amir99/course-market-go/internal/testutil"
	"github.com/mo-amir99/course-market-go/pkg/cleanup"
	"github.com/mo-amir99/course-market-go/pkg/types"
)

type fakeCanceler struct {
	cancelled []string
	err       error
}

func (f *fakeCanceler) CancelPaymentIntent(_ context.Context, intentID string) error {
	if f.err != nil {
		return f.err
	}
	f.cancelled = append(f.cancelled, intentID)
	return nil
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db := testutil.NewDB(t, &Course{})
	testutil.CreateEnrollmentsTable(t, db)
	require.NoError(t, db.Exec(`CREATE TABLE topics (id TEXT PRIMARY KEY, course_id TEXT NOT NULL)`).Error)
	require.NoError(t, db.Exec(`CREATE TABLE lectures (id TEXT PRIMARY KEY, course_id TEXT NOT NULL, topic_id TEXT NOT NULL, video_id TEXT)`).Error)
	return db
}

func seedCourse(t *testing.T, db *gorm.DB) Course {
	t.Helper()
	c, err := Create(db, CreateInput{
		LecturerID:  uuid.New(),
		Title:       "Distributed Systems",
		Description: "Consensus, replication and clocks",
		Price:       types.NewMoney(499),
	})
	require.NoError(t, err)
	return c
}

func seedEnrollment(t *testing.T, db *gorm.DB, courseID uuid.UUID, status types.PaymentStatus, intentRef string) {
	t.Helper()
	require.NoError(t, db.Exec(
		`INSERT INTO enrollments (id, student_id, course_id, payment_status, external_intent_ref) VALUES (?, ?, ?, ?, ?)`,
		uuid.New(), uuid.New(), courseID, string(status), intentRef,
	).Error)
}

func newRouter(db *gorm.DB, as uuid.UUID, canceler IntentCanceler) *gin.Engine {
	gin.SetMode(gin.TestMode)

	asLecturer := []gin.HandlerFunc{func(c *gin.Context) {
		c.Set("user", &middleware.User{ID: as, UserType: types.UserTypeLecturer, Active: true})
		c.Next()
	}}

	router := gin.New()
	handler := NewHandler(db, testutil.Logger(), nil, nil, nil, cleanup.Media{}, canceler)
	RegisterRoutes(router.Group("/api"), handler, asLecturer, asLecturer)
	return router
}

func send(t *testing.T, router *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestUpdatePrice(t *testing.T) {
	db := newTestDB(t)
	c := seedCourse(t, db)
	router := newRouter(db, c.LecturerID, nil)
	path := "/api/lecturer/courses/" + c.ID.String()

	tests := []struct {
		name  string
		price interface{}
		code  int
		want  string
	}{
		{name: "json number", price: 799.5, code: http.StatusOK, want: "799.50"},
		{name: "whole number", price: 1200, code: http.StatusOK, want: "1200.00"},
		{name: "decimal string", price: " 1299.99 ", code: http.StatusOK, want: "1299.99"},
		{name: "boolean", price: true, code: http.StatusBadRequest, want: "1299.99"},
		{name: "not a number", price: "cheap", code: http.StatusBadRequest, want: "1299.99"},
		{name: "negative", price: -5, code: http.StatusBadRequest, want: "1299.99"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := send(t, router, http.MethodPatch, path, map[string]interface{}{"price": tt.price})
			assert.Equal(t, tt.code, rec.Code)

			stored, err := Get(db, c.ID)
			require.NoError(t, err)
			assert.Equal(t, tt.want, stored.Price.String())
		})
	}
}

func TestUpdateRejectsOtherLecturer(t *testing.T) {
	db := newTestDB(t)
	c := seedCourse(t, db)
	router := newRouter(db, uuid.New(), nil)

	rec := send(t, router, http.MethodPatch, "/api/lecturer/courses/"+c.ID.String(), map[string]interface{}{"price": 10})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestDeleteKeepsCoursesWithPaidStudents(t *testing.T) {
	db := newTestDB(t)
	c := seedCourse(t, db)
	seedEnrollment(t, db, c.ID, types.PaymentStatusSettled, "pi_paid")
	canceler := &fakeCanceler{}

	rec := send(t, newRouter(db, c.LecturerID, canceler), http.MethodDelete, "/api/lecturer/courses/"+c.ID.String(), nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	_, err := Get(db, c.ID)
	assert.NoError(t, err)
	assert.Empty(t, canceler.cancelled)
}

func TestDeleteCancelsPendingPurchases(t *testing.T) {
	db := newTestDB(t)
	c := seedCourse(t, db)
	other := seedCourse(t, db)
	seedEnrollment(t, db, c.ID, types.PaymentStatusPending, "pi_open")
	seedEnrollment(t, db, other.ID, types.PaymentStatusPending, "pi_other")
	require.NoError(t, db.Exec(`INSERT INTO topics (id, course_id) VALUES (?, ?)`, uuid.New(), c.ID).Error)
	canceler := &fakeCanceler{}

	rec := send(t, newRouter(db, c.LecturerID, canceler), http.MethodDelete, "/api/lecturer/courses/"+c.ID.String(), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	_, err := Get(db, c.ID)
	assert.ErrorIs(t, err, ErrCourseNotFound)
	assert.Equal(t, []string{"pi_open"}, canceler.cancelled)

	var remaining []string
	require.NoError(t, db.Table("enrollments").Pluck("external_intent_ref", &remaining).Error)
	assert.Equal(t, []string{"pi_other"}, remaining)

	var topics int64
	require.NoError(t, db.Table("topics").Count(&topics).Error)
	assert.Zero(t, topics)
}

func TestDeleteStopsWhenGatewayFails(t *testing.T) {
	db := newTestDB(t)
	c := seedCourse(t, db)
	seedEnrollment(t, db, c.ID, types.PaymentStatusPending, "pi_open")
	canceler := &fakeCanceler{err: errors.New("gateway timeout")}

	rec := send(t, newRouter(db, c.LecturerID, canceler), http.MethodDelete, "/api/lecturer/courses/"+c.ID.String(), nil)
	assert.Equal(t, http.StatusBadGateway, rec.Code)

	_, err := Get(db, c.ID)
	assert.NoError(t, err)

	var pending int64
	require.NoError(t, db.Table("enrollments").Count(&pending).Error)
	assert.Equal(t, int64(1), pending)
}
