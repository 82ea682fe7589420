package dashboard

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/mo-amir99/course-market-go/internal/features/commission"
	"github.com/mo-amir99/course-market-go/internal/features/course"
	"github.com/mo-amir99/course-market-go/internal/features/enrollment"
	"github.com/mo-amir99/course-market-go/internal/features/lecture"
	"github.com/mo-amir99/course-market-go/internal/features/moderation"
	"github.com/mo-amir99/course-market-go/internal/features/topic"
	"github.com/mo-amir99/course-market-go/internal/features/user"
	"github.com/mo-amir99/course-market-go/internal/middleware"
	"github.com/mo-amir99/course-market-go/internal/testutil"
	"github.com/mo-amir99/course-market-go/pkg/cache"
	"github.com/mo-amir99/course-market-go/pkg/types"
)

type market struct {
	db       *gorm.DB
	lecturer user.User
	popular  course.Course
	quiet    course.Course
	students []user.User
}

func newUser(t *testing.T, db *gorm.DB, name, email string, kind types.UserType) user.User {
	t.Helper()
	u, err := user.Create(db, user.CreateInput{FullName: name, Email: email, Password: "password1", UserType: kind})
	require.NoError(t, err)
	return u
}

func newCourse(t *testing.T, db *gorm.DB, lecturerID uuid.UUID, title string) course.Course {
	t.Helper()
	c, err := course.Create(db, course.CreateInput{
		LecturerID:  lecturerID,
		Title:       title,
		Description: title + " in depth",
		Price:       types.NewMoney(9.99),
	})
	require.NoError(t, err)
	return c
}

func enroll(t *testing.T, db *gorm.DB, studentID, courseID uuid.UUID, settle bool) {
	t.Helper()
	e := enrollment.Enrollment{
		StudentID:     studentID,
		CourseID:      courseID,
		IntentRef:     "pi_" + uuid.NewString(),
		PriceSnapshot: types.NewMoney(9.99),
		AmountMinor:   999,
		Currency:      "usd",
	}
	require.NoError(t, enrollment.CreatePending(db, &e))
	if !settle {
		return
	}
	admin, lecturer := commission.Split(e.AmountMinor)
	won, err := enrollment.MarkSettled(db, e.ID, enrollment.Settlement{
		AdminShare:    admin,
		LecturerShare: lecturer,
		SettledAt:     time.Now().UTC(),
		Source:        "webhook",
	})
	require.NoError(t, err)
	require.True(t, won)
}

// newMarket seeds one lecturer with a course sold twice (plus one pending purchase)
// and a second course with no sales.
func newMarket(t *testing.T) market {
	t.Helper()

	db := testutil.NewDB(t, &user.User{}, &course.Course{}, &topic.Topic{}, &lecture.Lecture{}, &enrollment.Enrollment{})

	m := market{db: db}
	m.lecturer = newUser(t, db, "Ada Lovelace", "ada@example.com", types.UserTypeLecturer)
	newUser(t, db, "Root", "root@example.com", types.UserTypeAdmin)
	for _, email := range []string{"s1@example.com", "s2@example.com", "s3@example.com"} {
		m.students = append(m.students, newUser(t, db, "Student "+email[:2], email, types.UserTypeStudent))
	}

	m.popular = newCourse(t, db, m.lecturer.ID, "Analytical Engines")
	m.quiet = newCourse(t, db, m.lecturer.ID, "Punch Cards")

	_, err := course.SetStatus(db, m.popular.ID, moderation.StateApproved, nil)
	require.NoError(t, err)

	_, err = topic.Create(db, topic.CreateInput{CourseID: m.popular.ID, Title: "Notes"})
	require.NoError(t, err)

	enroll(t, db, m.students[0].ID, m.popular.ID, true)
	enroll(t, db, m.students[1].ID, m.popular.ID, true)
	enroll(t, db, m.students[2].ID, m.popular.ID, false)
	return m
}

func TestLoadAdminStats(t *testing.T) {
	m := newMarket(t)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	stats, err := LoadAdminStats(m.db, "usd", now)
	require.NoError(t, err)

	assert.Equal(t, int64(2), stats.TotalCourses)
	assert.Equal(t, int64(1), stats.PendingCourses)
	assert.Equal(t, int64(1), stats.ApprovedCourses)
	assert.Equal(t, int64(1), stats.PendingTopics)
	assert.Equal(t, int64(5), stats.TotalUsers)
	assert.Equal(t, int64(3), stats.TotalStudents)
	assert.Equal(t, int64(1), stats.TotalLecturers)
	assert.Equal(t, int64(1), stats.TotalAdmins)
	assert.Equal(t, int64(3), stats.TotalEnrollments)
	assert.Equal(t, int64(2), stats.SuccessfulEnrollments)
	assert.Equal(t, int64(1), stats.PendingEnrollments)

	// pending purchases never count toward revenue
	assert.Equal(t, int64(1998), stats.TotalRevenue)
	assert.Equal(t, int64(400), stats.AdminCommissionTotal)
	assert.Equal(t, int64(1598), stats.LecturerEarningsTotal)
	assert.Equal(t, now, stats.GeneratedAt)
}

func TestLoadRevenue(t *testing.T) {
	m := newMarket(t)

	revenue, err := LoadRevenue(m.db, "usd")
	require.NoError(t, err)

	assert.Equal(t, Totals{TotalRevenue: 1998, AdminCommission: 400, LecturerEarnings: 1598, TotalEnrollments: 2}, revenue.Summary)
	require.Len(t, revenue.ByCourse, 1)
	assert.Equal(t, m.popular.ID, revenue.ByCourse[0].CourseID)
	assert.Equal(t, "Analytical Engines", revenue.ByCourse[0].Title)
	assert.Equal(t, int64(2), revenue.ByCourse[0].Enrollments)
	assert.Equal(t, int64(1598), revenue.ByCourse[0].LecturerShare)
}

func TestLecturerEarningsListsEveryCourse(t *testing.T) {
	m := newMarket(t)

	earnings, err := LecturerEarnings(m.db, m.lecturer.ID, "usd")
	require.NoError(t, err)

	assert.Equal(t, int64(1598), earnings.TotalEarning)
	assert.Equal(t, int64(2), earnings.TotalEnrollments)
	require.Len(t, earnings.Breakdown, 2)

	byTitle := map[string]CourseEarning{}
	for _, e := range earnings.Breakdown {
		byTitle[e.Course] = e
	}
	assert.Equal(t, int64(1998), byTitle["Analytical Engines"].CoursePrice)
	assert.Equal(t, int64(0), byTitle["Punch Cards"].LecturerEarning)

	none, err := LecturerEarnings(m.db, uuid.New(), "usd")
	require.NoError(t, err)
	assert.Empty(t, none.Breakdown)
}

func TestLoadCourseDetails(t *testing.T) {
	m := newMarket(t)

	details, err := LoadCourseDetails(m.db, m.popular.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ada Lovelace", details.LecturerName)
	assert.Len(t, details.Topics, 1)
	assert.Equal(t, int64(2), details.EnrollmentStats.TotalEnrollments)
	assert.Equal(t, int64(1), details.EnrollmentStats.PendingEnrollments)
	assert.Equal(t, int64(400), details.EnrollmentStats.AdminEarned)

	_, err = LoadCourseDetails(m.db, uuid.New())
	assert.ErrorIs(t, err, ErrCourseNotFound)
}

func TestLecturerStudents(t *testing.T) {
	m := newMarket(t)

	students, err := LecturerStudents(m.db, m.lecturer.ID, nil)
	require.NoError(t, err)
	require.Len(t, students, 2)
	for _, s := range students {
		assert.Equal(t, "Analytical Engines", s.CourseTitle)
		assert.NotNil(t, s.EnrolledAt)
		assert.NotEqual(t, m.students[2].ID, s.StudentID)
	}

	quiet, err := LecturerStudents(m.db, m.lecturer.ID, &m.quiet.ID)
	require.NoError(t, err)
	assert.Empty(t, quiet)
}

func TestAdminStatsAreCached(t *testing.T) {
	m := newMarket(t)
	gin.SetMode(gin.TestMode)

	handler := NewHandler(m.db, testutil.Logger(), cache.NewMemoryCache(), "usd", time.Minute)
	asAdmin := []gin.HandlerFunc{func(c *gin.Context) {
		c.Set("user", &middleware.User{ID: uuid.New(), UserType: types.UserTypeAdmin, Active: true})
		c.Next()
	}}
	router := gin.New()
	RegisterRoutes(router.Group("/api"), handler, asAdmin, asAdmin)

	fetch := func() AdminStats {
		req := httptest.NewRequest(http.MethodGet, "/api/dashboard/admin/stats", nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)

		var env struct {
			Data AdminStats `json:"data"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
		return env.Data
	}

	first := fetch()
	assert.Equal(t, int64(2), first.TotalCourses)

	newCourse(t, m.db, m.lecturer.ID, "Difference Engines")
	assert.Equal(t, int64(2), fetch().TotalCourses)
}
