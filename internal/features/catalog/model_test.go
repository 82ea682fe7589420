package catalog

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/mo-amir99/course-market-go/internal/features/course"
	"github.com/mo-amir99/course-market-go/internal/features/enrollment"
	"github.com/mo-amir99/course-market-go/internal/features/lecture"
	"github.com/mo-amir99/course-market-go/internal/features/moderation"
	"github.com/mo-amir99/course-market-go/internal/features/review"
	"github.com/mo-amir99/course-market-go/internal/features/topic"
	"github.com/mo-amir99/course-market-go/internal/features/user"
	"github.com/mo-amir99/course-market-go/internal/testutil"
	"github.com/mo-amir99/course-market-go/pkg/pagination"
	"github.com/mo-amir99/course-market-go/pkg/types"
)

type seeded struct {
	lecturer user.User
	course   course.Course
	topics   []topic.Topic
	lectures [][]lecture.Lecture
}

func newTestDB(t *testing.T) *gorm.DB {
	return testutil.NewDB(t,
		&user.User{},
		&course.Course{},
		&topic.Topic{},
		&lecture.Lecture{},
		&enrollment.Enrollment{},
		&review.Review{},
	)
}

// seed builds an approved course with two approved topics holding two approved lectures each.
func seed(t *testing.T, db *gorm.DB) seeded {
	t.Helper()

	lecturer, err := user.Create(db, user.CreateInput{
		FullName: "Grace Hopper",
		Email:    "grace@example.com",
		Password: "compilers1",
		UserType: types.UserTypeLecturer,
	})
	require.NoError(t, err)

	c, err := course.Create(db, course.CreateInput{
		LecturerID:  lecturer.ID,
		Title:       "Compilers",
		Description: "From source to machine code",
		Price:       types.NewMoney(49),
	})
	require.NoError(t, err)
	c, err = course.SetStatus(db, c.ID, moderation.StateApproved, nil)
	require.NoError(t, err)

	out := seeded{lecturer: lecturer, course: c}
	for i := 0; i < 2; i++ {
		tp, err := topic.Create(db, topic.CreateInput{CourseID: c.ID, Title: "Topic"})
		require.NoError(t, err)
		tp, err = topic.SetStatus(db, tp.ID, moderation.StateApproved, nil)
		require.NoError(t, err)
		out.topics = append(out.topics, tp)

		var lectures []lecture.Lecture
		for j := 0; j < 2; j++ {
			l, err := lecture.Create(db, lecture.CreateInput{TopicID: tp.ID, CourseID: c.ID, Title: "Lecture", CoveredDuration: 50, LectureDuration: 100})
			require.NoError(t, err)
			_, err = lecture.AttachVideo(db, l.ID, uuid.NewString())
			require.NoError(t, err)
			l, err = lecture.SetStatus(db, l.ID, moderation.StateApproved, nil)
			require.NoError(t, err)
			lectures = append(lectures, l)
		}
		out.lectures = append(out.lectures, lectures)
	}
	return out
}

func enroll(t *testing.T, db *gorm.DB, studentID, courseID uuid.UUID, settled bool) {
	t.Helper()
	e := &enrollment.Enrollment{
		StudentID:     studentID,
		CourseID:      courseID,
		IntentRef:     "pi_" + uuid.NewString(),
		PriceSnapshot: types.NewMoney(49),
		AmountMinor:   4900,
		Currency:      "inr",
	}
	require.NoError(t, enrollment.CreatePending(db, e))
	if settled {
		_, err := enrollment.MarkSettled(db, e.ID, enrollment.Settlement{AdminShare: 980, LecturerShare: 3920, SettledAt: time.Now().UTC(), Source: "confirm"})
		require.NoError(t, err)
	}
}

func TestCourseDetailShowsOnlyVisibleSubtree(t *testing.T) {
	db := newTestDB(t)
	s := seed(t, db)

	detail, err := CourseDetail(db, s.course.ID)
	require.NoError(t, err)
	assert.Equal(t, "Grace Hopper", detail.LecturerName)
	assert.Len(t, detail.Topics, 2)
	assert.Equal(t, 4, detail.TotalLectures)
	assert.Equal(t, 400, detail.TotalDuration)

	// An edited topic goes back to review and disappears with its lectures.
	title := "Rewritten"
	_, err = topic.Update(db, s.topics[0].ID, topic.UpdateInput{Title: &title})
	require.NoError(t, err)

	// A rejected lecture disappears on its own.
	reason := "audio is missing"
	_, err = lecture.SetStatus(db, s.lectures[1][0].ID, moderation.StateRejected, &reason)
	require.NoError(t, err)

	detail, err = CourseDetail(db, s.course.ID)
	require.NoError(t, err)
	require.Len(t, detail.Topics, 1)
	assert.Equal(t, s.topics[1].ID, detail.Topics[0].ID)
	require.Len(t, detail.Topics[0].Lectures, 1)
	assert.Equal(t, s.lectures[1][1].ID, detail.Topics[0].Lectures[0].ID)
	assert.Equal(t, 1, detail.TotalLectures)

	tree, err := Tree(db, s.course.ID)
	require.NoError(t, err)
	require.Len(t, tree.Topics, 2)
	assert.False(t, tree.Topics[0].Visible)
	for _, l := range tree.Topics[0].Lectures {
		assert.Equal(t, moderation.StateApproved, l.Status)
		assert.False(t, l.Visible)
	}
}

func TestRejectedCourseHidesEverything(t *testing.T) {
	db := newTestDB(t)
	s := seed(t, db)

	_, err := course.SetStatus(db, s.course.ID, moderation.StateRejected, nil)
	require.NoError(t, err)

	_, err = CourseDetail(db, s.course.ID)
	assert.ErrorIs(t, err, ErrCourseNotFound)

	items, total, err := ListCourses(db, ListFilters{}, pagination.Params{Page: 1, Limit: 20})
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, items)

	tree, err := Tree(db, s.course.ID)
	require.NoError(t, err)
	assert.False(t, tree.Visible)
	for _, tp := range tree.Topics {
		assert.False(t, tp.Visible)
		for _, l := range tp.Lectures {
			assert.False(t, l.Visible)
		}
	}
}

func TestListCoursesIncludesRatingAndEnrollments(t *testing.T) {
	db := newTestDB(t)
	s := seed(t, db)

	studentID := uuid.New()
	enroll(t, db, studentID, s.course.ID, true)
	enroll(t, db, uuid.New(), s.course.ID, false)
	_, err := review.Create(db, studentID, s.course.ID, 5, "excellent")
	require.NoError(t, err)

	items, total, err := ListCourses(db, ListFilters{Keyword: "compil"}, pagination.Params{Page: 1, Limit: 20})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, items, 1)
	assert.Equal(t, int64(1), items[0].EnrolledStudents)
	assert.Equal(t, 5.0, items[0].Rating.AverageRating)
	assert.Equal(t, "Grace Hopper", items[0].LecturerName)
}

func TestWatchableLecture(t *testing.T) {
	db := newTestDB(t)
	s := seed(t, db)
	target := s.lectures[0][0]
	studentID := uuid.New()
	student := Viewer{ID: studentID, UserType: types.UserTypeStudent}

	_, err := WatchableLecture(db, student, s.course.ID, target.ID)
	assert.ErrorIs(t, err, ErrNotEnrolled)

	enroll(t, db, studentID, s.course.ID, false)
	_, err = WatchableLecture(db, student, s.course.ID, target.ID)
	assert.ErrorIs(t, err, ErrNotEnrolled)

	_, err = enrollment.MarkSettled(db, mustEnrollment(t, db, studentID, s.course.ID).ID, enrollment.Settlement{SettledAt: time.Now().UTC(), Source: "webhook"})
	require.NoError(t, err)

	l, err := WatchableLecture(db, student, s.course.ID, target.ID)
	require.NoError(t, err)
	assert.Equal(t, target.ID, l.ID)

	_, err = WatchableLecture(db, student, uuid.New(), target.ID)
	assert.ErrorIs(t, err, ErrLectureNotFound)

	_, err = course.SetStatus(db, s.course.ID, moderation.StatePending, nil)
	require.NoError(t, err)
	_, err = WatchableLecture(db, student, s.course.ID, target.ID)
	assert.ErrorIs(t, err, ErrLectureNotFound)

	owner := Viewer{ID: s.lecturer.ID, UserType: types.UserTypeLecturer}
	_, err = WatchableLecture(db, owner, s.course.ID, target.ID)
	assert.NoError(t, err)
}

func mustEnrollment(t *testing.T, db *gorm.DB, studentID, courseID uuid.UUID) enrollment.Enrollment {
	t.Helper()
	e, err := enrollment.FindForStudentCourse(db, studentID, courseID)
	require.NoError(t, err)
	return e
}
