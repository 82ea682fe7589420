package lecture

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/mo-amir99/course-market-go/internal/features/course"
	"github.com/mo-amir99/course-market-go/internal/features/moderation"
	"github.com/mo-amir99/course-market-go/internal/features/topic"
	"github.com/mo-amir99/course-market-go/internal/testutil"
	"github.com/mo-amir99/course-market-go/pkg/cleanup"
	"github.com/mo-amir99/course-market-go/pkg/types"
)

type fakeVideos struct {
	mu          sync.Mutex
	videos      []string
	collections []string
}

func (f *fakeVideos) DeleteVideo(_ context.Context, videoID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.videos = append(f.videos, videoID)
	return nil
}

func (f *fakeVideos) DeleteCollection(_ context.Context, collectionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.collections = append(f.collections, collectionID)
	return nil
}

type tree struct {
	course   course.Course
	topics   []topic.Topic
	lectures []Lecture
}

func newTestDB(t *testing.T) *gorm.DB {
	db := testutil.NewDB(t, &course.Course{}, &topic.Topic{}, &Lecture{})
	testutil.CreateEnrollmentsTable(t, db)
	return db
}

// seedApprovedTree builds a course with two topics of two lectures each, all approved.
func seedApprovedTree(t *testing.T, db *gorm.DB) tree {
	t.Helper()

	c, err := course.Create(db, course.CreateInput{
		LecturerID:  uuid.New(),
		Title:       "Go in Practice",
		Description: "Services with Go",
		Price:       types.NewMoney(999),
	})
	require.NoError(t, err)
	_, err = course.SetStatus(db, c.ID, moderation.StateApproved, nil)
	require.NoError(t, err)

	out := tree{}
	for i := 0; i < 2; i++ {
		tp, err := topic.Create(db, topic.CreateInput{CourseID: c.ID, Title: "Topic"})
		require.NoError(t, err)
		tp, err = topic.SetStatus(db, tp.ID, moderation.StateApproved, nil)
		require.NoError(t, err)
		out.topics = append(out.topics, tp)

		for j := 0; j < 2; j++ {
			l, err := Create(db, CreateInput{TopicID: tp.ID, CourseID: c.ID, Title: "Lecture", CoveredDuration: 60, LectureDuration: 120})
			require.NoError(t, err)
			videoID := uuid.NewString()
			_, err = AttachVideo(db, l.ID, videoID)
			require.NoError(t, err)
			l, err = SetStatus(db, l.ID, moderation.StateApproved, nil)
			require.NoError(t, err)
			out.lectures = append(out.lectures, l)
		}
	}

	out.course, err = course.Get(db, c.ID)
	require.NoError(t, err)
	return out
}

func TestCreateValidatesDurations(t *testing.T) {
	db := newTestDB(t)
	topicID, courseID := uuid.New(), uuid.New()

	_, err := Create(db, CreateInput{TopicID: topicID, CourseID: courseID, Title: "Intro", CoveredDuration: 10, LectureDuration: 0})
	assert.ErrorIs(t, err, ErrInvalidDuration)

	_, err = Create(db, CreateInput{TopicID: topicID, CourseID: courseID, Title: "Intro", CoveredDuration: 121, LectureDuration: 120})
	assert.ErrorIs(t, err, ErrCoveredTooLong)

	first, err := Create(db, CreateInput{TopicID: topicID, CourseID: courseID, Title: "Intro", CoveredDuration: 120, LectureDuration: 120})
	require.NoError(t, err)
	assert.Equal(t, moderation.StatePending, first.Status)
	assert.Equal(t, 0, first.Position)

	second, err := Create(db, CreateInput{TopicID: topicID, CourseID: courseID, Title: "Next", CoveredDuration: 0, LectureDuration: 60})
	require.NoError(t, err)
	assert.Equal(t, 1, second.Position)

	_, err = Update(db, first.ID, UpdateInput{LectureDuration: intPtr(100)})
	assert.ErrorIs(t, err, ErrCoveredTooLong)
}

func TestTopicEditResetsOnlyThatTopic(t *testing.T) {
	db := newTestDB(t)
	seeded := seedApprovedTree(t, db)

	title := "Renamed"
	edited, err := topic.Update(db, seeded.topics[0].ID, topic.UpdateInput{Title: &title})
	require.NoError(t, err)
	assert.Equal(t, moderation.StatePending, edited.Status)

	sibling, err := topic.Get(db, seeded.topics[1].ID)
	require.NoError(t, err)
	assert.Equal(t, moderation.StateApproved, sibling.Status)

	parent, err := course.Get(db, seeded.course.ID)
	require.NoError(t, err)
	assert.Equal(t, moderation.StateApproved, parent.Status)

	for _, l := range seeded.lectures {
		current, err := Get(db, l.ID)
		require.NoError(t, err)
		assert.Equal(t, moderation.StateApproved, current.Status)
	}
}

func TestLectureEditResetsOnlyThatLecture(t *testing.T) {
	db := newTestDB(t)
	seeded := seedApprovedTree(t, db)

	edited, err := Update(db, seeded.lectures[0].ID, UpdateInput{Title: strPtr("Better title")})
	require.NoError(t, err)
	assert.Equal(t, moderation.StatePending, edited.Status)

	other, err := Get(db, seeded.lectures[1].ID)
	require.NoError(t, err)
	assert.Equal(t, moderation.StateApproved, other.Status)

	parent, err := topic.Get(db, seeded.topics[0].ID)
	require.NoError(t, err)
	assert.Equal(t, moderation.StateApproved, parent.Status)
}

func TestCourseEditKeepsState(t *testing.T) {
	db := newTestDB(t)
	seeded := seedApprovedTree(t, db)

	price := types.NewMoney(1499)
	updated, err := course.Update(db, seeded.course.ID, course.UpdateInput{Price: &price})
	require.NoError(t, err)
	assert.Equal(t, moderation.StateApproved, updated.Status)
	assert.Equal(t, "1499.00", updated.Price.String())
}

func TestRejectionReasonClearedOnApprove(t *testing.T) {
	db := newTestDB(t)
	seeded := seedApprovedTree(t, db)

	reason := "audio is unclear"
	rejected, err := SetStatus(db, seeded.lectures[0].ID, moderation.StateRejected, &reason)
	require.NoError(t, err)
	require.NotNil(t, rejected.RejectionReason)

	approved, err := SetStatus(db, seeded.lectures[0].ID, moderation.StateApproved, &reason)
	require.NoError(t, err)
	assert.Nil(t, approved.RejectionReason)

	_, err = SetStatus(db, seeded.lectures[0].ID, moderation.State("hidden"), nil)
	assert.ErrorIs(t, err, moderation.ErrInvalidState)
}

func TestCleanupTopicRemovesLecturesAndVideos(t *testing.T) {
	db := newTestDB(t)
	seeded := seedApprovedTree(t, db)
	videos := &fakeVideos{}

	err := cleanup.CleanupTopic(context.Background(), db, cleanup.Media{Videos: videos}, testutil.Logger(), seeded.topics[0].ID)
	require.NoError(t, err)

	_, err = topic.Get(db, seeded.topics[0].ID)
	assert.ErrorIs(t, err, topic.ErrTopicNotFound)

	remaining, err := ListByCourse(db, seeded.course.ID)
	require.NoError(t, err)
	assert.Len(t, remaining, 2)
	for _, l := range remaining {
		assert.Equal(t, seeded.topics[1].ID, l.TopicID)
	}
	assert.Len(t, videos.videos, 2)
}

func TestCleanupCourseCascades(t *testing.T) {
	db := newTestDB(t)
	seeded := seedApprovedTree(t, db)
	videos := &fakeVideos{}
	require.NoError(t, course.SetCollection(db, seeded.course.ID, "collection-1"))

	err := cleanup.CleanupCourse(context.Background(), db, cleanup.Media{Videos: videos}, testutil.Logger(), seeded.course.ID)
	require.NoError(t, err)

	_, err = course.Get(db, seeded.course.ID)
	assert.ErrorIs(t, err, course.ErrCourseNotFound)

	topics, err := topic.ListByCourse(db, seeded.course.ID, nil)
	require.NoError(t, err)
	assert.Empty(t, topics)

	lectures, err := ListByCourse(db, seeded.course.ID)
	require.NoError(t, err)
	assert.Empty(t, lectures)

	assert.Equal(t, []string{"collection-1"}, videos.collections)
	assert.Empty(t, videos.videos)
}

func intPtr(v int) *int       { return &v }
func strPtr(v string) *string { return &v }
