package catalog

import (
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mo-amir99/course-market-go/internal/features/course"
	"github.com/mo-amir99/course-market-go/internal/features/enrollment"
	"github.com/mo-amir99/course-market-go/internal/features/lecture"
	"github.com/mo-amir99/course-market-go/internal/features/moderation"
	"github.com/mo-amir99/course-market-go/internal/features/review"
	"github.com/mo-amir99/course-market-go/internal/features/topic"
	"github.com/mo-amir99/course-market-go/pkg/pagination"
	"github.com/mo-amir99/course-market-go/pkg/types"
)

// Summary is a course as shown in the public catalog.
type Summary struct {
	course.Course
	LecturerName     string       `json:"lecturerName"`
	EnrolledStudents int64        `json:"enrolledStudents"`
	Rating           review.Stats `json:"rating"`
}

// PublicLecture is a lecture without its private video reference.
type PublicLecture struct {
	ID              uuid.UUID `json:"id"`
	Title           string    `json:"title"`
	CoveredDuration int       `json:"coveredDuration"`
	LectureDuration int       `json:"lectureDuration"`
	Position        int       `json:"position"`
	HasVideo        bool      `json:"hasVideo"`
}

// PublicTopic is a visible topic with its visible lectures.
type PublicTopic struct {
	ID       uuid.UUID       `json:"id"`
	Title    string          `json:"title"`
	Position int             `json:"position"`
	Lectures []PublicLecture `json:"lectures"`
}

// Detail is the student-facing view of one course.
type Detail struct {
	Summary
	Topics        []PublicTopic `json:"topics"`
	TotalLectures int           `json:"totalLectures"`
	TotalDuration int           `json:"totalDuration"`

	IsEnrolled    bool                 `json:"isEnrolled"`
	PaymentStatus *types.PaymentStatus `json:"paymentStatus,omitempty"`
}

// OwnerLecture carries a lecture with its derived visibility.
type OwnerLecture struct {
	lecture.Lecture
	HasVideo bool `json:"hasVideo"`
	Visible  bool `json:"visible"`
}

// OwnerTopic carries a topic with its derived visibility and every lecture under it.
type OwnerTopic struct {
	topic.Topic
	Visible  bool           `json:"visible"`
	Lectures []OwnerLecture `json:"lectures"`
}

// OwnerTree is the full moderation tree of a course.
type OwnerTree struct {
	Course  course.Course `json:"course"`
	Visible bool          `json:"visible"`
	Topics  []OwnerTopic  `json:"topics"`
}

// ListFilters narrows the public catalog.
type ListFilters struct {
	Keyword    string
	LecturerID *uuid.UUID
}

// ListCourses returns approved courses with lecturer names, enrollment counts and ratings.
func ListCourses(db *gorm.DB, filters ListFilters, params pagination.Params) ([]Summary, int64, error) {
	approved := moderation.StateApproved
	courses, total, err := course.List(db, course.ListFilters{
		LecturerID: filters.LecturerID,
		Status:     &approved,
		Keyword:    filters.Keyword,
	}, params)
	if err != nil {
		return nil, 0, err
	}

	summaries, err := summarize(db, courses)
	return summaries, total, err
}

func summarize(db *gorm.DB, courses []course.Course) ([]Summary, error) {
	ids := make([]uuid.UUID, 0, len(courses))
	lecturerIDs := make([]uuid.UUID, 0, len(courses))
	for _, c := range courses {
		ids = append(ids, c.ID)
		lecturerIDs = append(lecturerIDs, c.LecturerID)
	}

	counts, err := course.EnrollmentCounts(db, ids)
	if err != nil {
		return nil, err
	}
	ratings, err := review.StatsFor(db, ids)
	if err != nil {
		return nil, err
	}
	names, err := lecturerNames(db, lecturerIDs)
	if err != nil {
		return nil, err
	}

	out := make([]Summary, 0, len(courses))
	for _, c := range courses {
		out = append(out, Summary{
			Course:           c,
			LecturerName:     names[c.LecturerID],
			EnrolledStudents: counts[c.ID].EnrolledStudents,
			Rating:           ratings[c.ID],
		})
	}
	return out, nil
}

func lecturerNames(db *gorm.DB, ids []uuid.UUID) (map[uuid.UUID]string, error) {
	names := make(map[uuid.UUID]string, len(ids))
	if len(ids) == 0 {
		return names, nil
	}

	var rows []struct {
		ID       uuid.UUID
		FullName string
	}
	if err := db.Table("users").Select("id, full_name").Where("id IN ?", ids).Scan(&rows).Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		names[row.ID] = row.FullName
	}
	return names, nil
}

// CourseDetail returns an approved course with only its visible subtree.
func CourseDetail(db *gorm.DB, courseID uuid.UUID) (Detail, error) {
	c, err := course.Get(db, courseID)
	if err != nil {
		if errors.Is(err, course.ErrCourseNotFound) {
			return Detail{}, ErrCourseNotFound
		}
		return Detail{}, err
	}
	if !moderation.IsVisible(c.Status) {
		return Detail{}, ErrCourseNotFound
	}

	summaries, err := summarize(db, []course.Course{c})
	if err != nil {
		return Detail{}, err
	}

	tree, err := loadTree(db, c)
	if err != nil {
		return Detail{}, err
	}

	detail := Detail{Summary: summaries[0], Topics: []PublicTopic{}}
	for _, t := range tree.Topics {
		if !t.Visible {
			continue
		}
		pt := PublicTopic{ID: t.ID, Title: t.Title, Position: t.Position, Lectures: []PublicLecture{}}
		for _, l := range t.Lectures {
			if !l.Visible {
				continue
			}
			pt.Lectures = append(pt.Lectures, PublicLecture{
				ID:              l.ID,
				Title:           l.Title,
				CoveredDuration: l.CoveredDuration,
				LectureDuration: l.LectureDuration,
				Position:        l.Position,
				HasVideo:        l.HasVideo,
			})
			detail.TotalLectures++
			detail.TotalDuration += l.LectureDuration
		}
		detail.Topics = append(detail.Topics, pt)
	}
	return detail, nil
}

// Tree returns every node of a course with its derived visibility. Callers check ownership.
func Tree(db *gorm.DB, courseID uuid.UUID) (OwnerTree, error) {
	c, err := course.Get(db, courseID)
	if err != nil {
		return OwnerTree{}, err
	}
	return loadTree(db, c)
}

func loadTree(db *gorm.DB, c course.Course) (OwnerTree, error) {
	topics, err := topic.ListByCourse(db, c.ID, nil)
	if err != nil {
		return OwnerTree{}, err
	}
	lectures, err := lecture.ListByCourse(db, c.ID)
	if err != nil {
		return OwnerTree{}, err
	}

	byTopic := make(map[uuid.UUID][]lecture.Lecture, len(topics))
	for _, l := range lectures {
		byTopic[l.TopicID] = append(byTopic[l.TopicID], l)
	}

	tree := OwnerTree{Course: c, Visible: moderation.IsVisible(c.Status), Topics: make([]OwnerTopic, 0, len(topics))}
	for _, t := range topics {
		node := OwnerTopic{
			Topic:    t,
			Visible:  moderation.IsVisible(t.Status, c.Status),
			Lectures: make([]OwnerLecture, 0, len(byTopic[t.ID])),
		}
		for _, l := range byTopic[t.ID] {
			node.Lectures = append(node.Lectures, OwnerLecture{
				Lecture:  l,
				HasVideo: l.HasVideo(),
				Visible:  moderation.IsVisible(l.Status, t.Status, c.Status),
			})
		}
		tree.Topics = append(tree.Topics, node)
	}
	return tree, nil
}

// Viewer identifies who is asking for lecture content.
type Viewer struct {
	ID       uuid.UUID
	UserType types.UserType
}

// WatchableLecture loads a lecture the viewer may play. Students need a settled enrollment
// and a fully approved path; the course owner and administrators can preview anything.
func WatchableLecture(db *gorm.DB, viewer Viewer, courseID, lectureID uuid.UUID) (lecture.Lecture, error) {
	l, err := lecture.Get(db, lectureID)
	if err != nil {
		if errors.Is(err, lecture.ErrLectureNotFound) {
			return l, ErrLectureNotFound
		}
		return l, err
	}
	if l.CourseID != courseID {
		return lecture.Lecture{}, ErrLectureNotFound
	}

	c, err := course.Get(db, l.CourseID)
	if err != nil {
		return lecture.Lecture{}, ErrCourseNotFound
	}

	privileged := viewer.UserType == types.UserTypeAdmin || c.LecturerID == viewer.ID
	if !privileged {
		t, err := topic.Get(db, l.TopicID)
		if err != nil {
			return lecture.Lecture{}, ErrLectureNotFound
		}
		if !moderation.IsVisible(l.Status, t.Status, c.Status) {
			return lecture.Lecture{}, ErrLectureNotFound
		}

		e, err := enrollment.FindForStudentCourse(db, viewer.ID, c.ID)
		if err != nil {
			if errors.Is(err, enrollment.ErrEnrollmentNotFound) {
				return lecture.Lecture{}, ErrNotEnrolled
			}
			return lecture.Lecture{}, err
		}
		if !e.Settled() {
			return lecture.Lecture{}, ErrNotEnrolled
		}
	}

	if !l.HasVideo() {
		return l, ErrNoVideo
	}
	return l, nil
}
