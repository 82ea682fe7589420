package approval

import (
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mo-amir99/course-market-go/internal/features/course"
	"github.com/mo-amir99/course-market-go/internal/features/lecture"
	"github.com/mo-amir99/course-market-go/internal/features/moderation"
	"github.com/mo-amir99/course-market-go/internal/features/topic"
)

const defaultRejectionReason = "No reason provided"

// QueuedTopic is a topic awaiting review with its course context.
type QueuedTopic struct {
	topic.Topic
	CourseTitle  string `json:"courseTitle"`
	LecturerName string `json:"lecturerName"`
}

// QueuedLecture is a lecture awaiting review with its topic and course context.
type QueuedLecture struct {
	lecture.Lecture
	TopicTitle   string `json:"topicTitle"`
	CourseTitle  string `json:"courseTitle"`
	LecturerName string `json:"lecturerName"`
	HasVideo     bool   `json:"hasVideo"`
}

// Queue lists every node in a moderation state.
type Queue struct {
	Courses  []course.Course `json:"courses"`
	Topics   []QueuedTopic   `json:"topics"`
	Lectures []QueuedLecture `json:"lectures"`
}

// Outcome is the result of a moderator decision.
type Outcome struct {
	Kind     moderation.Kind
	Previous moderation.State
	Course   course.Course
	Topic    *topic.Topic
	Lecture  *lecture.Lecture

	// ancestors holds the states above the decided node, nearest first.
	ancestors []moderation.State
}

// Current returns the state the node was moved to.
func (o Outcome) Current() moderation.State {
	switch {
	case o.Lecture != nil:
		return o.Lecture.Status
	case o.Topic != nil:
		return o.Topic.Status
	default:
		return o.Course.Status
	}
}

// Visible reports whether the decided node is now reachable by students.
func (o Outcome) Visible() bool {
	return moderation.IsVisible(o.Current(), o.ancestors...)
}

// Title returns the decided node's title.
func (o Outcome) Title() string {
	switch {
	case o.Lecture != nil:
		return o.Lecture.Title
	case o.Topic != nil:
		return o.Topic.Title
	default:
		return o.Course.Title
	}
}

func normaliseReason(to moderation.State, reason *string) *string {
	if to != moderation.StateRejected {
		return nil
	}
	if reason == nil || strings.TrimSpace(*reason) == "" {
		value := defaultRejectionReason
		return &value
	}
	trimmed := strings.TrimSpace(*reason)
	return &trimmed
}

// Decide moves a course, topic or lecture to a new moderation state.
func Decide(db *gorm.DB, kind moderation.Kind, id uuid.UUID, to moderation.State, reason *string) (Outcome, error) {
	reason = normaliseReason(to, reason)

	switch kind {
	case moderation.KindCourse:
		existing, err := course.Get(db, id)
		if err != nil {
			return Outcome{}, err
		}
		updated, err := course.SetStatus(db, id, to, reason)
		if err != nil {
			return Outcome{}, err
		}
		return Outcome{Kind: kind, Previous: existing.Status, Course: updated}, nil

	case moderation.KindTopic:
		existing, err := topic.Get(db, id)
		if err != nil {
			return Outcome{}, err
		}
		parent, err := course.Get(db, existing.CourseID)
		if err != nil {
			return Outcome{}, err
		}
		updated, err := topic.SetStatus(db, id, to, reason)
		if err != nil {
			return Outcome{}, err
		}
		return Outcome{
			Kind:      kind,
			Previous:  existing.Status,
			Course:    parent,
			Topic:     &updated,
			ancestors: []moderation.State{parent.Status},
		}, nil

	case moderation.KindLecture:
		existing, err := lecture.Get(db, id)
		if err != nil {
			return Outcome{}, err
		}
		parent, err := course.Get(db, existing.CourseID)
		if err != nil {
			return Outcome{}, err
		}
		holder, err := topic.Get(db, existing.TopicID)
		if err != nil {
			return Outcome{}, err
		}
		updated, err := lecture.SetStatus(db, id, to, reason)
		if err != nil {
			return Outcome{}, err
		}
		return Outcome{
			Kind:      kind,
			Previous:  existing.Status,
			Course:    parent,
			Lecture:   &updated,
			ancestors: []moderation.State{holder.Status, parent.Status},
		}, nil
	}

	return Outcome{}, ErrUnknownNode
}

// LoadQueue returns every course, topic and lecture currently in the given state.
func LoadQueue(db *gorm.DB, state moderation.State) (Queue, error) {
	var courses []course.Course
	if err := db.Where("status = ?", state).Order("created_at ASC").Find(&courses).Error; err != nil {
		return Queue{}, err
	}

	topics, err := topic.ListByStatus(db, state)
	if err != nil {
		return Queue{}, err
	}
	lectures, err := lecture.ListByStatus(db, state)
	if err != nil {
		return Queue{}, err
	}

	courseIDs := make([]uuid.UUID, 0, len(topics)+len(lectures))
	topicIDs := make([]uuid.UUID, 0, len(lectures))
	for _, t := range topics {
		courseIDs = append(courseIDs, t.CourseID)
	}
	for _, l := range lectures {
		courseIDs = append(courseIDs, l.CourseID)
		topicIDs = append(topicIDs, l.TopicID)
	}

	parents, err := courseContext(db, courseIDs)
	if err != nil {
		return Queue{}, err
	}
	topicTitles, err := titles(db, "topics", topicIDs)
	if err != nil {
		return Queue{}, err
	}

	queue := Queue{
		Courses:  courses,
		Topics:   make([]QueuedTopic, 0, len(topics)),
		Lectures: make([]QueuedLecture, 0, len(lectures)),
	}
	if queue.Courses == nil {
		queue.Courses = []course.Course{}
	}
	for _, t := range topics {
		parent := parents[t.CourseID]
		queue.Topics = append(queue.Topics, QueuedTopic{Topic: t, CourseTitle: parent.Title, LecturerName: parent.LecturerName})
	}
	for _, l := range lectures {
		parent := parents[l.CourseID]
		queue.Lectures = append(queue.Lectures, QueuedLecture{
			Lecture:      l,
			TopicTitle:   topicTitles[l.TopicID],
			CourseTitle:  parent.Title,
			LecturerName: parent.LecturerName,
			HasVideo:     l.HasVideo(),
		})
	}
	return queue, nil
}

type courseRef struct {
	ID           uuid.UUID
	Title        string
	LecturerName string
}

func courseContext(db *gorm.DB, ids []uuid.UUID) (map[uuid.UUID]courseRef, error) {
	out := make(map[uuid.UUID]courseRef, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	var rows []courseRef
	err := db.Table("courses").
		Select("courses.id, courses.title, users.full_name AS lecturer_name").
		Joins("LEFT JOIN users ON users.id = courses.lecturer_id").
		Where("courses.id IN ?", ids).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.ID] = row
	}
	return out, nil
}

func titles(db *gorm.DB, table string, ids []uuid.UUID) (map[uuid.UUID]string, error) {
	out := make(map[uuid.UUID]string, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	var rows []struct {
		ID    uuid.UUID
		Title string
	}
	if err := db.Table(table).Select("id, title").Where("id IN ?", ids).Scan(&rows).Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.ID] = row.Title
	}
	return out, nil
}
