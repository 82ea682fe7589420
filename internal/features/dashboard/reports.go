package dashboard

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mo-amir99/course-market-go/internal/features/course"
	"github.com/mo-amir99/course-market-go/internal/features/enrollment"
	"github.com/mo-amir99/course-market-go/internal/features/lecture"
	"github.com/mo-amir99/course-market-go/internal/features/moderation"
	"github.com/mo-amir99/course-market-go/internal/features/topic"
	"github.com/mo-amir99/course-market-go/internal/features/user"
	"github.com/mo-amir99/course-market-go/pkg/types"
)

// AdminStats is the platform overview shown on the admin dashboard.
// Money fields are in minor currency units.
type AdminStats struct {
	TotalCourses    int64 `json:"totalCourses"`
	PendingCourses  int64 `json:"pendingCourses"`
	ApprovedCourses int64 `json:"approvedCourses"`
	RejectedCourses int64 `json:"rejectedCourses"`

	PendingTopics   int64 `json:"pendingTopics"`
	PendingLectures int64 `json:"pendingLectures"`

	TotalUsers     int64 `json:"totalUsers"`
	TotalLecturers int64 `json:"totalLecturers"`
	TotalStudents  int64 `json:"totalStudents"`
	TotalAdmins    int64 `json:"totalAdmins"`

	TotalEnrollments      int64 `json:"totalEnrollments"`
	SuccessfulEnrollments int64 `json:"successfulEnrollments"`
	PendingEnrollments    int64 `json:"pendingEnrollments"`

	TotalRevenue          int64  `json:"totalRevenue"`
	AdminCommissionTotal  int64  `json:"adminCommissionTotal"`
	LecturerEarningsTotal int64  `json:"lecturerEarningsTotal"`
	Currency              string `json:"currency"`

	GeneratedAt time.Time `json:"generatedAt"`
}

// Totals sums settled enrollments. Shares are the values stored at settlement.
type Totals struct {
	TotalRevenue     int64 `json:"totalRevenue" gorm:"column:total_revenue"`
	AdminCommission  int64 `json:"adminCommission" gorm:"column:admin_commission"`
	LecturerEarnings int64 `json:"lecturerEarnings" gorm:"column:lecturer_earnings"`
	TotalEnrollments int64 `json:"totalEnrollments" gorm:"column:total_enrollments"`
}

// CourseRevenue is the settled income of one course.
type CourseRevenue struct {
	CourseID      uuid.UUID `json:"courseId" gorm:"column:course_id"`
	Title         string    `json:"name" gorm:"column:title"`
	TotalRevenue  int64     `json:"totalRevenue" gorm:"column:total_revenue"`
	AdminShare    int64     `json:"adminShare" gorm:"column:admin_share"`
	LecturerShare int64     `json:"lecturerShare" gorm:"column:lecturer_share"`
	Enrollments   int64     `json:"enrollments" gorm:"column:enrollments"`
}

// Revenue is the admin revenue report.
type Revenue struct {
	Summary  Totals          `json:"summary"`
	Currency string          `json:"currency"`
	ByCourse []CourseRevenue `json:"byCourse"`
}

// CourseEarning is a lecturer's income from one course.
type CourseEarning struct {
	CourseID        uuid.UUID `json:"courseId"`
	Course          string    `json:"course"`
	LecturerEarning int64     `json:"lecturerEarning"`
	CoursePrice     int64     `json:"coursePrice"`
	Enrollments     int64     `json:"enrollments"`
}

// Earnings is a lecturer's income across their courses.
type Earnings struct {
	LecturerID       uuid.UUID       `json:"lecturerId"`
	TotalEarning     int64           `json:"totalEarning"`
	TotalEnrollments int64           `json:"totalEnrollments"`
	Currency         string          `json:"currency"`
	Breakdown        []CourseEarning `json:"breakdown"`
}

// EnrollmentStats summarises the settled enrollments of one course.
type EnrollmentStats struct {
	TotalEnrollments   int64 `json:"totalEnrollments" gorm:"column:total_enrollments"`
	PendingEnrollments int64 `json:"pendingEnrollments" gorm:"-"`
	TotalRevenue       int64 `json:"totalRevenue" gorm:"column:total_revenue"`
	AdminEarned        int64 `json:"adminEarned" gorm:"column:admin_earned"`
	LecturerEarned     int64 `json:"lecturerEarned" gorm:"column:lecturer_earned"`
}

// CourseDetails is the admin view of a course with its full tree and sales.
type CourseDetails struct {
	Course          course.Course     `json:"course"`
	LecturerName    string            `json:"lecturerName"`
	LecturerEmail   string            `json:"lecturerEmail"`
	Topics          []topic.Topic     `json:"topics"`
	Lectures        []lecture.Lecture `json:"lectures"`
	EnrollmentStats EnrollmentStats   `json:"enrollmentStats"`
}

// Student is one settled enrollment in a lecturer's course.
type Student struct {
	EnrollmentID    uuid.UUID  `json:"enrollmentId" gorm:"column:enrollment_id"`
	StudentID       uuid.UUID  `json:"studentId" gorm:"column:student_id"`
	Name            string     `json:"name" gorm:"column:name"`
	Email           string     `json:"email" gorm:"column:email"`
	ProfileImage    *string    `json:"profileImage,omitempty" gorm:"column:profile_image"`
	CourseID        uuid.UUID  `json:"courseId" gorm:"column:course_id"`
	CourseTitle     string     `json:"courseTitle" gorm:"column:course_title"`
	EnrolledAt      *time.Time `json:"enrolledAt" gorm:"column:enrolled_at"`
	PercentComplete int        `json:"percentComplete" gorm:"column:percent_complete"`
}

func settled(db *gorm.DB) *gorm.DB {
	return db.Model(&enrollment.Enrollment{}).Where("enrollments.payment_status = ?", types.PaymentStatusSettled)
}

func countWhere(db *gorm.DB, model interface{}, query string, args ...interface{}) (int64, error) {
	var n int64
	tx := db.Model(model)
	if query != "" {
		tx = tx.Where(query, args...)
	}
	err := tx.Count(&n).Error
	return n, err
}

// LoadAdminStats gathers the admin overview counters.
func LoadAdminStats(db *gorm.DB, currency string, now time.Time) (AdminStats, error) {
	stats := AdminStats{Currency: currency, GeneratedAt: now}

	counters := []struct {
		dest  *int64
		model interface{}
		query string
		args  []interface{}
	}{
		{&stats.TotalCourses, &course.Course{}, "", nil},
		{&stats.PendingCourses, &course.Course{}, "status = ?", []interface{}{moderation.StatePending}},
		{&stats.ApprovedCourses, &course.Course{}, "status = ?", []interface{}{moderation.StateApproved}},
		{&stats.RejectedCourses, &course.Course{}, "status = ?", []interface{}{moderation.StateRejected}},
		{&stats.PendingTopics, &topic.Topic{}, "status = ?", []interface{}{moderation.StatePending}},
		{&stats.PendingLectures, &lecture.Lecture{}, "status = ?", []interface{}{moderation.StatePending}},
		{&stats.TotalUsers, &user.User{}, "", nil},
		{&stats.TotalLecturers, &user.User{}, "user_type = ?", []interface{}{types.UserTypeLecturer}},
		{&stats.TotalStudents, &user.User{}, "user_type = ?", []interface{}{types.UserTypeStudent}},
		{&stats.TotalAdmins, &user.User{}, "user_type = ?", []interface{}{types.UserTypeAdmin}},
		{&stats.TotalEnrollments, &enrollment.Enrollment{}, "", nil},
		{&stats.SuccessfulEnrollments, &enrollment.Enrollment{}, "payment_status = ?", []interface{}{types.PaymentStatusSettled}},
		{&stats.PendingEnrollments, &enrollment.Enrollment{}, "payment_status = ?", []interface{}{types.PaymentStatusPending}},
	}
	for _, counter := range counters {
		n, err := countWhere(db, counter.model, counter.query, counter.args...)
		if err != nil {
			return AdminStats{}, err
		}
		*counter.dest = n
	}

	totals, err := LoadTotals(db)
	if err != nil {
		return AdminStats{}, err
	}
	stats.TotalRevenue = totals.TotalRevenue
	stats.AdminCommissionTotal = totals.AdminCommission
	stats.LecturerEarningsTotal = totals.LecturerEarnings

	return stats, nil
}

// LoadTotals sums every settled enrollment.
func LoadTotals(db *gorm.DB) (Totals, error) {
	var totals Totals
	err := settled(db).
		Select("COALESCE(SUM(amount_minor), 0) AS total_revenue, " +
			"COALESCE(SUM(admin_share), 0) AS admin_commission, " +
			"COALESCE(SUM(lecturer_share), 0) AS lecturer_earnings, " +
			"COUNT(*) AS total_enrollments").
		Scan(&totals).Error
	return totals, err
}

// LoadRevenue returns the totals and the per-course breakdown, highest revenue first.
func LoadRevenue(db *gorm.DB, currency string) (Revenue, error) {
	totals, err := LoadTotals(db)
	if err != nil {
		return Revenue{}, err
	}

	byCourse := make([]CourseRevenue, 0)
	err = settled(db).
		Select("enrollments.course_id, COALESCE(courses.title, '') AS title, " +
			"SUM(enrollments.amount_minor) AS total_revenue, " +
			"COALESCE(SUM(enrollments.admin_share), 0) AS admin_share, " +
			"COALESCE(SUM(enrollments.lecturer_share), 0) AS lecturer_share, " +
			"COUNT(*) AS enrollments").
		Joins("LEFT JOIN courses ON courses.id = enrollments.course_id").
		Group("enrollments.course_id, courses.title").
		Order("total_revenue DESC").
		Scan(&byCourse).Error
	if err != nil {
		return Revenue{}, err
	}

	return Revenue{Summary: totals, Currency: currency, ByCourse: byCourse}, nil
}

// LecturerEarnings returns what a lecturer earned, per course. Courses without sales are listed with zeros.
func LecturerEarnings(db *gorm.DB, lecturerID uuid.UUID, currency string) (Earnings, error) {
	var courses []course.Course
	if err := db.Where("lecturer_id = ?", lecturerID).Order("created_at ASC").Find(&courses).Error; err != nil {
		return Earnings{}, err
	}

	out := Earnings{LecturerID: lecturerID, Currency: currency, Breakdown: make([]CourseEarning, 0, len(courses))}
	if len(courses) == 0 {
		return out, nil
	}

	ids := make([]uuid.UUID, 0, len(courses))
	for _, c := range courses {
		ids = append(ids, c.ID)
	}

	var rows []struct {
		CourseID    uuid.UUID `gorm:"column:course_id"`
		Earned      int64     `gorm:"column:earned"`
		Gross       int64     `gorm:"column:gross"`
		Enrollments int64     `gorm:"column:enrollments"`
	}
	err := settled(db).
		Select("course_id, COALESCE(SUM(lecturer_share), 0) AS earned, SUM(amount_minor) AS gross, COUNT(*) AS enrollments").
		Where("course_id IN ?", ids).
		Group("course_id").
		Scan(&rows).Error
	if err != nil {
		return Earnings{}, err
	}

	byCourse := make(map[uuid.UUID]CourseEarning, len(rows))
	for _, r := range rows {
		byCourse[r.CourseID] = CourseEarning{LecturerEarning: r.Earned, CoursePrice: r.Gross, Enrollments: r.Enrollments}
	}

	for _, c := range courses {
		earning := byCourse[c.ID]
		earning.CourseID = c.ID
		earning.Course = c.Title
		out.TotalEarning += earning.LecturerEarning
		out.TotalEnrollments += earning.Enrollments
		out.Breakdown = append(out.Breakdown, earning)
	}
	return out, nil
}

// LoadCourseDetails returns any course, regardless of moderation state, with its sales.
func LoadCourseDetails(db *gorm.DB, courseID uuid.UUID) (CourseDetails, error) {
	c, err := course.Get(db, courseID)
	if err != nil {
		if errors.Is(err, course.ErrCourseNotFound) || errors.Is(err, gorm.ErrRecordNotFound) {
			return CourseDetails{}, ErrCourseNotFound
		}
		return CourseDetails{}, err
	}

	details := CourseDetails{Course: c}

	var owner struct {
		FullName string
		Email    string
	}
	if err := db.Table("users").Select("full_name, email").Where("id = ?", c.LecturerID).Scan(&owner).Error; err != nil {
		return CourseDetails{}, err
	}
	details.LecturerName = owner.FullName
	details.LecturerEmail = owner.Email

	if details.Topics, err = topic.ListByCourse(db, courseID, nil); err != nil {
		return CourseDetails{}, err
	}
	if details.Lectures, err = lecture.ListByCourse(db, courseID); err != nil {
		return CourseDetails{}, err
	}

	err = settled(db).
		Select("COUNT(*) AS total_enrollments, " +
			"COALESCE(SUM(amount_minor), 0) AS total_revenue, " +
			"COALESCE(SUM(admin_share), 0) AS admin_earned, " +
			"COALESCE(SUM(lecturer_share), 0) AS lecturer_earned").
		Where("course_id = ?", courseID).
		Scan(&details.EnrollmentStats).Error
	if err != nil {
		return CourseDetails{}, err
	}

	pending, err := countWhere(db, &enrollment.Enrollment{}, "course_id = ? AND payment_status = ?", courseID, types.PaymentStatusPending)
	if err != nil {
		return CourseDetails{}, err
	}
	details.EnrollmentStats.PendingEnrollments = pending

	return details, nil
}

// LecturerStudents lists the settled students of a lecturer's courses, newest first.
// A non-nil courseID narrows the list to that course.
func LecturerStudents(db *gorm.DB, lecturerID uuid.UUID, courseID *uuid.UUID) ([]Student, error) {
	tx := settled(db).
		Select("enrollments.id AS enrollment_id, enrollments.student_id, " +
			"COALESCE(users.full_name, 'Unknown') AS name, COALESCE(users.email, '') AS email, users.profile_image, " +
			"enrollments.course_id, courses.title AS course_title, " +
			"enrollments.settled_at AS enrolled_at, enrollments.percent_complete").
		Joins("JOIN courses ON courses.id = enrollments.course_id").
		Joins("LEFT JOIN users ON users.id = enrollments.student_id").
		Where("courses.lecturer_id = ?", lecturerID)
	if courseID != nil {
		tx = tx.Where("enrollments.course_id = ?", *courseID)
	}

	students := make([]Student, 0)
	err := tx.Order("enrollments.settled_at DESC").Scan(&students).Error
	return students, err
}
