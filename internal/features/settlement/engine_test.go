package settlement

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/mo-amir99/course-market-go/internal/features/course"
	"github.com/mo-amir99/course-market-go/internal/features/enrollment"
	"github.com/mo-amir99/course-market-go/internal/features/moderation"
	"github.com/mo-amir99/course-market-go/internal/features/notification"
	"github.com/mo-amir99/course-market-go/internal/testutil"
	"github.com/mo-amir99/course-market-go/pkg/stripe"
	"github.com/mo-amir99/course-market-go/pkg/types"
)

type fakeGateway struct {
	mu        sync.Mutex
	next      int
	intents   map[string]*stripe.PaymentIntent
	cancelled []string
	createErr error
	getErr    error
	lookups   int
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{intents: map[string]*stripe.PaymentIntent{}}
}

func (g *fakeGateway) CreatePaymentIntent(_ context.Context, amountMinor int64, currency string, metadata map[string]string) (*stripe.PaymentIntent, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.createErr != nil {
		return nil, g.createErr
	}
	g.next++
	id := fmt.Sprintf("pi_%d", g.next)
	intent := &stripe.PaymentIntent{
		ID:           id,
		Amount:       amountMinor,
		Currency:     currency,
		ClientSecret: id + "_secret",
		RawStatus:    "requires_payment_method",
		Metadata:     metadata,
	}
	g.intents[id] = intent
	copied := *intent
	return &copied, nil
}

func (g *fakeGateway) GetPaymentIntent(_ context.Context, intentID string) (*stripe.PaymentIntent, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.lookups++
	if g.getErr != nil {
		return nil, g.getErr
	}
	intent, ok := g.intents[intentID]
	if !ok {
		return nil, fmt.Errorf("no such payment_intent: %s", intentID)
	}
	copied := *intent
	return &copied, nil
}

func (g *fakeGateway) CancelPaymentIntent(_ context.Context, intentID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.cancelled = append(g.cancelled, intentID)
	if intent, ok := g.intents[intentID]; ok {
		intent.RawStatus = "canceled"
	}
	return nil
}

func (g *fakeGateway) succeed(intentID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.intents[intentID].RawStatus = "succeeded"
}

type sent struct {
	to   string
	kind notification.Kind
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []sent
	err  error
}

func (n *fakeNotifier) Notify(_ context.Context, recipientID uuid.UUID, msg notification.Message) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sent{to: recipientID.String(), kind: msg.Kind})
	return n.err
}

func (n *fakeNotifier) NotifyMany(ctx context.Context, recipients []uuid.UUID, msg notification.Message) error {
	for _, id := range recipients {
		_ = n.Notify(ctx, id, msg)
	}
	return n.err
}

func (n *fakeNotifier) NotifyRole(_ context.Context, role types.UserType, msg notification.Message) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sent{to: "role:" + string(role), kind: msg.Kind})
	return n.err
}

func (n *fakeNotifier) kinds() []sent {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]sent(nil), n.sent...)
}

type fixture struct {
	db       *gorm.DB
	gateway  *fakeGateway
	notifier *fakeNotifier
	engine   *Engine
	course   course.Course
}

func newFixture(t *testing.T) fixture {
	t.Helper()

	db := testutil.NewDB(t, &course.Course{}, &enrollment.Enrollment{}, &WebhookEvent{})
	c, err := course.Create(db, course.CreateInput{
		LecturerID:  uuid.New(),
		Title:       "Distributed Systems",
		Description: "Consensus and replication",
		Price:       types.NewMoney(9.99),
	})
	require.NoError(t, err)
	c, err = course.SetStatus(db, c.ID, moderation.StateApproved, nil)
	require.NoError(t, err)

	gateway := newFakeGateway()
	notifier := &fakeNotifier{}
	return fixture{
		db:       db,
		gateway:  gateway,
		notifier: notifier,
		engine:   NewEngine(db, gateway, notifier, testutil.Logger(), "inr"),
		course:   c,
	}
}

func TestCreateIntent(t *testing.T) {
	f := newFixture(t)
	studentID := uuid.New()

	intent, err := f.engine.CreateIntent(context.Background(), studentID, f.course.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(999), intent.AmountMinor)
	assert.Equal(t, "inr", intent.Currency)
	assert.Equal(t, "pi_1_secret", intent.ClientSecret)
	assert.Equal(t, int64(200), intent.Breakdown.AdminShare)
	assert.Equal(t, int64(799), intent.Breakdown.LecturerShare)

	row, err := enrollment.GetByIntentRef(f.db, intent.IntentRef)
	require.NoError(t, err)
	assert.Equal(t, types.PaymentStatusPending, row.PaymentStatus)
	assert.Equal(t, studentID, row.StudentID)
	assert.Nil(t, row.AdminShare)
}

func TestSecondIntentConflicts(t *testing.T) {
	f := newFixture(t)
	studentID := uuid.New()

	first, err := f.engine.CreateIntent(context.Background(), studentID, f.course.ID)
	require.NoError(t, err)

	_, err = f.engine.CreateIntent(context.Background(), studentID, f.course.ID)
	assert.ErrorIs(t, err, enrollment.ErrAlreadyEnrolled)

	f.gateway.succeed(first.IntentRef)
	_, err = f.engine.Finalize(context.Background(), first.IntentRef, SourceConfirm)
	require.NoError(t, err)

	_, err = f.engine.CreateIntent(context.Background(), studentID, f.course.ID)
	assert.ErrorIs(t, err, enrollment.ErrAlreadyEnrolled)
}

func TestCreateIntentPreconditions(t *testing.T) {
	f := newFixture(t)

	_, err := f.engine.CreateIntent(context.Background(), uuid.New(), uuid.New())
	assert.ErrorIs(t, err, course.ErrCourseNotFound)

	_, err = course.SetStatus(f.db, f.course.ID, moderation.StateRejected, nil)
	require.NoError(t, err)
	_, err = f.engine.CreateIntent(context.Background(), uuid.New(), f.course.ID)
	assert.ErrorIs(t, err, ErrCourseNotVisible)

	_, err = course.SetStatus(f.db, f.course.ID, moderation.StateApproved, nil)
	require.NoError(t, err)
	_, err = f.engine.CreateIntent(context.Background(), f.course.LecturerID, f.course.ID)
	assert.ErrorIs(t, err, ErrOwnCourse)
}

func TestGatewayFailureLeavesNoRow(t *testing.T) {
	f := newFixture(t)
	f.gateway.createErr = errors.New("connection refused")
	studentID := uuid.New()

	_, err := f.engine.CreateIntent(context.Background(), studentID, f.course.ID)
	assert.ErrorIs(t, err, ErrGatewayUnavailable)

	_, err = enrollment.FindForStudentCourse(f.db, studentID, f.course.ID)
	assert.ErrorIs(t, err, enrollment.ErrEnrollmentNotFound)

	f.gateway.createErr = nil
	_, err = f.engine.CreateIntent(context.Background(), studentID, f.course.ID)
	assert.NoError(t, err)
}

func TestFinalizeRequiresSucceededIntent(t *testing.T) {
	f := newFixture(t)
	intent, err := f.engine.CreateIntent(context.Background(), uuid.New(), f.course.ID)
	require.NoError(t, err)

	_, err = f.engine.Finalize(context.Background(), intent.IntentRef, SourceConfirm)
	assert.ErrorIs(t, err, ErrPaymentNotComplete)

	f.gateway.getErr = errors.New("timeout")
	_, err = f.engine.Finalize(context.Background(), intent.IntentRef, SourceWebhook)
	assert.ErrorIs(t, err, ErrGatewayUnavailable)

	row, err := enrollment.GetByIntentRef(f.db, intent.IntentRef)
	require.NoError(t, err)
	assert.Equal(t, types.PaymentStatusPending, row.PaymentStatus)
	assert.Empty(t, f.notifier.kinds())

	_, err = f.engine.Finalize(context.Background(), "pi_unknown", SourceWebhook)
	assert.ErrorIs(t, err, enrollment.ErrEnrollmentNotFound)

	_, err = f.engine.Finalize(context.Background(), intent.IntentRef, Source("manual"))
	assert.ErrorIs(t, err, ErrInvalidSource)
}

func TestFinalizeTwiceNotifiesOnce(t *testing.T) {
	f := newFixture(t)
	studentID := uuid.New()

	intent, err := f.engine.CreateIntent(context.Background(), studentID, f.course.ID)
	require.NoError(t, err)
	f.gateway.succeed(intent.IntentRef)

	fromWebhook, err := f.engine.Finalize(context.Background(), intent.IntentRef, SourceWebhook)
	require.NoError(t, err)
	fromConfirm, err := f.engine.Finalize(context.Background(), intent.IntentRef, SourceConfirm)
	require.NoError(t, err)

	assert.Equal(t, fromWebhook, fromConfirm)
	assert.Equal(t, types.PaymentStatusSettled, fromConfirm.PaymentStatus)
	assert.Equal(t, int64(200), fromConfirm.AdminShare)
	assert.Equal(t, int64(799), fromConfirm.LecturerShare)

	assert.ElementsMatch(t, []sent{
		{to: studentID.String(), kind: notification.KindEnrollmentSuccess},
		{to: f.course.LecturerID.String(), kind: notification.KindNewEnrollment},
		{to: f.course.LecturerID.String(), kind: notification.KindPaymentReceived},
		{to: "role:admin", kind: notification.KindPaymentReceived},
	}, f.notifier.kinds())

	row, err := enrollment.GetByIntentRef(f.db, intent.IntentRef)
	require.NoError(t, err)
	require.NotNil(t, row.SettledVia)
	assert.Equal(t, "webhook", *row.SettledVia)
}

func TestConcurrentFinalizeSettlesOnce(t *testing.T) {
	f := newFixture(t)
	intent, err := f.engine.CreateIntent(context.Background(), uuid.New(), f.course.ID)
	require.NoError(t, err)
	f.gateway.succeed(intent.IntentRef)

	const callers = 6
	results := make([]*Result, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			source := SourceConfirm
			if i%2 == 0 {
				source = SourceWebhook
			}
			result, err := f.engine.Finalize(context.Background(), intent.IntentRef, source)
			assert.NoError(t, err)
			results[i] = result
		}(i)
	}
	wg.Wait()

	for _, r := range results[1:] {
		assert.Equal(t, results[0], r)
	}
	assert.Len(t, f.notifier.kinds(), 4)
}

func TestNotificationFailureDoesNotFailSettlement(t *testing.T) {
	f := newFixture(t)
	f.notifier.err = errors.New("socket down")

	intent, err := f.engine.CreateIntent(context.Background(), uuid.New(), f.course.ID)
	require.NoError(t, err)
	f.gateway.succeed(intent.IntentRef)

	result, err := f.engine.Finalize(context.Background(), intent.IntentRef, SourceConfirm)
	require.NoError(t, err)
	assert.Equal(t, types.PaymentStatusSettled, result.PaymentStatus)
}

func TestReportFailureNotifiesStudent(t *testing.T) {
	f := newFixture(t)
	studentID := uuid.New()
	intent, err := f.engine.CreateIntent(context.Background(), studentID, f.course.ID)
	require.NoError(t, err)

	require.NoError(t, f.engine.ReportFailure(context.Background(), intent.IntentRef, "card declined"))
	assert.Equal(t, []sent{{to: studentID.String(), kind: notification.KindPaymentFailed}}, f.notifier.kinds())

	row, err := enrollment.GetByIntentRef(f.db, intent.IntentRef)
	require.NoError(t, err)
	assert.Equal(t, types.PaymentStatusPending, row.PaymentStatus)
}
