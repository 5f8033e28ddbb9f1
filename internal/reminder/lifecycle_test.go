package reminder

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/daheeyun/haruplan/internal/eventbus"
	"github.com/daheeyun/haruplan/internal/models"
	"github.com/daheeyun/haruplan/internal/occurrence"
)

var testNow = time.Date(2024, time.March, 15, 12, 0, 0, 0, time.UTC)

type fakeStore struct {
	mu   sync.Mutex
	seq  int64
	rows map[int64]*models.Reminder
}

func newFakeStore() *fakeStore {
	return &fakeStore{rows: make(map[int64]*models.Reminder)}
}

func (f *fakeStore) Create(_ context.Context, r *models.Reminder) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	cp := *r
	cp.ReminderID = f.seq
	cp.CreatedAt = testNow
	f.rows[cp.ReminderID] = &cp
	r.ReminderID = cp.ReminderID
	return nil
}

func (f *fakeStore) Update(_ context.Context, r *models.Reminder) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *r
	f.rows[cp.ReminderID] = &cp
	return nil
}

func (f *fakeStore) FindCurrentByTarget(_ context.Context, targetType models.TargetType, targetID int64) (*models.Reminder, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.rows {
		if r.TargetType == targetType && r.TargetID == targetID && r.LifecycleStatus != models.LifecycleTerminated {
			cp := *r
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) FindExpired(_ context.Context, asOf time.Time) ([]*models.Reminder, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Reminder
	for _, r := range f.rows {
		if r.LifecycleStatus != models.LifecycleTerminated && r.OccurrenceTime.Before(asOf) {
			cp := *r
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeStore) FindDueActive(_ context.Context, by time.Time) ([]*models.Reminder, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Reminder
	for _, r := range f.rows {
		if r.LifecycleStatus == models.LifecycleActive &&
			r.InteractionStatus == models.InteractionPending &&
			!r.OccurrenceTime.After(by) {
			cp := *r
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeStore) TerminateByTarget(_ context.Context, targetType models.TargetType, targetID int64, from time.Time, scope models.DeletionScope) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, r := range f.rows {
		if r.TargetType != targetType || r.TargetID != targetID || r.LifecycleStatus == models.LifecycleTerminated {
			continue
		}
		switch {
		case from.IsZero():
		case scope == models.ScopeThisOnly:
			if !r.OccurrenceTime.Equal(from) {
				continue
			}
		default:
			if r.OccurrenceTime.Before(from) {
				continue
			}
		}
		r.LifecycleStatus = models.LifecycleTerminated
		n++
	}
	return n, nil
}

func (f *fakeStore) DeleteTerminated(context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for id, r := range f.rows {
		if r.LifecycleStatus == models.LifecycleTerminated {
			delete(f.rows, id)
			n++
		}
	}
	return n, nil
}

func (f *fakeStore) all() []*models.Reminder {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*models.Reminder, 0, len(f.rows))
	for _, r := range f.rows {
		cp := *r
		out = append(out, &cp)
	}
	return out
}

func (f *fakeStore) byTarget(targetType models.TargetType, targetID int64) *models.Reminder {
	r, _ := f.FindCurrentByTarget(context.Background(), targetType, targetID)
	return r
}

type fakeSource struct {
	mu      sync.Mutex
	results map[int64]occurrence.Result
}

func newFakeSource() *fakeSource {
	return &fakeSource{results: make(map[int64]occurrence.Result)}
}

func (f *fakeSource) set(targetID int64, res occurrence.Result) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.results[targetID] = res
}

func (f *fakeSource) CalculateNextOccurrence(_ context.Context, targetID int64, _ time.Time) (occurrence.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.results[targetID], nil
}

type fakeNotifier struct {
	mu   sync.Mutex
	msgs []string
}

func (f *fakeNotifier) Notify(_ context.Context, _ int64, message string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.msgs = append(f.msgs, message)
	return nil
}

func (f *fakeNotifier) all() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.msgs))
	copy(out, f.msgs)
	return out
}

func newTestManager(t *testing.T) (*Manager, *fakeStore, *fakeSource, *fakeSource, *fakeNotifier) {
	t.Helper()
	store := newFakeStore()
	events := newFakeSource()
	todos := newFakeSource()
	notifier := &fakeNotifier{}
	m := NewManager(store, occurrence.NewProvider(events, todos), notifier, zap.NewNop())
	m.now = func() time.Time { return testNow }
	return m, store, events, todos, notifier
}

func planChanged(targetID int64, occ time.Time) eventbus.PlanChanged {
	return eventbus.PlanChanged{
		EventID:        targetID,
		MemberID:       7,
		Title:          "치과 예약",
		OccurrenceTime: occ,
		TargetType:     models.TargetEvent,
	}
}

func TestPlanChangedCreatesActiveReminder(t *testing.T) {
	m, store, _, _, _ := newTestManager(t)

	err := m.onPlanChanged(context.Background(), planChanged(1, testNow.Add(2*time.Hour)))
	require.NoError(t, err)

	got := store.byTarget(models.TargetEvent, 1)
	require.NotNil(t, got)
	assert.Equal(t, models.LifecycleActive, got.LifecycleStatus)
	assert.Equal(t, models.InteractionPending, got.InteractionStatus)
	assert.Equal(t, "치과 예약", got.Title)
	assert.True(t, got.OccurrenceTime.Equal(testNow.Add(2*time.Hour)))
}

func TestPlanChangedBeyondWindowIsInactive(t *testing.T) {
	m, store, _, _, _ := newTestManager(t)

	err := m.onPlanChanged(context.Background(), planChanged(1, testNow.Add(48*time.Hour)))
	require.NoError(t, err)

	got := store.byTarget(models.TargetEvent, 1)
	require.NotNil(t, got)
	assert.Equal(t, models.LifecycleInactive, got.LifecycleStatus)
}

func TestPlanChangedUpdatesExistingReminder(t *testing.T) {
	m, store, _, _, _ := newTestManager(t)
	require.NoError(t, m.onPlanChanged(context.Background(), planChanged(1, testNow.Add(48*time.Hour))))

	ev := planChanged(1, testNow.Add(3*time.Hour))
	ev.Title = "치과 예약 (변경)"
	require.NoError(t, m.onPlanChanged(context.Background(), ev))

	require.Len(t, store.all(), 1, "one target keeps a single current reminder")
	got := store.byTarget(models.TargetEvent, 1)
	assert.Equal(t, "치과 예약 (변경)", got.Title)
	assert.Equal(t, models.LifecycleActive, got.LifecycleStatus)
	assert.True(t, got.OccurrenceTime.Equal(testNow.Add(3*time.Hour)))
}

func TestPlanChangedStaleOccurrenceIsReresolved(t *testing.T) {
	m, store, events, _, _ := newTestManager(t)
	events.set(1, occurrence.Result{HasNext: true, NextTime: testNow.Add(3 * time.Hour)})

	err := m.onPlanChanged(context.Background(), planChanged(1, testNow.Add(-time.Hour)))
	require.NoError(t, err)

	got := store.byTarget(models.TargetEvent, 1)
	require.NotNil(t, got)
	assert.True(t, got.OccurrenceTime.Equal(testNow.Add(3*time.Hour)))
	assert.Equal(t, models.LifecycleActive, got.LifecycleStatus)
}

func TestPlanChangedExhaustedSeriesCreatesNothing(t *testing.T) {
	m, store, _, _, _ := newTestManager(t)

	err := m.onPlanChanged(context.Background(), planChanged(1, testNow.Add(-time.Hour)))
	require.NoError(t, err)
	assert.Empty(t, store.all())
}

func TestRefreshExpiredAdvancesToNextOccurrence(t *testing.T) {
	m, store, events, _, _ := newTestManager(t)
	require.NoError(t, store.Create(context.Background(), &models.Reminder{
		MemberID:          7,
		Title:             "주간 회의",
		OccurrenceTime:    testNow.Add(-time.Hour),
		TargetType:        models.TargetEvent,
		TargetID:          1,
		InteractionStatus: models.InteractionChecked,
		LifecycleStatus:   models.LifecycleActive,
	}))
	events.set(1, occurrence.Result{HasNext: true, NextTime: testNow.Add(7 * 24 * time.Hour)})

	require.NoError(t, m.RefreshExpired(context.Background()))

	got := store.byTarget(models.TargetEvent, 1)
	require.NotNil(t, got)
	assert.True(t, got.OccurrenceTime.Equal(testNow.Add(7*24*time.Hour)))
	assert.Equal(t, models.LifecycleInactive, got.LifecycleStatus)
	assert.Equal(t, models.InteractionPending, got.InteractionStatus, "interaction resets for the new instance")
}

func TestRefreshExpiredTerminatesExhaustedSeries(t *testing.T) {
	m, store, _, _, _ := newTestManager(t)
	require.NoError(t, store.Create(context.Background(), &models.Reminder{
		MemberID:          7,
		Title:             "지난 일정",
		OccurrenceTime:    testNow.Add(-time.Hour),
		TargetType:        models.TargetEvent,
		TargetID:          1,
		InteractionStatus: models.InteractionPending,
		LifecycleStatus:   models.LifecycleActive,
	}))

	require.NoError(t, m.RefreshExpired(context.Background()))
	require.Len(t, store.all(), 1)
	assert.Equal(t, models.LifecycleTerminated, store.all()[0].LifecycleStatus)

	require.NoError(t, m.Cleanup(context.Background()))
	assert.Empty(t, store.all(), "a terminated reminder never resurfaces")
}

func TestTerminatedIsAbsorbing(t *testing.T) {
	for _, to := range []models.LifecycleStatus{
		models.LifecycleActive, models.LifecycleInactive, models.LifecycleTerminated,
	} {
		assert.False(t, models.LifecycleTerminated.CanTransitionTo(to))
	}
}

func TestReminderDeletedScopes(t *testing.T) {
	m, store, _, _, _ := newTestManager(t)
	occ := testNow.Add(2 * time.Hour)
	require.NoError(t, store.Create(context.Background(), &models.Reminder{
		MemberID: 7, Title: "회의", OccurrenceTime: occ,
		TargetType: models.TargetEvent, TargetID: 1,
		InteractionStatus: models.InteractionPending,
		LifecycleStatus:   models.LifecycleActive,
	}))

	// A single-instance delete of some other occurrence leaves it alone.
	err := m.onReminderDeleted(context.Background(), eventbus.ReminderDeleted{
		MemberID: 7, TargetID: 1, TargetType: models.TargetEvent,
		OccurrenceTime: occ.Add(7 * 24 * time.Hour),
		DeletedType:    models.ScopeThisOnly,
	})
	require.NoError(t, err)
	require.NotNil(t, store.byTarget(models.TargetEvent, 1))

	// Deleting this-and-following from an earlier point takes it down.
	err = m.onReminderDeleted(context.Background(), eventbus.ReminderDeleted{
		MemberID: 7, TargetID: 1, TargetType: models.TargetEvent,
		OccurrenceTime: occ.Add(-time.Minute),
		DeletedType:    models.ScopeThisAndFollowing,
	})
	require.NoError(t, err)
	assert.Nil(t, store.byTarget(models.TargetEvent, 1))
}

func TestExceptionOnLaterInstanceLeavesReminder(t *testing.T) {
	m, store, _, _, _ := newTestManager(t)
	occ := testNow.Add(2 * time.Hour)
	require.NoError(t, store.Create(context.Background(), &models.Reminder{
		MemberID: 7, Title: "주간 회의", OccurrenceTime: occ,
		TargetType: models.TargetEvent, TargetID: 1,
		InteractionStatus: models.InteractionPending,
		LifecycleStatus:   models.LifecycleActive,
	}))

	err := m.onExceptionChanged(context.Background(), eventbus.RecurrenceExceptionChanged{
		EventID: 1, MemberID: 7, Title: "주간 회의",
		TargetType:     models.TargetEvent,
		OccurrenceTime: occ.Add(7 * 24 * time.Hour),
		IsRecurring:    true,
		ChangeType:     models.ExceptionDeleted,
	})
	require.NoError(t, err)

	got := store.byTarget(models.TargetEvent, 1)
	require.NotNil(t, got)
	assert.True(t, got.OccurrenceTime.Equal(occ))
}

func TestExceptionOnCurrentInstanceRederives(t *testing.T) {
	m, store, events, _, _ := newTestManager(t)
	occ := testNow.Add(2 * time.Hour)
	require.NoError(t, store.Create(context.Background(), &models.Reminder{
		MemberID: 7, Title: "주간 회의", OccurrenceTime: occ,
		TargetType: models.TargetEvent, TargetID: 1,
		InteractionStatus: models.InteractionPending,
		LifecycleStatus:   models.LifecycleActive,
	}))
	events.set(1, occurrence.Result{HasNext: true, NextTime: occ.Add(7 * 24 * time.Hour)})

	err := m.onExceptionChanged(context.Background(), eventbus.RecurrenceExceptionChanged{
		EventID: 1, MemberID: 7, Title: "주간 회의",
		TargetType:     models.TargetEvent,
		OccurrenceTime: occ,
		IsRecurring:    true,
		ChangeType:     models.ExceptionDeleted,
	})
	require.NoError(t, err)

	got := store.byTarget(models.TargetEvent, 1)
	require.NotNil(t, got, "the series continues past the removed instance")
	assert.True(t, got.OccurrenceTime.Equal(occ.Add(7*24*time.Hour)))
}

func TestNotifyDueComposesMessages(t *testing.T) {
	m, store, _, _, notifier := newTestManager(t)
	require.NoError(t, store.Create(context.Background(), &models.Reminder{
		MemberID: 7, Title: "회의", OccurrenceTime: testNow.Add(30 * time.Minute),
		TargetType: models.TargetEvent, TargetID: 1,
		InteractionStatus: models.InteractionPending,
		LifecycleStatus:   models.LifecycleActive,
	}))
	require.NoError(t, store.Create(context.Background(), &models.Reminder{
		MemberID: 7, Title: "보고서", OccurrenceTime: testNow.Add(3 * time.Hour),
		TargetType: models.TargetTodo, TargetID: 2,
		InteractionStatus: models.InteractionPending,
		LifecycleStatus:   models.LifecycleActive,
	}))
	// Far-future INACTIVE rows never fire.
	require.NoError(t, store.Create(context.Background(), &models.Reminder{
		MemberID: 7, Title: "다음 달 일정", OccurrenceTime: testNow.Add(40 * 24 * time.Hour),
		TargetType: models.TargetEvent, TargetID: 3,
		InteractionStatus: models.InteractionPending,
		LifecycleStatus:   models.LifecycleInactive,
	}))

	require.NoError(t, m.NotifyDue(context.Background()))

	got := notifier.all()
	require.Len(t, got, 2)
	assert.Contains(t, got, "30분 뒤 '회의' 일정이 시작돼요")
	assert.Contains(t, got, "3시간 뒤 '보고서' 마감이에요")
}
