package schedule

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"vetcare/internal/domain/entity"
	"vetcare/internal/infra/adapter/persistence/memory"
	"vetcare/internal/resilience/retry"
	"vetcare/internal/usecase/notify"

	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

func fastRetry() retry.Config {
	cfg := retry.StoreConfig()
	cfg.InitialDelay = time.Millisecond
	cfg.MaxDelay = time.Millisecond
	return cfg
}

// fakeNotifier records reminder requests. Hooks let tests inject failures,
// panics and blocking.
type fakeNotifier struct {
	mu           sync.Mutex
	vaccinations []notify.VaccinationReminder
	depletions   []notify.FoodDepletionReminder
	dispatched   []string
	stuck        []*entity.Notification

	vaccinationErr error
	depletionErr   error
	dispatchStatus entity.NotificationStatus
	onVaccination  func(r notify.VaccinationReminder)
}

func (f *fakeNotifier) Dispatch(_ context.Context, id string) (*entity.Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dispatched = append(f.dispatched, id)
	status := f.dispatchStatus
	if status == "" {
		status = entity.StatusSent
	}
	return &entity.Notification{ID: id, Status: status}, nil
}

func (f *fakeNotifier) SendVaccinationReminder(_ context.Context, r notify.VaccinationReminder) (*entity.Notification, error) {
	if f.onVaccination != nil {
		f.onVaccination(r)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.vaccinationErr != nil {
		return nil, f.vaccinationErr
	}
	f.vaccinations = append(f.vaccinations, r)
	return &entity.Notification{ID: "n-" + r.PetName, Status: entity.StatusSent}, nil
}

func (f *fakeNotifier) SendFoodDepletionReminder(_ context.Context, r notify.FoodDepletionReminder) (*entity.Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.depletionErr != nil {
		return nil, f.depletionErr
	}
	f.depletions = append(f.depletions, r)
	return &entity.Notification{ID: "n-" + r.PetName, Status: entity.StatusSent}, nil
}

func (f *fakeNotifier) StuckNotifications(_ context.Context, _ time.Duration) ([]*entity.Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stuck, nil
}

func (f *fakeNotifier) vaccinationCalls() []notify.VaccinationReminder {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]notify.VaccinationReminder(nil), f.vaccinations...)
}

func (f *fakeNotifier) depletionCalls() []notify.FoodDepletionReminder {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]notify.FoodDepletionReminder(nil), f.depletions...)
}

func (f *fakeNotifier) dispatchedIDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.dispatched...)
}

type recordingObserver struct {
	mu      sync.Mutex
	scans   map[string]ScanStats
	errs    map[string]error
	skipped int
}

func newRecordingObserver() *recordingObserver {
	return &recordingObserver{scans: map[string]ScanStats{}, errs: map[string]error{}}
}

func (o *recordingObserver) ObserveScan(scan string, stats ScanStats, _ time.Duration, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.scans[scan] = stats
	o.errs[scan] = err
}

func (o *recordingObserver) ObserveTickSkipped() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.skipped++
}

func (o *recordingObserver) stats(scan string) ScanStats {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.scans[scan]
}

func (o *recordingObserver) skippedTicks() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.skipped
}

type fixture struct {
	vaccinations  *memory.VaccinationRepo
	feeding       *memory.FeedingPlanRepo
	notifications *memory.NotificationRepo
	notifier      *fakeNotifier
	observer      *recordingObserver
}

func newFixture() *fixture {
	return &fixture{
		vaccinations:  memory.NewVaccinationRepo(),
		feeding:       memory.NewFeedingPlanRepo(),
		notifications: memory.NewNotificationRepo(),
		notifier:      &fakeNotifier{},
		observer:      newRecordingObserver(),
	}
}

func (f *fixture) scheduler(opts ...Option) *Scheduler {
	base := []Option{
		WithClock(func() time.Time { return testNow }),
		WithStoreRetry(fastRetry()),
		WithObserver(f.observer),
		WithConcurrency(4),
	}
	return New(f.vaccinations, f.feeding, f.notifications, f.notifier, append(base, opts...)...)
}

// addVaccination stores an event whose next due date is dueInDays from testNow.
func (f *fixture) addVaccination(t *testing.T, id, pet string, dueInDays int) {
	t.Helper()
	require.NoError(t, f.vaccinations.Add(&entity.VaccinationEvent{
		ID:             id,
		ClinicID:       "clinic-1",
		PetID:          "pet-" + id,
		PetName:        pet,
		OwnerID:        "owner-" + id,
		VaccineID:      "rabies",
		VaccineName:    "Rabies",
		AdministeredAt: testNow.AddDate(-1, 0, 0),
		NextDueAt:      testNow.AddDate(0, 0, dueInDays),
	}))
}

// addPlan stores an active plan that runs out daysLeft days after testNow.
func (f *fixture) addPlan(t *testing.T, id string, daysLeft int, notified bool) {
	t.Helper()
	require.NoError(t, f.feeding.Add(&entity.FeedingPlan{
		ID:                    id,
		PetID:                 "pet-" + id,
		PetName:               "Pet " + id,
		OwnerID:               "owner-" + id,
		ProductName:           "Kibble",
		DailyGramsRecommended: 175,
		StartDate:             testNow.AddDate(0, 0, daysLeft-17),
		ExpectedDepletionDate: testNow.AddDate(0, 0, daysLeft),
		EstimatedDaysLeft:     17,
		NotificationSent:      notified,
		Active:                true,
	}))
}

var errSend = errors.New("reminder rejected")
