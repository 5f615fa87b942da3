package schedule

import (
	"context"
	"sync"
	"testing"
	"time"

	"vetcare/internal/domain/entity"
	"vetcare/internal/infra/adapter/persistence/memory"
	"vetcare/internal/usecase/notify"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScanVaccinations_FiresArrivedMilestoneOnce(t *testing.T) {
	f := newFixture()
	f.addVaccination(t, "v1", "Rex", 7)   // advance reminder day
	f.addVaccination(t, "v2", "Bella", 0) // due today
	f.addVaccination(t, "v3", "Milo", 30) // nothing arrived yet
	s := f.scheduler()

	stats, err := s.ScanVaccinations(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Notified)
	assert.Equal(t, 0, stats.Failed)

	byPet := map[string]entity.Milestone{}
	for _, r := range f.notifier.vaccinationCalls() {
		byPet[r.PetName] = r.Milestone
		assert.Equal(t, "Rabies", r.VaccineName)
	}
	want := map[string]entity.Milestone{
		"Rex":   entity.MilestoneAdvance,
		"Bella": entity.MilestoneDue,
	}
	if diff := cmp.Diff(want, byPet); diff != "" {
		t.Errorf("reminders mismatch (-want +got):\n%s", diff)
	}

	// the same day again: milestones are claimed, nothing new fires
	_, err = s.ScanVaccinations(context.Background())
	require.NoError(t, err)
	assert.Len(t, f.notifier.vaccinationCalls(), 2)
}

func TestScanVaccinations_LateDiscoveryFiresOnlyLatestMilestone(t *testing.T) {
	f := newFixture()
	f.addVaccination(t, "v1", "Rex", -10)
	s := f.scheduler()

	_, err := s.ScanVaccinations(context.Background())
	require.NoError(t, err)

	calls := f.notifier.vaccinationCalls()
	require.Len(t, calls, 1)
	assert.Equal(t, entity.MilestoneOverdue, calls[0].Milestone)
	assert.Equal(t, "owner-v1", calls[0].UserID)

	ev, ok := f.vaccinations.Get("v1")
	require.True(t, ok)
	assert.ElementsMatch(t, entity.Milestones, ev.FiredMilestones)
}

func TestScanVaccinations_SendsNextMilestoneOnLaterDay(t *testing.T) {
	f := newFixture()
	f.addVaccination(t, "v1", "Rex", 7)
	now := testNow
	s := f.scheduler(WithClock(func() time.Time { return now }))

	_, err := s.ScanVaccinations(context.Background())
	require.NoError(t, err)

	now = testNow.AddDate(0, 0, 6)
	_, err = s.ScanVaccinations(context.Background())
	require.NoError(t, err)

	calls := f.notifier.vaccinationCalls()
	require.Len(t, calls, 2)
	assert.Equal(t, entity.MilestoneAdvance, calls[0].Milestone)
	assert.Equal(t, entity.MilestoneLastCall, calls[1].Milestone)
}

func TestScanVaccinations_ReleasesClaimWhenReminderFails(t *testing.T) {
	f := newFixture()
	f.addVaccination(t, "v1", "Rex", 0)
	f.notifier.vaccinationErr = errSend
	s := f.scheduler()

	stats, err := s.ScanVaccinations(context.Background())
	require.NoError(t, err, "item errors do not fail the scan")
	assert.Equal(t, 1, stats.Failed)

	ev, ok := f.vaccinations.Get("v1")
	require.True(t, ok)
	assert.Empty(t, ev.FiredMilestones)

	// the next tick retries
	f.notifier.mu.Lock()
	f.notifier.vaccinationErr = nil
	f.notifier.mu.Unlock()
	stats, err = s.ScanVaccinations(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Notified)
}

func TestScanVaccinations_InvalidReminderKeepsClaim(t *testing.T) {
	f := newFixture()
	f.addVaccination(t, "v1", "Rex", 0)
	f.notifier.vaccinationErr = &entity.ValidationError{Field: "user_id", Message: "must not be empty"}
	attempts := 0
	f.notifier.onVaccination = func(notify.VaccinationReminder) { attempts++ }
	s := f.scheduler()

	stats, err := s.ScanVaccinations(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Failed)

	ev, ok := f.vaccinations.Get("v1")
	require.True(t, ok)
	assert.Equal(t, []entity.Milestone{entity.MilestoneDue}, ev.FiredMilestones)

	stats, err = s.ScanVaccinations(context.Background())
	require.NoError(t, err)
	assert.Zero(t, stats.Failed)
	assert.Equal(t, 1, attempts)
}

func TestScanVaccinations_PanicIsContainedAndRolledBack(t *testing.T) {
	f := newFixture()
	f.addVaccination(t, "v1", "Rex", 0)
	f.addVaccination(t, "v2", "Bella", 0)
	f.notifier.onVaccination = func(r notify.VaccinationReminder) {
		if r.PetName == "Rex" {
			panic("template exploded")
		}
	}
	s := f.scheduler()

	stats, err := s.ScanVaccinations(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Notified)
	assert.Equal(t, 1, stats.Failed)

	rex, _ := f.vaccinations.Get("v1")
	assert.Empty(t, rex.FiredMilestones)
	bella, _ := f.vaccinations.Get("v2")
	assert.Equal(t, []entity.Milestone{entity.MilestoneDue}, bella.FiredMilestones)
}

func TestScanFeedingPlans(t *testing.T) {
	f := newFixture()
	f.addPlan(t, "p7", 7, false)
	f.addPlan(t, "p1", 1, false)
	f.addPlan(t, "p5", 5, false)
	f.addPlan(t, "sent", 7, true)
	s := f.scheduler()

	stats, err := s.ScanFeedingPlans(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ScanStats{Scanned: 4, Notified: 2, Skipped: 2}, stats)

	got := map[string]int{}
	for _, r := range f.notifier.depletionCalls() {
		got[r.UserID] = r.DaysLeft
		assert.Equal(t, "Kibble", r.ProductName)
		assert.InDelta(t, 175, r.DailyGrams, 0.001)
	}
	assert.Equal(t, map[string]int{"owner-p7": 7, "owner-p1": 1}, got)

	for _, id := range []string{"p7", "p1"} {
		plan, err := f.feeding.Get(context.Background(), id)
		require.NoError(t, err)
		assert.True(t, plan.NotificationSent, id)
	}
	plan, err := f.feeding.Get(context.Background(), "p5")
	require.NoError(t, err)
	assert.False(t, plan.NotificationSent)
}

func TestScanFeedingPlans_NotifiedPlanNeverDispatched(t *testing.T) {
	f := newFixture()
	f.addPlan(t, "p1", 1, true)
	s := f.scheduler()

	for i := 0; i < 3; i++ {
		_, err := s.ScanFeedingPlans(context.Background())
		require.NoError(t, err)
	}
	assert.Empty(t, f.notifier.depletionCalls())
}

func TestScanFeedingPlans_ClearsGuardWhenReminderFails(t *testing.T) {
	f := newFixture()
	f.addPlan(t, "p7", 7, false)
	f.notifier.depletionErr = errSend
	s := f.scheduler()

	stats, err := s.ScanFeedingPlans(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Failed)

	plan, err := f.feeding.Get(context.Background(), "p7")
	require.NoError(t, err)
	assert.False(t, plan.NotificationSent)
}

func TestScanFeedingPlans_InvalidReminderKeepsGuard(t *testing.T) {
	f := newFixture()
	f.addPlan(t, "p7", 7, false)
	f.notifier.depletionErr = &entity.ValidationError{Field: "title", Message: "must not be empty"}
	s := f.scheduler()

	stats, err := s.ScanFeedingPlans(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Failed)

	plan, err := f.feeding.Get(context.Background(), "p7")
	require.NoError(t, err)
	assert.True(t, plan.NotificationSent)

	stats, err = s.ScanFeedingPlans(context.Background())
	require.NoError(t, err)
	assert.Zero(t, stats.Failed)
	assert.Zero(t, stats.Notified)
	plan, err = f.feeding.Get(context.Background(), "p7")
	require.NoError(t, err)
	assert.True(t, plan.NotificationSent)
}

func TestScanPending_DispatchesDueRecordsOnly(t *testing.T) {
	f := newFixture()
	future := testNow.Add(time.Hour)
	past := testNow.Add(-time.Hour)
	for _, n := range []*entity.Notification{
		{ID: "due", UserID: "u", Title: "t", Channels: []entity.ChannelKind{entity.ChannelInApp}, Status: entity.StatusPending, CreatedAt: past},
		{ID: "scheduled-past", UserID: "u", Title: "t", Channels: []entity.ChannelKind{entity.ChannelInApp}, Status: entity.StatusPending, CreatedAt: past, ScheduledFor: &past},
		{ID: "future", UserID: "u", Title: "t", Channels: []entity.ChannelKind{entity.ChannelInApp}, Status: entity.StatusPending, CreatedAt: past, ScheduledFor: &future},
		{ID: "sent", UserID: "u", Title: "t", Channels: []entity.ChannelKind{entity.ChannelInApp}, Status: entity.StatusSent, CreatedAt: past},
	} {
		require.NoError(t, f.notifications.Create(context.Background(), n))
	}
	s := f.scheduler()

	stats, err := s.ScanPending(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Notified)
	assert.ElementsMatch(t, []string{"due", "scheduled-past"}, f.notifier.dispatchedIDs())
}

func TestRunOnce_OverlappingTickIsSkipped(t *testing.T) {
	f := newFixture()
	f.addVaccination(t, "v1", "Rex", 0)
	entered := make(chan struct{})
	release := make(chan struct{})
	f.notifier.onVaccination = func(notify.VaccinationReminder) {
		close(entered)
		<-release
	}
	s := f.scheduler()

	done := make(chan error, 1)
	go func() { done <- s.RunOnce(context.Background()) }()
	<-entered

	assert.ErrorIs(t, s.RunOnce(context.Background()), ErrTickInProgress)
	_, err := s.ScanFeedingPlans(context.Background())
	assert.ErrorIs(t, err, ErrTickInProgress)
	assert.Equal(t, 2, f.observer.skippedTicks())

	close(release)
	require.NoError(t, <-done)
	assert.Len(t, f.notifier.vaccinationCalls(), 1)
}

func TestRunOnce_ReportsEveryScan(t *testing.T) {
	f := newFixture()
	f.addVaccination(t, "v1", "Rex", 0)
	f.addPlan(t, "p7", 7, false)
	s := f.scheduler()

	require.NoError(t, s.RunOnce(context.Background()))
	assert.Equal(t, 1, f.observer.stats(ScanVaccinationsName).Notified)
	assert.Equal(t, 1, f.observer.stats(ScanFeedingName).Notified)
	assert.Equal(t, ScanStats{}, f.observer.stats(ScanPendingName))
}

func TestSchedulersSharingStoreSendOnce(t *testing.T) {
	f := newFixture()
	for i, pet := range []string{"Rex", "Bella", "Milo", "Luna", "Max"} {
		f.addVaccination(t, string(rune('a'+i)), pet, 0)
		f.addPlan(t, pet, 7, false)
	}

	schedulers := []*Scheduler{f.scheduler(), f.scheduler(), f.scheduler()}
	var wg sync.WaitGroup
	for _, s := range schedulers {
		wg.Add(1)
		go func(s *Scheduler) {
			defer wg.Done()
			assert.NoError(t, s.RunOnce(context.Background()))
		}(s)
	}
	wg.Wait()

	assert.Len(t, f.notifier.vaccinationCalls(), 5)
	assert.Len(t, f.notifier.depletionCalls(), 5)
}

func TestStartStop(t *testing.T) {
	f := newFixture()
	f.addVaccination(t, "v1", "Rex", 0)
	s := f.scheduler(WithSchedule("@every 1s"))

	require.NoError(t, s.Start())
	assert.ErrorIs(t, s.Start(), ErrAlreadyStarted)

	require.Eventually(t, func() bool {
		return len(f.notifier.vaccinationCalls()) == 1
	}, 5*time.Second, 50*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, s.Stop(ctx))
	assert.ErrorIs(t, s.Stop(ctx), ErrNotStarted)
}

func TestStart_InvalidSchedule(t *testing.T) {
	s := newFixture().scheduler(WithSchedule("every hour"))
	err := s.Start()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid schedule")
	assert.ErrorIs(t, s.Stop(context.Background()), ErrNotStarted)
}

// acceptingChannel accepts every message and counts them.
type acceptingChannel struct {
	kind entity.ChannelKind
	mu   sync.Mutex
	sent []string
}

func (c *acceptingChannel) Kind() entity.ChannelKind { return c.kind }

func (c *acceptingChannel) Send(_ context.Context, userID, title, _ string, _ entity.Meta) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, userID+": "+title)
	return true
}

func (c *acceptingChannel) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sent)
}

func TestTickWithNotificationService(t *testing.T) {
	vaccinations := memory.NewVaccinationRepo()
	feeding := memory.NewFeedingPlanRepo()
	notifications := memory.NewNotificationRepo()

	email := &acceptingChannel{kind: entity.ChannelEmail}
	registry, err := notify.NewRegistry(email)
	require.NoError(t, err)
	clock := func() time.Time { return testNow }
	svc := notify.NewService(notifications, registry, notify.WithClock(clock), notify.WithStoreRetry(fastRetry()))

	f := &fixture{vaccinations: vaccinations, feeding: feeding}
	f.addVaccination(t, "v1", "Rex", 7)
	f.addPlan(t, "p1", 1, false)

	s := New(vaccinations, feeding, notifications, svc, WithClock(clock), WithStoreRetry(fastRetry()))
	require.NoError(t, s.RunOnce(context.Background()))
	require.NoError(t, s.RunOnce(context.Background()))

	// CHAT is not registered, so EMAIL accepts both reminders exactly once
	assert.Equal(t, 2, email.count())
	due, err := notifications.ListDue(context.Background(), testNow, 10)
	require.NoError(t, err)
	assert.Empty(t, due)
}

// gatedChannel holds its first Send until the gate opens and lets later
// sends through immediately.
type gatedChannel struct {
	kind    entity.ChannelKind
	entered chan struct{}
	gate    chan struct{}

	mu    sync.Mutex
	calls int
}

func (c *gatedChannel) Kind() entity.ChannelKind { return c.kind }

func (c *gatedChannel) Send(ctx context.Context, _, _, _ string, _ entity.Meta) bool {
	c.mu.Lock()
	c.calls++
	first := c.calls == 1
	c.mu.Unlock()
	if !first {
		return true
	}
	close(c.entered)
	select {
	case <-c.gate:
		return true
	case <-ctx.Done():
		return false
	}
}

func (c *gatedChannel) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

func TestScanPending_SkipsRecordMidSend(t *testing.T) {
	vaccinations := memory.NewVaccinationRepo()
	feeding := memory.NewFeedingPlanRepo()
	notifications := memory.NewNotificationRepo()

	inApp := &gatedChannel{kind: entity.ChannelInApp, entered: make(chan struct{}), gate: make(chan struct{})}
	registry, err := notify.NewRegistry(inApp)
	require.NoError(t, err)
	clock := func() time.Time { return testNow }
	svc := notify.NewService(notifications, registry,
		notify.WithClock(clock),
		notify.WithStoreRetry(fastRetry()),
		notify.WithSendTimeout(5*time.Second))
	s := New(vaccinations, feeding, notifications, svc, WithClock(clock), WithStoreRetry(fastRetry()))

	type result struct {
		n   *entity.Notification
		err error
	}
	done := make(chan result, 1)
	go func() {
		n, err := svc.Notify(context.Background(), "owner-1", "Order shipped", "", notify.Options{
			Channels: []entity.ChannelKind{entity.ChannelInApp},
		})
		done <- result{n, err}
	}()

	select {
	case <-inApp.entered:
	case <-time.After(5 * time.Second):
		t.Fatal("send never started")
	}

	stats, err := s.ScanPending(context.Background())
	require.NoError(t, err)
	assert.Zero(t, stats.Notified)

	close(inApp.gate)
	res := <-done
	require.NoError(t, res.err)
	assert.Equal(t, entity.StatusSent, res.n.Status)
	assert.Equal(t, 1, inApp.count())
}
