package reminder

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/skoret/simcard-bot/internal/status"
	"github.com/skoret/simcard-bot/internal/storage"
)

var now = time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

type recordingBroadcaster struct {
	mu       sync.Mutex
	messages []string
	admins   int
}

func (r *recordingBroadcaster) Broadcast(_ context.Context, text string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, text)
	return r.admins
}

func newTestRepo(t *testing.T) *storage.Repository {
	t.Helper()
	repo, err := storage.NewRepository(filepath.Join(t.TempDir(), "reminder_test.db"))
	if err != nil {
		t.Fatalf("open repository: %v", err)
	}
	t.Cleanup(func() { _ = repo.Close() })
	if err := repo.Migrate(context.Background()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return repo
}

func seed(t *testing.T, repo *storage.Repository, number string, chargedDaysAgo int) storage.SimCard {
	t.Helper()
	ctx := context.Background()
	card, err := repo.Insert(ctx, number)
	if err != nil {
		t.Fatalf("Insert %s: %v", number, err)
	}
	if chargedDaysAgo < 0 {
		return *card
	}
	at := now.Add(-time.Duration(chargedDaysAgo) * 24 * time.Hour)
	card, err = repo.MarkCharged(ctx, card.ID, "Alice", at)
	if err != nil {
		t.Fatalf("MarkCharged %s: %v", number, err)
	}
	return *card
}

func newTestScanner(repo *storage.Repository, out Broadcaster, policy status.Policy, clock time.Time) *Scanner {
	s := NewScanner(repo, out, policy)
	s.now = func() time.Time { return clock }
	return s
}

func TestEvaluateDueCriticalSort(t *testing.T) {
	policy := status.Policy{ValidityDays: 180, ReminderThresholdDays: 150}
	at := func(days int) *time.Time {
		v := now.Add(-time.Duration(days) * 24 * time.Hour)
		return &v
	}
	cards := []storage.SimCard{
		{ID: "fresh", Number: "0912-000-0001", LastCharged: at(10)},
		{ID: "never", Number: "0912-000-0002"},
		{ID: "crit", Number: "0912-000-0003", LastCharged: at(160)},
		{ID: "over", Number: "0912-000-0004", LastCharged: at(200)},
		{ID: "warn", Number: "0912-000-0005", LastCharged: at(140)},
	}
	entries := Evaluate(cards, policy, now)
	if len(entries) != len(cards) {
		t.Fatalf("Evaluate returned %d entries", len(entries))
	}

	due := Due(policy, entries)
	ids := map[string]bool{}
	for _, e := range due {
		ids[e.Card.ID] = true
	}
	if len(due) != 3 || !ids["never"] || !ids["crit"] || !ids["over"] {
		t.Fatalf("unexpected due set: %v", ids)
	}

	critical := Critical(due)
	if len(critical) != 1 || critical[0].Card.ID != "crit" {
		t.Fatalf("unexpected critical set: %+v", critical)
	}

	SortByUrgency(entries)
	order := []string{"never", "over", "crit", "warn", "fresh"}
	for i, id := range order {
		if entries[i].Card.ID != id {
			t.Fatalf("position %d: got %s want %s", i, entries[i].Card.ID, id)
		}
	}
}

func TestScan_BroadcastsDueAndCritical(t *testing.T) {
	repo := newTestRepo(t)
	seed(t, repo, "0921-000-0001", -1)  // never charged: due, not critical
	seed(t, repo, "0921-000-0002", 160) // 20 days left: due and critical
	seed(t, repo, "0921-000-0003", 10)  // fresh

	out := &recordingBroadcaster{admins: 2}
	s := newTestScanner(repo, out, status.Policy{ValidityDays: 180, ReminderThresholdDays: 150}, now)

	report, err := s.Scan(context.Background())
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if report.Scanned != 3 || report.Due != 2 || report.Critical != 1 || report.Sent != 4 {
		t.Fatalf("unexpected report: %+v", report)
	}
	if len(out.messages) != 2 {
		t.Fatalf("expected summary and critical broadcasts, got %d", len(out.messages))
	}

	summary := out.messages[0]
	if !strings.Contains(summary, "0921-000-0001") || !strings.Contains(summary, "0921-000-0002") {
		t.Fatalf("summary misses due cards:\n%s", summary)
	}
	if strings.Contains(summary, "0921-000-0003") {
		t.Fatalf("summary lists a fresh card:\n%s", summary)
	}
	if !strings.Contains(summary, "Last charged: Never") || !strings.Contains(summary, "OVERDUE") {
		t.Fatalf("never-charged card must render as Never/OVERDUE:\n%s", summary)
	}

	warning := out.messages[1]
	if !strings.Contains(warning, "0921-000-0002") || !strings.Contains(warning, "<b>20</b>") {
		t.Fatalf("critical message misses the critical card:\n%s", warning)
	}
	if strings.Contains(warning, "0921-000-0001") {
		t.Fatalf("never-charged card is not critical:\n%s", warning)
	}
}

func TestScan_NothingDueSendsNothing(t *testing.T) {
	repo := newTestRepo(t)
	seed(t, repo, "0921-000-0001", 5)

	out := &recordingBroadcaster{admins: 1}
	s := newTestScanner(repo, out, status.Policy{ValidityDays: 180, ReminderThresholdDays: 150}, now)

	report, err := s.Scan(context.Background())
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if report.Due != 0 || report.Sent != 0 || len(out.messages) != 0 {
		t.Fatalf("expected a silent scan, got report=%+v messages=%d", report, len(out.messages))
	}
}

func TestScan_StoreFailureSkipsCycle(t *testing.T) {
	repo := newTestRepo(t)
	seed(t, repo, "0921-000-0001", -1)
	_ = repo.Close()

	out := &recordingBroadcaster{admins: 1}
	s := newTestScanner(repo, out, status.Policy{ValidityDays: 180, ReminderThresholdDays: 150}, now)

	_, err := s.Scan(context.Background())
	if !errors.Is(err, storage.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	if len(out.messages) != 0 {
		t.Fatal("a failed scan must not broadcast")
	}
}

func TestScan_ChargedTenDaysAgoIsGoodAndNotDue(t *testing.T) {
	repo := newTestRepo(t)
	card := seed(t, repo, "0921-123-4567", 10)

	policy := status.Policy{ValidityDays: 90, ReminderThresholdDays: 60}
	st := policy.Evaluate(card.LastCharged, now)
	if st.DaysRemaining != 80 || st.Severity() != status.Good {
		t.Fatalf("unexpected status: %+v severity=%v", st, st.Severity())
	}

	out := &recordingBroadcaster{admins: 1}
	report, err := newTestScanner(repo, out, policy, now).Scan(context.Background())
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if report.Due != 0 || len(out.messages) != 0 {
		t.Fatalf("card must not appear in the due broadcast: %+v", report)
	}
}

func TestDueMessage_ShowsRemainingDays(t *testing.T) {
	last := now.Add(-170 * 24 * time.Hour)
	e := Entry{
		Card:   storage.SimCard{Number: "09120000000", LastCharged: &last},
		Status: status.Status{DaysSinceCharge: 170, DaysRemaining: 10},
	}
	msg := DueMessage([]Entry{e})
	for _, want := range []string{"09120000000", "Days since charge: 170", "Days remaining: 10", last.Format(DateLayout)} {
		if !strings.Contains(msg, want) {
			t.Fatalf("message misses %q:\n%s", want, msg)
		}
	}
}

// blockingBroadcaster holds each broadcast until released and records
// whether the context it got was still live.
type blockingBroadcaster struct {
	entered chan struct{}
	release chan struct{}

	mu         sync.Mutex
	calls      int
	ctxErrs    []error
	noDeadline []bool
}

func newBlockingBroadcaster() *blockingBroadcaster {
	return &blockingBroadcaster{
		entered: make(chan struct{}, 8),
		release: make(chan struct{}),
	}
}

func (b *blockingBroadcaster) Broadcast(ctx context.Context, _ string) int {
	b.entered <- struct{}{}
	<-b.release
	_, hasDeadline := ctx.Deadline()
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls++
	b.ctxErrs = append(b.ctxErrs, ctx.Err())
	b.noDeadline = append(b.noDeadline, !hasDeadline)
	return 1
}

func (b *blockingBroadcaster) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls
}

func TestScan_OverlappingCallsShareOneBroadcast(t *testing.T) {
	repo := newTestRepo(t)
	seed(t, repo, "0921-000-0001", -1)

	out := newBlockingBroadcaster()
	s := newTestScanner(repo, out, status.Policy{ValidityDays: 180, ReminderThresholdDays: 150}, now)

	reports := make(chan Report, 2)
	scan := func() {
		report, err := s.Scan(context.Background())
		if err != nil {
			t.Errorf("Scan: %v", err)
		}
		reports <- report
	}

	go scan()
	<-out.entered
	go scan()
	// the second call has to reach the running flight before it ends
	time.Sleep(100 * time.Millisecond)
	close(out.release)

	for i := 0; i < 2; i++ {
		if r := <-reports; r.Due != 1 || r.Sent != 1 {
			t.Fatalf("unexpected shared report: %+v", r)
		}
	}
	if got := out.count(); got != 1 {
		t.Fatalf("overlapping scans broadcast %d times; want 1", got)
	}

	if _, err := s.Scan(context.Background()); err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if got := out.count(); got != 2 {
		t.Fatalf("back-to-back scans broadcast %d times; want 2", got)
	}
}

func TestScan_IgnoresCallerCancellation(t *testing.T) {
	repo := newTestRepo(t)
	seed(t, repo, "0921-000-0001", -1)

	out := newBlockingBroadcaster()
	s := newTestScanner(repo, out, status.Policy{ValidityDays: 180, ReminderThresholdDays: 150}, now)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := s.Scan(ctx)
		done <- err
	}()

	<-out.entered
	cancel()
	close(out.release)
	if err := <-done; err != nil {
		t.Fatalf("Scan: %v", err)
	}

	out.mu.Lock()
	defer out.mu.Unlock()
	if out.ctxErrs[0] != nil {
		t.Fatalf("broadcast saw the caller's cancellation: %v", out.ctxErrs[0])
	}
	if out.noDeadline[0] {
		t.Fatal("broadcast context must carry the scan deadline")
	}
}
