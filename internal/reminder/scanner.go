// Package reminder finds SIM cards that need charging and broadcasts the
// reminders to the admins.
package reminder

import (
	"context"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"github.com/skoret/simcard-bot/internal/status"
	"github.com/skoret/simcard-bot/internal/storage"
)

// DateLayout is how charge dates are shown to admins.
const DateLayout = "2006-01-02"

// scanTimeout bounds one cycle, whoever started it.
const scanTimeout = 5 * time.Minute

// Broadcaster delivers a message to every admin and returns how many
// deliveries succeeded. Failures are the broadcaster's to log.
type Broadcaster interface {
	Broadcast(ctx context.Context, text string) int
}

// Report summarizes one scan cycle.
type Report struct {
	Scanned  int `json:"scanned"`
	Due      int `json:"due"`
	Critical int `json:"critical"`
	Sent     int `json:"sent"`
}

type Scanner struct {
	repo   *storage.Repository
	out    Broadcaster
	policy status.Policy
	now    func() time.Time
	group  singleflight.Group
}

func NewScanner(repo *storage.Repository, out Broadcaster, policy status.Policy) *Scanner {
	return &Scanner{
		repo:   repo,
		out:    out,
		policy: policy,
		now:    time.Now,
	}
}

// Scan runs one reminder cycle. Calls that overlap a running cycle wait for
// it and share its report instead of broadcasting a second time. The cycle
// does not inherit the caller's cancellation, so a joined caller always gets
// a complete broadcast.
func (s *Scanner) Scan(ctx context.Context) (Report, error) {
	started := false
	v, err, shared := s.group.Do("scan", func() (interface{}, error) {
		started = true
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), scanTimeout)
		defer cancel()
		return s.scan(ctx)
	})
	if shared && !started {
		log.Debug().Msg("reminder scan joined a cycle already in progress")
	}
	if err != nil {
		return Report{}, err
	}
	return v.(Report), nil
}

func (s *Scanner) scan(ctx context.Context) (Report, error) {
	log.Info().Msg("running reminder scan")

	cards, err := s.repo.ListAll(ctx)
	if err != nil {
		scansTotal.WithLabelValues("failed").Inc()
		return Report{}, errors.Wrap(err, "failed to fetch sims")
	}

	entries := Evaluate(cards, s.policy, s.now())
	due := Due(s.policy, entries)
	critical := Critical(due)
	SortByUrgency(due)
	SortByUrgency(critical)

	report := Report{
		Scanned:  len(entries),
		Due:      len(due),
		Critical: len(critical),
	}
	dueGauge.Set(float64(report.Due))
	criticalGauge.Set(float64(report.Critical))

	if len(due) == 0 {
		scansTotal.WithLabelValues("idle").Inc()
		log.Info().Int("scanned", report.Scanned).Msg("no sims need charging at this time")
		return report, nil
	}

	report.Sent += s.out.Broadcast(ctx, DueMessage(due))
	if len(critical) > 0 {
		report.Sent += s.out.Broadcast(ctx, CriticalMessage(critical))
		log.Info().Int("critical", report.Critical).Msg("sent critical warnings")
	}

	scansTotal.WithLabelValues("sent").Inc()
	log.Info().
		Int("scanned", report.Scanned).
		Int("due", report.Due).
		Int("critical", report.Critical).
		Int("sent", report.Sent).
		Msg("reminder scan completed")
	return report, nil
}

// DueMessage renders the summary broadcast for due cards.
func DueMessage(due []Entry) string {
	var b strings.Builder
	b.WriteString("⚠️ <b>Reminder: SIM cards need charging</b> ⚠️\n\n")
	for _, e := range due {
		fmt.Fprintf(&b, "📱 <b>%s</b>\n", html.EscapeString(e.Card.Number))
		fmt.Fprintf(&b, "Last charged: %s\n", LastChargedText(e.Card))
		if e.Status.Never {
			b.WriteString("Days since charge: Never\n")
		} else {
			fmt.Fprintf(&b, "Days since charge: %d\n", e.Status.DaysSinceCharge)
		}
		if e.Status.DaysRemaining <= 0 {
			b.WriteString("Days remaining: ⚠️ OVERDUE\n\n")
		} else {
			fmt.Fprintf(&b, "Days remaining: %d\n\n", e.Status.DaysRemaining)
		}
	}
	b.WriteString("Use /markcharged to update a SIM's status.")
	return b.String()
}

// CriticalMessage renders the urgent broadcast for cards about to lapse.
func CriticalMessage(critical []Entry) string {
	var b strings.Builder
	b.WriteString("🚨 <b>Warning: urgent charging needed</b> 🚨\n\n")
	b.WriteString("The following SIM cards are close to deactivation and need charging soon:\n\n")
	for _, e := range critical {
		fmt.Fprintf(&b, "📱 <b>%s</b>\n", html.EscapeString(e.Card.Number))
		fmt.Fprintf(&b, "Days remaining: <b>%d</b>\n\n", e.Status.DaysRemaining)
	}
	b.WriteString("Please charge them as soon as possible!")
	return b.String()
}

// LastChargedText formats the last charge date or "Never".
func LastChargedText(card storage.SimCard) string {
	if card.LastCharged == nil {
		return "Never"
	}
	return card.LastCharged.Format(DateLayout)
}
