package scheduler

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"github.com/skoret/simcard-bot/internal/reminder"
)

const runTimeout = 5 * time.Minute

// Scanner runs one reminder cycle.
type Scanner interface {
	Scan(ctx context.Context) (reminder.Report, error)
}

type Service struct {
	cron    *cron.Cron
	entry   cron.EntryID
	scanner Scanner
	timeout time.Duration
}

// NewService schedules scanner on a standard five-field cron spec evaluated
// in loc.
func NewService(spec string, loc *time.Location, scanner Scanner) (*Service, error) {
	s := &Service{
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithLogger(cronLogger{}),
			cron.WithChain(cron.Recover(cronLogger{})),
		),
		scanner: scanner,
		timeout: runTimeout,
	}
	id, err := s.cron.AddFunc(spec, s.run)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid reminder schedule %q", spec)
	}
	s.entry = id
	return s, nil
}

// Start starts the scheduler
func (s *Service) Start() {
	s.cron.Start()
	log.Info().Time("next_run", s.Next()).Msg("reminder scheduler started")
}

// Stop stops the scheduler and waits for a running scan to finish
func (s *Service) Stop() {
	<-s.cron.Stop().Done()
	log.Info().Msg("reminder scheduler stopped")
}

// Next returns the time of the next scheduled scan, zero if not started.
func (s *Service) Next() time.Time {
	return s.cron.Entry(s.entry).Next
}

func (s *Service) run() {
	log.Info().Msg("running scheduled reminder scan")

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	report, err := s.scanner.Scan(ctx)
	if err != nil {
		log.Error().Err(err).Msg("scheduled reminder scan failed")
		return
	}
	log.Info().Int("due", report.Due).Int("sent", report.Sent).Msg("scheduled reminder scan finished")
}

// cronLogger routes cron's own messages to zerolog.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...interface{}) {
	log.Debug().Fields(keysAndValues).Msg("cron: " + msg)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	log.Error().Err(err).Fields(keysAndValues).Msg("cron: " + msg)
}
