package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/rs/zerolog/log"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var (
	// ErrNotFound is returned when a lookup by id matches no card.
	ErrNotFound = errors.New("sim card not found")
	// ErrConflict is returned when the number is already stored.
	ErrConflict = errors.New("sim card number already exists")
	// ErrInvalidNumber is returned for numbers that fail format validation.
	ErrInvalidNumber = errors.New("invalid sim card number")
	// ErrUnavailable wraps every backend failure (network, driver, closed pool).
	ErrUnavailable = errors.New("record store unavailable")
)

type Repository struct {
	db *gorm.DB
}

// NewRepository opens the record store. Postgres DSNs go to the hosted
// database, anything else is treated as a SQLite file path.
func NewRepository(dsn string) (*Repository, error) {
	cfg := &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Warn),
		TranslateError: true,
	}

	var dialector gorm.Dialector
	if isPostgresDSN(dsn) {
		log.Info().Msg("using postgres record store")
		dialector = postgres.Open(dsn)
	} else {
		dsn = strings.TrimPrefix(dsn, "file:")
		if dsn == "" {
			dsn = "bot.db"
		}
		if dsn != ":memory:" {
			dir := filepath.Dir(dsn)
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, fmt.Errorf("failed to create database directory '%s': %w", dir, err)
			}
		}
		log.Info().Str("path", dsn).Msg("using sqlite record store")
		dialector = sqlite.Open(dsn)
	}

	db, err := gorm.Open(dialector, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database handle: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	sqlDB.SetMaxOpenConns(10)
	sqlDB.SetConnMaxIdleTime(5 * time.Minute)

	return &Repository{db: db}, nil
}

func isPostgresDSN(dsn string) bool {
	return strings.HasPrefix(dsn, "postgres://") ||
		strings.HasPrefix(dsn, "postgresql://") ||
		strings.Contains(dsn, "host=")
}

func (r *Repository) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// ListAll returns every card ordered by number.
func (r *Repository) ListAll(ctx context.Context) ([]SimCard, error) {
	var cards []SimCard
	if err := r.db.WithContext(ctx).Order("number ASC").Find(&cards).Error; err != nil {
		return nil, unavailable("list sims", err)
	}
	return cards, nil
}

// FindByNumber returns the card with the given number or nil if absent.
func (r *Repository) FindByNumber(ctx context.Context, number string) (*SimCard, error) {
	var card SimCard
	err := r.db.WithContext(ctx).Where("number = ?", number).Take(&card).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, unavailable("find sim by number", err)
	}
	return &card, nil
}

func (r *Repository) FindByID(ctx context.Context, id string) (*SimCard, error) {
	var card SimCard
	err := r.db.WithContext(ctx).Where("id = ?", id).Take(&card).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("sim %s: %w", id, ErrNotFound)
		}
		return nil, unavailable("find sim by id", err)
	}
	return &card, nil
}

// Insert stores a new never-charged card. The unique index on number is the
// authority on duplicates; callers may pre-check but need not.
func (r *Repository) Insert(ctx context.Context, number string) (*SimCard, error) {
	if !ValidNumber(number) {
		return nil, fmt.Errorf("%q: %w", number, ErrInvalidNumber)
	}
	card := &SimCard{Number: number}
	if err := r.db.WithContext(ctx).Create(card).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%q: %w", number, ErrConflict)
		}
		return nil, unavailable("insert sim", err)
	}
	return card, nil
}

// MarkCharged stamps the card as charged at the given time by chargedBy.
func (r *Repository) MarkCharged(ctx context.Context, id, chargedBy string, at time.Time) (*SimCard, error) {
	at = at.UTC()
	res := r.db.WithContext(ctx).
		Model(&SimCard{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"last_charged": at,
			"charged_by":   chargedBy,
		})
	if res.Error != nil {
		return nil, unavailable("mark sim charged", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, fmt.Errorf("sim %s: %w", id, ErrNotFound)
	}
	return r.FindByID(ctx, id)
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrUnavailable, err)
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key value")
}
