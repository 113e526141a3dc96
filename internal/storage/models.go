package storage

import (
	"regexp"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// numberPattern accepts 0DDD-DDD-DDDD or 0 followed by ten digits.
var numberPattern = regexp.MustCompile(`^0\d{3}-\d{3}-\d{4}$|^0\d{10}$`)

// ValidNumber reports whether number is a well-formed SIM card number.
func ValidNumber(number string) bool {
	return numberPattern.MatchString(number)
}

// SimCard represents a prepaid SIM card tracked by the bot
type SimCard struct {
	ID          string     `gorm:"primaryKey"`
	Number      string     `gorm:"type:text;not null;uniqueIndex"`
	LastCharged *time.Time // nil if never charged since creation
	ChargedBy   *string    `gorm:"type:text"` // set together with LastCharged
	CreatedAt   time.Time
}

// TableName keeps the table name shared with the hosted database.
func (SimCard) TableName() string { return "sims" }

// BeforeCreate assigns a UUID when the caller did not provide one.
func (s *SimCard) BeforeCreate(*gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	return nil
}

// ChargedByName returns the name of the last charger or an empty string.
func (s *SimCard) ChargedByName() string {
	if s.ChargedBy == nil {
		return ""
	}
	return *s.ChargedBy
}
