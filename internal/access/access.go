package access

import (
	"sort"

	"github.com/pkg/errors"
)

// ErrUnauthorized is returned for senders outside the admin allow-list.
var ErrUnauthorized = errors.New("sender is not an authorized administrator")

// Service holds the static admin allow-list. It is immutable after
// construction and safe for concurrent use.
type Service struct {
	admins map[int64]struct{}
	ids    []int64
}

func NewService(adminIDs []int64) *Service {
	admins := make(map[int64]struct{}, len(adminIDs))
	ids := make([]int64, 0, len(adminIDs))
	for _, id := range adminIDs {
		if _, dup := admins[id]; dup {
			continue
		}
		admins[id] = struct{}{}
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return &Service{
		admins: admins,
		ids:    ids,
	}
}

// IsAdmin checks if the Telegram user id is allow-listed
func (s *Service) IsAdmin(userID int64) bool {
	_, ok := s.admins[userID]
	return ok
}

// Authorize returns ErrUnauthorized unless userID is an admin.
func (s *Service) Authorize(userID int64) error {
	if !s.IsAdmin(userID) {
		return errors.Wrapf(ErrUnauthorized, "user %d", userID)
	}
	return nil
}

// Admins returns a copy of the admin ids in ascending order.
func (s *Service) Admins() []int64 {
	out := make([]int64, len(s.ids))
	copy(out, s.ids)
	return out
}
