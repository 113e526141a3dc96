package reminder

import (
	"sort"
	"time"

	"github.com/skoret/simcard-bot/internal/status"
	"github.com/skoret/simcard-bot/internal/storage"
)

// Entry pairs a card with its status at evaluation time.
type Entry struct {
	Card   storage.SimCard
	Status status.Status
}

// Evaluate computes the status of every card, preserving input order.
func Evaluate(cards []storage.SimCard, policy status.Policy, now time.Time) []Entry {
	entries := make([]Entry, 0, len(cards))
	for _, card := range cards {
		entries = append(entries, Entry{
			Card:   card,
			Status: policy.Evaluate(card.LastCharged, now),
		})
	}
	return entries
}

// Due keeps the entries a reminder should be sent for. The chat view and the
// scheduled scan both go through here.
func Due(policy status.Policy, entries []Entry) []Entry {
	var due []Entry
	for _, e := range entries {
		if policy.IsDue(e.Status) {
			due = append(due, e)
		}
	}
	return due
}

// Critical keeps the entries inside the critical window.
func Critical(entries []Entry) []Entry {
	var critical []Entry
	for _, e := range entries {
		if status.IsCritical(e.Status) {
			critical = append(critical, e)
		}
	}
	return critical
}

// SortByUrgency orders entries by ascending remaining days; never-charged
// cards come first and ties fall back to the number.
func SortByUrgency(entries []Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i].Status.DaysRemaining, entries[j].Status.DaysRemaining
		if a != b {
			return a < b
		}
		return entries[i].Card.Number < entries[j].Card.Number
	})
}
