/*
schedule.go - Expansion of weekly slots into dated sessions

PURPOSE:
  GenerateSessions turns the claimed weekly slots of a booking into one
  Schedule per week per slot for months × 4 weeks. It has no side effects
  and takes "now" as an argument, so the same inputs always produce the
  same calendar.

RULES:
  - The first occurrence is the next date on the slot's weekday. If that
    weekday is today and the slot has not started yet, today is used;
    if it already started, the series begins next week.
  - Occurrences of one slot are exactly 7 days apart.
  - Dates are midnight UTC; no holiday or blackout logic.
  - Output is ordered by start time, then slot id.
*/
package booking

import (
	"sort"
	"time"

	"github.com/warp/booking-engine/generic"
)

// FirstOccurrence returns the date (midnight UTC) of the first session of s after now.
func FirstOccurrence(now time.Time, s Slot) time.Time {
	now = now.UTC()
	today := generic.StartOfDay(now)
	days := generic.DaysUntil(now, s.DayOfWeek)
	if days == 0 && !s.StartTime.On(today).After(now) {
		days = 7
	}
	return today.AddDate(0, 0, days)
}

// GenerateSessions returns months × 4 sessions per slot. The returned rows
// carry slot, tutor, date and times; ids and booking fields are left to the caller.
func GenerateSessions(now time.Time, slots []Slot, months int) []Schedule {
	if months < 1 {
		return nil
	}
	weeks := months * WeeksPerMonth
	out := make([]Schedule, 0, weeks*len(slots))
	for _, slot := range slots {
		first := FirstOccurrence(now, slot)
		for w := 0; w < weeks; w++ {
			out = append(out, Schedule{
				SlotID:    slot.ID,
				TutorID:   slot.TutorID,
				Date:      first.AddDate(0, 0, 7*w),
				StartTime: slot.StartTime,
				EndTime:   slot.EndTime,
				Status:    SessionScheduled,
			})
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].StartsAt(), out[j].StartsAt()
		if !a.Equal(b) {
			return a.Before(b)
		}
		return out[i].SlotID < out[j].SlotID
	})
	return out
}
