package lending

import "time"

const (
	// DefaultPenaltyPerDay is charged for every full day a loan is overdue.
	DefaultPenaltyPerDay = 10

	// DefaultLoanPeriod is the time between borrowing a book and its due date.
	DefaultLoanPeriod = 14 * 24 * time.Hour

	day = 24 * time.Hour
)

// DaysLate returns the number of full days that have elapsed since dueAt.
// Partial days never count, and it is zero whenever now is not after dueAt.
func DaysLate(dueAt time.Time, now time.Time) int {
	if !now.After(dueAt) {
		return 0
	}

	return int(now.Sub(dueAt) / day)
}

// CalculatePenalty returns the penalty for returning a book that was due at dueAt at time now.
func CalculatePenalty(dueAt time.Time, now time.Time, penaltyPerDay int) int {
	return DaysLate(dueAt, now) * penaltyPerDay
}
