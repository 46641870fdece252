package lending

import (
	"maps"
	"slices"
	"time"
)

// Loans maps the IDs of the books a borrower currently holds to their due times.
type Loans map[BookID]time.Time

// Borrower is a registered patron of the library.
type Borrower struct {
	ID    BorrowerID
	Name  string
	Loans Loans
}

// Holds reports whether the borrower currently holds the given book.
func (b Borrower) Holds(bookID BookID) bool {
	_, ok := b.Loans[bookID]
	return ok
}

// BookIDs returns the IDs of the held books in ascending order.
func (b Borrower) BookIDs() []BookID {
	return slices.Sorted(maps.Keys(b.Loans))
}

// clone returns a deep copy so that callers can never reach engine-owned loan maps.
func (b Borrower) clone() Borrower {
	c := b
	c.Loans = make(Loans, len(b.Loans))
	maps.Copy(c.Loans, b.Loans)

	return c
}

// Loan is one active association between a borrower and a book.
type Loan struct {
	BorrowerID BorrowerID
	BookID     BookID
	DueAt      time.Time
	DaysLate   int
	Penalty    int
}
