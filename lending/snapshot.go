package lending

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	jsoniter "github.com/json-iterator/go"
)

const snapshotIndent = "    "

var snapshotJSON = jsoniter.ConfigCompatibleWithStandardLibrary

// Snapshot is the complete persisted state of a library, in its stable JSON layout:
//
//	{"books": [{"book_id": 1, "title": "...", "author": "...", "available": true}],
//	 "borrowers": [{"user_id": 1, "name": "...", "borrowed_books": {"1": "2025-01-31"}}]}
type Snapshot struct {
	Books     []BookRecord     `json:"books"`
	Borrowers []BorrowerRecord `json:"borrowers"`
}

// BookRecord is the persisted form of a Book.
type BookRecord struct {
	BookID    BookID `json:"book_id"`
	Title     string `json:"title"`
	Author    string `json:"author"`
	Available bool   `json:"available"`
}

// BorrowerRecord is the persisted form of a Borrower.
type BorrowerRecord struct {
	UserID        BorrowerID         `json:"user_id"`
	Name          string             `json:"name"`
	BorrowedBooks map[BookID]DueDate `json:"borrowed_books"`
}

// DueDate is a due date truncated to its calendar day, as persisted.
// The time of day is always midnight UTC.
type DueDate struct {
	time.Time
}

// DueDateOf truncates t to the UTC calendar day it falls on, whatever the location of t.
func DueDateOf(t time.Time) DueDate {
	y, m, d := t.UTC().Date()
	return DueDate{Time: time.Date(y, m, d, 0, 0, 0, 0, time.UTC)}
}

// String returns the due date in the YYYY-MM-DD format.
func (d DueDate) String() string {
	return d.Format(DateLayout)
}

// MarshalJSON writes a quoted YYYY-MM-DD string.
func (d DueDate) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Quote(d.String())), nil
}

// UnmarshalJSON parses a quoted YYYY-MM-DD string.
func (d *DueDate) UnmarshalJSON(b []byte) error {
	s, err := strconv.Unquote(string(b))
	if err != nil {
		return err
	}

	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return err
	}

	*d = DueDate{Time: t}

	return nil
}

// EmptySnapshot returns a snapshot without books and borrowers.
func EmptySnapshot() Snapshot {
	return Snapshot{
		Books:     make([]BookRecord, 0),
		Borrowers: make([]BorrowerRecord, 0),
	}
}

// MarshalSnapshot encodes the snapshot as indented JSON.
func MarshalSnapshot(s Snapshot) ([]byte, error) {
	if s.Books == nil {
		s.Books = make([]BookRecord, 0)
	}

	if s.Borrowers == nil {
		s.Borrowers = make([]BorrowerRecord, 0)
	}

	return snapshotJSON.MarshalIndent(s, "", snapshotIndent)
}

// UnmarshalSnapshot decodes JSON produced by MarshalSnapshot (or any compatible writer).
func UnmarshalSnapshot(data []byte) (Snapshot, error) {
	if !snapshotJSON.Valid(data) {
		return Snapshot{}, ErrInvalidSnapshotJSON
	}

	s := EmptySnapshot()
	if err := snapshotJSON.Unmarshal(data, &s); err != nil {
		return Snapshot{}, errors.Join(ErrInvalidSnapshotJSON, err)
	}

	if s.Books == nil {
		s.Books = make([]BookRecord, 0)
	}

	if s.Borrowers == nil {
		s.Borrowers = make([]BorrowerRecord, 0)
	}

	for i := range s.Borrowers {
		if s.Borrowers[i].BorrowedBooks == nil {
			s.Borrowers[i].BorrowedBooks = make(map[BookID]DueDate)
		}
	}

	return s, nil
}

// Validate checks that the snapshot satisfies the lending invariants:
// unique positive IDs, loans only of known books, no book held twice,
// and availability flags that agree with the loans.
func (s Snapshot) Validate() error { //nolint:gocognit // one pass per invariant keeps this readable
	books := make(map[BookID]bool, len(s.Books))

	for _, b := range s.Books {
		if b.BookID <= 0 {
			return errors.Join(ErrInvalidSnapshot, fmt.Errorf("book id %d is not positive", b.BookID))
		}

		if _, seen := books[b.BookID]; seen {
			return errors.Join(ErrInvalidSnapshot, fmt.Errorf("book id %d is not unique", b.BookID))
		}

		books[b.BookID] = b.Available
	}

	borrowers := make(map[BorrowerID]struct{}, len(s.Borrowers))
	holders := make(map[BookID]BorrowerID)

	for _, u := range s.Borrowers {
		if u.UserID <= 0 {
			return errors.Join(ErrInvalidSnapshot, fmt.Errorf("borrower id %d is not positive", u.UserID))
		}

		if _, seen := borrowers[u.UserID]; seen {
			return errors.Join(ErrInvalidSnapshot, fmt.Errorf("borrower id %d is not unique", u.UserID))
		}

		borrowers[u.UserID] = struct{}{}

		for bookID := range u.BorrowedBooks {
			if _, known := books[bookID]; !known {
				return errors.Join(ErrInvalidSnapshot, fmt.Errorf("borrower %d holds unknown book %d", u.UserID, bookID))
			}

			if other, held := holders[bookID]; held {
				return errors.Join(ErrInvalidSnapshot, fmt.Errorf("book %d is held by borrowers %d and %d", bookID, other, u.UserID))
			}

			holders[bookID] = u.UserID
		}
	}

	for bookID, available := range books {
		_, held := holders[bookID]
		if available == held {
			return errors.Join(ErrInvalidSnapshot, fmt.Errorf("book %d has available=%t but held=%t", bookID, available, held))
		}
	}

	return nil
}
