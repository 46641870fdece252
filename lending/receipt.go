package lending

import (
	"fmt"
	"time"
)

// DateLayout is the calendar date format used in messages and in persisted snapshots.
const DateLayout = "2006-01-02"

// Messenger is implemented by every successful operation result.
type Messenger interface {
	Message() string
}

// LoanReceipt is the result of a successful BorrowBook.
type LoanReceipt struct {
	BorrowerID   BorrowerID
	BookID       BookID
	BorrowerName string
	BookTitle    string
	BorrowedAt   time.Time
	DueAt        time.Time
}

// Message implements Messenger.
func (r LoanReceipt) Message() string {
	return fmt.Sprintf("%s borrowed '%s' (Due: %s)", r.BorrowerName, r.BookTitle, DueDateOf(r.DueAt))
}

// ReturnReceipt is the result of a successful ReturnBook.
type ReturnReceipt struct {
	BorrowerID   BorrowerID
	BookID       BookID
	BorrowerName string
	BookTitle    string
	DueAt        time.Time
	ReturnedAt   time.Time
	DaysLate     int
	Penalty      int
}

// Late reports whether a penalty was charged.
func (r ReturnReceipt) Late() bool {
	return r.Penalty > 0
}

// Message implements Messenger.
func (r ReturnReceipt) Message() string {
	if r.Late() {
		return fmt.Sprintf("Book returned late! Penalty: %d", r.Penalty)
	}

	return "Book returned successfully!"
}

// Message implements Messenger for the result of AddBook.
func (b Book) Message() string {
	return fmt.Sprintf("Book '%s' added successfully!", b.Title)
}

// Message implements Messenger for the result of AddBorrower.
func (b Borrower) Message() string {
	return fmt.Sprintf("Borrower '%s' added successfully!", b.Name)
}

// Outcome converts the result of an Engine operation into the (success, message) pair
// a presentation layer displays verbatim.
func Outcome(result Messenger, err error) (bool, string) {
	if err != nil {
		if failure, ok := AsFailure(err); ok {
			return false, failure.Message
		}

		return false, err.Error()
	}

	return true, result.Message()
}
