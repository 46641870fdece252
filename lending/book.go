package lending

// BookID identifies a book in the catalog.
type BookID = int

// BorrowerID identifies a registered borrower.
type BorrowerID = int

// Book is an inventory record of the catalog.
//
// A book is either available or lent to exactly one borrower.
type Book struct {
	ID        BookID
	Title     string
	Author    string
	Available bool
}

// State returns the lending state of the book.
func (b Book) State() BookState {
	if b.Available {
		return BookAvailable
	}

	return BookBorrowed
}

// BookState is the state of a book in the lending state machine.
type BookState int

const (
	// BookAvailable is the initial state; the book can be borrowed.
	BookAvailable BookState = iota

	// BookBorrowed means exactly one borrower currently holds the book.
	BookBorrowed
)

// String provides a string representation of BookState for logging and display.
func (s BookState) String() string {
	switch s {
	case BookAvailable:
		return "available"
	case BookBorrowed:
		return "borrowed"
	default:
		return "unknown"
	}
}
