package lending

import (
	"context"
	"fmt"
	"iter"
	"maps"
	"slices"
	"time"
)

const (
	operationLoad        = "load"
	operationAddBook     = "add_book"
	operationAddBorrower = "add_borrower"
	operationBorrowBook  = "borrow_book"
	operationReturnBook  = "return_book"
	operationPersist     = "persist"

	msgBorrowerNotFound   = "Borrower not found!"
	msgBookNotFound       = "Book not found!"
	msgAlreadyBorrowed    = "'%s' is already borrowed!"
	msgDuplicateLoan      = "%s already borrowed '%s'."
	msgInvalidReference   = "Invalid borrower or book ID!"
	msgNoSuchLoan         = "%s did not borrow '%s'."
	msgPersistenceFailure = "Could not save the library state, nothing was changed."
)

// Engine owns the catalog and the borrower registry of one library and enforces the lending rules.
//
// Construct it with NewEngine; it is not safe for concurrent use.
type Engine struct {
	books     *registry[Book]
	borrowers *registry[Borrower]
	store     Store

	penaltyPerDay int
	loanPeriod    time.Duration
	now           func() time.Time
	retry         retryConfig

	logger           Logger
	contextualLogger ContextualLogger
	metricsCollector MetricsCollector
	tracingCollector TracingCollector
}

// NewEngine creates an Engine and loads the persisted state from the store exactly once.
// If the store holds no state yet, the Engine starts with empty registries.
func NewEngine(ctx context.Context, store Store, options ...Option) (*Engine, error) {
	if store == nil {
		return nil, ErrNilStore
	}

	e := &Engine{
		books:         newRegistry[Book](),
		borrowers:     newRegistry[Borrower](),
		store:         store,
		penaltyPerDay: DefaultPenaltyPerDay,
		loanPeriod:    DefaultLoanPeriod,
		now:           time.Now,
		retry:         defaultRetryConfig(),
	}

	for _, option := range options {
		if err := option(e); err != nil {
			return nil, err
		}
	}

	if err := e.load(ctx); err != nil {
		return nil, err
	}

	return e, nil
}

func (e *Engine) load(ctx context.Context) error {
	ctx, op := e.startOperation(ctx, operationLoad, 0, 0)

	snapshot, found, err := e.store.Load(ctx)
	if err != nil {
		op.abort(err)
		return err
	}

	if !found {
		op.complete(logAttrFound, false)
		return nil
	}

	if validationErr := snapshot.Validate(); validationErr != nil {
		op.abort(validationErr)
		return validationErr
	}

	e.restore(snapshot)
	op.complete(logAttrFound, true, logAttrBookCount, e.books.len(), logAttrBorrowerCount, e.borrowers.len())

	return nil
}

func (e *Engine) restore(snapshot Snapshot) {
	for _, b := range snapshot.Books {
		e.books.add(b.BookID, Book{ID: b.BookID, Title: b.Title, Author: b.Author, Available: b.Available})
	}

	for _, u := range snapshot.Borrowers {
		loans := make(Loans, len(u.BorrowedBooks))
		for bookID, dueDate := range u.BorrowedBooks {
			loans[bookID] = dueDate.Time
		}

		e.borrowers.add(u.UserID, Borrower{ID: u.UserID, Name: u.Name, Loans: loans})
	}
}

// AddBook adds a new available book to the catalog under the next free ID and persists the state.
func (e *Engine) AddBook(ctx context.Context, title string, author string) (Book, error) {
	book := Book{ID: e.books.nextID(), Title: title, Author: author, Available: true}
	ctx, op := e.startOperation(ctx, operationAddBook, 0, book.ID)

	e.books.add(book.ID, book)

	if err := e.save(ctx, op); err != nil {
		e.books.removeLast()
		return Book{}, op.fail(e.persistenceFailure(operationAddBook, 0, book.ID, err))
	}

	op.succeed()

	return book, nil
}

// AddBorrower registers a new borrower under the next free ID and persists the state.
func (e *Engine) AddBorrower(ctx context.Context, name string) (Borrower, error) {
	borrower := Borrower{ID: e.borrowers.nextID(), Name: name, Loans: make(Loans)}
	ctx, op := e.startOperation(ctx, operationAddBorrower, borrower.ID, 0)

	e.borrowers.add(borrower.ID, borrower)

	if err := e.save(ctx, op); err != nil {
		e.borrowers.removeLast()
		return Borrower{}, op.fail(e.persistenceFailure(operationAddBorrower, borrower.ID, 0, err))
	}

	op.succeed()

	return borrower.clone(), nil
}

// BorrowBook lends an available book to a borrower until now + loan period.
//
// Preconditions are checked in this order:
//   - the borrower exists, else ErrBorrowerNotFound
//   - the book exists, else ErrBookNotFound
//   - the book is available, else ErrAlreadyBorrowed
//   - the borrower does not hold the book already, else ErrDuplicateLoan
//
// A failed precondition leaves the state untouched.
func (e *Engine) BorrowBook(ctx context.Context, borrowerID BorrowerID, bookID BookID) (LoanReceipt, error) {
	ctx, op := e.startOperation(ctx, operationBorrowBook, borrowerID, bookID)

	borrower := e.borrowers.ref(borrowerID)
	if borrower == nil {
		return LoanReceipt{}, op.fail(e.failure(KindBorrowerNotFound, operationBorrowBook, borrowerID, bookID, msgBorrowerNotFound))
	}

	book := e.books.ref(bookID)
	if book == nil {
		return LoanReceipt{}, op.fail(e.failure(KindBookNotFound, operationBorrowBook, borrowerID, bookID, msgBookNotFound))
	}

	if !book.Available {
		return LoanReceipt{}, op.fail(e.failure(KindAlreadyBorrowed, operationBorrowBook, borrowerID, bookID,
			fmt.Sprintf(msgAlreadyBorrowed, book.Title)))
	}

	// unreachable while the availability invariant holds
	if borrower.Holds(bookID) {
		return LoanReceipt{}, op.fail(e.failure(KindDuplicateLoan, operationBorrowBook, borrowerID, bookID,
			fmt.Sprintf(msgDuplicateLoan, borrower.Name, book.Title)))
	}

	borrowedAt := e.now()
	dueAt := borrowedAt.Add(e.loanPeriod)

	book.Available = false
	borrower.Loans[bookID] = dueAt

	if err := e.save(ctx, op); err != nil {
		book.Available = true
		delete(borrower.Loans, bookID)

		return LoanReceipt{}, op.fail(e.persistenceFailure(operationBorrowBook, borrowerID, bookID, err))
	}

	op.succeed(logAttrDueDate, DueDateOf(dueAt).String())

	return LoanReceipt{
		BorrowerID:   borrowerID,
		BookID:       bookID,
		BorrowerName: borrower.Name,
		BookTitle:    book.Title,
		BorrowedAt:   borrowedAt,
		DueAt:        dueAt,
	}, nil
}

// ReturnBook ends the loan of a book and computes the penalty for the full days it is overdue.
//
// It fails with ErrInvalidReference if the borrower or the book does not exist
// and with ErrNoSuchLoan if the borrower does not hold the book.
// A failure leaves the state untouched.
func (e *Engine) ReturnBook(ctx context.Context, borrowerID BorrowerID, bookID BookID) (ReturnReceipt, error) {
	ctx, op := e.startOperation(ctx, operationReturnBook, borrowerID, bookID)

	borrower := e.borrowers.ref(borrowerID)
	book := e.books.ref(bookID)

	if borrower == nil || book == nil {
		return ReturnReceipt{}, op.fail(e.failure(KindInvalidReference, operationReturnBook, borrowerID, bookID, msgInvalidReference))
	}

	dueAt, held := borrower.Loans[bookID]
	if !held {
		return ReturnReceipt{}, op.fail(e.failure(KindNoSuchLoan, operationReturnBook, borrowerID, bookID,
			fmt.Sprintf(msgNoSuchLoan, borrower.Name, book.Title)))
	}

	delete(borrower.Loans, bookID)
	book.Available = true

	returnedAt := e.now()
	daysLate := DaysLate(dueAt, returnedAt)

	if err := e.save(ctx, op); err != nil {
		borrower.Loans[bookID] = dueAt
		book.Available = false

		return ReturnReceipt{}, op.fail(e.persistenceFailure(operationReturnBook, borrowerID, bookID, err))
	}

	receipt := ReturnReceipt{
		BorrowerID:   borrowerID,
		BookID:       bookID,
		BorrowerName: borrower.Name,
		BookTitle:    book.Title,
		DueAt:        dueAt,
		ReturnedAt:   returnedAt,
		DaysLate:     daysLate,
		Penalty:      daysLate * e.penaltyPerDay,
	}

	op.succeed(logAttrDaysLate, receipt.DaysLate, logAttrPenalty, receipt.Penalty)

	return receipt, nil
}

// CalculatePenalty returns the penalty that would be charged if a loan due at dueAt was returned now.
func (e *Engine) CalculatePenalty(dueAt time.Time) int {
	return CalculatePenalty(dueAt, e.now(), e.penaltyPerDay)
}

// PenaltyPerDay returns the configured penalty per full overdue day.
func (e *Engine) PenaltyPerDay() int {
	return e.penaltyPerDay
}

// LoanPeriod returns the configured loan period.
func (e *Engine) LoanPeriod() time.Duration {
	return e.loanPeriod
}

// Persist saves the current state explicitly, e.g. on teardown.
func (e *Engine) Persist(ctx context.Context) error {
	ctx, op := e.startOperation(ctx, operationPersist, 0, 0)

	if err := e.save(ctx, op); err != nil {
		return op.fail(e.persistenceFailure(operationPersist, 0, 0, err))
	}

	op.succeed()

	return nil
}

// Book looks up a book by its ID.
func (e *Engine) Book(id BookID) (Book, bool) {
	return e.books.get(id)
}

// Borrower looks up a borrower by its ID.
func (e *Engine) Borrower(id BorrowerID) (Borrower, bool) {
	borrower, ok := e.borrowers.get(id)
	if !ok {
		return Borrower{}, false
	}

	return borrower.clone(), true
}

// Books yields all books in the order they were added.
func (e *Engine) Books() iter.Seq[Book] {
	return e.books.all()
}

// AvailableBooks yields the books that can be borrowed, in the order they were added.
// The sequence is lazy and can be iterated again to observe later changes.
func (e *Engine) AvailableBooks() iter.Seq[Book] {
	return func(yield func(Book) bool) {
		for book := range e.books.all() {
			if book.Available && !yield(book) {
				return
			}
		}
	}
}

// Borrowers yields copies of all borrowers in the order they were registered.
func (e *Engine) Borrowers() iter.Seq[Borrower] {
	return func(yield func(Borrower) bool) {
		for borrower := range e.borrowers.all() {
			if !yield(borrower.clone()) {
				return
			}
		}
	}
}

// LoansOf returns the active loans of a borrower ordered by book ID,
// each with the penalty that would be charged now.
func (e *Engine) LoansOf(borrowerID BorrowerID) ([]Loan, bool) {
	borrower, ok := e.borrowers.get(borrowerID)
	if !ok {
		return nil, false
	}

	return e.loansOf(borrower, e.now()), true
}

// OverdueLoans yields every loan whose due time has passed, borrowers in registration order.
func (e *Engine) OverdueLoans() iter.Seq[Loan] {
	return func(yield func(Loan) bool) {
		now := e.now()

		for borrower := range e.borrowers.all() {
			for _, loan := range e.loansOf(borrower, now) {
				if !now.After(loan.DueAt) {
					continue
				}

				if !yield(loan) {
					return
				}
			}
		}
	}
}

func (e *Engine) loansOf(borrower Borrower, now time.Time) []Loan {
	loans := make([]Loan, 0, len(borrower.Loans))

	for _, bookID := range slices.Sorted(maps.Keys(borrower.Loans)) {
		dueAt := borrower.Loans[bookID]
		daysLate := DaysLate(dueAt, now)

		loans = append(loans, Loan{
			BorrowerID: borrower.ID,
			BookID:     bookID,
			DueAt:      dueAt,
			DaysLate:   daysLate,
			Penalty:    daysLate * e.penaltyPerDay,
		})
	}

	return loans
}

// Snapshot returns the current state in its persisted layout.
// Due times are truncated to their calendar day.
func (e *Engine) Snapshot() Snapshot {
	snapshot := Snapshot{
		Books:     make([]BookRecord, 0, e.books.len()),
		Borrowers: make([]BorrowerRecord, 0, e.borrowers.len()),
	}

	for book := range e.books.all() {
		snapshot.Books = append(snapshot.Books, BookRecord{
			BookID:    book.ID,
			Title:     book.Title,
			Author:    book.Author,
			Available: book.Available,
		})
	}

	for borrower := range e.borrowers.all() {
		borrowed := make(map[BookID]DueDate, len(borrower.Loans))
		for bookID, dueAt := range borrower.Loans {
			borrowed[bookID] = DueDateOf(dueAt)
		}

		snapshot.Borrowers = append(snapshot.Borrowers, BorrowerRecord{
			UserID:        borrower.ID,
			Name:          borrower.Name,
			BorrowedBooks: borrowed,
		})
	}

	return snapshot
}

// save persists the current state, retrying transient store errors.
func (e *Engine) save(ctx context.Context, op *operation) error {
	snapshot := e.Snapshot()

	attempts, err := retryWithExponentialBackoff(ctx, e.retry, func(ctx context.Context) error {
		return e.store.Save(ctx, snapshot)
	})

	if attempts > 1 {
		op.retried(attempts, err)
	}

	return err
}

func (e *Engine) failure(
	kind FailureKind,
	operation string,
	borrowerID BorrowerID,
	bookID BookID,
	message string,
) *Failure {

	return &Failure{
		Kind:       kind,
		Operation:  operation,
		BorrowerID: borrowerID,
		BookID:     bookID,
		Message:    message,
	}
}

func (e *Engine) persistenceFailure(
	operation string,
	borrowerID BorrowerID,
	bookID BookID,
	cause error,
) *Failure {

	failure := e.failure(KindPersistenceFailure, operation, borrowerID, bookID, msgPersistenceFailure)
	failure.Cause = cause

	return failure
}

func (e *Engine) countAvailableBooks() int {
	count := 0

	for range e.AvailableBooks() {
		count++
	}

	return count
}
