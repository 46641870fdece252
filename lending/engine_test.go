package lending_test

import (
	"context"
	"errors"
	"math/rand/v2"
	"slices"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AntonStoeckl/library-lending-go/lending"
	"github.com/AntonStoeckl/library-lending-go/testutil/helper"
)

var errDiskFull = errors.New("disk full")

func noRetryDelay() lending.Option {
	return lending.WithSaveRetry(lending.WithBaseDelay(0), lending.WithJitterFactor(0))
}

func Test_Engine_LendingScenario_ChargesPenaltyForFullOverdueDays(t *testing.T) {
	// arrange
	ctx := context.Background()
	clock := helper.NewClock(helper.FixtureTime)
	store := helper.NewStoreSpy()
	engine := helper.GivenEngine(t, store, lending.WithClock(clock.Now))

	// act
	book, err := engine.AddBook(ctx, "Dune", "Frank Herbert")
	require.NoError(t, err)

	borrower, err := engine.AddBorrower(ctx, "Alice")
	require.NoError(t, err)

	loan, err := engine.BorrowBook(ctx, borrower.ID, book.ID)
	require.NoError(t, err)

	clock.AdvanceDays(20)
	returned, err := engine.ReturnBook(ctx, borrower.ID, book.ID)
	require.NoError(t, err)

	// assert
	assert.Equal(t, 1, book.ID)
	assert.Equal(t, 1, borrower.ID)
	assert.Equal(t, helper.FixtureTime.AddDate(0, 0, 14), loan.DueAt)
	assert.Equal(t, "Alice borrowed 'Dune' (Due: 2025-01-15)", loan.Message())
	assert.Equal(t, 6, returned.DaysLate)
	assert.Equal(t, 60, returned.Penalty)
	assert.Equal(t, "Book returned late! Penalty: 60", returned.Message())

	stored, _ := engine.Book(book.ID)
	assert.True(t, stored.Available)
	assert.Equal(t, 4, store.SaveCalls(), "every successful mutation is saved once")
}

func Test_Engine_ReturnBook_OnTimeHasNoPenalty(t *testing.T) {
	// arrange
	clock := helper.NewClock(helper.FixtureTime)
	engine := helper.GivenEngine(t, helper.NewStoreSpy(), lending.WithClock(clock.Now))
	book := helper.GivenBook(t, engine, "Dune", "Frank Herbert")
	borrower := helper.GivenBorrower(t, engine, "Alice")
	helper.GivenLoan(t, engine, borrower.ID, book.ID)
	clock.AdvanceDays(14)
	clock.Advance(23 * time.Hour) // less than one full day late

	// act
	returned, err := engine.ReturnBook(context.Background(), borrower.ID, book.ID)

	// assert
	require.NoError(t, err)
	assert.Zero(t, returned.Penalty)
	assert.False(t, returned.Late())
	assert.Equal(t, "Book returned successfully!", returned.Message())
}

func Test_Engine_AddBook_AssignsSequentialIDs(t *testing.T) {
	// arrange
	engine := helper.GivenEngine(t, helper.NewStoreSpy())

	// act
	first := helper.GivenBook(t, engine, "Dune", "Frank Herbert")
	second := helper.GivenBook(t, engine, "Emma", "Jane Austen")

	// assert
	assert.Equal(t, 1, first.ID)
	assert.Equal(t, 2, second.ID)
	assert.True(t, second.Available)
	assert.Equal(t, lending.BookAvailable, second.State())
	assert.Equal(t, "Book 'Emma' added successfully!", second.Message())
}

func Test_Engine_AddBook_AcceptsEmptyTitleAndAuthor(t *testing.T) {
	engine := helper.GivenEngine(t, helper.NewStoreSpy())

	book, err := engine.AddBook(context.Background(), "", "")

	require.NoError(t, err)
	assert.Equal(t, 1, book.ID)
}

func Test_Engine_BorrowBook_UnknownBorrower(t *testing.T) {
	// arrange
	engine := helper.GivenEngine(t, helper.NewStoreSpy())
	book := helper.GivenBook(t, engine, "Dune", "Frank Herbert")
	before := engine.Snapshot()

	// act
	_, err := engine.BorrowBook(context.Background(), 99, book.ID)

	// assert
	require.ErrorIs(t, err, lending.ErrBorrowerNotFound)
	ok, msg := lending.Outcome(nil, err)
	assert.False(t, ok)
	assert.Equal(t, "Borrower not found!", msg)
	assert.Equal(t, before, engine.Snapshot())
}

func Test_Engine_BorrowBook_UnknownBook(t *testing.T) {
	// arrange
	engine := helper.GivenEngine(t, helper.NewStoreSpy())
	borrower := helper.GivenBorrower(t, engine, "Alice")

	// act
	_, err := engine.BorrowBook(context.Background(), borrower.ID, 42)

	// assert
	require.ErrorIs(t, err, lending.ErrBookNotFound)
	failure, ok := lending.AsFailure(err)
	require.True(t, ok)
	assert.Equal(t, lending.KindBookNotFound, failure.Kind)
	assert.Equal(t, 42, failure.BookID)
	assert.Equal(t, "Book not found!", failure.Message)
}

func Test_Engine_BorrowBook_BorrowerIsCheckedBeforeBook(t *testing.T) {
	engine := helper.GivenEngine(t, helper.NewStoreSpy())

	_, err := engine.BorrowBook(context.Background(), 7, 8)

	assert.ErrorIs(t, err, lending.ErrBorrowerNotFound)
	assert.NotErrorIs(t, err, lending.ErrBookNotFound)
}

func Test_Engine_BorrowBook_AlreadyBorrowedLeavesStateUntouched(t *testing.T) {
	// arrange
	engine := helper.GivenEngine(t, helper.NewStoreSpy())
	book := helper.GivenBook(t, engine, "Dune", "Frank Herbert")
	alice := helper.GivenBorrower(t, engine, "Alice")
	bob := helper.GivenBorrower(t, engine, "Bob")
	helper.GivenLoan(t, engine, alice.ID, book.ID)
	before := engine.Snapshot()

	// act
	_, err := engine.BorrowBook(context.Background(), bob.ID, book.ID)

	// assert
	require.ErrorIs(t, err, lending.ErrAlreadyBorrowed)
	_, msg := lending.Outcome(nil, err)
	assert.Equal(t, "'Dune' is already borrowed!", msg)
	assert.Equal(t, before, engine.Snapshot())

	held, _ := engine.Borrower(bob.ID)
	assert.Empty(t, held.Loans)
}

func Test_Engine_BorrowBook_SameBorrowerTwiceIsRejected(t *testing.T) {
	// arrange
	engine := helper.GivenEngine(t, helper.NewStoreSpy())
	book := helper.GivenBook(t, engine, "Dune", "Frank Herbert")
	alice := helper.GivenBorrower(t, engine, "Alice")
	helper.GivenLoan(t, engine, alice.ID, book.ID)

	// act
	_, err := engine.BorrowBook(context.Background(), alice.ID, book.ID)

	// assert
	assert.ErrorIs(t, err, lending.ErrAlreadyBorrowed, "availability is checked before duplicate loans")
}

func Test_Engine_ReturnBook_InvalidReference(t *testing.T) {
	// arrange
	engine := helper.GivenEngine(t, helper.NewStoreSpy())
	book := helper.GivenBook(t, engine, "Dune", "Frank Herbert")
	alice := helper.GivenBorrower(t, engine, "Alice")

	testCases := []struct {
		name       string
		borrowerID lending.BorrowerID
		bookID     lending.BookID
	}{
		{name: "unknown borrower", borrowerID: 99, bookID: book.ID},
		{name: "unknown book", borrowerID: alice.ID, bookID: 99},
		{name: "both unknown", borrowerID: 98, bookID: 99},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// act
			_, err := engine.ReturnBook(context.Background(), tc.borrowerID, tc.bookID)

			// assert
			require.ErrorIs(t, err, lending.ErrInvalidReference)
			_, msg := lending.Outcome(nil, err)
			assert.Equal(t, "Invalid borrower or book ID!", msg)
		})
	}
}

func Test_Engine_ReturnBook_NotBorrowedByThisBorrower(t *testing.T) {
	// arrange
	engine := helper.GivenEngine(t, helper.NewStoreSpy())
	book := helper.GivenBook(t, engine, "Dune", "Frank Herbert")
	alice := helper.GivenBorrower(t, engine, "Alice")
	bob := helper.GivenBorrower(t, engine, "Bob")
	helper.GivenLoan(t, engine, alice.ID, book.ID)
	before := engine.Snapshot()

	// act
	_, err := engine.ReturnBook(context.Background(), bob.ID, book.ID)

	// assert
	require.ErrorIs(t, err, lending.ErrNoSuchLoan)
	_, msg := lending.Outcome(nil, err)
	assert.Equal(t, "Bob did not borrow 'Dune'.", msg)
	assert.Equal(t, before, engine.Snapshot())
}

func Test_Engine_ReturnBook_Twice(t *testing.T) {
	// arrange
	engine := helper.GivenEngine(t, helper.NewStoreSpy())
	book := helper.GivenBook(t, engine, "Dune", "Frank Herbert")
	alice := helper.GivenBorrower(t, engine, "Alice")
	helper.GivenLoan(t, engine, alice.ID, book.ID)

	_, err := engine.ReturnBook(context.Background(), alice.ID, book.ID)
	require.NoError(t, err)

	// act
	_, err = engine.ReturnBook(context.Background(), alice.ID, book.ID)

	// assert
	assert.ErrorIs(t, err, lending.ErrNoSuchLoan)
}

func Test_Engine_AvailableBooks_ReflectsLoans(t *testing.T) {
	// arrange
	engine := helper.GivenEngine(t, helper.NewStoreSpy())
	dune := helper.GivenBook(t, engine, "Dune", "Frank Herbert")
	emma := helper.GivenBook(t, engine, "Emma", "Jane Austen")
	alice := helper.GivenBorrower(t, engine, "Alice")
	available := engine.AvailableBooks()

	// act
	helper.GivenLoan(t, engine, alice.ID, dune.ID)

	// assert
	titles := make([]string, 0)
	for book := range available {
		titles = append(titles, book.Title)
	}

	assert.Equal(t, []string{emma.Title}, titles, "the sequence is lazy and sees the loan")
	assert.Len(t, slices.Collect(engine.Books()), 2)
}

func Test_Engine_AvailableBooks_EmptyCatalog(t *testing.T) {
	engine := helper.GivenEngine(t, helper.NewStoreSpy())

	assert.Empty(t, slices.Collect(engine.AvailableBooks()))
}

func Test_Engine_Borrower_ReturnsACopy(t *testing.T) {
	// arrange
	engine := helper.GivenEngine(t, helper.NewStoreSpy())
	book := helper.GivenBook(t, engine, "Dune", "Frank Herbert")
	alice := helper.GivenBorrower(t, engine, "Alice")
	helper.GivenLoan(t, engine, alice.ID, book.ID)

	// act
	held, ok := engine.Borrower(alice.ID)
	require.True(t, ok)
	delete(held.Loans, book.ID)

	// assert
	again, _ := engine.Borrower(alice.ID)
	assert.True(t, again.Holds(book.ID))
	assert.Equal(t, []lending.BookID{book.ID}, again.BookIDs())
}

func Test_Engine_LoansOf_And_OverdueLoans(t *testing.T) {
	// arrange
	clock := helper.NewClock(helper.FixtureTime)
	engine := helper.GivenEngine(t, helper.NewStoreSpy(), lending.WithClock(clock.Now), lending.WithPenaltyPerDay(5))
	dune := helper.GivenBook(t, engine, "Dune", "Frank Herbert")
	emma := helper.GivenBook(t, engine, "Emma", "Jane Austen")
	alice := helper.GivenBorrower(t, engine, "Alice")
	bob := helper.GivenBorrower(t, engine, "Bob")
	helper.GivenLoan(t, engine, alice.ID, emma.ID)
	clock.AdvanceDays(10)
	helper.GivenLoan(t, engine, bob.ID, dune.ID)
	clock.AdvanceDays(7)

	// act
	aliceLoans, found := engine.LoansOf(alice.ID)
	_, unknownFound := engine.LoansOf(99)
	overdue := slices.Collect(engine.OverdueLoans())

	// assert
	require.True(t, found)
	assert.False(t, unknownFound)
	require.Len(t, aliceLoans, 1)
	assert.Equal(t, 3, aliceLoans[0].DaysLate)
	assert.Equal(t, 15, aliceLoans[0].Penalty)
	require.Len(t, overdue, 1, "bob's loan is not due yet")
	assert.Equal(t, alice.ID, overdue[0].BorrowerID)
	assert.Equal(t, emma.ID, overdue[0].BookID)
	assert.Equal(t, 15, engine.CalculatePenalty(aliceLoans[0].DueAt))
}

func Test_Engine_Options(t *testing.T) {
	testCases := []struct {
		name    string
		option  lending.Option
		wantErr error
	}{
		{name: "negative penalty", option: lending.WithPenaltyPerDay(-1), wantErr: lending.ErrInvalidPenaltyPerDay},
		{name: "zero loan period", option: lending.WithLoanPeriod(0), wantErr: lending.ErrInvalidLoanPeriod},
		{name: "nil clock", option: lending.WithClock(nil), wantErr: lending.ErrNilClock},
		{name: "nil logger", option: lending.WithLogger(nil), wantErr: lending.ErrNilLogger},
		{name: "nil contextual logger", option: lending.WithContextualLogger(nil), wantErr: lending.ErrNilLogger},
		{name: "nil metrics", option: lending.WithMetrics(nil), wantErr: lending.ErrNilMetricsCollector},
		{name: "nil tracing", option: lending.WithTracing(nil), wantErr: lending.ErrNilTracingCollector},
		{name: "zero attempts", option: lending.WithSaveRetry(lending.WithMaxAttempts(0)), wantErr: lending.ErrInvalidMaxAttempts},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := lending.NewEngine(context.Background(), helper.NewStoreSpy(), tc.option)

			assert.ErrorIs(t, err, tc.wantErr)
		})
	}
}

func Test_Engine_CustomPenaltyAndLoanPeriod(t *testing.T) {
	// arrange
	clock := helper.NewClock(helper.FixtureTime)
	engine := helper.GivenEngine(t, helper.NewStoreSpy(),
		lending.WithClock(clock.Now),
		lending.WithPenaltyPerDay(25),
		lending.WithLoanPeriod(7*24*time.Hour),
	)
	book := helper.GivenBook(t, engine, "Dune", "Frank Herbert")
	alice := helper.GivenBorrower(t, engine, "Alice")

	// act
	loan := helper.GivenLoan(t, engine, alice.ID, book.ID)
	clock.AdvanceDays(9)
	returned, err := engine.ReturnBook(context.Background(), alice.ID, book.ID)

	// assert
	require.NoError(t, err)
	assert.Equal(t, helper.FixtureTime.AddDate(0, 0, 7), loan.DueAt)
	assert.Equal(t, 50, returned.Penalty)
	assert.Equal(t, 25, engine.PenaltyPerDay())
	assert.Equal(t, 7*24*time.Hour, engine.LoanPeriod())
}

func Test_NewEngine_NilStore(t *testing.T) {
	_, err := lending.NewEngine(context.Background(), nil)

	assert.ErrorIs(t, err, lending.ErrNilStore)
}

func Test_NewEngine_RestoresPersistedState(t *testing.T) {
	// arrange
	ctx := context.Background()
	clock := helper.NewClock(helper.FixtureTime)
	store := helper.NewStoreSpy()
	first := helper.GivenEngine(t, store, lending.WithClock(clock.Now))
	book := helper.GivenBook(t, first, "Dune", "Frank Herbert")
	alice := helper.GivenBorrower(t, first, "Alice")
	helper.GivenLoan(t, first, alice.ID, book.ID)

	// act
	second := helper.GivenEngine(t, store, lending.WithClock(clock.Now))
	clock.AdvanceDays(20)
	returned, err := second.ReturnBook(ctx, alice.ID, book.ID)

	// assert
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, time.January, 15, 0, 0, 0, 0, time.UTC), returned.DueAt,
		"due dates are persisted as calendar days")
	assert.Equal(t, 60, returned.Penalty)
	assert.Equal(t, 2, store.LoadCalls(), "each engine loads exactly once")
}

func Test_NewEngine_RestoredPenaltyDoesNotDependOnTimeZone(t *testing.T) {
	borrowedAt := time.Date(2025, time.January, 2, 4, 0, 0, 0, time.UTC) // due 2025-01-16 04:00Z
	returnedAt := time.Date(2025, time.January, 17, 1, 0, 0, 0, time.UTC)

	locations := []*time.Location{
		time.UTC,
		time.FixedZone("UTC-8", -8*60*60),
		time.FixedZone("UTC+9", 9*60*60),
	}

	for _, location := range locations {
		t.Run(location.String(), func(t *testing.T) {
			// arrange
			ctx := context.Background()
			clock := helper.NewClock(borrowedAt.In(location))
			store := helper.NewStoreSpy()
			first := helper.GivenEngine(t, store, lending.WithClock(clock.Now))
			book := helper.GivenBook(t, first, "Dune", "Frank Herbert")
			alice := helper.GivenBorrower(t, first, "Alice")
			receipt := helper.GivenLoan(t, first, alice.ID, book.ID)

			// act
			second := helper.GivenEngine(t, store, lending.WithClock(clock.Now))
			clock.Advance(returnedAt.Sub(borrowedAt))
			returned, err := second.ReturnBook(ctx, alice.ID, book.ID)

			// assert
			require.NoError(t, err)
			assert.Contains(t, receipt.Message(), "(Due: 2025-01-16)")
			assert.Equal(t, time.Date(2025, time.January, 16, 0, 0, 0, 0, time.UTC), returned.DueAt)
			assert.Equal(t, 1, returned.DaysLate)
			assert.Equal(t, 10, returned.Penalty)
		})
	}
}

func Test_NewEngine_DoesNotReuseIDsOfGappyState(t *testing.T) {
	// arrange
	snapshot := lending.Snapshot{
		Books: []lending.BookRecord{
			{BookID: 3, Title: "Dune", Author: "Frank Herbert", Available: true},
			{BookID: 9, Title: "Emma", Author: "Jane Austen", Available: true},
		},
		Borrowers: []lending.BorrowerRecord{
			{UserID: 5, Name: "Alice", BorrowedBooks: map[lending.BookID]lending.DueDate{}},
		},
	}
	engine := helper.GivenEngine(t, helper.NewStoreSpyWith(snapshot))

	// act
	book := helper.GivenBook(t, engine, "Ulysses", "James Joyce")
	borrower := helper.GivenBorrower(t, engine, "Bob")

	// assert
	assert.Equal(t, 10, book.ID)
	assert.Equal(t, 6, borrower.ID)
}

func Test_NewEngine_RejectsInvalidState(t *testing.T) {
	// arrange
	snapshot := lending.Snapshot{
		Books: []lending.BookRecord{{BookID: 1, Title: "Dune", Available: true}},
		Borrowers: []lending.BorrowerRecord{{
			UserID:        1,
			Name:          "Alice",
			BorrowedBooks: map[lending.BookID]lending.DueDate{1: lending.DueDateOf(helper.FixtureTime)},
		}},
	}

	// act
	_, err := lending.NewEngine(context.Background(), helper.NewStoreSpyWith(snapshot))

	// assert
	assert.ErrorIs(t, err, lending.ErrInvalidSnapshot)
}

func Test_NewEngine_PropagatesLoadErrors(t *testing.T) {
	// arrange
	store := helper.NewStoreSpy()
	store.FailLoad(errors.Join(lending.ErrLoadingSnapshotFailed, errDiskFull))

	// act
	_, err := lending.NewEngine(context.Background(), store)

	// assert
	assert.ErrorIs(t, err, lending.ErrLoadingSnapshotFailed)
	assert.ErrorIs(t, err, errDiskFull)
}

func Test_Engine_RollsBackWhenSavingFails(t *testing.T) {
	// arrange
	ctx := context.Background()
	store := helper.NewStoreSpy()
	engine := helper.GivenEngine(t, store, noRetryDelay())
	book := helper.GivenBook(t, engine, "Dune", "Frank Herbert")
	alice := helper.GivenBorrower(t, engine, "Alice")
	loanedBook := helper.GivenBook(t, engine, "Emma", "Jane Austen")
	helper.GivenLoan(t, engine, alice.ID, loanedBook.ID)
	before := engine.Snapshot()
	store.FailAllSaves(errors.Join(lending.ErrSavingSnapshotFailed, errDiskFull))

	testCases := []struct {
		name string
		run  func() error
	}{
		{name: "add book", run: func() error { _, err := engine.AddBook(ctx, "Ulysses", "James Joyce"); return err }},
		{name: "add borrower", run: func() error { _, err := engine.AddBorrower(ctx, "Bob"); return err }},
		{name: "borrow book", run: func() error { _, err := engine.BorrowBook(ctx, alice.ID, book.ID); return err }},
		{name: "return book", run: func() error { _, err := engine.ReturnBook(ctx, alice.ID, loanedBook.ID); return err }},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// act
			err := tc.run()

			// assert
			require.ErrorIs(t, err, lending.ErrPersistenceFailure)
			assert.ErrorIs(t, err, errDiskFull)
			assert.Equal(t, before, engine.Snapshot())
		})
	}

	// the next IDs are unaffected by the rolled back additions
	store.FailAllSaves(nil)
	assert.Equal(t, 3, helper.GivenBook(t, engine, "Ulysses", "James Joyce").ID)
	assert.Equal(t, 2, helper.GivenBorrower(t, engine, "Bob").ID)
}

func Test_Engine_RetriesUnavailableStore(t *testing.T) {
	// arrange
	store := helper.NewStoreSpy()
	engine := helper.GivenEngine(t, store, noRetryDelay())
	transient := errors.Join(lending.ErrStoreUnavailable, errors.New("connection reset"))
	store.FailNextSaves(transient, transient)

	// act
	book, err := engine.AddBook(context.Background(), "Dune", "Frank Herbert")

	// assert
	require.NoError(t, err)
	assert.Equal(t, 3, store.SaveCalls())

	saved, found := store.Snapshot()
	require.True(t, found)
	assert.Equal(t, book.ID, saved.Books[0].BookID)
}

func Test_Engine_GivesUpAfterMaxAttempts(t *testing.T) {
	// arrange
	store := helper.NewStoreSpy()
	engine := helper.GivenEngine(t, store,
		lending.WithSaveRetry(lending.WithMaxAttempts(2), lending.WithBaseDelay(0)))
	store.FailAllSaves(errors.Join(lending.ErrStoreUnavailable, errors.New("connection refused")))

	// act
	_, err := engine.AddBorrower(context.Background(), "Alice")

	// assert
	require.ErrorIs(t, err, lending.ErrPersistenceFailure)
	assert.ErrorIs(t, err, lending.ErrStoreUnavailable)
	assert.Equal(t, 2, store.SaveCalls())
	assert.Empty(t, slices.Collect(engine.Borrowers()))
}

func Test_Engine_DoesNotRetryPermanentErrors(t *testing.T) {
	// arrange
	store := helper.NewStoreSpy()
	engine := helper.GivenEngine(t, store, noRetryDelay())
	store.FailNextSaves(errors.Join(lending.ErrConcurrencyConflict, errors.New("revision 4 expected")))

	// act
	_, err := engine.AddBook(context.Background(), "Dune", "Frank Herbert")

	// assert
	assert.ErrorIs(t, err, lending.ErrConcurrencyConflict)
	assert.Equal(t, 1, store.SaveCalls())
}

func Test_Engine_Persist(t *testing.T) {
	// arrange
	store := helper.NewStoreSpy()
	engine := helper.GivenEngine(t, store, noRetryDelay())

	// act
	err := engine.Persist(context.Background())

	// assert
	require.NoError(t, err)
	saved, found := store.Snapshot()
	require.True(t, found)
	assert.Equal(t, lending.EmptySnapshot(), saved)

	store.FailAllSaves(errDiskFull)
	assert.ErrorIs(t, engine.Persist(context.Background()), lending.ErrPersistenceFailure)
}

func Test_Engine_KeepsInvariantsUnderRandomOperations(t *testing.T) {
	// arrange
	ctx := context.Background()
	rng := rand.New(rand.NewPCG(7, 11))
	clock := helper.NewClock(helper.FixtureTime)
	store := helper.NewStoreSpy()
	engine := helper.GivenEngine(t, store, lending.WithClock(clock.Now), noRetryDelay())

	for step := 0; step < 500; step++ {
		// act
		switch rng.IntN(6) {
		case 0:
			_, _ = engine.AddBook(ctx, "Book", "Author")
		case 1:
			_, _ = engine.AddBorrower(ctx, "Reader")
		case 2, 3:
			_, _ = engine.BorrowBook(ctx, rng.IntN(12), rng.IntN(22))
		case 4:
			_, _ = engine.ReturnBook(ctx, rng.IntN(12), rng.IntN(22))
		case 5:
			clock.AdvanceDays(rng.IntN(5))
		}

		if rng.IntN(10) == 0 {
			store.FailNextSaves(errDiskFull)
		}

		// assert
		require.NoError(t, engine.Snapshot().Validate(), "step %d", step)

		for book := range engine.Books() {
			holders := 0
			for borrower := range engine.Borrowers() {
				if borrower.Holds(book.ID) {
					holders++
				}
			}

			require.Equal(t, !book.Available, holders == 1, "step %d book %d", step, book.ID)
			require.LessOrEqual(t, holders, 1)
		}
	}
}
