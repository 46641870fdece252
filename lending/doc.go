// Package lending provides the lending engine of a small public library:
// a catalog of books, a registry of borrowers, loan bookkeeping and the overdue penalty rule.
//
// The Engine owns all Book and Borrower records. Callers only ever receive copies and
// change state exclusively through the Engine's operations:
//   - AddBook, AddBorrower
//   - BorrowBook, ReturnBook
//   - AvailableBooks, Books, Borrowers, LoansOf, OverdueLoans (read-only sequences)
//
// Every successful mutation is persisted synchronously through a Store. If the Store fails,
// the mutation is rolled back and a Failure of kind KindPersistenceFailure is returned,
// so the in-memory state never runs ahead of the persisted state.
//
// Domain rejections are returned as *Failure values which match the sentinel errors
// (ErrBorrowerNotFound, ErrBookNotFound, ErrAlreadyBorrowed, ...) with errors.Is.
//
// Common usage pattern:
//
//	store := filestore.NewStore("library_data.json")
//	engine, err := lending.NewEngine(ctx, store, lending.WithLogger(slog.Default()))
//	if err != nil {
//		// handle error
//	}
//
//	book, _ := engine.AddBook(ctx, "Dune", "Frank Herbert")
//	reader, _ := engine.AddBorrower(ctx, "Alice")
//
//	receipt, err := engine.BorrowBook(ctx, reader.ID, book.ID)
//	ok, message := lending.Outcome(receipt, err)
//
// The Engine is not safe for concurrent use. It has no internal locking and expects
// one operation at a time; callers exposing it to concurrent users must serialize access.
package lending
