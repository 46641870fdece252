package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/AntonStoeckl/library-lending-go/lending"
)

const (
	msgFillTitleAndAuthor = "Please fill both title and author."
	msgEnterBorrowerName  = "Please enter borrower name."
	msgEnterNumericIDs    = "Please enter valid numeric IDs."
	msgNoBooksAvailable   = "No books available."
	msgNoBooks            = "No books in the catalog."
	msgNoBorrowers        = "No borrowers registered."
	msgNoOverdueLoans     = "No overdue loans."
	msgHistoryUnsupported = "History is only kept by the redis store."

	defaultHistoryLength = 5
)

var errInvalidInput = errors.New("invalid input")

func (a *app) execute(ctx context.Context, command string, args []string) error {
	switch command {
	case "add-book":
		if len(args) != 2 {
			return a.usage("add-book <title> <author>")
		}

		return a.addBook(ctx, args[0], args[1])

	case "add-borrower":
		if len(args) != 1 {
			return a.usage("add-borrower <name>")
		}

		return a.addBorrower(ctx, args[0])

	case "borrow":
		if len(args) != 2 {
			return a.usage("borrow <borrower-id> <book-id>")
		}

		return a.borrow(ctx, args[0], args[1])

	case "return":
		if len(args) != 2 {
			return a.usage("return <borrower-id> <book-id>")
		}

		return a.giveBack(ctx, args[0], args[1])

	case "available":
		return a.listAvailableBooks()

	case "books":
		return a.listBooks()

	case "borrowers":
		return a.listBorrowers()

	case "overdue":
		return a.listOverdueLoans()

	case "history":
		if len(args) > 1 {
			return a.usage("history [n]")
		}

		return a.showHistory(ctx, args)

	case "menu":
		return a.menu(ctx)

	default:
		return a.usage(fmt.Sprintf("unknown command %q", command))
	}
}

func (a *app) usage(msg string) error {
	fmt.Fprintln(a.errOut, "usage: librarian [flags]", msg)
	return errUsage
}

func (a *app) invalid(msg string) error {
	fmt.Fprintln(a.errOut, msg)
	return errInvalidInput
}

func (a *app) addBook(ctx context.Context, title, author string) error {
	title, author = strings.TrimSpace(title), strings.TrimSpace(author)
	if title == "" || author == "" {
		return a.invalid(msgFillTitleAndAuthor)
	}

	return a.report(a.engine.AddBook(ctx, title, author))
}

func (a *app) addBorrower(ctx context.Context, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return a.invalid(msgEnterBorrowerName)
	}

	return a.report(a.engine.AddBorrower(ctx, name))
}

func (a *app) borrow(ctx context.Context, rawBorrowerID, rawBookID string) error {
	borrowerID, bookID, ok := parseIDs(rawBorrowerID, rawBookID)
	if !ok {
		return a.invalid(msgEnterNumericIDs)
	}

	return a.report(a.engine.BorrowBook(ctx, borrowerID, bookID))
}

func (a *app) giveBack(ctx context.Context, rawBorrowerID, rawBookID string) error {
	borrowerID, bookID, ok := parseIDs(rawBorrowerID, rawBookID)
	if !ok {
		return a.invalid(msgEnterNumericIDs)
	}

	return a.report(a.engine.ReturnBook(ctx, borrowerID, bookID))
}

// parseIDs accepts positive decimal IDs only.
func parseIDs(rawBorrowerID, rawBookID string) (lending.BorrowerID, lending.BookID, bool) {
	borrowerID, err := strconv.Atoi(strings.TrimSpace(rawBorrowerID))
	if err != nil || borrowerID <= 0 {
		return 0, 0, false
	}

	bookID, err := strconv.Atoi(strings.TrimSpace(rawBookID))
	if err != nil || bookID <= 0 {
		return 0, 0, false
	}

	return borrowerID, bookID, true
}

func (a *app) listAvailableBooks() error {
	w := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
	count := 0

	for book := range a.engine.AvailableBooks() {
		if count == 0 {
			fmt.Fprintln(w, "Book ID\tTitle\tAuthor")
		}

		fmt.Fprintf(w, "%d\t%s\t%s\n", book.ID, book.Title, book.Author)
		count++
	}

	if count == 0 {
		fmt.Fprintln(w, msgNoBooksAvailable)
	}

	return w.Flush()
}

func (a *app) listBooks() error {
	w := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
	count := 0

	for book := range a.engine.Books() {
		if count == 0 {
			fmt.Fprintln(w, "Book ID\tTitle\tAuthor\tState")
		}

		fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", book.ID, book.Title, book.Author, book.State())
		count++
	}

	if count == 0 {
		fmt.Fprintln(w, msgNoBooks)
	}

	return w.Flush()
}

func (a *app) listBorrowers() error {
	w := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
	count := 0

	for borrower := range a.engine.Borrowers() {
		if count == 0 {
			fmt.Fprintln(w, "User ID\tName\tBorrowed books")
		}

		loans, _ := a.engine.LoansOf(borrower.ID)
		fmt.Fprintf(w, "%d\t%s\t%s\n", borrower.ID, borrower.Name, a.describeLoans(loans))
		count++
	}

	if count == 0 {
		fmt.Fprintln(w, msgNoBorrowers)
	}

	return w.Flush()
}

func (a *app) describeLoans(loans []lending.Loan) string {
	if len(loans) == 0 {
		return "-"
	}

	parts := make([]string, 0, len(loans))
	for _, loan := range loans {
		title := strconv.Itoa(loan.BookID)
		if book, found := a.engine.Book(loan.BookID); found {
			title = book.Title
		}

		parts = append(parts, fmt.Sprintf("'%s' (Due: %s)", title, lending.DueDateOf(loan.DueAt)))
	}

	return strings.Join(parts, ", ")
}

func (a *app) listOverdueLoans() error {
	w := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
	count := 0

	for loan := range a.engine.OverdueLoans() {
		if count == 0 {
			fmt.Fprintln(w, "User ID\tBook ID\tDue\tDays late\tPenalty")
		}

		fmt.Fprintf(w, "%d\t%d\t%s\t%d\t%d\n",
			loan.BorrowerID, loan.BookID, lending.DueDateOf(loan.DueAt), loan.DaysLate, loan.Penalty)
		count++
	}

	if count == 0 {
		fmt.Fprintln(w, msgNoOverdueLoans)
	}

	return w.Flush()
}

func (a *app) showHistory(ctx context.Context, args []string) error {
	if a.store.history == nil {
		return a.invalid(msgHistoryUnsupported)
	}

	n := defaultHistoryLength
	if len(args) == 1 {
		parsed, err := strconv.Atoi(args[0])
		if err != nil || parsed <= 0 {
			return a.invalid("Please enter a positive number of entries.")
		}

		n = parsed
	}

	snapshots, err := a.store.history(ctx, n)
	if err != nil {
		fmt.Fprintln(a.errOut, "reading the history failed:", err)
		return err
	}

	w := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "#\tBooks\tBorrowers\tLoans")

	for i, snapshot := range snapshots {
		loans := 0
		for _, borrower := range snapshot.Borrowers {
			loans += len(borrower.BorrowedBooks)
		}

		fmt.Fprintf(w, "%d\t%d\t%d\t%d\n", i+1, len(snapshot.Books), len(snapshot.Borrowers), loans)
	}

	return w.Flush()
}
