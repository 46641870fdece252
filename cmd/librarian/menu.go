package main

import (
	"bufio"
	"context"
	"fmt"
	"strings"
)

const menuText = `
Library Management System
  1) Add book
  2) Add borrower
  3) Borrow book
  4) Return book
  5) Show available books
  6) Show all books
  7) Show borrowers
  8) Show overdue loans
  0) Exit`

// menu runs the interactive loop until the user exits, the input ends or ctx is done.
// Failed operations are reported and the loop continues.
func (a *app) menu(ctx context.Context) error {
	scanner := bufio.NewScanner(a.in)

	prompt := func(label string) (string, bool) {
		fmt.Fprint(a.out, label)
		if !scanner.Scan() {
			return "", false
		}

		return strings.TrimSpace(scanner.Text()), true
	}

	for ctx.Err() == nil {
		fmt.Fprintln(a.out, menuText)

		choice, ok := prompt("Choice: ")
		if !ok {
			break
		}

		switch choice {
		case "1":
			title, ok := prompt("Book Title: ")
			if !ok {
				return a.leave(ctx)
			}

			author, ok := prompt("Author: ")
			if !ok {
				return a.leave(ctx)
			}

			_ = a.addBook(ctx, title, author)

		case "2":
			name, ok := prompt("Borrower Name: ")
			if !ok {
				return a.leave(ctx)
			}

			_ = a.addBorrower(ctx, name)

		case "3", "4":
			userID, ok := prompt("User ID: ")
			if !ok {
				return a.leave(ctx)
			}

			bookID, ok := prompt("Book ID: ")
			if !ok {
				return a.leave(ctx)
			}

			if choice == "3" {
				_ = a.borrow(ctx, userID, bookID)
			} else {
				_ = a.giveBack(ctx, userID, bookID)
			}

		case "5":
			_ = a.listAvailableBooks()

		case "6":
			_ = a.listBooks()

		case "7":
			_ = a.listBorrowers()

		case "8":
			_ = a.listOverdueLoans()

		case "0", "q", "quit", "exit":
			return a.leave(ctx)

		default:
			fmt.Fprintln(a.errOut, "Please choose one of the listed options.")
		}
	}

	if err := scanner.Err(); err != nil {
		return err
	}

	return a.leave(ctx)
}

// leave saves the state one last time before the menu closes.
func (a *app) leave(ctx context.Context) error {
	if err := a.engine.Persist(context.WithoutCancel(ctx)); err != nil {
		fmt.Fprintln(a.errOut, "saving the library failed:", err)
		return err
	}

	fmt.Fprintln(a.out, "Goodbye!")

	return nil
}
