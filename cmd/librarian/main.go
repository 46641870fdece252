// Command librarian manages the books and borrowers of a small library from the command line.
//
// Usage:
//
//	librarian [flags] <command> [args]
//
// Commands:
//
//	add-book <title> <author>      add a book to the catalog
//	add-borrower <name>            register a borrower
//	borrow <borrower-id> <book-id> lend a book for the loan period
//	return <borrower-id> <book-id> take a book back and report the penalty, if any
//	available                      list the books that can be borrowed
//	books                          list all books
//	borrowers                      list all borrowers and their loans
//	overdue                        list overdue loans with the penalty due today
//	history [n]                    show the last n saved states (redis store only)
//	init-db                        create the snapshots table (postgres store only)
//	menu                           interactive menu
//
// Run "librarian -h" for the flags; every flag can also be set with a LIBRARIAN_* environment variable.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	code := run(ctx, os.Args[1:], os.Getenv, os.Stdin, os.Stdout, os.Stderr)

	stop()
	os.Exit(code)
}
