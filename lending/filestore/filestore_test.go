package filestore_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AntonStoeckl/library-lending-go/lending"
	"github.com/AntonStoeckl/library-lending-go/lending/filestore"
	"github.com/AntonStoeckl/library-lending-go/testutil/helper"
)

func givenStore(t *testing.T, options ...filestore.Option) *filestore.Store {
	t.Helper()

	store, err := filestore.NewStore(filepath.Join(t.TempDir(), filestore.DefaultPath), options...)
	require.NoError(t, err, "error in arranging test data")

	return store
}

func Test_FileStore_Load_MissingFileIsNotFound(t *testing.T) {
	// arrange
	store := givenStore(t)

	// act
	_, found, err := store.Load(context.Background())

	// assert
	require.NoError(t, err)
	assert.False(t, found)
}

func Test_FileStore_SaveThenLoad(t *testing.T) {
	// arrange
	ctx := context.Background()
	logger, logSpy := helper.NewSpyLogger(false)
	store := givenStore(t, filestore.WithLogger(logger))
	snapshot := lending.Snapshot{
		Books: []lending.BookRecord{{BookID: 1, Title: "Dune", Author: "Frank Herbert", Available: false}},
		Borrowers: []lending.BorrowerRecord{{
			UserID: 1,
			Name:   "Alice",
			BorrowedBooks: map[lending.BookID]lending.DueDate{
				1: lending.DueDateOf(time.Date(2025, time.January, 15, 0, 0, 0, 0, time.UTC)),
			},
		}},
	}

	// act
	require.NoError(t, store.Save(ctx, snapshot))
	loaded, found, err := store.Load(ctx)

	// assert
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, snapshot, loaded)
	assert.True(t, logSpy.HasDebugLogWithMessage("library state saved to file").WithAttr("bytes").Assert())

	data, err := os.ReadFile(store.Path())
	require.NoError(t, err)
	assert.Contains(t, string(data), `"2025-01-15"`)
}

func Test_FileStore_Save_ReplacesFileAndLeavesNoTempFiles(t *testing.T) {
	// arrange
	ctx := context.Background()
	store := givenStore(t)
	require.NoError(t, store.Save(ctx, lending.EmptySnapshot()))

	// act
	err := store.Save(ctx, lending.Snapshot{Books: []lending.BookRecord{{BookID: 1, Title: "Emma", Available: true}}})

	// assert
	require.NoError(t, err)
	entries, err := os.ReadDir(filepath.Dir(store.Path()))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, filestore.DefaultPath, entries[0].Name())

	loaded, _, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Len(t, loaded.Books, 1)
}

func Test_FileStore_Load_CorruptFile(t *testing.T) {
	// arrange
	store := givenStore(t)
	require.NoError(t, os.WriteFile(store.Path(), []byte("{not json"), 0o600))

	// act
	_, _, err := store.Load(context.Background())

	// assert
	assert.ErrorIs(t, err, lending.ErrLoadingSnapshotFailed)
	assert.ErrorIs(t, err, lending.ErrInvalidSnapshotJSON)
}

func Test_FileStore_Save_MissingDirectory(t *testing.T) {
	// arrange
	store, err := filestore.NewStore(filepath.Join(t.TempDir(), "missing", "library.json"))
	require.NoError(t, err)

	// act
	err = store.Save(context.Background(), lending.EmptySnapshot())

	// assert
	assert.ErrorIs(t, err, lending.ErrSavingSnapshotFailed)
}

func Test_FileStore_Save_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := givenStore(t).Save(ctx, lending.EmptySnapshot())

	assert.ErrorIs(t, err, context.Canceled)
}

func Test_NewStore_EmptyPath(t *testing.T) {
	_, err := filestore.NewStore("")

	assert.ErrorIs(t, err, filestore.ErrEmptyPath)
}

func Test_FileStore_WithEngine_SurvivesRestart(t *testing.T) {
	// arrange
	store := givenStore(t)
	engine := helper.GivenEngine(t, store)
	book := helper.GivenBook(t, engine, "Dune", "Frank Herbert")
	alice := helper.GivenBorrower(t, engine, "Alice")
	helper.GivenLoan(t, engine, alice.ID, book.ID)

	// act
	restarted := helper.GivenEngine(t, store)

	// assert
	restored, found := restarted.Book(book.ID)
	require.True(t, found)
	assert.False(t, restored.Available)

	borrower, found := restarted.Borrower(alice.ID)
	require.True(t, found)
	assert.True(t, borrower.Holds(book.ID))
}
