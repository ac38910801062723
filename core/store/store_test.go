package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"datakit/core/database"
	"datakit/core/reconcile"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type widget struct {
	ID    int64 `gorm:"primaryKey;autoIncrement:false"`
	Name  string
	Score int
}

func memoryConfig() database.Config {
	return database.Config{Driver: database.DriverSQLite, Name: ":memory:", AutoMigrate: true}
}

func newTestRepo(t *testing.T) (*Container, *Repo[widget, int64]) {
	t.Helper()

	c := NewContainer(memoryConfig(), nil, &widget{})
	require.NoError(t, c.Load(context.Background()))
	t.Cleanup(func() { _ = c.Close() })

	main, err := c.MainContext()
	require.NoError(t, err)

	repo, err := NewRepo[widget, int64](main)
	require.NoError(t, err)
	return c, repo
}

func seed(t *testing.T, repo *Repo[widget, int64], ids ...int64) {
	t.Helper()
	for _, id := range ids {
		require.NoError(t, repo.Insert(&widget{ID: id, Name: "seed", Score: int(id)}))
	}
	require.NoError(t, repo.Commit(context.Background()))
}

func keys(t *testing.T, repo *Repo[widget, int64]) []int64 {
	t.Helper()
	recs, err := repo.AllOrdered(context.Background())
	require.NoError(t, err)
	out := make([]int64, 0, len(recs))
	for _, rec := range recs {
		out = append(out, rec.ID)
	}
	return out
}

func TestNewRepo(t *testing.T) {
	c := NewContainer(memoryConfig(), nil, &widget{})
	require.NoError(t, c.Load(context.Background()))
	defer c.Close()
	main, _ := c.MainContext()

	t.Run("Primary Key", func(t *testing.T) {
		repo, err := NewRepo[widget, int64](main)
		require.NoError(t, err)
		assert.Equal(t, "id", repo.KeyColumn())
		assert.Equal(t, "widgets", repo.Table())
	})

	t.Run("Key Column Override", func(t *testing.T) {
		repo, err := NewRepo[widget, string](main, WithKeyColumn("name"))
		require.NoError(t, err)
		assert.Equal(t, "name", repo.KeyColumn())
		assert.Equal(t, "seed", repo.Key(&widget{Name: "seed"}))
	})

	t.Run("Unknown Key Column", func(t *testing.T) {
		_, err := NewRepo[widget, string](main, WithKeyColumn("missing"))
		assert.ErrorIs(t, err, ErrUnknownColumn)
	})

	t.Run("Key Type Mismatch", func(t *testing.T) {
		_, err := NewRepo[widget, string](main)
		assert.Error(t, err)
	})
}

func TestRepo_CRUD(t *testing.T) {
	ctx := context.Background()
	_, repo := newTestRepo(t)
	seed(t, repo, 3, 1, 2)

	assert.Equal(t, []int64{1, 2, 3}, keys(t, repo))

	rec, err := repo.FindOne(ctx, 2)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, int64(2), repo.Key(rec))

	missing, err := repo.FindOne(ctx, 42)
	require.NoError(t, err)
	assert.Nil(t, missing)

	rec.Name = "renamed"
	require.NoError(t, repo.Update(rec))
	require.NoError(t, repo.Delete(&widget{ID: 3}))
	require.NoError(t, repo.Commit(ctx))

	assert.Equal(t, []int64{1, 2}, keys(t, repo))
	rec, _ = repo.FindOne(ctx, 2)
	assert.Equal(t, "renamed", rec.Name)

	n, err := repo.Count(ctx, Query{Where: "name = ?", Args: []any{"seed"}})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestRepo_Queries(t *testing.T) {
	ctx := context.Background()
	_, repo := newTestRepo(t)
	seed(t, repo, 1, 2, 3, 4, 5)

	t.Run("Order And Limit", func(t *testing.T) {
		recs, err := repo.All(ctx, Query{Order: []Order{{Column: "Score", Desc: true}}, Limit: 2})
		require.NoError(t, err)
		require.Len(t, recs, 2)
		assert.Equal(t, int64(5), recs[0].ID)
		assert.Equal(t, int64(4), recs[1].ID)
	})

	t.Run("Unknown Order Column", func(t *testing.T) {
		_, err := repo.All(ctx, Query{Order: []Order{{Column: "nope"}}})
		assert.ErrorIs(t, err, ErrUnknownColumn)
	})

	t.Run("Fetch By Keys", func(t *testing.T) {
		recs, err := repo.FetchByKeys(ctx, []int64{4, 2, 9})
		require.NoError(t, err)
		require.Len(t, recs, 2)
		assert.Equal(t, int64(2), recs[0].ID)
		assert.Equal(t, int64(4), recs[1].ID)

		none, err := repo.FetchByKeys(ctx, nil)
		require.NoError(t, err)
		assert.Empty(t, none)
	})

	t.Run("Async", func(t *testing.T) {
		done := make(chan []*widget, 1)
		require.NoError(t, repo.AllAsync(ctx, Query{Where: "score > ?", Args: []any{3}}, func(recs []*widget, err error) {
			assert.NoError(t, err)
			done <- recs
		}))
		assert.Len(t, <-done, 2)
	})
}

func TestRepo_SetField(t *testing.T) {
	ctx := context.Background()
	_, repo := newTestRepo(t)
	seed(t, repo, 1)

	rec, err := repo.FindOne(ctx, 1)
	require.NoError(t, err)

	require.NoError(t, repo.SetField(rec, "score", 99))
	require.NoError(t, repo.SetField(rec, "Name", "patched"))
	assert.ErrorIs(t, repo.SetField(rec, "color", "red"), ErrUnknownColumn)

	require.NoError(t, repo.Commit(ctx))

	rec, _ = repo.FindOne(ctx, 1)
	assert.Equal(t, 99, rec.Score)
	assert.Equal(t, "patched", rec.Name)
}

func TestRepo_NewAndDeleteAll(t *testing.T) {
	ctx := context.Background()
	_, repo := newTestRepo(t)
	seed(t, repo, 1, 2)

	rec, err := repo.New()
	require.NoError(t, err)
	rec.ID = 7
	rec.Name = "fresh"
	require.NoError(t, repo.Commit(ctx))
	assert.Equal(t, []int64{1, 2, 7}, keys(t, repo))

	n, err := repo.DeleteAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.True(t, repo.Context().HasChanges())

	require.NoError(t, repo.Commit(ctx))
	assert.Empty(t, keys(t, repo))
}

func TestRepo_ApplyBatch(t *testing.T) {
	ctx := context.Background()
	_, repo := newTestRepo(t)
	seed(t, repo, 1, 2, 3)

	err := repo.ApplyBatch(ctx,
		[]*widget{{ID: 4, Name: "four"}, {ID: 5, Name: "five"}},
		[]*widget{{ID: 2, Name: "two"}},
		[]*widget{{ID: 1}, {ID: 3}},
	)
	require.NoError(t, err)

	assert.Equal(t, []int64{2, 4, 5}, keys(t, repo))
	rec, _ := repo.FindOne(ctx, 2)
	assert.Equal(t, "two", rec.Name)
}

func TestRepo_ApplyBatchIsAtomic(t *testing.T) {
	ctx := context.Background()
	_, repo := newTestRepo(t)
	seed(t, repo, 1, 2)

	// Inserting an existing key violates the primary key after the delete ran.
	err := repo.ApplyBatch(ctx, []*widget{{ID: 2}}, nil, []*widget{{ID: 1}})
	assert.ErrorIs(t, err, reconcile.ErrCommitFailed)

	assert.Equal(t, []int64{1, 2}, keys(t, repo))
}

func TestRepo_Reconcile(t *testing.T) {
	ctx := context.Background()
	_, repo := newTestRepo(t)
	seed(t, repo, 1, 2, 4, 5)

	inputs := []widget{{ID: 2, Name: "b"}, {ID: 3, Name: "c"}, {ID: 4, Name: "d"}}
	res, err := reconcile.ReconcileMany(ctx, repo, widgetAdapter{}, inputs, reconcile.Options{})
	require.NoError(t, err)

	assert.Equal(t, 1, res.Inserted)
	assert.Equal(t, 2, res.Updated)
	assert.Equal(t, 2, res.Deleted)
	assert.Equal(t, []int64{2, 3, 4}, keys(t, repo))
}

type widgetAdapter struct{}

func (widgetAdapter) Name() string { return "widgets" }
func (widgetAdapter) InputKey(in widget) (int64, error) { return in.ID, nil }
func (widgetAdapter) RecordKey(rec *widget) int64 { return rec.ID }
func (widgetAdapter) NewRecord(key int64) *widget { return &widget{ID: key} }
func (widgetAdapter) Apply(dst *widget, in widget) { dst.Name, dst.Score = in.Name, in.Score }

func TestContext_Coalescing(t *testing.T) {
	_, repo := newTestRepo(t)
	cx := repo.Context()

	rec := &widget{ID: 1}
	require.NoError(t, cx.Insert(rec))
	require.NoError(t, cx.Update(rec))
	ins, upd, del := cx.Pending()
	assert.Equal(t, [3]int{1, 0, 0}, [3]int{ins, upd, del})

	// Deleting a staged insert cancels it.
	require.NoError(t, cx.Delete(rec))
	assert.False(t, cx.HasChanges())

	other := &widget{ID: 2}
	require.NoError(t, cx.Update(other))
	require.NoError(t, cx.Delete(other))
	assert.Error(t, cx.Update(other))
	ins, upd, del = cx.Pending()
	assert.Equal(t, [3]int{0, 0, 1}, [3]int{ins, upd, del})

	cx.Rollback()
	assert.False(t, cx.HasChanges())

	assert.Error(t, cx.Insert(widget{ID: 3}))
}

func TestContext_CommitWithoutChanges(t *testing.T) {
	_, repo := newTestRepo(t)
	assert.NoError(t, repo.Context().Commit(context.Background()))
}

func TestContext_CommitAsync(t *testing.T) {
	_, repo := newTestRepo(t)
	require.NoError(t, repo.Insert(&widget{ID: 9}))

	require.NoError(t, <-repo.Context().CommitAsync(context.Background()))
	assert.Equal(t, []int64{9}, keys(t, repo))
}

func TestContext_CommitFailureRollsBackTransaction(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()

	db, err := gorm.Open(mysql.New(mysql.Config{Conn: sqlDB, SkipInitializeWithVersion: true}), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	cx := NewContext("test", db, nil)
	defer cx.Close()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO `widgets`").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO `widgets`").WillReturnError(errors.New("deadlock found"))
	mock.ExpectRollback()

	require.NoError(t, cx.Insert(&widget{ID: 1}))
	require.NoError(t, cx.Insert(&widget{ID: 2}))

	err = cx.Commit(context.Background())
	assert.ErrorIs(t, err, reconcile.ErrCommitFailed)
	assert.Contains(t, err.Error(), "deadlock found")

	// Failed changes stay staged for the caller to retry or roll back.
	assert.True(t, cx.HasChanges())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestContainer_NotLoaded(t *testing.T) {
	c := NewContainer(memoryConfig(), nil)

	_, err := c.MainContext()
	assert.ErrorIs(t, err, ErrNotLoaded)
	_, err = c.NewBackgroundContext()
	assert.ErrorIs(t, err, ErrNotLoaded)
	assert.NoError(t, c.Close())
}

func TestContainer_BackgroundTaskAndSaveAll(t *testing.T) {
	ctx := context.Background()
	c, repo := newTestRepo(t)

	err := c.PerformBackgroundTask(ctx, func(bg *Context) error {
		bgRepo, err := NewRepo[widget, int64](bg)
		if err != nil {
			return err
		}
		if err := bgRepo.Insert(&widget{ID: 1}); err != nil {
			return err
		}
		return bg.Commit(ctx)
	})
	require.NoError(t, err)
	assert.Equal(t, []int64{1}, keys(t, repo))

	require.NoError(t, repo.Insert(&widget{ID: 2}))
	require.NoError(t, c.SaveAll(ctx))
	assert.Equal(t, []int64{1, 2}, keys(t, repo))
	assert.False(t, repo.Context().HasChanges())
}

func TestContainer_ResetOnFailure(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.db")
	require.NoError(t, os.WriteFile(path, []byte("this is not a sqlite database, just plain bytes padding the header"), 0o644))

	cfg := database.Config{Driver: database.DriverSQLite, Name: path, AutoMigrate: true}

	t.Run("Without Reset", func(t *testing.T) {
		c := NewContainer(cfg, nil, &widget{})
		assert.Error(t, c.Load(context.Background()))
	})

	t.Run("With Reset", func(t *testing.T) {
		cfg.ResetOnFailure = true
		c := NewContainer(cfg, nil, &widget{})
		require.NoError(t, c.Load(context.Background()))
		defer c.Close()

		main, _ := c.MainContext()
		repo, err := NewRepo[widget, int64](main)
		require.NoError(t, err)
		seed(t, repo, 1)
		assert.Equal(t, []int64{1}, keys(t, repo))
	})
}

func TestContainer_ReadOnly(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "mirror.db")

	rw := NewContainer(database.Config{Driver: database.DriverSQLite, Name: path, AutoMigrate: true}, nil, &widget{})
	require.NoError(t, rw.Load(ctx))
	main, _ := rw.MainContext()
	repo, err := NewRepo[widget, int64](main)
	require.NoError(t, err)
	seed(t, repo, 1)
	require.NoError(t, rw.Close())

	ro := NewContainer(database.Config{Driver: database.DriverSQLite, Name: path, ReadOnly: true}, nil, &widget{})
	require.NoError(t, ro.Load(ctx))
	defer ro.Close()
	assert.True(t, ro.ReadOnly())

	main, _ = ro.MainContext()
	repo, err = NewRepo[widget, int64](main)
	require.NoError(t, err)
	assert.Equal(t, []int64{1}, keys(t, repo))

	require.NoError(t, repo.Insert(&widget{ID: 2}))
	err = repo.Commit(ctx)
	assert.ErrorIs(t, err, ErrReadOnly)
	assert.ErrorIs(t, err, reconcile.ErrCommitFailed)

	err = repo.ApplyBatch(ctx, []*widget{{ID: 3}}, nil, nil)
	assert.ErrorIs(t, err, ErrReadOnly)
}
