// Package store is the persistence layer the reconciler writes through.
//
// It wraps a gorm connection with a small unit-of-work model: records are staged on a
// Context and written together by Commit inside one transaction.
//
// # Components
//
//   - Queue: serial task queue. Each Context owns one and confines its work to it.
//   - Context: staged inserts, updates and deletes plus Commit, CommitAsync and Rollback.
//   - Repo: typed view over one model. It implements reconcile.Store and
//     reconcile.BatchApplier, so it can be handed to the reconciler directly.
//   - Container: opens the database, migrates registered models and hands out contexts.
//
// # Loading
//
// Container.Load connects with database.Connect and runs AutoMigrate for the registered
// models. For SQLite files, ResetOnFailure removes a file that cannot be opened or
// migrated and loads again once. ReadOnly containers open SQLite with mode=ro and
// reject every commit with ErrReadOnly.
//
// # Usage
//
//	c := store.NewContainer(cfg.Database, log, &stories.Story{})
//	if err := c.Load(ctx); err != nil {
//	    return err
//	}
//	main, _ := c.MainContext()
//	repo, _ := store.NewRepo[stories.Story, int64](main)
//	res, err := reconcile.ReconcileMany(ctx, repo, stories.Adapter{}, payloads, reconcile.Options{})
package store
