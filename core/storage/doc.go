// Package storage provides an abstraction layer for object storage services.
//
// It wraps the MinIO Go client behind the Client interface, which the mirror uses to
// export snapshots and to read them back as a reconciliation source. It works with AWS S3
// and self-hosted MinIO instances.
//
// # Helpers
//
//   - EnsureBucket: creates the snapshot bucket when missing.
//   - PutJSON / GetJSON: JSON objects encoded with goccy/go-json.
//   - List: object listing under a prefix.
//
// # Usage
//
//	client, err := storage.NewClient(cfg.Storage)
//	err = storage.EnsureBucket(ctx, client, cfg.Storage.Bucket, cfg.Storage.Region)
//	_, err = storage.PutJSON(ctx, client, cfg.Storage.Bucket, "snapshots/latest.json", stories)
package storage
