package integrity

import (
	"context"
	"errors"

	"datakit/core/storage"
	"datakit/feature/integrity/checks"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ErrStorageDisabled is returned by storage checks when no object store is configured.
var ErrStorageDisabled = errors.New("object storage is disabled")

// Service handles integrity checks.
type Service struct {
	client storage.Client
	bucket string
	object string
	region string
	db     *gorm.DB
	models []any
	logger *zap.Logger
}

// NewService creates a new integrity service. client may be nil when storage is disabled.
func NewService(client storage.Client, bucket, object, region string, db *gorm.DB, logger *zap.Logger, models ...any) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		client: client,
		bucket: bucket,
		object: object,
		region: region,
		db:     db,
		models: models,
		logger: logger,
	}
}

// CheckSchema compares the registered models with the database.
func (s *Service) CheckSchema() (*checks.SchemaReport, error) {
	return checks.CheckSchema(s.db, s.models...)
}

// CheckStorage reports on the snapshot bucket and object.
func (s *Service) CheckStorage(ctx context.Context) (*checks.StorageReport, error) {
	if s.client == nil {
		return nil, ErrStorageDisabled
	}
	return checks.CheckStorage(ctx, s.client, s.bucket, s.object)
}

// FixStorage creates the snapshot bucket.
func (s *Service) FixStorage(ctx context.Context) error {
	if s.client == nil {
		return ErrStorageDisabled
	}
	return checks.FixStorage(ctx, s.client, s.bucket, s.region, s.logger)
}
