package checks

import (
	"context"
	"errors"
	"testing"

	"datakit/core/storage/mocks"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func listing(objs ...minio.ObjectInfo) <-chan minio.ObjectInfo {
	ch := make(chan minio.ObjectInfo, len(objs))
	for _, o := range objs {
		ch <- o
	}
	close(ch)
	return ch
}

func TestCheckStorage(t *testing.T) {
	ctx := context.Background()
	object := "snapshots/stories.json"
	lookup := minio.ListObjectsOptions{Prefix: object, MaxKeys: 1}

	t.Run("Snapshot Present", func(t *testing.T) {
		m := new(mocks.Client)
		m.On("BucketExists", ctx, "datakit").Return(true, nil)
		m.On("ListObjects", ctx, "datakit", lookup).Return(listing(minio.ObjectInfo{Key: object}))

		report, err := CheckStorage(ctx, m, "datakit", object)
		require.NoError(t, err)
		assert.True(t, report.BucketExists)
		assert.True(t, report.SnapshotExists)
	})

	t.Run("Only Prefix Match", func(t *testing.T) {
		m := new(mocks.Client)
		m.On("BucketExists", ctx, "datakit").Return(true, nil)
		m.On("ListObjects", ctx, "datakit", lookup).Return(listing(minio.ObjectInfo{Key: object + ".bak"}))

		report, err := CheckStorage(ctx, m, "datakit", object)
		require.NoError(t, err)
		assert.False(t, report.SnapshotExists)
	})

	t.Run("Bucket Missing", func(t *testing.T) {
		m := new(mocks.Client)
		m.On("BucketExists", ctx, "datakit").Return(false, nil)

		report, err := CheckStorage(ctx, m, "datakit", object)
		require.NoError(t, err)
		assert.False(t, report.BucketExists)
		m.AssertNotCalled(t, "ListObjects", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("Listing Error", func(t *testing.T) {
		m := new(mocks.Client)
		m.On("BucketExists", ctx, "datakit").Return(true, nil)
		m.On("ListObjects", ctx, "datakit", lookup).Return(listing(minio.ObjectInfo{Err: errors.New("denied")}))

		_, err := CheckStorage(ctx, m, "datakit", object)
		assert.ErrorContains(t, err, "denied")
	})

	t.Run("Bucket Check Error", func(t *testing.T) {
		m := new(mocks.Client)
		m.On("BucketExists", ctx, "datakit").Return(false, errors.New("connection refused"))

		_, err := CheckStorage(ctx, m, "datakit", object)
		assert.Error(t, err)
	})
}

func TestFixStorage(t *testing.T) {
	ctx := context.Background()

	m := new(mocks.Client)
	m.On("BucketExists", ctx, "datakit").Return(false, nil)
	m.On("MakeBucket", ctx, "datakit", minio.MakeBucketOptions{Region: "us-east-1"}).Return(nil)

	require.NoError(t, FixStorage(ctx, m, "datakit", "us-east-1", zap.NewNop()))
	m.AssertExpectations(t)

	failing := new(mocks.Client)
	failing.On("BucketExists", ctx, "datakit").Return(false, nil)
	failing.On("MakeBucket", ctx, "datakit", mock.Anything).Return(errors.New("quota"))
	assert.Error(t, FixStorage(ctx, failing, "datakit", "", zap.NewNop()))
}
