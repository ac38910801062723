package mocks

import (
	"cmp"
	"context"

	"github.com/stretchr/testify/mock"
)

// Store is a mock implementation of reconcile.Store
type Store[T any, K cmp.Ordered] struct {
	mock.Mock
}

func (m *Store[T, K]) AllOrdered(ctx context.Context) ([]*T, error) {
	args := m.Called(ctx)
	if recs, ok := args.Get(0).([]*T); ok {
		return recs, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *Store[T, K]) FindOne(ctx context.Context, key K) (*T, error) {
	args := m.Called(ctx, key)
	if rec, ok := args.Get(0).(*T); ok {
		return rec, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *Store[T, K]) Insert(rec *T) error {
	args := m.Called(rec)
	return args.Error(0)
}

func (m *Store[T, K]) Update(rec *T) error {
	args := m.Called(rec)
	return args.Error(0)
}

func (m *Store[T, K]) Delete(rec *T) error {
	args := m.Called(rec)
	return args.Error(0)
}

func (m *Store[T, K]) Commit(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *Store[T, K]) Rollback() {
	m.Called()
}
