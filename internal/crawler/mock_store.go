package crawler

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// MockPageStore is a testify mock of PageStore.
type MockPageStore struct {
	mock.Mock
}

// InsertUnvisited is the mock implementation of InsertUnvisited.
func (m *MockPageStore) InsertUnvisited(ctx context.Context, url string) (PageID, error) {
	args := m.Called(ctx, url)
	return args.Get(0).(PageID), args.Error(1)
}

// LeaseNext is the mock implementation of LeaseNext.
func (m *MockPageStore) LeaseNext(ctx context.Context) (PageID, string, bool, error) {
	args := m.Called(ctx)
	return args.Get(0).(PageID), args.String(1), args.Bool(2), args.Error(3)
}

// MarkLeased is the mock implementation of MarkLeased.
func (m *MockPageStore) MarkLeased(ctx context.Context, id PageID) error {
	args := m.Called(ctx, id)
	return args.Error(0) //nolint:wrapcheck
}

// Release is the mock implementation of Release.
func (m *MockPageStore) Release(ctx context.Context, id PageID) error {
	args := m.Called(ctx, id)
	return args.Error(0) //nolint:wrapcheck
}

// RecordVisited is the mock implementation of RecordVisited.
func (m *MockPageStore) RecordVisited(ctx context.Context, id PageID, content string, links []string) error {
	args := m.Called(ctx, id, content, links)
	return args.Error(0) //nolint:wrapcheck
}

// IsFrontierEmpty is the mock implementation of IsFrontierEmpty.
func (m *MockPageStore) IsFrontierEmpty(ctx context.Context) (bool, error) {
	args := m.Called(ctx)
	return args.Bool(0), args.Error(1)
}

// CountInboundLinks is the mock implementation of CountInboundLinks.
func (m *MockPageStore) CountInboundLinks(ctx context.Context, id PageID) (int, error) {
	args := m.Called(ctx, id)
	return args.Int(0), args.Error(1)
}

// Search is the mock implementation of Search.
func (m *MockPageStore) Search(ctx context.Context, query string, limit int) ([]Page, error) {
	args := m.Called(ctx, query, limit)
	pages, _ := args.Get(0).([]Page)
	return pages, args.Error(1)
}

// Pages is the mock implementation of Pages.
func (m *MockPageStore) Pages(ctx context.Context) ([]Page, error) {
	args := m.Called(ctx)
	pages, _ := args.Get(0).([]Page)
	return pages, args.Error(1)
}

// Close is the mock implementation of Close.
func (m *MockPageStore) Close() error {
	args := m.Called()
	return args.Error(0) //nolint:wrapcheck
}
