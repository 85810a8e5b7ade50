package storage

import (
	"context"

	"github.com/stretchr/testify/mock"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type mockCollection struct {
	mock.Mock
}

func (m *mockCollection) Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) (Cursor, error) {
	args := m.Called(ctx, filter, opts)
	if c := args.Get(0); c != nil {
		return c.(Cursor), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockCollection) FindOne(ctx context.Context, filter interface{}, opts ...*options.FindOneOptions) SingleResult {
	args := m.Called(ctx, filter)
	return args.Get(0).(SingleResult)
}

func (m *mockCollection) InsertOne(ctx context.Context, document interface{}, opts ...*options.InsertOneOptions) (*mongo.InsertOneResult, error) {
	args := m.Called(ctx, document)
	res, _ := args.Get(0).(*mongo.InsertOneResult)
	return res, args.Error(1)
}

func (m *mockCollection) UpdateOne(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) (*mongo.UpdateResult, error) {
	args := m.Called(ctx, filter, update)
	res, _ := args.Get(0).(*mongo.UpdateResult)
	return res, args.Error(1)
}

func (m *mockCollection) DeleteOne(ctx context.Context, filter interface{}, opts ...*options.DeleteOptions) (*mongo.DeleteResult, error) {
	args := m.Called(ctx, filter)
	res, _ := args.Get(0).(*mongo.DeleteResult)
	return res, args.Error(1)
}

func (m *mockCollection) CountDocuments(ctx context.Context, filter interface{}, opts ...*options.CountOptions) (int64, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockCollection) CreateIndexes(ctx context.Context, models []mongo.IndexModel) ([]string, error) {
	args := m.Called(ctx, models)
	names, _ := args.Get(0).([]string)
	return names, args.Error(1)
}

// mockCursor copies fill into the results slice on All
type mockCursor struct {
	mock.Mock
	fill func(results interface{})
}

func (m *mockCursor) All(ctx context.Context, results interface{}) error {
	if m.fill != nil {
		m.fill(results)
	}
	return m.Called(ctx, results).Error(0)
}

func (m *mockCursor) Close(ctx context.Context) error { return nil }
func (m *mockCursor) Err() error                      { return nil }
func (m *mockCursor) Next(ctx context.Context) bool   { return false }
func (m *mockCursor) Decode(v interface{}) error      { return nil }

// singleResult decodes by calling fill, or returns err
type singleResult struct {
	fill func(v interface{})
	err  error
}

func (s *singleResult) Decode(v interface{}) error {
	if s.err != nil {
		return s.err
	}
	if s.fill != nil {
		s.fill(v)
	}
	return nil
}
