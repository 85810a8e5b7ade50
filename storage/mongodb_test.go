package storage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestNewMongoDB_InvalidURI(t *testing.T) {
	logger := zap.NewNop().Sugar()

	_, err := NewMongoDB("invalid-uri", "testdb", 10, time.Second, logger)

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to connect to MongoDB")
}
