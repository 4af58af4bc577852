package database

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"bistro/auth/internal/config"
)

func TestNewPostgresPoolRejectsMalformedDSN(t *testing.T) {
	_, err := NewPostgresPool(context.Background(), config.DatabaseConfig{DSN: "postgres://%zz"})
	assert.ErrorContains(t, err, "parse postgres dsn")
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), config.DatabaseConfig{Driver: "mysql", DSN: "x"})
	assert.Error(t, err)
}
