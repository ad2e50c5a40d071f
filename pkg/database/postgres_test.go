package database

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/kritika/pkg/config"
)

func TestNew_Disabled(t *testing.T) {
	db, err := New(context.Background(), config.DatabaseConfig{})
	assert.Nil(t, db)
	assert.ErrorIs(t, err, ErrDisabled)
}

func TestNew_InvalidURL(t *testing.T) {
	_, err := New(context.Background(), config.DatabaseConfig{URL: "::not a url::"})
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrDisabled)
}

func TestHealthCheck(t *testing.T) {
	url := os.Getenv("DATABASE_URL")
	if url == "" {
		t.Skip("DATABASE_URL not set, skipping integration test")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	db, err := New(ctx, config.DatabaseConfig{URL: url, MaxConns: 2, MinConns: 1})
	require.NoError(t, err)
	defer db.Close()

	status := db.HealthCheck(ctx)
	assert.True(t, status.Healthy)
	assert.Empty(t, status.Error)
}
