package db

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"geo-challenge/internal/config"
)

func TestPoolConfig(t *testing.T) {
	cfg := &config.DatabaseConfig{
		Host:             "db",
		Port:             5432,
		User:             "geo",
		Password:         "secret",
		Name:             "geo",
		PoolSize:         20,
		StatementTimeout: 1500 * time.Millisecond,
	}

	pc, err := PoolConfig(cfg)
	require.NoError(t, err)
	assert.Equal(t, int32(20), pc.MaxConns)
	assert.Equal(t, int32(5), pc.MinConns)
	assert.Equal(t, 10*time.Second, pc.ConnConfig.ConnectTimeout)
	assert.Equal(t, time.Hour, pc.MaxConnLifetime)
	assert.Equal(t, "geo-challenge", pc.ConnConfig.RuntimeParams["application_name"])
	assert.Equal(t, "1500", pc.ConnConfig.RuntimeParams["statement_timeout"])
	assert.Equal(t, "1500", pc.ConnConfig.RuntimeParams["lock_timeout"])
}

func TestPoolConfig_NoStatementTimeout(t *testing.T) {
	pc, err := PoolConfig(&config.DatabaseConfig{Host: "db", Port: 5432, User: "geo", Name: "geo", PoolSize: 2})
	require.NoError(t, err)
	assert.Equal(t, int32(1), pc.MinConns)
	_, ok := pc.ConnConfig.RuntimeParams["statement_timeout"]
	assert.False(t, ok)
}
