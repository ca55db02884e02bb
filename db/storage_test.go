package db

import (
	"testing"

	"github.com/lockburn/bridge-relayer/db/pgstorage"
	"github.com/lockburn/bridge-relayer/utils/gerror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewStorageUnknownDatabase(t *testing.T) {
	_, err := NewStorage(Config{Database: "mysql"})
	assert.ErrorIs(t, err, gerror.ErrStorageNotRegister)
}

func TestNewStorage(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping postgres test in short mode")
	}
	cfg := pgstorage.NewConfigFromEnv()
	require.NoError(t, pgstorage.InitOrReset(cfg))

	storageCfg := Config{
		Database: "postgres",
		Name:     cfg.Name,
		User:     cfg.User,
		Password: cfg.Password,
		Host:     cfg.Host,
		Port:     cfg.Port,
		MaxConns: 20,
	}
	store, err := NewStorage(storageCfg)
	require.NoError(t, err)
	defer store.Close()
	assert.NoError(t, RunMigrations(storageCfg))
}
