package database

import (
	"testing"

	"github.com/smartspend/smartspend/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnectionUrl_EscapesCredentials(t *testing.T) {
	cfg := config.Database{Host: "db", Port: 5433, User: "smart", Pass: "p@ss'word", Name: "ledger"}

	assert.Equal(t, "postgres://smart:p%40ss%27word@db:5433/ledger?sslmode=disable", connectionUrl(cfg))
}

func TestFindMigrationsPath(t *testing.T) {
	path, err := findMigrationsPath()

	require.NoError(t, err)
	assert.DirExists(t, path)
	assert.FileExists(t, path+"/000001_init.up.sql")
}
