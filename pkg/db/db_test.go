package db

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnectSQLite(t *testing.T) {
	gdb, err := Connect(&Config{Type: TypeSQLite, DSN: ":memory:"})
	require.NoError(t, err)

	var one int
	require.NoError(t, gdb.Raw("SELECT 1").Scan(&one).Error)
	assert.Equal(t, 1, one)
}

func TestConnectUnsupportedType(t *testing.T) {
	_, err := Connect(&Config{Type: "oracle", DSN: "x"})
	assert.Error(t, err)
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("OVERSIGHT_DB_TYPE", TypeMySQL)
	t.Setenv("OVERSIGHT_DB_DSN", "user:pw@tcp(dbhost)/redcap")

	cfg := ConfigFromEnv()
	assert.Equal(t, TypeMySQL, cfg.Type)
	assert.Equal(t, "user:pw@tcp(dbhost)/redcap", cfg.DSN)
	assert.Positive(t, cfg.MaxOpenConns)
}
