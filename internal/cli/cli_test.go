package cli

import (
	"bytes"
	"context"
	"testing"

	"whatsjuju-chat/backend/internal/testdb"
	"whatsjuju-chat/backend/pkg/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func run(t *testing.T, db *gorm.DB, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd(func(*config.Config) (*gorm.DB, error) { return db, nil })

	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestSeedCommand(t *testing.T) {
	db := testdb.Open(t)

	out, err := run(t, db, "migrate")
	require.NoError(t, err)
	assert.Contains(t, out, "schema up to date")

	out, err = run(t, db, "seed")
	require.NoError(t, err)
	assert.Equal(t, "6 characters written\n", out)

	out, err = run(t, db, "seed")
	require.NoError(t, err)
	assert.Equal(t, "0 characters written\n", out)

	out, err = run(t, db, "seed", "--force")
	require.NoError(t, err)
	assert.Equal(t, "6 characters written\n", out)
}

func TestSettingsCommands(t *testing.T) {
	db := testdb.Open(t)

	_, err := run(t, db, "settings", "get", "openai_api_key")
	assert.Error(t, err)

	out, err := run(t, db, "settings", "set", "openai_api_key", "sk-test")
	require.NoError(t, err)
	assert.Equal(t, "openai_api_key updated\n", out)

	out, err = run(t, db, "settings", "get", "openai_api_key")
	require.NoError(t, err)
	assert.Equal(t, "sk-test\n", out)

	_, err = run(t, db, "settings", "set", "only-key")
	assert.Error(t, err)
}
