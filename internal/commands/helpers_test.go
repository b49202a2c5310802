package commands

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dwsmith1983/redisctl/internal/operation"
)

func TestReadBodyInline(t *testing.T) {
	body, err := readBody(`{"name":"cache"}`)
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"cache"}`, string(body))
}

func TestReadBodyFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "req.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"memory":512}`), 0o600))

	body, err := readBody("@" + path)
	require.NoError(t, err)
	assert.JSONEq(t, `{"memory":512}`, string(body))
}

func TestReadBodyMissingFile(t *testing.T) {
	_, err := readBody("@/does/not/exist.json")
	require.Error(t, err)
	assert.Equal(t, operation.KindValidation, operation.KindOf(err))
}

func TestReadBodyRejectsInvalidJSON(t *testing.T) {
	_, err := readBody(`{"name":`)
	require.Error(t, err)
	assert.Equal(t, operation.KindValidation, operation.KindOf(err))
}

func TestReadBodyRequired(t *testing.T) {
	_, err := readBody("")
	require.Error(t, err)
}

func TestResourceIDExtraction(t *testing.T) {
	id, err := resourceID([]byte(`{"resourceId":42}`))
	require.NoError(t, err)
	assert.Equal(t, "42", id)

	id, err = resourceID([]byte(`{"id":7,"name":"db"}`))
	require.NoError(t, err)
	assert.Equal(t, "7", id)

	id, err = resourceID([]byte(`{"response":{"resourceId":99}}`))
	require.NoError(t, err)
	assert.Equal(t, "99", id)

	id, err = resourceID([]byte(`{"uid":12,"status":"active"}`))
	require.NoError(t, err)
	assert.Equal(t, "12", id)

	_, err = resourceID([]byte(`{"name":"no id here"}`))
	require.Error(t, err)
}

func TestRedact(t *testing.T) {
	assert.Equal(t, "", redact(""))
	assert.Equal(t, "********", redact("super-secret"))
	assert.Equal(t, "keyring:prod-secret", redact("keyring:prod-secret"))
	assert.Equal(t, "${CLOUD_SECRET}", redact("${CLOUD_SECRET}"))
}

func TestRootCommandTree(t *testing.T) {
	root := NewRootCmd("test")
	for _, name := range []string{"profile", "cloud", "enterprise", "workflow", "api", "mcp"} {
		cmd, _, err := root.Find([]string{name})
		require.NoError(t, err, name)
		assert.Equal(t, name, cmd.Name())
	}

	// Mutating commands carry the wait flags.
	create, _, err := root.Find([]string{"cloud", "subscription", "create"})
	require.NoError(t, err)
	for _, flag := range []string{"wait", "wait-timeout", "wait-interval", "data"} {
		assert.NotNil(t, create.Flags().Lookup(flag), flag)
	}
}
