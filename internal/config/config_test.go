package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dwsmith1983/redisctl/pkg/types"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadMissingFileIsEmpty(t *testing.T) {
	f, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Empty(t, f.Profiles)
	assert.Empty(t, f.DefaultProfile)
}

func TestLoadAndResolve(t *testing.T) {
	path := writeConfig(t, `
default_profile: prod
profiles:
  prod:
    deployment: cloud
    api_key: k-123
    api_secret: s-456
  lab:
    deployment: enterprise
    url: https://cluster.local:9443
    username: admin@example.com
    password: hunter2
    insecure: true
    resilience:
      failure_threshold: 10
      open_timeout: 45s
`)
	f, err := Load(path)
	require.NoError(t, err)

	p, err := f.Resolve("")
	require.NoError(t, err)
	assert.Equal(t, types.PlatformCloud, p.Deployment)
	assert.Equal(t, "k-123", p.APIKey)
	assert.Equal(t, "s-456", p.APISecret)

	p, err = f.Resolve("lab")
	require.NoError(t, err)
	assert.Equal(t, types.PlatformEnterprise, p.Deployment)
	assert.Equal(t, "https://cluster.local:9443", p.URL)
	assert.True(t, p.Insecure)
	require.NotNil(t, p.Resilience)
	assert.Equal(t, uint32(10), p.Resilience.FailureThreshold)
	assert.Equal(t, 45*time.Second, time.Duration(p.Resilience.OpenTimeout))
}

func TestResolveUnknownProfile(t *testing.T) {
	path := writeConfig(t, `
profiles:
  prod:
    deployment: cloud
    api_key: k
    api_secret: s
`)
	f, err := Load(path)
	require.NoError(t, err)

	_, err = f.Resolve("staging")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "prod")
}

func TestResolveEnvOverrides(t *testing.T) {
	path := writeConfig(t, `
default_profile: prod
profiles:
  prod:
    deployment: cloud
    api_key: from-file
    api_secret: from-file
`)
	t.Setenv("REDISCTL_CLOUD_API_KEY", "from-env")

	f, err := Load(path)
	require.NoError(t, err)
	p, err := f.Resolve("")
	require.NoError(t, err)
	assert.Equal(t, "from-env", p.APIKey)
	assert.Equal(t, "from-file", p.APISecret)
}

func TestResolveEnvOnly(t *testing.T) {
	// No config file at all: credentials come entirely from the environment
	// and the deployment is inferred from which ones are present.
	t.Setenv("REDISCTL_ENTERPRISE_URL", "https://cluster:9443")
	t.Setenv("REDISCTL_ENTERPRISE_USER", "admin")
	t.Setenv("REDISCTL_ENTERPRISE_PASSWORD", "pw")
	t.Setenv("REDISCTL_ENTERPRISE_INSECURE", "true")

	f := &File{Profiles: map[string]*Profile{}}
	p, err := f.Resolve("")
	require.NoError(t, err)
	assert.Equal(t, types.PlatformEnterprise, p.Deployment)
	assert.Equal(t, "admin", p.Username)
	assert.True(t, p.Insecure)
}

func TestResolveExpandsEnvReferences(t *testing.T) {
	path := writeConfig(t, `
profiles:
  prod:
    deployment: cloud
    api_key: plain-key
    api_secret: ${CLOUD_SECRET}
`)
	t.Setenv("CLOUD_SECRET", "expanded")

	f, err := Load(path)
	require.NoError(t, err)
	p, err := f.Resolve("prod")
	require.NoError(t, err)
	assert.Equal(t, "expanded", p.APISecret)
}

func TestResolveSelectsProfileFromEnv(t *testing.T) {
	path := writeConfig(t, `
default_profile: prod
profiles:
  prod:
    deployment: cloud
    api_key: prod-key
    api_secret: s
  staging:
    deployment: cloud
    api_key: staging-key
    api_secret: s
`)
	t.Setenv("REDISCTL_PROFILE", "staging")

	f, err := Load(path)
	require.NoError(t, err)
	p, err := f.Resolve("")
	require.NoError(t, err)
	assert.Equal(t, "staging-key", p.APIKey)
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	f := &File{
		DefaultProfile: "lab",
		Profiles: map[string]*Profile{
			"lab": {
				Deployment: types.PlatformEnterprise,
				URL:        "https://cluster:9443",
				Username:   "admin",
				Password:   "keyring:lab-password",
			},
		},
	}
	require.NoError(t, f.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "lab", loaded.DefaultProfile)
	// Secret references persist as references, never as resolved values.
	assert.Equal(t, "keyring:lab-password", loaded.Profiles["lab"].Password)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestProfileNamesSorted(t *testing.T) {
	f := &File{Profiles: map[string]*Profile{
		"zeta": {}, "alpha": {}, "mid": {},
	}}
	assert.Equal(t, []string{"alpha", "mid", "zeta"}, f.ProfileNames())
}
