// Package config loads redisctl profiles: named credential sets for Cloud
// accounts and Enterprise clusters, stored in one YAML file. Secret values
// may be literal, ${ENV} references, or keyring: references resolved through
// the OS credential store.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/zalando/go-keyring"
	"gopkg.in/yaml.v3"

	"github.com/dwsmith1983/redisctl/pkg/types"
)

// keyringService namespaces redisctl entries in the OS credential store.
const keyringService = "redisctl"

// keyringPrefix marks a secret value that lives in the OS credential store.
const keyringPrefix = "keyring:"

// Duration wraps time.Duration with YAML "30s"-style parsing.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Resilience tunes the circuit breaker wrapped around a profile's client.
type Resilience struct {
	FailureThreshold uint32   `yaml:"failure_threshold,omitempty"`
	OpenTimeout      Duration `yaml:"open_timeout,omitempty"`
	HalfOpenRequests uint32   `yaml:"half_open_requests,omitempty"`
}

// Profile is one named credential set. Which fields apply depends on the
// deployment: cloud profiles use the api_key pair, enterprise profiles use
// url plus basic-auth credentials.
type Profile struct {
	Deployment types.Platform `yaml:"deployment"`

	// Cloud credentials.
	APIKey    string `yaml:"api_key,omitempty"`
	APISecret string `yaml:"api_secret,omitempty"`
	// APIURL overrides the public Cloud endpoint, mainly for testing.
	APIURL string `yaml:"api_url,omitempty"`

	// Enterprise connection.
	URL      string `yaml:"url,omitempty"`
	Username string `yaml:"username,omitempty"`
	Password string `yaml:"password,omitempty"`
	Insecure bool   `yaml:"insecure,omitempty"`

	Resilience *Resilience `yaml:"resilience,omitempty"`
}

// File is the on-disk configuration document.
type File struct {
	DefaultProfile string              `yaml:"default_profile,omitempty"`
	Profiles       map[string]*Profile `yaml:"profiles"`
}

// Path returns the config file location: $REDISCTL_CONFIG when set, else
// ~/.config/redisctl/config.yaml.
func Path() (string, error) {
	if p := os.Getenv("REDISCTL_CONFIG"); p != "" {
		return p, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolving home directory: %w", err)
	}
	return filepath.Join(home, ".config", "redisctl", "config.yaml"), nil
}

// Load reads and parses the config file. A missing file is not an error; it
// yields an empty File so env-only setups work without touching disk.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &File{Profiles: map[string]*Profile{}}, nil
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if f.Profiles == nil {
		f.Profiles = map[string]*Profile{}
	}
	return &f, nil
}

// Save writes the file back, creating parent directories as needed. Secret
// references are stored as written; Save never persists resolved secrets.
func (f *File) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	data, err := yaml.Marshal(f)
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	return os.WriteFile(path, data, 0o600)
}

// ProfileNames returns the profile names in stable sorted order.
func (f *File) ProfileNames() []string {
	names := make([]string, 0, len(f.Profiles))
	for name := range f.Profiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Resolve picks a profile by name (or the default when name is empty),
// applies REDISCTL_* environment overrides, and resolves secret references.
// The returned Profile is a copy; the file's stored values are untouched.
func (f *File) Resolve(name string) (*Profile, error) {
	if name == "" {
		name = os.Getenv("REDISCTL_PROFILE")
	}
	if name == "" {
		name = f.DefaultProfile
	}

	var p Profile
	if name != "" {
		stored, ok := f.Profiles[name]
		if !ok {
			return nil, fmt.Errorf("profile %q not found (have: %s)", name, strings.Join(f.ProfileNames(), ", "))
		}
		p = *stored
	}

	applyEnvOverrides(&p)

	if !p.Deployment.Valid() {
		return nil, fmt.Errorf("profile %q has no valid deployment (want cloud or enterprise)", name)
	}

	var err error
	for _, field := range []*string{&p.APIKey, &p.APISecret, &p.Password, &p.Username} {
		if *field, err = resolveSecret(*field); err != nil {
			return nil, err
		}
	}
	return &p, nil
}

// applyEnvOverrides layers REDISCTL_* variables over the stored profile.
// Environment always wins, so CI can run with no config file at all.
func applyEnvOverrides(p *Profile) {
	set := func(dst *string, key string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	set(&p.APIKey, "REDISCTL_CLOUD_API_KEY")
	set(&p.APISecret, "REDISCTL_CLOUD_API_SECRET")
	set(&p.APIURL, "REDISCTL_CLOUD_URL")
	set(&p.URL, "REDISCTL_ENTERPRISE_URL")
	set(&p.Username, "REDISCTL_ENTERPRISE_USER")
	set(&p.Password, "REDISCTL_ENTERPRISE_PASSWORD")
	if v := os.Getenv("REDISCTL_ENTERPRISE_INSECURE"); v == "true" || v == "1" {
		p.Insecure = true
	}

	if p.Deployment == "" {
		switch {
		case p.APIKey != "" && p.APISecret != "":
			p.Deployment = types.PlatformCloud
		case p.URL != "":
			p.Deployment = types.PlatformEnterprise
		}
	}
}

// resolveSecret turns a stored value into a usable one: keyring:account is
// looked up in the OS credential store, ${VAR} is expanded from the
// environment, anything else passes through.
func resolveSecret(v string) (string, error) {
	if account, ok := strings.CutPrefix(v, keyringPrefix); ok {
		secret, err := keyring.Get(keyringService, account)
		if err != nil {
			return "", fmt.Errorf("keyring lookup for %q: %w", account, err)
		}
		return secret, nil
	}
	if strings.Contains(v, "${") {
		return os.ExpandEnv(v), nil
	}
	return v, nil
}

// StoreSecret saves a secret in the OS credential store and returns the
// reference to write into the profile.
func StoreSecret(account, secret string) (string, error) {
	if err := keyring.Set(keyringService, account, secret); err != nil {
		return "", fmt.Errorf("storing secret for %q: %w", account, err)
	}
	return keyringPrefix + account, nil
}
