package auth

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

const defaultKeysFile = "missionctl.keys.yaml"

type keysFile struct {
	DefaultPolicy struct {
		AllowLocalhostWithoutAuth *bool `yaml:"allow_localhost_without_auth"`
	} `yaml:"default_policy"`
	Clients map[string]clientKeys `yaml:"clients"`
}

type clientKeys struct {
	Keys []string `yaml:"keys"`
}

// Keyring maps bearer keys to named API clients (the dashboard, an agent
// runner, a CI job). Loopback traffic may bypass it entirely.
type Keyring struct {
	AllowLocalhostWithoutAuth bool
	keyToClient               map[string]string
}

func ResolveKeysPath() string {
	if v := strings.TrimSpace(os.Getenv("MC_KEYS_FILE")); v != "" {
		return v
	}
	return filepath.Join(".", defaultKeysFile)
}

func LoadKeyringFromEnv() (*Keyring, error) {
	return LoadKeyring(ResolveKeysPath())
}

func LoadKeyring(path string) (*Keyring, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return defaultKeyring(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			if _, err := BootstrapDevKey(path, "dev"); err != nil {
				return nil, fmt.Errorf("bootstrap dev key: %w", err)
			}
			data, err = os.ReadFile(path)
			if err != nil {
				return nil, fmt.Errorf("read keys file: %w", err)
			}
		} else {
			return nil, fmt.Errorf("read keys file: %w", err)
		}
	}
	var cfg keysFile
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse keys file: %w", err)
	}
	ring := &Keyring{
		AllowLocalhostWithoutAuth: true,
		keyToClient:               make(map[string]string),
	}
	if cfg.DefaultPolicy.AllowLocalhostWithoutAuth != nil {
		ring.AllowLocalhostWithoutAuth = *cfg.DefaultPolicy.AllowLocalhostWithoutAuth
	}
	for client, keys := range cfg.Clients {
		for _, key := range keys.Keys {
			key = strings.TrimSpace(key)
			if key == "" {
				continue
			}
			if existing, ok := ring.keyToClient[key]; ok && existing != client {
				return nil, fmt.Errorf("key reused across clients: %q", key)
			}
			ring.keyToClient[key] = client
		}
	}
	return ring, nil
}

func defaultKeyring() *Keyring {
	return &Keyring{AllowLocalhostWithoutAuth: true, keyToClient: make(map[string]string)}
}

func NewKeyring(allowLocalhost bool, keyToClient map[string]string) *Keyring {
	clone := make(map[string]string, len(keyToClient))
	for k, v := range keyToClient {
		clone[k] = v
	}
	return &Keyring{AllowLocalhostWithoutAuth: allowLocalhost, keyToClient: clone}
}

func (k *Keyring) ClientForKey(key string) (string, bool) {
	if k == nil {
		return "", false
	}
	client, ok := k.keyToClient[key]
	return client, ok
}
