// Package credential stores the GitHub access token used for remote
// operations, in the OS keyring when one is available and in a private file
// under the state directory otherwise.
package credential

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/spf13/afero"
	"github.com/zalando/go-keyring"
	"gopkg.in/yaml.v3"

	"github.com/Iron-Ham/subforge/internal/errors"
)

// TokenKey is the key the GitHub token is stored under.
const TokenKey = "github-token"

// Backend names accepted by Open.
const (
	BackendAuto    = "auto"
	BackendKeyring = "keyring"
	BackendFile    = "file"
)

// ErrNotFound is returned by Get when no value is stored for the key.
var ErrNotFound = errors.Wrap(errors.ErrNotFound, "credential not stored")

// Store persists secrets by key.
type Store interface {
	Get(key string) (string, error)
	Set(key, value string) error
	Delete(key string) error
	// Name identifies the backend in diagnostics ("keyring" or "file").
	Name() string
}

// Open returns the store for backend. "auto" uses the OS keyring when it
// responds and the file at path otherwise.
func Open(backend string, fs afero.Fs, path string) (Store, error) {
	switch backend {
	case BackendKeyring:
		return NewKeyringStore(), nil
	case BackendFile:
		return NewFileStore(fs, path), nil
	case BackendAuto, "":
		ks := NewKeyringStore()
		if ks.Available() {
			return ks, nil
		}
		return NewFileStore(fs, path), nil
	default:
		return nil, fmt.Errorf("%w: unknown credential backend %q", errors.ErrInvalidInput, backend)
	}
}

// KeyringStore keeps secrets in the OS keyring (Keychain, Secret Service,
// Windows Credential Manager).
type KeyringStore struct {
	service string
}

// NewKeyringStore creates a KeyringStore under the "subforge" service.
func NewKeyringStore() *KeyringStore {
	return &KeyringStore{service: "subforge"}
}

// Available reports whether the keyring can be queried. A missing entry
// counts as available.
func (k *KeyringStore) Available() bool {
	_, err := keyring.Get(k.service, TokenKey)
	return err == nil || errors.Is(err, keyring.ErrNotFound)
}

// Get implements Store.
func (k *KeyringStore) Get(key string) (string, error) {
	v, err := keyring.Get(k.service, key)
	if errors.Is(err, keyring.ErrNotFound) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("keyring read failed: %w", err)
	}
	return v, nil
}

// Set implements Store.
func (k *KeyringStore) Set(key, value string) error {
	if err := keyring.Set(k.service, key, value); err != nil {
		return fmt.Errorf("keyring write failed: %w", err)
	}
	return nil
}

// Delete implements Store. Deleting a missing key is not an error.
func (k *KeyringStore) Delete(key string) error {
	err := keyring.Delete(k.service, key)
	if err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("keyring delete failed: %w", err)
	}
	return nil
}

// Name implements Store.
func (k *KeyringStore) Name() string { return BackendKeyring }

// FileStore keeps secrets in a YAML file readable only by the owner.
type FileStore struct {
	fs   afero.Fs
	path string
	mu   sync.Mutex
}

// NewFileStore creates a FileStore backed by path on fs.
func NewFileStore(fs afero.Fs, path string) *FileStore {
	return &FileStore{fs: fs, path: path}
}

// Path returns the backing file.
func (f *FileStore) Path() string { return f.path }

// Get implements Store.
func (f *FileStore) Get(key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	values, err := f.read()
	if err != nil {
		return "", err
	}
	v, ok := values[key]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

// Set implements Store.
func (f *FileStore) Set(key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	values, err := f.read()
	if err != nil {
		return err
	}
	values[key] = value
	return f.write(values)
}

// Delete implements Store. The file is removed once it holds no entries.
func (f *FileStore) Delete(key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	values, err := f.read()
	if err != nil {
		return err
	}
	if _, ok := values[key]; !ok {
		return nil
	}
	delete(values, key)
	if len(values) == 0 {
		if err := f.fs.Remove(f.path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove %s: %w", f.path, err)
		}
		return nil
	}
	return f.write(values)
}

// Name implements Store.
func (f *FileStore) Name() string { return BackendFile }

// Keys returns the stored keys, sorted.
func (f *FileStore) Keys() ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	values, err := f.read()
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

func (f *FileStore) read() (map[string]string, error) {
	data, err := afero.ReadFile(f.fs, f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("failed to read %s: %w", f.path, err)
	}
	values := map[string]string{}
	if err := yaml.Unmarshal(data, &values); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", f.path, err)
	}
	return values, nil
}

func (f *FileStore) write(values map[string]string) error {
	data, err := yaml.Marshal(values)
	if err != nil {
		return err
	}
	if err := f.fs.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return fmt.Errorf("failed to create %s: %w", filepath.Dir(f.path), err)
	}
	if err := afero.WriteFile(f.fs, f.path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write %s: %w", f.path, err)
	}
	// WriteFile keeps the mode of an existing file.
	return f.fs.Chmod(f.path, 0o600)
}
