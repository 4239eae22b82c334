package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/ginchat/ginchat/frontend/internal/core/domain"
	"github.com/ginchat/ginchat/frontend/internal/infrastructure/crypto"
)

const (
	dirPerm  = 0o700
	filePerm = 0o600
)

// document is the on-disk layout. Exactly one of Values or Sealed is set.
type document struct {
	Version int               `json:"version"`
	Values  map[string]string `json:"values,omitempty"`
	Sealed  string            `json:"sealed,omitempty"`
}

// SessionRepository persists session keys as a single JSON document per
// profile. When a sealer is configured the key/value map is encrypted and bound
// to the profile name.
type SessionRepository struct {
	mu      sync.Mutex
	path    string
	profile string
	sealer  crypto.Sealer
}

var _ domain.KeyValueBackend = (*SessionRepository)(nil)

// NewSessionRepository stores the profile under dir/<profile>.session.json.
// A nil sealer writes plaintext.
func NewSessionRepository(dir, profile string, sealer crypto.Sealer) (*SessionRepository, error) {
	if profile == "" {
		profile = "default"
	}
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return nil, fmt.Errorf("file: create session dir: %w", err)
	}
	return &SessionRepository{
		path:    filepath.Join(dir, profile+".session.json"),
		profile: profile,
		sealer:  sealer,
	}, nil
}

// DefaultDir resolves the per-user configuration directory.
func DefaultDir() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("file: resolve config dir: %w", err)
	}
	return filepath.Join(base, "ginchat"), nil
}

func (r *SessionRepository) Path() string { return r.path }

func (r *SessionRepository) Load(ctx context.Context, key string) (string, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	values, err := r.read(ctx)
	if err != nil {
		return "", false, err
	}
	v, ok := values[key]
	return v, ok, nil
}

func (r *SessionRepository) Store(ctx context.Context, values map[string]string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, err := r.read(ctx)
	if err != nil {
		return err
	}
	for k, v := range values {
		current[k] = v
	}
	return r.write(ctx, current)
}

func (r *SessionRepository) Delete(ctx context.Context, keys ...string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, err := r.read(ctx)
	if err != nil {
		return err
	}
	for _, k := range keys {
		delete(current, k)
	}
	if len(current) == 0 {
		if err := os.Remove(r.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("file: remove session: %w", err)
		}
		return nil
	}
	return r.write(ctx, current)
}

func (r *SessionRepository) read(ctx context.Context) (map[string]string, error) {
	raw, err := os.ReadFile(r.path)
	if errors.Is(err, fs.ErrNotExist) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("file: read session: %w", err)
	}

	var doc document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("file: corrupt session document: %w", err)
	}

	if doc.Sealed == "" {
		if doc.Values == nil {
			doc.Values = map[string]string{}
		}
		return doc.Values, nil
	}
	if r.sealer == nil {
		return nil, errors.New("file: session is sealed but no key is configured")
	}

	plain, err := r.sealer.Open(ctx, doc.Sealed, []byte(r.profile))
	if err != nil {
		return nil, err
	}
	values := map[string]string{}
	if err := json.Unmarshal(plain, &values); err != nil {
		return nil, fmt.Errorf("file: corrupt sealed payload: %w", err)
	}
	return values, nil
}

// write replaces the document atomically via a temp file in the same dir.
func (r *SessionRepository) write(ctx context.Context, values map[string]string) error {
	doc := document{Version: 1}
	if r.sealer == nil {
		doc.Values = values
	} else {
		plain, err := json.Marshal(values)
		if err != nil {
			return fmt.Errorf("file: encode session: %w", err)
		}
		doc.Sealed, err = r.sealer.Seal(ctx, plain, []byte(r.profile))
		if err != nil {
			return err
		}
	}

	raw, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("file: encode document: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(r.path), ".session-*.tmp")
	if err != nil {
		return fmt.Errorf("file: create temp: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := tmp.Chmod(filePerm); err != nil {
		tmp.Close()
		return fmt.Errorf("file: chmod temp: %w", err)
	}
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		return fmt.Errorf("file: write temp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("file: close temp: %w", err)
	}
	if err := os.Rename(tmp.Name(), r.path); err != nil {
		return fmt.Errorf("file: replace session: %w", err)
	}
	return nil
}
