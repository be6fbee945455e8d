package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	berrors "github.com/atinyakov/vaultkeeper/internal/errors"
	"github.com/atinyakov/vaultkeeper/internal/models"
)

// fakeSecretStore serves an in-memory tree. Folders are derived from the
// leaf paths in secrets.
type fakeSecretStore struct {
	secrets  map[string]models.SecretContent
	authErr  error
	listErr  map[string]error
	readErr  map[string]error
	onRead   func(path string)
	readSeen []string
}

func (f *fakeSecretStore) Authenticate(context.Context, models.Credentials) error {
	return f.authErr
}

func (f *fakeSecretStore) List(_ context.Context, p string) ([]string, error) {
	if err := f.listErr[p]; err != nil {
		return nil, err
	}
	seen := map[string]bool{}
	var out []string
	for leaf := range f.secrets {
		rest, ok := strings.CutPrefix(leaf, p)
		if !ok || rest == "" {
			continue
		}
		name := rest
		if i := strings.Index(rest, "/"); i >= 0 {
			name = rest[:i+1]
		}
		if !seen[name] {
			seen[name] = true
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (f *fakeSecretStore) Read(_ context.Context, p string) (models.SecretContent, error) {
	f.readSeen = append(f.readSeen, p)
	if f.onRead != nil {
		f.onRead(p)
	}
	if err := f.readErr[p]; err != nil {
		return nil, err
	}
	c, ok := f.secrets[p]
	if !ok {
		return nil, fmt.Errorf("no secret at %s", p)
	}
	return c, nil
}

// memStore is a simple in-memory ArtifactStore.
type memStore struct {
	mu      sync.Mutex
	data    map[string][]byte
	putErr  error
	headErr error
	getErr  error
	puts    int
}

func newMemStore() *memStore {
	return &memStore{data: make(map[string][]byte)}
}

func (m *memStore) Put(_ context.Context, name string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.puts++
	if m.putErr != nil {
		return m.putErr
	}
	if _, ok := m.data[name]; ok {
		return errors.New("exists")
	}
	m.data[name] = append([]byte(nil), data...)
	return nil
}

func (m *memStore) Head(_ context.Context, name string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.headErr != nil {
		return false, m.headErr
	}
	_, ok := m.data[name]
	return ok, nil
}

func (m *memStore) Get(_ context.Context, name string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	b, ok := m.data[name]
	if !ok {
		return nil, berrors.ErrNotFound
	}
	return append([]byte(nil), b...), nil
}

func (m *memStore) List(_ context.Context, prefix string) ([]models.ArtifactInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.ArtifactInfo
	for name, b := range m.data {
		if strings.HasPrefix(name, prefix) {
			out = append(out, models.ArtifactInfo{Name: name, Size: int64(len(b))})
		}
	}
	return out, nil
}

func (m *memStore) names() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for n := range m.data {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}
