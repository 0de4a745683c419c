package files

import (
	"context"
	"sync"
	"time"

	"github.com/sheepe/pterogo/pkg/logging"
	"github.com/sheepe/pterogo/pkg/tree"
)

// Manager is the root directory of a server. All paths it accepts are
// absolute.
type Manager struct {
	server Server

	mu        sync.RWMutex
	contents  []*File
	fetchedAt time.Time
}

// NewManager fetches the root listing of s.
func NewManager(ctx context.Context, s Server) (*Manager, error) {
	m := &Manager{server: s}
	if err := m.Resync(ctx); err != nil {
		return nil, err
	}
	return m, nil
}

// Contents returns the root listing as of the last fetch.
func (m *Manager) Contents() []*File {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*File, len(m.contents))
	copy(out, m.contents)
	return out
}

// FetchedAt is when Contents was last replaced.
func (m *Manager) FetchedAt() time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.fetchedAt
}

// Child returns the root entry called name from the current contents.
func (m *Manager) Child(name string) (*File, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return findByName(m.contents, name)
}

// Resync replaces Contents with a fresh root listing. On failure the
// previous contents are kept.
func (m *Manager) Resync(ctx context.Context) error {
	if err := requireVerified(m.server, "list"); err != nil {
		return err
	}

	files, err := listDirectory(ctx, m.server, "")
	if err != nil {
		return err
	}

	m.mu.Lock()
	m.contents = files
	m.fetchedAt = now()
	m.mu.Unlock()

	logging.WithContext(ctx).Debug("root listing replaced",
		logging.String("server", m.server.Identifier()),
		logging.Int("entries", len(files)))
	return nil
}

// ReadFile returns the raw contents of the file at path. A relative path
// is taken from the root.
func (m *Manager) ReadFile(ctx context.Context, path string) ([]byte, error) {
	if err := requireVerified(m.server, "read"); err != nil {
		return nil, err
	}
	return readFile(ctx, m.server, tree.ComposeChildPath("", path))
}

// ListDirectory returns the entries of the directory at path. A relative
// path is taken from the root.
func (m *Manager) ListDirectory(ctx context.Context, path string) ([]*File, error) {
	if err := requireVerified(m.server, "list"); err != nil {
		return nil, err
	}
	return listDirectory(ctx, m.server, tree.ComposeChildPath("", path))
}

// WriteFile writes contents at path and returns the re-listed entry.
func (m *Manager) WriteFile(ctx context.Context, path string, contents []byte) (*File, error) {
	if err := requireVerified(m.server, "write"); err != nil {
		return nil, err
	}
	return writeFile(ctx, m.server, "write", tree.StripLeadingSeparator(path), contents)
}

// Mkdir creates directory name under location and returns the new entry.
// An empty location means the root.
func (m *Manager) Mkdir(ctx context.Context, name, location string) (*File, error) {
	if err := requireVerified(m.server, "mkdir"); err != nil {
		return nil, err
	}
	if location == "" {
		location = tree.Separator
	}
	parent := tree.TrimTrailingSeparator(tree.ComposeChildPath("", location))
	return createFolder(ctx, m.server, "mkdir", parent, name)
}
