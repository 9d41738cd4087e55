package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sync"

	"github.com/usize/monument/pkg/monumenterr"
)

var namespaceRe = regexp.MustCompile(NamespacePattern)

// ValidateNamespace checks a namespace id against the required syntax.
func ValidateNamespace(name string) error {
	if !namespaceRe.MatchString(name) {
		return monumenterr.ErrNamespaceInvalid
	}
	return nil
}

// Registry is the process-wide map from namespace name to its owning,
// serializing handle. It replaces the source system's single global
// connection/"db_manager" singleton with a value the server holds
// explicitly — no process-wide mutable state (spec §9 re-architecture
// note), grounded on the teacher's pkg/session.Manager in-memory
// map+RWMutex pattern.
type Registry struct {
	dataDir string

	mu      sync.RWMutex
	handles map[string]*handle
}

type handle struct {
	store   *Store
	writeMu sync.Mutex
}

// NewRegistry creates a registry rooted at dataDir (created if missing).
func NewRegistry(dataDir string) (*Registry, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return &Registry{dataDir: dataDir, handles: make(map[string]*handle)}, nil
}

func (r *Registry) pathFor(name string) string {
	return filepath.Join(r.dataDir, name+".db")
}

// Create creates a brand-new namespace and registers its handle.
func (r *Registry) Create(ctx context.Context, name string, width, height int, goal string, epoch int64) (*Store, error) {
	if err := ValidateNamespace(name); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.handles[name]; ok {
		return nil, monumenterr.ErrNamespaceExists
	}

	s, err := Create(ctx, name, r.pathFor(name), width, height, goal, epoch)
	if err != nil {
		return nil, err
	}
	r.handles[name] = &handle{store: s}
	return s, nil
}

// Open returns the namespace's store, opening its file and registering a
// handle on first access. Returns monumenterr.ErrNotFound if no file exists.
func (r *Registry) Open(ctx context.Context, name string) (*Store, error) {
	if err := ValidateNamespace(name); err != nil {
		return nil, err
	}

	r.mu.RLock()
	h, ok := r.handles[name]
	r.mu.RUnlock()
	if ok {
		return h.store, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	// Re-check under write lock in case of a racing Open.
	if h, ok := r.handles[name]; ok {
		return h.store, nil
	}

	path := r.pathFor(name)
	if _, err := os.Stat(path); err != nil {
		return nil, monumenterr.ErrNotFound
	}

	s, err := Open(ctx, name, path)
	if err != nil {
		return nil, err
	}
	r.handles[name] = &handle{store: s}
	return s, nil
}

// WithWriteLock serializes fn against every other writer for the namespace
// (Admission inserts, completeness checks, and MERGE are all run this way),
// satisfying the one-writer-lock-per-namespace model (spec §5).
func (r *Registry) WithWriteLock(ctx context.Context, name string, fn func(*Store) error) error {
	s, err := r.Open(ctx, name)
	if err != nil {
		return err
	}

	r.mu.RLock()
	h := r.handles[name]
	r.mu.RUnlock()

	h.writeMu.Lock()
	defer h.writeMu.Unlock()
	return fn(s)
}

// Names returns every namespace currently registered (opened or created this
// process lifetime). Used by the sweeper to iterate known namespaces.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.handles))
	for n := range r.handles {
		names = append(names, n)
	}
	return names
}

// DiscoverExisting opens every "*.db" file already present in the data
// directory, registering a handle for each so the sweeper can recover ticks
// stalled across a process restart.
func (r *Registry) DiscoverExisting(ctx context.Context) error {
	entries, err := os.ReadDir(r.dataDir)
	if err != nil {
		return fmt.Errorf("read data dir: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		const suffix = ".db"
		if len(name) <= len(suffix) || name[len(name)-len(suffix):] != suffix {
			continue
		}
		ns := name[:len(name)-len(suffix)]
		if _, err := r.Open(ctx, ns); err != nil {
			return fmt.Errorf("open existing namespace %q: %w", ns, err)
		}
	}
	return nil
}

// Close closes every open namespace store.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	var firstErr error
	for _, h := range r.handles {
		if err := h.store.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
