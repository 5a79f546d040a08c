package database

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"
)

// Opener opens the named database of a backend. The closer releases the
// underlying handle.
type Opener func(name string) (DB, io.Closer, error)

// CloserFunc adapts a function to io.Closer.
type CloserFunc func() error

func (f CloserFunc) Close() error { return f() }

type openDB struct {
	db     DB
	closer io.Closer
}

// Registry implements Manager on top of an Opener. Each name is opened once
// and shared until it is closed.
type Registry struct {
	mu   sync.Mutex
	open Opener
	dbs  map[string]openDB
}

// NewRegistry returns a Registry that opens databases with open.
func NewRegistry(open Opener) *Registry {
	return &Registry{
		open: open,
		dbs:  make(map[string]openDB),
	}
}

func (r *Registry) OpenDB(name string) (DB, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if d, ok := r.dbs[name]; ok {
		return d.db, nil
	}
	db, closer, err := r.open(name)
	if err != nil {
		return nil, err
	}
	r.dbs[name] = openDB{db: db, closer: closer}
	return db, nil
}

func (r *Registry) CloseDB(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	d, ok := r.dbs[name]
	if !ok {
		return fmt.Errorf("database %s not found", name)
	}
	if err := d.closer.Close(); err != nil {
		return err
	}
	delete(r.dbs, name)
	return nil
}

// Close closes every open database, in name order, and reports every
// failure.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	names := make([]string, 0, len(r.dbs))
	for name := range r.dbs {
		names = append(names, name)
	}
	sort.Strings(names)

	var errs []error
	for _, name := range names {
		if err := r.dbs[name].closer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close database %s: %w", name, err))
		}
		delete(r.dbs, name)
	}
	return errors.Join(errs...)
}

// Names lists the open databases.
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.dbs))
	for name := range r.dbs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
