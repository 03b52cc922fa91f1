// Package runstore persists runs as YAML files with atomic writes.
// Terminal runs are archived under an archive/ subdirectory.
package runstore

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	latcherr "github.com/latch-ci/latch/internal/errors"
	"github.com/latch-ci/latch/internal/types"
)

// Store writes runs beneath a single directory.
type Store struct {
	dir string
}

// New creates a store, recovering from any interrupted writes.
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(filepath.Join(dir, "archive"), 0755); err != nil {
		return nil, fmt.Errorf("creating run dir: %w", err)
	}

	if err := recoverInterruptedWrites(dir); err != nil {
		return nil, fmt.Errorf("recovering interrupted writes: %w", err)
	}

	return &Store{dir: dir}, nil
}

// Save writes the run atomically (tmp file + rename). Marshaling works
// on a locked snapshot: the gate may flip the live run's status while
// the write is in flight.
func (s *Store) Save(run *types.Run) error {
	data, err := yaml.Marshal(run.Snapshot())
	if err != nil {
		return latcherr.Newf(latcherr.CodeIOWriteError, "marshaling run %s", run.ID).WithCause(err)
	}

	path := s.runPath(run.ID)
	tmpPath := path + ".tmp"

	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return latcherr.Newf(latcherr.CodeIOWriteError, "writing run %s", run.ID).WithCause(err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return latcherr.Newf(latcherr.CodeIOWriteError, "renaming run file for %s", run.ID).WithCause(err)
	}
	return nil
}

// Get loads a run by ID, checking the archive if it is not live.
func (s *Store) Get(id string) (*types.Run, error) {
	for _, path := range []string{s.runPath(id), s.archivePath(id)} {
		data, err := os.ReadFile(path)
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return nil, latcherr.Newf(latcherr.CodeIOReadError, "reading run %s", id).WithCause(err)
		}

		var run types.Run
		if err := yaml.Unmarshal(data, &run); err != nil {
			return nil, latcherr.Newf(latcherr.CodeIOReadError, "parsing run %s", id).WithCause(err)
		}
		return &run, nil
	}
	return nil, latcherr.Newf(latcherr.CodeRunNotFound, "run %s not found", id)
}

// List returns all live (non-archived) runs, sorted by start time.
func (s *Store) List() ([]*types.Run, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, latcherr.New(latcherr.CodeIOReadError, "listing runs").WithCause(err)
	}

	var runs []*types.Run
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".yaml") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(s.dir, entry.Name()))
		if err != nil {
			return nil, latcherr.Newf(latcherr.CodeIOReadError, "reading %s", entry.Name()).WithCause(err)
		}
		var run types.Run
		if err := yaml.Unmarshal(data, &run); err != nil {
			return nil, latcherr.Newf(latcherr.CodeIOReadError, "parsing %s", entry.Name()).WithCause(err)
		}
		runs = append(runs, &run)
	}

	sort.Slice(runs, func(i, j int) bool {
		return runs[i].StartedAt.Before(runs[j].StartedAt)
	})
	return runs, nil
}

// Archive moves a terminal run's file into the archive directory.
func (s *Store) Archive(run *types.Run) error {
	if !run.CurrentStatus().IsTerminal() {
		return fmt.Errorf("run %s is not terminal", run.ID)
	}
	if err := s.Save(run); err != nil {
		return err
	}
	if err := os.Rename(s.runPath(run.ID), s.archivePath(run.ID)); err != nil {
		return latcherr.Newf(latcherr.CodeIOWriteError, "archiving run %s", run.ID).WithCause(err)
	}
	return nil
}

func (s *Store) runPath(id string) string {
	return filepath.Join(s.dir, id+".yaml")
}

func (s *Store) archivePath(id string) string {
	return filepath.Join(s.dir, "archive", id+".yaml")
}

// recoverInterruptedWrites drops .tmp files left by crashed writes; the
// previous complete version, if any, stays authoritative.
func recoverInterruptedWrites(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if strings.HasSuffix(entry.Name(), ".yaml.tmp") {
			os.Remove(filepath.Join(dir, entry.Name()))
		}
	}
	return nil
}
