/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package state persists the outcome of each run per kind and logical date.
package state

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"

	"github.com/carverauto/topology-sync/pkg/logger"
	"github.com/carverauto/topology-sync/pkg/models"
)

const (
	// MinLookbackDays is the smallest pruning window behind the cutoff.
	MinLookbackDays = 5

	lockFile     = ".lock"
	valueSuccess = "True"
	valueFailure = "False"
	dirPerm      = 0o755
	filePerm     = 0o644
)

var (
	errInvalidRetention = errors.New("state: retention days must be at least 1")
	errInvalidKind      = errors.New("state: invalid kind")
	errMissingDir       = errors.New("state: directory is required")
	errMissingScope     = errors.New("state: customer and job are required")
	errUnknownValue     = errors.New("state: unrecognized state file content")
)

// Config locates the state directory of one customer job.
type Config struct {
	Dir           string
	Customer      string
	Job           string
	RetentionDays int
	LookbackDays  int
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.Dir == "" {
		return errMissingDir
	}

	if c.Customer == "" || c.Job == "" {
		return errMissingScope
	}

	if c.RetentionDays < 1 {
		return errInvalidRetention
	}

	return nil
}

// FileStore keeps one plaintext file per kind and date under
// <dir>/<customer>/<job>. Writers are serialized with a file lock.
type FileStore struct {
	dir       string
	retention int
	lookback  int
	logger    logger.Logger
}

// NewFileStore validates cfg and returns a store rooted at its job directory.
func NewFileStore(cfg Config, log logger.Logger) (*FileStore, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &FileStore{
		dir:       filepath.Join(cfg.Dir, cfg.Customer, cfg.Job),
		retention: cfg.RetentionDays,
		lookback:  max(cfg.LookbackDays, MinLookbackDays),
		logger:    log,
	}, nil
}

// Dir returns the job directory.
func (s *FileStore) Dir() string {
	return s.dir
}

// FileName returns the state file name for kind on date.
func FileName(kind string, date time.Time) string {
	return fmt.Sprintf("%s-ok_%s", kind, date.Format(models.RunDateLayout))
}

// Write records the outcome and prunes files that fell out of retention.
func (s *FileStore) Write(ctx context.Context, st models.RunState) error {
	if err := validKind(st.Kind); err != nil {
		return err
	}

	if err := os.MkdirAll(s.dir, dirPerm); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}

	lock := flock.New(filepath.Join(s.dir, lockFile))

	locked, err := lock.TryLockContext(ctx, 50*time.Millisecond)
	if err != nil {
		return fmt.Errorf("failed to lock state directory: %w", err)
	}

	if !locked {
		return fmt.Errorf("failed to lock state directory %s", s.dir)
	}

	defer func() {
		if err := lock.Unlock(); err != nil {
			s.logger.Warn().Err(err).Str("dir", s.dir).Msg("Failed to release state lock")
		}
	}()

	name := FileName(st.Kind, st.LogicalDate)
	s.logPrevious(ctx, st, name)

	if err := s.writeAtomic(name, st.Success); err != nil {
		return err
	}

	s.logger.Info().
		Str("kind", st.Kind).
		Str("file", name).
		Bool("success", st.Success).
		Msg("Run state written")

	s.prune(st.Kind, st.LogicalDate)

	return nil
}

// logPrevious reports an outcome already recorded for the same kind and date
// before Write replaces it.
func (s *FileStore) logPrevious(ctx context.Context, st models.RunState, name string) {
	prev, found, err := s.Read(ctx, st.Kind, st.LogicalDate)
	if err != nil {
		s.logger.Warn().Err(err).Str("file", name).Msg("Replacing unreadable run state")

		return
	}

	if !found {
		return
	}

	s.logger.Info().
		Str("kind", st.Kind).
		Str("file", name).
		Bool("previous_success", prev).
		Bool("success", st.Success).
		Msg("Replacing existing run state")
}

func (s *FileStore) writeAtomic(name string, success bool) error {
	value := valueFailure
	if success {
		value = valueSuccess
	}

	tmp, err := os.CreateTemp(s.dir, "."+name+"-*")
	if err != nil {
		return fmt.Errorf("failed to create state file: %w", err)
	}

	tmpName := tmp.Name()

	if _, err := tmp.WriteString(value); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)

		return fmt.Errorf("failed to write state file: %w", err)
	}

	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)

		return fmt.Errorf("failed to sync state file: %w", err)
	}

	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)

		return fmt.Errorf("failed to close state file: %w", err)
	}

	if err := os.Chmod(tmpName, filePerm); err != nil {
		s.logger.Debug().Err(err).Str("file", tmpName).Msg("Failed to set state file mode")
	}

	if err := os.Rename(tmpName, filepath.Join(s.dir, name)); err != nil {
		_ = os.Remove(tmpName)

		return fmt.Errorf("failed to publish state file: %w", err)
	}

	return nil
}

// prune deletes state files of kind dated before runDate-retention, looking
// back a bounded number of days. Files dated at or after runDate are never
// candidates.
func (s *FileStore) prune(kind string, runDate time.Time) {
	cutoff := runDate.AddDate(0, 0, -s.retention)

	for i := 1; i <= s.lookback; i++ {
		stale := FileName(kind, cutoff.AddDate(0, 0, -i))

		err := os.Remove(filepath.Join(s.dir, stale))

		switch {
		case err == nil:
			s.logger.Debug().Str("file", stale).Msg("Pruned stale run state")
		case errors.Is(err, fs.ErrNotExist):
		default:
			s.logger.Warn().Err(err).Str("file", stale).Msg("Failed to prune run state")
		}
	}
}

// Read returns the recorded outcome of kind on date.
func (s *FileStore) Read(_ context.Context, kind string, date time.Time) (success, found bool, err error) {
	if err := validKind(kind); err != nil {
		return false, false, err
	}

	data, err := os.ReadFile(filepath.Join(s.dir, FileName(kind, date)))
	if errors.Is(err, fs.ErrNotExist) {
		return false, false, nil
	}

	if err != nil {
		return false, false, fmt.Errorf("failed to read state file: %w", err)
	}

	switch strings.TrimSpace(string(data)) {
	case valueSuccess:
		return true, true, nil
	case valueFailure:
		return false, true, nil
	default:
		return false, true, fmt.Errorf("%w: %q", errUnknownValue, data)
	}
}

func validKind(kind string) error {
	if kind == "" || strings.ContainsAny(kind, `/\`) || strings.HasPrefix(kind, ".") {
		return fmt.Errorf("%w: %q", errInvalidKind, kind)
	}

	return nil
}
