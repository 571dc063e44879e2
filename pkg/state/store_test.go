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

package state

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carverauto/topology-sync/pkg/logger"
	"github.com/carverauto/topology-sync/pkg/models"
)

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}

	return t
}

func newTestStore(t *testing.T, retention int) *FileStore {
	t.Helper()

	s, err := NewFileStore(Config{
		Dir:           t.TempDir(),
		Customer:      "EGI",
		Job:           "Critical",
		RetentionDays: retention,
	}, logger.NewTestLogger())
	require.NoError(t, err)

	return s
}

func touch(t *testing.T, s *FileStore, kind, date string) string {
	t.Helper()

	require.NoError(t, os.MkdirAll(s.Dir(), 0o755))

	path := filepath.Join(s.Dir(), FileName(kind, day(date)))
	require.NoError(t, os.WriteFile(path, []byte("True"), 0o600))

	return path
}

func TestWrite_CreatesStateFile(t *testing.T) {
	s := newTestStore(t, 3)

	err := s.Write(context.Background(), models.RunState{Kind: "topology", LogicalDate: day("2024-03-15"), Success: true})
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(s.Dir(), "topology-ok_2024_03_15"))
	require.NoError(t, err)
	assert.Equal(t, "True", string(data))

	ok, found, err := s.Read(context.Background(), "topology", day("2024-03-15"))
	require.NoError(t, err)
	assert.True(t, found)
	assert.True(t, ok)
}

func TestWrite_Failure(t *testing.T) {
	s := newTestStore(t, 3)

	require.NoError(t, s.Write(context.Background(), models.RunState{Kind: "topology", LogicalDate: day("2024-03-15")}))

	ok, found, err := s.Read(context.Background(), "topology", day("2024-03-15"))
	require.NoError(t, err)
	assert.True(t, found)
	assert.False(t, ok)
}

func TestWrite_PrunesOutsideRetention(t *testing.T) {
	s := newTestStore(t, 3)

	// run date 2024-03-15, retention 3: cutoff 2024-03-12
	keep := []string{
		touch(t, s, "topology", "2024-03-12"),
		touch(t, s, "topology", "2024-03-14"),
		touch(t, s, "topology", "2024-03-16"),
		touch(t, s, "topology", "2024-04-01"),
		touch(t, s, "weights", "2024-03-10"),
		touch(t, s, "topology", "2024-02-01"),
	}
	pruned := []string{
		touch(t, s, "topology", "2024-03-11"),
		touch(t, s, "topology", "2024-03-09"),
		touch(t, s, "topology", "2024-03-07"),
	}

	require.NoError(t, s.Write(context.Background(), models.RunState{Kind: "topology", LogicalDate: day("2024-03-15"), Success: true}))

	for _, p := range keep {
		assert.FileExists(t, p)
	}

	for _, p := range pruned {
		assert.NoFileExists(t, p)
	}

	assert.FileExists(t, filepath.Join(s.Dir(), "topology-ok_2024_03_15"))
}

func TestWrite_ReplacesSameDate(t *testing.T) {
	s := newTestStore(t, 3)
	ctx := context.Background()

	require.NoError(t, s.Write(ctx, models.RunState{Kind: "topology", LogicalDate: day("2024-03-15")}))
	require.NoError(t, s.Write(ctx, models.RunState{Kind: "topology", LogicalDate: day("2024-03-15"), Success: true}))

	ok, _, err := s.Read(ctx, "topology", day("2024-03-15"))
	require.NoError(t, err)
	assert.True(t, ok)

	entries, err := os.ReadDir(s.Dir())
	require.NoError(t, err)

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}

	assert.ElementsMatch(t, []string{".lock", "topology-ok_2024_03_15"}, names)
}

func logLines(t *testing.T, buf *bytes.Buffer) []map[string]interface{} {
	t.Helper()

	var lines []map[string]interface{}

	for _, raw := range bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n")) {
		if len(raw) == 0 {
			continue
		}

		var line map[string]interface{}
		require.NoError(t, json.Unmarshal(raw, &line))
		lines = append(lines, line)
	}

	return lines
}

func TestWrite_LogsReplacedOutcome(t *testing.T) {
	tests := []struct {
		name     string
		existing string
		want     string
		previous interface{}
	}{
		{name: "no previous state", want: ""},
		{name: "previous failure", existing: "False", want: "Replacing existing run state", previous: false},
		{name: "previous success", existing: "True", want: "Replacing existing run state", previous: true},
		{name: "unreadable previous state", existing: "maybe", want: "Replacing unreadable run state"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer

			log, err := logger.NewWithWriter(&logger.Config{Level: "info"}, &buf)
			require.NoError(t, err)

			s, err := NewFileStore(Config{
				Dir:           t.TempDir(),
				Customer:      "EGI",
				Job:           "Critical",
				RetentionDays: 3,
			}, log)
			require.NoError(t, err)

			if tt.existing != "" {
				path := touch(t, s, "topology", "2024-03-15")
				require.NoError(t, os.WriteFile(path, []byte(tt.existing), 0o600))
			}

			require.NoError(t, s.Write(context.Background(), models.RunState{
				Kind:        "topology",
				LogicalDate: day("2024-03-15"),
				Success:     true,
			}))

			var replaced map[string]interface{}

			for _, line := range logLines(t, &buf) {
				if msg, _ := line["message"].(string); msg != "Run state written" {
					replaced = line
				}
			}

			if tt.want == "" {
				assert.Nil(t, replaced)

				return
			}

			require.NotNil(t, replaced)
			assert.Equal(t, tt.want, replaced["message"])
			assert.Equal(t, "topology-ok_2024_03_15", replaced["file"])

			if tt.previous != nil {
				assert.Equal(t, tt.previous, replaced["previous_success"])
				assert.Equal(t, true, replaced["success"])
			}

			ok, found, err := s.Read(context.Background(), "topology", day("2024-03-15"))
			require.NoError(t, err)
			assert.True(t, found)
			assert.True(t, ok)
		})
	}
}

func TestRead_Missing(t *testing.T) {
	s := newTestStore(t, 3)

	ok, found, err := s.Read(context.Background(), "topology", day("2024-03-15"))
	require.NoError(t, err)
	assert.False(t, found)
	assert.False(t, ok)
}

func TestRead_UnknownContent(t *testing.T) {
	s := newTestStore(t, 3)

	path := touch(t, s, "topology", "2024-03-15")
	require.NoError(t, os.WriteFile(path, []byte("maybe"), 0o600))

	_, found, err := s.Read(context.Background(), "topology", day("2024-03-15"))
	require.ErrorIs(t, err, errUnknownValue)
	assert.True(t, found)
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		want error
	}{
		{"ok", Config{Dir: "/tmp", Customer: "c", Job: "j", RetentionDays: 1}, nil},
		{"no dir", Config{Customer: "c", Job: "j", RetentionDays: 1}, errMissingDir},
		{"no job", Config{Dir: "/tmp", Customer: "c", RetentionDays: 1}, errMissingScope},
		{"zero retention", Config{Dir: "/tmp", Customer: "c", Job: "j"}, errInvalidRetention},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.want == nil {
				require.NoError(t, err)
				return
			}

			require.ErrorIs(t, err, tt.want)
		})
	}
}

func TestWrite_RejectsInvalidKind(t *testing.T) {
	s := newTestStore(t, 3)

	err := s.Write(context.Background(), models.RunState{Kind: "../escape", LogicalDate: day("2024-03-15")})
	require.ErrorIs(t, err, errInvalidKind)
}

func TestNewFileStore_MinimumLookback(t *testing.T) {
	s, err := NewFileStore(Config{Dir: t.TempDir(), Customer: "c", Job: "j", RetentionDays: 1, LookbackDays: 2}, logger.NewTestLogger())
	require.NoError(t, err)
	assert.Equal(t, MinLookbackDays, s.lookback)
}
