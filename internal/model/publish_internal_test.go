package model //nolint:testpackage // publish swaps the package rename hook

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stageDir(t *testing.T, root, name, marker string) string {
	t.Helper()
	dir := filepath.Join(root, name)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, marker), nil, 0o600))
	return dir
}

func TestPublish(t *testing.T) {
	testCases := []struct {
		name       string
		previous   bool
		failFinal  bool
		wantErr    bool
		wantMarker string
	}{
		{"first publish", false, false, false, "new"},
		{"replaces previous", true, false, false, "new"},
		{"failed publish keeps previous", true, true, true, "old"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			root := t.TempDir()
			dir := filepath.Join(root, "artifact")
			if tc.previous {
				stageDir(t, root, "artifact", "old")
			}
			staged := stageDir(t, root, ".artifact-1", "new")

			if tc.failFinal {
				orig := rename
				rename = func(from, to string) error {
					if from == staged {
						return errors.New("disk full")
					}
					return orig(from, to)
				}
				t.Cleanup(func() { rename = orig })
			}

			err := publish(staged, dir)
			if tc.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}

			assert.FileExists(t, filepath.Join(dir, tc.wantMarker))
			assert.NoDirExists(t, staged+".prev")
		})
	}
}
