package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tanks.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadTanks(t *testing.T) {
	path := writeFile(t, `[
		{"id": "T1", "name": "Main Depot", "diameter": 2.5, "height": 4.0, "location": "Yard A"},
		{"id": "T2", "name": "Backup", "diameter": 1, "height": 1}
	]`)

	tanks, err := loadTanks(path)
	require.NoError(t, err)
	require.Len(t, tanks, 2)
	assert.InDelta(t, 19634.95, tanks[0].Capacity, 0.01)
	assert.Equal(t, 4.0, tanks[0].SensorHeight)
	assert.Equal(t, "Yard A", tanks[0].Location)
	assert.Empty(t, tanks[1].Location)
}

func TestLoadTanks_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"malformed", `{`, "parse"},
		{"empty", `[]`, "no tanks"},
		{"bad geometry", `[{"id": "T1", "name": "x", "diameter": 0, "height": 1}]`, "diameter must be positive"},
		{"duplicate", `[{"id": "T1", "name": "a", "diameter": 1, "height": 1}, {"id": "T1", "name": "b", "diameter": 1, "height": 1}]`, "duplicate"},
		{"missing id", `[{"name": "a", "diameter": 1, "height": 1}]`, "id is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := loadTanks(writeFile(t, tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}

	_, err := loadTanks(filepath.Join(t.TempDir(), "absent.json"))
	assert.Error(t, err)
}
