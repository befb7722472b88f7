package engine

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseConfig(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		want    Config
		wantErr bool
	}{
		{name: "empty keeps defaults", data: "", want: DefaultConfig()},
		{
			name: "partial",
			data: "undoDepth: 8\nautoCascadeRemove: false\n",
			want: Config{UndoDepth: 8, RejectOnDanglingEdge: true},
		},
		{name: "unknown key", data: "undo: 8\n", wantErr: true},
		{name: "zero depth", data: "undoDepth: 0\n", wantErr: true},
		{name: "wrong type", data: "undoDepth: lots\n", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseConfig([]byte(tt.data))
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidConfig)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "engine.yaml")
	require.NoError(t, os.WriteFile(path, []byte("rejectOnDanglingEdge: false\n"), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.False(t, cfg.RejectOnDanglingEdge)
	assert.Equal(t, DefaultUndoDepth, cfg.UndoDepth)

	_, err = LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.ErrorIs(t, err, os.ErrNotExist)
}
