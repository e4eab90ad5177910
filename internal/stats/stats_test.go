package stats

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/wolfeidau/assetpack/internal/assets"
	"github.com/wolfeidau/assetpack/internal/config"
	"gopkg.in/yaml.v3"
)

func result() *assets.Result {
	return &assets.Result{
		BuildID:   "0a3c",
		Hash:      "9f86d081884c7d65",
		Mode:      config.ModeProduction,
		OutputDir: "/app/dist",
		Duration:  1234 * time.Millisecond,
		Assets: []assets.AssetStat{
			{Name: "index.bundle.js", Size: 70000, Chunks: []string{"index"}},
			{Name: "icon.3b5a.png", Size: 512, Immutable: true},
		},
		Warnings: []string{"src/index.js:1:1: unused import"},
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in       string
		expected Format
		wantErr  bool
	}{
		{in: "", expected: FormatTable},
		{in: "JSON", expected: FormatJSON},
		{in: "yml", expected: FormatYAML},
		{in: "xml", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			f, err := ParseFormat(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.expected, f)
		})
	}
}

func TestWriteTable(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, result(), FormatTable))

	out := buf.String()
	require.Contains(t, out, "index.bundle.js")
	require.Contains(t, out, "70 kB")
	require.Contains(t, out, "[immutable]")
	require.Contains(t, out, "compiled 2 assets (70 kB) in 1.234s, hash 9f86d081884c7d65")
	require.Contains(t, out, "WARNING src/index.js:1:1: unused import")
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, result(), FormatJSON))

	var s Summary
	require.NoError(t, json.Unmarshal(buf.Bytes(), &s))
	require.Equal(t, int64(1234), s.Time)
	require.Equal(t, 70512, s.TotalSize)
	require.Len(t, s.Assets, 2)
	require.Equal(t, []string{"index"}, s.Assets[0].Chunks)
}

func TestWriteYAML(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, result(), FormatYAML))

	var s map[string]any
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &s))
	require.Equal(t, "production", s["mode"])
	require.Equal(t, "/app/dist", s["outputPath"])
}
