// Package stats prints build results for people and machines.
package stats

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/olekukonko/tablewriter"
	"github.com/wolfeidau/assetpack/internal/assets"
	"gopkg.in/yaml.v3"
)

// Format represents the output format
type Format string

const (
	FormatTable Format = "table"
	FormatJSON  Format = "json"
	FormatYAML  Format = "yaml"
)

// ParseFormat parses a format string
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "table", "":
		return FormatTable, nil
	case "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("invalid stats format: %s (valid: table, json, yaml)", s)
	}
}

// Write renders res to w in the given format.
func Write(w io.Writer, res *assets.Result, format Format) error {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(summary(res))
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		defer func() { _ = enc.Close() }()
		return enc.Encode(summary(res))
	default:
		return writeTable(w, res)
	}
}

// Summary is the machine readable form of a result.
type Summary struct {
	BuildID    string             `json:"buildId" yaml:"buildId"`
	Hash       string             `json:"hash" yaml:"hash"`
	Mode       string             `json:"mode" yaml:"mode"`
	OutputPath string             `json:"outputPath" yaml:"outputPath"`
	Time       int64              `json:"time" yaml:"time"`
	TotalSize  int                `json:"totalSize" yaml:"totalSize"`
	Assets     []assets.AssetStat `json:"assets" yaml:"assets"`
	Warnings   []string           `json:"warnings,omitempty" yaml:"warnings,omitempty"`
}

func summary(res *assets.Result) Summary {
	return Summary{
		BuildID:    res.BuildID,
		Hash:       res.Hash,
		Mode:       string(res.Mode),
		OutputPath: res.OutputDir,
		Time:       res.Duration.Milliseconds(),
		TotalSize:  res.TotalSize(),
		Assets:     res.Assets,
		Warnings:   res.Warnings,
	}
}

func writeTable(w io.Writer, res *assets.Result) error {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Asset", "Size", "Chunks", ""})

	table.SetBorder(false)
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetColumnAlignment([]int{tablewriter.ALIGN_LEFT, tablewriter.ALIGN_RIGHT, tablewriter.ALIGN_LEFT, tablewriter.ALIGN_LEFT})
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetTablePadding("  ")
	table.SetNoWhiteSpace(true)

	for _, a := range res.Assets {
		flag := ""
		if a.Immutable {
			flag = "[immutable]"
		}
		table.Append([]string{a.Name, humanize.Bytes(uint64(a.Size)), strings.Join(a.Chunks, ","), flag}) //nolint:gosec // sizes are never negative
	}
	table.Render()

	total := uint64(res.TotalSize()) //nolint:gosec // sizes are never negative
	if _, err := fmt.Fprintf(w, "\nassetpack %s compiled %d assets (%s) in %s, hash %s\n",
		res.Mode, len(res.Assets), humanize.Bytes(total), res.Duration.Round(time.Millisecond), res.Hash); err != nil {
		return err
	}
	for _, warning := range res.Warnings {
		if _, err := fmt.Fprintf(w, "WARNING %s\n", warning); err != nil {
			return err
		}
	}
	return nil
}
