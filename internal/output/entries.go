// Copyright © 2025 Steve Taranto staranto@gmail.com
// SPDX-License-Identifier: MIT

package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss/v2"
	"github.com/charmbracelet/lipgloss/v2/table"
	"github.com/dustin/go-humanize"
	"golang.org/x/term"
	"gopkg.in/yaml.v2"

	"github.com/staranto/xxii/internal/cachestore"
)

// Row is the flattened view of one cache entry.
type Row struct {
	Key      string    `json:"key" yaml:"key"`
	Status   int       `json:"status" yaml:"status"`
	Type     string    `json:"type" yaml:"type"`
	Size     int       `json:"size" yaml:"size"`
	StoredAt time.Time `json:"stored_at" yaml:"stored_at"`
}

// Options controls how rows are emitted.
type Options struct {
	Format string // text, json or yaml
	Filter string
	Sort   string
	Color  bool
	Titles bool
}

// Rows flattens records.
func Rows(records []cachestore.Record) []Row {
	rows := make([]Row, 0, len(records))
	for _, r := range records {
		rows = append(rows, Row{
			Key:      r.Key,
			Status:   r.Response.Status,
			Type:     r.Response.Header.Get("Content-Type"),
			Size:     len(r.Response.Body),
			StoredAt: r.Response.StoredAt,
		})
	}
	return rows
}

// IsTerminal reports whether stdout is a terminal. Used as the --color
// default.
func IsTerminal() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// Entries filters, sorts and writes rows to w in the requested format.
func Entries(w io.Writer, rows []Row, opts Options) error {
	rows = FilterRows(rows, BuildFilters(opts.Filter))
	SortRows(rows, opts.Sort)

	switch opts.Format {
	case "json":
		out, err := json.MarshalIndent(rows, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal entries: %w", err)
		}
		_, err = fmt.Fprintln(w, string(out))
		return err
	case "yaml":
		out, err := yaml.Marshal(rows)
		if err != nil {
			return fmt.Errorf("failed to marshal entries: %w", err)
		}
		_, err = w.Write(out)
		return err
	case "", "text":
		return TableWriter(w, rows, opts)
	default:
		return fmt.Errorf("unknown output format %q", opts.Format)
	}
}

// TableWriter renders the rows in a tabular form honoring color and titles.
func TableWriter(w io.Writer, rows []Row, opts Options) error {
	if len(rows) == 0 {
		return nil
	}

	var (
		headerStyle  = lipgloss.NewStyle().Align(lipgloss.Left)
		cellStyle    = lipgloss.NewStyle().Padding(0, 0).Align(lipgloss.Left)
		evenRowStyle = cellStyle
		oddRowStyle  = cellStyle
	)

	if opts.Color {
		headerStyle = headerStyle.Foreground(lipgloss.Color("#f6be00"))
		evenRowStyle = evenRowStyle.Foreground(lipgloss.Color("#ffffff"))
		oddRowStyle = oddRowStyle.Foreground(lipgloss.Color("#00c8f0"))
	}

	cells := make([][]string, 0, len(rows))
	for _, r := range rows {
		cells = append(cells, []string{
			r.Key,
			strconv.Itoa(r.Status),
			emptyDash(r.Type),
			humanize.Bytes(uint64(r.Size)), //nolint:gosec
			storedAgo(r.StoredAt),
		})
	}

	t := table.New().
		BorderBottom(false).
		BorderTop(false).
		BorderLeft(false).
		BorderRight(false).
		Border(lipgloss.HiddenBorder()).
		StyleFunc(func(row, col int) lipgloss.Style {
			var style lipgloss.Style
			switch {
			case row == table.HeaderRow:
				style = headerStyle
			case row%2 == 0:
				style = evenRowStyle
			default:
				style = oddRowStyle
			}
			if col > 0 {
				style = style.PaddingLeft(1)
			}
			return style
		}).
		Headers().
		Rows(cells...)

	if opts.Titles {
		// https://github.com/charmbracelet/lipgloss/issues/261
		t = t.Headers("KEY", "STATUS", "TYPE", "SIZE", "STORED").BorderHeader(false)
	}

	_, err := fmt.Fprintln(w, t)
	return err
}

// SortRows sorts in place by a comma-separated list of fields. A leading "-"
// reverses a field. Unknown fields are ignored.
func SortRows(rows []Row, spec string) {
	if spec == "" {
		return
	}
	fields := strings.Split(spec, ",")

	sort.SliceStable(rows, func(i, j int) bool {
		for _, f := range fields {
			desc := strings.HasPrefix(f, "-")
			f = strings.TrimPrefix(f, "-")

			c := compareField(rows[i], rows[j], f)
			if c == 0 {
				continue
			}
			if desc {
				return c > 0
			}
			return c < 0
		}
		return false
	})
}

func compareField(a, b Row, field string) int {
	switch field {
	case "key":
		return strings.Compare(a.Key, b.Key)
	case "type":
		return strings.Compare(a.Type, b.Type)
	case "status":
		return a.Status - b.Status
	case "size":
		return a.Size - b.Size
	case "stored":
		return a.StoredAt.Compare(b.StoredAt)
	default:
		return 0
	}
}

func emptyDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func storedAgo(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return humanize.Time(t)
}
