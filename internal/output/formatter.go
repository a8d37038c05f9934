// Package output renders command results as text tables, JSON, Markdown,
// TOON or YAML.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
	toon "github.com/toon-format/toon-go"
	"gopkg.in/yaml.v3"
)

// Format represents an output format.
type Format string

const (
	FormatText     Format = "text"
	FormatJSON     Format = "json"
	FormatMarkdown Format = "markdown"
	FormatTOON     Format = "toon"
	FormatYAML     Format = "yaml"
)

// ParseFormat converts a string to Format, defaulting to text.
func ParseFormat(s string) Format {
	switch strings.ToLower(s) {
	case "json":
		return FormatJSON
	case "markdown", "md":
		return FormatMarkdown
	case "toon":
		return FormatTOON
	case "yaml", "yml":
		return FormatYAML
	default:
		return FormatText
	}
}

// Renderable is a result with a human form (text or Markdown) and a
// machine form (RenderData) for the structured formats.
type Renderable interface {
	RenderText(w io.Writer, colored bool) error
	RenderMarkdown(w io.Writer) error
	RenderData() any
}

// Formatter writes command results in one format.
type Formatter struct {
	format  Format
	writer  io.Writer
	file    *os.File
	colored bool
}

// NewFormatter writes to stdout, or to the file output when it is set.
// File output is never colored.
func NewFormatter(format Format, output string, colored bool) (*Formatter, error) {
	if output == "" {
		return NewWriterFormatter(format, os.Stdout, colored), nil
	}
	file, err := os.Create(output)
	if err != nil {
		return nil, err
	}
	f := NewWriterFormatter(format, file, false)
	f.file = file
	return f, nil
}

// NewWriterFormatter creates a formatter writing to w.
func NewWriterFormatter(format Format, w io.Writer, colored bool) *Formatter {
	return &Formatter{format: format, writer: w, colored: colored}
}

// Close closes the output file, if any.
func (f *Formatter) Close() error {
	if f.file != nil {
		return f.file.Close()
	}
	return nil
}

func (f *Formatter) Format() Format {
	return f.format
}

func (f *Formatter) Colored() bool {
	return f.colored
}

// Output writes data in the configured format. Plain values have no human
// form, so text prints them as JSON and Markdown as a fenced JSON block.
func (f *Formatter) Output(data any) error {
	r, renderable := data.(Renderable)
	switch {
	case renderable && f.format == FormatText:
		return r.RenderText(f.writer, f.colored)
	case renderable && f.format == FormatMarkdown:
		return r.RenderMarkdown(f.writer)
	case renderable:
		return f.encode(r.RenderData())
	case f.format == FormatMarkdown:
		fmt.Fprintln(f.writer, "```json")
		if err := f.encode(data); err != nil {
			return err
		}
		_, err := fmt.Fprintln(f.writer, "```")
		return err
	default:
		return f.encode(data)
	}
}

// encode serializes data as TOON, YAML or, for every other format, JSON.
func (f *Formatter) encode(data any) error {
	switch f.format {
	case FormatTOON:
		out, err := toon.Marshal(data, toon.WithIndent(2))
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(f.writer, string(out))
		return err
	case FormatYAML:
		enc := yaml.NewEncoder(f.writer)
		enc.SetIndent(2)
		if err := enc.Encode(data); err != nil {
			return err
		}
		return enc.Close()
	default:
		enc := json.NewEncoder(f.writer)
		enc.SetIndent("", "  ")
		return enc.Encode(data)
	}
}

// Table is a titled table of rows. Data, when set, replaces the rows in
// the structured formats.
type Table struct {
	Title   string
	Headers []string
	Rows    [][]string
	Footer  []string
	Data    any
}

// NewTable creates a table that wraps structured data for serialization.
func NewTable(title string, headers []string, rows [][]string, footer []string, data any) *Table {
	return &Table{
		Title:   title,
		Headers: headers,
		Rows:    rows,
		Footer:  footer,
		Data:    data,
	}
}

// RenderData returns Data, or the rows as header-keyed maps.
func (t *Table) RenderData() any {
	if t.Data != nil {
		return t.Data
	}
	result := make([]map[string]string, len(t.Rows))
	for i, row := range t.Rows {
		m := make(map[string]string, len(t.Headers))
		for j, h := range t.Headers {
			if j < len(row) {
				m[h] = row[j]
			}
		}
		result[i] = m
	}
	return result
}

func (t *Table) RenderText(w io.Writer, colored bool) error {
	if t.Title != "" {
		heading(w, t.Title, color.New(color.Bold), colored)
		fmt.Fprintln(w)
	}
	if len(t.Rows) == 0 {
		_, err := fmt.Fprintln(w, "(none)")
		return err
	}

	table := newTextTable(w)
	table.Header(t.Headers)
	for _, row := range t.Rows {
		table.Append(row)
	}
	if len(t.Footer) > 0 {
		cells := make([]any, len(t.Footer))
		for i, c := range t.Footer {
			cells[i] = c
		}
		table.Footer(cells...)
	}
	table.Render()
	fmt.Fprintln(w)
	return nil
}

// newTextTable is a borderless, left-aligned table.
func newTextTable(w io.Writer) *tablewriter.Table {
	left := tw.CellAlignment{Global: tw.AlignLeft}
	return tablewriter.NewTable(w,
		tablewriter.WithConfig(tablewriter.Config{
			Header: tw.CellConfig{
				Alignment:  left,
				Formatting: tw.CellFormatting{AutoFormat: tw.On},
			},
			Row:    tw.CellConfig{Alignment: left},
			Footer: tw.CellConfig{Alignment: left},
		}),
		tablewriter.WithRendition(tw.Rendition{
			Borders: tw.Border{Left: tw.Off, Right: tw.Off, Top: tw.Off, Bottom: tw.Off},
			Settings: tw.Settings{
				Separators: tw.Separators{BetweenColumns: tw.Off},
			},
		}),
	)
}

func (t *Table) RenderMarkdown(w io.Writer) error {
	if t.Title != "" {
		fmt.Fprintf(w, "## %s\n\n", t.Title)
	}
	if len(t.Rows) == 0 {
		_, err := fmt.Fprint(w, "_none_\n\n")
		return err
	}

	markdownRow(w, t.Headers)
	seps := make([]string, len(t.Headers))
	for i := range seps {
		seps[i] = "---"
	}
	markdownRow(w, seps)
	for _, row := range t.Rows {
		markdownRow(w, row)
	}
	if len(t.Footer) > 0 {
		markdownRow(w, t.Footer)
	}
	_, err := fmt.Fprintln(w)
	return err
}

// markdownRow writes one pipe table row. Pipes inside cells are escaped.
func markdownRow(w io.Writer, cells []string) {
	escaped := make([]string, len(cells))
	for i, c := range cells {
		escaped[i] = strings.ReplaceAll(c, "|", `\|`)
	}
	fmt.Fprintf(w, "| %s |\n", strings.Join(escaped, " | "))
}

// Report renders several tables under one title. Structured formats emit
// Data when it is set, and the table data keyed by title otherwise.
type Report struct {
	Title  string
	Tables []*Table
	Data   any
}

func (r *Report) RenderData() any {
	if r.Data != nil {
		return r.Data
	}
	data := make(map[string]any, len(r.Tables))
	for _, t := range r.Tables {
		data[t.Title] = t.RenderData()
	}
	return data
}

func (r *Report) RenderText(w io.Writer, colored bool) error {
	heading(w, r.Title, color.New(color.Bold, color.FgCyan), colored)
	for _, t := range r.Tables {
		fmt.Fprintln(w)
		if err := t.RenderText(w, colored); err != nil {
			return err
		}
	}
	return nil
}

func (r *Report) RenderMarkdown(w io.Writer) error {
	fmt.Fprintf(w, "# %s\n\n", r.Title)
	for _, t := range r.Tables {
		if err := t.RenderMarkdown(w); err != nil {
			return err
		}
	}
	return nil
}

// heading prints title underlined with '='.
func heading(w io.Writer, title string, c *color.Color, colored bool) {
	if colored {
		c.Fprintln(w, title)
	} else {
		fmt.Fprintln(w, title)
	}
	fmt.Fprintln(w, strings.Repeat("=", len(title)))
}

// Success prints a completion message, green when colored.
func (f *Formatter) Success(format string, args ...any) {
	if f.colored {
		color.Green(format, args...)
		return
	}
	fmt.Fprintf(f.writer, format+"\n", args...)
}

// Warning prints a message the user should act on, yellow when colored.
func (f *Formatter) Warning(format string, args ...any) {
	if f.colored {
		color.Yellow(format, args...)
		return
	}
	fmt.Fprintf(f.writer, "WARNING: "+format+"\n", args...)
}

// StatusColor returns text colored by the outcome of a planned or applied
// change.
func StatusColor(status, text string) string {
	switch strings.ToLower(status) {
	case "failed", "ambiguous", "unresolved":
		return color.RedString(text)
	case "skipped", "cached":
		return color.YellowString(text)
	case "renamed", "rewritten", "resolved":
		return color.GreenString(text)
	default:
		return text
	}
}
