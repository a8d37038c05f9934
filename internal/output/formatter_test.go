package output

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"
)

type renameRow struct {
	From string `json:"from" yaml:"from" toon:"from"`
	To   string `json:"to" yaml:"to" toon:"to"`
}

func renameTable() *Table {
	data := []renameRow{
		{From: "a/test_d.ilproj", To: "a/test_a_d.ilproj"},
		{From: "b/test_d.ilproj", To: "b/test_b_d.ilproj"},
	}
	rows := make([][]string, len(data))
	for i, r := range data {
		rows[i] = []string{r.From, r.To}
	}
	return NewTable("Project Renames", []string{"From", "To"}, rows, []string{"2 renames", ""}, data)
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		input string
		want  Format
	}{
		{"text", FormatText},
		{"JSON", FormatJSON},
		{"markdown", FormatMarkdown},
		{"md", FormatMarkdown},
		{"toon", FormatTOON},
		{"yaml", FormatYAML},
		{"yml", FormatYAML},
		{"", FormatText},
		{"invalid", FormatText},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := ParseFormat(tt.input); got != tt.want {
				t.Errorf("ParseFormat(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestNewFormatterWithFile(t *testing.T) {
	outputPath := filepath.Join(t.TempDir(), "out.txt")

	f, err := NewFormatter(FormatText, outputPath, true)
	if err != nil {
		t.Fatalf("NewFormatter() error: %v", err)
	}
	if f.Colored() {
		t.Error("file output should disable color")
	}
	if f.Format() != FormatText {
		t.Errorf("Format() = %q", f.Format())
	}
	if err := f.Output(renameTable()); err != nil {
		t.Fatalf("Output() error: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}

	content, err := os.ReadFile(outputPath)
	if err != nil {
		t.Fatalf("ReadFile() error: %v", err)
	}
	if !strings.Contains(string(content), "test_a_d.ilproj") {
		t.Errorf("output missing row: %q", content)
	}
}

func TestNewFormatterInvalidPath(t *testing.T) {
	if _, err := NewFormatter(FormatText, "/nonexistent/dir/out.txt", false); err == nil {
		t.Error("NewFormatter() should fail for an invalid path")
	}
}

func TestTableRenderText(t *testing.T) {
	var buf bytes.Buffer
	if err := renameTable().RenderText(&buf, false); err != nil {
		t.Fatalf("RenderText() error: %v", err)
	}
	// Header and footer cells may be upper-cased by the table renderer.
	out := strings.ToLower(buf.String())
	for _, want := range []string{"project renames", "===============", "from", "b/test_b_d.ilproj", "2 renames"} {
		if !strings.Contains(out, want) {
			t.Errorf("RenderText() missing %q in:\n%s", want, out)
		}
	}
}

func TestTableRenderMarkdown(t *testing.T) {
	var buf bytes.Buffer
	if err := renameTable().RenderMarkdown(&buf); err != nil {
		t.Fatalf("RenderMarkdown() error: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"## Project Renames", "| From | To |", "| --- | --- |", "| a/test_d.ilproj | a/test_a_d.ilproj |"} {
		if !strings.Contains(out, want) {
			t.Errorf("RenderMarkdown() missing %q in:\n%s", want, out)
		}
	}
}

func TestEmptyTable(t *testing.T) {
	table := NewTable("Class Name Collisions", []string{"Class", "Family"}, nil, nil, nil)

	var text bytes.Buffer
	if err := table.RenderText(&text, false); err != nil {
		t.Fatalf("RenderText() error: %v", err)
	}
	if !strings.HasSuffix(text.String(), "(none)\n") {
		t.Errorf("RenderText() = %q", text.String())
	}

	var md bytes.Buffer
	if err := table.RenderMarkdown(&md); err != nil {
		t.Fatalf("RenderMarkdown() error: %v", err)
	}
	if strings.Contains(md.String(), "| Class |") || !strings.Contains(md.String(), "_none_") {
		t.Errorf("RenderMarkdown() = %q", md.String())
	}
}

func TestTableRenderMarkdownEscapesPipes(t *testing.T) {
	table := NewTable("", []string{"Line"}, [][]string{{"a|b"}}, nil, nil)
	var buf bytes.Buffer
	if err := table.RenderMarkdown(&buf); err != nil {
		t.Fatalf("RenderMarkdown() error: %v", err)
	}
	if !strings.Contains(buf.String(), `| a\|b |`) {
		t.Errorf("RenderMarkdown() = %q", buf.String())
	}
}

func TestTableRenderDataWithoutData(t *testing.T) {
	table := NewTable("", []string{"Class", "Projects"}, [][]string{{"Program", "3"}}, nil, nil)
	data, ok := table.RenderData().([]map[string]string)
	if !ok || len(data) != 1 || data[0]["Class"] != "Program" || data[0]["Projects"] != "3" {
		t.Errorf("RenderData() = %#v", table.RenderData())
	}
}

func TestFormatterJSON(t *testing.T) {
	var buf bytes.Buffer
	f := NewWriterFormatter(FormatJSON, &buf, false)
	if err := f.Output(renameTable()); err != nil {
		t.Fatalf("Output() error: %v", err)
	}

	var rows []renameRow
	if err := json.Unmarshal(buf.Bytes(), &rows); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, buf.String())
	}
	if len(rows) != 2 || rows[1].To != "b/test_b_d.ilproj" {
		t.Errorf("rows = %+v", rows)
	}
}

func TestFormatterYAML(t *testing.T) {
	var buf bytes.Buffer
	f := NewWriterFormatter(FormatYAML, &buf, false)
	if err := f.Output(renameTable()); err != nil {
		t.Fatalf("Output() error: %v", err)
	}

	var rows []renameRow
	if err := yaml.Unmarshal(buf.Bytes(), &rows); err != nil {
		t.Fatalf("output is not YAML: %v\n%s", err, buf.String())
	}
	if len(rows) != 2 || rows[0].From != "a/test_d.ilproj" {
		t.Errorf("rows = %+v", rows)
	}
}

func TestFormatterTOON(t *testing.T) {
	var buf bytes.Buffer
	f := NewWriterFormatter(FormatTOON, &buf, false)
	if err := f.Output(map[string]any{"renames": 2, "ambiguous": 0}); err != nil {
		t.Fatalf("Output() error: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "renames: 2") {
		t.Errorf("TOON output = %q", out)
	}
}

func TestFormatterMarkdownRawData(t *testing.T) {
	var buf bytes.Buffer
	f := NewWriterFormatter(FormatMarkdown, &buf, false)
	if err := f.Output(map[string]int{"projects": 42}); err != nil {
		t.Fatalf("Output() error: %v", err)
	}
	out := buf.String()
	if !strings.HasPrefix(out, "```json\n") || !strings.Contains(out, `"projects": 42`) {
		t.Errorf("markdown raw output = %q", out)
	}
}

func TestReport(t *testing.T) {
	report := &Report{
		Title: "Scan",
		Tables: []*Table{
			NewTable("Flavors", []string{"Flavor", "Projects"}, [][]string{{"dbg", "12"}}, nil, nil),
			renameTable(),
		},
	}

	var text bytes.Buffer
	if err := report.RenderText(&text, false); err != nil {
		t.Fatalf("RenderText() error: %v", err)
	}
	out := strings.ToLower(text.String())
	if !strings.HasPrefix(out, "scan\n====\n") || !strings.Contains(out, "flavors") || !strings.Contains(out, "project renames") {
		t.Errorf("report text = %q", text.String())
	}

	var md bytes.Buffer
	if err := report.RenderMarkdown(&md); err != nil {
		t.Fatalf("RenderMarkdown() error: %v", err)
	}
	if !strings.Contains(md.String(), "# Scan") || !strings.Contains(md.String(), "## Flavors") {
		t.Errorf("report markdown = %q", md.String())
	}

	data, ok := report.RenderData().(map[string]any)
	if !ok || len(data) != 2 || data["Flavors"] == nil {
		t.Errorf("RenderData() = %#v", report.RenderData())
	}
	report.Data = []string{"raw"}
	if _, ok := report.RenderData().([]string); !ok {
		t.Errorf("RenderData() should prefer Data, got %#v", report.RenderData())
	}
}

func TestFormatterMessageMethods(t *testing.T) {
	tests := []struct {
		name   string
		method func(*Formatter, string, ...any)
		format string
		args   []any
		want   string
	}{
		{"success", (*Formatter).Success, "Rewrote %d files", []any{3}, "Rewrote 3 files"},
		{"warning", (*Formatter).Warning, "%d ambiguous occurrences", []any{2}, "WARNING: 2 ambiguous occurrences"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			f := NewWriterFormatter(FormatText, &buf, false)
			tt.method(f, tt.format, tt.args...)
			if !strings.Contains(buf.String(), tt.want) {
				t.Errorf("output = %q, want to contain %q", buf.String(), tt.want)
			}
		})
	}
}

func TestStatusColor(t *testing.T) {
	for _, status := range []string{"renamed", "skipped", "failed", "other", ""} {
		if StatusColor(status, "x") == "" {
			t.Errorf("StatusColor(%q) returned empty string", status)
		}
	}
}
