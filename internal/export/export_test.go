package export

import (
	"encoding/json"
	"reflect"
	"slices"
	"strings"
	"testing"
	"time"

	"payrollforms/internal/core"
)

func fixtureStore(t *testing.T) *core.Store {
	t.Helper()
	s := core.NewStore()
	base := time.Date(2025, 2, 14, 9, 30, 0, 0, time.UTC)
	r1 := core.NewRecord("form_1739525400000", base, "2025-02")
	r1.Content = `He said "hi"`
	r2 := core.NewRecord("form_1739525460000", base.Add(time.Minute), "2025-02")
	r2.Content = "line one\nline two"
	for _, r := range []core.Record{r1, r2} {
		if err := s.Add(r); err != nil {
			t.Fatalf("add: %v", err)
		}
	}
	return s
}

func TestParseFormat(t *testing.T) {
	cases := map[string]Format{"json": FormatJSON, "CSV": FormatCSV, "txt": FormatText, " text ": FormatText}
	for in, want := range cases {
		got, err := ParseFormat(in)
		if err != nil || got != want {
			t.Fatalf("ParseFormat(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := ParseFormat("xml"); err == nil {
		t.Fatal("expected error for xml")
	}
}

func TestFilenameAndContentType(t *testing.T) {
	tests := []struct {
		f        Format
		month    string
		filename string
		ctype    string
	}{
		{FormatJSON, "2025-02", "payroll-forms.json", "application/json; charset=utf-8"},
		{FormatCSV, "2025-02", "payroll-forms-2025-02.csv", "text/csv; charset=utf-8"},
		{FormatCSV, "", "payroll-forms.csv", "text/csv; charset=utf-8"},
		{FormatText, "2025-02", "payroll-forms.txt", "text/plain; charset=utf-8"},
	}
	for _, tt := range tests {
		if got := Filename(tt.f, tt.month); got != tt.filename {
			t.Errorf("Filename(%s, %s) = %s, want %s", tt.f, tt.month, got, tt.filename)
		}
		if got := ContentType(tt.f); got != tt.ctype {
			t.Errorf("ContentType(%s) = %s, want %s", tt.f, got, tt.ctype)
		}
	}
}

func TestJSONIsLossless(t *testing.T) {
	s := fixtureStore(t)
	data, err := JSON(s)
	if err != nil {
		t.Fatalf("JSON: %v", err)
	}
	if !strings.Contains(string(data), "\n  \"form_1739525400000\": {\n    \"id\"") {
		t.Fatalf("expected two space indentation, got:\n%s", data)
	}

	var back map[string]core.Record
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !reflect.DeepEqual(back, s.Map()) {
		t.Fatalf("round trip mismatch:\n got %+v\nwant %+v", back, s.Map())
	}
}

func TestCSVQuoting(t *testing.T) {
	s := fixtureStore(t)
	out := string(CSV(s.All()))

	lines := strings.SplitN(out, "\n", 2)
	if lines[0] != "id,createdAt,lastModified,monthKey,content,date" {
		t.Fatalf("header = %q", lines[0])
	}
	wantRow := `"form_1739525400000","2025-02-14T09:30:00.000Z","2025-02-14T09:30:00.000Z","2025-02","He said ""hi""","14/02/2025"`
	if !strings.Contains(out, wantRow+"\n") {
		t.Fatalf("missing quoted row %s in:\n%s", wantRow, out)
	}
	if !strings.Contains(out, "\"line one\nline two\"") {
		t.Fatalf("newline should stay inside quotes:\n%s", out)
	}
}

func TestCSVEmpty(t *testing.T) {
	out := string(CSV(slices.Values([]core.Record(nil))))
	if out != "id,createdAt,lastModified,monthKey,content,date\n" {
		t.Fatalf("unexpected empty export %q", out)
	}
}

func TestText(t *testing.T) {
	s := fixtureStore(t)
	out := string(Text(s.All()))

	want := "ID: form_1739525400000\n" +
		"Created At: 2025-02-14T09:30:00.000Z\n" +
		"Last Modified: 2025-02-14T09:30:00.000Z\n" +
		"Month: 2025-02\n" +
		"Date: 14/02/2025\n" +
		"Content: He said \"hi\"\n\n"
	if !strings.HasPrefix(out, want) {
		t.Fatalf("first block mismatch:\n%s", out)
	}
	if strings.Count(out, "ID: ") != 2 {
		t.Fatalf("expected two blocks:\n%s", out)
	}
	if !strings.HasSuffix(out, "Content: line one\nline two\n\n") {
		t.Fatalf("blocks should end with a blank line:\n%q", out)
	}
}
