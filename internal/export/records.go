// Package export renders tabular chat results as downloadable files.
package export

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"strings"

	"github.com/tidwall/gjson"
)

var (
	// ErrInvalidBody is returned when the request body is not a JSON object.
	ErrInvalidBody = errors.New("invalid request body")
	// ErrNoData is returned when the body carries no usable records.
	ErrNoData = errors.New("no tabular data provided")
)

// Table is an ordered set of records. Columns follow the key order of the
// first record; keys that only appear in later records are ignored.
type Table struct {
	Columns []string
	Rows    [][]gjson.Result
}

// Request is a decoded export call.
type Request struct {
	Table    Table
	Filename string
}

// Renderer writes a table in one file format.
type Renderer interface {
	Format() string
	ContentType() string
	DefaultFilename() string
	Render(w io.Writer, t Table) error
}

// ParseRequest decodes {"data":[...],"filename":"..."}. defaultName is used
// when no filename is given.
func ParseRequest(body []byte, defaultName string) (Request, error) {
	if !gjson.ValidBytes(body) {
		return Request{}, ErrInvalidBody
	}
	root := gjson.ParseBytes(body)
	if !root.IsObject() {
		return Request{}, ErrInvalidBody
	}
	t, err := ParseTable(root.Get("data"))
	if err != nil {
		return Request{}, err
	}
	name := defaultName
	if f := root.Get("filename"); f.Type == gjson.String && f.Str != "" {
		name = f.Str
	}
	return Request{Table: t, Filename: SafeFilename(name, defaultName)}, nil
}

// ParseTable converts a JSON array of objects into a Table.
func ParseTable(data gjson.Result) (Table, error) {
	if !data.IsArray() {
		return Table{}, ErrNoData
	}
	records := data.Array()
	if len(records) == 0 || !records[0].IsObject() {
		return Table{}, ErrNoData
	}
	var t Table
	seen := map[string]bool{}
	records[0].ForEach(func(k, _ gjson.Result) bool {
		if !seen[k.Str] {
			seen[k.Str] = true
			t.Columns = append(t.Columns, k.Str)
		}
		return true
	})
	for _, rec := range records {
		if !rec.IsObject() {
			return Table{}, ErrNoData
		}
		fields := make(map[string]gjson.Result, len(t.Columns))
		rec.ForEach(func(k, v gjson.Result) bool {
			if _, dup := fields[k.Str]; !dup {
				fields[k.Str] = v
			}
			return true
		})
		row := make([]gjson.Result, len(t.Columns))
		for i, col := range t.Columns {
			row[i] = fields[col]
		}
		t.Rows = append(t.Rows, row)
	}
	return t, nil
}

// SafeFilename strips characters that would break a Content-Disposition
// header or escape the download directory.
func SafeFilename(name, fallback string) string {
	name = strings.Map(func(r rune) rune {
		switch r {
		case '"', '\\', '/', '\r', '\n', 0:
			return '_'
		}
		return r
	}, strings.TrimSpace(name))
	if name == "" || name == "." || name == ".." {
		return fallback
	}
	return name
}

// cellText is the display form of a value: strings unquoted, null or
// missing empty, everything else as compact JSON.
func cellText(v gjson.Result) string {
	switch v.Type {
	case gjson.Null:
		return ""
	case gjson.String:
		return v.Str
	default:
		return compactRaw(v.Raw)
	}
}

func compactRaw(raw string) string {
	var buf bytes.Buffer
	if err := json.Compact(&buf, []byte(raw)); err != nil {
		return raw
	}
	return buf.String()
}
