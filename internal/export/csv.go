package export

import (
	"bytes"
	"encoding/json"
	"io"
	"strings"

	"github.com/tidwall/gjson"
)

// CSV renders one line per record with every cell JSON encoded, so strings
// stay quoted and embedded commas or newlines survive.
type CSV struct{}

func (CSV) Format() string          { return "csv" }
func (CSV) ContentType() string     { return "text/csv" }
func (CSV) DefaultFilename() string { return "chatbot_data.csv" }

func (CSV) Render(w io.Writer, t Table) error {
	var b strings.Builder
	b.WriteString(strings.Join(t.Columns, ","))
	for _, row := range t.Rows {
		b.WriteByte('\n')
		for i, v := range row {
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteString(jsonCell(v))
		}
	}
	_, err := io.WriteString(w, b.String())
	return err
}

func jsonCell(v gjson.Result) string {
	switch v.Type {
	case gjson.Null:
		return `""`
	case gjson.String:
		var buf bytes.Buffer
		enc := json.NewEncoder(&buf)
		enc.SetEscapeHTML(false)
		if err := enc.Encode(v.Str); err != nil {
			return `""`
		}
		return strings.TrimSuffix(buf.String(), "\n")
	default:
		return compactRaw(v.Raw)
	}
}
