package export

import (
	"bytes"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
	"github.com/xuri/excelize/v2"
)

func table(t *testing.T, data string) Table {
	t.Helper()
	tbl, err := ParseTable(gjson.Parse(data))
	require.NoError(t, err)
	return tbl
}

func TestCSVEncodesCellsAsJSON(t *testing.T) {
	tbl := table(t, `[{"name":"Ann, \"A\"","age":31,"ok":true,"note":null},{"name":"<b>","age":2.5,"ok":false,"tags":["x"]}]`)
	var buf bytes.Buffer
	require.NoError(t, CSV{}.Render(&buf, tbl))
	want := "name,age,ok,note\n" +
		`"Ann, \"A\"",31,true,""` + "\n" +
		`"<b>",2.5,false,""`
	assert.Equal(t, want, buf.String())
}

func TestCSVNestedValuesAreCompact(t *testing.T) {
	tbl := table(t, `[{"obj":{ "a" : [1, 2] }}]`)
	var buf bytes.Buffer
	require.NoError(t, CSV{}.Render(&buf, tbl))
	assert.Equal(t, "obj\n{\"a\":[1,2]}", buf.String())
}

func TestXLSXWritesDataSheet(t *testing.T) {
	tbl := table(t, `[{"city":"Zürich","pop":421878,"capital":false},{"city":"Bern","pop":134591}]`)
	var buf bytes.Buffer
	require.NoError(t, XLSX{}.Render(&buf, tbl))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()
	assert.Equal(t, []string{"Data"}, f.GetSheetList())

	rows, err := f.GetRows("Data")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"city", "pop", "capital"}, rows[0])
	assert.Equal(t, "Zürich", rows[1][0])
	assert.Equal(t, "421878", rows[1][1])
	assert.Equal(t, []string{"Bern", "134591"}, rows[2])

	width, err := f.GetColWidth("Data", "C")
	require.NoError(t, err)
	assert.Equal(t, float64(columnWidth), width)
}

func TestPDFLayoutBreaksPages(t *testing.T) {
	short := table(t, `[{"a":1,"b":"two"}]`)
	doc, err := PDF{}.layout(short)
	require.NoError(t, err)
	assert.Equal(t, 1, doc.PageCount())

	var rows []string
	for i := 0; i < 100; i++ {
		rows = append(rows, fmt.Sprintf(`{"n":%d,"text":"row %d"}`, i, i))
	}
	long := table(t, "["+strings.Join(rows, ",")+"]")
	doc, err = PDF{}.layout(long)
	require.NoError(t, err)
	assert.Greater(t, doc.PageCount(), 2)

	var buf bytes.Buffer
	require.NoError(t, PDF{}.Render(&buf, long))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")))
}

func TestPDFMissingFontsFail(t *testing.T) {
	var buf bytes.Buffer
	err := PDF{FontDir: t.TempDir()}.Render(&buf, table(t, `[{"a":1}]`))
	assert.Error(t, err)
	assert.Zero(t, buf.Len())
}
