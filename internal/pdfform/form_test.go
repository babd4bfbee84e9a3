package pdfform

import (
	"bytes"
	"os"
	"strings"
	"testing"

	"github.com/jogardn/saleco-docs/internal/document"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/form"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/font/gofont/goregular"
)

var configDir string

func TestMain(m *testing.M) {
	dir, err := os.MkdirTemp("", "pdfform-test")
	if err != nil {
		panic(err)
	}
	configDir = dir
	code := m.Run()
	os.RemoveAll(dir)
	os.Exit(code)
}

const templateJSON = `{
	"paper": "A4P",
	"origin": "LowerLeft",
	"fonts": {
		"input": {"name": "Helvetica", "size": 10}
	},
	"pages": {
		"1": {
			"content": {
				"textfield": [
					{"id": "customername", "pos": [50, 700], "width": 200},
					{"id": "productid1", "pos": [50, 650], "width": 200},
					{"id": "remark1", "pos": [50, 560], "width": 200, "height": 60, "multiline": true}
				]
			}
		}
	}
}`

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	return logger
}

func newTestOpener(t *testing.T) *Opener {
	t.Helper()
	opener, err := NewOpener(configDir, testLogger())
	require.NoError(t, err)
	return opener
}

func newTemplate(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, api.Create(nil, strings.NewReader(templateJSON), &buf, nil))
	return buf.Bytes()
}

func newScriptFont(t *testing.T) *document.EmbeddedFont {
	t.Helper()
	font, err := document.ParseFont(goregular.TTF)
	require.NoError(t, err)
	return font
}

func newTestForm(t *testing.T) *Form {
	t.Helper()
	return &Form{
		template: []byte("%PDF-1.7"),
		fields: map[string]*form.TextField{
			"customername": {Name: "customername", ID: "12", Pages: []int{1}},
			"productid1":   {Name: "productid1", ID: "40", Pages: []int{1}, Multiline: true},
		},
		writes: make(map[string]write),
		font:   newScriptFont(t),
		logger: testLogger(),
	}
}

func readOutput(t *testing.T, data []byte) *model.Context {
	t.Helper()
	ctx, err := api.ReadContext(bytes.NewReader(data), model.NewDefaultConfiguration())
	require.NoError(t, err)
	return ctx
}

func embeddedFontNames(ctx *model.Context) []string {
	var names []string
	for _, entry := range ctx.XRefTable.Table {
		if entry == nil || entry.Free {
			continue
		}
		d, ok := entry.Object.(types.Dict)
		if !ok {
			continue
		}
		if typ := d.Type(); typ == nil || *typ != "FontDescriptor" {
			continue
		}
		if _, found := d.Find("FontFile2"); !found {
			continue
		}
		if name := d.NameEntry("FontName"); name != nil {
			names = append(names, *name)
		}
	}
	return names
}

func fieldDA(t *testing.T, ctx *model.Context, name string) string {
	t.Helper()
	for _, entry := range ctx.XRefTable.Table {
		if entry == nil || entry.Free {
			continue
		}
		d, ok := entry.Object.(types.Dict)
		if !ok {
			continue
		}
		title, err := d.StringOrHexLiteralEntry("T")
		if err != nil || title == nil || *title != name {
			continue
		}
		if da := d.StringEntry("DA"); da != nil {
			return *da
		}
	}
	t.Fatalf("field %s has no DA", name)
	return ""
}

func TestForm_SetText(t *testing.T) {
	f := newTestForm(t)

	require.NoError(t, f.SetText("customername", "Acme Co.", document.TextOptions{FontSize: 10}))
	require.NoError(t, f.SetText("productid1", "A1 - Pump", document.TextOptions{FontSize: 8, Multiline: true}))
	require.NoError(t, f.SetText("customername", "Acme Co. Ltd", document.TextOptions{FontSize: 9}))

	assert.Equal(t, []string{"customername", "productid1"}, f.order)
	assert.Equal(t, write{value: "Acme Co. Ltd", size: 9}, f.writes["customername"])
}

func TestForm_SetTextUnknownField(t *testing.T) {
	f := newTestForm(t)
	err := f.SetText("box9", "X", document.TextOptions{FontSize: 10})
	assert.ErrorIs(t, err, document.ErrUnknownField)
}

func TestForm_SetTextMultilineRejected(t *testing.T) {
	f := newTestForm(t)

	err := f.SetText("customername", "two lines", document.TextOptions{FontSize: 10, Multiline: true})
	assert.ErrorIs(t, err, document.ErrMultilineRejected)

	err = f.SetText("customername", "two lines", document.TextOptions{FontSize: 10})
	assert.NoError(t, err)
}

func TestForm_WritesRejectedAfterFlatten(t *testing.T) {
	f := newTestForm(t)
	f.flattened = true
	f.output = []byte("%PDF-1.7 flattened")

	err := f.SetText("customername", "late", document.TextOptions{FontSize: 10})
	assert.ErrorIs(t, err, document.ErrAlreadyFinalized)
	assert.ErrorIs(t, f.Flatten(), document.ErrAlreadyFinalized)

	data, err := f.Save()
	require.NoError(t, err)
	assert.Equal(t, []byte("%PDF-1.7 flattened"), data)
}

func TestForm_SaveRequiresFlatten(t *testing.T) {
	f := newTestForm(t)
	_, err := f.Save()
	assert.Error(t, err)
}

func TestOpener_RejectsGarbage(t *testing.T) {
	_, err := newTestOpener(t).Open([]byte("not a pdf"), newScriptFont(t))
	assert.Error(t, err)
}

func TestOpener_ReadsFieldInventory(t *testing.T) {
	opened, err := newTestOpener(t).Open(newTemplate(t), newScriptFont(t))
	require.NoError(t, err)

	f := opened.(*Form)
	require.Len(t, f.fields, 3)
	assert.True(t, f.fields["remark1"].Multiline)
	assert.False(t, f.fields["customername"].Multiline)
	assert.Equal(t, "GoRegular", f.fontName)

	err = f.SetText("customername", "x", document.TextOptions{Multiline: true})
	assert.ErrorIs(t, err, document.ErrMultilineRejected)
}

func TestForm_FlattenRoundTrip(t *testing.T) {
	font := newScriptFont(t)
	opened, err := newTestOpener(t).Open(newTemplate(t), font)
	require.NoError(t, err)

	font.Prepare("Acme Co. Ltd A1 Pump")
	require.NoError(t, opened.SetText("customername", "Acme Co. Ltd", document.TextOptions{FontSize: 9}))
	require.NoError(t, opened.SetText("productid1", "A1 Pump", document.TextOptions{FontSize: 5}))
	require.NoError(t, opened.Flatten())

	out, err := opened.Save()
	require.NoError(t, err)

	group, err := api.ExportForm(bytes.NewReader(out), "out.pdf", nil)
	require.NoError(t, err)
	require.Len(t, group.Forms, 1)

	values := make(map[string]*form.TextField)
	for _, field := range group.Forms[0].TextFields {
		values[field.Name] = field
	}
	require.Len(t, values, 3)
	assert.Equal(t, "Acme Co. Ltd", values["customername"].Value)
	assert.Equal(t, "A1 Pump", values["productid1"].Value)
	assert.Empty(t, values["remark1"].Value)
	for name, field := range values {
		assert.True(t, field.Locked, "field %s should be read-only", name)
	}

	ctx := readOutput(t, out)

	var subset bool
	for _, name := range embeddedFontNames(ctx) {
		if strings.HasSuffix(name, "+GoRegular") {
			subset = true
		}
	}
	assert.True(t, subset, "script font should be embedded as a subset")

	assert.Contains(t, fieldDA(t, ctx, "productid1"), "/TTScript 5 Tf")
	assert.Contains(t, fieldDA(t, ctx, "customername"), "/TTScript 9 Tf")
	assert.NotContains(t, fieldDA(t, ctx, "remark1"), "TTScript")
}

func TestScriptDA(t *testing.T) {
	tests := []struct {
		name string
		da   string
		size float64
		want string
	}{
		{name: "size replaced", da: "/Helv 10 Tf 0 g", size: 7, want: "/TTScript 7 Tf 0 g"},
		{name: "size kept", da: "/F0 12 Tf 0.2 0.2 0.2 rg", size: 0, want: "/TTScript 12 Tf 0.2 0.2 0.2 rg"},
		{name: "fractional size", da: "/Helv 0 Tf 0 g", size: 8.5, want: "/TTScript 8.5 Tf 0 g"},
		{name: "colour only", da: "0 0 1 rg", size: 9, want: "/TTScript 9 Tf 0 0 1 rg"},
		{name: "empty", da: "", size: 0, want: "/TTScript 0 Tf 0 g"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, scriptDA(tt.da, tt.size))
		})
	}
}
