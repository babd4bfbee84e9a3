// Package pdfform implements document.Form on top of a PDF AcroForm template
// using pdfcpu.
//
// pdfcpu cannot flatten an AcroForm. Flatten fills the text fields with
// appearance streams drawn in the embedded script font and then marks every
// text field read-only. The fields stay in the document's AcroForm; other
// field types are left untouched.
package pdfform

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/jogardn/saleco-docs/internal/document"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/form"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/primitives"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
	"github.com/sirupsen/logrus"
)

// scriptFontID is the resource name the script font is registered under in
// every written field's appearance stream.
const scriptFontID = "TTScript"

// Opener opens PDF templates. It holds no per-document state.
type Opener struct {
	logger *logrus.Logger
}

// NewOpener returns an Opener that installs script fonts into pdfcpu's user
// font directory below configDir. An empty configDir keeps pdfcpu's default
// configuration directory.
func NewOpener(configDir string, logger *logrus.Logger) (*Opener, error) {
	if configDir != "" {
		if err := useConfigDir(configDir); err != nil {
			return nil, fmt.Errorf("failed to set up pdfcpu config dir: %w", err)
		}
	}
	return &Opener{logger: logger}, nil
}

func newConfiguration(cmd model.CommandMode) *model.Configuration {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	conf.Cmd = cmd
	return conf
}

// Open reads the template's field inventory and makes the script font
// available for embedding. Templates without text fields are rejected.
func (o *Opener) Open(template []byte, font *document.EmbeddedFont) (document.Form, error) {
	group, err := api.ExportForm(bytes.NewReader(template), "template.pdf", newConfiguration(model.EXPORTFORMFIELDS))
	if err != nil {
		return nil, fmt.Errorf("failed to read form fields: %w", err)
	}

	fields := make(map[string]*form.TextField)
	for _, f := range group.Forms {
		for _, field := range f.TextFields {
			fields[field.Name] = field
		}
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("template has no text fields")
	}

	fontName, err := installUserFont(font)
	if err != nil {
		return nil, &document.FontLoadError{Err: err}
	}

	o.logger.WithFields(logrus.Fields{
		"text_fields": len(fields),
		"font":        fontName,
	}).Debug("PDF template opened")

	return &Form{
		template: template,
		fields:   fields,
		writes:   make(map[string]write),
		font:     font,
		fontName: fontName,
		logger:   o.logger,
	}, nil
}

type write struct {
	value string
	size  float64
}

// Form buffers field writes and applies them to the template in one pass on
// Flatten.
type Form struct {
	template []byte
	fields   map[string]*form.TextField
	writes   map[string]write
	order    []string
	font     *document.EmbeddedFont
	fontName string
	logger   *logrus.Logger

	output    []byte
	flattened bool
}

func (f *Form) SetText(field, value string, opts document.TextOptions) error {
	if f.flattened {
		return document.ErrAlreadyFinalized
	}
	target, ok := f.fields[field]
	if !ok {
		return document.ErrUnknownField
	}
	if opts.Multiline && !target.Multiline {
		return document.ErrMultilineRejected
	}
	if _, seen := f.writes[field]; !seen {
		f.order = append(f.order, field)
	}
	f.writes[field] = write{value: value, size: opts.FontSize}
	return nil
}

// Flatten draws every written field in the script font at its requested
// size, embeds the used glyph subset and locks all text fields.
func (f *Form) Flatten() error {
	if f.flattened {
		return document.ErrAlreadyFinalized
	}

	conf := newConfiguration(model.FILLFORMFIELDS)
	ctx, err := api.ReadValidateAndOptimize(bytes.NewReader(f.template), conf)
	if err != nil {
		return fmt.Errorf("failed to read template: %w", err)
	}
	ctx.RemoveSignature()

	if len(f.order) > 0 {
		fontRef, err := scriptFontDict(ctx, f.fontName)
		if err != nil {
			return fmt.Errorf("failed to register script font: %w", err)
		}
		for _, name := range f.order {
			if err := f.prepareField(ctx, f.fields[name], fontRef); err != nil {
				return fmt.Errorf("failed to prepare field %s: %w", name, err)
			}
		}
	}

	data := form.Form{}
	for _, field := range f.fields {
		value := field.Value
		if w, ok := f.writes[field.Name]; ok {
			value = w.value
		}
		data.TextFields = append(data.TextFields, &form.TextField{
			Pages:     field.Pages,
			ID:        field.ID,
			Name:      field.Name,
			Value:     value,
			Multiline: field.Multiline,
			Locked:    true,
		})
	}

	if _, _, err := form.FillForm(ctx, form.FillDetails(&data, nil), nil, form.JSON); err != nil {
		return fmt.Errorf("failed to fill form: %w", err)
	}

	var out bytes.Buffer
	if err := api.Write(ctx, &out, conf); err != nil {
		return fmt.Errorf("failed to write document: %w", err)
	}

	f.output = out.Bytes()
	f.flattened = true

	f.logger.WithFields(logrus.Fields{
		"fields_written": len(f.order),
		"glyphs":         len(f.font.Subset()),
	}).Debug("Form flattened")
	return nil
}

// prepareField points the field's widgets at the script font with the
// requested size. Each widget gets a fresh appearance stream whose resources
// hold the font, so pdfcpu encodes the value as glyph ids of that font. The
// old appearance is only unlinked; its resources may be shared with other
// fields.
func (f *Form) prepareField(ctx *model.Context, field *form.TextField, fontRef *types.IndirectRef) error {
	objNr, err := strconv.Atoi(field.ID)
	if err != nil {
		return fmt.Errorf("invalid field id %q: %w", field.ID, err)
	}
	d, err := ctx.DereferenceDict(*types.NewIndirectRef(objNr, 0))
	if err != nil {
		return err
	}
	if d == nil {
		return fmt.Errorf("field object %d not found", objNr)
	}

	inherited := ""
	if s := d.StringEntry("DA"); s != nil {
		inherited = *s
	} else if s := ctx.Form.StringEntry("DA"); s != nil {
		inherited = *s
	}
	size := f.writes[field.Name].size
	// A stale value equal to the new one would skip appearance generation.
	delete(d, "V")

	widgets := []types.Dict{d}
	if kids := d.ArrayEntry("Kids"); len(kids) > 0 {
		widgets = widgets[:0]
		for _, o := range kids {
			kid, err := ctx.DereferenceDict(o)
			if err != nil {
				return err
			}
			if kid != nil {
				widgets = append(widgets, kid)
			}
		}
	}

	for _, widget := range widgets {
		da := inherited
		if s := widget.StringEntry("DA"); s != nil {
			da = *s
		}
		widget["DA"] = types.StringLiteral(scriptDA(da, size))

		bounds := widget.ArrayEntry("Rect")
		if len(bounds) != 4 {
			return fmt.Errorf("widget of field %s has no Rect", field.Name)
		}
		rect, err := ctx.RectForArray(bounds)
		if err != nil {
			return err
		}
		irN, err := primitives.NewForm(ctx.XRefTable, []byte{}, scriptFontID, fontRef, types.RectForDim(rect.Width(), rect.Height()))
		if err != nil {
			return err
		}
		widget["AP"] = types.Dict(map[string]types.Object{"N": *irN})
	}
	return nil
}

// scriptDA rewrites a default appearance string to select the script font.
// A positive size replaces the template's size; colour operators are kept.
func scriptDA(da string, size float64) string {
	tokens := strings.Fields(da)
	for i, tok := range tokens {
		if tok != "Tf" || i < 2 {
			continue
		}
		tokens[i-2] = "/" + scriptFontID
		if size > 0 {
			tokens[i-1] = formatSize(size)
		}
		return strings.Join(tokens, " ")
	}

	s := "0"
	if size > 0 {
		s = formatSize(size)
	}
	tokens = append([]string{"/" + scriptFontID, s, "Tf"}, tokens...)
	if len(tokens) == 3 {
		tokens = append(tokens, "0", "g")
	}
	return strings.Join(tokens, " ")
}

func formatSize(size float64) string {
	return strconv.FormatFloat(size, 'f', -1, 64)
}

// Save returns the flattened PDF.
func (f *Form) Save() ([]byte, error) {
	if !f.flattened {
		return nil, fmt.Errorf("form must be flattened before saving")
	}
	return f.output, nil
}
