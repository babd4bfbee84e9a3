package document

import (
	"errors"
	"fmt"
	"sort"
	"unicode"

	"github.com/sirupsen/logrus"
	"golang.org/x/image/font/sfnt"
	"golang.org/x/text/unicode/norm"
)

const paragraphSeparator = '\u2029'

// EmbeddedFont is the script font registered with one rendering. It tracks
// every rune written through it so that only the used glyphs are embedded.
type EmbeddedFont struct {
	Name           string
	PostScriptName string

	data    []byte
	font    *sfnt.Font
	buf     sfnt.Buffer
	used    map[rune]struct{}
	missing map[rune]struct{}
}

// ParseFont parses a TrueType/OpenType font.
func ParseFont(data []byte) (*EmbeddedFont, error) {
	if len(data) == 0 {
		return nil, errors.New("font data is empty")
	}
	f, err := sfnt.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse font: %w", err)
	}
	if f.NumGlyphs() == 0 {
		return nil, errors.New("font has no glyphs")
	}

	ef := &EmbeddedFont{
		data:    data,
		font:    f,
		used:    make(map[rune]struct{}),
		missing: make(map[rune]struct{}),
	}
	if name, err := f.Name(&ef.buf, sfnt.NameIDFamily); err == nil {
		ef.Name = name
	}
	if name, err := f.Name(&ef.buf, sfnt.NameIDPostScript); err == nil {
		ef.PostScriptName = name
	}
	return ef, nil
}

// Data returns the raw font program.
func (f *EmbeddedFont) Data() []byte { return f.data }

// Covers reports whether the font has a glyph for r.
func (f *EmbeddedFont) Covers(r rune) bool {
	gid, err := f.font.GlyphIndex(&f.buf, r)
	return err == nil && gid != 0
}

// Prepare normalizes text to NFC, so that Thai vowel and tone marks compose
// the way the font expects, and records its runes for subsetting.
func (f *EmbeddedFont) Prepare(text string) string {
	text = norm.NFC.String(text)
	for _, r := range text {
		if r == paragraphSeparator || unicode.IsSpace(r) || unicode.IsControl(r) {
			continue
		}
		if _, seen := f.used[r]; seen {
			continue
		}
		if _, seen := f.missing[r]; seen {
			continue
		}
		if f.Covers(r) {
			f.used[r] = struct{}{}
		} else {
			f.missing[r] = struct{}{}
		}
	}
	return text
}

// Subset returns the covered runes written so far, sorted.
func (f *EmbeddedFont) Subset() []rune {
	return sortedRunes(f.used)
}

// Missing returns written runes the font has no glyph for, sorted.
func (f *EmbeddedFont) Missing() []rune {
	return sortedRunes(f.missing)
}

func sortedRunes(set map[rune]struct{}) []rune {
	runes := make([]rune, 0, len(set))
	for r := range set {
		runes = append(runes, r)
	}
	sort.Slice(runes, func(i, j int) bool { return runes[i] < runes[j] })
	return runes
}

// EmbeddedContext is an opened template with its registered script font. It
// belongs to exactly one rendering and is never shared.
type EmbeddedContext struct {
	Form Form
	Font *EmbeddedFont
}

type FontEmbeddingManager struct {
	opener TemplateOpener
	logger *logrus.Logger
}

func NewFontEmbeddingManager(opener TemplateOpener, logger *logrus.Logger) *FontEmbeddingManager {
	return &FontEmbeddingManager{
		opener: opener,
		logger: logger,
	}
}

// Load opens the template and registers the script font with it. Either
// failure is fatal for the rendering.
func (m *FontEmbeddingManager) Load(templateBytes, fontBytes []byte) (*EmbeddedContext, error) {
	if len(templateBytes) == 0 {
		return nil, &TemplateLoadError{Err: errors.New("template data is empty")}
	}

	font, err := ParseFont(fontBytes)
	if err != nil {
		return nil, &FontLoadError{Err: err}
	}

	form, err := m.opener.Open(templateBytes, font)
	if err != nil {
		var fontErr *FontLoadError
		if errors.As(err, &fontErr) {
			return nil, err
		}
		return nil, &TemplateLoadError{Err: err}
	}

	m.logger.WithFields(logrus.Fields{
		"font":           font.Name,
		"template_bytes": len(templateBytes),
		"font_bytes":     len(fontBytes),
	}).Debug("Template loaded with embedded script font")

	return &EmbeddedContext{Form: form, Font: font}, nil
}
