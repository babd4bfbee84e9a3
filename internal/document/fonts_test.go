package document

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/font/gofont/goregular"
)

func TestParseFont(t *testing.T) {
	font, err := ParseFont(goregular.TTF)
	require.NoError(t, err)
	assert.NotEmpty(t, font.Name)
	assert.Equal(t, "GoRegular", font.PostScriptName)
	assert.True(t, font.Covers('A'))
	assert.False(t, font.Covers('ก'))

	_, err = ParseFont(nil)
	assert.Error(t, err)

	_, err = ParseFont([]byte("definitely not a font"))
	assert.Error(t, err)
}

func TestEmbeddedFont_PrepareTracksSubset(t *testing.T) {
	font, err := ParseFont(goregular.TTF)
	require.NoError(t, err)

	out := font.Prepare("BA AB\u2029ก")
	assert.Equal(t, "BA AB\u2029ก", out)
	assert.Equal(t, []rune{'A', 'B'}, font.Subset())
	assert.Equal(t, []rune{'ก'}, font.Missing())
}

func TestEmbeddedFont_PrepareNormalizes(t *testing.T) {
	font, err := ParseFont(goregular.TTF)
	require.NoError(t, err)

	// "e" followed by a combining acute accent composes to U+00E9.
	assert.Equal(t, "\u00e9", font.Prepare("e\u0301"))
}

func TestFontEmbeddingManager_Load(t *testing.T) {
	form := newFakeForm()
	m := NewFontEmbeddingManager(&fakeOpener{form: form}, testLogger())

	ec, err := m.Load([]byte("%PDF-1.7"), goregular.TTF)
	require.NoError(t, err)
	assert.Same(t, form, ec.Form)
	assert.NotNil(t, ec.Font)
}

func TestFontEmbeddingManager_LoadFailures(t *testing.T) {
	tests := []struct {
		name     string
		opener   *fakeOpener
		template []byte
		font     []byte
		check    func(t *testing.T, err error)
	}{
		{
			name:     "empty template",
			opener:   &fakeOpener{form: newFakeForm()},
			template: nil,
			font:     goregular.TTF,
			check: func(t *testing.T, err error) {
				var target *TemplateLoadError
				assert.ErrorAs(t, err, &target)
			},
		},
		{
			name:     "bad font",
			opener:   &fakeOpener{form: newFakeForm()},
			template: []byte("%PDF-1.7"),
			font:     []byte("nope"),
			check: func(t *testing.T, err error) {
				var target *FontLoadError
				assert.ErrorAs(t, err, &target)
			},
		},
		{
			name:     "template rejected",
			opener:   &fakeOpener{err: errors.New("no AcroForm")},
			template: []byte("%PDF-1.7"),
			font:     goregular.TTF,
			check: func(t *testing.T, err error) {
				var target *TemplateLoadError
				assert.ErrorAs(t, err, &target)
			},
		},
		{
			name:     "font rejected by template backend",
			opener:   &fakeOpener{err: &FontLoadError{Err: errors.New("cannot install font")}},
			template: []byte("%PDF-1.7"),
			font:     goregular.TTF,
			check: func(t *testing.T, err error) {
				var fontErr *FontLoadError
				assert.ErrorAs(t, err, &fontErr)
				var templateErr *TemplateLoadError
				assert.False(t, errors.As(err, &templateErr))
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewFontEmbeddingManager(tt.opener, testLogger())
			ec, err := m.Load(tt.template, tt.font)
			require.Error(t, err)
			assert.Nil(t, ec)
			assert.True(t, IsFatal(err))
			tt.check(t, err)
		})
	}
}
