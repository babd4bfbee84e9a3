package document

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/font/gofont/goregular"
)

type fakeSource struct {
	template    []byte
	font        []byte
	templateErr error
	fontErr     error
}

func (s *fakeSource) Template(ctx context.Context) ([]byte, error) { return s.template, s.templateErr }
func (s *fakeSource) Font(ctx context.Context) ([]byte, error)     { return s.font, s.fontErr }

func TestEngine_Generate(t *testing.T) {
	form := newFakeForm()
	source := &fakeSource{template: []byte("%PDF-1.7"), font: goregular.TTF}
	engine := NewEngine(source, &fakeOpener{form: form}, DefaultLayout(), nil, testLogger())

	result, err := engine.Generate(context.Background(), sampleOrder(), makeItems(7))
	require.NoError(t, err)
	assert.NotEmpty(t, result.Document.Bytes)
	assert.Equal(t, 5, result.Report.RowsRendered)
	assert.Equal(t, 2, result.Report.ItemsDropped)
}

func TestEngine_TemplateFetchFailure(t *testing.T) {
	source := &fakeSource{templateErr: errors.New("404 Not Found"), font: goregular.TTF}
	engine := NewEngine(source, &fakeOpener{form: newFakeForm()}, DefaultLayout(), nil, testLogger())

	result, err := engine.Generate(context.Background(), sampleOrder(), makeItems(1))
	assert.Nil(t, result)
	var target *TemplateLoadError
	assert.ErrorAs(t, err, &target)
}

func TestEngine_FontFetchFailure(t *testing.T) {
	source := &fakeSource{template: []byte("%PDF-1.7"), fontErr: errors.New("timeout")}
	engine := NewEngine(source, &fakeOpener{form: newFakeForm()}, DefaultLayout(), nil, testLogger())

	result, err := engine.Generate(context.Background(), sampleOrder(), makeItems(1))
	assert.Nil(t, result)
	var target *FontLoadError
	assert.ErrorAs(t, err, &target)
	assert.True(t, IsFatal(err))
}
