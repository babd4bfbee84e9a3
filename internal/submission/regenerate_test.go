package submission

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jogardn/saleco-docs/internal/document"
	"github.com/jogardn/saleco-docs/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegeneratorRendersAndPersists(t *testing.T) {
	renderer := &fakeRenderer{}
	store := &fakeStore{url: "https://files.example.com/SR-9.pdf"}
	regenerator := NewRegenerator(nil, renderer, store, testLogger())

	err := regenerator.HandleRegeneration(context.Background(), models.RegenerationRequest{
		DocumentID: "SR-9",
		Order:      testOrder(),
		Items:      []models.LineItem{{ProductID: "P-1"}},
	})

	require.NoError(t, err)
	assert.Equal(t, "SR-9", renderer.gotOrder.DocumentID)
	assert.Equal(t, 1, store.calls)
}

func TestRegeneratorRequiresDocumentID(t *testing.T) {
	regenerator := NewRegenerator(nil, &fakeRenderer{}, &fakeStore{}, testLogger())

	assert.Error(t, regenerator.HandleRegeneration(context.Background(), models.RegenerationRequest{}))
}

func TestRegeneratorUploadFailureIsRetryable(t *testing.T) {
	store := &fakeStore{err: errors.New("503")}
	regenerator := NewRegenerator(nil, &fakeRenderer{}, store, testLogger())

	err := regenerator.HandleRegeneration(context.Background(), models.RegenerationRequest{DocumentID: "SR-9"})

	require.Error(t, err)
	assert.True(t, regenerator.IsRetryable(err))
}

func TestRegeneratorIsRetryable(t *testing.T) {
	regenerator := NewRegenerator(nil, nil, nil, testLogger())

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"template fetch", &document.TemplateLoadError{Err: errors.New("404")}, true},
		{"font parse", &document.FontLoadError{Err: errors.New("bad font")}, false},
		{"allocations", fmt.Errorf("%w: timeout", ErrItemsUnavailable), true},
		{"deadline", fmt.Errorf("upload: %w", context.DeadlineExceeded), true},
		{"other", errors.New("boom"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, regenerator.IsRetryable(tt.err))
		})
	}
}
