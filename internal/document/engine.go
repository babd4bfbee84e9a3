package document

import (
	"context"

	"github.com/jogardn/saleco-docs/pkg/models"
	"github.com/sirupsen/logrus"
)

// Source supplies the raw template and script font bytes.
type Source interface {
	Template(ctx context.Context) ([]byte, error)
	Font(ctx context.Context) ([]byte, error)
}

type Result struct {
	Document *models.RenderedDocument
	Report   *Report
}

// Engine generates a flattened request document from order data. Each call
// fetches and opens its own template, so concurrent calls share no state.
type Engine struct {
	source    Source
	fonts     *FontEmbeddingManager
	finalizer *Finalizer
	logger    *logrus.Logger
}

func NewEngine(source Source, opener TemplateOpener, layout *Layout, policy FontSizePolicy, logger *logrus.Logger) *Engine {
	slots := NewSlotRenderer(layout, policy, logger)
	return &Engine{
		source:    source,
		fonts:     NewFontEmbeddingManager(opener, logger),
		finalizer: NewFinalizer(layout, slots, logger),
		logger:    logger,
	}
}

// Generate renders the document. A template or font failure returns a fatal
// error and no artifact; field-level failures are only reported.
func (e *Engine) Generate(ctx context.Context, order models.OrderDocument, items []models.LineItem) (*Result, error) {
	log := e.logger.WithField("document_id", order.DocumentID)

	templateBytes, err := e.source.Template(ctx)
	if err != nil {
		log.WithError(err).Error("Failed to fetch template")
		return nil, &TemplateLoadError{Err: err}
	}
	fontBytes, err := e.source.Font(ctx)
	if err != nil {
		log.WithError(err).Error("Failed to fetch script font")
		return nil, &FontLoadError{Err: err}
	}

	ec, err := e.fonts.Load(templateBytes, fontBytes)
	if err != nil {
		log.WithError(err).Error("Failed to prepare template")
		return nil, err
	}

	doc, report, err := e.finalizer.Finalize(ec, order, items)
	if err != nil {
		log.WithError(err).Error("Failed to finalize document")
		return nil, err
	}
	return &Result{Document: doc, Report: report}, nil
}
