package submission

import (
	"context"
	"errors"
	"fmt"

	"github.com/jogardn/saleco-docs/internal/document"
	"github.com/jogardn/saleco-docs/pkg/models"
	"github.com/sirupsen/logrus"
)

// Regenerator renders and persists a document whose submission left it
// pending. The record already exists, so it is never created again.
type Regenerator struct {
	allocations ItemSource
	renderer    Renderer
	store       ArtifactStore
	logger      *logrus.Logger
}

func NewRegenerator(allocations ItemSource, renderer Renderer, store ArtifactStore, logger *logrus.Logger) *Regenerator {
	return &Regenerator{
		allocations: allocations,
		renderer:    renderer,
		store:       store,
		logger:      logger,
	}
}

func (r *Regenerator) HandleRegeneration(ctx context.Context, req models.RegenerationRequest) error {
	if req.DocumentID == "" {
		return errors.New("regeneration request has no document id")
	}

	order := req.Order
	order.DocumentID = req.DocumentID

	items := req.Items
	if r.allocations != nil {
		allocated, err := r.allocations.AllocatedItems(ctx, req.DocumentID)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrItemsUnavailable, err)
		}
		items = allocated
	}

	result, err := r.renderer.Generate(ctx, order, items)
	if err != nil {
		return err
	}

	url, err := r.store.Upload(ctx, req.DocumentID, result.Document.Bytes, result.Document.Filename)
	if err != nil {
		return &PersistenceError{DocumentID: req.DocumentID, Err: err}
	}

	r.logger.WithFields(logrus.Fields{
		"document_id": req.DocumentID,
		"url":         url,
		"reason":      req.Reason,
	}).Info("Pending document regenerated")
	return nil
}

// IsRetryable treats fetch and upload failures as transient. A font that
// cannot be parsed or an empty request will not fix itself.
func (r *Regenerator) IsRetryable(err error) bool {
	var fontErr *document.FontLoadError
	if errors.As(err, &fontErr) {
		return false
	}
	var templateErr *document.TemplateLoadError
	var persistErr *PersistenceError
	return errors.As(err, &templateErr) ||
		errors.As(err, &persistErr) ||
		errors.Is(err, ErrItemsUnavailable) ||
		errors.Is(err, context.DeadlineExceeded)
}
