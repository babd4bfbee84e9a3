package submission

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/jogardn/saleco-docs/internal/document"
	"github.com/jogardn/saleco-docs/internal/notify"
	"github.com/jogardn/saleco-docs/pkg/models"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// RecordCreator creates the order record and returns its document id.
type RecordCreator interface {
	CreateRequest(ctx context.Context, order models.OrderDocument, items []models.LineItem) (string, error)
}

// ItemSource returns the line items allocated to a created document.
type ItemSource interface {
	AllocatedItems(ctx context.Context, documentID string) ([]models.LineItem, error)
}

type Renderer interface {
	Generate(ctx context.Context, order models.OrderDocument, items []models.LineItem) (*document.Result, error)
}

// ArtifactStore persists a rendered document and returns where it can be
// retrieved.
type ArtifactStore interface {
	Upload(ctx context.Context, documentID string, data []byte, filename string) (string, error)
}

type RegenerationQueue interface {
	EnqueueRegeneration(ctx context.Context, req models.RegenerationRequest) error
}

// Channel is one notification destination.
type Channel struct {
	Name   string
	ID     string
	Sender notify.Sender
}

// Submission carries one basket submission through the pipeline.
type Submission struct {
	ID         uuid.UUID
	State      State
	Order      models.OrderDocument
	Items      []models.LineItem
	DocumentID string

	Artifact *models.RenderedDocument
	Report   *document.Report

	RenderErr          error
	PersistErr         error
	NotifyErr          error
	RenderPending      bool
	PersistencePending bool
}

func NewSubmission(order models.OrderDocument, items []models.LineItem) *Submission {
	return &Submission{
		ID:    uuid.New(),
		State: StateDraft,
		Order: order,
		Items: items,
	}
}

// Degraded reports whether the record exists but the artifact was not
// delivered.
func (s *Submission) Degraded() bool {
	return s.State >= StateRecordCreated && (s.RenderPending || s.PersistencePending)
}

type Config struct {
	Records      RecordCreator
	Allocations  ItemSource
	Renderer     Renderer
	Store        ArtifactStore
	Regeneration RegenerationQueue
	Channels     []Channel
}

// Pipeline runs Draft → RecordCreated → Rendered → Persisted → Notified. It
// never retries a step and never undoes a completed one.
type Pipeline struct {
	records      RecordCreator
	allocations  ItemSource
	renderer     Renderer
	store        ArtifactStore
	regeneration RegenerationQueue
	channels     []Channel
	logger       *logrus.Logger
	now          func() time.Time
}

func NewPipeline(config Config, logger *logrus.Logger) *Pipeline {
	return &Pipeline{
		records:      config.Records,
		allocations:  config.Allocations,
		renderer:     config.Renderer,
		store:        config.Store,
		regeneration: config.Regeneration,
		channels:     config.Channels,
		logger:       logger,
		now:          time.Now,
	}
}

// Run drives a submission through every step. Only a record creation failure
// is returned as an error; later failures leave the submission degraded.
func (p *Pipeline) Run(ctx context.Context, order models.OrderDocument, items []models.LineItem) (*Submission, error) {
	s := NewSubmission(order, items)
	log := p.logger.WithField("submission_id", s.ID.String())

	if err := p.CreateRecord(ctx, s); err != nil {
		log.WithError(err).Error("Submission aborted")
		return s, err
	}

	if err := p.Render(ctx, s); err != nil {
		log.WithError(err).Warn("Document not rendered, record kept without artifact")
		p.requestRegeneration(ctx, s, err)
	} else if err := p.Persist(ctx, s); err != nil {
		log.WithError(err).Warn("Document not persisted, local artifact still available")
		p.requestRegeneration(ctx, s, err)
	}

	if err := p.Notify(ctx, s); err != nil {
		log.WithError(err).Warn("Some notifications failed")
	}

	log.WithFields(logrus.Fields{
		"document_id":         s.DocumentID,
		"state":               s.State.String(),
		"render_pending":      s.RenderPending,
		"persistence_pending": s.PersistencePending,
	}).Info("Submission completed")
	return s, nil
}

// CreateRecord performs Draft → RecordCreated.
func (p *Pipeline) CreateRecord(ctx context.Context, s *Submission) error {
	if err := s.require(StateDraft); err != nil {
		return err
	}

	documentID, err := p.records.CreateRequest(ctx, s.Order, s.Items)
	if err != nil {
		return &RecordCreationError{Err: err}
	}
	if documentID == "" {
		return &RecordCreationError{Err: fmt.Errorf("order service returned no document id")}
	}

	s.DocumentID = documentID
	s.Order.DocumentID = documentID
	if s.Order.CreatedAt.IsZero() {
		s.Order.CreatedAt = p.now()
	}
	s.advance(StateRecordCreated)

	p.logger.WithFields(logrus.Fields{
		"submission_id": s.ID.String(),
		"document_id":   documentID,
		"items":         len(s.Items),
	}).Info("Order record created")
	return nil
}

// Render performs RecordCreated → Rendered. On failure the submission keeps
// its record but has no artifact.
func (p *Pipeline) Render(ctx context.Context, s *Submission) error {
	if err := s.require(StateRecordCreated); err != nil {
		return err
	}

	items := s.Items
	if p.allocations != nil {
		allocated, err := p.allocations.AllocatedItems(ctx, s.DocumentID)
		if err != nil {
			return p.renderFailed(s, fmt.Errorf("%w: %v", ErrItemsUnavailable, err))
		}
		items = allocated
	}

	result, err := p.renderer.Generate(ctx, s.Order, items)
	if err != nil {
		return p.renderFailed(s, err)
	}

	s.Artifact = result.Document
	s.Report = result.Report
	s.advance(StateRendered)

	if failures := result.Report.Failures(); len(failures) > 0 {
		p.logger.WithFields(logrus.Fields{
			"document_id":   s.DocumentID,
			"failed_fields": len(failures),
		}).Warn("Document rendered with blank fields")
	}
	return nil
}

func (p *Pipeline) renderFailed(s *Submission, err error) error {
	s.RenderErr = err
	s.RenderPending = true
	s.PersistencePending = true
	return err
}

// Persist performs Rendered → Persisted. On failure the in-memory artifact
// stays on the submission for local preview.
func (p *Pipeline) Persist(ctx context.Context, s *Submission) error {
	if err := s.require(StateRendered); err != nil {
		return err
	}

	url, err := p.store.Upload(ctx, s.DocumentID, s.Artifact.Bytes, s.Artifact.Filename)
	if err != nil {
		persistErr := &PersistenceError{DocumentID: s.DocumentID, Err: err}
		s.PersistErr = persistErr
		s.PersistencePending = true
		return persistErr
	}

	// The rendered document belongs to the renderer; record the URL on a copy.
	persisted := *s.Artifact
	persisted.URL = url
	s.Artifact = &persisted
	s.advance(StatePersisted)

	p.logger.WithFields(logrus.Fields{
		"document_id": s.DocumentID,
		"url":         url,
	}).Info("Document persisted")
	return nil
}

// Notify fans the announcement out to every channel concurrently. A failing
// channel never affects the others or the submission; a submission that
// reached Persisted moves to Notified.
func (p *Pipeline) Notify(ctx context.Context, s *Submission) error {
	if s.State < StateRecordCreated {
		return fmt.Errorf("%w: nothing to announce before the record exists", ErrInvalidTransition)
	}

	summary := notify.Summary{
		DocumentID:   s.DocumentID,
		CreatedAt:    s.Order.CreatedAt,
		CustomerName: s.Order.CustomerName,
		WantDate:     s.Order.WantDate,
		Creator:      s.Order.CreatorName,
		Department:   s.Order.CreatorDepartment,
		Remark:       s.Order.Remark,
	}
	if s.Artifact != nil {
		summary.ArtifactURL = s.Artifact.URL
	}
	message := notify.FormatMessage(summary)

	errs := make([]error, len(p.channels))
	var g errgroup.Group
	for i, channel := range p.channels {
		g.Go(func() error {
			if err := channel.Sender.Send(ctx, channel.ID, message); err != nil {
				errs[i] = &NotificationError{Channel: channel.Name, Err: err}
				p.logger.WithError(err).WithFields(logrus.Fields{
					"document_id": s.DocumentID,
					"channel":     channel.Name,
				}).Error("Failed to send notification")
			}
			return nil
		})
	}
	_ = g.Wait()

	var result *multierror.Error
	for _, err := range errs {
		if err != nil {
			result = multierror.Append(result, err)
		}
	}
	s.NotifyErr = result.ErrorOrNil()

	if s.State == StatePersisted {
		s.advance(StateNotified)
	}
	return s.NotifyErr
}

func (p *Pipeline) requestRegeneration(ctx context.Context, s *Submission, cause error) {
	if p.regeneration == nil {
		return
	}
	req := models.RegenerationRequest{
		DocumentID:  s.DocumentID,
		Order:       s.Order,
		Items:       s.Items,
		Reason:      cause.Error(),
		RequestedAt: p.now(),
	}
	if err := p.regeneration.EnqueueRegeneration(ctx, req); err != nil {
		p.logger.WithError(err).WithField("document_id", s.DocumentID).Error("Failed to enqueue document regeneration")
	}
}
