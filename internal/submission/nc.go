package submission

import (
	"context"
	"fmt"

	"github.com/jogardn/saleco-docs/pkg/models"
	"github.com/sirupsen/logrus"
)

const (
	NCStatusAtStore = "At Store NC"
	ncImageFirst    = "nc1"
	ncImageSecond   = "nc2"
)

// NCService is the order service surface used to file a non-conformance
// report.
type NCService interface {
	CreateStoreNC(ctx context.Context, report models.NCReport) (string, error)
	UploadImage(ctx context.Context, serialNumber, kind string, image []byte) (string, error)
	UpdateNCStatus(ctx context.Context, serialNumber, status string) error
}

type NCResult struct {
	DocumentID  string
	ImageURLs   map[string]string
	ImageErrors []error
}

// NCWorkflow files a non-conformance report: the record first, then each
// attached image in turn, then the status change. A failed image upload
// leaves that image empty and does not stop the workflow.
type NCWorkflow struct {
	service NCService
	logger  *logrus.Logger
}

func NewNCWorkflow(service NCService, logger *logrus.Logger) *NCWorkflow {
	return &NCWorkflow{
		service: service,
		logger:  logger,
	}
}

func (w *NCWorkflow) Submit(ctx context.Context, report models.NCReport) (*NCResult, error) {
	if report.SerialNumber == "" {
		return nil, fmt.Errorf("serial number is required")
	}
	log := w.logger.WithField("sn_number", report.SerialNumber)

	documentID, err := w.service.CreateStoreNC(ctx, report)
	if err != nil {
		return nil, &RecordCreationError{Err: err}
	}
	result := &NCResult{DocumentID: documentID, ImageURLs: make(map[string]string)}

	images := []struct {
		kind string
		data []byte
	}{
		{ncImageFirst, report.Image1},
		{ncImageSecond, report.Image2},
	}
	for _, image := range images {
		if len(image.data) == 0 {
			continue
		}
		url, err := w.service.UploadImage(ctx, report.SerialNumber, image.kind, image.data)
		if err != nil {
			log.WithError(err).WithField("type", image.kind).Error("Failed to upload NC image")
			result.ImageErrors = append(result.ImageErrors, &PersistenceError{
				DocumentID: documentID,
				Err:        fmt.Errorf("failed to upload image %s: %w", image.kind, err),
			})
			continue
		}
		result.ImageURLs[image.kind] = url
	}

	if err := w.service.UpdateNCStatus(ctx, report.SerialNumber, NCStatusAtStore); err != nil {
		return result, fmt.Errorf("failed to update NC status: %w", err)
	}

	log.WithFields(logrus.Fields{
		"document_id": documentID,
		"images":      len(result.ImageURLs),
	}).Info("NC report submitted")
	return result, nil
}
