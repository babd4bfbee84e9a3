package document

import (
	"fmt"
	"strings"
	"time"

	"github.com/jogardn/saleco-docs/pkg/models"
	"github.com/sirupsen/logrus"
)

// Logical names of the document-level fields.
const (
	FieldCreatedAt         = "created_at"
	FieldWantDate          = "want_date"
	FieldCustomerName      = "customer_name"
	FieldCreatorName       = "name"
	FieldDepartment        = "department"
	FieldDepartmentExpense = "departmentexpense"
	FieldTimestamp         = "timestamp"
)

type Finalizer struct {
	layout   *Layout
	resolver FieldMap
	slots    *SlotRenderer
	now      func() time.Time
	logger   *logrus.Logger
}

func NewFinalizer(layout *Layout, slots *SlotRenderer, logger *logrus.Logger) *Finalizer {
	return &Finalizer{
		layout:   layout,
		resolver: NewFieldMap(layout.FieldMap),
		slots:    slots,
		now:      time.Now,
		logger:   logger,
	}
}

// Finalize writes the order into the opened template, flattens it and
// serializes the result. Failed field writes are reported, not returned;
// only a failure to flatten or serialize yields an error.
func (f *Finalizer) Finalize(ec *EmbeddedContext, order models.OrderDocument, items []models.LineItem) (*models.RenderedDocument, *Report, error) {
	fill := NewFill(ec, f.resolver, f.logger)
	plain := TextOptions{FontSize: f.layout.DefaultFontSize}
	empty := f.layout.EmptyValue
	now := f.now()

	fill.Write(FieldCreatedAt, 0, f.formatDate(now), plain)
	fill.Write(FieldWantDate, 0, f.formatDate(order.WantDate), plain)
	fill.Write(FieldCustomerName, 0, valueOr(order.CustomerName, empty), plain)
	f.writeAddress(fill, valueOr(order.CustomerAddress, empty), plain)
	fill.Write(FieldCreatorName, 0, valueOr(order.CreatorName, empty), plain)
	fill.Write(FieldDepartment, 0, valueOr(order.CreatorDepartment, empty), plain)
	fill.Write(FieldDepartmentExpense, 0, valueOr(order.DepartmentExpense, "-"), plain)
	fill.Write(FieldTimestamp, 0, f.formatDate(now), plain)

	f.markCheckboxes(fill, order.RequestDetails, plain)
	if order.Remark != "" {
		fill.Write(f.layout.Remark.OtherBox, 0, f.layout.Mark, plain)
		segments := Segments(order.Remark, f.layout.Remark.SegmentLen, len(f.layout.Remark.Fields))
		for i, segment := range segments {
			fill.Write(f.layout.Remark.Fields[i], 0, segment, plain)
		}
	}

	f.slots.RenderItems(items, fill)

	report := fill.Report()
	report.MissingGlyphs = ec.Font.Missing()
	if len(report.MissingGlyphs) > 0 {
		f.logger.WithFields(logrus.Fields{
			"document_id": order.DocumentID,
			"font":        ec.Font.Name,
			"missing":     string(report.MissingGlyphs),
		}).Warn("Script font has no glyphs for some characters")
	}

	if err := ec.Form.Flatten(); err != nil {
		return nil, report, fmt.Errorf("failed to flatten document: %w", err)
	}
	data, err := ec.Form.Save()
	if err != nil {
		return nil, report, fmt.Errorf("failed to serialize document: %w", err)
	}

	failures := len(report.Failures())
	f.logger.WithFields(logrus.Fields{
		"document_id":   order.DocumentID,
		"rows":          report.RowsRendered,
		"dropped_items": report.ItemsDropped,
		"failed_fields": failures,
		"bytes":         len(data),
	}).Info("Document rendered")

	return &models.RenderedDocument{
		DocumentID: order.DocumentID,
		Filename:   Filename(order.DocumentID),
		Bytes:      data,
		RenderedAt: now,
	}, report, nil
}

// Filename is the artifact name a document is stored under.
func Filename(documentID string) string {
	if documentID == "" {
		return "preview.pdf"
	}
	return documentID + ".pdf"
}

func (f *Finalizer) formatDate(t time.Time) string {
	if t.IsZero() {
		return f.layout.EmptyValue
	}
	return t.Format(f.layout.DateFormat)
}

func (f *Finalizer) writeAddress(fill *Fill, address string, opts TextOptions) {
	first, second := Split(address, f.layout.Address.MaxLen)
	fill.Write(f.layout.Address.Fields[0], 0, valueOr(first, f.layout.EmptyValue), opts)
	fill.Write(f.layout.Address.Fields[1], 0, valueOr(second, f.layout.EmptyValue), opts)
}

func (f *Finalizer) markCheckboxes(fill *Fill, selected []string, opts TextOptions) {
	chosen := make(map[string]bool, len(selected))
	for _, label := range selected {
		chosen[strings.TrimSpace(label)] = true
	}
	for _, box := range f.layout.Checkboxes {
		if chosen[box.Label] {
			fill.Write(box.Field, 0, f.layout.Mark, opts)
		}
	}
}
