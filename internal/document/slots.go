package document

import (
	"strconv"
	"unicode/utf8"

	"github.com/jogardn/saleco-docs/pkg/models"
	"github.com/sirupsen/logrus"
)

// SlotRenderer writes line items into the numbered item rows of the
// template. Rows beyond the template's capacity are not rendered.
type SlotRenderer struct {
	layout      SlotLayout
	policy      FontSizePolicy
	defaultSize float64
	emptyValue  string
	logger      *logrus.Logger
}

func NewSlotRenderer(layout *Layout, policy FontSizePolicy, logger *logrus.Logger) *SlotRenderer {
	if policy == nil {
		policy = layout.LabelSizes
	}
	return &SlotRenderer{
		layout:      layout.Slots,
		policy:      policy,
		defaultSize: layout.DefaultFontSize,
		emptyValue:  layout.EmptyValue,
		logger:      logger,
	}
}

// RenderItems writes min(len(items), capacity) rows and returns that count.
func (r *SlotRenderer) RenderItems(items []models.LineItem, fill *Fill) int {
	rows := len(items)
	if rows > r.layout.Capacity {
		// The template has no room for more rows and no continuation page.
		r.logger.WithFields(logrus.Fields{
			"items":    len(items),
			"capacity": r.layout.Capacity,
			"dropped":  len(items) - r.layout.Capacity,
		}).Warn("Line items exceed template capacity, extra items are not rendered")
		rows = r.layout.Capacity
		fill.report.ItemsDropped = len(items) - rows
	}

	for i := 0; i < rows; i++ {
		r.renderRow(i, items[i], fill)
	}
	fill.report.RowsRendered = rows
	return rows
}

func (r *SlotRenderer) renderRow(i int, item models.LineItem, fill *Fill) {
	row := i + 1
	plain := TextOptions{FontSize: r.defaultSize}

	fill.Write(r.layout.RowNumberField(i), row, strconv.Itoa(row), plain)

	label := ProductLabel(item.ProductID, item.Description)
	r.writeLabel(r.layout.Field(r.layout.Label, i), row, valueOr(label, r.emptyValue), fill)

	fill.Write(r.layout.Field(r.layout.Serial, i), row, valueOr(item.SerialNumber, r.emptyValue), plain)
	fill.Write(r.layout.Field(r.layout.Remark, i), row, valueOr(item.Remark, r.emptyValue), plain)
	fill.Write(r.layout.Field(r.layout.QualityRemark, i), row,
		valueOr(item.QualityRemark, r.layout.QualityRemarkDefault), plain)
}

// writeLabel tries the multi-paragraph layout first and falls back to a
// single line at the same size.
func (r *SlotRenderer) writeLabel(logical string, row int, label string, fill *Fill) {
	size := r.policy.FontSize(label)
	physical := fill.resolver.Resolve(logical)

	err := fill.set(physical, label, TextOptions{FontSize: size, Multiline: true})
	if err == nil {
		fill.record(physical, row, nil)
		return
	}

	r.logger.WithError(err).WithFields(logrus.Fields{
		"field": physical,
		"row":   row,
	}).Warn("Multiline write failed, retrying as single line")

	err = fill.set(physical, label, TextOptions{FontSize: size})
	fill.record(physical, row, err)
}

// ProductLabel combines identifier and description. Long combinations are
// split into two paragraphs within the same field.
func ProductLabel(productID, description string) string {
	if productID == "" || description == "" {
		return productID
	}
	descLen := utf8.RuneCountInString(description)
	if descLen > 15 || utf8.RuneCountInString(productID)+descLen > 25 {
		return productID + string(paragraphSeparator) + description
	}
	return productID + " - " + description
}
