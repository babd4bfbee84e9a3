package document

import (
	_ "embed"
	"fmt"
	"strconv"

	"gopkg.in/yaml.v3"
)

//go:embed layout.yaml
var defaultLayoutYAML []byte

// Layout describes where data lands on the template. It is parsed once and
// treated as read-only afterwards.
type Layout struct {
	DefaultFontSize float64           `yaml:"default_font_size"`
	EmptyValue      string            `yaml:"empty_value"`
	Mark            string            `yaml:"mark"`
	DateFormat      string            `yaml:"date_format"`
	FieldMap        map[string]string `yaml:"field_map"`
	Address         AddressLayout     `yaml:"address"`
	Remark          RemarkLayout      `yaml:"remark"`
	Checkboxes      []CheckboxSlot    `yaml:"checkboxes"`
	Slots           SlotLayout        `yaml:"slots"`
	LabelSizes      StepPolicy        `yaml:"label_sizes"`
}

type AddressLayout struct {
	MaxLen int      `yaml:"max_len"`
	Fields []string `yaml:"fields"`
}

type RemarkLayout struct {
	SegmentLen int      `yaml:"segment_len"`
	Fields     []string `yaml:"fields"`
	OtherBox   string   `yaml:"other_box"`
}

type CheckboxSlot struct {
	Label string `yaml:"label"`
	Field string `yaml:"field"`
}

type RowNumberPattern struct {
	Prefix string `yaml:"prefix"`
	Offset int    `yaml:"offset"`
	Stride int    `yaml:"stride"`
}

type SlotLayout struct {
	Capacity             int              `yaml:"capacity"`
	RowNumber            RowNumberPattern `yaml:"row_number"`
	Label                string           `yaml:"label"`
	Serial               string           `yaml:"serial"`
	Remark               string           `yaml:"remark"`
	QualityRemark        string           `yaml:"quality_remark"`
	QualityRemarkDefault string           `yaml:"quality_remark_default"`
}

// RowNumberField returns the numeric slot field for the zero-based row i.
func (s SlotLayout) RowNumberField(i int) string {
	return s.RowNumber.Prefix + strconv.Itoa(s.RowNumber.Offset+i*s.RowNumber.Stride)
}

// Field returns the per-row field built from base for the zero-based row i.
func (s SlotLayout) Field(base string, i int) string {
	return base + strconv.Itoa(i+1)
}

// ParseLayout decodes and validates a YAML layout document.
func ParseLayout(data []byte) (*Layout, error) {
	var layout Layout
	if err := yaml.Unmarshal(data, &layout); err != nil {
		return nil, fmt.Errorf("failed to parse layout: %w", err)
	}
	if err := layout.Validate(); err != nil {
		return nil, err
	}
	return &layout, nil
}

// DefaultLayout returns the layout of the bundled request template.
func DefaultLayout() *Layout {
	layout, err := ParseLayout(defaultLayoutYAML)
	if err != nil {
		panic(err)
	}
	return layout
}

func (l *Layout) Validate() error {
	if l.DefaultFontSize <= 0 {
		return fmt.Errorf("layout: default_font_size must be positive")
	}
	if l.Address.MaxLen <= 0 || len(l.Address.Fields) != 2 {
		return fmt.Errorf("layout: address needs max_len and exactly two fields")
	}
	if l.Remark.SegmentLen <= 0 || len(l.Remark.Fields) == 0 {
		return fmt.Errorf("layout: remark needs segment_len and at least one field")
	}
	if l.Slots.Capacity <= 0 {
		return fmt.Errorf("layout: slots.capacity must be positive")
	}
	if l.Slots.RowNumber.Stride <= 0 {
		return fmt.Errorf("layout: slots.row_number.stride must be positive")
	}
	seen := make(map[string]bool, len(l.Checkboxes))
	for _, box := range l.Checkboxes {
		if box.Label == "" || box.Field == "" {
			return fmt.Errorf("layout: checkbox entries need label and field")
		}
		if seen[box.Label] {
			return fmt.Errorf("layout: duplicate checkbox label %q", box.Label)
		}
		seen[box.Label] = true
	}
	return l.LabelSizes.Validate()
}

// CheckboxLabels lists the catalog in box order.
func (l *Layout) CheckboxLabels() []string {
	labels := make([]string, len(l.Checkboxes))
	for i, box := range l.Checkboxes {
		labels[i] = box.Label
	}
	return labels
}
