package document

import (
	"github.com/sirupsen/logrus"
)

// Fill routes every text write of one rendering through the field map and
// the script font, and records the outcome in a Report.
type Fill struct {
	ctx      *EmbeddedContext
	resolver FieldMap
	report   *Report
	logger   *logrus.Logger
}

func NewFill(ctx *EmbeddedContext, resolver FieldMap, logger *logrus.Logger) *Fill {
	return &Fill{
		ctx:      ctx,
		resolver: resolver,
		report:   &Report{},
		logger:   logger,
	}
}

func (f *Fill) Report() *Report { return f.report }

// Write sets a field and records the result. Failures are returned so the
// caller may decide on a fallback, but they never stop the rendering.
func (f *Fill) Write(logical string, row int, value string, opts TextOptions) error {
	physical := f.resolver.Resolve(logical)
	err := f.set(physical, value, opts)
	f.record(physical, row, err)
	return err
}

func (f *Fill) set(physical, value string, opts TextOptions) error {
	return f.ctx.Form.SetText(physical, f.ctx.Font.Prepare(value), opts)
}

func (f *Fill) record(physical string, row int, err error) {
	f.report.add(physical, row, err)
	if err != nil {
		f.logger.WithError(err).WithFields(logrus.Fields{
			"field": physical,
			"row":   row,
		}).Error("Failed to write field")
	}
}

func valueOr(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
