package document

import (
	"github.com/hashicorp/go-multierror"
)

type FieldResult struct {
	Field string
	Row   int
	Err   error
}

// Report collects the outcome of every field write of one rendering.
type Report struct {
	Results       []FieldResult
	RowsRendered  int
	ItemsDropped  int
	MissingGlyphs []rune
}

func (r *Report) add(field string, row int, err error) {
	r.Results = append(r.Results, FieldResult{Field: field, Row: row, Err: err})
}

// Written lists the fields that were written successfully, in write order.
func (r *Report) Written() []string {
	var written []string
	for _, res := range r.Results {
		if res.Err == nil {
			written = append(written, res.Field)
		}
	}
	return written
}

func (r *Report) Failures() []*FieldWriteError {
	var failures []*FieldWriteError
	for _, res := range r.Results {
		if res.Err != nil {
			failures = append(failures, &FieldWriteError{Field: res.Field, Row: res.Row, Err: res.Err})
		}
	}
	return failures
}

// Err folds every failed write into one error, or nil when all succeeded.
func (r *Report) Err() error {
	var result *multierror.Error
	for _, failure := range r.Failures() {
		result = multierror.Append(result, failure)
	}
	return result.ErrorOrNil()
}
