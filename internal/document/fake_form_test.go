package document

import (
	"errors"
	"testing"

	"github.com/sirupsen/logrus"
	"golang.org/x/image/font/gofont/goregular"
)

type fakeWrite struct {
	Value string
	Opts  TextOptions
}

// fakeForm accepts writes to any field unless told otherwise.
type fakeForm struct {
	writes          map[string]fakeWrite
	order           []string
	fail            map[string]error
	rejectMultiline map[string]bool
	flattened       bool
	flattenErr      error
}

func newFakeForm() *fakeForm {
	return &fakeForm{
		writes:          make(map[string]fakeWrite),
		fail:            make(map[string]error),
		rejectMultiline: make(map[string]bool),
	}
}

func (f *fakeForm) SetText(field, value string, opts TextOptions) error {
	if f.flattened {
		return ErrAlreadyFinalized
	}
	if err, ok := f.fail[field]; ok {
		return err
	}
	if opts.Multiline && f.rejectMultiline[field] {
		return ErrMultilineRejected
	}
	f.writes[field] = fakeWrite{Value: value, Opts: opts}
	f.order = append(f.order, field)
	return nil
}

func (f *fakeForm) Flatten() error {
	if f.flattenErr != nil {
		return f.flattenErr
	}
	f.flattened = true
	return nil
}

func (f *fakeForm) Save() ([]byte, error) {
	if !f.flattened {
		return nil, errors.New("not flattened")
	}
	return []byte("%PDF-fake"), nil
}

type fakeOpener struct {
	form *fakeForm
	err  error
}

func (o *fakeOpener) Open(template []byte, font *EmbeddedFont) (Form, error) {
	if o.err != nil {
		return nil, o.err
	}
	return o.form, nil
}

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

func testContext(t *testing.T, form *fakeForm) *EmbeddedContext {
	t.Helper()
	font, err := ParseFont(goregular.TTF)
	if err != nil {
		t.Fatalf("failed to parse test font: %v", err)
	}
	return &EmbeddedContext{Form: form, Font: font}
}
