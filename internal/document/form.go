package document

// TextOptions controls how a value is laid out inside a field.
type TextOptions struct {
	FontSize  float64
	Multiline bool
}

// Form is an opened template whose named fields can be written, then
// flattened and serialized. A Form is used by a single rendering only.
type Form interface {
	SetText(field, value string, opts TextOptions) error
	// Flatten commits all writes and turns interactive fields into static
	// content. No writes are accepted afterwards.
	Flatten() error
	Save() ([]byte, error)
}

// TemplateOpener opens raw template bytes into a Form that renders text with
// the given font.
type TemplateOpener interface {
	Open(template []byte, font *EmbeddedFont) (Form, error)
}
