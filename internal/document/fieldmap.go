package document

// FieldMap translates logical field names into the physical field names of
// the template. Names without an entry pass through unchanged.
type FieldMap struct {
	names map[string]string
}

func NewFieldMap(names map[string]string) FieldMap {
	copied := make(map[string]string, len(names))
	for logical, physical := range names {
		copied[logical] = physical
	}
	return FieldMap{names: copied}
}

func (m FieldMap) Resolve(logical string) string {
	if physical, ok := m.names[logical]; ok {
		return physical
	}
	return logical
}
