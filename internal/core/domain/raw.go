package domain

// RawRecord is one parsed manifest row before canonical conversion: the
// values extracted by the XML record reader, keyed by configured field name.
//
// A field value is either a string, a Nested record, or a []any mixing the
// two when the selector matched several nodes. Nodes are converted to plain
// data eagerly at read time, so records carry no handles into a parsed
// document and remain serialisable.
type RawRecord struct {
	// SourceURL is the manifest file this row came from.
	SourceURL string

	// DirectoryPath is the directory of the manifest file, used to resolve
	// relative file URIs.
	DirectoryPath string

	// Fields holds the extracted values.
	Fields map[string]any
}

// String returns a field as a scalar string. Multi-valued fields yield
// their first string value.
func (r RawRecord) String(field string) string {
	return anyString(r.Fields[field])
}

// Strings returns all string values of a field.
func (r RawRecord) Strings(field string) []string {
	switch v := r.Fields[field].(type) {
	case string:
		return []string{v}
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

// Record returns a field as a single nested record, or nil.
func (r RawRecord) Record(field string) Nested {
	recs := r.Records(field)
	if len(recs) == 0 {
		return nil
	}
	return recs[0]
}

// Records returns all nested record values of a field.
func (r RawRecord) Records(field string) []Nested {
	return anyRecords(r.Fields[field])
}

// Nested is a structurally converted XML element: child elements keyed by
// name, attribute map under "@attributes", repeated children as []any.
type Nested map[string]any

// String returns a child value as a scalar string.
func (n Nested) String(key string) string {
	return anyString(n[key])
}

// Strings returns all string values of a child.
func (n Nested) Strings(key string) []string {
	switch v := n[key].(type) {
	case string:
		return []string{v}
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

// Record returns a child as a single nested record, or nil.
func (n Nested) Record(key string) Nested {
	recs := n.Records(key)
	if len(recs) == 0 {
		return nil
	}
	return recs[0]
}

// Records returns all nested record values of a child.
func (n Nested) Records(key string) []Nested {
	return anyRecords(n[key])
}

// Attr returns an attribute of this element, or "".
func (n Nested) Attr(name string) string {
	attrs, ok := n["@attributes"].(map[string]any)
	if !ok {
		return ""
	}
	s, _ := attrs[name].(string)
	return s
}

func anyString(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case []any:
		for _, item := range val {
			if s, ok := item.(string); ok {
				return s
			}
		}
	}
	return ""
}

func anyRecords(v any) []Nested {
	switch val := v.(type) {
	case Nested:
		return []Nested{val}
	case map[string]any:
		return []Nested{Nested(val)}
	case []any:
		out := make([]Nested, 0, len(val))
		for _, item := range val {
			switch rec := item.(type) {
			case Nested:
				out = append(out, rec)
			case map[string]any:
				out = append(out, Nested(rec))
			}
		}
		return out
	default:
		return nil
	}
}
