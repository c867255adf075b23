package output

import (
	"encoding/json"
	"io"
)

// JSONFormatter formats overlay state as JSON.
type JSONFormatter struct {
	opts FormatterOptions
}

// NewJSONFormatter creates a new JSON formatter.
func NewJSONFormatter(opts FormatterOptions) *JSONFormatter {
	return &JSONFormatter{opts: opts}
}

// FormatStatus writes the status as a JSON object.
func (f *JSONFormatter) FormatStatus(w io.Writer, s Status) error {
	return f.encoder(w).Encode(s)
}

// FormatContent writes content as a JSON object, or null when cleared.
func (f *JSONFormatter) FormatContent(w io.Writer, c *Content) error {
	return f.encoder(w).Encode(c)
}

func (f *JSONFormatter) encoder(w io.Writer) *json.Encoder {
	encoder := json.NewEncoder(w)
	if !f.opts.Compact {
		encoder.SetIndent("", "  ")
	}
	return encoder
}
