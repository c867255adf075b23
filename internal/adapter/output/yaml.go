package output

import (
	"io"

	"gopkg.in/yaml.v3"
)

// YAMLFormatter formats overlay state as YAML documents.
type YAMLFormatter struct {
	opts FormatterOptions
}

// NewYAMLFormatter creates a new YAML formatter.
func NewYAMLFormatter(opts FormatterOptions) *YAMLFormatter {
	return &YAMLFormatter{opts: opts}
}

// FormatStatus writes the status as one YAML document.
func (f *YAMLFormatter) FormatStatus(w io.Writer, s Status) error {
	return f.encode(w, s)
}

// FormatContent writes content as one YAML document.
func (f *YAMLFormatter) FormatContent(w io.Writer, c *Content) error {
	return f.encode(w, c)
}

func (f *YAMLFormatter) encode(w io.Writer, v any) error {
	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)
	if err := encoder.Encode(v); err != nil {
		return err
	}
	return encoder.Close()
}
