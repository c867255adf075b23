package output

import (
	"fmt"
	"io"
	"strings"
	"text/template"
	"time"

	"github.com/dustin/go-humanize"
)

// PlainFormatter formats overlay state as human-readable text.
type PlainFormatter struct {
	opts     FormatterOptions
	template *template.Template
}

// templateData is passed to custom content templates.
type templateData struct {
	*Content
	Shown   string // e.g. "3 seconds ago"
	Expires string // e.g. "2 seconds from now", "never"
}

// NewPlainFormatter creates a new plain text formatter. An invalid
// template falls back to the default layout.
func NewPlainFormatter(opts FormatterOptions) *PlainFormatter {
	f := &PlainFormatter{opts: opts}

	if opts.Template != "" {
		tmpl, err := template.New("plain").Funcs(templateFuncs()).Parse(opts.Template)
		if err == nil {
			f.template = tmpl
		}
	}

	return f
}

// ParseTemplate reports whether a custom template is valid.
func ParseTemplate(text string) error {
	_, err := template.New("plain").Funcs(templateFuncs()).Parse(text)
	return err
}

// FormatStatus writes the status block.
func (f *PlainFormatter) FormatStatus(w io.Writer, s Status) error {
	var sb strings.Builder

	if s.Observing {
		sb.WriteString(fmt.Sprintf("overlay:  visible (%d %s)\n", s.Refs, plural(s.Refs, "holder", "holders")))
	} else {
		sb.WriteString("overlay:  idle\n")
	}

	if s.Content == nil {
		sb.WriteString("content:  none\n")
		_, err := io.WriteString(w, sb.String())
		return err
	}

	c := s.Content
	data := f.data(c)
	sb.WriteString("content:  " + c.ID + "\n")
	sb.WriteString("priority: " + c.Priority + "\n")
	sb.WriteString("shown:    " + data.Shown + "\n")
	sb.WriteString("expires:  " + data.Expires + "\n")
	sb.WriteString("text:     " + f.text(c.Text) + "\n")

	_, err := io.WriteString(w, sb.String())
	return err
}

// FormatContent writes one line per content change.
func (f *PlainFormatter) FormatContent(w io.Writer, c *Content) error {
	if c == nil {
		_, err := io.WriteString(w, "(cleared)\n")
		return err
	}

	if f.template != nil {
		if err := f.template.Execute(w, f.data(c)); err != nil {
			return err
		}
		_, err := io.WriteString(w, "\n")
		return err
	}

	_, err := fmt.Fprintf(w, "[%s] %s\n", c.Priority, f.text(c.Text))
	return err
}

func (f *PlainFormatter) data(c *Content) templateData {
	now := f.opts.now()
	d := templateData{
		Content: c,
		Shown:   humanize.RelTime(c.CreatedAt, now, "ago", "from now"),
		Expires: "never",
	}
	if c.ExpiresAt != nil {
		d.Expires = humanize.RelTime(*c.ExpiresAt, now, "ago", "from now")
	}
	return d
}

func (f *PlainFormatter) text(s string) string {
	s = strings.ReplaceAll(s, "\n", " ")
	return truncate(s, f.opts.TextMax)
}

func templateFuncs() template.FuncMap {
	return template.FuncMap{
		"truncate": truncate,
		"upper":    strings.ToUpper,
		"duration": func(ms int64) string {
			if ms <= 0 {
				return "indefinite"
			}
			return (time.Duration(ms) * time.Millisecond).String()
		},
	}
}

func truncate(s string, maxLen int) string {
	r := []rune(s)
	if maxLen <= 0 || len(r) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-3]) + "..."
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
