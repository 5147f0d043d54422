// Package report renders validation runs for people (text) and machines
// (JSON), and archives the JSON form to object storage.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/google/uuid"

	"github.com/koustreak/dbkit/internal/errs"
	"github.com/koustreak/dbkit/internal/validator"
)

// Format selects the rendering.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
)

func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "text":
		return FormatText, nil
	case "json":
		return FormatJSON, nil
	default:
		return "", errs.Newf(errs.ErrKindInvalidInput, "unknown report format %q", s)
	}
}

// Report is one validation run.
type Report struct {
	ID         string                 `json:"id"`
	Driver     string                 `json:"driver,omitempty"`
	Schema     string                 `json:"schema,omitempty"`
	Compare    string                 `json:"compare,omitempty"`
	StartedAt  time.Time              `json:"started_at"`
	DurationMs int64                  `json:"duration_ms"`
	Result     *validator.BatchResult `json:"result"`
}

// Meta describes the connection a run was made against.
type Meta struct {
	Driver  string
	Schema  string
	Compare string
}

// New wraps a batch result finished now.
func New(batch *validator.BatchResult, started time.Time, meta Meta) *Report {
	return &Report{
		ID:         uuid.NewString(),
		Driver:     meta.Driver,
		Schema:     meta.Schema,
		Compare:    meta.Compare,
		StartedAt:  started.UTC(),
		DurationMs: time.Since(started).Milliseconds(),
		Result:     batch,
	}
}

// Write renders r in the given format. Colors apply to text only.
func Write(w io.Writer, format Format, r *Report, colored bool) error {
	switch format {
	case FormatJSON:
		return WriteJSON(w, r)
	case FormatText:
		return WriteText(w, r, colored)
	default:
		return errs.Newf(errs.ErrKindInvalidInput, "unknown report format %q", format)
	}
}

func WriteJSON(w io.Writer, r *Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(r); err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	return nil
}

// Decode reads a report written by WriteJSON.
func Decode(rd io.Reader) (*Report, error) {
	var r Report
	if err := json.NewDecoder(rd).Decode(&r); err != nil {
		return nil, errs.Wrap(errs.ErrKindInvalidInput, "decode report", err)
	}
	return &r, nil
}

type palette struct {
	pass, fail, errc, dim *color.Color
}

func newPalette(colored bool) palette {
	p := palette{
		pass: color.New(color.FgGreen, color.Bold),
		fail: color.New(color.FgRed, color.Bold),
		errc: color.New(color.FgYellow, color.Bold),
		dim:  color.New(color.Faint),
	}
	for _, c := range []*color.Color{p.pass, p.fail, p.errc, p.dim} {
		if colored {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return p
}

// WriteText renders one line per table followed by its differences:
//
//	schema validation: 1 of 2 table(s) valid
//	  PASS   users
//	  FAIL   orders
//	         - columns missing in database: note
func WriteText(w io.Writer, r *Report, colored bool) error {
	p := newPalette(colored)
	b := r.Result
	if b == nil {
		b = &validator.BatchResult{AllValid: true}
	}

	var sb strings.Builder
	valid := len(b.Tables) - len(b.Failed())
	fmt.Fprintf(&sb, "schema validation: %d of %d table(s) valid", valid, len(b.Tables))
	if r.Driver != "" {
		sb.WriteString(p.dim.Sprintf(" (%s, %s)", r.Driver, r.StartedAt.Format(time.RFC3339)))
	}
	sb.WriteString("\n")

	for _, name := range b.Tables {
		res := b.Results[name]
		switch {
		case res.Error != "":
			fmt.Fprintf(&sb, "  %s  %s\n", p.errc.Sprint("ERROR"), name)
			fmt.Fprintf(&sb, "         %s\n", res.Error)
		case res.Valid:
			fmt.Fprintf(&sb, "  %s   %s\n", p.pass.Sprint("PASS"), name)
		default:
			fmt.Fprintf(&sb, "  %s   %s\n", p.fail.Sprint("FAIL"), name)
			for _, e := range res.Errors {
				fmt.Fprintf(&sb, "         - %s\n", e)
			}
		}
	}

	_, err := io.WriteString(w, sb.String())
	return err
}
