package validator

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/koustreak/dbkit/internal/errs"
	"github.com/koustreak/dbkit/internal/model"
)

const rule = "============================================================"

// PromptOptions controls ConsistencyCheck.
type PromptOptions struct {
	// HaltOnError prints the differences and waits for the operator to
	// confirm before continuing. Without it failures are only logged.
	HaltOnError bool
	In          io.Reader
	Out         io.Writer
}

// ConsistencyCheck validates t and reports whether it matches. When
// HaltOnError is set a mismatch blocks on a y/N prompt: answering yes
// returns false with no error, anything else returns a Validation error.
// A failure to read the live table is returned as a Validation error when
// halting and logged otherwise.
func ConsistencyCheck(ctx context.Context, v *Validator, t *model.Table, opts PromptOptions) (bool, error) {
	res, err := v.Check(ctx, t)
	if err != nil {
		msg := fmt.Sprintf("schema validation of %s could not run: %v", t.Name, err)
		v.log.Errorf("%s", msg)
		if opts.HaltOnError {
			return false, errs.Wrap(errs.ErrKindValidation, msg, err)
		}
		return false, nil
	}
	if res.Valid {
		return true, nil
	}

	v.log.Errorf("table %s does not match its model", t.Name)
	for _, e := range res.Errors {
		v.log.Errorf("schema validation: %s", e)
	}
	if !opts.HaltOnError {
		return false, nil
	}

	out := opts.Out
	if out == nil {
		out = io.Discard
	}
	fmt.Fprintf(out, "\n%s\nschema validation failed\n%s\n", rule, rule)
	fmt.Fprintf(out, "table: %s\n\ndifferences:\n", t.String())
	for i, e := range res.Errors {
		fmt.Fprintf(out, "  %d. %s\n", i+1, e)
	}
	fmt.Fprintf(out, "\n%s\ncontinue anyway? (y/N): ", rule)

	if !confirmed(opts.In) {
		return false, errs.Newf(errs.ErrKindValidation, "stopped by operator: table %s does not match its model", t.Name)
	}
	v.log.Infof("operator chose to continue despite schema differences in %s", t.Name)
	return false, nil
}

func confirmed(in io.Reader) bool {
	if in == nil {
		return false
	}
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && line == "" {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	}
	return false
}
