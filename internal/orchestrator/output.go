package orchestrator

import (
	"fmt"
	"io"
)

// printer writes user-facing status lines. CI mode swaps prose for key=value
// lines that workflow steps can append to $GITHUB_OUTPUT.
type printer struct {
	out      io.Writer
	ciOutput bool
}

func (p printer) ci(format string, args ...any) {
	if p.ciOutput {
		fmt.Fprintf(p.out, format, args...)
	}
}

func (p printer) status(format string, args ...any) {
	if !p.ciOutput {
		fmt.Fprintf(p.out, format+"\n", args...)
	}
}
