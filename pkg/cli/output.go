package cli

import (
	"fmt"
	"io"

	"github.com/fatih/color"

	"github.com/limecash/lime-e2e/pkg/core"
)

var (
	cyan   = color.New(color.FgCyan).SprintFunc()
	green  = color.New(color.FgGreen).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
	red    = color.New(color.FgRed).SprintFunc()
	bold   = color.New(color.Bold).SprintFunc()
)

func printStep(w io.Writer, format string, args ...interface{}) {
	fmt.Fprintf(w, "%s %s\n", cyan("⏳"), fmt.Sprintf(format, args...))
}

func printSuccess(w io.Writer, format string, args ...interface{}) {
	fmt.Fprintf(w, "%s %s\n", green("✓"), fmt.Sprintf(format, args...))
}

func printWarn(w io.Writer, format string, args ...interface{}) {
	fmt.Fprintf(w, "%s %s\n", yellow("!"), fmt.Sprintf(format, args...))
}

// stateLabel colors a screen state: identified screens green, the dialog
// yellow, anything else red.
func stateLabel(s core.ScreenState) string {
	switch {
	case s == core.StateModalOpen:
		return bold(yellow(s.String()))
	case s.IsKnown():
		return bold(green(s.String()))
	default:
		return bold(red(s.String()))
	}
}
