// Package printer writes coloured status output for the rosterd CLI.
package printer

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"

	"github.com/Shivanand-hulikatti/guild-roster/internal/model"
)

var (
	green  = color.New(color.FgGreen)
	yellow = color.New(color.FgYellow)
	red    = color.New(color.FgRed, color.Bold)
	cyan   = color.New(color.FgCyan)
	bold   = color.New(color.Bold)
)

// Output is where non-error output goes. Tests swap it out.
var Output io.Writer = os.Stdout

// Success prints a message in green with a checkmark prefix.
func Success(format string, a ...any) {
	msg := fmt.Sprintf(format, a...)
	if !strings.HasPrefix(msg, "✓") {
		msg = "✓ " + msg
	}
	green.Fprintln(Output, msg)
}

// Info prints a plain message.
func Info(format string, a ...any) {
	fmt.Fprintf(Output, format+"\n", a...)
}

// Warning prints a message in yellow with a warning prefix.
func Warning(format string, a ...any) {
	msg := fmt.Sprintf(format, a...)
	if !strings.HasPrefix(msg, "⚠️") {
		msg = "⚠️  " + msg
	}
	yellow.Fprintln(Output, msg)
}

// Step prints a step of a multi-step operation.
func Step(format string, a ...any) {
	cyan.Fprintf(Output, "→ %s\n", fmt.Sprintf(format, a...))
}

// Error prints a titled error with an explanation and suggestions to stderr
// and returns a short error for cobra, which is configured not to print it.
func Error(title, explanation string, suggestions ...string) error {
	red.Fprintf(os.Stderr, "%s\n\n", title)
	if explanation != "" {
		fmt.Fprintf(os.Stderr, "%s\n", explanation)
	}
	switch len(suggestions) {
	case 0:
	case 1:
		fmt.Fprintf(os.Stderr, "\n%s\n", suggestions[0])
	default:
		fmt.Fprintf(os.Stderr, "\nEither:\n")
		for i, s := range suggestions {
			fmt.Fprintf(os.Stderr, "  %d. %s\n", i+1, s)
		}
	}
	return fmt.Errorf("%s", title)
}

// Template prints a composition grouped by party.
func Template(t *model.Template) {
	bold.Fprintf(Output, "%s", t.Name)
	fmt.Fprintf(Output, " (%d roles)\n", len(t.Roles))
	party := ""
	for _, r := range t.Roles {
		if r.Party != party {
			party = r.Party
			cyan.Fprintf(Output, "  %s\n", party)
		}
		fmt.Fprintf(Output, "    %2d. %s\n", r.RoleID, r.RoleName)
	}
}
