package ui

import (
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/mgutz/ansi"

	"snowbank/pkg/errors"
)

// Output receives all formatted messages.
var Output io.Writer = os.Stdout

var supportsColor = isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())

var (
	ColorSuccess  = colorFunc(ansi.Green)
	ColorError    = colorFunc(ansi.Red)
	ColorWarning  = colorFunc(ansi.Yellow)
	ColorInfo     = colorFunc(ansi.Cyan)
	ColorProgress = colorFunc(ansi.Blue)
	ColorBold     = colorFunc("default+b")
	ColorDim      = colorFunc("default+h")
)

// SetColor turns colored output on or off.
func SetColor(enabled bool) {
	supportsColor = enabled
}

func colorFunc(style string) func(string) string {
	return func(text string) string {
		if !supportsColor {
			return text
		}
		return ansi.Color(text, style)
	}
}

// ShowHeader prints title centred in a framed banner.
func ShowHeader(title string) {
	width := max(50, len(title)+4)
	left := (width - 2 - len(title)) / 2
	right := width - 2 - len(title) - left
	rule := "+" + strings.Repeat("-", width-2) + "+"

	fmt.Fprintln(Output)
	fmt.Fprintln(Output, rule)
	fmt.Fprintf(Output, "|%s%s%s|\n", strings.Repeat(" ", left), ColorBold(title), strings.Repeat(" ", right))
	fmt.Fprintln(Output, rule)
}

// ShowError prints err. Coded errors show their cause and suggestions;
// other errors get a tip guessed from the message.
func ShowError(err error) {
	fmt.Fprintf(Output, "\n%s\n", ColorError("ERROR:"))

	var app *errors.AppError
	if stderrors.As(err, &app) {
		fmt.Fprintf(Output, "  [%s] %s\n", app.Code, app.Message)
		if app.Cause != nil {
			for _, line := range strings.Split(app.Cause.Error(), "\n") {
				fmt.Fprintf(Output, "  %s\n", ColorDim(line))
			}
		}
		for _, s := range app.Suggestions {
			fmt.Fprintf(Output, "  %s %s\n", ColorInfo("TIP:"), s)
		}
		return
	}

	message := err.Error()
	first, rest, _ := strings.Cut(message, "\n")
	fmt.Fprintf(Output, "  %s\n", first)
	if rest != "" {
		for _, line := range strings.Split(rest, "\n") {
			fmt.Fprintf(Output, "  %s\n", ColorDim(line))
		}
	}
	if tip := getSuggestion(message); tip != "" {
		fmt.Fprintf(Output, "\n  %s %s\n", ColorInfo("TIP:"), ColorInfo(tip))
	}
}

func ShowSuccess(message string) {
	fmt.Fprintf(Output, "%s %s\n", ColorSuccess("SUCCESS:"), message)
}

func ShowWarning(message string) {
	fmt.Fprintf(Output, "%s %s\n", ColorWarning("WARNING:"), ColorWarning(message))
}

func ShowInfo(message string) {
	fmt.Fprintf(Output, "%s %s\n", ColorInfo("INFO:"), message)
}

// KeyValue prints an aligned "key: value" line.
func KeyValue(key, value string) {
	fmt.Fprintf(Output, "  %-18s %s\n", ColorBold(key+":"), value)
}

var suggestions = []struct {
	needles []string
	tip     string
}{
	{[]string{"authentication failed", "incorrect username or password"},
		"Check snowflake.username and the stored password ('snowbank setup')"},
	{[]string{"connection refused", "no such host"},
		"Verify the Snowflake account identifier and network connectivity"},
	{[]string{"syntax error"},
		"Review the SQL in the affected catalog script"},
	{[]string{"does not exist"},
		"Deploy lower layers first: snowbank deploy --layers RAW"},
	{[]string{"insufficient privileges", "permission denied"},
		"Ensure the configured role can create objects in the target database"},
}

func getSuggestion(message string) string {
	lower := strings.ToLower(message)
	for _, s := range suggestions {
		for _, n := range s.needles {
			if strings.Contains(lower, n) {
				return s.tip
			}
		}
	}
	return ""
}
