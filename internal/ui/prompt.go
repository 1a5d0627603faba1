package ui

import (
	"errors"
	"os"

	"github.com/AlecAivazis/survey/v2"
	"github.com/mattn/go-isatty"
)

// ErrNotInteractive is returned by the prompts when stdin is not a terminal.
var ErrNotInteractive = errors.New("prompt requires an interactive terminal")

// Interactive reports whether prompts can be shown.
var Interactive = func() bool {
	fd := os.Stdin.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func ask[T any](p survey.Prompt, out *T, opts ...survey.AskOpt) error {
	if !Interactive() {
		return ErrNotInteractive
	}
	return survey.AskOne(p, out, opts...)
}

// Input asks for a line of text. An empty default makes the answer required.
func Input(message, defaultValue, help string) (string, error) {
	var answer string
	var opts []survey.AskOpt
	if defaultValue == "" {
		opts = append(opts, survey.WithValidator(survey.Required))
	}
	err := ask(&survey.Input{Message: message, Default: defaultValue, Help: help}, &answer, opts...)
	return answer, err
}

func Password(message, help string) (string, error) {
	var answer string
	err := ask(&survey.Password{Message: message, Help: help}, &answer)
	return answer, err
}

// Select offers options and returns the chosen one.
func Select(message string, options []string, defaultValue string) (string, error) {
	p := &survey.Select{Message: message, Options: options, PageSize: 10}
	if defaultValue != "" {
		p.Default = defaultValue
	}
	var answer string
	err := ask(p, &answer)
	return answer, err
}

// Confirm asks a yes/no question. Without a terminal it returns def and
// ErrNotInteractive.
func Confirm(message string, def bool) (bool, error) {
	answer := def
	err := ask(&survey.Confirm{Message: message, Default: def}, &answer)
	return answer, err
}
