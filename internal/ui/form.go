// Package ui holds the interactive terminal prompts used by the CLI.
package ui

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/huh/spinner"
	"github.com/mattn/go-isatty"
)

// ErrAborted is returned when the user cancels a form.
var ErrAborted = errors.New("aborted")

const maxFieldChars = 20000

// Submission is what the interactive form collects.
type Submission struct {
	ErrorText string
	CodeText  string
	Level     string
	Model     string
	Privacy   bool
}

// IsInteractive reports whether both stdin and stdout are terminals.
func IsInteractive() bool {
	return IsTerminal(os.Stdin) && IsTerminal(os.Stdout)
}

// IsTerminal reports whether f is attached to a terminal.
func IsTerminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// PromptSubmission asks for the error, optional code, level, model and the
// privacy toggle. Fields already set in defaults are pre-filled.
func PromptSubmission(defaults Submission, levels []string, models map[string]string) (Submission, error) {
	s := defaults

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewText().
				Title("Error message").
				Description("Paste the error or stack trace.").
				CharLimit(maxFieldChars).
				Lines(6).
				Value(&s.ErrorText),
			huh.NewText().
				Title("Related code").
				Description("Optional. The code that raised the error.").
				CharLimit(maxFieldChars).
				Lines(6).
				Value(&s.CodeText),
		),
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Detail level").
				Options(levelOptions(levels)...).
				Value(&s.Level),
			huh.NewSelect[string]().
				Title("Model").
				Options(modelOptions(models, s.Model)...).
				Value(&s.Model),
			huh.NewConfirm().
				Title("Privacy mode").
				Description("Mask emails, URLs, keys and other identifiers before sending.").
				Affirmative("On").
				Negative("Off").
				Value(&s.Privacy),
		),
	)

	if err := form.Run(); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return Submission{}, ErrAborted
		}
		return Submission{}, err
	}
	return s, nil
}

// ConfirmSend shows the masked text and asks whether to send it.
func ConfirmSend(masked string, findings []string) (bool, error) {
	description := masked
	if len(findings) > 0 {
		description = fmt.Sprintf("Masked: %s\n\n%s", strings.Join(findings, ", "), masked)
	}

	send := true
	err := huh.NewConfirm().
		Title("Send this to the model?").
		Description(description).
		Affirmative("Send").
		Negative("Cancel").
		Value(&send).
		Run()
	if errors.Is(err, huh.ErrUserAborted) {
		return false, ErrAborted
	}
	return send, err
}

// WithSpinner runs fn while a spinner with title is shown. Without a
// terminal fn runs directly.
func WithSpinner(ctx context.Context, title string, fn func() error) error {
	if !IsInteractive() {
		return fn()
	}

	var fnErr error
	err := spinner.New().
		Title(" " + title).
		Context(ctx).
		Action(func() { fnErr = fn() }).
		Run()
	if err != nil {
		return err
	}
	return fnErr
}

func levelOptions(levels []string) []huh.Option[string] {
	return huh.NewOptions(levels...)
}

// modelOptions labels each choice with its model id, sorted by choice name.
// A current value that names no choice is a literal model id and is offered
// first so the select keeps it.
func modelOptions(models map[string]string, current string) []huh.Option[string] {
	keys := make([]string, 0, len(models))
	for k := range models {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	options := make([]huh.Option[string], 0, len(keys)+1)
	if _, ok := models[current]; current != "" && !ok {
		options = append(options, huh.NewOption(current, current))
	}
	for _, k := range keys {
		label := k
		if id := models[k]; id != "" {
			label = fmt.Sprintf("%s (%s)", k, id)
		}
		options = append(options, huh.NewOption(label, k))
	}
	return options
}
