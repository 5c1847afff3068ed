package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/raaihank/codesense/internal/audit"
	"github.com/raaihank/codesense/internal/cache"
	"github.com/raaihank/codesense/internal/completion"
	"github.com/raaihank/codesense/internal/config"
	"github.com/raaihank/codesense/internal/explain"
	"github.com/raaihank/codesense/internal/privacy"
	"github.com/raaihank/codesense/internal/prompt"
	"github.com/raaihank/codesense/internal/render"
	"github.com/raaihank/codesense/internal/ui"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type inputFlags struct {
	errorText string
	errorFile string
	codeText  string
	codeFile  string
}

var (
	explainInput    inputFlags
	explainLevel    string
	explainModel    string
	explainOutput   string
	explainNoPriv   bool
	explainPreview  bool
	explainNoPrompt bool

	redactInput  inputFlags
	redactOutput string

	explainCmd = &cobra.Command{
		Use:   "explain [error message]",
		Short: "Explain an error message",
		Long: `Explain an error message. The error is taken from --error, --error-file,
the positional arguments or piped stdin, in that order. With none of these and
an interactive terminal a form asks for it.`,
		RunE: runExplain,
	}

	redactCmd = &cobra.Command{
		Use:   "redact [text]",
		Short: "Show what privacy mode would send, without calling the model",
		RunE:  runRedact,
	}
)

func init() {
	addInputFlags(explainCmd, &explainInput)
	explainCmd.Flags().StringVarP(&explainLevel, "level", "l", "", "Detail level: Beginner, Intermediate or Advanced")
	explainCmd.Flags().StringVarP(&explainModel, "model", "m", "", "Model choice: fast, accurate or a model id")
	explainCmd.Flags().StringVarP(&explainOutput, "output", "o", "text", "Output format: text or json")
	explainCmd.Flags().BoolVar(&explainNoPriv, "no-privacy", false, "Send the text without masking")
	explainCmd.Flags().BoolVar(&explainPreview, "preview", false, "Show the masked text before sending")
	explainCmd.Flags().BoolVar(&explainNoPrompt, "no-input", false, "Never open the interactive form")

	addInputFlags(redactCmd, &redactInput)
	redactCmd.Flags().StringVarP(&redactOutput, "output", "o", "text", "Output format: text or json")
}

func addInputFlags(cmd *cobra.Command, f *inputFlags) {
	cmd.Flags().StringVarP(&f.errorText, "error", "e", "", "Error message or stack trace")
	cmd.Flags().StringVar(&f.errorFile, "error-file", "", "Read the error from a file")
	cmd.Flags().StringVarP(&f.codeText, "code", "c", "", "Related code")
	cmd.Flags().StringVar(&f.codeFile, "code-file", "", "Read the related code from a file")
}

func runExplain(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	// Without a key nothing else is asked for.
	apiKey, err := config.ResolveAPIKey(cfg.Completion)
	if err != nil {
		return err
	}

	stdin := pipedStdin()
	errorText, err := readErrorText(explainInput, args, stdin)
	if err != nil {
		return err
	}
	codeText, err := readText(explainInput.codeText, explainInput.codeFile)
	if err != nil {
		return err
	}

	sub := ui.Submission{
		ErrorText: errorText,
		CodeText:  codeText,
		Level:     defaultLevel(explainLevel),
		Model:     defaultModel(explainModel),
		Privacy:   cfg.Privacy.Enabled && !explainNoPriv,
	}

	interactive := ui.IsInteractive()
	if isBlank(sub.ErrorText, sub.CodeText) && interactive && !explainNoPrompt {
		sub, err = ui.PromptSubmission(sub, levelNames(), modelChoices(cfg.Completion))
		if err != nil {
			return err
		}
	}
	if isBlank(sub.ErrorText, sub.CodeText) {
		return explain.ErrEmptyInput
	}

	detector, err := privacy.New(cfg.Privacy, log)
	if err != nil {
		return fmt.Errorf("failed to configure privacy rules: %w", err)
	}

	store, err := audit.New(cfg.Audit, log)
	if err != nil {
		return fmt.Errorf("failed to open audit log: %w", err)
	}
	defer store.Close()

	var opts []explain.Option
	if c := openCache(); c != nil {
		defer c.Close()
		opts = append(opts, explain.WithCache(c))
	}

	client := completion.NewClient(cfg.Completion, apiKey, log)
	service := explain.New(cfg, detector, client, store, log, opts...)

	out, err := render.New(explainOutput, cmd.OutOrStdout())
	if err != nil {
		return err
	}
	text, _ := out.(*render.TextRenderer)

	if sub.Privacy && (explainPreview || cfg.Privacy.ShowPreview) {
		redaction := service.PreviewRequest(sub.ErrorText, sub.CodeText)
		if interactive {
			send, err := ui.ConfirmSend(previewText(redaction), findingLabels(redaction.Findings))
			if err != nil {
				return err
			}
			if !send {
				return ui.ErrAborted
			}
		} else {
			fmt.Fprintln(cmd.ErrOrStderr(), previewText(redaction))
		}
	}

	var outcome *explain.Outcome
	err = ui.WithSpinner(ctx, "Analyzing your error...", func() error {
		var explainErr error
		outcome, explainErr = service.Explain(ctx, explain.Request{
			ErrorText: sub.ErrorText,
			CodeText:  sub.CodeText,
			Level:     sub.Level,
			Model:     sub.Model,
			Privacy:   sub.Privacy,
		})
		return explainErr
	})
	if err != nil {
		return err
	}

	if text != nil {
		if outcome.PIIDetected {
			text.Note("Sensitive data was masked before sending: %s", strings.Join(findingLabels(outcome.Redaction.Findings), ", "))
		}
		if outcome.Mode == audit.ModePartialSuccess {
			text.Note("The model did not answer in JSON; showing its raw reply.")
		}
	}
	return out.Render(*outcome.Result)
}

func runRedact(cmd *cobra.Command, args []string) error {
	errorText, err := readErrorText(redactInput, args, pipedStdin())
	if err != nil {
		return err
	}
	codeText, err := readText(redactInput.codeText, redactInput.codeFile)
	if err != nil {
		return err
	}
	if isBlank(errorText, codeText) {
		return explain.ErrEmptyInput
	}

	detector, err := privacy.New(cfg.Privacy, log)
	if err != nil {
		return fmt.Errorf("failed to configure privacy rules: %w", err)
	}

	// Previews never reach the completer or the audit log.
	redaction := explain.New(cfg, detector, nil, nil, log).PreviewRequest(errorText, codeText)

	w := cmd.OutOrStdout()
	switch redactOutput {
	case "json":
		return json.NewEncoder(w).Encode(redaction)
	case "", "text":
		fmt.Fprintln(w, previewText(redaction))
		return nil
	default:
		return fmt.Errorf("unknown output format: %s", redactOutput)
	}
}

// openCache connects the response cache when enabled. A cache that cannot
// be reached is skipped and nil is returned.
func openCache() *cache.ResponseCache {
	if !cfg.Cache.Enabled {
		return nil
	}

	c, err := cache.NewResponseCache(cfg.Cache, log)
	if err != nil {
		log.Warn("Response cache unavailable, continuing without it", zap.Error(err))
		return nil
	}
	return c
}

// pipedStdin returns os.Stdin when it is not a terminal.
func pipedStdin() io.Reader {
	if ui.IsTerminal(os.Stdin) {
		return nil
	}
	return os.Stdin
}

// readErrorText takes the first non-empty source: flag, file, args, stdin.
func readErrorText(f inputFlags, args []string, stdin io.Reader) (string, error) {
	if f.errorText != "" || f.errorFile != "" {
		return readText(f.errorText, f.errorFile)
	}
	if len(args) > 0 {
		return strings.Join(args, " "), nil
	}
	if stdin != nil {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("failed to read stdin: %w", err)
		}
		return string(data), nil
	}
	return "", nil
}

func readText(value, file string) (string, error) {
	if value != "" || file == "" {
		return value, nil
	}
	data, err := os.ReadFile(file)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", file, err)
	}
	return string(data), nil
}

func isBlank(texts ...string) bool {
	for _, t := range texts {
		if strings.TrimSpace(t) != "" {
			return false
		}
	}
	return true
}

func defaultLevel(flag string) string {
	if flag != "" {
		return flag
	}
	if level, err := prompt.ParseLevel(cfg.Prompt.DefaultLevel); err == nil {
		return string(level)
	}
	return string(prompt.Beginner)
}

func defaultModel(flag string) string {
	if flag != "" {
		return flag
	}
	return cfg.Completion.DefaultModel
}

func levelNames() []string {
	levels := prompt.Levels()
	names := make([]string, len(levels))
	for i, l := range levels {
		names[i] = string(l)
	}
	return names
}

func modelChoices(c config.CompletionConfig) map[string]string {
	return map[string]string{
		"fast":     c.Models.Fast,
		"accurate": c.Models.Accurate,
	}
}

func findingLabels(findings []privacy.Finding) []string {
	labels := make([]string, 0, len(findings))
	for _, f := range findings {
		labels = append(labels, fmt.Sprintf("%s x%d", f.EntityType, f.Count))
	}
	return labels
}

// previewText lays out the masked error and code the way they are sent.
func previewText(r explain.Redaction) string {
	title := lipgloss.NewStyle().Bold(true)

	var b strings.Builder
	b.WriteString(title.Render("Error message:"))
	b.WriteString("\n")
	b.WriteString(r.ErrorText)
	if strings.TrimSpace(r.CodeText) != "" {
		b.WriteString("\n\n")
		b.WriteString(title.Render("Related code:"))
		b.WriteString("\n")
		b.WriteString(r.CodeText)
	}
	if !r.Detected() {
		b.WriteString("\n\nNo sensitive data detected.")
	} else {
		b.WriteString("\n\nMasked: ")
		b.WriteString(strings.Join(findingLabels(r.Findings), ", "))
	}
	return b.String()
}
