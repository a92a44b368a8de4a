package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"promptforge/internal/pipeline"
	"promptforge/internal/prompt"
	"promptforge/internal/telemetry"
	"promptforge/internal/types"
)

type generateFlags struct {
	kind        string
	task        string
	taskFile    string
	require     []string
	preferred   []string
	optional    []string
	budget      int
	temperature float64
	maxTokens   int
	deadline    time.Duration
	format      string
}

func newGenerateCmd() *cobra.Command {
	var f generateFlags

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Run one generation pipeline invocation and print the result",
		Long: `Assembles required and optional context files into a token-budgeted
prompt for the given task kind, calls the configured endpoint, validates
the response structure, and prints the extracted sections to stdout.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGenerate(f)
		},
	}

	kinds := make([]string, 0, len(prompt.Kinds()))
	for _, k := range prompt.Kinds() {
		kinds = append(kinds, string(k))
	}

	cmd.Flags().StringVar(&f.kind, "kind", string(prompt.TaskPRP),
		"task kind: "+strings.Join(kinds, ", "))
	cmd.Flags().StringVar(&f.task, "task", "", "task instance text")
	cmd.Flags().StringVar(&f.taskFile, "task-file", "", "read task instance from file")
	cmd.Flags().StringArrayVar(&f.require, "require", nil,
		"required context file (never dropped; repeatable)")
	cmd.Flags().StringArrayVar(&f.preferred, "context", nil,
		"preferred optional context file (repeatable)")
	cmd.Flags().StringArrayVar(&f.optional, "extra", nil,
		"low-priority optional context file (repeatable)")
	cmd.Flags().IntVar(&f.budget, "budget", 0, "token budget override")
	cmd.Flags().Float64Var(&f.temperature, "temperature", -1, "sampling temperature override")
	cmd.Flags().IntVar(&f.maxTokens, "max-tokens", 0, "max completion tokens override")
	cmd.Flags().DurationVar(&f.deadline, "deadline", 0,
		"overall wall-clock ceiling for the invocation, including retries (0 = none)")
	cmd.Flags().StringVar(&f.format, "format", "markdown", "output format: markdown or json")
	return cmd
}

func runGenerate(f generateFlags) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	kind := prompt.TaskKind(f.kind)
	if !kind.Valid() {
		return fmt.Errorf("unknown task kind %q", f.kind)
	}
	if f.format != "markdown" && f.format != "json" {
		return fmt.Errorf("format must be markdown or json, got %q", f.format)
	}

	task, err := resolveTask(f)
	if err != nil {
		return err
	}

	required, err := loadBlocks(f.require, types.PriorityRequired)
	if err != nil {
		return err
	}
	preferred, err := loadBlocks(f.preferred, types.PriorityPreferred)
	if err != nil {
		return err
	}
	extra, err := loadBlocks(f.optional, types.PriorityOptional)
	if err != nil {
		return err
	}

	in := pipeline.Input{
		TaskKind:    kind,
		Task:        task,
		Required:    required,
		Optional:    append(preferred, extra...),
		TokenBudget: cfg.TokenBudget,
		Temperature: cfg.Temperature,
		MaxTokens:   cfg.MaxTokens,
	}
	if f.budget > 0 {
		in.TokenBudget = f.budget
	}
	if f.temperature >= 0 {
		in.Temperature = f.temperature
	}
	if f.maxTokens > 0 {
		in.MaxTokens = f.maxTokens
	}

	ctx := context.Background()
	if f.deadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.deadline)
		defer cancel()
	}

	res, err := pipeline.Run(ctx, cfg.LLM(logger), telemetry.NewZapEmitter(logger), logger, in)
	if err != nil {
		return err
	}

	if err := printResult(res, kind, f.format); err != nil {
		return err
	}
	if !res.Validation.Valid {
		return fmt.Errorf("response failed structure validation; missing sections: %s",
			strings.Join(res.Validation.MissingSections, ", "))
	}
	return nil
}

func resolveTask(f generateFlags) (string, error) {
	if f.task != "" && f.taskFile != "" {
		return "", fmt.Errorf("--task and --task-file are mutually exclusive")
	}
	if f.taskFile != "" {
		raw, err := os.ReadFile(f.taskFile)
		if err != nil {
			return "", fmt.Errorf("read task file: %w", err)
		}
		return string(raw), nil
	}
	if strings.TrimSpace(f.task) == "" {
		return "", fmt.Errorf("a task is required (--task or --task-file)")
	}
	return f.task, nil
}

// jsonResult is the machine-readable output shape.
type jsonResult struct {
	InvocationID string            `json:"invocation_id"`
	Model        string            `json:"model"`
	Valid        bool              `json:"valid"`
	Missing      []string          `json:"missing_sections,omitempty"`
	Sections     map[string]string `json:"sections"`
	Skipped      []string          `json:"skipped_blocks,omitempty"`
	Truncated    []string          `json:"truncated_blocks,omitempty"`
	Usage        types.Usage       `json:"usage"`
	LatencyMs    int64             `json:"latency_ms"`
	RetryCount   int               `json:"retry_count"`
}

func printResult(res pipeline.Result, kind prompt.TaskKind, format string) error {
	if format == "json" {
		out := jsonResult{
			InvocationID: res.InvocationID,
			Model:        res.Response.Model,
			Valid:        res.Validation.Valid,
			Missing:      res.Validation.MissingSections,
			Sections:     res.Validation.ExtractedSections,
			Skipped:      res.Selection.SkippedIDs,
			Truncated:    res.Selection.TruncatedIDs,
			Usage:        res.Response.Usage,
			LatencyMs:    res.Response.LatencyMs,
			RetryCount:   res.Response.RetryCount,
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	expected, err := prompt.ExpectedSections(kind)
	if err != nil {
		return err
	}
	for _, name := range expected {
		content, ok := res.Validation.ExtractedSections[name]
		if !ok || strings.TrimSpace(content) == "" {
			continue
		}
		fmt.Printf("## %s\n\n%s\n\n", name, content)
	}
	return nil
}
