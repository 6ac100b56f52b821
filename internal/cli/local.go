package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/shaiso/Relay/internal/config"
	"github.com/shaiso/Relay/internal/domain"
	"github.com/shaiso/Relay/internal/engine"
	"github.com/shaiso/Relay/internal/orchestrator"
	"github.com/shaiso/Relay/internal/steps"
	"github.com/shaiso/Relay/internal/telemetry"
)

// NewRunCmd создаёт команду локального выполнения workflow.
//
// Конфигурация берётся из окружения (как у relay-api), флаги её переопределяют.
func NewRunCmd(outputFn func() *Output) *cobra.Command {
	var variant, file, upstream, backend string
	var query []string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Execute the workflow locally once",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := outputFn()
			ctx := cmd.Context()

			cfg, err := config.FromEnv()
			if err != nil {
				return err
			}
			if variant != "" {
				cfg.WorkflowVariant = variant
			}
			if file != "" {
				cfg.WorkflowFile = file
			}
			if upstream != "" {
				cfg.UpstreamURL = upstream
			}
			if backend != "" {
				cfg.StoreBackend = strings.ToLower(backend)
			}

			params, err := parseQuery(query)
			if err != nil {
				return err
			}

			logger := telemetry.NewLogger(os.Stderr, telemetry.LogLevel(), os.Getenv("LOG_FORMAT"))

			def, err := cfg.LoadDefinition()
			if err != nil {
				return err
			}

			store, closeStore, err := cfg.OpenStore(ctx)
			if err != nil {
				return err
			}
			defer closeStore()

			sink, closeSink, err := cfg.OpenEventSink(ctx, logger)
			if err != nil {
				return err
			}
			defer closeSink()

			o, err := orchestrator.New(orchestrator.Config{
				Definition: def,
				Registry:   steps.DefaultRegistry(store, nil),
				Sink:       sink,
				Logger:     logger,
			})
			if err != nil {
				return err
			}

			result, err := o.Execute(ctx, domain.Trigger{Source: "cli", Query: params})
			if result != nil {
				printResult(out, result)
			}
			return err
		},
	}

	cmd.Flags().StringVar(&variant, "variant", "", "Built-in variant (overrides WORKFLOW_VARIANT)")
	cmd.Flags().StringVarP(&file, "file", "f", "", "Workflow definition file (overrides WORKFLOW_FILE)")
	cmd.Flags().StringVar(&upstream, "upstream", "", "Upstream URL (overrides UPSTREAM_URL)")
	cmd.Flags().StringVar(&backend, "store", "", "Store backend: memory, dynamodb, postgres (overrides STORE_BACKEND)")
	cmd.Flags().StringArrayVarP(&query, "query", "q", nil, "Query parameter key=value (repeatable)")

	return cmd
}

// NewValidateCmd создаёт команду проверки файла workflow.
func NewValidateCmd(outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "validate FILE",
		Short: "Validate a workflow definition file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := outputFn()

			def, err := engine.LoadDefinition(args[0])
			if err != nil {
				return err
			}

			if out.JSONMode() {
				out.JSON(def)
				return nil
			}
			out.Success(fmt.Sprintf("Workflow %q is valid (%d steps, timeout %s)", def.Name, len(def.Steps), def.Timeout()))
			return nil
		},
	}
}

// NewVariantsCmd создаёт команду вывода встроенных вариантов.
func NewVariantsCmd(outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "variants",
		Short: "List built-in workflow variants",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := outputFn()

			names := engine.VariantNames()
			defs := make([]*domain.Definition, 0, len(names))
			rows := make([][]string, 0, len(names))
			for _, name := range names {
				def, err := engine.Variant(name)
				if err != nil {
					return err
				}
				defs = append(defs, def)
				rows = append(rows, []string{def.Name, stepKinds(def), def.Description})
			}

			out.Print([]string{"NAME", "STEPS", "DESCRIPTION"}, rows, defs)
			return nil
		},
	}
}

func printResult(out *Output, result *orchestrator.Result) {
	if out.JSONMode() {
		out.JSON(result)
		return
	}

	out.Info("execution %s %s in %s (trace %s)", result.ExecutionID, result.Status, result.Duration, result.TraceID)

	headers := []string{"STEP", "KIND", "STATUS", "DURATION", "ERROR"}
	rows := make([][]string, len(result.Steps))
	for i, s := range result.Steps {
		rows[i] = []string{s.ID, string(s.Kind), string(s.Status), s.Duration.String(), valueOrDash(s.Error)}
	}
	out.Table(headers, rows)

	if result.Output == nil {
		return
	}
	if s, ok := result.Output.(string); ok {
		out.Raw([]byte(s))
		return
	}
	out.JSON(result.Output)
}

func stepKinds(def *domain.Definition) string {
	kinds := make([]string, len(def.Steps))
	for i, s := range def.Steps {
		kinds[i] = string(s.Kind)
	}
	return strings.Join(kinds, " → ")
}
