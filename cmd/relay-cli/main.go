// Relay CLI — инструмент командной строки для вызова и локального
// выполнения workflow.
//
// Использование:
//
//	relay [--api-url URL] [--json] <command> [flags]
//
// Команды:
//
//	invoke    Вызвать развёрнутый workflow (GET /)
//	workflow  Показать развёрнутый workflow
//	run       Выполнить workflow локально
//	validate  Проверить файл workflow
//	variants  Встроенные варианты
//	events    Журнал выполнений из RabbitMQ
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/shaiso/Relay/internal/cli"
)

// version задаётся через ldflags при сборке.
var version = "dev"

func main() {
	var apiURL string
	var jsonOutput bool

	rootCmd := &cobra.Command{
		Use:           "relay",
		Short:         "Relay CLI — short-lived request workflows",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&apiURL, "api-url", "http://localhost:8080", "API server URL")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")

	clientFn := func() *cli.Client { return cli.NewClient(apiURL) }
	outputFn := func() *cli.Output { return cli.NewOutput(jsonOutput) }

	rootCmd.AddCommand(
		cli.NewInvokeCmd(clientFn, outputFn),
		cli.NewWorkflowCmd(clientFn, outputFn),
		cli.NewRunCmd(outputFn),
		cli.NewValidateCmd(outputFn),
		cli.NewVariantsCmd(outputFn),
		cli.NewEventsCmd(outputFn),
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
