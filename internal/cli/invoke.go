package cli

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

// NewInvokeCmd создаёт команду вызова workflow через API.
func NewInvokeCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var query []string
	var traceParent string

	cmd := &cobra.Command{
		Use:   "invoke",
		Short: "Invoke the deployed workflow (GET /)",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			params, err := parseQuery(query)
			if err != nil {
				return err
			}

			resp, err := client.Invoke(cmd.Context(), params, traceParent)
			if resp != nil {
				out.Info("execution %s (trace %s): HTTP %d", valueOrDash(resp.ExecutionID), valueOrDash(resp.TraceID), resp.StatusCode)
			}
			if err != nil {
				var apiErr *APIError
				if errors.As(err, &apiErr) && out.JSONMode() {
					out.JSON(apiErr)
				}
				return err
			}

			out.Raw(resp.Body)
			return nil
		},
	}

	cmd.Flags().StringArrayVarP(&query, "query", "q", nil, "Query parameter key=value (repeatable)")
	cmd.Flags().StringVar(&traceParent, "traceparent", "", "W3C traceparent header to propagate")

	return cmd
}

// NewWorkflowCmd создаёт команду просмотра развёрнутого workflow.
func NewWorkflowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "workflow",
		Short: "Show the workflow served by the API",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			wf, err := client.GetWorkflow(cmd.Context())
			if err != nil {
				return err
			}

			if out.JSONMode() {
				out.JSON(wf)
				return nil
			}

			out.Info("workflow %s: %s", wf.Name, wf.Description)
			headers := []string{"ID", "KIND", "RESULT_PATH", "TIMEOUT"}
			rows := make([][]string, len(wf.Steps))
			for i, s := range wf.Steps {
				timeout := "-"
				if s.TimeoutSec > 0 {
					timeout = strconv.Itoa(s.TimeoutSec) + "s"
				}
				rows[i] = []string{s.ID, s.Kind, valueOrDash(s.ResultPath), timeout}
			}
			out.Table(headers, rows)
			return nil
		},
	}
}

// parseQuery разбирает пары key=value.
func parseQuery(pairs []string) (url.Values, error) {
	values := url.Values{}
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid query %q: expected key=value", pair)
		}
		values.Add(key, value)
	}
	return values, nil
}

func valueOrDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
