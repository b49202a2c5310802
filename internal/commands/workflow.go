package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/dwsmith1983/redisctl/internal/operation"
	"github.com/dwsmith1983/redisctl/pkg/types"
)

func newWorkflowCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "workflow",
		Short: "Run multi-step provisioning workflows",
		Long: `Workflows chain submit-and-wait operations. Steps run strictly in order
and the workflow stops at the first step that does not complete. Completed
steps are never rolled back; the per-step report shows what needs manual
cleanup after a partial run.`,
	}
	cmd.AddCommand(
		newProvisionSubscriptionCmd(a),
		newImportDatabaseCmd(a),
	)
	return cmd
}

// newProvisionSubscriptionCmd provisions a Cloud subscription and a first
// database in one run. The database step reads the subscription id from the
// prior step's result.
func newProvisionSubscriptionCmd(a *app) *cobra.Command {
	var (
		subData string
		dbData  string
		flags   waitFlags
	)
	cmd := &cobra.Command{
		Use:   "provision-subscription",
		Short: "Create a Cloud subscription, then a database inside it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.cloudClient()
			if err != nil {
				return err
			}
			subBody, err := readBody(subData)
			if err != nil {
				return err
			}
			dbBody, err := readBody(dbData)
			if err != nil {
				return err
			}

			steps := []operation.Step{
				{
					Name: "create-subscription",
					Submit: func(ctx context.Context, prior []types.StepResult) (types.OperationHandle, error) {
						return c.CreateSubscription(ctx, subBody)
					},
					Fetcher: c.TaskFetcher(),
					Config:  flags.config(),
				},
				{
					Name: "create-database",
					Submit: func(ctx context.Context, prior []types.StepResult) (types.OperationHandle, error) {
						subID, err := resourceID(prior[len(prior)-1].Result)
						if err != nil {
							return types.OperationHandle{}, err
						}
						return c.CreateDatabase(ctx, subID, dbBody)
					},
					Fetcher: c.TaskFetcher(),
					Config:  flags.config(),
				},
			}
			return a.runWorkflow(cmd, steps)
		},
	}
	cmd.Flags().StringVar(&subData, "subscription-data", "", "subscription create body: inline JSON, @file, or - for stdin")
	cmd.Flags().StringVar(&dbData, "database-data", "", "database create body: inline JSON or @file")
	cmd.Flags().DurationVar(&flags.timeout, "wait-timeout", 0, "per-step wait budget (default 300s)")
	cmd.Flags().DurationVar(&flags.interval, "wait-interval", 0, "poll interval (default 5s)")
	return cmd
}

// newImportDatabaseCmd creates an Enterprise database and imports data into
// it once it is active. The import step reads the bdb uid from the create
// step's result.
func newImportDatabaseCmd(a *app) *cobra.Command {
	var (
		dbData     string
		importData string
		flags      waitFlags
	)
	cmd := &cobra.Command{
		Use:   "import-database",
		Short: "Create an Enterprise database, then import data into it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.enterpriseClient()
			if err != nil {
				return err
			}
			dbBody, err := readBody(dbData)
			if err != nil {
				return err
			}
			importBody, err := readBody(importData)
			if err != nil {
				return err
			}

			steps := []operation.Step{
				{
					Name: "create-database",
					Submit: func(ctx context.Context, prior []types.StepResult) (types.OperationHandle, error) {
						h, _, err := c.CreateDatabase(ctx, dbBody)
						return h, err
					},
					Fetcher: c.DatabaseFetcher(),
					Config:  flags.config(),
				},
				{
					Name: "import",
					Submit: func(ctx context.Context, prior []types.StepResult) (types.OperationHandle, error) {
						uid, err := resourceID(prior[len(prior)-1].Result)
						if err != nil {
							return types.OperationHandle{}, err
						}
						return c.ImportDatabase(ctx, uid, importBody)
					},
					Fetcher: c.ActionFetcher(),
					Config:  flags.config(),
				},
			}
			return a.runWorkflow(cmd, steps)
		},
	}
	cmd.Flags().StringVar(&dbData, "database-data", "", "database create body: inline JSON, @file, or - for stdin")
	cmd.Flags().StringVar(&importData, "import-data", "", "import body: inline JSON or @file")
	cmd.Flags().DurationVar(&flags.timeout, "wait-timeout", 0, "per-step wait budget (default 600s)")
	cmd.Flags().DurationVar(&flags.interval, "wait-interval", 0, "poll interval (default 5s)")
	return cmd
}

// runWorkflow executes the steps and renders the per-step report. The
// composer's error propagates so the exit code reflects the first failure.
func (a *app) runWorkflow(cmd *cobra.Command, steps []operation.Step) error {
	composer := operation.NewComposer(
		operation.WithComposerSink(terminalSink(cmd.ErrOrStderr())),
		operation.WithComposerLogger(a.logger()),
	)
	result := composer.Run(cmd.Context(), steps)

	bold := color.New(color.Bold)
	_, _ = bold.Fprintf(cmd.ErrOrStderr(), "Workflow %s\n", result.RunID)
	for _, step := range result.Steps {
		line := fmt.Sprintf("  %-24s %-10s %s", step.Name, step.State, step.Elapsed.Truncate(time.Millisecond))
		switch step.State {
		case types.StateCompleted:
			fmt.Fprintln(cmd.ErrOrStderr(), color.GreenString(line))
		case types.StateCancelled, types.StateTimedOut:
			fmt.Fprintln(cmd.ErrOrStderr(), color.YellowString(line))
		default:
			fmt.Fprintln(cmd.ErrOrStderr(), color.RedString(line))
		}
	}

	if result.Err != nil {
		return result.Err
	}
	printer, err := a.printer(cmd.OutOrStdout())
	if err != nil {
		return err
	}
	report := make([]map[string]any, 0, len(result.Steps))
	for _, step := range result.Steps {
		report = append(report, map[string]any{
			"name":    step.Name,
			"state":   step.State,
			"elapsed": step.Elapsed.Truncate(time.Millisecond).String(),
			"result":  step.Result,
		})
	}
	return printer.PrintValue(map[string]any{
		"run_id": result.RunID,
		"steps":  report,
	})
}

// resourceID pulls the created resource's id out of a completed step result.
// Cloud writes resourceId on the task response, a nested resource document
// carries id, and an Enterprise bdb document carries uid.
func resourceID(result json.RawMessage) (string, error) {
	var doc struct {
		ResourceID *json.Number `json:"resourceId"`
		ID         *json.Number `json:"id"`
		UID        *json.Number `json:"uid"`
		Response   *struct {
			ResourceID *json.Number `json:"resourceId"`
		} `json:"response"`
	}
	if err := json.Unmarshal(result, &doc); err != nil {
		return "", operation.ValidationError("prior step result is not a JSON document: %v", err)
	}
	for _, n := range []*json.Number{doc.ResourceID, doc.ID, doc.UID} {
		if n != nil && n.String() != "" {
			return n.String(), nil
		}
	}
	if doc.Response != nil && doc.Response.ResourceID != nil {
		return doc.Response.ResourceID.String(), nil
	}
	return "", operation.ValidationError("prior step result carries no resource id")
}
