package commands

import (
	"context"
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/dwsmith1983/redisctl/internal/api"
	"github.com/dwsmith1983/redisctl/internal/operation"
	"github.com/dwsmith1983/redisctl/pkg/types"
)

func newCloudCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cloud",
		Short: "Operate on a Redis Cloud account",
	}
	cmd.AddCommand(
		newCloudSubscriptionCmd(a),
		newCloudDatabaseCmd(a),
		newCloudTaskCmd(a),
	)
	return cmd
}

// printRaw is the shared tail of every read command.
func (a *app) printRaw(cmd *cobra.Command, raw json.RawMessage, err error) error {
	if err != nil {
		return err
	}
	printer, perr := a.printer(cmd.OutOrStdout())
	if perr != nil {
		return perr
	}
	return printer.Print(raw)
}

func newCloudSubscriptionCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "subscription",
		Aliases: []string{"sub"},
		Short:   "Manage subscriptions",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List subscriptions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.cloudClient()
			if err != nil {
				return err
			}
			raw, err := c.ListSubscriptions(cmd.Context())
			return a.printRaw(cmd, raw, err)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "get <id>",
		Short: "Show one subscription",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.cloudClient()
			if err != nil {
				return err
			}
			raw, err := c.GetSubscription(cmd.Context(), args[0])
			return a.printRaw(cmd, raw, err)
		},
	})

	cmd.AddCommand(newCloudAsyncCmd(a, "create", "Create a subscription", true,
		func(ctx context.Context, c *api.CloudClient, args []string, body json.RawMessage) (types.OperationHandle, error) {
			return c.CreateSubscription(ctx, body)
		}, cobra.NoArgs))

	cmd.AddCommand(newCloudAsyncCmd(a, "update <id>", "Update a subscription", true,
		func(ctx context.Context, c *api.CloudClient, args []string, body json.RawMessage) (types.OperationHandle, error) {
			return c.UpdateSubscription(ctx, args[0], body)
		}, cobra.ExactArgs(1)))

	cmd.AddCommand(newCloudAsyncCmd(a, "delete <id>", "Delete a subscription", false,
		func(ctx context.Context, c *api.CloudClient, args []string, body json.RawMessage) (types.OperationHandle, error) {
			return c.DeleteSubscription(ctx, args[0])
		}, cobra.ExactArgs(1)))

	return cmd
}

func newCloudDatabaseCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "database",
		Aliases: []string{"db"},
		Short:   "Manage databases within a subscription",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list <subscription-id>",
		Short: "List databases",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.cloudClient()
			if err != nil {
				return err
			}
			raw, err := c.ListDatabases(cmd.Context(), args[0])
			return a.printRaw(cmd, raw, err)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "get <subscription-id> <database-id>",
		Short: "Show one database",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.cloudClient()
			if err != nil {
				return err
			}
			raw, err := c.GetDatabase(cmd.Context(), args[0], args[1])
			return a.printRaw(cmd, raw, err)
		},
	})

	cmd.AddCommand(newCloudAsyncCmd(a, "create <subscription-id>", "Create a database", true,
		func(ctx context.Context, c *api.CloudClient, args []string, body json.RawMessage) (types.OperationHandle, error) {
			return c.CreateDatabase(ctx, args[0], body)
		}, cobra.ExactArgs(1)))

	cmd.AddCommand(newCloudAsyncCmd(a, "update <subscription-id> <database-id>", "Update a database", true,
		func(ctx context.Context, c *api.CloudClient, args []string, body json.RawMessage) (types.OperationHandle, error) {
			return c.UpdateDatabase(ctx, args[0], args[1], body)
		}, cobra.ExactArgs(2)))

	cmd.AddCommand(newCloudAsyncCmd(a, "delete <subscription-id> <database-id>", "Delete a database", false,
		func(ctx context.Context, c *api.CloudClient, args []string, body json.RawMessage) (types.OperationHandle, error) {
			return c.DeleteDatabase(ctx, args[0], args[1])
		}, cobra.ExactArgs(2)))

	cmd.AddCommand(newCloudAsyncCmd(a, "backup <subscription-id> <database-id>", "Trigger an on-demand backup", false,
		func(ctx context.Context, c *api.CloudClient, args []string, body json.RawMessage) (types.OperationHandle, error) {
			return c.BackupDatabase(ctx, args[0], args[1])
		}, cobra.ExactArgs(2)))

	cmd.AddCommand(newCloudAsyncCmd(a, "import <subscription-id> <database-id>", "Import data from external storage", true,
		func(ctx context.Context, c *api.CloudClient, args []string, body json.RawMessage) (types.OperationHandle, error) {
			return c.ImportDatabase(ctx, args[0], args[1], body)
		}, cobra.ExactArgs(2)))

	return cmd
}

// newCloudAsyncCmd builds one mutating subcommand: optional --data body,
// submit, then the shared --wait handling against the task endpoint.
func newCloudAsyncCmd(a *app, use, short string, takesBody bool,
	submit func(ctx context.Context, c *api.CloudClient, args []string, body json.RawMessage) (types.OperationHandle, error),
	argSpec cobra.PositionalArgs) *cobra.Command {

	var data string
	var flags waitFlags
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  argSpec,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.cloudClient()
			if err != nil {
				return err
			}
			var body json.RawMessage
			if takesBody {
				if body, err = readBody(data); err != nil {
					return err
				}
			}
			h, err := submit(cmd.Context(), c, args, body)
			if err != nil {
				return err
			}
			return a.handleResult(cmd, h, c.TaskFetcher(), flags)
		},
	}
	if takesBody {
		cmd.Flags().StringVar(&data, "data", "", "request body: inline JSON, @file, or - for stdin")
	}
	flags.register(cmd)
	return cmd
}

func newCloudTaskCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "task",
		Short: "Inspect asynchronous tasks",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List recent tasks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.cloudClient()
			if err != nil {
				return err
			}
			raw, err := c.ListTasks(cmd.Context())
			return a.printRaw(cmd, raw, err)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "get <task-id>",
		Short: "Show one task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.cloudClient()
			if err != nil {
				return err
			}
			raw, err := c.GetTask(cmd.Context(), args[0])
			return a.printRaw(cmd, raw, err)
		},
	})

	var flags waitFlags
	wait := &cobra.Command{
		Use:   "wait <task-id>",
		Short: "Block until a task reaches a terminal state",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.cloudClient()
			if err != nil {
				return err
			}
			h := types.OperationHandle{Platform: types.PlatformCloud, ID: args[0]}
			poller := operation.NewPoller(c.TaskFetcher(),
				operation.WithSink(terminalSink(cmd.ErrOrStderr())),
				operation.WithLogger(a.logger()),
			)
			outcome, err := poller.Wait(cmd.Context(), h, flags.config())
			if err != nil {
				return err
			}
			return a.printRaw(cmd, outcome.Result, nil)
		},
	}
	wait.Flags().DurationVar(&flags.timeout, "wait-timeout", 0, "overall wait budget (default 300s)")
	wait.Flags().DurationVar(&flags.interval, "wait-interval", 0, "poll interval (default 5s)")
	cmd.AddCommand(wait)

	return cmd
}
