package commands

import (
	"encoding/json"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/dwsmith1983/redisctl/internal/api"
	"github.com/dwsmith1983/redisctl/internal/operation"
	"github.com/dwsmith1983/redisctl/pkg/types"
)

func newEnterpriseCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "enterprise",
		Aliases: []string{"ent"},
		Short:   "Operate on a Redis Enterprise cluster",
	}
	cmd.AddCommand(
		newEnterpriseClusterCmd(a),
		newEnterpriseDatabaseCmd(a),
		newEnterpriseNodeCmd(a),
		newEnterpriseActionCmd(a),
		newEnterpriseModuleCmd(a),
		newEnterpriseLicenseCmd(a),
	)
	return cmd
}

func newEnterpriseClusterCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cluster",
		Short: "Inspect and update the cluster",
	}

	cmd.AddCommand(&cobra.Command{
		Use:     "info",
		Aliases: []string{"get"},
		Short:   "Show the cluster document",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.enterpriseClient()
			if err != nil {
				return err
			}
			raw, err := c.GetCluster(cmd.Context())
			return a.printRaw(cmd, raw, err)
		},
	})

	var data string
	update := &cobra.Command{
		Use:   "update",
		Short: "Apply a partial cluster update",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.enterpriseClient()
			if err != nil {
				return err
			}
			body, err := readBody(data)
			if err != nil {
				return err
			}
			raw, err := c.UpdateCluster(cmd.Context(), body)
			return a.printRaw(cmd, raw, err)
		},
	}
	update.Flags().StringVar(&data, "data", "", "request body: inline JSON, @file, or - for stdin")
	cmd.AddCommand(update)

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Aggregate cluster, node, and database health in one view",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.enterpriseClient()
			if err != nil {
				return err
			}
			raw, err := clusterStatus(cmd, c)
			return a.printRaw(cmd, raw, err)
		},
	})

	return cmd
}

// clusterStatus fans out the three reads concurrently. If any read fails
// the whole command fails.
func clusterStatus(cmd *cobra.Command, c *api.EnterpriseClient) (json.RawMessage, error) {
	var cluster, nodes, bdbs json.RawMessage
	g, ctx := errgroup.WithContext(cmd.Context())
	g.Go(func() (err error) {
		cluster, err = c.GetCluster(ctx)
		return err
	})
	g.Go(func() (err error) {
		nodes, err = c.ListNodes(ctx)
		return err
	})
	g.Go(func() (err error) {
		bdbs, err = c.ListDatabases(ctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return json.Marshal(map[string]json.RawMessage{
		"cluster":   cluster,
		"nodes":     nodes,
		"databases": bdbs,
	})
}

func newEnterpriseDatabaseCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "database",
		Aliases: []string{"db", "bdb"},
		Short:   "Manage databases",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List databases",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.enterpriseClient()
			if err != nil {
				return err
			}
			raw, err := c.ListDatabases(cmd.Context())
			return a.printRaw(cmd, raw, err)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "get <uid>",
		Short: "Show one database",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.enterpriseClient()
			if err != nil {
				return err
			}
			raw, err := c.GetDatabase(cmd.Context(), args[0])
			return a.printRaw(cmd, raw, err)
		},
	})

	var createData string
	var createFlags waitFlags
	create := &cobra.Command{
		Use:   "create",
		Short: "Create a database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.enterpriseClient()
			if err != nil {
				return err
			}
			body, err := readBody(createData)
			if err != nil {
				return err
			}
			h, doc, err := c.CreateDatabase(cmd.Context(), body)
			if err != nil {
				return err
			}
			if !createFlags.wait {
				return a.printRaw(cmd, doc, nil)
			}
			return a.handleResult(cmd, h, c.DatabaseFetcher(), createFlags)
		},
	}
	create.Flags().StringVar(&createData, "data", "", "request body: inline JSON, @file, or - for stdin")
	createFlags.register(create)
	cmd.AddCommand(create)

	var updateData string
	var updateFlags waitFlags
	update := &cobra.Command{
		Use:   "update <uid>",
		Short: "Update a database",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.enterpriseClient()
			if err != nil {
				return err
			}
			body, err := readBody(updateData)
			if err != nil {
				return err
			}
			h, err := c.UpdateDatabase(cmd.Context(), args[0], body)
			if err != nil {
				return err
			}
			return a.handleResult(cmd, h, c.DatabaseFetcher(), updateFlags)
		},
	}
	update.Flags().StringVar(&updateData, "data", "", "request body: inline JSON, @file, or - for stdin")
	updateFlags.register(update)
	cmd.AddCommand(update)

	var deleteFlags waitFlags
	del := &cobra.Command{
		Use:   "delete <uid>",
		Short: "Delete a database",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.enterpriseClient()
			if err != nil {
				return err
			}
			h, err := c.DeleteDatabase(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return a.handleResult(cmd, h, c.DeletionFetcher(), deleteFlags)
		},
	}
	deleteFlags.register(del)
	cmd.AddCommand(del)

	cmd.AddCommand(newEnterpriseActionSubmitCmd(a, "export <uid>", "Export a database to external storage",
		func(cmd *cobra.Command, c *api.EnterpriseClient, args []string, body json.RawMessage) (types.OperationHandle, error) {
			return c.ExportDatabase(cmd.Context(), args[0], body)
		}))
	cmd.AddCommand(newEnterpriseActionSubmitCmd(a, "import <uid>", "Import data into a database",
		func(cmd *cobra.Command, c *api.EnterpriseClient, args []string, body json.RawMessage) (types.OperationHandle, error) {
			return c.ImportDatabase(cmd.Context(), args[0], body)
		}))

	var backupFlags waitFlags
	backup := &cobra.Command{
		Use:   "backup <uid>",
		Short: "Back up a database to its configured location",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.enterpriseClient()
			if err != nil {
				return err
			}
			h, err := c.BackupDatabase(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return a.handleResult(cmd, h, c.ActionFetcher(), backupFlags)
		},
	}
	backupFlags.register(backup)
	cmd.AddCommand(backup)

	return cmd
}

// newEnterpriseActionSubmitCmd builds an action-backed mutating subcommand:
// the returned action_uid polls via /v1/actions/{uid}.
func newEnterpriseActionSubmitCmd(a *app, use, short string,
	submit func(cmd *cobra.Command, c *api.EnterpriseClient, args []string, body json.RawMessage) (types.OperationHandle, error)) *cobra.Command {

	var data string
	var flags waitFlags
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.enterpriseClient()
			if err != nil {
				return err
			}
			body, err := readBody(data)
			if err != nil {
				return err
			}
			h, err := submit(cmd, c, args, body)
			if err != nil {
				return err
			}
			return a.handleResult(cmd, h, c.ActionFetcher(), flags)
		},
	}
	cmd.Flags().StringVar(&data, "data", "", "request body: inline JSON, @file, or - for stdin")
	flags.register(cmd)
	return cmd
}

func newEnterpriseNodeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "node",
		Short: "Inspect cluster nodes",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List nodes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.enterpriseClient()
			if err != nil {
				return err
			}
			raw, err := c.ListNodes(cmd.Context())
			return a.printRaw(cmd, raw, err)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "get <uid>",
		Short: "Show one node",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.enterpriseClient()
			if err != nil {
				return err
			}
			raw, err := c.GetNode(cmd.Context(), args[0])
			return a.printRaw(cmd, raw, err)
		},
	})
	return cmd
}

func newEnterpriseActionCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "action",
		Short: "Inspect and control long-running cluster actions",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List tracked actions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.enterpriseClient()
			if err != nil {
				return err
			}
			raw, err := c.ListActions(cmd.Context())
			return a.printRaw(cmd, raw, err)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "get <uid>",
		Short: "Show one action",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.enterpriseClient()
			if err != nil {
				return err
			}
			raw, err := c.GetAction(cmd.Context(), args[0])
			return a.printRaw(cmd, raw, err)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "cancel <uid>",
		Short: "Ask the cluster to cancel an action",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.enterpriseClient()
			if err != nil {
				return err
			}
			return c.CancelAction(cmd.Context(), args[0])
		},
	})

	var flags waitFlags
	wait := &cobra.Command{
		Use:   "wait <uid>",
		Short: "Block until an action reaches a terminal state",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.enterpriseClient()
			if err != nil {
				return err
			}
			h := types.OperationHandle{Platform: types.PlatformEnterprise, ID: args[0]}
			poller := operation.NewPoller(c.ActionFetcher(),
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
	wait.Flags().DurationVar(&flags.timeout, "wait-timeout", 0, "overall wait budget (default 600s)")
	wait.Flags().DurationVar(&flags.interval, "wait-interval", 0, "poll interval (default 5s)")
	cmd.AddCommand(wait)

	return cmd
}

func newEnterpriseModuleCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "module",
		Short: "Inspect installed modules",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List modules",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.enterpriseClient()
			if err != nil {
				return err
			}
			raw, err := c.ListModules(cmd.Context())
			return a.printRaw(cmd, raw, err)
		},
	})
	return cmd
}

func newEnterpriseLicenseCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "license",
		Short: "Show the cluster license",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.enterpriseClient()
			if err != nil {
				return err
			}
			raw, err := c.GetLicense(cmd.Context())
			return a.printRaw(cmd, raw, err)
		},
	}
}
