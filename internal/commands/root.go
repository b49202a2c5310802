package commands

import (
	"github.com/spf13/cobra"
)

// NewRootCmd assembles the full command tree.
func NewRootCmd(version string) *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "redisctl",
		Short: "Unified CLI for the Redis Cloud and Redis Enterprise control planes",
		Long: `redisctl drives both Redis control planes from one tool. Mutating calls
return an operation handle; add --wait to block until the platform reports a
terminal state, with consistent timeout and failure handling on both
platforms.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.profileName, "profile", "", "profile name (default from config or REDISCTL_PROFILE)")
	pf.StringVarP(&a.format, "output", "o", "auto", "output format: json, yaml, table, or auto")
	pf.StringVarP(&a.query, "query", "q", "", "jq expression applied to the output")
	pf.BoolVar(&a.verbose, "verbose", false, "enable debug logging")

	root.AddCommand(
		newProfileCmd(a),
		newCloudCmd(a),
		newEnterpriseCmd(a),
		newWorkflowCmd(a),
		newAPICmd(a),
		newMCPCmd(a, version),
	)
	return root
}
