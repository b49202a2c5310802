package commands

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dwsmith1983/redisctl/internal/operation"
)

// newAPICmd is the raw passthrough for endpoints without a dedicated
// subcommand. The path goes to the platform API verbatim; authentication and
// error classification still apply.
func newAPICmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "api",
		Short: "Call a platform API endpoint directly",
	}
	cmd.AddCommand(
		newAPIPlatformCmd(a, "cloud", "Call the Cloud API directly"),
		newAPIPlatformCmd(a, "enterprise", "Call the Enterprise API directly"),
	)
	return cmd
}

func newAPIPlatformCmd(a *app, platform, short string) *cobra.Command {
	var data string
	cmd := &cobra.Command{
		Use:   platform + " <method> <path>",
		Short: short,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			method := strings.ToUpper(args[0])
			switch method {
			case http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
			default:
				return operation.ValidationError("unsupported method %q", args[0])
			}
			path := args[1]
			if !strings.HasPrefix(path, "/") {
				path = "/" + path
			}

			var body json.RawMessage
			if data != "" {
				var err error
				if body, err = readBody(data); err != nil {
					return err
				}
			}

			var raw json.RawMessage
			if platform == "cloud" {
				c, err := a.cloudClient()
				if err != nil {
					return err
				}
				raw, err = c.Do(cmd.Context(), method, path, body)
				return a.printRaw(cmd, raw, err)
			}
			c, err := a.enterpriseClient()
			if err != nil {
				return err
			}
			raw, err = c.Do(cmd.Context(), method, path, body)
			return a.printRaw(cmd, raw, err)
		},
	}
	cmd.Flags().StringVar(&data, "data", "", "request body: inline JSON, @file, or - for stdin")
	return cmd
}
