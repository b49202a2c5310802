// Package commands implements the CLI subcommands for the redisctl binary.
package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/dwsmith1983/redisctl/internal/api"
	"github.com/dwsmith1983/redisctl/internal/config"
	"github.com/dwsmith1983/redisctl/internal/operation"
	"github.com/dwsmith1983/redisctl/internal/output"
	"github.com/dwsmith1983/redisctl/pkg/types"
)

// app carries the persistent-flag state shared by every subcommand.
type app struct {
	profileName string
	format      string
	query       string
	verbose     bool
}

// logger returns the process logger; --verbose lowers the level to debug.
func (a *app) logger() *slog.Logger {
	level := slog.LevelWarn
	if a.verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// printer builds the output printer from the -o and -q flags.
func (a *app) printer(w io.Writer) (*output.Printer, error) {
	format, err := output.ParseFormat(a.format)
	if err != nil {
		return nil, err
	}
	return output.NewPrinter(w, format, a.query), nil
}

// resolveProfile loads the config file and resolves the selected profile.
func (a *app) resolveProfile() (*config.Profile, error) {
	path, err := config.Path()
	if err != nil {
		return nil, operation.ConfigError("%v", err)
	}
	file, err := config.Load(path)
	if err != nil {
		return nil, operation.ConfigError("%v", err)
	}
	p, err := file.Resolve(a.profileName)
	if err != nil {
		return nil, operation.ConfigError("%v", err)
	}
	return p, nil
}

// cloudClient resolves the profile and builds a Cloud client, rejecting
// profiles pointed at the wrong platform.
func (a *app) cloudClient() (*api.CloudClient, error) {
	p, err := a.resolveProfile()
	if err != nil {
		return nil, err
	}
	if p.Deployment != types.PlatformCloud {
		return nil, operation.ValidationError("profile targets %s, command requires cloud", p.Deployment)
	}
	return api.NewCloudClient(api.CloudConfig{
		BaseURL:   p.APIURL,
		APIKey:    p.APIKey,
		APISecret: p.APISecret,
		Breaker:   breakerConfig(p.Resilience),
	}, a.logger())
}

// enterpriseClient resolves the profile and builds an Enterprise client.
func (a *app) enterpriseClient() (*api.EnterpriseClient, error) {
	p, err := a.resolveProfile()
	if err != nil {
		return nil, err
	}
	if p.Deployment != types.PlatformEnterprise {
		return nil, operation.ValidationError("profile targets %s, command requires enterprise", p.Deployment)
	}
	return api.NewEnterpriseClient(api.EnterpriseConfig{
		BaseURL:  p.URL,
		Username: p.Username,
		Password: p.Password,
		Insecure: p.Insecure,
		Breaker:  breakerConfig(p.Resilience),
	}, a.logger())
}

func breakerConfig(r *config.Resilience) api.BreakerConfig {
	if r == nil {
		return api.BreakerConfig{}
	}
	return api.BreakerConfig{
		FailureThreshold: r.FailureThreshold,
		OpenTimeout:      time.Duration(r.OpenTimeout),
		HalfOpenRequests: r.HalfOpenRequests,
	}
}

// waitFlags holds the async-handling flags shared by every mutating command.
type waitFlags struct {
	wait     bool
	timeout  time.Duration
	interval time.Duration
}

// register adds --wait, --wait-timeout, and --wait-interval to cmd. Zero
// durations mean "platform default", filled in by PollConfig.Normalize.
func (f *waitFlags) register(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&f.wait, "wait", false, "block until the operation reaches a terminal state")
	cmd.Flags().DurationVar(&f.timeout, "wait-timeout", 0, "overall wait budget (default 300s cloud, 600s enterprise)")
	cmd.Flags().DurationVar(&f.interval, "wait-interval", 0, "poll interval (default 5s)")
}

func (f *waitFlags) config() types.PollConfig {
	return types.PollConfig{Interval: f.interval, Timeout: f.timeout}
}

// readBody resolves a --data flag value: inline JSON, @file, or "-" for
// stdin. The payload must be valid JSON but is otherwise passed through.
func readBody(data string) (json.RawMessage, error) {
	if data == "" {
		return nil, operation.ValidationError("--data is required")
	}
	var raw []byte
	switch {
	case data == "-":
		b, err := io.ReadAll(os.Stdin)
		if err != nil {
			return nil, operation.ValidationError("reading stdin: %v", err)
		}
		raw = b
	case strings.HasPrefix(data, "@"):
		b, err := os.ReadFile(data[1:])
		if err != nil {
			return nil, operation.ValidationError("reading %s: %v", data[1:], err)
		}
		raw = b
	default:
		raw = []byte(data)
	}
	if !json.Valid(raw) {
		return nil, operation.ValidationError("request body is not valid JSON")
	}
	return json.RawMessage(raw), nil
}

// handleResult finishes a mutating command: with --wait it polls to a
// terminal state and prints the final payload, without it it prints the
// handle so the caller can wait later.
func (a *app) handleResult(cmd *cobra.Command, h types.OperationHandle, fetcher operation.StatusFetcher, flags waitFlags) error {
	printer, err := a.printer(cmd.OutOrStdout())
	if err != nil {
		return err
	}
	if !flags.wait {
		return printer.PrintValue(map[string]any{
			"platform": h.Platform,
			"id":       h.ID,
		})
	}

	poller := operation.NewPoller(fetcher,
		operation.WithSink(terminalSink(cmd.ErrOrStderr())),
		operation.WithLogger(a.logger()),
	)
	outcome, err := poller.Wait(cmd.Context(), h, flags.config())
	if err != nil {
		return err
	}
	if len(outcome.Result) == 0 {
		return printer.PrintValue(map[string]any{
			"id":      h.ID,
			"state":   outcome.State,
			"elapsed": outcome.Elapsed.Truncate(time.Millisecond).String(),
		})
	}
	return printer.Print(outcome.Result)
}

func fmtHandle(h types.OperationHandle) string {
	return fmt.Sprintf("%s operation %s", h.Platform, h.ID)
}
