package commands

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/dwsmith1983/redisctl/internal/config"
	"github.com/dwsmith1983/redisctl/internal/operation"
	"github.com/dwsmith1983/redisctl/pkg/types"
)

func newProfileCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Manage named credential profiles",
	}
	cmd.AddCommand(
		newProfileListCmd(a),
		newProfileGetCmd(a),
		newProfileSetCmd(a),
		newProfileDefaultCmd(a),
		newProfileRemoveCmd(a),
	)
	return cmd
}

func loadConfigFile() (string, *config.File, error) {
	path, err := config.Path()
	if err != nil {
		return "", nil, operation.ConfigError("%v", err)
	}
	file, err := config.Load(path)
	if err != nil {
		return "", nil, operation.ConfigError("%v", err)
	}
	return path, file, nil
}

func newProfileListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List configured profiles",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, file, err := loadConfigFile()
			if err != nil {
				return err
			}
			if len(file.Profiles) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No profiles configured.")
				return nil
			}
			bold := color.New(color.Bold)
			for _, name := range file.ProfileNames() {
				p := file.Profiles[name]
				marker := " "
				if name == file.DefaultProfile {
					marker = color.GreenString("*")
				}
				_, _ = bold.Fprintf(cmd.OutOrStdout(), "%s %-20s", marker, name)
				fmt.Fprintf(cmd.OutOrStdout(), " %s\n", describeProfile(p))
			}
			return nil
		},
	}
}

func describeProfile(p *config.Profile) string {
	if p.Deployment == types.PlatformEnterprise {
		return fmt.Sprintf("enterprise %s", p.URL)
	}
	return "cloud"
}

func newProfileGetCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "get <name>",
		Short: "Show one profile with secrets redacted",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, file, err := loadConfigFile()
			if err != nil {
				return err
			}
			p, ok := file.Profiles[args[0]]
			if !ok {
				return operation.ConfigError("profile %q not found", args[0])
			}
			printer, err := a.printer(cmd.OutOrStdout())
			if err != nil {
				return err
			}
			return printer.PrintValue(map[string]any{
				"name":       args[0],
				"deployment": p.Deployment,
				"url":        p.URL,
				"api_url":    p.APIURL,
				"username":   p.Username,
				"insecure":   p.Insecure,
				"api_key":    redact(p.APIKey),
				"api_secret": redact(p.APISecret),
				"password":   redact(p.Password),
			})
		},
	}
}

// redact hides literal secrets but shows reference forms, which are safe and
// useful to see.
func redact(v string) string {
	if v == "" {
		return ""
	}
	if len(v) > 8 && (v[:8] == "keyring:" || v[0] == '$') {
		return v
	}
	return "********"
}

func newProfileSetCmd(a *app) *cobra.Command {
	var (
		deployment string
		apiKey     string
		apiSecret  string
		apiURL     string
		url        string
		username   string
		password   string
		insecure   bool
		useKeyring bool
	)
	cmd := &cobra.Command{
		Use:   "set <name>",
		Short: "Create or update a profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			platform := types.Platform(deployment)
			if !platform.Valid() {
				return operation.ValidationError("--deployment must be cloud or enterprise")
			}

			path, file, err := loadConfigFile()
			if err != nil {
				return err
			}
			p := file.Profiles[name]
			if p == nil {
				p = &config.Profile{}
				file.Profiles[name] = p
			}
			p.Deployment = platform

			if useKeyring {
				if apiSecret != "" {
					if apiSecret, err = config.StoreSecret(name+"-api-secret", apiSecret); err != nil {
						return operation.ConfigError("%v", err)
					}
				}
				if password != "" {
					if password, err = config.StoreSecret(name+"-password", password); err != nil {
						return operation.ConfigError("%v", err)
					}
				}
			}

			setIf(&p.APIKey, apiKey)
			setIf(&p.APISecret, apiSecret)
			setIf(&p.APIURL, apiURL)
			setIf(&p.URL, url)
			setIf(&p.Username, username)
			setIf(&p.Password, password)
			if cmd.Flags().Changed("insecure") {
				p.Insecure = insecure
			}

			if file.DefaultProfile == "" {
				file.DefaultProfile = name
			}
			if err := file.Save(path); err != nil {
				return operation.ConfigError("%v", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Profile %q saved.\n", name)
			return nil
		},
	}
	cmd.Flags().StringVar(&deployment, "deployment", "", "cloud or enterprise")
	cmd.Flags().StringVar(&apiKey, "api-key", "", "cloud account key")
	cmd.Flags().StringVar(&apiSecret, "api-secret", "", "cloud secret key")
	cmd.Flags().StringVar(&apiURL, "api-url", "", "cloud API base URL override")
	cmd.Flags().StringVar(&url, "url", "", "enterprise cluster URL")
	cmd.Flags().StringVar(&username, "username", "", "enterprise username")
	cmd.Flags().StringVar(&password, "password", "", "enterprise password")
	cmd.Flags().BoolVar(&insecure, "insecure", false, "skip TLS verification (enterprise)")
	cmd.Flags().BoolVar(&useKeyring, "use-keyring", false, "store secrets in the OS credential store")
	_ = cmd.MarkFlagRequired("deployment")
	return cmd
}

func setIf(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func newProfileDefaultCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "default <name>",
		Short: "Set the default profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, file, err := loadConfigFile()
			if err != nil {
				return err
			}
			if _, ok := file.Profiles[args[0]]; !ok {
				return operation.ConfigError("profile %q not found", args[0])
			}
			file.DefaultProfile = args[0]
			if err := file.Save(path); err != nil {
				return operation.ConfigError("%v", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Default profile is now %q.\n", args[0])
			return nil
		},
	}
}

func newProfileRemoveCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <name>",
		Short: "Remove a profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, file, err := loadConfigFile()
			if err != nil {
				return err
			}
			if _, ok := file.Profiles[args[0]]; !ok {
				return operation.ConfigError("profile %q not found", args[0])
			}
			delete(file.Profiles, args[0])
			if file.DefaultProfile == args[0] {
				file.DefaultProfile = ""
			}
			if err := file.Save(path); err != nil {
				return operation.ConfigError("%v", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Profile %q removed.\n", args[0])
			return nil
		},
	}
}
