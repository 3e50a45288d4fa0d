// Package cli wires the verification pipeline to its command line surface.
package cli

import (
	"context"
	"strings"

	"github.com/spf13/cobra"
)

// globalFlags are shared by every subcommand.
type globalFlags struct {
	configPath string
	logLevel   string
	logFile    string
}

// Execute runs the CLI. Cancelling ctx stops new work; in-flight checker
// processes finish on their own timeouts.
func Execute(ctx context.Context) error {
	var flags globalFlags
	root := silenceUsageAndErrors(&cobra.Command{
		Use:   "leanverify",
		Short: "Verify Lean 4 proof candidates and build a gold dataset.",
	})
	root.PersistentFlags().StringVar(&flags.configPath, "config", "", "path to YAML config file")
	root.PersistentFlags().StringVar(&flags.logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&flags.logFile, "log-file", "", "also write JSON logs to this file")

	root.AddCommand(newVerifyCmd(&flags))
	root.AddCommand(newValidateCmd(&flags))
	root.AddCommand(newCheckEnvCmd(&flags))
	root.AddCommand(newCacheCmd(&flags))
	executed, err := root.ExecuteContextC(ctx)
	if err != nil {
		maybePrintUsage(executed, root, err)
	}
	return err
}

func silenceUsageAndErrors(cmd *cobra.Command) *cobra.Command {
	silenceErrors(cmd)
	cmd.SilenceUsage = true
	return cmd
}

func silenceErrors(cmd *cobra.Command) *cobra.Command {
	cmd.SilenceErrors = true
	return cmd
}

func maybePrintUsage(cmd, root *cobra.Command, err error) {
	if err == nil {
		return
	}
	target := cmd
	if target == nil {
		target = root
	}
	if target == nil {
		return
	}
	if shouldShowUsage(err) {
		_ = target.Usage()
	}
}

func shouldShowUsage(err error) bool {
	msg := strings.ToLower(err.Error())
	if strings.HasPrefix(msg, "unknown command") {
		return true
	}
	if strings.HasPrefix(msg, "unknown flag") || strings.HasPrefix(msg, "unknown shorthand flag") {
		return true
	}
	if strings.Contains(msg, "accepts") && strings.Contains(msg, "arg") {
		return true
	}
	if strings.Contains(msg, "requires at least") && strings.Contains(msg, "arg") {
		return true
	}
	if strings.Contains(msg, "requires at most") && strings.Contains(msg, "arg") {
		return true
	}
	if strings.Contains(msg, "required flag") {
		return true
	}
	if strings.Contains(msg, "flag needs an argument") {
		return true
	}
	if strings.HasPrefix(msg, "invalid argument") {
		return true
	}
	return false
}
