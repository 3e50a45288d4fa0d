package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Cosmicwanderer1/Lean4-RSR/internal/checker"
	"github.com/Cosmicwanderer1/Lean4-RSR/internal/config"
	"github.com/Cosmicwanderer1/Lean4-RSR/internal/monitor"
	"github.com/Cosmicwanderer1/Lean4-RSR/internal/scratch"
)

func newCheckEnvCmd(global *globalFlags) *cobra.Command {
	var checkerCommand string
	var checkerDir string
	var scratchDir string
	cmd := silenceUsageAndErrors(&cobra.Command{
		Use:   "check-env",
		Short: "Check that the proof checker environment is usable",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := config.Load(global.configPath)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("checker-command") {
				cfg.CheckerCommand = checkerCommand
			}
			if cmd.Flags().Changed("checker-dir") {
				cfg.CheckerDir = checkerDir
			}
			if cmd.Flags().Changed("scratch-dir") {
				cfg.ScratchDir = scratchDir
			}

			dir, err := scratch.Resolve(cfg.ScratchDir)
			if err != nil {
				return err
			}
			fmt.Printf("scratch directory: %s\n", dir)

			chk, err := checker.New(cfg.CheckerCommand, cfg.CheckerDir)
			if err != nil {
				return err
			}
			if version, err := chk.Version(ctx); err == nil {
				fmt.Printf("checker version: %s\n", version)
			} else {
				fmt.Printf("checker version: unavailable (%v)\n", err)
			}

			mon := monitor.New()
			if ok, msg := mon.CheckSystemLimits(dir, cfg.MaxTotalMemoryMB); !ok {
				fmt.Printf("system limits: %s\n", msg)
			} else {
				fmt.Println("system limits: ok")
			}

			warnings, err := chk.CheckEnv(ctx, dir)
			for _, w := range warnings {
				fmt.Printf("warning: %s\n", w)
			}
			if err != nil {
				return err
			}
			fmt.Println("environment ok")
			return nil
		},
	})
	defaults := config.Default()
	cmd.Flags().StringVar(&checkerCommand, "checker-command", defaults.CheckerCommand, "command used to check a proof file")
	cmd.Flags().StringVar(&checkerDir, "checker-dir", defaults.CheckerDir, "directory the checker runs in")
	cmd.Flags().StringVar(&scratchDir, "scratch-dir", defaults.ScratchDir, "scratch directory for proof files")
	return cmd
}
