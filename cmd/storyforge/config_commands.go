package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"storyforge/internal/config"
)

func newConfigCommand(ctx *commandContext) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage storyforge configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	var initPath string
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write a commented sample config",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := config.CreateSample(initPath)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote sample config to %s\n", path)
			return nil
		},
	}
	initCmd.Flags().StringVarP(&initPath, "output", "o", "", "Destination path (default ~/.config/storyforge/config.toml)")

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Show the resolved configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd.OutOrStdout(), cfg)
			}
			writeKeyValues(cmd.OutOrStdout(), [][]string{
				{"Data dir", cfg.Paths.DataDir},
				{"Log dir", cfg.Paths.LogDir},
				{"Database", cfg.DatabasePath()},
				{"Max concurrent", fmt.Sprintf("%d", cfg.Pipeline.MaxConcurrentTasks)},
				{"Retry limit", fmt.Sprintf("%d", cfg.Pipeline.RetryLimit)},
				{"Default story type", cfg.Pipeline.DefaultStoryType},
				{"Text model", cfg.TextGen.Model},
				{"Image generation", fmt.Sprintf("%t", cfg.ImageGen.Enabled)},
				{"Decision engine", fmt.Sprintf("%t", cfg.Decision.Enabled)},
			})
			return nil
		},
	}

	configCmd.AddCommand(initCmd)
	configCmd.AddCommand(showCmd)
	return configCmd
}
