package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nvandessel/nestsim/internal/config"
	"github.com/nvandessel/nestsim/internal/mcp"
)

func newMCPServerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mcp-server",
		Short: "Run as an MCP server over stdio",
		Long: `Serve nestsim simulations to AI agents over the Model Context Protocol.

Tools:
  nestsim_cohesion             one cohesion sweep point
  nestsim_quorum               one quorum sweep point
  nestsim_speed_accuracy_cell  one cell of a speed-accuracy grid
  nestsim_runs                 list or show recorded runs

Tool calls are appended to ~/.nestsim/audit.jsonl.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			maxTrials, _ := cmd.Flags().GetInt("max-trials")

			server, err := mcp.NewServer(&mcp.Config{
				Name:       "nestsim",
				Version:    version,
				Simulation: a.cfg.Simulation,
				StorePath:  a.cfg.Store.Path,
				Record:     a.cfg.Store.Record,
				AuditDir:   config.HomeDir(),
				MaxTrials:  maxTrials,
				Logger:     a.logger,
			})
			if err != nil {
				return fmt.Errorf("failed to create MCP server: %w", err)
			}

			a.logger.Info("mcp server starting", "version", version, "store", a.cfg.Store.Path)
			return server.Run(cmd.Context())
		},
	}
	cmd.Flags().Int("max-trials", mcp.DefaultMaxTrials, "Largest trial count a single tool call may request")
	return cmd
}
