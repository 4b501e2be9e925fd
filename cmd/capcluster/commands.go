package main

import (
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/hyperjump/capcluster/internal/cli"
	"github.com/hyperjump/capcluster/internal/ingest"
	"github.com/hyperjump/capcluster/internal/models"
	"github.com/hyperjump/capcluster/internal/session"
	"github.com/hyperjump/capcluster/pkg/utils"
)

func newInitCmd(g *globalFlags) *cobra.Command {
	var (
		k          int
		capacities string
		reset      bool
	)
	cmd := &cobra.Command{
		Use:   "init <family> <batch-file>",
		Short: "Cold-start a session from a batch file",
		Long: `Cold-start a session from a YAML or JSON batch file.

Flags override k, capacities and reset from the file.

Example batch file:
  k: 2
  capacities: [3, 3]
  items:
    - id: img-1
      values: [0.1, 0.2]
    - id: img-2
      descriptors: [[0.1, 0.2], [0.3, 0.4]]`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := g.format()
			if err != nil {
				return err
			}
			b, err := ingest.LoadFile(args[1])
			if err != nil {
				return err
			}
			req := b.InitializeRequest()
			if cmd.Flags().Changed("k") {
				req.K = k
			}
			if cmd.Flags().Changed("capacities") {
				caps, err := utils.ParseCapacities(capacities)
				if err != nil {
					return err
				}
				req.Capacities = caps
			}
			if cmd.Flags().Changed("reset") {
				req.Reset = reset
			}

			var resp models.InitializeResponse
			if err := newClient(g.server).do(cmd.Context(), http.MethodPost, sessionPath(args[0], "/initialize"), req, &resp); err != nil {
				return err
			}
			return cli.WriteAssignments(cmd.OutOrStdout(), cli.FromInitialize(&resp), format)
		},
	}
	cmd.Flags().IntVar(&k, "k", 0, "number of clusters")
	cmd.Flags().StringVar(&capacities, "capacities", "", "comma-separated cluster capacities, e.g. 3,3,4")
	cmd.Flags().BoolVar(&reset, "reset", false, "discard an active session first")
	return cmd
}

func newAddCmd(g *globalFlags) *cobra.Command {
	var refit bool
	cmd := &cobra.Command{
		Use:   "add <family> <batch-file>",
		Short: "Add the items of a batch file to an active session",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := g.format()
			if err != nil {
				return err
			}
			b, err := ingest.LoadFile(args[1])
			if err != nil {
				return err
			}
			req := b.AddItemsRequest()
			if cmd.Flags().Changed("refit") {
				req.Refit = refit
			}

			var resp models.AddItemsResponse
			if err := newClient(g.server).do(cmd.Context(), http.MethodPost, sessionPath(args[0], "/items"), req, &resp); err != nil {
				return err
			}
			return cli.WriteAssignments(cmd.OutOrStdout(), cli.FromAddItems(&resp), format)
		},
	}
	cmd.Flags().BoolVar(&refit, "refit", false, "re-cluster the whole session after adding")
	return cmd
}

func newCapacitiesCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "capacities <family> <list>",
		Short: "Replace the cluster capacities of an active session",
		Example: `  capcluster capacities hu 3,3,4
  capcluster capacities hu "5, 5"`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := g.format()
			if err != nil {
				return err
			}
			caps, err := utils.ParseCapacities(args[1])
			if err != nil {
				return err
			}
			var resp models.UpdateCapacitiesResponse
			req := models.UpdateCapacitiesRequest{Capacities: caps}
			if err := newClient(g.server).do(cmd.Context(), http.MethodPut, sessionPath(args[0], "/capacities"), req, &resp); err != nil {
				return err
			}
			return cli.WriteCapacities(cmd.OutOrStdout(), &resp, format)
		},
	}
}

func newStatusCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "status [family]",
		Short: "Show one session, or list all sessions",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := g.format()
			if err != nil {
				return err
			}
			c := newClient(g.server)
			if len(args) == 0 {
				var out struct {
					Sessions []session.Summary `json:"sessions"`
				}
				if err := c.do(cmd.Context(), http.MethodGet, "/api/v1/sessions", nil, &out); err != nil {
					return err
				}
				return cli.WriteSessions(cmd.OutOrStdout(), out.Sessions, format)
			}
			var st models.Status
			if err := c.do(cmd.Context(), http.MethodGet, sessionPath(args[0], "/status"), nil, &st); err != nil {
				return err
			}
			return cli.WriteStatus(cmd.OutOrStdout(), &st, format)
		},
	}
}

func newResetCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "reset <family>",
		Short: "Discard a session's model and items",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := newClient(g.server).do(cmd.Context(), http.MethodDelete, sessionPath(args[0], ""), nil, nil); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Session %s reset\n", args[0])
			return nil
		},
	}
}
