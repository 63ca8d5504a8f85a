package main

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/owera/internal/checkpoint"
)

// checkpointStatus is the JSON printed by status.
type checkpointStatus struct {
	RunID      string         `json:"run_id"`
	Name       string         `json:"name"`
	Cycle      int            `json:"cycle"`
	Complete   bool           `json:"complete"`
	OpenIssues int            `json:"open_issues"`
	Stages     map[string]int `json:"stages"`
}

func newStatusCmd(g *globalFlags) *cobra.Command {
	var runID string
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the latest checkpoint of a run, or list checkpointed runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, appOptions{configPath: g.configPath, offline: g.offline, sink: sinkStderr})
			if err != nil {
				return err
			}
			defer a.close(ctx)

			if !a.cfg.Checkpoint.Enabled {
				return errors.New("checkpoints are disabled; set checkpoint.enabled")
			}

			out := cmd.OutOrStdout()
			if runID == "" {
				ids, err := a.store.Runs(ctx)
				if err != nil {
					return err
				}
				for _, id := range ids {
					fmt.Fprintln(out, id)
				}
				return nil
			}

			cp, err := a.store.Latest(ctx, runID)
			if errors.Is(err, checkpoint.ErrNotFound) {
				return fmt.Errorf("run %s: no checkpoint", runID)
			}
			if err != nil {
				return err
			}

			snap := cp.Snapshot
			st := checkpointStatus{
				RunID:      cp.RunID,
				Name:       snap.Name,
				Cycle:      cp.Cycle,
				Complete:   snap.Complete,
				OpenIssues: snap.OpenIssues(),
				Stages:     make(map[string]int),
			}
			for _, f := range snap.Features {
				st.Stages[string(f.Stage())]++
			}
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(st)
		},
	}
	cmd.Flags().StringVar(&runID, "run", "", "run id")
	return cmd
}
