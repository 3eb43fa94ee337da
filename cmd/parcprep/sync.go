package main

import (
	"context"
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/xelth-com/parcprepgo/internal/config"
	"github.com/xelth-com/parcprepgo/internal/services/odoo"
	"github.com/xelth-com/parcprepgo/internal/sync"
)

func newSyncCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync [file-id]",
		Short: "Push one file, or every dirty file, to Odoo",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkFormat(); err != nil {
				return err
			}
			s, err := openSession()
			if err != nil {
				return err
			}
			defer s.close()

			syncCfg, err := config.LoadSyncConfig()
			if err != nil {
				return err
			}
			sink, err := odoo.NewSink(s.cfg.Odoo)
			if err != nil {
				return err
			}
			engine := sync.NewSyncEngine(s.store, sink, syncCfg, s.cfg.AppID)

			ctx := context.Background()
			var outcomes []sync.FileOutcome
			if len(args) == 1 {
				outcomes = []sync.FileOutcome{engine.SyncFile(ctx, args[0])}
			} else {
				outcomes = engine.SyncDirty(ctx).Outcomes
			}

			if format == "json" {
				if err := outputJSON(cmd, outcomes); err != nil {
					return err
				}
			} else {
				renderOutcomes(cmd, outcomes)
			}

			if failed := countFailed(outcomes); failed > 0 {
				return fmt.Errorf("%d file(s) not synced", failed)
			}
			return nil
		},
	}

	cmd.AddCommand(newSyncHistoryCmd())
	return cmd
}

func newSyncHistoryCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent sync passes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := checkFormat(); err != nil {
				return err
			}
			s, err := openSession()
			if err != nil {
				return err
			}
			defer s.close()

			history, err := s.store.RecentSyncHistory(context.Background(), limit)
			if err != nil {
				return err
			}
			if format == "json" {
				return outputJSON(cmd, history)
			}

			t := table.NewWriter()
			t.SetOutputMirror(cmd.OutOrStdout())
			t.SetStyle(table.StyleLight)
			t.AppendHeader(table.Row{"Started", "Provider", "Status", "Attempted", "Synced", "Superseded", "Errors", "ms"})
			for _, h := range history {
				t.AppendRow(table.Row{
					h.StartedAt.Local().Format("2006-01-02 15:04:05"),
					h.Provider, h.Status, h.Attempted, h.Synced, h.Superseded, h.Errors, h.Duration,
				})
			}
			t.Render()
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "Number of passes to show")
	return cmd
}

func renderOutcomes(cmd *cobra.Command, outcomes []sync.FileOutcome) {
	t := table.NewWriter()
	t.SetOutputMirror(cmd.OutOrStdout())
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"File", "Outcome", "Logs", "Revision", "Divergences", "Error"})
	for _, out := range outcomes {
		t.AppendRow(table.Row{out.ParcPrepID, out.Outcome, out.Logs, out.Revision, len(out.Divergences), out.Error})
	}
	t.Render()
}

func countFailed(outcomes []sync.FileOutcome) int {
	n := 0
	for _, out := range outcomes {
		if out.Err != nil {
			n++
		}
	}
	return n
}
