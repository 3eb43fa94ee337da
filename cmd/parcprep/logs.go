package main

import (
	"context"
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/xelth-com/parcprepgo/internal/models"
	"github.com/xelth-com/parcprepgo/internal/store"
)

func newLogsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Read and record scanned items",
	}
	cmd.AddCommand(newLogsListCmd())
	cmd.AddCommand(newLogsAddCmd())
	return cmd
}

func newLogsListCmd() *cobra.Command {
	var raw bool

	cmd := &cobra.Command{
		Use:   "list <file-id>",
		Short: "List the logs of a file, oldest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkFormat(); err != nil {
				return err
			}
			s, err := openSession()
			if err != nil {
				return err
			}
			defer s.close()

			ctx := context.Background()
			f, err := s.store.GetFile(ctx, args[0])
			if err != nil {
				return err
			}

			projection := store.ProjectionFull
			if raw {
				projection = store.ProjectionBarcode
			}
			result, err := s.store.ListLogsForFile(ctx, f.ID, projection)
			if err != nil {
				return err
			}

			if format == "json" {
				return outputJSON(cmd, result)
			}

			t := table.NewWriter()
			t.SetOutputMirror(cmd.OutOrStdout())
			t.SetStyle(table.StyleLight)
			switch logs := result.(type) {
			case []models.LogSummary:
				t.AppendHeader(table.Row{"ID", "Barcode", "Troncon"})
				for _, l := range logs {
					t.AppendRow(table.Row{l.ID, l.BarCode, l.SectionNumber})
				}
			case []models.Log:
				t.AppendHeader(table.Row{"ID", "Barcode", "Troncon", "Site", "Created"})
				for _, l := range logs {
					t.AppendRow(table.Row{l.ID, l.BarCode, l.SectionNumber, models.ResolveSite(l, *f), l.CreationDate.Local().Format("2006-01-02 15:04:05")})
				}
			}
			t.Render()
			return nil
		},
	}

	cmd.Flags().BoolVar(&raw, "raw", false, "Barcode projection only")
	return cmd
}

func newLogsAddCmd() *cobra.Command {
	var l models.Log

	cmd := &cobra.Command{
		Use:   "add [file-id]",
		Short: "Record a scan; without a file id the default file is used",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession()
			if err != nil {
				return err
			}
			defer s.close()

			if len(args) == 1 {
				l.ParcPrepID = args[0]
			}
			created, err := s.store.InsertLog(context.Background(), &l)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Recorded %s in %s\n", created.ID, created.ParcPrepID)
			return nil
		},
	}

	cmd.Flags().StringVar(&l.ID, "id", "", "Log id (generated when empty)")
	cmd.Flags().StringVar(&l.BarCode, "barcode", "", "Scanned barcode")
	cmd.Flags().StringVar(&l.SectionNumber, "section", "", "Troncon label")
	cmd.Flags().StringVar(&l.Site, "site", "", "Location when it differs from the file")
	_ = cmd.MarkFlagRequired("barcode")
	_ = cmd.MarkFlagRequired("section")
	return cmd
}
