package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/xelth-com/parcprepgo/internal/models"
	"github.com/xelth-com/parcprepgo/internal/services/printer"
	"github.com/xelth-com/parcprepgo/internal/store"
	"github.com/xelth-com/parcprepgo/internal/sync"
)

func newFilesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "files",
		Short: "Manage parc-prep files",
	}
	cmd.AddCommand(newFilesListCmd())
	cmd.AddCommand(newFilesAddCmd())
	cmd.AddCommand(newFilesDefaultCmd())
	cmd.AddCommand(newFilesLabelCmd())
	return cmd
}

func newFilesListCmd() *cobra.Command {
	var (
		onlyDirty bool
		fileType  string
		aac       string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List files with their stats, newest first",
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

			files, err := s.store.ListFiles(context.Background(), store.FileFilter{
				Type:      models.ParcPrepType(fileType),
				OnlyDirty: onlyDirty,
				AACPrefix: aac,
			})
			if err != nil {
				return err
			}

			if format == "json" {
				return outputJSON(cmd, files)
			}

			t := table.NewWriter()
			t.SetOutputMirror(cmd.OutOrStdout())
			t.SetStyle(table.StyleLight)
			t.AppendHeader(table.Row{"ID", "AAC", "Type", "Site", "Created", "Logs", "Last log", "State", ""})
			for _, f := range files {
				lastLog := ""
				if f.Stats.LastLogDate != nil {
					lastLog = f.Stats.LastLogDate.Local().Format("2006-01-02 15:04")
				}
				def := ""
				if f.IsDefault {
					def = "default"
				}
				t.AppendRow(table.Row{
					f.ID, f.AAC, f.Type, f.Site,
					f.CreationDate.Local().Format("2006-01-02 15:04"),
					f.Stats.LogsNumber, lastLog, sync.StateOf(f, false), def,
				})
			}
			t.AppendFooter(table.Row{"", "", "", "", "Total", len(files)})
			t.Render()
			return nil
		},
	}

	cmd.Flags().BoolVar(&onlyDirty, "dirty", false, "Only files waiting for a push")
	cmd.Flags().StringVar(&fileType, "type", "", "Filter by type")
	cmd.Flags().StringVar(&aac, "aac", "", "Filter by AAC prefix")
	return cmd
}

func newFilesAddCmd() *cobra.Command {
	var f models.ParcPrepFile
	var fileType string

	cmd := &cobra.Command{
		Use:   "add <id>",
		Short: "Create a parc-prep file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession()
			if err != nil {
				return err
			}
			defer s.close()

			f.ID = args[0]
			f.Type = models.ParcPrepType(fileType)
			f.CreationDate = time.Now().UTC()
			created, err := s.store.InsertFile(context.Background(), &f)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created %s (%s)\n", created.ID, created.AAC)
			return nil
		},
	}

	cmd.Flags().StringVar(&f.AAC, "aac", "", "Batch classification code NN-NN-NN")
	cmd.Flags().StringVar(&fileType, "type", string(models.ParcPrepTypeInventory), "Attribution code a barre or Inventaire")
	cmd.Flags().StringVar(&f.Site, "site", "", "Physical location")
	cmd.Flags().BoolVar(&f.IsDefault, "default", false, "Make it the quick-entry target")
	_ = cmd.MarkFlagRequired("aac")
	return cmd
}

func newFilesDefaultCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "default <id>",
		Short: "Make a file the quick-entry target",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession()
			if err != nil {
				return err
			}
			defer s.close()

			f, err := s.store.SetDefaultFile(context.Background(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Default file is now %s\n", f.ID)
			return nil
		},
	}
}

func newFilesLabelCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "label <id>...",
		Short: "Print QR labels for files into a PDF",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession()
			if err != nil {
				return err
			}
			defer s.close()

			files := make([]models.ParcPrepFile, 0, len(args))
			for _, id := range args {
				f, err := s.store.GetFile(context.Background(), id)
				if err != nil {
					return err
				}
				files = append(files, *f)
			}

			pdf, err := printer.GenerateFileLabelsPDF(files, printer.DefaultLabelConfig())
			if err != nil {
				return err
			}
			if err := os.WriteFile(output, pdf, 0o644); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d label(s) to %s\n", len(files), output)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "labels.pdf", "PDF file to write")
	return cmd
}
