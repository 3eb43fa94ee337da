package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log"

	"github.com/spf13/cobra"
	"github.com/xelth-com/parcprepgo/internal/config"
	"github.com/xelth-com/parcprepgo/internal/database"
	"github.com/xelth-com/parcprepgo/internal/store"
)

var (
	verbose bool
	format  string
)

var rootCmd = &cobra.Command{
	Use:           "parcprep",
	Short:         "parcprep - inspect and push parc-prep files from the command line",
	Long:          "parcprep reads the on-device parc-prep database, records scans and pushes dirty files to Odoo.",
	SilenceUsage:  true,
	SilenceErrors: false,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if !verbose {
			log.SetOutput(io.Discard)
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Show progress logs")
	rootCmd.PersistentFlags().StringVar(&format, "format", "table", "Output format: table or json")

	rootCmd.AddCommand(newFilesCmd())
	rootCmd.AddCommand(newLogsCmd())
	rootCmd.AddCommand(newSyncCmd())
}

// session is one opened storage handle; close releases it
type session struct {
	cfg   *config.Config
	db    *database.DB
	store *store.Store
}

func openSession() (*session, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	db, err := database.Connect(cfg.Database)
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &session{cfg: cfg, db: db, store: store.New(db.DB)}, nil
}

func (s *session) close() {
	_ = s.db.Close()
}

func outputJSON(cmd *cobra.Command, v interface{}) error {
	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

func checkFormat() error {
	switch format {
	case "table", "json":
		return nil
	}
	return fmt.Errorf("invalid format: %s (valid values: table, json)", format)
}
