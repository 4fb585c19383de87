package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jwiersma/interflow/config"
	"github.com/jwiersma/interflow/pkg/export"
)

var exportPath string

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the interconnector utilization duration curves",
	RunE:  exportCurves,
}

func init() {
	exportCmd.Flags().StringVarP(&exportPath, "output", "o", "duration_curves.csv", "output file (.csv or .json)")
	rootCmd.AddCommand(exportCmd)
}

func exportCurves(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// read-only snapshot: never scrub remote state on export
	market, err := buildMarket(ctx, cfg, false)
	if err != nil {
		return err
	}

	file, err := os.Create(exportPath)
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	defer file.Close()

	curves := market.UtilizationDurationCurves()
	switch strings.ToLower(filepath.Ext(exportPath)) {
	case ".json":
		err = export.WriteJSON(file, curves)
	default:
		err = export.WriteCSV(file, curves)
	}
	if err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	return nil
}
