package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/AngelCh415/adforecast/internal/config"
	"github.com/AngelCh415/adforecast/internal/ingest"
	"github.com/AngelCh415/adforecast/internal/models"
)

type options struct {
	csv    string
	output string
	cfg    config.Config
}

// NewRootCmd builds the adforecast command tree. Defaults for --csv and the
// forecast flags come from adforecast.yaml and ADFORECAST_* variables.
func NewRootCmd() *cobra.Command {
	cfg, cfgErr := config.Load()
	o := &options{cfg: cfg}

	root := &cobra.Command{
		Use:           "adforecast",
		Short:         "Ad campaign analysis and conversion forecasting",
		Long:          `Explore daily campaign metrics, compare forecasting models and spread weekly conversion predictions over days.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return cfgErr
		},
	}
	root.PersistentFlags().StringVar(&o.csv, "csv", o.cfg.DatasetPath, "Daily campaign CSV export")
	root.PersistentFlags().StringVarP(&o.output, "output", "o", "table", "Output format: table, json or yaml")

	root.AddCommand(
		newDescribeCmd(o),
		newCorrelateCmd(o),
		newCompareCmd(o),
		newForecastCmd(o),
		newRedistributeCmd(o),
	)
	return root
}

func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func (o *options) records() ([]models.DailyRecord, error) {
	if o.csv == "" {
		return nil, fmt.Errorf("--csv is required")
	}
	recs, err := ingest.LoadCSVFile(o.csv)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, fmt.Errorf("%s has no rows", o.csv)
	}
	return recs, nil
}

// render writes v as json or yaml, or calls table for the default format.
func (o *options) render(w io.Writer, v any, table func(io.Writer)) error {
	switch strings.ToLower(o.output) {
	case "", "table":
		table(w)
		return nil
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(v)
	default:
		return fmt.Errorf("unknown output format %q", o.output)
	}
}
