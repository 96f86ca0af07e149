package cmd

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/AngelCh415/adforecast/internal/config"
	"github.com/AngelCh415/adforecast/internal/forecast"
	"github.com/AngelCh415/adforecast/internal/redistribute"
)

// forecastFlags binds the forecast settings shared by compare and forecast.
type forecastFlags struct {
	horizon, testDays, maxWindow int
	missing, zeroBucket          string
}

func (f *forecastFlags) bind(cmd *cobra.Command, def config.Forecast) {
	cmd.Flags().IntVar(&f.testDays, "test-days", def.TestDays, "Days held out for scoring")
	cmd.Flags().IntVar(&f.maxWindow, "max-window", def.MaxSMAWindow, "Largest moving-average window tried")
	cmd.Flags().StringVar(&f.missing, "missing", def.MissingPolicy, "Missing clicks policy: zero or reject")
	cmd.Flags().StringVar(&f.zeroBucket, "zero-bucket", def.ZeroBucketPolicy, "Zero-click week policy: zero, even or reject")
}

func (f *forecastFlags) config() (forecast.Config, error) {
	cfg := forecast.Config{Horizon: f.horizon, TestDays: f.testDays, MaxSMAWindow: f.maxWindow}
	var err error
	if cfg.Options.Missing, err = redistribute.ParseMissingPolicy(f.missing); err != nil {
		return cfg, err
	}
	if cfg.Options.ZeroBucket, err = redistribute.ParseZeroBucketPolicy(f.zeroBucket); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func newCompareCmd(o *options) *cobra.Command {
	var ff forecastFlags
	cmd := &cobra.Command{
		Use:   "compare",
		Short: "Score the conversion models on the last test-days of data",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			recs, err := o.records()
			if err != nil {
				return err
			}
			cfg, err := ff.config()
			if err != nil {
				return err
			}
			cmp, err := forecast.Compare(cmd.Context(), recs, cfg)
			if err != nil {
				return err
			}
			return o.render(cmd.OutOrStdout(), cmp, func(out io.Writer) {
				fmt.Fprintf(out, "train %d days, test %d days\n", cmp.TrainDays, cmp.TestDays)
				w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
				fmt.Fprintln(w, "MODEL\tRMSE\tMAE\tDETAIL")
				for _, s := range cmp.Scores {
					if s.Err != "" {
						fmt.Fprintf(w, "%s\t-\t-\t%s\n", s.Name, s.Err)
						continue
					}
					fmt.Fprintf(w, "%s\t%.3f\t%.3f\t%s\n", s.Name, s.RMSE, s.MAE, s.Detail)
				}
				w.Flush()
			})
		},
	}
	ff.bind(cmd, o.cfg.Forecast)
	return cmd
}

func newForecastCmd(o *options) *cobra.Command {
	var ff forecastFlags
	cmd := &cobra.Command{
		Use:   "forecast",
		Short: "Forecast daily clicks and conversions past the last day of data",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			recs, err := o.records()
			if err != nil {
				return err
			}
			cfg, err := ff.config()
			if err != nil {
				return err
			}
			f, err := forecast.Forecast(cmd.Context(), recs, cfg)
			if err != nil {
				return err
			}
			return o.render(cmd.OutOrStdout(), f, func(out io.Writer) {
				fmt.Fprintf(out, "clicks: %s\nconversions: %s\n", f.ClicksModel, f.ConvModel)
				w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
				fmt.Fprintln(w, "DATE\tCLICKS\tCONVERSIONS")
				for _, p := range f.Points {
					fmt.Fprintf(w, "%s\t%.1f\t%.2f\n", p.Date, p.Clicks, p.Conversions)
				}
				w.Flush()
			})
		},
	}
	cmd.Flags().IntVar(&ff.horizon, "horizon", o.cfg.Forecast.HorizonDays, "Days to forecast")
	ff.bind(cmd, o.cfg.Forecast)
	return cmd
}
