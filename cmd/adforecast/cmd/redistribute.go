package cmd

import (
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/AngelCh415/adforecast/internal/forecast"
	"github.com/AngelCh415/adforecast/internal/redistribute"
)

func newRedistributeCmd(o *options) *cobra.Command {
	var (
		clicks              string
		kind                string
		intercept, slope    float64
		missing, zeroBucket string
	)
	cmd := &cobra.Command{
		Use:   "redistribute",
		Short: "Spread a weekly conversion model over daily clicks",
		Long: `Groups the daily clicks into 7-day weeks, predicts each week's conversions
with the given model and splits the prediction across the week's days in
proportion to their clicks. Leave a value empty to mark the day missing.`,
		Example: `  adforecast redistribute --clicks 10,10,10,10,10,10,10 --slope 0.2
  adforecast redistribute --clicks 3,,5 --kind poisson --intercept 0.1 --slope 0.05`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			daily, err := parseClicks(clicks)
			if err != nil {
				return err
			}
			var m redistribute.Model
			switch kind {
			case "linear":
				m = &forecast.Linear{Intercept: intercept, Slope: slope}
			case "poisson":
				m = &forecast.Poisson{Intercept: intercept, Slope: slope}
			default:
				return fmt.Errorf("--kind must be linear or poisson, got %q", kind)
			}
			var opts redistribute.Options
			if opts.Missing, err = redistribute.ParseMissingPolicy(missing); err != nil {
				return err
			}
			if opts.ZeroBucket, err = redistribute.ParseZeroBucketPolicy(zeroBucket); err != nil {
				return err
			}
			out, err := redistribute.Redistribute(m, daily, opts)
			if err != nil {
				return err
			}
			return o.render(cmd.OutOrStdout(), out, func(w io.Writer) {
				tw := tabwriter.NewWriter(w, 0, 0, 3, ' ', 0)
				fmt.Fprintln(tw, "DAY\tCLICKS\tCONVERSIONS")
				for i, v := range out {
					c := "-"
					if !math.IsNaN(daily[i]) {
						c = strconv.FormatFloat(daily[i], 'g', -1, 64)
					}
					fmt.Fprintf(tw, "%d\t%s\t%.4f\n", i, c, v)
				}
				tw.Flush()
			})
		},
	}
	cmd.Flags().StringVar(&clicks, "clicks", "", "Comma separated daily clicks")
	cmd.Flags().StringVar(&kind, "kind", "linear", "Weekly model: linear or poisson")
	cmd.Flags().Float64Var(&intercept, "intercept", 0, "Model intercept")
	cmd.Flags().Float64Var(&slope, "slope", 0, "Model slope on weekly clicks")
	cmd.Flags().StringVar(&missing, "missing", o.cfg.Forecast.MissingPolicy, "Missing clicks policy: zero or reject")
	cmd.Flags().StringVar(&zeroBucket, "zero-bucket", o.cfg.Forecast.ZeroBucketPolicy, "Zero-click week policy: zero, even or reject")
	cmd.MarkFlagRequired("clicks")
	return cmd
}

// parseClicks reads "1,2,,4"; empty entries and "na" are missing days.
func parseClicks(s string) ([]float64, error) {
	parts := strings.Split(s, ",")
	out := make([]float64, len(parts))
	for i, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" || strings.EqualFold(p, "na") {
			out[i] = math.NaN()
			continue
		}
		v, err := strconv.ParseFloat(p, 64)
		if err != nil {
			return nil, fmt.Errorf("bad clicks value %q at day %d", p, i)
		}
		out[i] = v
	}
	return out, nil
}
