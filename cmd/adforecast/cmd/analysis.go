package cmd

import (
	"fmt"
	"io"
	"math"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/AngelCh415/adforecast/internal/analysis"
)

func newDescribeCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "describe",
		Short: "Summary statistics for every daily metric",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			recs, err := o.records()
			if err != nil {
				return err
			}
			sum := analysis.Describe(recs)
			return o.render(cmd.OutOrStdout(), sum, func(out io.Writer) {
				w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
				fmt.Fprintln(w, "FIELD\tCOUNT\tMEAN\tSTD\tMIN\tMEDIAN\tMAX")
				for _, s := range sum {
					fmt.Fprintf(w, "%s\t%d\t%.2f\t%.2f\t%.2f\t%.2f\t%.2f\n", s.Field, s.Count, s.Mean, s.Std, s.Min, s.Median, s.Max)
				}
				w.Flush()
			})
		},
	}
}

func newCorrelateCmd(o *options) *cobra.Command {
	var (
		fields  []string
		reorder bool
	)
	cmd := &cobra.Command{
		Use:   "correlate",
		Short: "Pearson correlation matrix of daily metrics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			recs, err := o.records()
			if err != nil {
				return err
			}
			m, err := analysis.Correlate(recs, fields)
			if err != nil {
				return err
			}
			if reorder {
				m = m.Reorder()
			}
			return o.render(cmd.OutOrStdout(), m, func(out io.Writer) {
				w := tabwriter.NewWriter(out, 0, 0, 2, ' ', tabwriter.AlignRight)
				fmt.Fprintf(w, "\t%s\t\n", strings.Join(m.Fields, "\t"))
				for i, f := range m.Fields {
					cells := make([]string, len(m.Values[i]))
					for j, v := range m.Values[i] {
						cells[j] = "-"
						if !math.IsNaN(v) {
							cells[j] = fmt.Sprintf("%.3f", v)
						}
					}
					fmt.Fprintf(w, "%s\t%s\t\n", f, strings.Join(cells, "\t"))
				}
				w.Flush()
			})
		},
	}
	cmd.Flags().StringSliceVar(&fields, "fields", nil, "Metrics to correlate (default all)")
	cmd.Flags().BoolVar(&reorder, "reorder", true, "Group correlated metrics together")
	return cmd
}
