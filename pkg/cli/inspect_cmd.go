package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/gloodata/ext-go-demography/internal/engine"
)

func newInspectCmd() *cobra.Command {
	var artifact string

	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Print row counts of the merged artifact",
		RunE: func(cmd *cobra.Command, _ []string) error {
			eng, err := engine.Open(artifact, newLogger(false))
			if err != nil {
				return err
			}
			defer eng.Close() //nolint:errcheck

			rows, err := eng.Query(cmd.Context(),
				`SELECT metric, sex, COUNT(*) AS row_count, COUNT(value) AS non_null
				 FROM demography GROUP BY metric, sex ORDER BY metric, sex`)
			if err != nil {
				return err
			}
			defer rows.Close() //nolint:errcheck

			result, err := engine.ScanAll(rows)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, strings.Join(result.Columns, "\t"))
			var total int64
			for _, row := range result.Rows {
				parts := make([]string, len(row))
				for i, v := range row {
					parts[i] = fmt.Sprintf("%v", v)
				}
				fmt.Fprintln(out, strings.Join(parts, "\t"))
				if n, ok := row[2].(int64); ok {
					total += n
				}
			}
			fmt.Fprintf(out, "total\t%d rows\n", total)
			return nil
		},
	}

	cmd.Flags().StringVar(&artifact, "artifact", "./demography.parquet", "artifact path")
	return cmd
}
