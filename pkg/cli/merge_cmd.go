package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/gloodata/ext-go-demography/internal/pipeline"
)

// MergeSpec is the declarative form of a merge run, loadable from a YAML
// file as an alternative to flags. Flags override spec values.
type MergeSpec struct {
	Male      string `yaml:"male"`
	Female    string `yaml:"female"`
	Both      string `yaml:"both"`
	Fertility string `yaml:"fertility"`
	Output    string `yaml:"output"`
}

// LoadMergeSpec reads a MergeSpec from a YAML file.
func LoadMergeSpec(path string) (*MergeSpec, error) {
	data, err := os.ReadFile(path) //nolint:gosec // operator-supplied path
	if err != nil {
		return nil, fmt.Errorf("read spec %s: %w", path, err)
	}
	var spec MergeSpec
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return nil, fmt.Errorf("parse spec %s: %w", path, err)
	}
	return &spec, nil
}

func newMergeCmd(verbose *bool) *cobra.Command {
	var (
		specPath  string
		male      string
		female    string
		both      string
		fertility string
		output    string
		asJSON    bool
	)

	cmd := &cobra.Command{
		Use:   "merge",
		Short: "Merge the source CSVs into the columnar artifact",
		Long: `Normalize the male/female/both population CSVs (plus the optional
fertility-rate CSV) and write their union as a parquet artifact. The write
is atomic: a failed run leaves any previous artifact untouched.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts := pipeline.Options{
				MalePath:      male,
				FemalePath:    female,
				BothPath:      both,
				FertilityPath: fertility,
				OutputPath:    output,
			}
			if specPath != "" {
				spec, err := LoadMergeSpec(specPath)
				if err != nil {
					return err
				}
				applySpec(&opts, cmd, spec)
			}

			report, err := pipeline.Merge(cmd.Context(), opts, newLogger(*verbose))
			if err != nil {
				return err
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(report)
			}
			for _, src := range report.Sources {
				fmt.Fprintf(cmd.OutOrStdout(), "%-10s %8d rows  %d skipped\n", src.Name, src.Rows, src.Skipped)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %d rows to %s\n", report.TotalRows, report.OutputPath)
			return nil
		},
	}

	cmd.Flags().StringVar(&specPath, "spec", "", "YAML merge spec file (flags override its values)")
	cmd.Flags().StringVar(&male, "male", "", "male population CSV")
	cmd.Flags().StringVar(&female, "female", "", "female population CSV")
	cmd.Flags().StringVar(&both, "both", "", "both-sexes population CSV")
	cmd.Flags().StringVar(&fertility, "fertility", "", "fertility-rate CSV (optional)")
	cmd.Flags().StringVar(&output, "out", "./demography.parquet", "output artifact path")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the merge report as JSON")
	return cmd
}

// applySpec fills options from the spec file for every flag the user left unset.
func applySpec(opts *pipeline.Options, cmd *cobra.Command, spec *MergeSpec) {
	if !cmd.Flags().Changed("male") && spec.Male != "" {
		opts.MalePath = spec.Male
	}
	if !cmd.Flags().Changed("female") && spec.Female != "" {
		opts.FemalePath = spec.Female
	}
	if !cmd.Flags().Changed("both") && spec.Both != "" {
		opts.BothPath = spec.Both
	}
	if !cmd.Flags().Changed("fertility") && spec.Fertility != "" {
		opts.FertilityPath = spec.Fertility
	}
	if !cmd.Flags().Changed("out") && spec.Output != "" {
		opts.OutputPath = spec.Output
	}
}
