package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/empack/empack/pkg/override"
)

func newApplyCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "apply",
		Short: "Merge override data into a rendered datapackage",
		Long: `Merge external override data into a datapackage already on disk.

Override files are ';'-delimited tables. Rows carrying a scenario column
are filtered against the requested scenario keys ("ALL" matches every
key); files without one apply unconditionally. Matching rows update
existing resource rows in place, no rows are ever inserted.`,
	}

	cmd.AddCommand(newApplyElementsCommand())
	cmd.AddCommand(newApplySequenceCommand())

	return cmd
}

func newApplyElementsCommand() *cobra.Command {
	var scenarios []string

	cmd := &cobra.Command{
		Use:   "elements <package-dir> <data-file>",
		Short: "Merge element override data into every element resource",
		Long: `Merge element override data into every element resource of a package.

The format is detected automatically: data carrying var_name/var_value
columns is treated as LONG and pivoted to one row per entity, anything
else as WIDE. Matching is by the "name" column.`,
		Example: `  # Apply a wide override for two scenario keys
  empack apply elements ./datapackages/base ./raw/costs.csv -s 2030 -s 2040`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newRuntime()
			if err != nil {
				return err
			}
			defer rt.shutdown(cmd.Context())

			engine := override.NewEngine(rt.log, rt.metrics, rt.tracer)
			if err := engine.ApplyElements(cmd.Context(), args[0], resolveData(rt, args[1]), scenarios, override.Options{}); err != nil {
				return err
			}
			fmt.Printf("applied %s to %s\n", args[1], args[0])
			return nil
		},
	}

	cmd.Flags().StringSliceVarP(&scenarios, "scenario", "s", nil, "scenario keys to apply")

	return cmd
}

func newApplySequenceCommand() *cobra.Command {
	var (
		scenarios []string
		resource  string
		rowwise   bool
	)

	cmd := &cobra.Command{
		Use:   "sequence <package-dir> <data-file>",
		Short: "Merge sequence override data into one sequence resource",
		Long: `Merge sequence override data into the named sequence resource.

By default rows match on the "timeindex" column. With --rowwise the data
holds one row per variable name with a list-valued series column, applied
positionally by index order.`,
		Example: `  # Wide merge matched on timeindex
  empack apply sequence ./datapackages/base ./raw/profiles.csv -r demand_profile

  # Rowwise merge of list-valued series
  empack apply sequence ./datapackages/base ./raw/series.csv -r demand_profile --rowwise`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newRuntime()
			if err != nil {
				return err
			}
			defer rt.shutdown(cmd.Context())

			engine := override.NewEngine(rt.log, rt.metrics, rt.tracer)
			data := resolveData(rt, args[1])
			if rowwise {
				err = engine.ApplySequenceRowwise(cmd.Context(), args[0], data, resource, scenarios, override.Options{})
			} else {
				err = engine.ApplySequence(cmd.Context(), args[0], data, resource, scenarios, override.Options{})
			}
			if err != nil {
				return err
			}
			fmt.Printf("applied %s to %s/%s\n", args[1], args[0], resource)
			return nil
		},
	}

	cmd.Flags().StringSliceVarP(&scenarios, "scenario", "s", nil, "scenario keys to apply")
	cmd.Flags().StringVarP(&resource, "resource", "r", "", "sequence resource name")
	cmd.Flags().BoolVar(&rowwise, "rowwise", false, "treat data as rowwise series")
	cmd.MarkFlagRequired("resource")

	return cmd
}

// resolveData resolves a data-file argument against the raw directory when
// it does not name an existing file.
func resolveData(rt *runtime, arg string) string {
	if _, err := os.Stat(arg); err == nil {
		return arg
	}
	return filepath.Join(rt.settings.RawDir, arg)
}
