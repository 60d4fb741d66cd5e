package commands

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"

	"github.com/empack/empack/pkg/components"
	"github.com/empack/empack/pkg/scenario"
)

func newBuildCommand() *cobra.Command {
	var target string

	cmd := &cobra.Command{
		Use:   "build [blueprint...]",
		Short: "Build datapackages from scenario blueprints",
		Long: `Build datapackages from scenario blueprints.

Each blueprint is instantiated against the component definitions, run
through region fan-out and the inference passes, and rendered into a
fresh directory under the packages directory. Without arguments every
blueprint in the blueprints directory is built.`,
		Example: `  # Build every blueprint
  empack build

  # Build one blueprint by name
  empack build base_scenario

  # Build a blueprint file into an explicit directory
  empack build ./scenarios/2030.yaml --target ./out/2030`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if target != "" && len(args) != 1 {
				return fmt.Errorf("--target requires exactly one blueprint")
			}

			rt, err := newRuntime()
			if err != nil {
				return err
			}
			defer rt.shutdown(cmd.Context())

			paths, err := resolveBlueprints(rt, args)
			if err != nil {
				return err
			}
			if len(paths) == 0 {
				return fmt.Errorf("no blueprints found in %s", rt.settings.BlueprintsDir)
			}

			registry, err := components.NewRegistry(rt.settings.ComponentsDir, rt.log)
			if err != nil {
				return err
			}
			builder := scenario.NewBuilder(registry, rt.log, rt.metrics, rt.tracer)

			for _, path := range paths {
				bp, err := scenario.LoadBlueprint(path)
				if err != nil {
					return fmt.Errorf("blueprint %s: %w", path, err)
				}

				dir := target
				if dir == "" {
					dir = filepath.Join(rt.settings.PackagesDir, bp.Name)
				}
				if _, err := builder.Build(cmd.Context(), bp, dir); err != nil {
					return fmt.Errorf("building %s: %w", bp.Name, err)
				}
				fmt.Printf("built %s -> %s\n", bp.Name, dir)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&target, "target", "", "output directory (single blueprint only)")

	return cmd
}

// resolveBlueprints maps command arguments to blueprint files. An argument
// that is an existing file is used as-is; anything else is looked up by name
// in the blueprints directory. No arguments means every blueprint there.
func resolveBlueprints(rt *runtime, args []string) ([]string, error) {
	if len(args) == 0 {
		paths, err := filepath.Glob(filepath.Join(rt.settings.BlueprintsDir, "*.yaml"))
		if err != nil {
			return nil, err
		}
		sort.Strings(paths)
		return paths, nil
	}

	var paths []string
	for _, arg := range args {
		if _, err := os.Stat(arg); err == nil {
			paths = append(paths, arg)
			continue
		}
		named := filepath.Join(rt.settings.BlueprintsDir, arg+".yaml")
		if _, err := os.Stat(named); err != nil {
			return nil, fmt.Errorf("blueprint %q not found (tried %s)", arg, named)
		}
		paths = append(paths, named)
	}
	return paths, nil
}
