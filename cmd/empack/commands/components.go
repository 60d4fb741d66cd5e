package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/empack/empack/pkg/components"
)

func newComponentsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "components",
		Short: "Inspect component-type definitions",
	}

	cmd.AddCommand(newComponentsListCommand())
	cmd.AddCommand(newComponentsShowCommand())

	return cmd
}

func newComponentsListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the available component types",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newRuntime()
			if err != nil {
				return err
			}
			defer rt.shutdown(cmd.Context())

			registry, err := components.NewRegistry(rt.settings.ComponentsDir, rt.log)
			if err != nil {
				return err
			}
			names, err := registry.List()
			if err != nil {
				return err
			}
			for _, name := range names {
				fmt.Println(name)
			}
			return nil
		},
	}
}

func newComponentsShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show <name>",
		Short: "Show the attributes of a component type",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newRuntime()
			if err != nil {
				return err
			}
			defer rt.shutdown(cmd.Context())

			registry, err := components.NewRegistry(rt.settings.ComponentsDir, rt.log)
			if err != nil {
				return err
			}
			component, err := registry.Load(args[0])
			if err != nil {
				return err
			}

			fmt.Printf("component: %s\n", component.Name())
			for _, attr := range component.AttributeNames() {
				a, _ := component.Attribute(attr)
				line := fmt.Sprintf("  %s: %s", attr, a.Type)
				if a.Unit != "" {
					line += " [" + a.Unit + "]"
				}
				if a.Description != "" {
					line += " - " + a.Description
				}
				fmt.Println(line)
			}
			if busses := component.Busses(); len(busses) > 0 {
				fmt.Printf("busses: %s\n", strings.Join(busses, ", "))
			}
			if seqs := component.Sequences(); len(seqs) > 0 {
				fmt.Printf("sequences: %s\n", strings.Join(seqs, ", "))
			}
			return nil
		},
	}
}
