package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"geoetl/internal/registry"
	"geoetl/internal/rule"
)

func (a *app) actionsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "actions [name...]",
		Short: "List the registered actions and their parameters",
		RunE: func(cmd *cobra.Command, args []string) error {
			names := args
			if len(names) == 0 {
				names = a.reg.Names()
			}
			tw := tabwriter.NewWriter(a.stdout, 0, 4, 2, ' ', 0)
			defer tw.Flush()
			for i, name := range names {
				act, err := a.reg.Lookup(name)
				if err != nil {
					return err
				}
				if i > 0 {
					fmt.Fprintln(tw)
				}
				writeAction(tw, act)
			}
			return nil
		},
	}
}

func writeAction(tw *tabwriter.Writer, act registry.Action) {
	fmt.Fprintf(tw, "%s\t%s\t%s\n", act.Name, act.Shape, act.Summary)
	fields := rule.Fields(act.NewParams())
	if len(fields) == 0 {
		fmt.Fprintf(tw, "  (no parameters)\t\t\n")
		return
	}
	for _, f := range fields {
		req := "required"
		if f.Optional {
			req = "optional"
		}
		fmt.Fprintf(tw, "  %s\t%s\t%s\n", f.Name, f.Type, req)
	}
}
