package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"geoetl/internal/config"
	"geoetl/internal/engine"
)

func (a *app) validateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Parse, validate, cross-check and plan a pipeline without running it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := a.loadPipeline()
			if err != nil {
				return err
			}
			seeds, err := a.seedAliases(p)
			if err != nil {
				return err
			}
			if err := engine.New(a.reg).Plan(p, seeds); err != nil {
				printErrors(a.stdout, err)
				return fmt.Errorf("pipeline %q does not resolve", p.Name)
			}
			fmt.Fprintf(a.stdout, "%s: ok (%d rules, inputs %v)\n", p.Name, len(p.Rules), p.Inputs)
			return nil
		},
	}
	cmd.Flags().StringP("config", "c", "", "pipeline YAML file (required)")
	cmd.Flags().StringArray("input", nil, "seed binding alias=path|url; only the aliases matter here (repeatable)")
	return cmd
}

// loadPipeline runs the three loading stages on --config, printing every
// issue found. Warnings are printed on success too.
func (a *app) loadPipeline() (*config.Pipeline, error) {
	path := a.v.GetString("config")
	if path == "" {
		return nil, errors.New("--config is required")
	}
	p, err := config.LoadAndValidate(path, a.reg)
	if err != nil {
		var sve *config.SchemaValidationError
		if errors.As(err, &sve) {
			for _, iss := range sve.Issues {
				fmt.Fprintln(a.stdout, iss.Error())
			}
			return nil, fmt.Errorf("%s: %d validation error(s)", path, len(config.Errors(sve.Issues)))
		}
		return nil, err
	}
	for _, w := range p.Warnings {
		fmt.Fprintln(a.stdout, w.Error())
	}
	a.logger.Debug("config: loaded", "path", path, "pipeline", p.Name, "rules", len(p.Rules))
	return p, nil
}

// seedAliases returns the aliases bound by --input, or the pipeline's
// declared inputs when none are given.
func (a *app) seedAliases(p *config.Pipeline) ([]string, error) {
	bindings, err := a.bindings(p, nil)
	if err != nil {
		return nil, err
	}
	if len(bindings) == 0 {
		return p.Inputs, nil
	}
	out := make([]string, len(bindings))
	for i, b := range bindings {
		out[i] = b.Alias
	}
	return out, nil
}

// printErrors writes err to w, one line per joined error.
func printErrors(w io.Writer, err error) {
	if j, ok := err.(interface{ Unwrap() []error }); ok {
		for _, e := range j.Unwrap() {
			fmt.Fprintf(w, "error: %v\n", e)
		}
		return
	}
	fmt.Fprintf(w, "error: %v\n", err)
}
