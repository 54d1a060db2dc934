package main

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"geoetl/internal/config"
	"geoetl/internal/ctxlog"
	"geoetl/internal/dataset"
	"geoetl/internal/engine"
	"geoetl/internal/storage"
)

func (a *app) runCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run [location]",
		Short: "Load the seed datasets, run the pipeline and write every final dataset",
		Long: `Load the seed datasets, run the pipeline and write every final dataset.

Seeds are bound with --input alias=path|url (repeatable), with an
--inputs-file of alias=location lines, or, for a pipeline with a single
input, with one positional location. Each final alias is written to the
sink as a table (SQL sinks) or a file (csv, geojson) named after the alias.

--option passes key=value settings:
  comma=;              csv delimiter ("\t" for tab)
  rename.<old>=<new>   rename a csv header while loading
  table_prefix=p_      prefix for destination table and file names
  batch_size=1000      rows per sink batch
  create_table=false   skip CREATE TABLE IF NOT EXISTS on SQL sinks`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd.Context(), args)
		},
	}
	f := cmd.Flags()
	f.StringP("config", "c", "", "pipeline YAML file (required)")
	f.StringArray("input", nil, "seed binding alias=path|url (repeatable)")
	f.String("inputs-file", "", "file of alias=location lines; # starts a comment")
	f.String("format", "", "input format: csv, geojson or json (default: from the name or content)")
	f.String("encoding", "auto", "input character set, e.g. utf-8, big5, cp950; auto sniffs")
	f.String("crs", "", "CRS assigned to geospatial inputs, e.g. EPSG:3826")
	f.String("geometry-column", "", "WKT column of csv inputs / geometry column name of geojson inputs")
	f.StringArray("option", nil, "key=value loader or sink option (repeatable)")
	f.String("sink", "none", "output backend: "+strings.Join(append([]string{"none"}, storage.ListKinds()...), ", "))
	f.String("dsn", "", "sink connection string; the output directory for csv and geojson")
	f.String("download-dir", "", "keep downloaded URL inputs in this directory")
	f.Int("http-retries", 3, "retries for transient HTTP failures")
	f.Bool("insecure", false, "skip TLS certificate verification for URL inputs")
	f.Int("parallel", 4, "inputs loaded and outputs written concurrently")
	return cmd
}

func (a *app) run(ctx context.Context, args []string) error {
	start := time.Now()

	opt, err := config.ParseOptions(a.v.GetStringSlice("option"))
	if err != nil {
		return err
	}
	sink := strings.ToLower(a.v.GetString("sink"))
	if sink != "none" && !slices.Contains(storage.ListKinds(), sink) {
		return fmt.Errorf("unknown sink %q (registered: %s)", sink, strings.Join(storage.ListKinds(), ", "))
	}

	p, err := a.loadPipeline()
	if err != nil {
		return err
	}
	bindings, err := a.bindings(p, args)
	if err != nil {
		return err
	}
	aliases := make([]string, len(bindings))
	for i, b := range bindings {
		aliases[i] = b.Alias
	}

	job := a.v.GetString("metrics-job")
	eng := engine.New(a.reg,
		engine.WithLogger(a.logger),
		engine.WithTracer(a.tracer),
		engine.WithJob(job),
	)
	if err := eng.Plan(p, aliases); err != nil {
		printErrors(a.stdout, err)
		return fmt.Errorf("pipeline %q does not resolve", p.Name)
	}

	seeds, err := a.loadSeeds(ctx, job, bindings, a.parserOptions(opt))
	if err != nil {
		return err
	}
	res, err := eng.Run(ctx, p, seeds)
	if err != nil {
		return err
	}
	if sink != "none" {
		if err := a.writeOutputs(ctx, sink, job, res, opt); err != nil {
			return err
		}
	}
	a.printSummary(res, sink)
	a.logger.Info("run: completed", "pipeline", p.Name, "run_id", res.RunID, "elapsed", time.Since(start).Truncate(time.Millisecond))
	return nil
}

// writeOutputs stores every final dataset. SQLite allows one writer at a
// time, so its tables are written one after another.
func (a *app) writeOutputs(ctx context.Context, sink, job string, res *engine.Result, opt config.Options) error {
	g, gctx := errgroup.WithContext(ctx)
	if sink == "sqlite" {
		g.SetLimit(1)
	} else {
		g.SetLimit(max(1, a.v.GetInt("parallel")))
	}
	prefix := opt.String("table_prefix", "")
	for _, alias := range res.Order {
		d := res.Outputs[alias]
		table := prefix + alias
		g.Go(func() error {
			if err := a.writeOne(ctxlog.With(gctx, "alias", alias), sink, table, job, d, opt); err != nil {
				return fmt.Errorf("output %s: %w", alias, err)
			}
			return nil
		})
	}
	return g.Wait()
}

func (a *app) writeOne(ctx context.Context, sink, table, job string, d *dataset.Dataset, opt config.Options) error {
	repo, err := storage.New(ctx, storage.Config{
		Kind:    sink,
		DSN:     a.v.GetString("dsn"),
		Table:   table,
		Columns: storage.Columns(d),
	})
	if err != nil {
		return err
	}
	defer repo.Close()

	if opt.Bool("create_table", true) {
		if err := storage.EnsureTable(ctx, sink, repo, table, d); err != nil {
			return err
		}
	}
	n, err := storage.Write(ctx, repo, d, storage.WriteOptions{Job: job, BatchSize: opt.Int("batch_size", 0)})
	if err != nil {
		return err
	}
	ctxlog.FromContext(ctx).Info("sink: wrote", "sink", sink, "table", table, "rows", n)
	return nil
}

func (a *app) printSummary(res *engine.Result, sink string) {
	tw := tabwriter.NewWriter(a.stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tTASK\tACTION\tROWS IN\tROWS OUT\tTIME")
	for _, s := range res.Steps {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\n", s.Index, s.TaskName, s.Action,
			joinInts(s.RowsIn), joinInts(s.RowsOut), s.Duration.Truncate(time.Microsecond))
	}
	fmt.Fprintln(tw)
	fmt.Fprintln(tw, "OUTPUT\tROWS\tCOLUMNS\tCRS\tSINK")
	for _, alias := range res.Order {
		d := res.Outputs[alias]
		crs := d.CRS
		if crs == "" {
			crs = "-"
		}
		fmt.Fprintf(tw, "%s\t%d\t%d\t%s\t%s\n", alias, d.Len(), len(d.Columns), crs, sink)
	}
	tw.Flush()
}

func joinInts(ns []int) string {
	parts := make([]string, len(ns))
	for i, n := range ns {
		parts[i] = fmt.Sprint(n)
	}
	return strings.Join(parts, ",")
}
