package main

import (
	"bufio"
	"context"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"geoetl/internal/config"
	"geoetl/internal/ctxlog"
	"geoetl/internal/dataset"
	"geoetl/internal/datasource"
	"geoetl/internal/datasource/file"
	"geoetl/internal/datasource/httpds"
	"geoetl/internal/metrics"
	"geoetl/internal/parser"
)

// sniffBytes is how much of an input is peeked at when its name does not
// tell the format.
const sniffBytes = 4096

// bindings collects the seed bindings from --inputs-file, --input and the
// positional locations, in that order. A bare location binds to the
// pipeline's only input alias.
func (a *app) bindings(p *config.Pipeline, args []string) ([]file.Binding, error) {
	var out []file.Binding
	if path := a.v.GetString("inputs-file"); path != "" {
		bs, err := file.ReadBindings(path)
		if err != nil {
			return nil, err
		}
		out = append(out, bs...)
	}
	for _, s := range a.v.GetStringSlice("input") {
		b, err := file.ParseBinding(s)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	for _, loc := range args {
		if len(p.Inputs) != 1 {
			return nil, fmt.Errorf("location %q: pipeline %q has inputs %v; bind them with --input alias=location", loc, p.Name, p.Inputs)
		}
		out = append(out, file.Binding{Alias: p.Inputs[0], Location: loc})
	}

	seen := make(map[string]bool, len(out))
	for _, b := range out {
		if seen[b.Alias] {
			return nil, fmt.Errorf("input alias %q is bound more than once", b.Alias)
		}
		seen[b.Alias] = true
	}
	return out, nil
}

// parserOptions builds the loader settings from the flags and --option.
// Option keys: comma (csv delimiter) and rename.<header>=<column>.
func (a *app) parserOptions(opt config.Options) parser.Options {
	po := parser.Options{
		Format:         strings.ToLower(a.v.GetString("format")),
		Encoding:       a.v.GetString("encoding"),
		CRS:            a.v.GetString("crs"),
		GeometryColumn: a.v.GetString("geometry-column"),
		Comma:          opt.Rune("comma", 0),
	}
	for k, v := range opt {
		if from, ok := strings.CutPrefix(k, "rename."); ok && from != "" {
			if po.HeaderMap == nil {
				po.HeaderMap = map[string]string{}
			}
			po.HeaderMap[from] = v
		}
	}
	return po
}

func (a *app) httpClient() *httpds.Client {
	return httpds.NewClient(httpds.Config{
		MaxRetries:         a.v.GetInt("http-retries"),
		InsecureSkipVerify: a.v.GetBool("insecure"),
		UserAgent:          "geoetl",
	})
}

// loadSeeds opens and parses every binding concurrently. The first failure
// cancels the remaining loads.
func (a *app) loadSeeds(ctx context.Context, job string, bindings []file.Binding, po parser.Options) (map[string]*dataset.Dataset, error) {
	client := a.httpClient()
	downloadDir := a.v.GetString("download-dir")

	results := make([]*dataset.Dataset, len(bindings))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, a.v.GetInt("parallel")))
	for i, b := range bindings {
		src := datasource.Resolve(b.Location, client, downloadDir)
		g.Go(func() error {
			d, err := loadSource(ctxlog.With(gctx, "alias", b.Alias), src, po)
			if err != nil {
				return fmt.Errorf("input %s: %w", b.Alias, err)
			}
			metrics.RecordRows(job, "loaded", int64(d.Len()))
			results[i] = d
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	seeds := make(map[string]*dataset.Dataset, len(bindings))
	for i, b := range bindings {
		seeds[b.Alias] = results[i]
	}
	return seeds, nil
}

// loadSource parses one input. When neither the options nor the name give
// the format, the first bytes are sniffed.
func loadSource(ctx context.Context, src datasource.Source, po parser.Options) (*dataset.Dataset, error) {
	rc, err := src.Open(ctx)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	if po.Format != "" {
		return parser.Load(ctx, src.Name(), rc, po)
	}
	if _, err := parser.FormatFor(src.Name()); err == nil {
		return parser.Load(ctx, src.Name(), rc, po)
	}
	br := bufio.NewReaderSize(rc, sniffBytes)
	head, _ := br.Peek(sniffBytes)
	po.Format = parser.SniffFormat(head)
	ctxlog.FromContext(ctx).Debug("input: sniffed format", "name", src.Name(), "format", po.Format)
	return parser.Load(ctx, src.Name(), br, po)
}
