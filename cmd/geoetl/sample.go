package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"geoetl/internal/config"
	"geoetl/internal/dataset"
	"geoetl/internal/datasource"
	"geoetl/internal/datasource/file"
	"geoetl/internal/datasource/httpds"
	"geoetl/internal/ddl"
	"geoetl/internal/parser"
	"geoetl/internal/rule"
)

// sampleReport is what inspect learned from the sample.
type sampleReport struct {
	Location string
	Format   string
	Encoding string
	Sampled  int
	// Truncated is set when the sample did not reach the end of the input.
	Truncated bool
	Dataset   *dataset.Dataset
	// ParseErr is why the sample could not be parsed, if it could not.
	ParseErr error
}

func (a *app) sampleCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sample location",
		Short: "Sample the start of an input and report its format, encoding and columns",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opt, err := config.ParseOptions(a.v.GetStringSlice("option"))
			if err != nil {
				return err
			}
			rep, err := a.inspect(cmd.Context(), args[0], a.v.GetInt("bytes"), a.parserOptions(opt))
			if err != nil {
				return err
			}
			writeSample(a.stdout, rep)
			return nil
		},
	}
	f := cmd.Flags()
	f.Int("bytes", 64<<10, "bytes to sample from the start of the input")
	f.String("format", "", "input format: csv, geojson or json (default: from the name or content)")
	f.String("encoding", "auto", "input character set; auto sniffs")
	f.String("crs", "", "CRS assigned to geospatial inputs")
	f.String("geometry-column", "", "WKT column of csv inputs / geometry column name of geojson inputs")
	f.StringArray("option", nil, "key=value loader option, as for run (repeatable)")
	f.Int("http-retries", 3, "retries for transient HTTP failures")
	f.Bool("insecure", false, "skip TLS certificate verification")
	return cmd
}

// inspect reads at most n bytes of location and parses what it can. CSV
// samples are cut back to the last complete line; a truncated JSON sample
// usually cannot be parsed, which is reported rather than failing.
func (a *app) inspect(ctx context.Context, location string, n int, po parser.Options) (*sampleReport, error) {
	if n <= 0 {
		return nil, fmt.Errorf("--bytes must be positive")
	}
	sample, err := a.head(ctx, location, n)
	if err != nil {
		return nil, err
	}
	rep := &sampleReport{Location: location, Sampled: len(sample), Truncated: len(sample) >= n}

	rep.Format = po.Format
	if rep.Format == "" {
		if f, err := parser.FormatFor(location); err == nil {
			rep.Format = f
		} else {
			rep.Format = parser.SniffFormat(sample)
		}
	}
	po.Format = rep.Format

	_, enc, err := parser.Decode(bytes.NewReader(sample), po.Encoding)
	if err != nil {
		return nil, err
	}
	rep.Encoding = enc

	if rep.Format == parser.FormatCSV && rep.Truncated {
		if i := bytes.LastIndexByte(sample, '\n'); i >= 0 {
			sample = sample[:i+1]
		}
	}
	rep.Dataset, rep.ParseErr = parser.Load(ctx, location, bytes.NewReader(sample), po)
	return rep, nil
}

func (a *app) head(ctx context.Context, location string, n int) ([]byte, error) {
	if datasource.IsURL(location) {
		return httpds.NewURL(a.httpClient(), location, "").Head(ctx, n)
	}
	rc, err := file.NewLocal(location).Open(ctx)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	b, err := io.ReadAll(io.LimitReader(rc, int64(n)))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", location, err)
	}
	return b, nil
}

func writeSample(w io.Writer, rep *sampleReport) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	defer tw.Flush()

	sampled := fmt.Sprintf("%d bytes", rep.Sampled)
	if rep.Truncated {
		sampled += " (truncated)"
	}
	fmt.Fprintf(tw, "location:\t%s\n", rep.Location)
	fmt.Fprintf(tw, "format:\t%s\n", rep.Format)
	fmt.Fprintf(tw, "encoding:\t%s\n", rep.Encoding)
	fmt.Fprintf(tw, "sampled:\t%s\n", sampled)
	if rep.ParseErr != nil {
		fmt.Fprintf(tw, "columns:\tunavailable: %v\n", rep.ParseErr)
		return
	}

	d := rep.Dataset
	fmt.Fprintf(tw, "rows:\t%d\n", d.Len())
	if d.IsGeo() {
		crs := d.CRS
		if crs == "" {
			crs = "unknown (set --crs)"
		}
		fmt.Fprintf(tw, "geometry:\t%s\n", d.GeometryColumn)
		fmt.Fprintf(tw, "crs:\t%s\n", crs)
	}
	fmt.Fprintln(tw)
	fmt.Fprintln(tw, "COLUMN\tKIND")
	for i, k := range ddl.InferKinds(d) {
		fmt.Fprintf(tw, "%s\t%s\n", d.Columns[i], k)
	}
	fmt.Fprintln(tw)
	fmt.Fprintf(tw, "bind with:\t--input %s=%s\n", rule.DefaultAlias, rep.Location)
}
