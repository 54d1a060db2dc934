package file

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"geoetl/internal/dataset"
	"geoetl/internal/storage"
	"geoetl/pkg/records"
)

func villages() *dataset.Dataset {
	d := dataset.New([]string{"village", "pop", "updated", "geometry"}, []records.Record{
		{"village": "大安里", "pop": int64(1200), "updated": time.Date(2020, 3, 1, 0, 0, 0, 0, time.UTC), "geometry": orb.Point{121.5, 25}},
		{"village": "信義, 東", "pop": nil, "updated": nil, "geometry": nil},
	})
	d.GeometryColumn, d.CRS, d.IndexName = "geometry", "EPSG:4326", "fid"
	return d
}

func TestPath(t *testing.T) {
	t.Parallel()

	cases := []struct {
		dir, table, want string
		wantErr          bool
	}{
		{dir: "out", table: "final", want: filepath.Join("out", "final.csv")},
		{dir: "", table: "public.final", want: "final.csv"},
		{dir: "out", table: " ", wantErr: true},
		{dir: "out", table: "../x", wantErr: true},
	}
	for _, tc := range cases {
		got, err := Path(tc.dir, tc.table, ".csv")
		if tc.wantErr {
			if err == nil {
				t.Errorf("Path(%q, %q) = %q, want error", tc.dir, tc.table, got)
			}
			continue
		}
		if err != nil || got != tc.want {
			t.Errorf("Path(%q, %q) = %q, %v; want %q", tc.dir, tc.table, got, err, tc.want)
		}
	}
}

/*
The csv sink is reached through the storage factory and the batched writer;
geometry is written as WKT, nulls as empty cells, dates without a clock.
*/
func TestCSV_WriteThroughFactory(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	dir := t.TempDir()
	d := villages()

	repo, err := storage.New(ctx, storage.Config{Kind: "csv", DSN: dir, Table: "final", Columns: storage.Columns(d)})
	if err != nil {
		t.Fatalf("storage.New: %v", err)
	}
	n, err := storage.Write(ctx, repo, d, storage.WriteOptions{BatchSize: 1})
	repo.Close()
	if err != nil || n != 2 {
		t.Fatalf("Write = %d, %v", n, err)
	}

	raw, err := os.ReadFile(filepath.Join(dir, "final.csv"))
	if err != nil {
		t.Fatal(err)
	}
	want := "fid,village,pop,updated,geometry\n" +
		"0,大安里,1200,2020-03-01,POINT(121.5 25)\n" +
		"1,\"信義, 東\",,,\n"
	if diff := cmp.Diff(want, string(raw)); diff != "" {
		t.Errorf("csv mismatch (-want +got):\n%s", diff)
	}
}

func TestCSV_ColumnMismatch(t *testing.T) {
	t.Parallel()
	c, err := NewCSV(t.TempDir(), "t")
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	ctx := context.Background()
	if _, err := c.CopyFrom(ctx, []string{"a", "b"}, [][]any{{"1", "2"}}); err != nil {
		t.Fatalf("first batch: %v", err)
	}
	if _, err := c.CopyFrom(ctx, []string{"a"}, [][]any{{"1"}}); err == nil {
		t.Fatal("expected error for changed column count")
	}
	if _, err := c.CopyFrom(ctx, []string{"a", "b"}, [][]any{{"1"}}); err == nil {
		t.Fatal("expected error for short row")
	}
}

/*
The geojson sink takes the whole dataset: labels become feature ids and an
index property, the CRS is advertised as a named crs member.
*/
func TestGeoJSON_WriteDataset(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	dir := t.TempDir()
	d := villages()

	repo, err := storage.New(ctx, storage.Config{Kind: "geojson", DSN: dir, Table: "final"})
	if err != nil {
		t.Fatalf("storage.New: %v", err)
	}
	n, err := storage.Write(ctx, repo, d, storage.WriteOptions{})
	repo.Close()
	if err != nil || n != 2 {
		t.Fatalf("Write = %d, %v", n, err)
	}

	raw, err := os.ReadFile(filepath.Join(dir, "final.geojson"))
	if err != nil {
		t.Fatal(err)
	}
	fc, err := geojson.UnmarshalFeatureCollection(raw)
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(fc.Features) != 2 {
		t.Fatalf("features = %d", len(fc.Features))
	}
	if got, ok := fc.Features[0].Geometry.(orb.Point); !ok || !got.Equal(orb.Point{121.5, 25}) {
		t.Errorf("geometry = %#v", fc.Features[0].Geometry)
	}
	props := fc.Features[1].Properties
	if props["village"] != "信義, 東" || props["fid"] != float64(1) || props["pop"] != nil {
		t.Errorf("properties = %v", props)
	}
	if _, ok := props["geometry"]; ok {
		t.Error("geometry column leaked into properties")
	}
	if !strings.Contains(string(raw), `"urn:ogc:def:crs:EPSG::4326"`) {
		t.Errorf("crs member missing from %s", raw)
	}

	if _, err := repo.CopyFrom(ctx, []string{"a"}, nil); err == nil {
		t.Error("CopyFrom should be rejected")
	}
}

func TestCRSURN(t *testing.T) {
	t.Parallel()
	if got := crsURN("epsg:3826"); got != "urn:ogc:def:crs:EPSG::3826" {
		t.Errorf("crsURN = %q", got)
	}
	if got := crsURN("CRS84"); got != "urn:ogc:def:crs:EPSG::4326" {
		t.Errorf("crsURN(CRS84) = %q", got)
	}
}
