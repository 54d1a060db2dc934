package csv_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/paulmach/orb"

	"geoetl/internal/dataset"
	pcsv "geoetl/internal/parser/csv"
)

/*
A BOM-prefixed header is mapped through HeaderMap, values are trimmed, empty
cells become null and a ragged row is skipped and counted.
*/
func TestParse_HeaderMapAndSkips(t *testing.T) {
	t.Parallel()

	const in = "\uFEFFVILLNAME,TOWNNAME,Pop Count\n" +
		" 大安里 ,大安區,120\n" +
		"信義里,,95\n" +
		"broken,row\n" +
		"中正里,中正區,\n"

	p := pcsv.NewParser(pcsv.Options{
		HasHeader:        true,
		TrimSpace:        true,
		NormalizeHeaders: true,
		InferTypes:       true,
		HeaderMap:        map[string]string{"VILLNAME": "village", "TOWNNAME": "town"},
	})
	d, skipped, err := p.Parse(context.Background(), strings.NewReader(in))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if skipped != 1 {
		t.Errorf("skipped = %d, want 1", skipped)
	}
	if diff := cmp.Diff([]string{"village", "town", "pop_count"}, d.Columns); diff != "" {
		t.Errorf("columns (-want +got):\n%s", diff)
	}
	if d.Len() != 3 {
		t.Fatalf("rows = %d, want 3", d.Len())
	}
	if got := d.Rows[0]["village"]; got != "大安里" {
		t.Errorf("trimmed village = %q", got)
	}
	if got := d.Rows[1]["town"]; got != nil {
		t.Errorf("empty cell = %#v, want nil", got)
	}
	if got := d.Rows[0]["pop_count"]; got != int64(120) {
		t.Errorf("inferred pop = %#v, want int64(120)", got)
	}
	if got := d.Rows[2]["pop_count"]; got != nil {
		t.Errorf("empty pop = %#v", got)
	}
	if d.IsGeo() {
		t.Error("plain csv should not be geo")
	}
}

func TestParse_InferTypes(t *testing.T) {
	t.Parallel()

	const in = "a,b,c\n1,1.5,x\n2,2,3\n"
	d, _, err := pcsv.NewParser(pcsv.Options{HasHeader: true, InferTypes: true}).
		Parse(context.Background(), strings.NewReader(in))
	if err != nil {
		t.Fatal(err)
	}
	want := []map[string]any{
		{"a": int64(1), "b": 1.5, "c": "x"},
		{"a": int64(2), "b": 2.0, "c": "3"},
	}
	for i, w := range want {
		if diff := cmp.Diff(w, map[string]any(d.Rows[i])); diff != "" {
			t.Errorf("row %d (-want +got):\n%s", i, diff)
		}
	}
}

/*
A WKT column turns the input into a geospatial dataset in the requested CRS.
*/
func TestParse_WKTGeometry(t *testing.T) {
	t.Parallel()

	const in = "name;wkt\n" +
		"a;POINT(121.5 25.03)\n" +
		"b;\n"
	p := pcsv.NewParser(pcsv.Options{HasHeader: true, Comma: ';', GeometryColumn: "wkt", CRS: "EPSG:4326"})
	d, _, err := p.Parse(context.Background(), strings.NewReader(in))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if d.GeometryColumn != "wkt" || d.CRS != "EPSG:4326" {
		t.Fatalf("geo metadata = %q %q", d.GeometryColumn, d.CRS)
	}
	if got, ok := d.Geometry(0).(orb.Point); !ok || !got.Equal(orb.Point{121.5, 25.03}) {
		t.Errorf("geometry = %#v", d.Geometry(0))
	}
	if d.Geometry(1) != nil {
		t.Errorf("empty WKT = %#v, want nil", d.Geometry(1))
	}
}

func TestParse_Errors(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	cases := []struct {
		name string
		in   string
		opt  pcsv.Options
		is   error
	}{
		{name: "duplicate header", in: "a,a\n1,2\n", opt: pcsv.Options{HasHeader: true}},
		{name: "missing geometry column", in: "a\n1\n", opt: pcsv.Options{HasHeader: true, GeometryColumn: "geom"}, is: dataset.ErrColumnNotFound},
		{name: "bad wkt", in: "g\nPOINT(1\n", opt: pcsv.Options{HasHeader: true, GeometryColumn: "g"}},
		{name: "empty input", in: "", opt: pcsv.Options{HasHeader: true}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := pcsv.NewParser(tc.opt).Parse(ctx, strings.NewReader(tc.in))
			if err == nil {
				t.Fatal("expected error")
			}
			if tc.is != nil && !errors.Is(err, tc.is) {
				t.Errorf("error %v does not wrap %v", err, tc.is)
			}
		})
	}
}

func TestParse_Headerless(t *testing.T) {
	t.Parallel()
	d, _, err := pcsv.NewParser(pcsv.Options{}).Parse(context.Background(), strings.NewReader("x,y\nz,w\n"))
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"col_0", "col_1"}, d.Columns); diff != "" {
		t.Errorf("columns (-want +got):\n%s", diff)
	}
	if d.Len() != 2 {
		t.Errorf("rows = %d", d.Len())
	}
}
