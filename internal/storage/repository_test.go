package storage

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/paulmach/orb"

	"geoetl/internal/dataset"
	"geoetl/internal/ddl"
	"geoetl/pkg/records"
)

// memRepo records what is written to it.
type memRepo struct {
	mu      sync.Mutex
	columns []string
	rows    [][]any
	stmts   []string
	batches int
	failOn  int
	closed  bool
}

var errCopy = errors.New("copy failed")

func (m *memRepo) CopyFrom(_ context.Context, columns []string, rows [][]any) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.batches++
	if m.failOn > 0 && m.batches == m.failOn {
		return 0, errCopy
	}
	m.columns = columns
	for _, r := range rows {
		m.rows = append(m.rows, slices.Clone(r))
	}
	return int64(len(rows)), nil
}

func (m *memRepo) Exec(_ context.Context, sql string) error {
	m.stmts = append(m.stmts, sql)
	return nil
}

func (m *memRepo) Close() { m.closed = true }

func TestNew(t *testing.T) {
	t.Parallel()

	Register("mem-new", func(_ context.Context, cfg Config) (Repository, error) {
		if cfg.Table == "" {
			return nil, errors.New("table required")
		}
		return &memRepo{}, nil
	})

	cases := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{"registered", Config{Kind: "mem-new", Table: "t"}, ""},
		{"factory error", Config{Kind: "mem-new"}, "table required"},
		{"unknown kind", Config{Kind: "nope"}, "unsupported storage.kind=nope"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			repo, err := New(context.Background(), tc.cfg)
			if tc.wantErr == "" {
				if err != nil || repo == nil {
					t.Fatalf("New = %v, %v", repo, err)
				}
				return
			}
			if err == nil || err.Error() != tc.wantErr {
				t.Fatalf("err = %v, want %q", err, tc.wantErr)
			}
		})
	}
	if !slices.Contains(ListKinds(), "mem-new") {
		t.Errorf("ListKinds() = %v lacks mem-new", ListKinds())
	}
	if !slices.IsSorted(ListKinds()) {
		t.Errorf("ListKinds() not sorted: %v", ListKinds())
	}
}

/*
A second registration under the same kind wins.
*/
func TestRegister_Replaces(t *testing.T) {
	t.Parallel()

	var got string
	Register("mem-replace", func(context.Context, Config) (Repository, error) { got = "first"; return &memRepo{}, nil })
	Register("mem-replace", func(context.Context, Config) (Repository, error) { got = "second"; return &memRepo{}, nil })

	if _, err := New(context.Background(), Config{Kind: "mem-replace"}); err != nil {
		t.Fatal(err)
	}
	if got != "second" {
		t.Errorf("factory used = %q, want second", got)
	}
}

func villages() *dataset.Dataset {
	d := dataset.New([]string{"name", "pop", "geometry"}, []records.Record{
		{"name": "a", "pop": int64(10), "geometry": orb.Point{121, 23}},
		{"name": "b", "pop": nil, "geometry": orb.Point{121.5, 24}},
	})
	d.GeometryColumn = "geometry"
	d.Index = []int{4, 7}
	return d
}

func TestEnsureTable(t *testing.T) {
	t.Parallel()

	RegisterDDL("mem-sql", ddl.SQLite)

	cases := []struct {
		name      string
		kind      string
		wantStmts int
		wantIn    []string
	}{
		{"dialect registered", "mem-sql", 1, []string{"CREATE TABLE IF NOT EXISTS", `"index"`, `"pop"`}},
		{"file sink", "mem-file", 0, nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			repo := &memRepo{}
			if err := EnsureTable(context.Background(), tc.kind, repo, "villages", villages()); err != nil {
				t.Fatal(err)
			}
			if len(repo.stmts) != tc.wantStmts {
				t.Fatalf("statements = %q, want %d", repo.stmts, tc.wantStmts)
			}
			for _, s := range tc.wantIn {
				if !strings.Contains(repo.stmts[0], s) {
					t.Errorf("DDL %q lacks %s", repo.stmts[0], s)
				}
			}
		})
	}
}

func TestColumns(t *testing.T) {
	t.Parallel()

	d := villages()
	if diff := cmp.Diff([]string{"index", "name", "pop", "geometry"}, Columns(d)); diff != "" {
		t.Errorf("Columns (-want +got):\n%s", diff)
	}

	/* A data column named like the index suppresses the label column. */
	d.IndexName = "name"
	if diff := cmp.Diff([]string{"name", "pop", "geometry"}, Columns(d)); diff != "" {
		t.Errorf("Columns with clashing index (-want +got):\n%s", diff)
	}
}

func TestRegisterOpener(t *testing.T) {
	t.Parallel()

	released := 0
	RegisterOpener("mem-opener", func(_ context.Context, cfg Config) (*memRepo, func(), error) {
		if cfg.DSN == "bad" {
			return nil, nil, errors.New("refused")
		}
		return &memRepo{}, func() { released++ }, nil
	})

	if _, err := New(context.Background(), Config{Kind: "mem-opener", DSN: "bad"}); err == nil || err.Error() != "refused" {
		t.Fatalf("err = %v, want refused", err)
	}
	repo, err := New(context.Background(), Config{Kind: "mem-opener"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := repo.CopyFrom(context.Background(), []string{"a"}, [][]any{{1}}); err != nil {
		t.Fatal(err)
	}
	repo.Close()
	repo.Close()
	if released != 1 {
		t.Errorf("released %d times, want 1", released)
	}
}
