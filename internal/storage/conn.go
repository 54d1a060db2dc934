package storage

import "context"

// Conn is a repository whose lifetime is managed by a separate release
// function, as returned by the SQL backends' constructors.
type Conn interface {
	CopyFrom(ctx context.Context, columns []string, rows [][]any) (int64, error)
	Exec(ctx context.Context, sql string) error
}

// RegisterOpener registers open under kind. open returns a Conn for cfg and
// the function that releases it; the two are paired into a Repository.
func RegisterOpener[C Conn](kind string, open func(ctx context.Context, cfg Config) (C, func(), error)) {
	Register(kind, func(ctx context.Context, cfg Config) (Repository, error) {
		c, release, err := open(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return WithClose(c, release), nil
	})
}

// WithClose makes c a Repository whose Close calls release. A nil release
// makes Close a no-op.
func WithClose(c Conn, release func()) Repository {
	return &releasing{Conn: c, release: release}
}

type releasing struct {
	Conn
	release func()
}

func (r *releasing) Close() {
	if r.release != nil {
		r.release()
		r.release = nil
	}
}
