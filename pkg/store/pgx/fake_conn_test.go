package pgx

import (
	"context"
	"fmt"

	pgxv5 "github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// fakeConn satisfies pgxIConn for tests. It records every statement with its
// arguments and answers queries from scripted FIFO result queues.
type fakeConn struct {
	execs    []sqlCall
	execErrs []error

	queries   []sqlCall
	rowsQueue []*fakeRows

	queryRows []sqlCall
	rowQueue  []*fakeRow

	tx *fakeTx
}

type sqlCall struct {
	sql  string
	args []any
}

func record(log []sqlCall, sql string, args []any) []sqlCall {
	copied := make([]any, len(args))
	copy(copied, args)
	return append(log, sqlCall{sql: sql, args: copied})
}

func (c *fakeConn) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	c.execs = record(c.execs, sql, args)
	if len(c.execErrs) > 0 {
		err := c.execErrs[0]
		c.execErrs = c.execErrs[1:]
		if err != nil {
			return pgconn.CommandTag{}, err
		}
	}
	return pgconn.CommandTag{}, nil
}

func (c *fakeConn) Query(ctx context.Context, sql string, args ...any) (pgxv5.Rows, error) {
	c.queries = record(c.queries, sql, args)
	if len(c.rowsQueue) == 0 {
		return &fakeRows{}, nil
	}
	r := c.rowsQueue[0]
	c.rowsQueue = c.rowsQueue[1:]
	return r, nil
}

func (c *fakeConn) QueryRow(ctx context.Context, sql string, args ...any) pgxv5.Row {
	c.queryRows = record(c.queryRows, sql, args)
	if len(c.rowQueue) == 0 {
		return &fakeRow{err: pgxv5.ErrNoRows}
	}
	r := c.rowQueue[0]
	c.rowQueue = c.rowQueue[1:]
	return r
}

func (c *fakeConn) Begin(ctx context.Context) (pgxv5.Tx, error) {
	c.tx = &fakeTx{}
	return c.tx, nil
}

type fakeRow struct {
	vals []any
	err  error
}

func (r *fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	for i, d := range dest {
		if err := assignScanDest(d, r.vals[i]); err != nil {
			return err
		}
	}
	return nil
}

type fakeRows struct {
	rows [][]any
	idx  int
}

func (r *fakeRows) Next() bool {
	r.idx++
	return r.idx <= len(r.rows)
}

func (r *fakeRows) Scan(dest ...any) error {
	row := r.rows[r.idx-1]
	for i, d := range dest {
		if err := assignScanDest(d, row[i]); err != nil {
			return err
		}
	}
	return nil
}

func (r *fakeRows) Close()                                       {}
func (r *fakeRows) Err() error                                   { return nil }
func (r *fakeRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (r *fakeRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *fakeRows) Values() ([]any, error)                       { return nil, nil }
func (r *fakeRows) RawValues() [][]byte                          { return nil }
func (r *fakeRows) Conn() *pgxv5.Conn                            { return nil }

func assignScanDest(dest, val any) error {
	switch d := dest.(type) {
	case *string:
		*d = val.(string)
	case *int:
		*d = val.(int)
	case *bool:
		*d = val.(bool)
	case *[]string:
		*d = val.([]string)
	default:
		return fmt.Errorf("unsupported scan destination %T", dest)
	}
	return nil
}

type fakeTx struct {
	execs      []sqlCall
	batches    []*pgxv5.Batch
	committed  bool
	rolledBack bool
}

func (t *fakeTx) Begin(ctx context.Context) (pgxv5.Tx, error) { return t, nil }

func (t *fakeTx) Commit(ctx context.Context) error {
	t.committed = true
	return nil
}

func (t *fakeTx) Rollback(ctx context.Context) error {
	t.rolledBack = true
	return nil
}

func (t *fakeTx) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	t.execs = record(t.execs, sql, args)
	return pgconn.CommandTag{}, nil
}

func (t *fakeTx) SendBatch(ctx context.Context, b *pgxv5.Batch) pgxv5.BatchResults {
	t.batches = append(t.batches, b)
	return &fakeBatchResults{}
}

func (t *fakeTx) Query(ctx context.Context, sql string, args ...any) (pgxv5.Rows, error) {
	return &fakeRows{}, nil
}

func (t *fakeTx) QueryRow(ctx context.Context, sql string, args ...any) pgxv5.Row {
	return &fakeRow{err: pgxv5.ErrNoRows}
}

func (t *fakeTx) CopyFrom(ctx context.Context, tableName pgxv5.Identifier, columnNames []string, rowSrc pgxv5.CopyFromSource) (int64, error) {
	return 0, nil
}

func (t *fakeTx) Prepare(ctx context.Context, name, sql string) (*pgconn.StatementDescription, error) {
	return nil, nil
}

func (t *fakeTx) LargeObjects() pgxv5.LargeObjects { return pgxv5.LargeObjects{} }
func (t *fakeTx) Conn() *pgxv5.Conn                { return nil }

type fakeBatchResults struct{}

func (fakeBatchResults) Exec() (pgconn.CommandTag, error) { return pgconn.CommandTag{}, nil }
func (fakeBatchResults) Query() (pgxv5.Rows, error)       { return &fakeRows{}, nil }
func (fakeBatchResults) QueryRow() pgxv5.Row              { return &fakeRow{err: pgxv5.ErrNoRows} }
func (fakeBatchResults) Close() error                     { return nil }
