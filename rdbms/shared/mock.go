package shared

import (
	"context"
	"io"
	"sync"

	"github.com/pkg/errors"

	"github.com/Rohesen/walmart-ingest/constants"
	"github.com/Rohesen/walmart-ingest/logger"
)

// MockConnection implements Connector for tests. Executed SQL is recorded in
// order and query results can be canned per statement.
type MockConnection struct {
	log          logger.Logger
	mu           sync.Mutex
	execdSql     []string
	execdArgs    [][]interface{}
	queryResults map[string]*MockRows
	rowsAffected map[string]int64
	failExec     map[string]error
	failCommit   bool
	Txs          []*MockTx
}

func NewMockConnection(log logger.Logger) *MockConnection {
	return &MockConnection{
		log:          log,
		queryResults: make(map[string]*MockRows),
		rowsAffected: make(map[string]int64),
		failExec:     make(map[string]error),
	}
}

// SetQueryResult cans the result rows for the given query text.
func (c *MockConnection) SetQueryResult(query string, cols []string, rows [][]interface{}) {
	c.queryResults[query] = &MockRows{cols: cols, rows: rows}
}

// SetRowsAffected cans the affected row count for the given statement text.
func (c *MockConnection) SetRowsAffected(query string, n int64) {
	c.rowsAffected[query] = n
}

// SetExecError makes Exec of the given statement fail.
func (c *MockConnection) SetExecError(query string, err error) {
	c.failExec[query] = err
}

// SetFailCommit makes transaction commits fail.
func (c *MockConnection) SetFailCommit(fail bool) {
	c.failCommit = fail
}

// ExecdSql returns the statements executed so far, transactional or not, in order.
func (c *MockConnection) ExecdSql() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	retval := make([]string, len(c.execdSql))
	copy(retval, c.execdSql)
	return retval
}

// ExecdArgs returns the bind values supplied per executed statement.
func (c *MockConnection) ExecdArgs() [][]interface{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	retval := make([][]interface{}, len(c.execdArgs))
	copy(retval, c.execdArgs)
	return retval
}

func (c *MockConnection) record(query string, args []interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.execdSql = append(c.execdSql, query)
	c.execdArgs = append(c.execdArgs, args)
}

func (c *MockConnection) Begin() (Transacter, error) {
	tx := &MockTx{conn: c}
	c.Txs = append(c.Txs, tx)
	return tx, nil
}

func (c *MockConnection) Exec(query string, args ...interface{}) (Result, error) {
	return c.ExecContext(context.Background(), query, args...)
}

func (c *MockConnection) ExecContext(_ context.Context, query string, args ...interface{}) (Result, error) {
	if err, ok := c.failExec[query]; ok {
		return nil, err
	}
	c.record(query, args)
	return &MockResult{affected: c.rowsAffected[query]}, nil
}

func (c *MockConnection) Query(query string, args ...interface{}) (Rows, error) {
	return c.QueryContext(context.Background(), query, args...)
}

func (c *MockConnection) QueryContext(_ context.Context, query string, args ...interface{}) (Rows, error) {
	r, ok := c.queryResults[query]
	if !ok {
		return nil, errors.Errorf("mock connection has no canned result for query %q", query)
	}
	return &MockRows{cols: r.cols, rows: r.rows}, nil // fresh cursor per call.
}

func (c *MockConnection) Close() {}

func (c *MockConnection) GetType() string {
	return constants.ConnectionTypeMock
}

func (c *MockConnection) GetDmlGenerator() DmlGenerator {
	return &DmlGeneratorTxtBatch{}
}

// MockTx records statements through its parent connection.
type MockTx struct {
	conn       *MockConnection
	Committed  bool
	RolledBack bool
}

func (t *MockTx) Exec(query string, args ...interface{}) (Result, error) {
	return t.ExecContext(context.Background(), query, args...)
}

func (t *MockTx) ExecContext(ctx context.Context, query string, args ...interface{}) (Result, error) {
	return t.conn.ExecContext(ctx, query, args...)
}

func (t *MockTx) Commit() error {
	if t.conn.failCommit {
		return errors.New("mock commit failure")
	}
	t.Committed = true
	return nil
}

func (t *MockTx) Rollback() error {
	t.RolledBack = true
	return nil
}

type MockResult struct {
	affected int64
}

func (r *MockResult) LastInsertId() (int64, error) {
	return 0, errors.New("LastInsertId is not supported")
}

func (r *MockResult) RowsAffected() (int64, error) {
	return r.affected, nil
}

// MockRows implements Rows over a slice of row values.
type MockRows struct {
	cols   []string
	rows   [][]interface{}
	cursor int
	err    error
}

func NewMockRows(cols []string, rows [][]interface{}) *MockRows {
	return &MockRows{cols: cols, rows: rows}
}

func (r *MockRows) Columns() ([]string, error) {
	return r.cols, nil
}

func (r *MockRows) Next() bool {
	return r.cursor < len(r.rows)
}

func (r *MockRows) Scan(dest ...interface{}) error {
	if r.cursor >= len(r.rows) {
		return io.EOF
	}
	row := r.rows[r.cursor]
	if len(dest) != len(row) {
		return errors.Errorf("expected %v scan targets; got %v", len(row), len(dest))
	}
	for i, v := range row {
		p, ok := dest[i].(*interface{})
		if !ok {
			return errors.New("mock rows only support scanning into *interface{}")
		}
		*p = v
	}
	r.cursor++
	return nil
}

func (r *MockRows) Err() error {
	return r.err
}

func (r *MockRows) Close() error {
	return nil
}
