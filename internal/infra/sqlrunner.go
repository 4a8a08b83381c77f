package infra

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// SQLExecutor is the narrow database contract the archive layer depends on.
type SQLExecutor interface {
	Exec(ctx context.Context, query string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, query string, args ...any) pgx.Row
	Query(ctx context.Context, query string, args ...any) (pgx.Rows, error)
}

// Inline queries open with a "--sql <uuid>" line. The runner strips it
// before execution and tags every log line with the uuid so a slow or
// failing statement can be traced back to its constant.
var sqlMarker = regexp.MustCompile(`^--sql [0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)

// SQLRunner executes marked queries against a pgx pool with logging.
type SQLRunner struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

func NewSQLRunner(pool *pgxpool.Pool, logger zerolog.Logger) *SQLRunner {
	return &SQLRunner{pool: pool, logger: logger}
}

func (r *SQLRunner) Exec(ctx context.Context, query string, args ...any) (pgconn.CommandTag, error) {
	id, stmt, err := splitMarker(query)
	if err != nil {
		return pgconn.CommandTag{}, err
	}
	start := time.Now()
	tag, err := r.pool.Exec(ctx, stmt, args...)
	if err != nil {
		r.logger.Error().Err(err).Str("query", id).Msg("sql exec failed")
		return tag, err
	}
	r.logger.Debug().
		Str("query", id).
		Int64("rows", tag.RowsAffected()).
		Dur("elapsed", time.Since(start)).
		Msg("sql exec")
	return tag, nil
}

func (r *SQLRunner) QueryRow(ctx context.Context, query string, args ...any) pgx.Row {
	id, stmt, err := splitMarker(query)
	if err != nil {
		return errorRow{err: err}
	}
	r.logger.Debug().Str("query", id).Msg("sql query_row")
	return r.pool.QueryRow(ctx, stmt, args...)
}

func (r *SQLRunner) Query(ctx context.Context, query string, args ...any) (pgx.Rows, error) {
	id, stmt, err := splitMarker(query)
	if err != nil {
		return nil, err
	}
	start := time.Now()
	rows, err := r.pool.Query(ctx, stmt, args...)
	if err != nil {
		r.logger.Error().Err(err).Str("query", id).Msg("sql query failed")
		return nil, err
	}
	r.logger.Debug().Str("query", id).Dur("elapsed", time.Since(start)).Msg("sql query")
	return rows, nil
}

// errorRow defers a marker error to the Scan call, matching pgx.Row.
type errorRow struct {
	err error
}

func (e errorRow) Scan(dest ...any) error {
	return e.err
}

// splitMarker separates the audit uuid from the statement body.
func splitMarker(query string) (id, stmt string, err error) {
	first, rest, found := strings.Cut(strings.TrimSpace(query), "\n")
	if !found {
		return "", "", errors.New("sql statement has a marker but no body")
	}
	first = strings.TrimSpace(first)
	if !sqlMarker.MatchString(first) {
		return "", "", errors.New("sql marker missing or invalid")
	}
	return strings.TrimPrefix(first, "--sql "), rest, nil
}

var _ SQLExecutor = (*SQLRunner)(nil)
