package database

import (
	"context"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

// maxLoggedSQL truncates statements in log lines.
const maxLoggedSQL = 200

type traceStartKey struct{}

type traceStart struct {
	sql   string
	start time.Time
}

// queryTracer logs failed statements, slow statements at warn, and every
// statement at trace. Arguments are never logged.
type queryTracer struct {
	logger zerolog.Logger
	slow   time.Duration
	now    func() time.Time
}

var _ pgx.QueryTracer = (*queryTracer)(nil)

func newQueryTracer(logger zerolog.Logger, slow time.Duration) *queryTracer {
	return &queryTracer{
		logger: logger.With().Str("component", "pgx").Logger(),
		slow:   slow,
		now:    time.Now,
	}
}

func (t *queryTracer) TraceQueryStart(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryStartData) context.Context {
	return context.WithValue(ctx, traceStartKey{}, traceStart{sql: data.SQL, start: t.now()})
}

func (t *queryTracer) TraceQueryEnd(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryEndData) {
	started, ok := ctx.Value(traceStartKey{}).(traceStart)
	if !ok {
		return
	}
	elapsed := t.now().Sub(started.start)

	var event *zerolog.Event
	switch {
	case data.Err != nil:
		event = t.logger.Debug().Err(data.Err)
	case t.slow > 0 && elapsed >= t.slow:
		event = t.logger.Warn()
	default:
		event = t.logger.Trace()
	}

	event.
		Str("sql", compactSQL(started.sql)).
		Str("command", data.CommandTag.String()).
		Dur("elapsed", elapsed).
		Msg("query")
}

// compactSQL collapses whitespace so multi-line statements log on one line.
func compactSQL(sql string) string {
	out := strings.Join(strings.Fields(sql), " ")
	if len(out) > maxLoggedSQL {
		return out[:maxLoggedSQL] + "..."
	}
	return out
}
