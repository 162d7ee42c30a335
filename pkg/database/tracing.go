package database

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/utafrali/shopsearch/pkg/database"

// Systems reported in the db.system span attribute.
const (
	SystemPostgres = "postgresql"
	SystemRedis    = "redis"
)

// QueryTracer wraps storage calls in client spans and warns about calls
// slower than SlowThreshold. The zero value traces without slow-call logging.
type QueryTracer struct {
	System        string
	SlowThreshold time.Duration
	Logger        *slog.Logger
}

// Start opens a span named "db.<operation>". Call the returned func with the
// operation's error when it completes:
//
//	ctx, end := t.Start(ctx, "RecordSearch", upsertSQL)
//	defer func() { end(err) }()
func (t QueryTracer) Start(ctx context.Context, operation, statement string) (context.Context, func(error)) {
	start := time.Now()
	ctx, span := otel.Tracer(tracerName).Start(ctx, "db."+operation,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("db.system", t.System),
			attribute.String("db.operation", operation),
			attribute.String("db.statement", statement),
		),
	)

	return ctx, func(err error) {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()

		if t.SlowThreshold <= 0 || t.Logger == nil {
			return
		}
		if elapsed := time.Since(start); elapsed >= t.SlowThreshold {
			attrs := []any{
				slog.String("db_system", t.System),
				slog.String("operation", operation),
				slog.Duration("duration", elapsed),
			}
			if err != nil {
				attrs = append(attrs, slog.String("error", err.Error()))
			}
			t.Logger.WarnContext(ctx, "slow query detected", attrs...)
		}
	}
}
