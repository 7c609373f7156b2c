package logger

import (
	"context"
	"io"
	"math"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type Config struct {
	Level     string
	Console   bool
	SampleN   int
	Mode      string
	Component string
}

type ctxKey string

const (
	ctxReqIDKey  ctxKey = "request_id"
	ctxCacheTier ctxKey = "cache"
	ctxComponent ctxKey = "component"
	ctxOp        ctxKey = "op"
)

// fields copied from the context onto every record, in output order
var ctxFields = []struct {
	key  ctxKey
	name string
}{
	{ctxReqIDKey, "request_id"},
	{ctxOp, "op"},
	{ctxComponent, "component"},
	{ctxCacheTier, "cache"},
}

func WithRequestID(ctx context.Context, reqID string) context.Context {
	if reqID == "" {
		reqID = NewID()
	}
	return context.WithValue(ctx, ctxReqIDKey, reqID)
}

// WithCacheTier records which cache tier served the request (lru, redis, miss).
func WithCacheTier(ctx context.Context, tier string) context.Context {
	return withString(ctx, ctxCacheTier, tier)
}

// WithOp records the codec operation being served (encode, decode, ...).
func WithOp(ctx context.Context, op string) context.Context {
	return withString(ctx, ctxOp, op)
}

func WithComponent(ctx context.Context, component string) context.Context {
	return withString(ctx, ctxComponent, component)
}

func withString(ctx context.Context, k ctxKey, v string) context.Context {
	if v == "" {
		return ctx
	}
	return context.WithValue(ctx, k, v)
}

// NewID returns a random request id.
func NewID() string {
	return uuid.NewString()
}

func safeUint32(n int) uint32 {
	if n <= 0 {
		return 0
	}
	if n > int(math.MaxUint32) {
		return math.MaxUint32
	}
	return uint32(n)
}

func Build(cfg Config, out io.Writer) zerolog.Logger {
	if out == nil {
		out = os.Stdout
	}

	zerolog.TimeFieldFormat = time.RFC3339Nano
	zerolog.TimestampFieldName = "timestamp"
	zerolog.LevelFieldName = "level"
	zerolog.MessageFieldName = "msg"

	if cfg.Console {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}

	base := zerolog.New(out)

	if cfg.SampleN > 0 {
		n := safeUint32(cfg.SampleN)
		if n > 0 {
			base = base.Sample(&zerolog.BasicSampler{N: n})
		}
	}

	lvl := strings.ToLower(strings.TrimSpace(cfg.Level))
	switch lvl {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	ctx := base.With().Timestamp()
	if cfg.Mode != "" {
		ctx = ctx.Str("mode", cfg.Mode)
	}
	if cfg.Component != "" {
		ctx = ctx.Str("component", cfg.Component)
	}
	return ctx.Logger()
}

// returns a child logger with context fields applied
func FromContext(ctx context.Context, parent *zerolog.Logger) *zerolog.Logger {
	var base zerolog.Logger
	if parent == nil {
		base = zerolog.New(io.Discard)
	} else {
		base = *parent
	}
	w := base.With()
	for _, f := range ctxFields {
		if s, ok := ctx.Value(f.key).(string); ok && s != "" {
			w = w.Str(f.name, s)
		}
	}
	l := w.Logger()
	return &l
}
