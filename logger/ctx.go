package logger

import (
	"context"

	"github.com/facebookincubator/go-belt/tool/logger"
)

// FromCtx extracts the logger the conversion pipeline carries in its
// context.
func FromCtx(ctx context.Context) logger.Logger {
	return logger.FromCtx(ctx)
}

// CtxWithLogger derives a context carrying l; everything downstream of
// the converter logs through it.
func CtxWithLogger(ctx context.Context, l logger.Logger) context.Context {
	return logger.CtxWithLogger(ctx, l)
}
