package logger

import "context"

type ctxKey struct{}

// ContextWithFields returns ctx carrying fields, appended to any already there.
// Loggers pick them up through Ctx.
func ContextWithFields(ctx context.Context, fields ...Field) context.Context {
	prev, _ := ctx.Value(ctxKey{}).([]Field)
	all := make([]Field, 0, len(prev)+len(fields))
	all = append(append(all, prev...), fields...)
	return context.WithValue(ctx, ctxKey{}, all)
}

// Ctx returns l stamped with the fields stored in ctx, or l itself when there are none.
func (l *Logger) Ctx(ctx context.Context) *Logger {
	fields, _ := ctx.Value(ctxKey{}).([]Field)
	if len(fields) == 0 {
		return l
	}
	return l.With(fields...)
}
