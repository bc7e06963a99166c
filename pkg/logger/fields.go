package logger

import (
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Field is one typed key/value pair. It can be attached to a single event or
// baked into a child logger with With.
type Field struct {
	event func(*zerolog.Event)
	child func(zerolog.Context) zerolog.Context
}

func String(key, value string) Field {
	return Field{
		event: func(e *zerolog.Event) { e.Str(key, value) },
		child: func(c zerolog.Context) zerolog.Context { return c.Str(key, value) },
	}
}

func Strings(key string, value []string) Field {
	return String(key, strings.Join(value, ", "))
}

func Int(key string, value int) Field {
	return Field{
		event: func(e *zerolog.Event) { e.Int(key, value) },
		child: func(c zerolog.Context) zerolog.Context { return c.Int(key, value) },
	}
}

func Int64(key string, value int64) Field {
	return Field{
		event: func(e *zerolog.Event) { e.Int64(key, value) },
		child: func(c zerolog.Context) zerolog.Context { return c.Int64(key, value) },
	}
}

func Float64(key string, value float64) Field {
	return Field{
		event: func(e *zerolog.Event) { e.Float64(key, value) },
		child: func(c zerolog.Context) zerolog.Context { return c.Float64(key, value) },
	}
}

func Bool(key string, value bool) Field {
	return Field{
		event: func(e *zerolog.Event) { e.Bool(key, value) },
		child: func(c zerolog.Context) zerolog.Context { return c.Bool(key, value) },
	}
}

// Duration logs whole milliseconds.
func Duration(key string, value time.Duration) Field {
	return Int64(key, value.Milliseconds())
}

// Error logs under "error". A nil error adds nothing.
func Error(err error) Field {
	return Field{
		event: func(e *zerolog.Event) {
			if err != nil {
				e.Err(err)
			}
		},
		child: func(c zerolog.Context) zerolog.Context {
			if err == nil {
				return c
			}
			return c.Err(err)
		},
	}
}

func Any(key string, value interface{}) Field {
	return Field{
		event: func(e *zerolog.Event) { e.Interface(key, value) },
		child: func(c zerolog.Context) zerolog.Context { return c.Interface(key, value) },
	}
}
