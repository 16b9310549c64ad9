// Package logger owns the process root zerolog logger and its request scoped children
package logger

import (
	"context"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/pkgerrors"
)

// Logger is the logging type used across the module
type Logger = zerolog.Logger

// Options configure the root logger
type Options struct {
	Level   string // trace, debug, info, warn, error
	Format  string // console or json
	Service string
	Caller  bool

	// SampleEvery keeps one event in N when above 1
	SampleEvery int

	Writer io.Writer
}

// FromEnv reads LOG_LEVEL, LOG_FORMAT, LOG_SERVICE, LOG_CALLER and LOG_SAMPLE_EVERY
func FromEnv() Options {
	env := func(k, def string) string {
		if v := strings.TrimSpace(os.Getenv("LOG_" + k)); v != "" {
			return v
		}
		return def
	}
	caller, _ := strconv.ParseBool(env("CALLER", "false"))
	every, _ := strconv.Atoi(env("SAMPLE_EVERY", "0"))
	return Options{
		Level:       env("LEVEL", "info"),
		Format:      strings.ToLower(env("FORMAT", "console")),
		Service:     env("SERVICE", ""),
		Caller:      caller,
		SampleEvery: every,
	}
}

var (
	once sync.Once
	root atomic.Pointer[Logger]
)

// Init builds the root logger; only the first call has an effect
func Init(opt Options) {
	once.Do(func() {
		zerolog.ErrorStackMarshaler = pkgerrors.MarshalStack
		zerolog.TimeFieldFormat = time.RFC3339Nano

		w := opt.Writer
		if w == nil {
			w = os.Stdout
		}
		if opt.Format == "console" {
			w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
		}

		ctx := zerolog.New(w).Level(Level(opt.Level)).With().Timestamp()
		if opt.Service != "" {
			ctx = ctx.Str("service", opt.Service)
		}
		if opt.Caller {
			ctx = ctx.Caller()
		}
		l := ctx.Logger()
		if opt.SampleEvery > 1 {
			l = l.Sample(&zerolog.BasicSampler{N: uint32(opt.SampleEvery)})
		}
		root.Store(&l)
	})
}

// InitFor is Init(FromEnv()) with service used when LOG_SERVICE is unset
func InitFor(service string) *Logger {
	opt := FromEnv()
	if opt.Service == "" {
		opt.Service = service
	}
	Init(opt)
	return Get()
}

// Level parses a level name; unknown names mean info
func Level(s string) zerolog.Level {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "warning" {
		s = "warn"
	}
	lvl, err := zerolog.ParseLevel(s)
	if err != nil || s == "" {
		return zerolog.InfoLevel
	}
	return lvl
}

// Get returns the root logger, initializing it from the environment on first use
func Get() *Logger {
	if l := root.Load(); l != nil {
		return l
	}
	Init(FromEnv())
	return root.Load()
}

// Named returns a child of the root tagged with component
func Named(component string) *Logger {
	l := Get().With().Str("component", component).Logger()
	return &l
}

// C returns the logger stored on ctx by the access log, or the root
func C(ctx context.Context) *Logger {
	if l := zerolog.Ctx(ctx); l.GetLevel() != zerolog.Disabled {
		return l
	}
	return Get()
}
