package logger

import (
	"io"
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// FileOptions controls the rotated log file written alongside stderr.
type FileOptions struct {
	Path       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// Setup builds the process logger. In dev mode stderr gets the console writer
// and debug level. When file.Path is set, JSON logs are also appended to a
// rotated file.
func Setup(dev bool, file FileOptions) zerolog.Logger {
	level := zerolog.InfoLevel
	if dev {
		level = zerolog.DebugLevel
	}

	var stderr io.Writer = os.Stderr
	if dev {
		stderr = zerolog.ConsoleWriter{Out: os.Stderr, FormatTimestamp: func(i any) string {
			return time.Now().Format(time.RFC3339)
		}}
	}

	out := stderr
	if file.Path != "" {
		out = zerolog.MultiLevelWriter(stderr, newFileWriter(file))
	}

	ctx := zerolog.New(out).Level(level).With().Timestamp()
	if dev {
		ctx = ctx.Caller().Stack()
	}
	return ctx.Logger()
}

func newFileWriter(file FileOptions) io.Writer {
	return &lumberjack.Logger{
		Filename:   file.Path,
		MaxSize:    max(file.MaxSizeMB, 10),
		MaxBackups: max(file.MaxBackups, 3),
		MaxAge:     max(file.MaxAgeDays, 7),
	}
}

// Requests logs one line per HTTP request with its status and duration.
type Requests struct {
	logger zerolog.Logger
}

func NewRequests(logger zerolog.Logger) *Requests {
	return &Requests{logger: logger}
}

func (r *Requests) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		started := time.Now()

		ctx := r.logger.With().
			Str("method", req.Method).
			Str("path", req.URL.Path).
			Str("addr", req.RemoteAddr).
			Logger().WithContext(req.Context())

		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, req.WithContext(ctx))

		ev := zerolog.Ctx(ctx).Info()
		if sw.status >= http.StatusInternalServerError {
			ev = zerolog.Ctx(ctx).Error()
		}
		ev.Int("status", sw.status).
			Int("bytes", sw.bytes).
			Dur("duration", time.Since(started)).
			Msg("http request")
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (s *statusWriter) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusWriter) Write(b []byte) (int, error) {
	n, err := s.ResponseWriter.Write(b)
	s.bytes += n
	return n, err
}
