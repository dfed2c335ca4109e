package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/rexliu/nsign/pkg/config"
)

// Logger wraps a zerolog logger tagged with a component name.
type Logger struct {
	zerolog.Logger
	component string
	out       io.Writer
	level     zerolog.Level
	closer    io.Closer
}

// New returns a human readable logger on stdout until Configure adds a file.
func New(component string) *Logger {
	return NewWriter(os.Stdout, component)
}

// NewWriter is New with the console output sent to w.
func NewWriter(w io.Writer, component string) *Logger {
	out := consoleWriter(w)
	return &Logger{
		Logger:    newLogger(out, component).Level(zerolog.InfoLevel),
		component: component,
		out:       out,
		level:     zerolog.InfoLevel,
	}
}

func consoleWriter(w io.Writer) zerolog.ConsoleWriter {
	return zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
}

func newLogger(w io.Writer, component string) zerolog.Logger {
	return zerolog.New(w).With().Timestamp().Str("component", component).Logger()
}

// Configure applies logging settings from config. The console keeps the
// human format; the rolling file receives JSON lines.
func (l *Logger) Configure(cfg config.LoggingConfig) error {
	if l == nil {
		return nil
	}
	level := zerolog.InfoLevel
	if cfg.Level != "" {
		parsed, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
		if err != nil {
			return fmt.Errorf("logging.level: %w", err)
		}
		level = parsed
	}
	var out io.Writer = consoleWriter(os.Stdout)
	if cfg.FilePath != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.FilePath), 0o700); err != nil {
			return err
		}
		writer, err := newRollingFile(cfg.FilePath, cfg.FileMaxSize, cfg.FileBackups)
		if err != nil {
			return err
		}
		l.closer = writer
		out = zerolog.MultiLevelWriter(out, writer)
	}
	l.out, l.level = out, level
	l.Logger = newLogger(out, l.component).Level(level)
	return nil
}

// Printf satisfies ipc.Logger.
func (l *Logger) Printf(format string, v ...any) {
	l.Info().Msgf(format, v...)
}

// Component derives a logger for a subsystem sharing the same outputs.
func (l *Logger) Component(name string) zerolog.Logger {
	return newLogger(l.out, l.component+"."+name).Level(l.level)
}

// Close releases the log file, if any.
func (l *Logger) Close() error {
	if l == nil || l.closer == nil {
		return nil
	}
	return l.closer.Close()
}

type rollingFile struct {
	mu      sync.Mutex
	path    string
	max     int64
	backups int
	file    *os.File
	size    int64
}

func newRollingFile(path string, maxMB, backups int) (*rollingFile, error) {
	r := &rollingFile{path: path, max: int64(maxMB) * 1024 * 1024, backups: backups}
	if err := r.open(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *rollingFile) open() error {
	f, err := os.OpenFile(r.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return err
	}
	r.file, r.size = f, info.Size()
	return nil
}

func (r *rollingFile) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.max > 0 && r.size > 0 && r.size+int64(len(p)) > r.max {
		if err := r.rotate(); err != nil {
			return 0, err
		}
	}
	n, err := r.file.Write(p)
	r.size += int64(n)
	return n, err
}

// rotate shifts path.N-1 to path.N down to path -> path.1. With zero backups
// the current file is truncated instead.
func (r *rollingFile) rotate() error {
	r.file.Close()
	if r.backups <= 0 {
		if err := os.Truncate(r.path, 0); err != nil {
			return err
		}
		return r.open()
	}
	os.Remove(backupName(r.path, r.backups))
	for i := r.backups - 1; i >= 1; i-- {
		os.Rename(backupName(r.path, i), backupName(r.path, i+1))
	}
	if err := os.Rename(r.path, backupName(r.path, 1)); err != nil {
		return err
	}
	return r.open()
}

func (r *rollingFile) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.file.Close()
}

func backupName(path string, n int) string {
	return fmt.Sprintf("%s.%d", path, n)
}
