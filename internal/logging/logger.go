// Package logging provides config-driven categorized logging for the PAGI core.
// Every subsystem logs through a named zap logger for its category; until Initialize
// is called all loggers are no-ops, so libraries and tests stay silent by default.
package logging

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"pagi/internal/config"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Category represents a log category/system
type Category string

const (
	CategoryBoot    Category = "boot"    // Boot/initialization
	CategoryStore   Category = "store"   // Fact store reads and writes
	CategoryKernel  Category = "kernel"  // Rule engine (Mangle) evaluation
	CategoryPlanner Category = "planner" // Planner tier decisions
	CategoryAuth    Category = "auth"    // Gatekeeper decisions
	CategoryIPC     Category = "ipc"     // Status channel lifecycle
	CategoryAudit   Category = "audit"   // Structured audit events
)

// slowThreshold is the default duration above which timers warn.
const slowThreshold = 250 * time.Millisecond

var (
	mu      sync.RWMutex
	root    = zap.NewNop()
	enabled = func(string) bool { return true }
)

// Initialize builds the root logger from configuration. It may be called again to
// reconfigure; previously returned category loggers keep their old core.
func Initialize(cfg config.LoggingConfig) error {
	var zcfg zap.Config
	if cfg.Development {
		zcfg = zap.NewDevelopmentConfig()
	} else {
		zcfg = zap.NewProductionConfig()
	}

	level, err := parseLevel(cfg.Level)
	if err != nil {
		return err
	}
	zcfg.Level = zap.NewAtomicLevelAt(level)

	switch strings.ToLower(cfg.Format) {
	case "", "json":
		zcfg.Encoding = "json"
	case "console", "text":
		zcfg.Encoding = "console"
	default:
		return fmt.Errorf("unknown log format %q", cfg.Format)
	}
	if len(cfg.OutputPaths) > 0 {
		zcfg.OutputPaths = cfg.OutputPaths
	}
	zcfg.EncoderConfig.TimeKey = "ts"
	zcfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := zcfg.Build()
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	categories := cfg
	mu.Lock()
	root = logger
	enabled = categories.IsCategoryEnabled
	mu.Unlock()

	Get(CategoryBoot).Info("logging initialized",
		zap.String("level", level.String()),
		zap.String("encoding", zcfg.Encoding))
	return nil
}

func parseLevel(s string) (zapcore.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "info":
		return zapcore.InfoLevel, nil
	case "debug":
		return zapcore.DebugLevel, nil
	case "warn", "warning":
		return zapcore.WarnLevel, nil
	case "error":
		return zapcore.ErrorLevel, nil
	default:
		return zapcore.InfoLevel, fmt.Errorf("unknown log level %q", s)
	}
}

// SetLoggerForTest replaces the root logger and returns a function restoring the previous one.
func SetLoggerForTest(l *zap.Logger) func() {
	mu.Lock()
	prevRoot, prevEnabled := root, enabled
	root = l
	enabled = func(string) bool { return true }
	mu.Unlock()
	return func() {
		mu.Lock()
		root, enabled = prevRoot, prevEnabled
		mu.Unlock()
	}
}

// Get returns the logger for the given category.
// Returns a no-op logger if the category is disabled.
func Get(category Category) *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	if !enabled(string(category)) {
		return zap.NewNop()
	}
	return root.Named(string(category))
}

// Sync flushes buffered log entries.
func Sync() error {
	mu.RLock()
	l := root
	mu.RUnlock()
	return l.Sync()
}

// Store logs an info message in the store category.
func Store(msg string, fields ...zap.Field) { Get(CategoryStore).Info(msg, fields...) }

// StoreDebug logs a debug message in the store category.
func StoreDebug(msg string, fields ...zap.Field) { Get(CategoryStore).Debug(msg, fields...) }

// KernelDebug logs a debug message in the kernel category.
func KernelDebug(msg string, fields ...zap.Field) { Get(CategoryKernel).Debug(msg, fields...) }

// Planner logs an info message in the planner category.
func Planner(msg string, fields ...zap.Field) { Get(CategoryPlanner).Info(msg, fields...) }

// PlannerDebug logs a debug message in the planner category.
func PlannerDebug(msg string, fields ...zap.Field) { Get(CategoryPlanner).Debug(msg, fields...) }

// IPC logs an info message in the ipc category.
func IPC(msg string, fields ...zap.Field) { Get(CategoryIPC).Info(msg, fields...) }

// IPCDebug logs a debug message in the ipc category.
func IPCDebug(msg string, fields ...zap.Field) { Get(CategoryIPC).Debug(msg, fields...) }

// Timer measures one operation.
type Timer struct {
	category Category
	op       string
	start    time.Time
}

// StartTimer starts timing an operation in a category.
func StartTimer(category Category, operation string) *Timer {
	return &Timer{
		category: category,
		op:       operation,
		start:    time.Now(),
	}
}

// Stop ends the timer, logging at debug level or warning past the slow threshold.
func (t *Timer) Stop() time.Duration {
	return t.StopWithThreshold(slowThreshold)
}

// StopWithThreshold logs a warning if duration exceeds threshold
func (t *Timer) StopWithThreshold(threshold time.Duration) time.Duration {
	elapsed := time.Since(t.start)
	l := Get(t.category)
	if elapsed > threshold {
		l.Warn("slow operation", zap.String("op", t.op), zap.Duration("elapsed", elapsed), zap.Duration("threshold", threshold))
	} else {
		l.Debug("operation completed", zap.String("op", t.op), zap.Duration("elapsed", elapsed))
	}
	return elapsed
}
