// Package logging provides categorized structured logging for apiscribe on top of zap.
// Until Initialize is called every logger is a no-op, so packages can log freely
// from tests and library code without configuring anything.
package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Category represents a log category/system
type Category string

const (
	CategoryBoot       Category = "boot"       // CLI startup, config and credentials
	CategoryAnalyzer   Category = "analyzer"   // Source parsing and route discovery
	CategoryPrompt     Category = "prompt"     // Request composition
	CategoryGeneration Category = "generation" // Backend calls
	CategoryArtifact   Category = "artifact"   // Response splitting and file writes
	CategoryVerify     Category = "verify"     // Test engine execution
	CategoryPipeline   Category = "pipeline"   // State transitions
	CategoryHistory    Category = "history"    // Run ledger
	CategoryWatch      Category = "watch"      // File watching
)

// Categories lists every known category.
func Categories() []Category {
	return []Category{
		CategoryBoot, CategoryAnalyzer, CategoryPrompt, CategoryGeneration,
		CategoryArtifact, CategoryVerify, CategoryPipeline, CategoryHistory, CategoryWatch,
	}
}

// Options mirrors config.LoggingConfig to avoid an import cycle.
type Options struct {
	Level      string          // debug, info, warn, error
	Format     string          // console or json
	File       string          // optional extra sink
	Categories map[string]bool // nil enables everything
}

// Logger is a category-scoped printf-style logger.
type Logger struct {
	category Category
	sugar    *zap.SugaredLogger
}

var (
	base       *zap.Logger
	categories map[string]bool
	loggers    = make(map[Category]*Logger)
	mu         sync.RWMutex
)

// Initialize builds the process-wide zap logger from opts.
// It may be called again to reconfigure; existing loggers are discarded.
func Initialize(opts Options) error {
	level := zapcore.InfoLevel
	if opts.Level != "" {
		parsed, err := zapcore.ParseLevel(strings.ToLower(opts.Level))
		if err != nil {
			return fmt.Errorf("invalid log level %q: %w", opts.Level, err)
		}
		level = parsed
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(level)
	cfg.Sampling = nil
	cfg.DisableStacktrace = true
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	switch opts.Format {
	case "", "console":
		cfg.Encoding = "console"
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	case "json":
		cfg.Encoding = "json"
	default:
		return fmt.Errorf("invalid log format %q", opts.Format)
	}

	cfg.OutputPaths = []string{"stderr"}
	if opts.File != "" {
		if err := os.MkdirAll(filepath.Dir(opts.File), 0755); err != nil {
			return fmt.Errorf("failed to create log directory: %w", err)
		}
		cfg.OutputPaths = append(cfg.OutputPaths, opts.File)
	}

	logger, err := cfg.Build()
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}

	SetBase(logger, opts.Categories)
	Get(CategoryBoot).Debug("logging initialized: level=%s format=%s file=%q", level, cfg.Encoding, opts.File)
	return nil
}

// SetBase installs an already-built zap logger. Tests use it with an observer core.
func SetBase(logger *zap.Logger, enabled map[string]bool) {
	mu.Lock()
	defer mu.Unlock()
	base = logger
	categories = enabled
	loggers = make(map[Category]*Logger)
}

// Reset returns the package to its uninitialized no-op state.
func Reset() {
	_ = Sync()
	SetBase(nil, nil)
}

// Sync flushes buffered entries.
func Sync() error {
	mu.RLock()
	defer mu.RUnlock()
	if base == nil {
		return nil
	}
	return base.Sync()
}

// IsCategoryEnabled returns whether a specific category is enabled
func IsCategoryEnabled(category Category) bool {
	mu.RLock()
	defer mu.RUnlock()
	return categoryEnabledLocked(category)
}

func categoryEnabledLocked(category Category) bool {
	if base == nil {
		return false
	}
	if categories == nil {
		return true
	}
	enabled, exists := categories[string(category)]
	return !exists || enabled
}

// Get returns (or creates) a logger for the given category.
// Returns a no-op logger if logging is not initialized or the category is disabled.
func Get(category Category) *Logger {
	mu.RLock()
	if l, ok := loggers[category]; ok {
		mu.RUnlock()
		return l
	}
	mu.RUnlock()

	mu.Lock()
	defer mu.Unlock()

	if l, ok := loggers[category]; ok {
		return l
	}

	l := &Logger{category: category, sugar: zap.NewNop().Sugar()}
	if categoryEnabledLocked(category) {
		l.sugar = base.Named(string(category)).Sugar()
	}
	loggers[category] = l
	return l
}

// Category returns the logger's category.
func (l *Logger) Category() Category { return l.category }

// Debug logs a debug message
func (l *Logger) Debug(format string, args ...interface{}) {
	l.sugar.Debugf(format, args...)
}

// Info logs an informational message
func (l *Logger) Info(format string, args ...interface{}) {
	l.sugar.Infof(format, args...)
}

// Warn logs a warning message
func (l *Logger) Warn(format string, args ...interface{}) {
	l.sugar.Warnf(format, args...)
}

// Error logs an error message
func (l *Logger) Error(format string, args ...interface{}) {
	l.sugar.Errorf(format, args...)
}

// With returns a logger carrying structured key-value context on every entry.
func (l *Logger) With(keysAndValues ...interface{}) *Logger {
	return &Logger{category: l.category, sugar: l.sugar.With(keysAndValues...)}
}

// =============================================================================
// CONVENIENCE FUNCTIONS - Quick logging without getting a logger first
// These are no-ops if the category is disabled
// =============================================================================

// Boot logs to the boot category
func Boot(format string, args ...interface{}) {
	Get(CategoryBoot).Info(format, args...)
}

// BootDebug logs debug to the boot category
func BootDebug(format string, args ...interface{}) {
	Get(CategoryBoot).Debug(format, args...)
}

// Analyzer logs to the analyzer category
func Analyzer(format string, args ...interface{}) {
	Get(CategoryAnalyzer).Info(format, args...)
}

// AnalyzerDebug logs debug to the analyzer category
func AnalyzerDebug(format string, args ...interface{}) {
	Get(CategoryAnalyzer).Debug(format, args...)
}

// AnalyzerWarn logs a warning to the analyzer category
func AnalyzerWarn(format string, args ...interface{}) {
	Get(CategoryAnalyzer).Warn(format, args...)
}

// AnalyzerError logs an error to the analyzer category
func AnalyzerError(format string, args ...interface{}) {
	Get(CategoryAnalyzer).Error(format, args...)
}

// PromptDebug logs debug to the prompt category
func PromptDebug(format string, args ...interface{}) {
	Get(CategoryPrompt).Debug(format, args...)
}

// Generation logs to the generation category
func Generation(format string, args ...interface{}) {
	Get(CategoryGeneration).Info(format, args...)
}

// GenerationDebug logs debug to the generation category
func GenerationDebug(format string, args ...interface{}) {
	Get(CategoryGeneration).Debug(format, args...)
}

// GenerationError logs an error to the generation category
func GenerationError(format string, args ...interface{}) {
	Get(CategoryGeneration).Error(format, args...)
}

// Artifact logs to the artifact category
func Artifact(format string, args ...interface{}) {
	Get(CategoryArtifact).Info(format, args...)
}

// ArtifactDebug logs debug to the artifact category
func ArtifactDebug(format string, args ...interface{}) {
	Get(CategoryArtifact).Debug(format, args...)
}

// ArtifactWarn logs a warning to the artifact category
func ArtifactWarn(format string, args ...interface{}) {
	Get(CategoryArtifact).Warn(format, args...)
}

// ArtifactError logs an error to the artifact category
func ArtifactError(format string, args ...interface{}) {
	Get(CategoryArtifact).Error(format, args...)
}

// Verify logs to the verify category
func Verify(format string, args ...interface{}) {
	Get(CategoryVerify).Info(format, args...)
}

// VerifyDebug logs debug to the verify category
func VerifyDebug(format string, args ...interface{}) {
	Get(CategoryVerify).Debug(format, args...)
}

// VerifyWarn logs a warning to the verify category
func VerifyWarn(format string, args ...interface{}) {
	Get(CategoryVerify).Warn(format, args...)
}

// VerifyError logs an error to the verify category
func VerifyError(format string, args ...interface{}) {
	Get(CategoryVerify).Error(format, args...)
}

// Pipeline logs to the pipeline category
func Pipeline(format string, args ...interface{}) {
	Get(CategoryPipeline).Info(format, args...)
}

// PipelineError logs an error to the pipeline category
func PipelineError(format string, args ...interface{}) {
	Get(CategoryPipeline).Error(format, args...)
}

// HistoryDebug logs debug to the history category
func HistoryDebug(format string, args ...interface{}) {
	Get(CategoryHistory).Debug(format, args...)
}

// HistoryWarn logs a warning to the history category
func HistoryWarn(format string, args ...interface{}) {
	Get(CategoryHistory).Warn(format, args...)
}

// Watch logs to the watch category
func Watch(format string, args ...interface{}) {
	Get(CategoryWatch).Info(format, args...)
}

// WatchDebug logs debug to the watch category
func WatchDebug(format string, args ...interface{}) {
	Get(CategoryWatch).Debug(format, args...)
}

// WatchError logs an error to the watch category
func WatchError(format string, args ...interface{}) {
	Get(CategoryWatch).Error(format, args...)
}

// =============================================================================
// TIMING
// =============================================================================

// Timer measures one operation and logs its duration.
type Timer struct {
	category Category
	op       string
	start    time.Time
}

// StartTimer begins timing an operation
func StartTimer(category Category, operation string) *Timer {
	return &Timer{
		category: category,
		op:       operation,
		start:    time.Now(),
	}
}

// Stop ends the timer and logs the duration
func (t *Timer) Stop() time.Duration {
	elapsed := time.Since(t.start)
	Get(t.category).Debug("%s completed in %v", t.op, elapsed)
	return elapsed
}

// StopWithThreshold logs warning if duration exceeds threshold
func (t *Timer) StopWithThreshold(threshold time.Duration) time.Duration {
	elapsed := time.Since(t.start)
	if elapsed > threshold {
		Get(t.category).Warn("%s took %v (threshold: %v)", t.op, elapsed, threshold)
	} else {
		Get(t.category).Debug("%s completed in %v", t.op, elapsed)
	}
	return elapsed
}
