package logger

import "go.uber.org/zap"

// Symbol-aware logging helpers.
// These functions log with the symbol as a structured field, not in the message.
//
// Usage:
//
//	// Instead of:
//	logger.Infow(logger.SymbolDispatcher + " coalesced request", "query", q)
//
//	// Use:
//	logger.DispatcherInfow("coalesced request", "query", q)
//
// This makes logs queryable by symbol and keeps messages clean.

// Component symbols, one per spec.md §2 component.
const (
	SymbolDispatcher    = "⟳" // Dispatcher: coalescing/worker pool
	SymbolArchive       = "⊞" // Archive: segmented store
	SymbolUpstream      = "⇄" // Upstream Client
	SymbolCredPool      = "⊛" // Credential Pool
	SymbolTopicTracker  = "⟲" // Topic Tracker
	SymbolAnalysis      = "⊙" // Analysis Driver
	SymbolAudit         = "⊔" // Audit store
)

// DispatcherInfow logs an info message tagged with the Dispatcher symbol.
func DispatcherInfow(msg string, keysAndValues ...interface{}) {
	if Logger != nil {
		fields := append([]interface{}{FieldSymbol, SymbolDispatcher}, keysAndValues...)
		Logger.Infow(msg, fields...)
	}
}

// DispatcherWarnw logs a warning message tagged with the Dispatcher symbol.
func DispatcherWarnw(msg string, keysAndValues ...interface{}) {
	if Logger != nil {
		fields := append([]interface{}{FieldSymbol, SymbolDispatcher}, keysAndValues...)
		Logger.Warnw(msg, fields...)
	}
}

// ArchiveInfow logs an info message tagged with the Archive symbol.
func ArchiveInfow(msg string, keysAndValues ...interface{}) {
	if Logger != nil {
		fields := append([]interface{}{FieldSymbol, SymbolArchive}, keysAndValues...)
		Logger.Infow(msg, fields...)
	}
}

// ArchiveDebugw logs a debug message tagged with the Archive symbol.
func ArchiveDebugw(msg string, keysAndValues ...interface{}) {
	if Logger != nil {
		fields := append([]interface{}{FieldSymbol, SymbolArchive}, keysAndValues...)
		Logger.Debugw(msg, fields...)
	}
}

// UpstreamWarnw logs a warning message tagged with the Upstream Client symbol.
func UpstreamWarnw(msg string, keysAndValues ...interface{}) {
	if Logger != nil {
		fields := append([]interface{}{FieldSymbol, SymbolUpstream}, keysAndValues...)
		Logger.Warnw(msg, fields...)
	}
}

// TopicTrackerInfow logs an info message tagged with the Topic Tracker symbol.
func TopicTrackerInfow(msg string, keysAndValues ...interface{}) {
	if Logger != nil {
		fields := append([]interface{}{FieldSymbol, SymbolTopicTracker}, keysAndValues...)
		Logger.Infow(msg, fields...)
	}
}

// WithSymbol returns a logger with the given symbol as a field.
// For ad-hoc symbol usage not covered by the helpers above.
func WithSymbol(symbol string) *zap.SugaredLogger {
	return Logger.With(FieldSymbol, symbol)
}
