package logger

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/recall-agent/portfolio-rebalancer/pkg/types"
)

// Logger writes rebalancing activity to a per-day session log file.
type Logger struct {
	agentName string
	logFile   *os.File
	logger    *log.Logger
	mu        sync.Mutex
	logDir    string
}

// LogLevel represents different types of log entries
type LogLevel string

const (
	LogLevelInfo    LogLevel = "INFO"
	LogLevelWarning LogLevel = "WARN"
	LogLevelError   LogLevel = "ERROR"
	LogLevelTrade   LogLevel = "TRADE"
	LogLevelRisk    LogLevel = "RISK"
	LogLevelStatus  LogLevel = "STATUS"
)

// NewLogger creates a file logger under logDir for the named agent.
func NewLogger(agentName, logDir string) (*Logger, error) {
	if logDir == "" {
		logDir = "logs"
	}
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	timestamp := time.Now().Format("2006-01-02")
	filename := fmt.Sprintf("%s_%s.log", agentName, timestamp)
	logPath := filepath.Join(logDir, filename)

	file, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}

	l := &Logger{
		agentName: agentName,
		logFile:   file,
		logger:    log.New(file, "", 0),
		logDir:    logDir,
	}

	l.writeSessionHeader()
	return l, nil
}

func (l *Logger) writeSessionHeader() {
	l.mu.Lock()
	defer l.mu.Unlock()

	header := fmt.Sprintf(`
================================================================================
🚀 REBALANCING SESSION STARTED
================================================================================
Agent: %s
Started: %s
Log File: %s_%s.log
================================================================================
`, l.agentName, time.Now().Format("2006-01-02 15:04:05"),
		l.agentName, time.Now().Format("2006-01-02"))

	l.logger.Print(header)
}

// Log writes a formatted log entry with the specified level
func (l *Logger) Log(level LogLevel, format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()

	timestamp := time.Now().Format("2006-01-02 15:04:05")
	message := fmt.Sprintf(format, args...)
	l.logger.Printf("[%s] [%s] %s", timestamp, level, message)
}

// Info logs an info message
func (l *Logger) Info(format string, args ...interface{}) {
	l.Log(LogLevelInfo, format, args...)
}

// Warning logs a warning message
func (l *Logger) Warning(format string, args ...interface{}) {
	l.Log(LogLevelWarning, format, args...)
}

// Error logs an error message
func (l *Logger) Error(format string, args ...interface{}) {
	l.Log(LogLevelError, format, args...)
}

// Trade logs a trading action
func (l *Logger) Trade(format string, args ...interface{}) {
	l.Log(LogLevelTrade, format, args...)
}

// Risk logs a risk decision
func (l *Logger) Risk(format string, args ...interface{}) {
	l.Log(LogLevelRisk, format, args...)
}

// Status logs portfolio status information
func (l *Logger) Status(format string, args ...interface{}) {
	l.Log(LogLevelStatus, format, args...)
}

// LogCycleSummary logs the outcome of a full rebalancing cycle.
func (l *Logger) LogCycleSummary(trigger string, totalValue, dailyPnLPct float64, planned, filled, rejected, failed int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	timestamp := time.Now().Format("2006-01-02 15:04:05")

	summary := fmt.Sprintf(`
[%s] [STATUS] ==================== CYCLE COMPLETE (%s) ====================
💼 Portfolio Value: $%.2f
📊 Daily PnL: %.2f%%
🔄 Trades: %d planned | %d filled | %d rejected | %d failed
=====================================================================`,
		timestamp, trigger, totalValue, dailyPnLPct*100, planned, filled, rejected, failed)

	l.logger.Println(summary)
}

// LogTradeExecution logs trade execution details.
func (l *Logger) LogTradeExecution(rec types.TradeRecord) {
	l.mu.Lock()
	defer l.mu.Unlock()

	timestamp := time.Now().Format("2006-01-02 15:04:05")

	tradeLog := fmt.Sprintf(`
[%s] [TRADE] ==================== %s %s ====================
📦 Asset: %s
💵 Notional: $%.2f
💰 Price: $%.4f
📋 Outcome: %s`,
		timestamp, rec.Side, rec.Symbol, rec.Symbol, rec.USDAmount, rec.Price, rec.Outcome)

	if rec.Reason != "" {
		tradeLog += fmt.Sprintf("\n📝 Reason: %s", rec.Reason)
	}
	tradeLog += "\n============================================================="

	l.logger.Println(tradeLog)
}

// LogHalt logs a trading halt prominently.
func (l *Logger) LogHalt(reason string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	timestamp := time.Now().Format("2006-01-02 15:04:05")

	haltLog := fmt.Sprintf(`
[%s] [RISK] ==================== TRADING HALTED ====================
🛑 %s
==============================================================`,
		timestamp, reason)

	l.logger.Println(haltLog)
}

// LogRejection logs a risk-pipeline rejection.
func (l *Logger) LogRejection(req types.TradeRequest, reason string) {
	l.Risk("Rejected %s %s $%.2f: %s", req.Side, req.Symbol, req.USDAmount, reason)
}

// LogAllocation logs current vs target weights per asset.
func (l *Logger) LogAllocation(current, target map[string]float64) {
	for symbol, t := range target {
		l.Status("%s: current %.2f%% | target %.2f%% | drift %+.2f%%",
			symbol, current[symbol]*100, t*100, (t-current[symbol])*100)
	}
}

// LogError logs error with context
func (l *Logger) LogError(context string, err error) {
	l.Error("%s: %v", context, err)
}

// Close closes the log file
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.logFile != nil {
		timestamp := time.Now().Format("2006-01-02 15:04:05")
		footer := fmt.Sprintf(`
================================================================================
🛑 REBALANCING SESSION ENDED
================================================================================
Ended: %s
================================================================================

`, timestamp)
		l.logger.Print(footer)

		return l.logFile.Close()
	}
	return nil
}

// GetLogPath returns the current log file path
func (l *Logger) GetLogPath() string {
	timestamp := time.Now().Format("2006-01-02")
	filename := fmt.Sprintf("%s_%s.log", l.agentName, timestamp)
	return filepath.Join(l.logDir, filename)
}
