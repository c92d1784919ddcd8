package logger

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestInit(t *testing.T) {
	Init()

	if Log.GetLevel() != zerolog.Disabled {
		t.Errorf("Init() should produce nop logger (Disabled level), got %v", Log.GetLevel())
	}
}

func TestLogFunctions(t *testing.T) {
	tmpDir := t.TempDir()
	cfg := &LoggingConfig{MaxSizeMB: 1}
	if err := InitWithFile(tmpDir, cfg); err != nil {
		t.Fatalf("InitWithFile failed: %v", err)
	}
	t.Cleanup(func() { CloseFileWriter() })

	if Debug() == nil {
		t.Error("Debug() should return non-nil event")
	}
	if Info() == nil {
		t.Error("Info() should return non-nil event")
	}
	if Warn() == nil {
		t.Error("Warn() should return non-nil event")
	}
	if Error() == nil {
		t.Error("Error() should return non-nil event")
	}
	// Note: Don't test Fatal() as it would exit
}

func TestWithField(t *testing.T) {
	Init()

	logger := WithField("test_key", "test_value")
	_ = logger // nop logger still returns a valid sub-logger; just validate it doesn't panic
}

func TestLoggerReinitialize(t *testing.T) {
	tmpDir := t.TempDir()
	cfg := &LoggingConfig{MaxSizeMB: 1}

	Init()
	if Log.GetLevel() != zerolog.Disabled {
		t.Error("Init should produce nop logger")
	}

	if err := InitWithFile(tmpDir, cfg); err != nil {
		t.Fatalf("InitWithFile failed: %v", err)
	}
	t.Cleanup(func() { CloseFileWriter() })

	if Log.GetLevel() == zerolog.Disabled {
		t.Error("InitWithFile should produce active logger")
	}
}

func TestLoggingConfigDefaults(t *testing.T) {
	cfg := &LoggingConfig{}
	if !cfg.IsFileEnabled() {
		t.Error("IsFileEnabled should default to true when nil")
	}

	falseVal := false
	cfg.FileEnabled = &falseVal
	if cfg.IsFileEnabled() {
		t.Error("IsFileEnabled should return false when explicitly set")
	}

	trueVal := true
	cfg.FileEnabled = &trueVal
	if !cfg.IsFileEnabled() {
		t.Error("IsFileEnabled should return true when explicitly set")
	}

	cfg = &LoggingConfig{}
	if cfg.GetMaxSizeMB() != 50 {
		t.Errorf("GetMaxSizeMB should default to 50, got %d", cfg.GetMaxSizeMB())
	}
	if cfg.GetMaxAgeDays() != 7 {
		t.Errorf("GetMaxAgeDays should default to 7, got %d", cfg.GetMaxAgeDays())
	}
	if cfg.GetMaxBackups() != 3 {
		t.Errorf("GetMaxBackups should default to 3, got %d", cfg.GetMaxBackups())
	}

	cfg = &LoggingConfig{
		MaxSizeMB:  20,
		MaxAgeDays: 14,
		MaxBackups: 5,
	}
	if cfg.GetMaxSizeMB() != 20 {
		t.Errorf("GetMaxSizeMB should return 20, got %d", cfg.GetMaxSizeMB())
	}
	if cfg.GetMaxAgeDays() != 14 {
		t.Errorf("GetMaxAgeDays should return 14, got %d", cfg.GetMaxAgeDays())
	}
	if cfg.GetMaxBackups() != 5 {
		t.Errorf("GetMaxBackups should return 5, got %d", cfg.GetMaxBackups())
	}
}

func TestInitWithFile(t *testing.T) {
	tmpDir := t.TempDir()

	cfg := &LoggingConfig{
		MaxSizeMB:  1,
		MaxAgeDays: 1,
		MaxBackups: 1,
	}

	if err := InitWithFile(tmpDir, cfg); err != nil {
		t.Fatalf("InitWithFile failed: %v", err)
	}

	logPath := GetLogFilePath()
	if logPath == "" {
		t.Error("GetLogFilePath should return non-empty path after InitWithFile")
	}

	expectedPath := filepath.Join(tmpDir, "nozem.log")
	if logPath != expectedPath {
		t.Errorf("GetLogFilePath = %q, want %q", logPath, expectedPath)
	}

	Info().Msg("test log message")

	if err := CloseFileWriter(); err != nil {
		t.Errorf("CloseFileWriter failed: %v", err)
	}

	if _, err := os.Stat(expectedPath); os.IsNotExist(err) {
		t.Error("Log file should have been created")
	}

	content, err := os.ReadFile(expectedPath)
	if err != nil {
		t.Fatalf("Failed to read log file: %v", err)
	}
	if len(content) == 0 {
		t.Error("Log file should have content")
	}
	if !strings.Contains(string(content), "test log message") {
		t.Error("Log file should contain the test message")
	}
}

func TestInitWithFileDisabled(t *testing.T) {
	fileWriter = nil

	falseVal := false
	cfg := &LoggingConfig{
		FileEnabled: &falseVal,
	}

	if err := InitWithFile("/some/path", cfg); err != nil {
		t.Fatalf("InitWithFile with disabled file logging should not fail: %v", err)
	}

	if GetLogFilePath() != "" {
		t.Error("GetLogFilePath should return empty when file logging is disabled")
	}
}

func TestInitWithFileEmptyDir(t *testing.T) {
	fileWriter = nil

	if err := InitWithFile("", &LoggingConfig{}); err != nil {
		t.Fatalf("InitWithFile with empty dir should not fail: %v", err)
	}

	if GetLogFilePath() != "" {
		t.Error("GetLogFilePath should return empty when logsDir is empty")
	}
}

func TestInitWithFileNilConfig(t *testing.T) {
	fileWriter = nil

	if err := InitWithFile("/some/path", nil); err != nil {
		t.Fatalf("InitWithFile with nil config should not fail: %v", err)
	}

	if GetLogFilePath() != "" {
		t.Error("GetLogFilePath should return empty when config is nil")
	}
}

func TestCloseFileWriterWhenNil(t *testing.T) {
	fileWriter = nil

	if err := CloseFileWriter(); err != nil {
		t.Errorf("CloseFileWriter should return nil when fileWriter is nil, got: %v", err)
	}
}

func TestSetContext(t *testing.T) {
	Init()
	defer ClearContext()

	SetContext("web-app", "build")

	ctx := getContext()
	if ctx.Unit != "web-app" {
		t.Errorf("Unit = %q, want %q", ctx.Unit, "web-app")
	}
	if ctx.Phase != "build" {
		t.Errorf("Phase = %q, want %q", ctx.Phase, "build")
	}

	ClearContext()
	ctx = getContext()
	if ctx.Unit != "" || ctx.Phase != "" {
		t.Error("ClearContext should reset both fields")
	}
}

func TestSetContextPartial(t *testing.T) {
	Init()
	defer ClearContext()

	SetContext("web-app", "")
	ctx := getContext()
	if ctx.Unit != "web-app" {
		t.Errorf("Unit = %q, want %q", ctx.Unit, "web-app")
	}
	if ctx.Phase != "" {
		t.Errorf("Phase should be empty, got %q", ctx.Phase)
	}

	SetContext("", "test")
	ctx = getContext()
	if ctx.Unit != "" {
		t.Errorf("Unit should be empty, got %q", ctx.Unit)
	}
	if ctx.Phase != "test" {
		t.Errorf("Phase = %q, want %q", ctx.Phase, "test")
	}
}

func TestContextInFileLog(t *testing.T) {
	tmpDir := t.TempDir()

	cfg := &LoggingConfig{MaxSizeMB: 1}
	if err := InitWithFile(tmpDir, cfg); err != nil {
		t.Fatalf("InitWithFile failed: %v", err)
	}
	defer CloseFileWriter()
	defer ClearContext()

	SetContext("web-app", "build")
	Info().Msg("context test")

	CloseFileWriter()

	content, err := os.ReadFile(filepath.Join(tmpDir, "nozem.log"))
	if err != nil {
		t.Fatalf("Failed to read log file: %v", err)
	}
	if !strings.Contains(string(content), "web-app") {
		t.Error("Log should contain unit name")
	}
	if !strings.Contains(string(content), "build") {
		t.Error("Log should contain phase name")
	}
}

func TestContextInFileLogPartial(t *testing.T) {
	tmpDir := t.TempDir()

	cfg := &LoggingConfig{MaxSizeMB: 1}
	if err := InitWithFile(tmpDir, cfg); err != nil {
		t.Fatalf("InitWithFile failed: %v", err)
	}
	defer CloseFileWriter()
	defer ClearContext()

	SetContext("web-app", "")
	Info().Msg("partial context test")

	CloseFileWriter()

	content, err := os.ReadFile(filepath.Join(tmpDir, "nozem.log"))
	if err != nil {
		t.Fatalf("Failed to read log file: %v", err)
	}
	if !strings.Contains(string(content), "web-app") {
		t.Error("Log should contain unit name")
	}
	if strings.Contains(string(content), `"phase"`) {
		t.Error("Log should not contain phase field when empty")
	}
}

func TestContextNotInLogWhenEmpty(t *testing.T) {
	tmpDir := t.TempDir()

	cfg := &LoggingConfig{MaxSizeMB: 1}
	if err := InitWithFile(tmpDir, cfg); err != nil {
		t.Fatalf("InitWithFile failed: %v", err)
	}
	defer CloseFileWriter()
	defer ClearContext()

	ClearContext()
	Info().Msg("no context test")

	CloseFileWriter()

	content, err := os.ReadFile(filepath.Join(tmpDir, "nozem.log"))
	if err != nil {
		t.Fatalf("Failed to read log file: %v", err)
	}
	if strings.Contains(string(content), `"unit"`) {
		t.Error("Log should not contain unit field when empty")
	}
	if strings.Contains(string(content), `"phase"`) {
		t.Error("Log should not contain phase field when empty")
	}
}

// resetLoggerState resets all global logger state for test isolation
func resetLoggerState() {
	fileWriter = nil
	logContext = logContextData{}
}

func TestCloseFileWriterResetsState(t *testing.T) {
	resetLoggerState()

	tmpDir := t.TempDir()
	cfg := &LoggingConfig{MaxSizeMB: 1}

	if err := InitWithFile(tmpDir, cfg); err != nil {
		t.Fatalf("InitWithFile failed: %v", err)
	}

	if GetLogFilePath() == "" {
		t.Error("GetLogFilePath should return path after InitWithFile")
	}

	if err := CloseFileWriter(); err != nil {
		t.Errorf("CloseFileWriter failed: %v", err)
	}

	if GetLogFilePath() != "" {
		t.Error("GetLogFilePath should return empty after CloseFileWriter")
	}

	if err := CloseFileWriter(); err != nil {
		t.Errorf("Double CloseFileWriter should not error: %v", err)
	}
}

func TestInitWithFilePermissionError(t *testing.T) {
	resetLoggerState()

	err := InitWithFile("/dev/null/deeply/nested/path/that/fails", &LoggingConfig{})
	if err == nil {
		if GetLogFilePath() != "" {
			t.Error("GetLogFilePath should return empty for invalid path")
		}
		return
	}
	if !strings.Contains(err.Error(), "failed to create logs directory") {
		t.Errorf("Error should mention directory creation, got: %v", err)
	}
}

func TestInitWithFile_NoConsoleOutput(t *testing.T) {
	resetLoggerState()

	tmpDir := t.TempDir()

	oldStderr := os.Stderr
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("Failed to create pipe: %v", err)
	}
	os.Stderr = w

	cfg := &LoggingConfig{MaxSizeMB: 1}
	if err := InitWithFile(tmpDir, cfg); err != nil {
		os.Stderr = oldStderr
		t.Fatalf("InitWithFile failed: %v", err)
	}

	Info().Msg("info test")
	Warn().Msg("warn test")
	Error().Msg("error test")
	Debug().Msg("debug test")

	w.Close()
	os.Stderr = oldStderr

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(r); err != nil {
		t.Fatalf("Failed to read pipe: %v", err)
	}
	r.Close()

	if buf.Len() > 0 {
		t.Errorf("No output should appear on stderr, but got: %q", buf.String())
	}

	CloseFileWriter()
	content, err := os.ReadFile(filepath.Join(tmpDir, "nozem.log"))
	if err != nil {
		t.Fatalf("Failed to read log file: %v", err)
	}
	if !strings.Contains(string(content), "info test") {
		t.Error("Log file should contain info message")
	}
	if !strings.Contains(string(content), "warn test") {
		t.Error("Log file should contain warn message")
	}
	if !strings.Contains(string(content), "error test") {
		t.Error("Log file should contain error message")
	}
}

func TestInitWithFile_DebugLevel(t *testing.T) {
	resetLoggerState()
	tmpDir := t.TempDir()

	cfg := &LoggingConfig{MaxSizeMB: 1}
	if err := InitWithFile(tmpDir, cfg); err != nil {
		t.Fatalf("InitWithFile failed: %v", err)
	}
	defer CloseFileWriter()

	Debug().Msg("debug message")
	CloseFileWriter()

	content, err := os.ReadFile(filepath.Join(tmpDir, "nozem.log"))
	if err != nil {
		t.Fatalf("Failed to read log file: %v", err)
	}
	if !strings.Contains(string(content), "debug message") {
		t.Error("Log file should contain debug message (the file logger runs at debug level)")
	}
}
