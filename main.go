package main

import (
	"encoding/json"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"syscall"

	"aidiag/logger"
)

// Config arrives as one JSON object in the AIDIAG_CONFIG environment
// variable, assembled by the Lua side of the plugin. The plugin fills in
// every field; Go-side defaults cover only values a bare daemon launch
// would otherwise break on.
type Config struct {
	BeforeLines       int    `json:"before_lines"`
	AfterLines        int    `json:"after_lines"`
	MaxLineLength     int    `json:"max_line_length"` // 0 disables truncation
	ShowLineNumbers   bool   `json:"show_line_numbers"`
	FileHeaderFormat  string `json:"file_header_format"`
	SanitizeFilenames *bool  `json:"sanitize_filenames"` // default true

	MinSeverity    string `json:"min_severity"`
	LiveUpdates    *bool  `json:"live_updates"`    // default true
	UpdateDebounce int    `json:"update_debounce"` // in milliseconds
	RenderTimeout  int    `json:"render_timeout"`  // in milliseconds

	PanelPosition string `json:"panel_position"` // bottom or right
	PanelSize     int    `json:"panel_size"`
	YankRegister  string `json:"yank_register"`

	HistorySize int    `json:"history_size"` // 0 disables archiving
	DataDir     string `json:"data_dir"`

	LogLevel               string `json:"log_level"` // debug, info, warn, error
	DebugImmediateShutdown bool   `json:"debug_immediate_shutdown"`
}

func boolOr(p *bool, def bool) bool {
	if p == nil {
		return def
	}
	return *p
}

type ServerMode string

const (
	ModeDaemon ServerMode = "daemon"
	ModeClient ServerMode = "client"
)

// Setup logger to log to a file in the same directory as the executable.
// Caller must defer Close on the returned logger.
func setupLogger(logLevel string) *logger.FileLogger {
	execPath, err := os.Executable()
	if err != nil {
		log.Fatalf("error getting executable path: %v", err)
	}
	logPath := filepath.Join(filepath.Dir(execPath), "aidiag.log")

	fileLogger, err := logger.Open(logPath, logger.ParseLevel(logLevel))
	if err != nil {
		log.Fatalf("error opening log file: %v", err)
	}
	// The stdlib log package feeds the same file; stdout and stderr belong
	// to the RPC channel.
	log.SetOutput(fileLogger)
	return fileLogger
}

func getSocketPath() string {
	execPath, err := os.Executable()
	if err != nil {
		log.Fatalf("error getting executable path: %v", err)
	}
	return filepath.Join(filepath.Dir(execPath), "aidiag.sock")
}

func getPidPath() string {
	execPath, err := os.Executable()
	if err != nil {
		log.Fatalf("error getting executable path: %v", err)
	}
	return filepath.Join(filepath.Dir(execPath), "aidiag.pid")
}

func defaultDataDir() string {
	execPath, err := os.Executable()
	if err != nil {
		log.Fatalf("error getting executable path: %v", err)
	}
	return filepath.Dir(execPath)
}

func isDaemonRunning() (bool, int) {
	data, err := os.ReadFile(getPidPath())
	if err != nil {
		return false, 0
	}

	pid, err := strconv.Atoi(string(data))
	if err != nil {
		return false, 0
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		return false, 0
	}

	// On Unix, Signal(0) checks if process exists
	err = process.Signal(syscall.Signal(0))
	return err == nil, pid
}

func loadConfig() Config {
	var config Config
	if err := json.Unmarshal([]byte(os.Getenv("AIDIAG_CONFIG")), &config); err != nil {
		log.Fatalf("invalid config: %v", err)
	}
	return config
}

func runDaemon() {
	config := loadConfig()

	logLevel := config.LogLevel
	if logLevel == "" {
		logLevel = "info"
	}

	fileLogger := setupLogger(logLevel)
	defer fileLogger.Close()

	log.Printf("config: %+v", config)

	daemon, err := NewDaemon(config)
	if err != nil {
		log.Fatalf("error creating daemon: %v", err)
	}

	if err := daemon.Start(); err != nil {
		log.Fatalf("error starting daemon: %v", err)
	}
}

func runClient() {
	client := NewClient()

	if err := client.EnsureDaemonRunning(); err != nil {
		log.Fatalf("error ensuring daemon is running: %v", err)
	}

	if err := client.Connect(); err != nil {
		log.Fatalf("error connecting to daemon: %v", err)
	}
}

func main() {
	var mode ServerMode = ModeClient

	if len(os.Args) > 1 && os.Args[1] == "--daemon" {
		mode = ModeDaemon
	}

	switch mode {
	case ModeDaemon:
		runDaemon()
	case ModeClient:
		runClient()
	}
}
