// Package main provides the CLI entrypoint for oscreplay.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/verte-zerg/oscreplay/internal/config"
	"github.com/verte-zerg/oscreplay/internal/logline"
	"github.com/verte-zerg/oscreplay/internal/model"
	"github.com/verte-zerg/oscreplay/internal/playback"
	"github.com/verte-zerg/oscreplay/internal/report"
	"github.com/verte-zerg/oscreplay/internal/store"
	"github.com/verte-zerg/oscreplay/internal/transport"
	"github.com/verte-zerg/oscreplay/internal/tui"
)

const (
	defaultLogLevel = "info"
	defaultHistory  = true
	defaultLast     = 20
)

var (
	uiFiles     []string
	uiLoops     []int
	uiNoHistory bool
	logLevel    string
	logFile     string

	sendPreset int
	sendLoop   bool

	historyLast int
)

func main() {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "oscreplay",
		Short:         "Replay OSC command logs to " + fmt.Sprintf("%s:%d", transport.DefaultHost, transport.DefaultPort),
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE:          runUICmd,
	}

	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", defaultLogLevel, "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "log file used while the TUI is open")
	rootCmd.Flags().StringArrayVar(&uiFiles, "file", nil, "preselect a file for a preset as N=PATH (repeatable)")
	rootCmd.Flags().IntSliceVar(&uiLoops, "loop", nil, "enable looping for preset N (repeatable)")
	rootCmd.Flags().BoolVar(&uiNoHistory, "no-history", false, "do not record runs in the history database")

	rootCmd.AddCommand(newSendCmd())
	rootCmd.AddCommand(newParseCmd())
	rootCmd.AddCommand(newHistoryCmd())
	rootCmd.AddCommand(newConfigCmd())

	return rootCmd
}

type settings struct {
	level   log.Level
	logPath string
	history bool
}

func loadSettings(cmd *cobra.Command) (settings, error) {
	fileCfg, err := config.LoadConfig(config.DefaultConfigPath())
	if err != nil {
		return settings{}, fmt.Errorf("failed to load config: %w", err)
	}
	applyStringConfig(cmd, "log-level", &logLevel, fileCfg.Log.Level)
	applyStringConfig(cmd, "log-file", &logFile, fileCfg.Log.File)

	level, err := config.ParseLevel(logLevel)
	if err != nil {
		return settings{}, fmt.Errorf("--log-level: %w", err)
	}
	s := settings{
		level:   level,
		logPath: logFile,
		history: defaultHistory,
	}
	if s.logPath == "" {
		s.logPath = config.DefaultLogPath()
	}
	if fileCfg.History.Enabled != nil {
		s.history = *fileCfg.History.Enabled
	}
	return s, nil
}

func runUICmd(cmd *cobra.Command, _ []string) error {
	cfg, err := loadSettings(cmd)
	if err != nil {
		return err
	}
	if uiNoHistory {
		cfg.history = false
	}
	presets, err := parsePresetFiles(uiFiles)
	if err != nil {
		return err
	}
	if err := validateLoops(uiLoops); err != nil {
		return err
	}

	logger, closeLog, err := openFileLogger(cfg.logPath, cfg.level)
	if err != nil {
		return err
	}
	defer closeLog()

	var recorder tui.Recorder
	if cfg.history {
		st, err := store.Open(config.DefaultDBPath())
		if err != nil {
			return fmt.Errorf("failed to open history db: %w", err)
		}
		defer func() {
			if cerr := st.Close(); cerr != nil {
				logger.Error("failed to close history db", "err", cerr)
			}
		}()
		recorder = st
	}

	client := transport.NewDefaultClient()
	sink := &tui.ProgramSink{}
	sup := playback.NewSupervisor(client, sink, logger)
	for index, path := range presets {
		if err := sup.SelectFile(index, path); err != nil {
			return err
		}
	}
	for _, n := range uiLoops {
		if err := sup.SetLoop(n-1, true); err != nil {
			return err
		}
	}

	logger.Info("starting", "endpoint", client.Endpoint())
	ui := tui.NewModel(sup, recorder, logger, client.Endpoint())
	program := tea.NewProgram(ui, tea.WithAltScreen())
	sink.Attach(program)
	_, runErr := program.Run()
	sup.StopAll()
	sup.Wait()
	sink.Close()
	if runErr != nil {
		return fmt.Errorf("failed to run TUI: %w", runErr)
	}
	return nil
}

func newSendCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "send PATH",
		Short: "Replay one log file without the TUI",
		Args:  cobra.ExactArgs(1),
		RunE:  runSendCmd,
	}
	cmd.Flags().IntVar(&sendPreset, "preset", 1, "preset slot to use (1-4)")
	cmd.Flags().BoolVar(&sendLoop, "loop", false, "replay the file until interrupted")
	return cmd
}

func runSendCmd(cmd *cobra.Command, args []string) error {
	cfg, err := loadSettings(cmd)
	if err != nil {
		return err
	}
	if sendPreset < 1 || sendPreset > model.NumPresets {
		return fmt.Errorf("--preset must be between 1 and %d", model.NumPresets)
	}
	index := sendPreset - 1

	logger := newLogger(os.Stderr, cfg.level)

	result := &resultSink{}
	sinks := playback.MultiSink{playback.LogSink{Logger: logger}, result}
	if isTerminal(os.Stderr) && cfg.level > log.DebugLevel {
		sinks = append(sinks, newStatusLine(os.Stderr))
	}

	client := transport.NewDefaultClient()
	sup := playback.NewSupervisor(client, sinks, logger)
	if err := sup.SelectFile(index, args[0]); err != nil {
		return err
	}
	if err := sup.SetLoop(index, sendLoop); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("sending", "path", args[0], "endpoint", client.Endpoint(), "loop", sendLoop)
	if err := sup.Start(index); err != nil {
		return err
	}
	finished := make(chan struct{})
	go func() {
		sup.Wait()
		close(finished)
	}()
	select {
	case <-ctx.Done():
		logger.Info("interrupted, stopping")
		sup.StopAll()
		<-finished
	case <-finished:
	}

	run, ok := result.summary()
	if !ok {
		return errors.New("replay ended without a summary")
	}
	if cfg.history {
		recordRun(run, logger)
	}
	if run.Outcome == model.OutcomeFailed {
		return errors.New(run.Error)
	}
	return nil
}

func recordRun(run model.RunSummary, logger *log.Logger) {
	st, err := store.Open(config.DefaultDBPath())
	if err != nil {
		logger.Warn("failed to open history db", "err", err)
		return
	}
	defer func() {
		if cerr := st.Close(); cerr != nil {
			logger.Warn("failed to close history db", "err", cerr)
		}
	}()
	if _, err := st.InsertRun(context.Background(), run); err != nil {
		logger.Warn("failed to record run", "err", err)
	}
}

func newParseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "parse PATH",
		Short: "List the commands a replay of PATH would send",
		Args:  cobra.ExactArgs(1),
		RunE:  runParseCmd,
	}
}

func runParseCmd(cmd *cobra.Command, args []string) error {
	lines, err := logline.ReadLines(args[0])
	if err != nil {
		return fmt.Errorf("failed to read log: %w", err)
	}
	out := cmd.OutOrStdout()
	return report.WriteListing(out, report.BuildListing(lines), report.ShouldUseColor(out))
}

func newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recorded replay runs",
		Args:  cobra.NoArgs,
		RunE:  runHistoryCmd,
	}
	cmd.Flags().IntVar(&historyLast, "last", defaultLast, "number of recent runs to show (0 for all)")
	return cmd
}

func runHistoryCmd(cmd *cobra.Command, _ []string) error {
	if historyLast < 0 {
		return fmt.Errorf("--last must be >= 0")
	}
	st, err := store.Open(config.DefaultDBPath())
	if err != nil {
		return fmt.Errorf("failed to open history db: %w", err)
	}
	defer func() {
		if cerr := st.Close(); cerr != nil {
			logErrf("failed to close history db: %v\n", cerr)
		}
	}()
	runs, err := st.ListRuns(cmd.Context(), historyLast)
	if err != nil {
		return fmt.Errorf("failed to list runs: %w", err)
	}
	out := cmd.OutOrStdout()
	return report.WriteRuns(out, runs, report.ShouldUseColor(out))
}

func newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Create/open config file",
		Args:  cobra.NoArgs,
		RunE:  runConfigCmd,
	}
}

func runConfigCmd(_ *cobra.Command, _ []string) error {
	path := config.DefaultConfigPath()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if _, err := os.Stat(path); err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("failed to stat config: %w", err)
		}
		if err := os.WriteFile(path, []byte(defaultConfigTemplate()), 0o644); err != nil {
			return fmt.Errorf("failed to write config: %w", err)
		}
	}

	editor := strings.TrimSpace(os.Getenv("EDITOR"))
	if editor == "" {
		editor = "vi"
	}
	parts := strings.Fields(editor)
	if len(parts) == 0 {
		return fmt.Errorf("editor command is empty")
	}
	cmd := exec.Command(parts[0], append(parts[1:], path)...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("failed to open editor: %w", err)
	}
	return nil
}

func defaultConfigTemplate() string {
	return fmt.Sprintf(`# oscreplay configuration
# Uncomment a value to enable it. CLI flags override config values.
# The destination (%s:%d) and message pacing are fixed.

[log]
# level = %q            # debug, info, warn or error
# file = %q

[history]
# enabled = %t          # Record finished runs for "oscreplay history"
`,
		transport.DefaultHost,
		transport.DefaultPort,
		defaultLogLevel,
		config.DefaultLogPath(),
		defaultHistory,
	)
}

// parsePresetFiles parses N=PATH pairs into a preset index to path map.
func parsePresetFiles(values []string) (map[int]string, error) {
	out := make(map[int]string, len(values))
	for _, value := range values {
		num, path, ok := strings.Cut(value, "=")
		if !ok {
			return nil, fmt.Errorf("--file %q: expected N=PATH", value)
		}
		n, err := strconv.Atoi(strings.TrimSpace(num))
		if err != nil || n < 1 || n > model.NumPresets {
			return nil, fmt.Errorf("--file %q: preset must be between 1 and %d", value, model.NumPresets)
		}
		path = strings.TrimSpace(path)
		if path == "" {
			return nil, fmt.Errorf("--file %q: path is empty", value)
		}
		out[n-1] = path
	}
	return out, nil
}

func validateLoops(values []int) error {
	for _, n := range values {
		if n < 1 || n > model.NumPresets {
			return fmt.Errorf("--loop %d: preset must be between 1 and %d", n, model.NumPresets)
		}
	}
	return nil
}

func openFileLogger(path string, level log.Level) (*log.Logger, func(), error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open log file: %w", err)
	}
	logger := newLogger(f, level)
	return logger, func() {
		if cerr := f.Close(); cerr != nil {
			logErrf("failed to close log file: %v\n", cerr)
		}
	}, nil
}

func newLogger(w io.Writer, level log.Level) *log.Logger {
	logger := log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		Prefix:          "oscreplay",
	})
	logger.SetLevel(level)
	return logger
}

func applyStringConfig(cmd *cobra.Command, name string, target, value *string) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func logErrf(format string, args ...any) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		// Best-effort logging to stderr.
		_ = err
	}
}
