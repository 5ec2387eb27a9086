package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jbctechsolutions/agentsight/analyzer"
	"github.com/jbctechsolutions/agentsight/config"
	"github.com/jbctechsolutions/agentsight/core"
	"github.com/jbctechsolutions/agentsight/metrics"
	"github.com/jbctechsolutions/agentsight/runner"
	"github.com/jbctechsolutions/agentsight/server"
)

// pipelineFlags holds the common flags shared by every subcommand that
// starts a runner: logging, rotation, and the optional HTTP server.
type pipelineFlags struct {
	quiet       bool
	rotateLogs  bool
	maxLogSizeMB int64
	runServer   bool
	serverPort  uint16
	logFile     string
}

func addPipelineFlags(cmd *cobra.Command, f *pipelineFlags) {
	cmd.Flags().BoolVarP(&f.quiet, "quiet", "q", false, "Suppress console event output and the end-of-run event count")
	cmd.Flags().BoolVar(&f.rotateLogs, "rotate-logs", false, "Enable size-based log rotation")
	cmd.Flags().Int64Var(&f.maxLogSizeMB, "max-log-size", 10, "Rotation threshold in megabytes")
	cmd.Flags().BoolVar(&f.runServer, "server", false, "Start the health/log-tail HTTP server")
	cmd.Flags().Uint16Var(&f.serverPort, "server-port", 8080, "Port for --server")
	cmd.Flags().StringVar(&f.logFile, "log-file", "agentsight.log", "Path to the NDJSON log file")
}

// sslFlags holds the SSL-pipeline-specific analyzer toggles shared by
// the ssl, trace, and record subcommands.
type sslFlags struct {
	sseMerge           bool
	httpParser         bool
	httpRawData        bool
	httpFilters        []string
	sslFilters         []string
	disableAuthRemoval bool
	binaryPath         string
}

// addSslFlags registers the SSL-pipeline flags with empty/zero
// defaults; applyConfigDefaults fills in config-file values for any
// flag the user did not pass explicitly.
func addSslFlags(cmd *cobra.Command, f *sslFlags) {
	cmd.Flags().BoolVar(&f.sseMerge, "sse-merge", false, "Reassemble SSE chunks into merged events")
	cmd.Flags().BoolVar(&f.httpParser, "http-parser", false, "Parse HTTP messages out of SSL payloads")
	cmd.Flags().BoolVar(&f.httpRawData, "http-raw-data", false, "Include the raw HTTP body on parsed events")
	cmd.Flags().StringArrayVar(&f.httpFilters, "http-filter", nil, "HTTP filter expression (repeatable)")
	cmd.Flags().StringArrayVar(&f.sslFilters, "ssl-filter", nil, "SSL filter expression (repeatable)")
	cmd.Flags().BoolVar(&f.disableAuthRemoval, "disable-auth-removal", false, "Do not strip auth headers from parsed HTTP events")
	cmd.Flags().StringVar(&f.binaryPath, "binary-path", "", "Path to the SSL tracer binary")
}

// applyConfigDefaults fills unset SSL-pipeline flags from the loaded
// config file, mirroring the "CLI flags override config file values"
// precedence.
func applyConfigDefaults(cmd *cobra.Command, f *sslFlags, cfg *config.Config) {
	if !cmd.Flags().Changed("http-filter") {
		f.httpFilters = cfg.HttpFilters
	}
	if !cmd.Flags().Changed("ssl-filter") {
		f.sslFilters = cfg.SslFilters
	}
	if !cmd.Flags().Changed("binary-path") && f.binaryPath == "" {
		f.binaryPath = cfg.BinaryPath
	}
}

// buildSslAnalyzerChain assembles the analyzer pipeline shared by ssl,
// trace, and record: timestamp normalization, SSL filtering, optional
// SSE reassembly, optional HTTP parsing/filtering/auth redaction.
// The returned closer must be invoked once the pipeline has drained so
// that per-instance filter counters merge into the global registry.
func buildSslAnalyzerChain(f sslFlags) ([]core.Analyzer, func() error, error) {
	var chain []core.Analyzer
	chain = append(chain, analyzer.NewTimestampNormalizer())

	sslFilter, err := analyzer.NewSslFilter(f.sslFilters)
	if err != nil {
		return nil, nil, fmt.Errorf("compiling ssl filters: %w", err)
	}
	sslFilter.SetDebug(false)
	chain = append(chain, sslFilter)

	if f.sseMerge {
		chain = append(chain, analyzer.NewSSEProcessor())
	}

	if f.httpParser {
		parser := analyzer.NewHttpParser()
		if !f.httpRawData {
			parser.DisableRawData()
		}
		chain = append(chain, parser)

		if len(f.httpFilters) > 0 {
			chain = append(chain, analyzer.NewHttpFilter(f.httpFilters))
		}
		if !f.disableAuthRemoval {
			chain = append(chain, analyzer.NewAuthHeaderRemover())
		}
	}

	closer := func() error { return sslFilter.Close() }
	return chain, closer, nil
}

// appendOutputAnalyzers wires the FileLogger and stdout Output stages
// onto the end of an analyzer chain, honoring rotation flags.
func appendOutputAnalyzers(chain []core.Analyzer, f pipelineFlags) ([]core.Analyzer, func() error, error) {
	var fileLogger *analyzer.FileLogger
	var err error
	if f.rotateLogs {
		fileLogger, err = analyzer.NewFileLoggerWithMaxSize(f.logFile, f.maxLogSizeMB)
	} else {
		fileLogger, err = analyzer.NewFileLogger(f.logFile)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("opening log file %q: %w", f.logFile, err)
	}

	chain = append(chain, fileLogger)
	if !f.quiet {
		chain = append(chain, analyzer.NewOutputAnalyzer())
	}
	return chain, fileLogger.Close, nil
}

func resolveConfigPath(explicit string) string {
	if explicit != "" {
		return explicit
	}
	if _, err := os.Stat("agentsight.yaml"); err == nil {
		return "agentsight.yaml"
	}
	home, err := os.UserHomeDir()
	if err == nil {
		candidate := filepath.Join(home, ".config", "agentsight", "agentsight.yaml")
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	return "agentsight.yaml"
}

// runPipeline starts r, optionally starts the HTTP server, drains the
// resulting stream until ctx is cancelled (by signal or duration
// timeout), then prints accumulated global filter metrics and invokes
// every closer.
func runPipeline(ctx context.Context, r core.Runner, f pipelineFlags, closers ...func() error) error {
	stream, err := r.Run(ctx)
	if err != nil {
		return fmt.Errorf("starting %s: %w", r.Name(), err)
	}

	if f.runServer {
		srv := server.New(f.serverPort, f.logFile)
		go func() {
			if err := srv.Start(); err != nil {
				fmt.Fprintf(os.Stderr, "agentsight: server: %v\n", err)
			}
		}()
	}

	count := 0
	for range stream {
		count++
	}

	for _, closer := range closers {
		closer() //nolint:errcheck
	}

	metrics.PrintGlobalSSLFilterMetrics()
	metrics.PrintGlobalHTTPFilterMetrics()

	if !f.quiet {
		fmt.Fprintf(os.Stderr, "agentsight: %d events processed\n", count)
	}
	return nil
}

// signalContext returns a context cancelled on SIGINT/SIGTERM, and
// additionally bounded by duration if it is non-zero.
func signalContext(duration time.Duration) (context.Context, context.CancelFunc) {
	var ctx context.Context
	var cancel context.CancelFunc
	if duration > 0 {
		ctx, cancel = context.WithTimeout(context.Background(), duration)
	} else {
		ctx, cancel = context.WithCancel(context.Background())
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case <-sigCh:
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, cancel
}

func main() {
	var configPath string
	var duration time.Duration

	rootCmd := &cobra.Command{
		Use:   "agentsight",
		Short: "AI agent observability collector",
		Long:  "Captures, filters, and reassembles SSL/process/system telemetry from AI agent traffic.",
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file path (default: ./agentsight.yaml, then ~/.config/agentsight/agentsight.yaml)")

	loadConfig := func() (*config.Config, error) {
		return config.Load(resolveConfigPath(configPath))
	}

	// -------------------------------------------------------------------------
	// ssl — run the SSL tracer through the full analyzer pipeline
	// -------------------------------------------------------------------------
	var sf sslFlags
	var pf pipelineFlags
	sslCmd := &cobra.Command{
		Use:   "ssl [-- binary-args...]",
		Short: "Trace SSL traffic through the filter/reassembly pipeline",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			applyConfigDefaults(cmd, &sf, cfg)

			chain, filterCloser, err := buildSslAnalyzerChain(sf)
			if err != nil {
				return err
			}
			chain, outputCloser, err := appendOutputAnalyzers(chain, pf)
			if err != nil {
				return err
			}

			r := runner.NewSslRunner(sf.binaryPath).WithArgs(args)
			for _, a := range chain {
				r.AddAnalyzer(a)
			}

			ctx, cancel := signalContext(0)
			defer cancel()
			return runPipeline(ctx, r, pf, filterCloser, outputCloser)
		},
	}
	addPipelineFlags(sslCmd, &pf)
	addSslFlags(sslCmd, &sf)

	// -------------------------------------------------------------------------
	// process — run the process-metrics tracer
	// -------------------------------------------------------------------------
	var processPF pipelineFlags
	var processBinaryPath string
	processCmd := &cobra.Command{
		Use:   "process [-- binary-args...]",
		Short: "Trace process lifecycle events",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			if processBinaryPath == "" {
				processBinaryPath = cfg.BinaryPath
			}

			chain, outputCloser, err := appendOutputAnalyzers(nil, processPF)
			if err != nil {
				return err
			}

			r := runner.NewProcessRunner(processBinaryPath).WithArgs(args)
			for _, a := range chain {
				r.AddAnalyzer(a)
			}

			ctx, cancel := signalContext(0)
			defer cancel()
			return runPipeline(ctx, r, processPF, outputCloser)
		},
	}
	addPipelineFlags(processCmd, &processPF)
	processCmd.Flags().StringVar(&processBinaryPath, "binary-path", "", "Path to the process tracer binary")

	// -------------------------------------------------------------------------
	// system — standalone resource sampler
	// -------------------------------------------------------------------------
	var systemPF pipelineFlags
	var (
		sysInterval     uint64
		sysPID          uint32
		sysComm         string
		sysCPUThreshold float64
		sysMemThreshold uint64
		sysNoChildren   bool
	)
	systemCmd := &cobra.Command{
		Use:   "system",
		Short: "Sample CPU/memory/thread usage for a target process or the whole system",
		RunE: func(cmd *cobra.Command, args []string) error {
			chain, outputCloser, err := appendOutputAnalyzers(nil, systemPF)
			if err != nil {
				return err
			}

			r := runner.NewSystemRunner().Interval(sysInterval).IncludeChildren(!sysNoChildren)
			if sysPID != 0 {
				r.PID(sysPID)
			}
			if sysComm != "" {
				r.Comm(sysComm)
			}
			if cmd.Flags().Changed("cpu-threshold") {
				r.CPUThreshold(sysCPUThreshold)
			}
			if cmd.Flags().Changed("memory-threshold") {
				r.MemoryThresholdMB(sysMemThreshold)
			}
			for _, a := range chain {
				r.AddAnalyzer(a)
			}

			ctx, cancel := signalContext(duration)
			defer cancel()
			return runPipeline(ctx, r, systemPF, outputCloser)
		},
	}
	addPipelineFlags(systemCmd, &systemPF)
	systemCmd.Flags().Uint64VarP(&sysInterval, "interval", "i", 10, "Sampling interval in seconds")
	systemCmd.Flags().Uint32VarP(&sysPID, "pid", "p", 0, "Target PID (default: system-wide)")
	systemCmd.Flags().StringVarP(&sysComm, "comm", "c", "", "Target process name substring")
	systemCmd.Flags().Float64Var(&sysCPUThreshold, "cpu-threshold", 0, "Alert threshold for CPU percent")
	systemCmd.Flags().Uint64Var(&sysMemThreshold, "memory-threshold", 0, "Alert threshold for memory in MB")
	systemCmd.Flags().BoolVar(&sysNoChildren, "no-children", false, "Do not aggregate child process metrics")
	systemCmd.Flags().DurationVarP(&duration, "duration", "d", 0, "Stop automatically after this long (0 = run until signalled)")

	// -------------------------------------------------------------------------
	// trace / record — multi-source capture (ssl + process + system)
	// -------------------------------------------------------------------------
	newTraceCmd := func(use, short string, recordDefaults bool) *cobra.Command {
		var tf sslFlags
		var tpf pipelineFlags
		var (
			enableSsl     bool
			enableProcess bool
			enableSystem  bool
			comm          string
			pid           uint32
			traceDuration time.Duration
			sslUID        uint32
			sslHandshake  bool
			interval      uint64
			cpuThreshold  float64
			memThreshold  uint64
			noChildren    bool
		)

		cmd := &cobra.Command{
			Use:   use,
			Short: short,
			RunE: func(cmd *cobra.Command, args []string) error {
				cfg, err := loadConfig()
				if err != nil {
					return fmt.Errorf("loading config: %w", err)
				}
				applyConfigDefaults(cmd, &tf, cfg)

				agent := runner.NewAgentRunner("agentsight-" + use)

				if enableSsl || (!enableSsl && !enableProcess && !enableSystem) {
					chain, filterCloser, err := buildSslAnalyzerChain(tf)
					if err != nil {
						return err
					}
					sslArgs := sslRunnerArgs(pid, comm, sslUID, sslHandshake)
					r := runner.NewSslRunner(tf.binaryPath).WithArgs(sslArgs)
					for _, a := range chain {
						r.AddAnalyzer(a)
					}
					agent.AddRunner(r)
					defer filterCloser() //nolint:errcheck
				}

				if enableProcess {
					r := runner.NewProcessRunner(tf.binaryPath)
					if pid != 0 {
						r.WithPID(pid)
					}
					agent.AddRunner(r)
				}

				if enableSystem {
					sr := runner.NewSystemRunner().Interval(interval).IncludeChildren(!noChildren)
					if pid != 0 {
						sr.PID(pid)
					}
					if comm != "" {
						sr.Comm(comm)
					}
					if cmd.Flags().Changed("cpu-threshold") {
						sr.CPUThreshold(cpuThreshold)
					}
					if cmd.Flags().Changed("memory-threshold") {
						sr.MemoryThresholdMB(memThreshold)
					}
					agent.AddRunner(sr)
				}

				chain, outputCloser, err := appendOutputAnalyzers(nil, tpf)
				if err != nil {
					return err
				}
				for _, a := range chain {
					agent.AddGlobalAnalyzer(a)
				}

				ctx, cancel := signalContext(traceDuration)
				defer cancel()
				return runPipeline(ctx, agent, tpf, outputCloser)
			},
		}

		addPipelineFlags(cmd, &tpf)
		addSslFlags(cmd, &tf)
		cmd.Flags().BoolVar(&enableSsl, "ssl", recordDefaults, "Capture SSL traffic")
		cmd.Flags().BoolVar(&enableProcess, "process", recordDefaults, "Capture process lifecycle events")
		cmd.Flags().BoolVar(&enableSystem, "system", recordDefaults, "Capture system resource samples")
		cmd.Flags().StringVarP(&comm, "comm", "c", "", "Target process name substring")
		cmd.Flags().Uint32VarP(&pid, "pid", "p", 0, "Target PID")
		cmd.Flags().DurationVarP(&traceDuration, "duration", "d", 0, "Stop automatically after this long")
		cmd.Flags().Uint32Var(&sslUID, "ssl-uid", 0, "Only trace SSL traffic from this UID")
		cmd.Flags().BoolVar(&sslHandshake, "ssl-handshake", false, "Include TLS handshake events")
		cmd.Flags().Uint64VarP(&interval, "interval", "i", 10, "System sampling interval in seconds")
		cmd.Flags().Float64Var(&cpuThreshold, "cpu-threshold", 0, "System CPU alert threshold percent")
		cmd.Flags().Uint64Var(&memThreshold, "memory-threshold", 0, "System memory alert threshold MB")
		cmd.Flags().BoolVar(&noChildren, "no-children", false, "Do not aggregate child process metrics")

		return cmd
	}

	traceCmd := newTraceCmd("trace", "Capture SSL, process, and system telemetry together", false)
	recordCmd := newTraceCmd("record", "Pre-configured trace alias for monitoring an agent CLI's own traffic", true)

	rootCmd.AddCommand(sslCmd, processCmd, systemCmd, traceCmd, recordCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// sslRunnerArgs builds the extra argv passed through to the SSL tracer
// binary for the per-target filters trace/record expose.
func sslRunnerArgs(pid uint32, comm string, uid uint32, handshake bool) []string {
	var args []string
	if pid != 0 {
		args = append(args, "--pid", fmt.Sprintf("%d", pid))
	}
	if comm != "" {
		args = append(args, "--comm", comm)
	}
	if uid != 0 {
		args = append(args, "--uid", fmt.Sprintf("%d", uid))
	}
	if handshake {
		args = append(args, "--handshake")
	}
	return args
}
