package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/rabeh-analyse/ore/internal/interpreter"
	"github.com/rabeh-analyse/ore/internal/lexer"
	"github.com/rabeh-analyse/ore/internal/parser"
	"github.com/rabeh-analyse/ore/internal/repl"
	"github.com/rabeh-analyse/ore/internal/runtime"
	"github.com/rabeh-analyse/ore/internal/util"
)

var (
	// Version is stamped at build time.
	Version   = "dev"
	BuildDate = "unknown"
	Commit    = "unknown"

	help    bool
	version bool
	// script config
	evaluate string
	dumpAST  bool
	// heap config
	debugHeap           bool
	gcOnEveryAllocation bool
	// repl config
	disableANSI bool
	historyFile string
	configFile  string
	// log config
	logLevel string
	logFile  string
)

func init() {
	flag.BoolVar(&help, "help", false, "Display help information and exit")
	flag.BoolVar(&help, "h", false, "Display help information and exit")
	flag.BoolVar(&version, "version", false, "Display version information and exit")
	flag.BoolVar(&version, "v", false, "Display version information and exit")
	// script config
	flag.StringVar(&evaluate, "e", "", "Evaluate the argument as a script and exit")
	flag.BoolVar(&dumpAST, "dump-ast", false, "Print the parsed AST before evaluating")
	// heap config
	flag.BoolVar(&debugHeap, "debug-heap", false, "Verify the heap after every collection")
	flag.BoolVar(&gcOnEveryAllocation, "gc-on-every-allocation", false, "Collect garbage on every allocation")
	// repl config
	flag.BoolVar(&disableANSI, "disable-ansi", false, "Disable ANSI color output")
	flag.StringVar(&historyFile, "history-file", "", "REPL history file. Default is ~/.ore_history")
	flag.StringVar(&configFile, "config", "", "Configuration file. Default is ~/.ore.yml")
	// log config
	flag.StringVar(&logLevel, "log-level", "error", "Log level: debug, info, warn, error")
	flag.StringVar(&logFile, "log-file", "", "Log file path (if not set, logs to stderr)")
}

func main() {
	flag.Parse()

	loggerOptions := &slog.HandlerOptions{
		AddSource: false,
		Level:     logLevelFromString(logLevel),
	}
	logWriter := configureLogWriter()
	defaultLogger := slog.New(slog.NewJSONHandler(logWriter, loggerOptions))
	slog.SetDefault(defaultLogger)

	if version {
		printVersion()
		return
	}

	if help {
		printHelp()
		return
	}

	config := loadConfiguration()

	i := interpreter.New(config)

	switch {
	case evaluate != "":
		os.Exit(runSource(i, config, "-e", evaluate))
	case flag.NArg() > 0:
		os.Exit(runScript(i, config, flag.Arg(0)))
	default:
		repl.New(i, config).Run()
	}
}

// loadConfiguration reads the YAML config file, then lets command-line flags
// override whatever it set.
func loadConfiguration() util.Configuration {
	config := util.Configuration{
		Version:   Version,
		BuildDate: BuildDate,
		Commit:    Commit,
	}

	path := configFile
	if path == "" {
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, ".ore.yml")
		}
	}
	if path != "" {
		if err := util.LoadConfigFile(path, &config); err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
			os.Exit(2)
		}
	}

	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "dump-ast":
			config.DumpAST = dumpAST
		case "debug-heap":
			config.DebugHeap = debugHeap
		case "gc-on-every-allocation":
			config.GCOnEveryAllocation = gcOnEveryAllocation
		case "disable-ansi":
			config.DisableANSI = disableANSI
		case "history-file":
			config.HistoryFile = historyFile
		case "log-level":
			config.LogLevel = logLevel
		case "log-file":
			config.LogFile = logFile
		}
	})

	// The script path itself is args[0]; passed arguments follow it.
	if flag.NArg() > 0 {
		config.ScriptArgs = flag.Args()
	}

	return config
}

func runScript(i *interpreter.Interpreter, config util.Configuration, path string) int {
	source, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ore: %v\n", err)
		return 1
	}
	return runSource(i, config, path, string(source))
}

func runSource(i *interpreter.Interpreter, config util.Configuration, name, source string) int {
	l := lexer.New(source)
	p := parser.New(l)
	program := p.ParseProgram()

	if len(p.Errors()) != 0 {
		line, col := util.LineAndColumn(source, p.FirstErrorPosition())
		fmt.Fprintln(os.Stderr, util.ContextLines(source, line, col))
		for _, msg := range p.Errors() {
			fmt.Fprintf(os.Stderr, "%s: %s\n", name, msg)
		}
		return 1
	}

	if config.DumpAST {
		fmt.Println(program.String())
	}

	result := i.Run(program)
	if result.IsException() {
		exc := result.AsCell().(*runtime.Exception)
		fmt.Fprintln(os.Stderr, "Backtrace (most recent calls first):")
		fmt.Fprintln(os.Stderr, interpreter.RenderBacktrace(exc))
		return 1
	}
	return 0
}

func configureLogWriter() *os.File {
	var logWriter *os.File
	var err error
	if logFile != "" {
		if err := os.MkdirAll(filepath.Dir(logFile), 0o755); err != nil {
			fmt.Fprintf(os.Stderr, "failed to create log directory for '%s': %v; falling back to stderr\n", logFile, err)
			return os.Stderr
		}
		logWriter, err = os.OpenFile(logFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to open log file '%s': %v; falling back to stderr\n", logFile, err)
			logWriter = os.Stderr
		}
	} else {
		logWriter = os.Stderr
	}
	return logWriter
}

func printVersion() {
	fmt.Printf("ore version 'v%s' %s %s\n", Version, BuildDate, Commit)
}

func printHelp() {
	fmt.Printf(`Usage: ore [options] [filename [args...]]

Options:
  -e <source>              Evaluate the argument as a script and exit.
  -dump-ast                Print the parsed AST before evaluating.
  -debug-heap              Verify the heap after every collection.
  -gc-on-every-allocation  Collect garbage on every allocation.
  -disable-ansi            Disable ANSI color output.
  -history-file <path>     REPL history file. Default is ~/.ore_history.
  -config <path>           Configuration file. Default is ~/.ore.yml.
  -help                    Display this help information and exit.
  -version                 Display version information and exit.
  -log-level <level>       Set the log level: debug, info, warn, error. Default is 'error'.
  -log-file <path>         Specify a log file to write logs. Default is stderr.

Details:
This is the Ore programming language.

Examples:
  ore                           Start an interactive session
  ore myfile.ore                Execute the provided Ore file
  ore myfile.ore arg1 arg2      Execute the file with command-line arguments
  ore -gc-on-every-allocation   Stress the collector while evaluating

Version Information:
  Version:    %s
  Build Date: %s
  Commit:     %s
`, Version, BuildDate, Commit)
}

func logLevelFromString(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelError
	}
}
