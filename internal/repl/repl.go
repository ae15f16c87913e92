package repl

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/peterh/liner"

	"github.com/rabeh-analyse/ore/internal/interpreter"
	"github.com/rabeh-analyse/ore/internal/lexer"
	"github.com/rabeh-analyse/ore/internal/parser"
	"github.com/rabeh-analyse/ore/internal/runtime"
	"github.com/rabeh-analyse/ore/internal/util"
)

const (
	ansiReset   = "\033[0m"
	ansiBold    = "\033[1m"
	ansiGreen   = "\033[32m"
	ansiBlue    = "\033[34m"
	ansiBoldRed = "\033[1m\033[31m"
)

// Repl runs an interactive session against a single persistent interpreter,
// so bindings (and the heap cells they root) survive from line to line.
type Repl struct {
	interp      *interpreter.Interpreter
	config      util.Configuration
	line        *liner.State
	lineNumber  int
	historyPath string
}

func New(interp *interpreter.Interpreter, config util.Configuration) *Repl {
	return &Repl{
		interp:      interp,
		config:      config,
		lineNumber:  1,
		historyPath: historyPath(config),
	}
}

func historyPath(config util.Configuration) string {
	if config.HistoryFile != "" {
		return config.HistoryFile
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".ore_history")
}

func (r *Repl) colorize(text, color string) string {
	if r.config.DisableANSI {
		return text
	}
	return color + text + ansiReset
}

func (r *Repl) prompt(continuation bool) string {
	if continuation {
		return r.colorize("...: ", ansiGreen)
	}
	return r.colorize(fmt.Sprintf("[%d]: ", r.lineNumber), ansiGreen)
}

func (r *Repl) Run() {
	r.line = liner.NewLiner()
	defer r.line.Close()
	r.line.SetCtrlCAborts(true)

	if r.historyPath != "" {
		if f, err := os.Open(r.historyPath); err == nil {
			r.line.ReadHistory(f)
			f.Close()
		}
		defer func() {
			if f, err := os.Create(r.historyPath); err == nil {
				r.line.WriteHistory(f)
				f.Close()
			}
		}()
	}

	for {
		piece, ok := r.readPiece()
		if !ok {
			fmt.Println()
			return
		}
		if strings.TrimSpace(piece) == "" {
			continue
		}

		r.lineNumber++
		r.evalPiece(piece)
	}
}

// readPiece reads lines until every bracket opened so far has been closed,
// so multi-line literals and function bodies can be typed naturally.
func (r *Repl) readPiece() (string, bool) {
	var b strings.Builder

	for {
		input, err := r.line.Prompt(r.prompt(b.Len() > 0))
		if errors.Is(err, io.EOF) {
			return "", false
		}
		if errors.Is(err, liner.ErrPromptAborted) {
			return "", true
		}
		if err != nil {
			return "", false
		}

		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(input)

		if lexer.BracketDepth(b.String()) <= 0 {
			piece := b.String()
			if strings.TrimSpace(piece) != "" {
				r.line.AppendHistory(strings.ReplaceAll(piece, "\n", " "))
			}
			return piece, true
		}
	}
}

func (r *Repl) evalPiece(piece string) {
	l := lexer.New(piece)
	p := parser.New(l)
	program := p.ParseProgram()

	if len(p.Errors()) != 0 {
		line, col := util.LineAndColumn(piece, p.FirstErrorPosition())
		fmt.Println(util.ContextLines(piece, line, col))
		for _, msg := range p.Errors() {
			fmt.Println(r.colorize(msg, ansiBoldRed))
		}
		return
	}

	if r.config.DumpAST {
		fmt.Println(program.String())
	}

	result := r.interp.Run(program)
	if result.IsException() {
		r.printException(result.AsCell().(*runtime.Exception))
		return
	}

	if r.config.DisableANSI {
		fmt.Println(result.Inspect())
	} else {
		fmt.Println(ansiBold + result.Inspect() + ansiReset)
	}
}

func (r *Repl) printException(exc *runtime.Exception) {
	fmt.Println(r.colorize("Backtrace", ansiBoldRed) + " (most recent calls first):")

	if !r.config.DisableANSI {
		fmt.Print(ansiBlue)
	}
	for _, frame := range exc.Backtrace() {
		fmt.Printf("  %s\n", frame.FunctionName)
	}
	if !r.config.DisableANSI {
		fmt.Print(ansiBoldRed)
	}
	fmt.Print(strings.Repeat("-", 30))
	if !r.config.DisableANSI {
		fmt.Print(ansiReset)
	}
	fmt.Println()

	fmt.Printf("%s: %s\n", r.colorize(exc.Kind(), ansiBoldRed), exc.Message())
}
