package util

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Configuration carries everything the binary needs to wire an interpreter:
// build identity, heap behaviour and the presentation knobs of the REPL.
// Values come from an optional config file with command-line flags layered
// on top.
type Configuration struct {
	Version   string `yaml:"-"`
	BuildDate string `yaml:"-"`
	Commit    string `yaml:"-"`

	DumpAST     bool   `yaml:"dump_ast"`
	DisableANSI bool   `yaml:"disable_ansi"`
	HistoryFile string `yaml:"history_file"`

	DebugHeap           bool `yaml:"debug_heap"`
	GCOnEveryAllocation bool `yaml:"gc_on_every_allocation"`

	LogLevel string `yaml:"log_level"`
	LogFile  string `yaml:"log_file"`

	ScriptArgs []string `yaml:"-"`
}

// LoadConfigFile reads a YAML configuration file into config. A missing file
// is not an error; flags and defaults cover that case.
func LoadConfigFile(path string, config *Configuration) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, config); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}
