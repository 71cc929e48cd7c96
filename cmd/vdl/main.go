package main

import (
	"fmt"
	"os"

	"github.com/JaINTP/vdl/internal/config"
)

// Exit codes
const (
	ExitSuccess         = 0
	ExitGeneralError    = 1
	ExitInvalidArgs     = 2
	ExitSearchFailed    = 3
	ExitNotDownloadable = 4
	ExitStorageError    = 5
	ExitDownloadFailed  = 6
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) == 0 {
		printUsage()
		return ExitInvalidArgs
	}

	command := args[0]
	cmdArgs := args[1:]

	switch command {
	case "search":
		return runSearch(cmdArgs)
	case "get":
		return runGet(cmdArgs)
	case "tui":
		return runTUI(cmdArgs)
	case "help", "-h", "--help":
		printUsage()
		return ExitSuccess
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		printUsage()
		return ExitInvalidArgs
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, `Usage: vdl <command> [options]

Commands:
  search  Query the Visual Studio Marketplace and list matching extensions
  get     Download an extension's VSIX package into the downloads bucket
  tui     Interactive search-and-download screen

Run 'vdl <command> -h' for command-specific help.`)
}

// loadConfig builds the effective configuration: defaults, then the optional
// YAML file, then VDL_* environment variables.
func loadConfig(path string) (config.Config, error) {
	cfg := config.Default()

	if path != "" {
		fileCfg, err := config.LoadFromFile(path)
		if err != nil {
			return config.Config{}, err
		}
		cfg = fileCfg
	}

	if err := cfg.LoadFromEnv(); err != nil {
		return config.Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}
