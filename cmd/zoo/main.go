// Package main provides the zoo CLI: catalog listing, architecture
// summaries, probe forward passes and the HTTP catalog service.
package main

import (
	"fmt"
	"io"
	"os"
)

const version = "v0.1.0"

const usage = `Born model zoo %s

Usage:
  zoo version
  zoo list
  zoo dataset <name>
  zoo summary <name>
  zoo probe [-config file] [-batch n] [-workers n] [-weights file] <name>
  zoo export [-dtype F32|F16|BF16] -o file <name>
  zoo bert [-config file] [-hf-config file] [-weights file] [-text-len n]
  zoo serve [-config file]
`

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "zoo: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, out io.Writer) error {
	if len(args) == 0 {
		fmt.Fprintf(out, usage, version)
		return nil
	}
	cmd, rest := args[0], args[1:]
	switch cmd {
	case "version":
		fmt.Fprintf(out, "Born model zoo %s\n", version)
		return nil
	case "list":
		return cmdList(out)
	case "dataset":
		return cmdDataset(rest, out)
	case "summary":
		return cmdSummary(rest, out)
	case "probe":
		return cmdProbe(rest, out)
	case "export":
		return cmdExport(rest, out)
	case "bert":
		return cmdBert(rest, out)
	case "serve":
		return cmdServe(rest)
	case "help", "-h", "--help":
		fmt.Fprintf(out, usage, version)
		return nil
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
}
