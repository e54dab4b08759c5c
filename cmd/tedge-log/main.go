// Command tedge-log views and analyzes the protocol captures of tedge-agent.
//
// Capture files are written by tedge-agent when started with -protocol-log
// or when log.protocol_log is set in its configuration.
//
// Usage:
//
//	tedge-log <command> [flags] <file.cbor>
//
// A capture path of "-" reads the capture from the standard input.
//
// Commands:
//
//	view     View capture file in human-readable format
//	export   Export capture file to JSONL or CSV format
//	filter   Filter capture file and write to new file
//	stats    Show statistics about the capture file
//
// Examples:
//
//	# View all events
//	tedge-log view agent.cbor
//
//	# View the command lifecycle only
//	tedge-log view --layer operation agent.cbor
//
//	# View the traffic of the restart operation
//	tedge-log view --operation restart agent.cbor
//
//	# Export to CSV
//	tedge-log export --format csv -o agent.csv agent.cbor
//
//	# Keep the messages of one entity
//	tedge-log filter --topic te/device/child-foo// -o child.cbor agent.cbor
//
//	# Show statistics
//	tedge-log stats agent.cbor
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/Ruadhri17/thin-edge.io/cmd/tedge-log/commands"
)

const usage = `tedge-log - thin-edge.io Protocol Capture Analyzer

Usage:
  tedge-log <command> [flags] <file.cbor>

Commands:
  view     View capture file in human-readable format
  export   Export capture file to JSONL or CSV format
  filter   Filter capture file and write to new file
  stats    Show statistics about the capture file

A capture path of "-" reads the standard input.

Use "tedge-log <command> -help" for more information about a command.
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	var err error
	switch cmd {
	case "view":
		err = runView(args)
	case "export":
		err = runExport(args)
	case "filter":
		err = runFilter(args)
	case "stats":
		err = runStats(args)
	case "-h", "-help", "--help", "help":
		fmt.Print(usage)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newFlagSet(name, synopsis string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "tedge-log %s - %s\n\nUsage:\n  tedge-log %s [flags] <file.cbor>\n\nFlags:\n", name, synopsis, name)
		fs.PrintDefaults()
	}
	return fs
}

// capturePath returns the positional capture file argument.
func capturePath(fs *flag.FlagSet) string {
	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Error: capture file path required")
		fs.Usage()
		os.Exit(1)
	}
	return fs.Arg(0)
}

// selection registers the flags shared by view and filter.
func selection(fs *flag.FlagSet) *commands.Selection {
	s := &commands.Selection{}
	fs.StringVar(&s.Layer, "layer", "", "Filter by layer (transport, session, operation)")
	fs.StringVar(&s.Direction, "direction", "", "Filter by direction (in, out)")
	fs.StringVar(&s.Category, "category", "", "Filter by category (message, control, state, error)")
	fs.StringVar(&s.Topic, "topic", "", "Filter by topic prefix")
	fs.StringVar(&s.Operation, "operation", "", "Filter command events by operation (restart, software_list, ...)")
	fs.StringVar(&s.ConnID, "conn-id", "", "Filter by connection ID")
	fs.StringVar(&s.ClientID, "client-id", "", "Filter by MQTT client id")
	fs.StringVar(&s.TimeStart, "time-start", "", "Filter by start time (RFC3339)")
	fs.StringVar(&s.TimeEnd, "time-end", "", "Filter by end time (RFC3339)")
	return s
}

func runView(args []string) error {
	fs := newFlagSet("view", "View capture file in human-readable format")
	sel := selection(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	path := capturePath(fs)

	filter, err := sel.Filter()
	if err != nil {
		return err
	}
	return commands.RunView(path, filter, os.Stdout)
}

func runExport(args []string) error {
	fs := newFlagSet("export", "Export capture file to JSONL or CSV format")
	format := fs.String("format", "jsonl", "Output format (jsonl, csv)")
	output := fs.String("o", "", "Output file (default: stdout)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	return commands.RunExport(capturePath(fs), *format, *output)
}

func runFilter(args []string) error {
	fs := newFlagSet("filter", "Filter capture file and write to new file")
	sel := selection(fs)
	output := fs.String("o", "", "Output file (required)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	path := capturePath(fs)

	if *output == "" {
		fmt.Fprintln(os.Stderr, "Error: output file (-o) required")
		fs.Usage()
		os.Exit(1)
	}

	filter, err := sel.Filter()
	if err != nil {
		return err
	}
	n, err := commands.RunFilter(path, filter, *output)
	if err != nil {
		return err
	}
	fmt.Printf("Filtered %d events to %s\n", n, *output)
	return nil
}

func runStats(args []string) error {
	fs := newFlagSet("stats", "Show statistics about the capture file")
	if err := fs.Parse(args); err != nil {
		return err
	}
	return commands.RunStats(capturePath(fs), os.Stdout)
}
