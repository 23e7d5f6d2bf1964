package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/ipcheck/ipcheck/pkg/defaults"
	"github.com/ipcheck/ipcheck/pkg/ipclass"
	"github.com/ipcheck/ipcheck/pkg/jsonutil"
	"github.com/ipcheck/ipcheck/pkg/stream"
	"github.com/ipcheck/ipcheck/pkg/ui"
)

type classified struct {
	IP string `json:"ip"`
	ipclass.Result
}

// runClassify classifies addresses locally. It needs no browser or config.
// The exit code is ExitUserError when any token is not an IP address.
func runClassify(args []string, stdin io.Reader, stdout io.Writer) int {
	fs := flag.NewFlagSet("classify", flag.ContinueOnError)
	asJSON := fs.Bool("json", false, "Print one JSON object per address")
	listFile := fs.String("l", "", "File with one address per line, - for stdin")
	noColor := fs.Bool("no-color", false, "Disable colored output")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s classify [flags] <ip>...\n\n", defaults.ToolName)
		fmt.Fprintf(os.Stderr, "Report whether each address is public, private or invalid.\n\n")
		fmt.Fprintf(os.Stderr, "Flags:\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return defaults.ExitSuccess
		}
		return defaults.ExitUserError
	}
	ui.SetNoColor(*noColor || os.Getenv("NO_COLOR") != "")

	targets, err := collectTargets(fs.Args(), *listFile, stdin)
	if err != nil {
		ui.PrintError(err.Error())
		return defaults.ExitUserError
	}
	if len(targets) == 0 {
		ui.PrintError("no addresses given")
		return defaults.ExitUserError
	}

	code := defaults.ExitSuccess
	for _, ip := range targets {
		c := classified{IP: ip, Result: ipclass.Classify(ip)}
		if !c.Valid {
			code = defaults.ExitUserError
		}
		if *asJSON {
			data, err := jsonutil.Marshal(c)
			if err != nil {
				ui.PrintError(err.Error())
				return defaults.ExitInternalError
			}
			fmt.Fprintln(stdout, string(data))
			continue
		}
		fmt.Fprintln(stdout, classifyLine(c))
	}
	return code
}

func classifyLine(c classified) string {
	label := fmt.Sprintf("%-7s", c.Type)
	switch c.Type {
	case ipclass.Public:
		label = ui.SuccessStyle.Render(label)
	case ipclass.Private:
		label = ui.WarningStyle.Render(label)
	default:
		label = ui.ErrorStyle.Render(label)
	}
	return fmt.Sprintf("%-40s %s  %s", c.IP, label, ui.MutedStyle.Render(stream.CategoryOf(c.Result)))
}
