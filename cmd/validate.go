package cmd

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/canscope/canscope/internal/logging"
	"github.com/canscope/canscope/internal/trc"
)

// CreateValidateCmd creates the validate command.
func CreateValidateCmd() *cobra.Command {
	var skipInvalid bool
	var quiet bool

	cmd := &cobra.Command{
		Use:   "validate <trace.trc>",
		Short: "Validate a trace file",
		Long: `Parses a TRC trace file and reports its record count, duration and ` +
			`the first malformed line, if any.`,
		Args: cobra.ExactArgs(1),
		Run: func(_ *cobra.Command, args []string) {
			path := args[0]

			logging.Initialize(logging.Config{Level: "warn", Format: "text"})

			var opts []trc.ReadOption
			if skipInvalid {
				opts = append(opts, trc.SkipInvalid())
			}
			trace, err := trc.ReadFile(path, opts...)
			if err != nil {
				var parseErr *trc.ParseError
				if errors.As(err, &parseErr) {
					fmt.Fprintf(os.Stderr, "%s: line %d: %s\n  %s\n",
						path, parseErr.Line, parseErr.Reason, parseErr.Content)
				} else {
					fmt.Fprintf(os.Stderr, "%s: %v\n", path, err)
				}
				os.Exit(1)
			}

			if !quiet {
				fmt.Printf("%s: %d records, %s\n",
					path, len(trace.Records), trace.Duration().Round(time.Millisecond))
				if !trace.Start.IsZero() {
					fmt.Printf("start time: %s\n", trace.Start.Format("01/02/2006 15:04:05.000"))
				}
			}
		},
	}

	cmd.Flags().BoolVar(&skipInvalid, "skip-invalid", false, "Skip malformed lines instead of aborting")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Suppress summary output")
	return cmd
}
