// Package cmd holds the cobra subcommands attached to the CLI root.
package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/canscope/canscope/internal/frame"
	"github.com/canscope/canscope/internal/logging"
	"github.com/canscope/canscope/internal/player"
	"github.com/canscope/canscope/internal/trc"
)

// CreateReplayCmd creates the replay command.
func CreateReplayCmd() *cobra.Command {
	var speed float64
	var maxSpeed bool
	var logJSON bool

	cmd := &cobra.Command{
		Use:   "replay <trace.trc>",
		Short: "Replay a trace file to stdout",
		Long: `Reads a TRC trace file and prints its records with the original ` +
			`inter-frame timing, scaled by the speed multiplier.`,
		Args: cobra.ExactArgs(1),
		Run: func(_ *cobra.Command, args []string) {
			path := args[0]

			loggingConfig := logging.Config{
				Level:  "warn",
				Format: "text",
			}
			if logJSON {
				loggingConfig.Format = "json"
			}
			logging.Initialize(loggingConfig)
			logger := logging.GetLogger("replay")

			trace, err := trc.ReadFile(path)
			if err != nil {
				logger.Error("failed to read trace", "error", err, "path", path)
				os.Exit(1)
			}

			n := 0
			done := make(chan struct{})
			p := player.New(func(f frame.Frame) {
				n++
				offset := f.Timestamp.Sub(trace.Start)
				fmt.Printf("%11.3f  %-8s %s  %s\n",
					offset.Seconds(), f.IDString(), f.Dir, displayData(f))
			}, logger, player.WithStateHook(func(st player.State) {
				if st == player.Stopped {
					close(done)
				}
			}))

			if err := p.Load(trace.Records); err != nil {
				logger.Error("failed to load trace", "error", err)
				os.Exit(1)
			}

			if maxSpeed {
				speed = player.SpeedMax
			}
			if err := p.Play(speed); err != nil {
				logger.Error("failed to start replay", "error", err)
				os.Exit(1)
			}
			<-done

			fmt.Printf("replayed %d records in %s\n", n, trace.Duration().Round(time.Millisecond))
		},
	}

	cmd.Flags().Float64VarP(&speed, "speed", "s", 1, "Speed multiplier")
	cmd.Flags().BoolVar(&maxSpeed, "max", false, "Replay with zero inter-frame delay")
	cmd.Flags().BoolVar(&logJSON, "log-json", false, "Use JSON log format")
	return cmd
}

func displayData(f frame.Frame) string {
	if f.IsError() {
		return f.ErrKind.String()
	}
	return f.DataString()
}
