package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cagehq/cage/internal/event"
	"github.com/cagehq/cage/internal/hook"
)

func init() {
	rootCmd.AddCommand(hookCmd)
}

var hookCmd = &cobra.Command{
	Use:   "hook <event-type>",
	Short: "Forward one hook event from stdin to the collector (agent hot path)",
	Long: `Reads the raw hook payload from stdin, normalizes it, and makes exactly
one bounded delivery attempt. Delivery failure is spooled locally and still
exits 0: the agent is never blocked by collector unavailability. Exit code
2 means the collector explicitly blocked the operation.

Accepted types: ` + typeList(),
	Args:          cobra.ExactArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	Run: func(cmd *cobra.Command, args []string) {
		typ, ok := event.ParseType(args[0])
		if !ok {
			// Unknown type is an integration bug, not an agent failure.
			fmt.Fprintf(os.Stderr, "cage warning: unknown event type %q, ignoring\n", args[0])
			os.Exit(hook.ExitOK)
		}

		loader, err := loadConfig()
		if err != nil {
			fmt.Fprintf(os.Stderr, "cage warning: %v, using defaults\n", err)
		}
		cfg := configOrDefault(loader)

		os.Exit(hook.New(cfg).Run(typ, os.Stdin))
	},
}

func typeList() string {
	var routes []string
	for _, t := range event.Types() {
		routes = append(routes, t.Route())
	}
	return strings.Join(routes, ", ")
}
