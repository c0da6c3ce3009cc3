package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/whenfree/whenfree/internal/engine"
)

func newFreeCmd() *cobra.Command {
	var (
		cfgPath      string
		user         string
		from         string
		to           string
		tz           string
		duration     int
		participants []string
	)

	cmd := &cobra.Command{
		Use:   "free",
		Short: "Find free time slots across all linked accounts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFree(cmd, cfgPath, user, from, to, tz, duration, participants)
		},
	}

	cmd.Flags().StringVar(&cfgPath, "config", "", "Path to the config file (default: user config dir)")
	cmd.Flags().StringVar(&user, "user", "default", "User identifier")
	cmd.Flags().StringVar(&from, "from", time.Now().Format("2006-01-02"), "First day of the range (YYYY-MM-DD)")
	cmd.Flags().StringVar(&to, "to", "", "Last day of the range, inclusive (defaults to --from)")
	cmd.Flags().StringVar(&tz, "tz", "", "IANA timezone for the range (defaults to the configured timezone)")
	cmd.Flags().IntVar(&duration, "duration", 30, "Required slot length in minutes")
	cmd.Flags().StringSliceVar(&participants, "with", nil, "Attendee email addresses to include in the free/busy check")

	return cmd
}

func runFree(cmd *cobra.Command, cfgPath, user, from, to, tz string, duration int, participants []string) error {
	application, err := newApp(cfgPath, nil, nil)
	if err != nil {
		return err
	}
	defer application.Close()

	window, err := resolveWindow(application, from, to, tz)
	if err != nil {
		return err
	}

	slots, err := application.engine.FindFreeSlots(cmd.Context(), user, engine.AvailabilityQuery{
		Window:       window,
		Duration:     time.Duration(duration) * time.Minute,
		Participants: participants,
	})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(slots) == 0 {
		fmt.Fprintf(out, "No free %d-minute slots in %s.\n", duration, window)
		return nil
	}

	header := fmt.Sprintf("Free %d-minute slots in %s", duration, window)
	if len(participants) > 0 {
		header += " with " + strings.Join(participants, ", ")
	}
	fmt.Fprintln(out, header+":")
	for _, slot := range slots {
		fmt.Fprintf(out, "  %s to %s\n",
			slot.Start.Format("Mon 2006-01-02 15:04"),
			slot.End.Format("15:04 MST"))
	}
	return nil
}
