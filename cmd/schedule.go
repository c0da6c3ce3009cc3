package cmd

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/whenfree/whenfree/internal/calendar"
	"github.com/whenfree/whenfree/internal/engine"
)

func newScheduleCmd() *cobra.Command {
	var (
		cfgPath string
		user    string
		from    string
		to      string
		tz      string
	)

	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Print the merged schedule across all linked accounts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSchedule(cmd, cfgPath, user, from, to, tz)
		},
	}

	cmd.Flags().StringVar(&cfgPath, "config", "", "Path to the config file (default: user config dir)")
	cmd.Flags().StringVar(&user, "user", "default", "User identifier")
	cmd.Flags().StringVar(&from, "from", time.Now().Format("2006-01-02"), "First day of the range (YYYY-MM-DD)")
	cmd.Flags().StringVar(&to, "to", "", "Last day of the range, inclusive (defaults to --from)")
	cmd.Flags().StringVar(&tz, "tz", "", "IANA timezone for the range (defaults to the configured timezone)")

	return cmd
}

func runSchedule(cmd *cobra.Command, cfgPath, user, from, to, tz string) error {
	application, err := newApp(cfgPath, nil, nil)
	if err != nil {
		return err
	}
	defer application.Close()

	window, err := resolveWindow(application, from, to, tz)
	if err != nil {
		return err
	}

	schedule, err := application.engine.GetSchedule(cmd.Context(), user, window)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Schedule for %s: %d event(s)\n", window, len(schedule.Events))
	for _, ev := range schedule.Events {
		printEvent(out, ev, window.Location)
	}
	return nil
}

func printEvent(out io.Writer, ev calendar.Event, loc *time.Location) {
	if ev.AllDay {
		fmt.Fprintf(out, "  %s  all day      %s [%s]\n",
			ev.Start.In(loc).Format("2006-01-02"), ev.Summary, ev.CalendarID)
		return
	}
	fmt.Fprintf(out, "  %s  %s-%s  %s [%s]\n",
		ev.Start.In(loc).Format("2006-01-02"),
		ev.Start.In(loc).Format("15:04"),
		ev.End.In(loc).Format("15:04"),
		ev.Summary, ev.CalendarID)
}

// resolveWindow builds the request window from the shared --from/--to/--tz
// flags, falling back to the configured timezone.
func resolveWindow(application *app, from, to, tz string) (engine.Window, error) {
	loc := application.loc
	if tz != "" {
		l, err := time.LoadLocation(tz)
		if err != nil {
			return engine.Window{}, fmt.Errorf("invalid timezone %q: %w", tz, err)
		}
		loc = l
	}
	return engine.ParseWindow(from, to, loc)
}
