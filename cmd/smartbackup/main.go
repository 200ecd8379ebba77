package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"smartbackup/internal/app"
	"smartbackup/internal/backup"
	"smartbackup/internal/config"

	"github.com/spf13/cobra"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// newApp reads the config and creates an App. The caller must defer a.Close().
// operation identifies the CLI command being run (e.g. "Backup", "Daemon").
func newApp(operation string) (*app.App, error) {
	defaults, err := app.GetDefaults()
	if err != nil {
		return nil, fmt.Errorf("getting defaults: %w", err)
	}

	cfg, err := config.ReadFromFile(defaults["config_path"])
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	a, err := app.NewApp(cfg, operation)
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}

	return a, nil
}

var rootCmd = &cobra.Command{
	Use:   "smartbackup",
	Short: "Personal folder backup with full, incremental and differential modes",
}

// config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg := config.NewConfig(defaults["base_dir"])

		if err := config.Init(defaults["config_path"], cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		fmt.Printf("Configuration initialized at %s\n", defaults["config_path"])
		fmt.Printf("Base Dir: %s\n", defaults["base_dir"])
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "View configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg, err := config.ReadFromFile(defaults["config_path"])
		if err != nil {
			return fmt.Errorf("failed to read config: %w", err)
		}

		fmt.Printf("Configuration from %s:\n\n", defaults["config_path"])
		fmt.Printf("Base Dir: %s\n", cfg.BaseDir)
		fmt.Printf("Log Dir:  %s\n", cfg.LogDir)
		fmt.Printf("Database: %s (%s)\n", cfg.Database.Type, cfg.Database.DataDir)
		return nil
	},
}

// backup command
var backupCmd = &cobra.Command{
	Use:   "backup SOURCE DESTINATION",
	Short: "Run a backup now",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		modeStr, _ := cmd.Flags().GetString("mode")
		mode, err := backup.ParseMode(modeStr)
		if err != nil {
			return err
		}

		a, err := newApp("Backup")
		if err != nil {
			return err
		}
		defer a.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		progress := make(chan backup.Progress, 64)
		done := make(chan struct{})
		go func() {
			defer close(done)
			for p := range progress {
				fmt.Printf("[%d/%d] %s\n", p.Completed, p.TotalPlanned, p.CurrentPath)
			}
		}()

		res, err := a.RunBackup(ctx, args[0], args[1], mode, progress)
		close(progress)
		<-done
		if err != nil {
			return fmt.Errorf("backup failed: %w", err)
		}

		printRunResult(res)
		return nil
	},
}

func printRunResult(res *backup.RunResult) {
	if res.SubstitutedFull {
		fmt.Println("No reference manifest found; performed a full backup instead.")
	}
	if res.Cancelled {
		fmt.Println("Backup cancelled; partial manifest written.")
	}
	fmt.Printf("Folder:  %s\n", res.Folder)
	fmt.Printf("Copied:  %d\nSkipped: %d\nFailed:  %d\n", res.Copied, res.Skipped, res.Failed)
	if len(res.Deleted) > 0 {
		fmt.Printf("Gone since reference: %d\n", len(res.Deleted))
	}
	fmt.Printf("Elapsed: %s\n", res.Duration.Truncate(time.Millisecond))

	for _, o := range res.Outcomes {
		if o.Outcome == backup.OutcomeFailed {
			fmt.Printf("failed: %s (%v)\n", o.Path, o.Err)
		}
	}
}

// schedule command
var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Manage recurring backups",
}

var scheduleAddCmd = &cobra.Command{
	Use:   "add SOURCE DESTINATION",
	Short: "Add a recurring backup",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		name, _ := cmd.Flags().GetString("name")
		modeStr, _ := cmd.Flags().GetString("mode")
		freqStr, _ := cmd.Flags().GetString("frequency")
		at, _ := cmd.Flags().GetString("at")
		every, _ := cmd.Flags().GetInt("every")
		weekdayStr, _ := cmd.Flags().GetString("weekday")
		weekdaysStr, _ := cmd.Flags().GetString("weekdays")
		dayOfMonth, _ := cmd.Flags().GetInt("day-of-month")

		mode, err := backup.ParseMode(modeStr)
		if err != nil {
			return err
		}
		freq, err := backup.ParseFrequency(freqStr)
		if err != nil {
			return err
		}
		hour, minute, err := parseTimeOfDay(at)
		if err != nil {
			return err
		}

		rule := backup.FrequencyRule{
			Frequency:    freq,
			AtHour:       hour,
			AtMinute:     minute,
			HourInterval: every,
			DayOfMonth:   dayOfMonth,
		}
		if weekdayStr != "" {
			d, err := parseWeekday(weekdayStr)
			if err != nil {
				return err
			}
			rule.Weekday = d
		}
		if weekdaysStr != "" {
			for _, part := range strings.Split(weekdaysStr, ",") {
				d, err := parseWeekday(strings.TrimSpace(part))
				if err != nil {
					return err
				}
				rule.Weekdays = append(rule.Weekdays, d)
			}
		}

		a, err := newApp("ScheduleAdd")
		if err != nil {
			return err
		}
		defer a.Close()

		entry := &backup.ScheduleEntry{
			Name:        name,
			Source:      args[0],
			Destination: args[1],
			Mode:        mode,
			Rule:        rule,
			Enabled:     true,
		}
		if err := a.AddSchedule(entry); err != nil {
			return fmt.Errorf("adding schedule: %w", err)
		}

		fmt.Printf("Schedule added: %s\n", entry.ID)
		fmt.Printf("Next run: %s\n", entry.NextRun.Format("2006-01-02 15:04:05"))
		return nil
	},
}

var scheduleListCmd = &cobra.Command{
	Use:   "list",
	Short: "List schedules",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("ScheduleList")
		if err != nil {
			return err
		}
		defer a.Close()

		entries, err := a.Schedules()
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			fmt.Println("No schedules.")
			return nil
		}

		for _, e := range entries {
			state := "enabled"
			if !e.Enabled {
				state = "disabled"
			}
			next := "-"
			if e.NextRun != nil {
				next = e.NextRun.Format("2006-01-02 15:04")
			}
			last := "-"
			if e.LastRun != nil {
				last = e.LastRun.Format("2006-01-02 15:04")
				if e.LastResult != "" {
					last += " (" + e.LastResult + ")"
				}
			}
			fmt.Printf("%s  %-20s  %-12s  %-8s  %s\n", e.ID, e.Name, string(e.Rule.Frequency), state, e.Source)
			fmt.Printf("%36s  next: %s  last: %s\n", "", next, last)
		}
		return nil
	},
}

var scheduleRemoveCmd = &cobra.Command{
	Use:   "remove ID",
	Short: "Remove a schedule",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("ScheduleRemove")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.DeleteSchedule(args[0]); err != nil {
			return err
		}
		fmt.Println("Schedule removed.")
		return nil
	},
}

var scheduleEnableCmd = &cobra.Command{
	Use:   "enable ID",
	Short: "Enable a schedule",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setScheduleEnabled(args[0], true)
	},
}

var scheduleDisableCmd = &cobra.Command{
	Use:   "disable ID",
	Short: "Disable a schedule",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setScheduleEnabled(args[0], false)
	},
}

func setScheduleEnabled(id string, enabled bool) error {
	a, err := newApp("ScheduleToggle")
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.SetScheduleEnabled(id, enabled); err != nil {
		return err
	}
	if enabled {
		fmt.Println("Schedule enabled.")
	} else {
		fmt.Println("Schedule disabled.")
	}
	return nil
}

var scheduleRunCmd = &cobra.Command{
	Use:   "run ID",
	Short: "Run a schedule now",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("ScheduleRunNow")
		if err != nil {
			return err
		}
		defer a.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		res, err := a.RunScheduleNow(ctx, args[0], nil)
		if err != nil {
			return fmt.Errorf("run failed: %w", err)
		}
		printRunResult(res)
		return nil
	},
}

// history command
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "View backup run history",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		a, err := newApp("History")
		if err != nil {
			return err
		}
		defer a.Close()

		runs, err := a.History(limit)
		if err != nil {
			return err
		}
		if len(runs) == 0 {
			fmt.Println("No backup runs recorded.")
			return nil
		}

		for _, r := range runs {
			fmt.Printf("%s  %-12s  %-9s  copied:%-5d skipped:%-5d failed:%-3d  %s  %s\n",
				r.CreatedAt.Format("2006-01-02 15:04:05"),
				string(r.Mode),
				r.Status,
				r.Copied, r.Skipped, r.Failed,
				r.Duration.Truncate(time.Millisecond),
				r.DestinationRoot,
			)
		}
		return nil
	},
}

// daemon command
var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run the scheduler until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("Daemon")
		if err != nil {
			return err
		}
		defer a.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		fmt.Println("Scheduler running. Press Ctrl+C to stop.")
		if err := a.RunDaemon(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		fmt.Println("Scheduler stopped.")
		return nil
	},
}

// parseTimeOfDay parses "HH:MM" into hour and minute.
func parseTimeOfDay(s string) (int, int, error) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid time %q, want HH:MM", s)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, fmt.Errorf("invalid time %q, want HH:MM", s)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, fmt.Errorf("invalid time %q, want HH:MM", s)
	}
	return hour, minute, nil
}

func parseWeekday(s string) (time.Weekday, error) {
	switch strings.ToLower(s) {
	case "sun", "sunday":
		return time.Sunday, nil
	case "mon", "monday":
		return time.Monday, nil
	case "tue", "tuesday":
		return time.Tuesday, nil
	case "wed", "wednesday":
		return time.Wednesday, nil
	case "thu", "thursday":
		return time.Thursday, nil
	case "fri", "friday":
		return time.Friday, nil
	case "sat", "saturday":
		return time.Saturday, nil
	default:
		return 0, fmt.Errorf("unknown weekday: %q", s)
	}
}

func init() {
	// config subcommands
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configListCmd)

	// schedule subcommands
	scheduleCmd.AddCommand(scheduleAddCmd)
	scheduleCmd.AddCommand(scheduleListCmd)
	scheduleCmd.AddCommand(scheduleRemoveCmd)
	scheduleCmd.AddCommand(scheduleEnableCmd)
	scheduleCmd.AddCommand(scheduleDisableCmd)
	scheduleCmd.AddCommand(scheduleRunCmd)
	scheduleAddCmd.Flags().String("name", "", "Display name for the schedule")
	scheduleAddCmd.Flags().String("mode", "incremental", "Backup mode: full, incremental or differential")
	scheduleAddCmd.Flags().String("frequency", "daily", "Frequency: once, hourly, daily, weekly, monthly or custom")
	scheduleAddCmd.Flags().String("at", "00:00", "Time of day (HH:MM)")
	scheduleAddCmd.Flags().Int("every", 1, "Hour interval for hourly frequency")
	scheduleAddCmd.Flags().String("weekday", "", "Day for weekly frequency (e.g. monday)")
	scheduleAddCmd.Flags().String("weekdays", "", "Comma-separated days for custom frequency (e.g. mon,wed,fri)")
	scheduleAddCmd.Flags().Int("day-of-month", 1, "Day for monthly frequency (1-31)")

	// root commands
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(backupCmd)
	backupCmd.Flags().String("mode", "full", "Backup mode: full, incremental or differential")
	rootCmd.AddCommand(scheduleCmd)
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().IntP("limit", "n", 50, "Maximum number of runs to show")
	rootCmd.AddCommand(daemonCmd)
}
