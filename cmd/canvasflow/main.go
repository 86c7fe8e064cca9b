package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"canvasflow/internal/canvas"
	"canvasflow/internal/config"
	"canvasflow/internal/llm"
	"canvasflow/internal/notify"
	"canvasflow/internal/router"
	"canvasflow/internal/source"
	"canvasflow/internal/store"
	"canvasflow/internal/syncer"
)

var (
	// Global flags
	configPath string
	verbose    bool
	dbPath     string

	cfg    *config.Config
	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "canvasflow",
	Short: "CanvasFlow - Canvas LMS sync, deadline alerts, and AI study plans",
	Long: `CanvasFlow pulls your courses, assignments, and calendar out of a
logged-in Canvas browser tab, caches them locally, and turns them into
deadline notifications and AI-generated study plans.

It never stores your Canvas credentials: data is fetched through the
session already open in your browser.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		zapCfg := zap.NewProductionConfig()
		if verbose {
			zapCfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zapCfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		cfg, err = config.Load(configPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if dbPath != "" {
			cfg.Storage.DatabasePath = dbPath
		}
		return cfg.Validate()
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

// syncCmd runs a single synchronization pass
var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Run one synchronization pass against the open Canvas tab",
	Long: `Connects to Chrome, finds (or opens) a Canvas tab, and refreshes all
data slices. Slices fail independently: a partial sync keeps whatever
succeeded and reports what did not.`,
	RunE: runSync,
}

// watchCmd runs the long-lived sync + notification loop
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Keep syncing on a schedule and deliver deadline notifications",
	Long: `Runs until interrupted. Periodically refreshes Canvas data, checks
deadlines every hour, and posts a daily summary at 08:00. Edits to the
config file are picked up live and reschedule the notification timers.`,
	RunE: runWatch,
}

// planCmd generates an AI study plan from cached data
var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Generate a study plan from cached assignment data",
	Long: `Builds a study plan with an LLM, trying each configured model in
priority order until one streams a complete answer. Works entirely from
the local cache; run sync first if the cache is stale.

Example:
  canvasflow plan --weeks 2`,
	RunE: runPlan,
}

// statusCmd prints the cache summary
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show what is cached and how fresh it is",
	RunE:  runStatus,
}

var planWeeks int

func init() {
	home, _ := os.UserHomeDir()
	defaultConfig := filepath.Join(home, ".canvasflow", "config.yaml")

	rootCmd.PersistentFlags().StringVar(&configPath, "config", defaultConfig, "Path to config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "Override database path")

	planCmd.Flags().IntVar(&planWeeks, "weeks", 2, "Weeks ahead to plan for")

	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(planCmd)
	rootCmd.AddCommand(statusCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func openStore() (*store.Store, error) {
	return store.Open(cfg.Storage.DatabasePath, logger)
}

func newSource() *source.TabSource {
	return source.New(source.Config{
		DebuggerURL:      cfg.Browser.DebuggerURL,
		Headless:         cfg.Browser.Headless,
		CanvasURL:        cfg.CanvasURL,
		OpenTabTimeout:   cfg.Browser.OpenTabTimeout,
		CourseFetchLimit: cfg.Sync.CourseFetchLimit,
	}, logger)
}

func notifySettings(c *config.Config) notify.Settings {
	return notify.Settings{
		Enabled:    c.Notifications.Enabled,
		Frequency:  c.Notifications.Frequency,
		QuietStart: c.Notifications.QuietStart,
		QuietEnd:   c.Notifications.QuietEnd,
	}
}

func runSync(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	src := newSource()
	if err := src.Start(ctx); err != nil {
		return fmt.Errorf("failed to connect to browser: %w", err)
	}
	defer src.Close()

	coord, err := syncer.New(src, st, cfg.Sync.SliceTimeout, logger)
	if err != nil {
		return err
	}

	result, err := coord.Synchronize(ctx)
	if err != nil {
		if errors.Is(err, source.ErrNoSource) {
			return fmt.Errorf("no Canvas tab found; open Canvas in Chrome and retry: %w", err)
		}
		return err
	}

	recordOrigin(st, src.Origin())
	printSyncResult(result)
	return nil
}

// recordOrigin keeps the list of recently seen Canvas origins current so a
// later run can auto-detect the instance without configuration.
func recordOrigin(st *store.Store, origin string) {
	if origin == "" {
		return
	}
	var urls []canvas.DetectedURL
	if err := st.Get(store.KeyDetectedURLs, &urls); err != nil && !errors.Is(err, store.ErrNotFound) {
		logger.Warn("failed to load detected origins", zap.Error(err))
		return
	}
	urls = canvas.RecordDetectedURL(urls, origin, time.Now())
	if err := st.Set(store.KeyDetectedURLs, urls); err != nil {
		logger.Warn("failed to persist detected origins", zap.Error(err))
	}
}

func printSyncResult(result *syncer.Result) {
	ag := result.Aggregate
	fmt.Printf("Sync complete in %s\n", result.Elapsed.Round(time.Millisecond))
	fmt.Printf("  Courses:         %d\n", len(ag.Courses))
	fmt.Printf("  Assignments:     %d\n", len(ag.AllAssignments))
	fmt.Printf("  Calendar events: %d\n", len(ag.CalendarEvents))
	fmt.Printf("  Upcoming events: %d\n", len(ag.UpcomingEvents))
	if ag.UserProfile != nil {
		fmt.Printf("  Signed in as:    %s\n", ag.UserProfile.Name)
	}
	if result.Partial {
		fmt.Println("\nSome slices failed:")
		for _, f := range result.Failures {
			fmt.Printf("  - %s: %s\n", f.Slice, f.Reason)
		}
	}
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	src := newSource()
	if err := src.Start(ctx); err != nil {
		return fmt.Errorf("failed to connect to browser: %w", err)
	}
	defer src.Close()

	coord, err := syncer.New(src, st, cfg.Sync.SliceTimeout, logger)
	if err != nil {
		return err
	}

	provider := func() []canvas.Assignment {
		return coord.Aggregate().AllAssignments
	}
	sink := notify.LogSink{Logger: logger}
	sched := notify.NewScheduler(provider, sink, notify.DefaultIntervals, logger)
	defer sched.Stop()

	settings := notifySettings(cfg)
	sched.Reschedule(settings)
	if err := st.Set(store.KeySettings, settings); err != nil {
		logger.Warn("failed to persist notification settings", zap.Error(err))
	}

	if err := watchConfigFile(ctx, sched, st); err != nil {
		logger.Warn("config watch disabled", zap.Error(err))
	}

	runRefresh := func() {
		result, err := coord.Synchronize(ctx)
		switch {
		case errors.Is(err, syncer.ErrSyncInProgress):
			logger.Debug("refresh skipped, sync already running")
		case err != nil:
			logger.Warn("refresh failed", zap.Error(err))
		case result.Partial:
			logger.Info("refresh partially succeeded",
				zap.Int("failed_slices", len(result.Failures)))
		default:
			logger.Info("refresh complete",
				zap.Int("assignments", len(result.Aggregate.AllAssignments)))
		}
		if err == nil {
			recordOrigin(st, src.Origin())
		}
	}

	runRefresh()

	interval := cfg.Sync.AutoRefresh
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	fmt.Println("Watching. Press Ctrl+C to stop.")
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			runRefresh()
		}
	}
}

// watchConfigFile reloads notification settings when the config file changes.
func watchConfigFile(ctx context.Context, sched *notify.Scheduler, st *store.Store) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	// Watch the directory: editors replace files, which drops a watch set
	// directly on the path.
	if err := watcher.Add(filepath.Dir(configPath)); err != nil {
		watcher.Close()
		return err
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Name != configPath {
					continue
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
					continue
				}
				reloaded, err := config.Load(configPath)
				if err != nil {
					logger.Warn("config reload failed", zap.Error(err))
					continue
				}
				settings := notifySettings(reloaded)
				sched.Reschedule(settings)
				if err := st.Set(store.KeySettings, settings); err != nil {
					logger.Warn("failed to persist notification settings", zap.Error(err))
				}
				logger.Info("config reloaded",
					zap.String("frequency", settings.Frequency),
					zap.Bool("enabled", settings.Enabled))
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Warn("config watch error", zap.Error(err))
			}
		}
	}()
	return nil
}

func runPlan(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	ag, err := st.LoadAggregate()
	if err != nil {
		return err
	}
	if len(ag.AllAssignments) == 0 {
		return fmt.Errorf("no cached assignments; run `canvasflow sync` first")
	}

	client := llm.NewClient(llm.ClientConfig{
		APIKey:  cfg.LLM.APIKey,
		BaseURL: cfg.LLM.BaseURL,
		Timeout: cfg.LLM.Timeout,
		Logger:  logger,
	})

	var gemini *llm.GeminiClient
	if cfg.LLM.GeminiAPIKey != "" {
		gemini, err = llm.NewGeminiClient(ctx, cfg.LLM.GeminiAPIKey, "gemini-2.0-flash")
		if err != nil {
			logger.Warn("gemini unavailable", zap.Error(err))
		}
	}

	planner := llm.NewPlanner(client, gemini, cfg.LLM.MaxTokens, logger)

	// Print only the delta each time the accumulated text grows.
	printed := 0
	observe := func(accumulated string, usage int) {
		if len(accumulated) > printed {
			fmt.Print(accumulated[printed:])
			printed = len(accumulated)
		}
	}

	tr := canvas.TimeRange{WeeksBefore: 0, WeeksAfter: planWeeks}
	result, err := planner.GeneratePlan(ctx, ag.AllAssignments, tr, observe)
	if err != nil {
		var exhausted *router.ExhaustedError
		if errors.As(err, &exhausted) {
			fmt.Fprintln(os.Stderr, "All models failed:")
			for _, attempt := range exhausted.Failures {
				fmt.Fprintf(os.Stderr, "  - %s: %s\n", attempt.Candidate, attempt.Reason)
			}
		}
		return err
	}

	fmt.Printf("\n\n(model: %s, %s", result.Model.ID, result.Duration.Round(time.Millisecond))
	if len(result.Failures) > 0 {
		fmt.Printf(", after %d failed attempt%s", len(result.Failures), pluralSuffix(len(result.Failures)))
	}
	fmt.Println(")")
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	ag, err := st.LoadAggregate()
	if err != nil {
		return err
	}

	if ag.LastUpdate.IsZero() {
		fmt.Println("No data cached yet. Run `canvasflow sync` to get started.")
		return nil
	}

	fmt.Printf("Last sync: %s\n", canvas.TimeAgo(ag.LastUpdate, time.Now()))
	fmt.Printf("  Courses:     %d\n", len(ag.Courses))
	fmt.Printf("  Assignments: %d\n", len(ag.AllAssignments))
	if ag.UserProfile != nil {
		fmt.Printf("  User:        %s\n", ag.UserProfile.Name)
	}

	cls := canvas.Classify(ag.AllAssignments, time.Now())
	fmt.Printf("  Overdue:     %d\n", len(cls.Overdue))
	fmt.Printf("  Due today:   %d\n", len(cls.DueToday))
	fmt.Printf("  Due 3h:      %d\n", len(cls.DueSoon))
	return nil
}

func pluralSuffix(n int) string {
	if n == 1 {
		return ""
	}
	return "s"
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case <-sigCh:
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()
	return ctx, cancel
}
