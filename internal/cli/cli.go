package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/pfrederiksen/race-results/internal/config"
	"github.com/pfrederiksen/race-results/internal/dispatch"
	"github.com/pfrederiksen/race-results/internal/enrich"
	"github.com/pfrederiksen/race-results/internal/logger"
	"github.com/pfrederiksen/race-results/internal/order"
	"github.com/pfrederiksen/race-results/internal/platform"
	"github.com/pfrederiksen/race-results/internal/race"
	"github.com/pfrederiksen/race-results/internal/result"
	"github.com/pfrederiksen/race-results/internal/storage"
	"github.com/spf13/cobra"
)

const (
	ExitSuccess     = 0
	ExitError       = 1
	ExitNeedsReview = 2
)

// ErrNeedsReview ends a command with ExitNeedsReview. Its output has already
// been written, so no error message is printed.
var ErrNeedsReview = errors.New("needs review")

var (
	flagConfig      string
	flagDataDir     string
	flagLogLevel    string
	flagFormat      string
	flagVerbose     bool
	flagRace        string
	flagTag         string
	flagYear        int
	flagRunner      string
	flagID          string
	flagSort        string
	flagOrders      string
	flagWorkers     int
	flagMetricsAddr string
	flagFinishTime  string
	flagBib         string
	flagClear       bool
)

// newAdapters builds the platform adapters; tests replace it
var newAdapters = func(cfg platform.Config) []platform.Adapter {
	return platform.Adapters(cfg, platform.NewHTTPClient(cfg), platform.NewChromeRenderer(cfg))
}

// NewRootCmd creates the root command
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "race-results",
		Short: "Look up marathon finish times for storefront orders",
		Long: `A CLI tool to look up runner results on race timing platforms.
Resolves informal race names, fetches result rows from the race's platform
and matches the runner, one lookup at a time or for a file of orders.`,
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	// Define flags
	pf := cmd.PersistentFlags()
	pf.StringVar(&flagConfig, "config", "", "Config file (default: race-results.yaml in . or ~/.config/race-results)")
	pf.StringVar(&flagDataDir, "data-dir", config.DefaultDataDir, "Data directory for the order store")
	pf.StringVar(&flagLogLevel, "log-level", "info", "Log level: debug, info, warn or error")
	pf.StringVar(&flagFormat, "format", "text", "Output format: text or json")
	pf.BoolVar(&flagVerbose, "verbose", false, "Enable verbose output")

	cmd.AddCommand(newLookupCmd(), newRacesCmd(), newEnrichCmd(), newOrderCmd(), newOverrideCmd())
	return cmd
}

func newLookupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lookup",
		Short: "Find one runner's result",
		Args:  cobra.NoArgs,
		RunE:  runLookup,
	}
	cmd.Flags().StringVar(&flagRace, "race", "", "Race name, formal or informal (e.g. 'Austin Marathon')")
	cmd.Flags().StringVar(&flagTag, "tag", "", "Race tag (e.g. austin); wins over --race")
	cmd.Flags().IntVar(&flagYear, "year", 0, "Race year (required)")
	cmd.Flags().StringVar(&flagRunner, "runner", "", "Runner name (required)")
	cmd.Flags().StringVar(&flagID, "id", "", "Known bib or result id to pick between several matches")

	cmd.MarkFlagRequired("year")   // nolint:errcheck
	cmd.MarkFlagRequired("runner") // nolint:errcheck
	return cmd
}

func newRacesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "races",
		Short: "List supported races",
		Long: `Lists the races the registry can resolve. With --format ics the next
date of every race is written as an iCalendar feed.`,
		Args: cobra.NoArgs,
		RunE: runRaces,
	}
	cmd.Flags().StringVar(&flagSort, "sort", string(SortByDate), "Sort order: date, name, platform or tag")
	return cmd
}

func newEnrichCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "enrich",
		Short: "Import orders and look up every order that is due",
		Long: `Merges an order export into the order store, then looks up every order
that is pending or failed transiently. Orders that need review keep their
state until their details change or an override is set.`,
		Args: cobra.NoArgs,
		RunE: runEnrich,
	}
	cmd.Flags().StringVar(&flagOrders, "orders", "", "JSON file of orders to import before the run")
	cmd.Flags().IntVar(&flagWorkers, "workers", enrich.DefaultWorkers, "Concurrent lookups")
	cmd.Flags().StringVar(&flagMetricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address during the run (e.g. :9090)")
	return cmd
}

func newOrderCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "order <number>",
		Short: "Show one stored order",
		Args:  cobra.ExactArgs(1),
		RunE:  runOrder,
	}
}

func newOverrideCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "override <number>",
		Short: "Correct an order's lookup inputs or enter its finish time by hand",
		Args:  cobra.ExactArgs(1),
		RunE:  runOverride,
	}
	cmd.Flags().StringVar(&flagRunner, "runner", "", "Runner name to search for")
	cmd.Flags().StringVar(&flagRace, "race", "", "Race name")
	cmd.Flags().IntVar(&flagYear, "year", 0, "Race year")
	cmd.Flags().StringVar(&flagFinishTime, "finish-time", "", "Finish time entered by hand (e.g. 3:48:22)")
	cmd.Flags().StringVar(&flagBib, "bib", "", "Known bib or result id")
	cmd.Flags().BoolVar(&flagClear, "clear", false, "Remove existing overrides first")
	return cmd
}

// setup loads configuration and installs the logger for a command
func setup(cmd *cobra.Command) (*config.Config, *logger.Logger, error) {
	overrides := make(map[string]interface{})
	flags := cmd.Flags()
	if flags.Changed("data-dir") {
		overrides["data.dir"] = flagDataDir
	}
	if flags.Changed("log-level") {
		overrides["log.level"] = flagLogLevel
	}
	if flags.Changed("workers") {
		overrides["enrich.workers"] = flagWorkers
	}
	if flags.Changed("metrics-addr") {
		overrides["enrich.metrics_addr"] = flagMetricsAddr
	}

	cfg, err := config.Load(flagConfig, overrides)
	if err != nil {
		return nil, nil, err
	}

	log := logger.New(cfg.LogLevel(), cmd.ErrOrStderr())
	logger.SetDefault(log)
	return cfg, log, nil
}

// runLookup resolves and matches a single runner
func runLookup(cmd *cobra.Command, args []string) error {
	format, err := parseFormat(flagFormat)
	if err != nil {
		return err
	}
	if strings.TrimSpace(flagRace) == "" && strings.TrimSpace(flagTag) == "" {
		return fmt.Errorf("--race or --tag is required")
	}

	cfg, log, err := setup(cmd)
	if err != nil {
		return err
	}

	registry, err := race.DefaultRegistry()
	if err != nil {
		return fmt.Errorf("loading races: %w", err)
	}

	q := dispatch.RunnerQuery{
		Runner:   flagRunner,
		Year:     flagYear,
		RaceName: flagRace,
		Tag:      flagTag,
		KnownID:  strings.TrimSpace(flagID),
	}

	if flagVerbose {
		fmt.Fprintf(cmd.ErrOrStderr(), "Looking up %q (race %q, tag %q, year %d)\n", q.Runner, q.RaceName, q.Tag, q.Year)
	}

	d := dispatch.New(registry, newAdapters(cfg.Platform()), dispatch.WithLogger(log))
	out := d.Lookup(cmd.Context(), q)

	if err := WriteOutput(cmd.OutOrStdout(), newLookupOutput(q, out), format, flagVerbose); err != nil {
		return fmt.Errorf("writing output: %w", err)
	}

	switch {
	case out.Status.Failed():
		return fmt.Errorf("lookup failed: %w", out.Err)
	case out.Status.NeedsReview():
		return ErrNeedsReview
	}
	return nil
}

// runRaces lists the registry
func runRaces(cmd *cobra.Command, args []string) error {
	calendarFeed := OutputFormat(strings.ToLower(flagFormat)) == FormatICS
	format := FormatText
	if !calendarFeed {
		f, err := parseFormat(flagFormat)
		if err != nil {
			return err
		}
		format = f
	}
	sortOrder, err := parseSortOrder(flagSort)
	if err != nil {
		return err
	}

	registry, err := race.DefaultRegistry()
	if err != nil {
		return fmt.Errorf("loading races: %w", err)
	}

	now := time.Now().UTC()
	out := newRacesOutput(registry.All(), now)
	sortRaces(out.Races, sortOrder)

	if calendarFeed {
		_, err := io.WriteString(cmd.OutOrStdout(), raceCalendar(out.Races, now))
		return err
	}

	if err := WriteOutput(cmd.OutOrStdout(), out, format, flagVerbose); err != nil {
		return fmt.Errorf("writing output: %w", err)
	}
	return nil
}

// runEnrich imports orders and runs the lookups that are due
func runEnrich(cmd *cobra.Command, args []string) error {
	format, err := parseFormat(flagFormat)
	if err != nil {
		return err
	}

	cfg, log, err := setup(cmd)
	if err != nil {
		return err
	}

	registry, err := race.DefaultRegistry()
	if err != nil {
		return fmt.Errorf("loading races: %w", err)
	}

	// Initialize storage
	store, err := storage.New(cfg.Data.Dir)
	if err != nil {
		return fmt.Errorf("initializing storage: %w", err)
	}

	book, err := store.LoadBook()
	if err != nil {
		return fmt.Errorf("loading store: %w", err)
	}

	now := time.Now().UTC()
	out := &EnrichOutput{RunAt: now, ByStatus: make(map[order.Status]int)}

	if flagOrders != "" {
		orders, err := storage.LoadOrders(flagOrders)
		if err != nil {
			return err
		}
		merged := order.Merge(book, orders, now)
		out.Imported = len(orders)
		out.Added = len(merged.Added)
		out.Changed = len(merged.Changed)

		if flagVerbose {
			fmt.Fprintf(cmd.ErrOrStderr(), "Imported %d orders from %s\n", len(orders), flagOrders)
		}
	}

	due := book.Due()
	if flagVerbose {
		fmt.Fprintf(cmd.ErrOrStderr(), "%d of %d orders due for lookup\n", len(due), len(book.Orders))
	}

	if addr := cfg.Enrich.MetricsAddr; addr != "" {
		stop, err := serveMetrics(addr, logger.MetricsHandler(), log)
		if err != nil {
			return err
		}
		defer stop()
	}

	d := dispatch.New(registry, newAdapters(cfg.Platform()), dispatch.WithLogger(log))
	pool := enrich.NewPool(d, registry, cfg.Pool())
	summary, runErr := pool.Run(cmd.Context(), due)

	// Save whatever was settled, even when the run was interrupted
	if err := store.SaveBook(book); err != nil {
		return fmt.Errorf("saving store: %w", err)
	}

	out.Processed = summary.Processed
	out.Retries = summary.Retries
	out.NeedsReview = summary.NeedsReview()
	out.ByStatus = summary.ByStatus
	out.Records = due
	if out.Records == nil {
		out.Records = []*order.Record{}
	}
	if runErr != nil {
		out.Error = runErr.Error()
	}

	if err := WriteOutput(cmd.OutOrStdout(), out, format, flagVerbose); err != nil {
		return fmt.Errorf("writing output: %w", err)
	}

	if runErr != nil {
		return runErr
	}
	if out.NeedsReview > 0 {
		return ErrNeedsReview
	}
	return nil
}

// runOrder shows a stored order
func runOrder(cmd *cobra.Command, args []string) error {
	format, err := parseFormat(flagFormat)
	if err != nil {
		return err
	}

	cfg, _, err := setup(cmd)
	if err != nil {
		return err
	}

	store, err := storage.New(cfg.Data.Dir)
	if err != nil {
		return fmt.Errorf("initializing storage: %w", err)
	}

	rec, err := store.GetRecord(args[0])
	if err != nil {
		return err
	}

	if err := WriteOutput(cmd.OutOrStdout(), &RecordOutput{Record: rec}, format, flagVerbose); err != nil {
		return fmt.Errorf("writing output: %w", err)
	}
	return nil
}

// runOverride sets manual corrections on a stored order
func runOverride(cmd *cobra.Command, args []string) error {
	format, err := parseFormat(flagFormat)
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if !flagClear && !flags.Changed("runner") && !flags.Changed("race") && !flags.Changed("year") &&
		!flags.Changed("finish-time") && !flags.Changed("bib") {
		return fmt.Errorf("nothing to override: set at least one of --runner, --race, --year, --finish-time, --bib or --clear")
	}

	cfg, log, err := setup(cmd)
	if err != nil {
		return err
	}

	store, err := storage.New(cfg.Data.Dir)
	if err != nil {
		return fmt.Errorf("initializing storage: %w", err)
	}

	book, err := store.LoadBook()
	if err != nil {
		return fmt.Errorf("loading store: %w", err)
	}

	rec, exists := book.Orders[args[0]]
	if !exists {
		return fmt.Errorf("order not found: %s", args[0])
	}

	ov := rec.Overrides
	if flagClear {
		ov = order.Overrides{}
	}
	if flags.Changed("runner") {
		ov.RunnerName = strings.TrimSpace(flagRunner)
	}
	if flags.Changed("race") {
		ov.RaceName = strings.TrimSpace(flagRace)
	}
	if flags.Changed("year") {
		if flagYear <= 0 {
			return fmt.Errorf("invalid year: %d", flagYear)
		}
		year := flagYear
		ov.Year = &year
	}
	if flags.Changed("finish-time") {
		raw := strings.TrimSpace(flagFinishTime)
		if raw != "" {
			if _, ok := result.ParseDuration(raw); !ok {
				return fmt.Errorf("invalid finish time: %q", flagFinishTime)
			}
		}
		ov.FinishTime = raw
	}
	if flags.Changed("bib") {
		ov.Bib = strings.TrimSpace(flagBib)
	}

	rec.SetOverrides(ov, time.Now().UTC())
	if err := store.SaveBook(book); err != nil {
		return fmt.Errorf("saving store: %w", err)
	}
	log.Info("Order overrides updated", logger.Fields{"order": rec.Order.Number})

	if err := WriteOutput(cmd.OutOrStdout(), &RecordOutput{Record: rec}, format, flagVerbose); err != nil {
		return fmt.Errorf("writing output: %w", err)
	}
	return nil
}

// serveMetrics exposes handler on addr until the returned stop func is called
func serveMetrics(addr string, handler http.Handler, log *logger.Logger) (func(), error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listening on %s: %w", addr, err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", handler)
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Metrics server stopped", logger.Fields{"addr": addr}, err)
		}
	}()
	log.Info("Serving metrics", logger.Fields{"addr": ln.Addr().String()})

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(ctx) // nolint:errcheck
	}, nil
}

// Run executes the CLI with args and returns the process exit code
func Run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	cmd := NewRootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	err := cmd.ExecuteContext(ctx)
	switch {
	case err == nil:
		return ExitSuccess
	case errors.Is(err, ErrNeedsReview):
		return ExitNeedsReview
	default:
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return ExitError
	}
}

// Execute runs the CLI
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := Run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}
