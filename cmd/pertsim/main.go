package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/joshharrison/pertsim/internal/analytics"
	"github.com/joshharrison/pertsim/internal/config"
	"github.com/joshharrison/pertsim/internal/graph"
	"github.com/joshharrison/pertsim/internal/logging"
	"github.com/joshharrison/pertsim/internal/planner"
	"github.com/joshharrison/pertsim/internal/reporter"
	"github.com/joshharrison/pertsim/internal/sampler"
	"github.com/joshharrison/pertsim/internal/simulation"
	"github.com/joshharrison/pertsim/internal/state"
	"github.com/joshharrison/pertsim/internal/taskfile"
	"github.com/joshharrison/pertsim/internal/ui"
)

var (
	flagConfig   string
	flagEnvFile  string
	flagLogLevel string
	flagStateDir string
	flagJSON     bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "pertsim",
		Short: "Monte Carlo schedule risk analysis for PERT task networks",
		Long: `pertsim reads a task network with three-point estimates, samples task
durations thousands of times, runs a critical path analysis on every sample
and reports the distribution of project duration, task criticality,
sensitivity and schedule buffers.`,
		SilenceUsage: true,
	}

	// Global flags
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "Config file (YAML)")
	rootCmd.PersistentFlags().StringVar(&flagEnvFile, "env-file", ".env", "Env file with PERTSIM_* overrides")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&flagStateDir, "state-dir", "", "Directory for saved reports")
	rootCmd.PersistentFlags().BoolVar(&flagJSON, "json", false, "Machine-readable JSON output")

	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(planCmd())
	rootCmd.AddCommand(validateCmd())
	rootCmd.AddCommand(showCmd())
	rootCmd.AddCommand(historyCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig reads the config and applies the global flag overrides.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(flagConfig, flagEnvFile)
	if err != nil {
		return nil, err
	}
	if cmd.Flags().Changed("log-level") {
		cfg.Logging.Level = flagLogLevel
	}
	if cmd.Flags().Changed("state-dir") {
		cfg.State.Dir = flagStateDir
	}
	return cfg, nil
}

// loadNetwork is shared logic for every command taking a tasks file.
func loadNetwork(path string, log zerolog.Logger) (*graph.Network, error) {
	records, err := taskfile.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load tasks: %w", err)
	}
	log.Debug().Str("file", path).Int("tasks", len(records)).Msg("tasks loaded")

	net, err := graph.Build(records)
	if err != nil {
		return nil, fmt.Errorf("build network: %w", err)
	}
	log.Debug().Int("roots", len(net.Roots)).Int("leaves", len(net.Leaves)).Msg("network built")
	return net, nil
}

func runCmd() *cobra.Command {
	var (
		flagRuns      int
		flagSeed      uint64
		flagWorkers   int
		flagSampler   string
		flagThreshold float64
		flagEstimate  string
		flagCSV       string
		flagHistogram bool
		flagQuiet     bool
	)

	cmd := &cobra.Command{
		Use:   "run <tasks-file>",
		Short: "Simulate the project and print the risk summary",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			flags := cmd.Flags()
			if flags.Changed("runs") {
				cfg.Simulation.Runs = flagRuns
			}
			if flags.Changed("seed") {
				cfg.Simulation.Seed = flagSeed
			}
			if flags.Changed("workers") {
				cfg.Simulation.Workers = flagWorkers
			}
			if flags.Changed("sampler") {
				cfg.Simulation.Sampler = flagSampler
			}
			if flags.Changed("threshold") {
				cfg.Analysis.CriticalityThreshold = flagThreshold
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			log := logging.New(cfg.Logging, os.Stderr)

			smp, err := sampler.Parse(cfg.Simulation.Sampler)
			if err != nil {
				return err
			}

			net, err := loadNetwork(args[0], log)
			if err != nil {
				return err
			}

			plan, err := planner.Generate(net, planner.PlanConfig{Estimate: flagEstimate})
			if err != nil {
				return fmt.Errorf("generate baseline: %w", err)
			}

			engine, err := simulation.New(net, simulation.Options{
				Sampler:       smp,
				Seed:          cfg.Simulation.Seed,
				Workers:       cfg.Simulation.Workers,
				ProgressEvery: cfg.Simulation.ProgressEvery,
				Logger:        &log,
			})
			if err != nil {
				return err
			}

			// Setup signal handling
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
			defer signal.Stop(sigCh)
			go func() {
				select {
				case <-sigCh:
					fmt.Fprintf(os.Stderr, "\n🛑 %s\n", ui.Yellow("Received interrupt, finishing with completed runs..."))
					cancel()
				case <-ctx.Done():
				}
			}()

			if !flagJSON && !flagQuiet {
				ui.PrintLogo(os.Stdout)
				fmt.Printf("🎲 %s simulating %s tasks, %s runs\n",
					ui.BoldCyan("pertsim:"), ui.Bold(net.TaskCount()), ui.Bold(cfg.Simulation.Runs))
			}

			start := time.Now()
			status := state.StatusCompleted
			agg, runErr := engine.Run(ctx, cfg.Simulation.Runs)
			if runErr != nil {
				if !errors.Is(runErr, context.Canceled) {
					return runErr
				}
				status = state.StatusCancelled
			}

			result, err := analytics.Analyze(net, agg, analytics.Options{
				ConfidenceLevels:     cfg.Analysis.ConfidenceLevels,
				CriticalityThreshold: cfg.Analysis.CriticalityThreshold,
				Baseline:             plan.Duration,
				HistogramBins:        cfg.Analysis.HistogramBins,
			})
			if err != nil {
				if runErr != nil {
					return runErr
				}
				return fmt.Errorf("analyze: %w", err)
			}

			rec := &state.RunRecord{
				RunID:     uuid.NewString(),
				CreatedAt: start,
				TaskFile:  args[0],
				Status:    status,
				Sampler:   smp.Name(),
				Seed:      cfg.Simulation.Seed,
				Runs:      cfg.Simulation.Runs,
				Workers:   cfg.Simulation.Workers,
				Elapsed:   time.Since(start).Round(time.Millisecond).String(),
				Analysis:  result,
				Durations: agg.Durations,
			}

			store, err := state.Open(cfg.State.Dir)
			if err != nil {
				return err
			}
			if err := store.SaveReport(rec); err != nil {
				return fmt.Errorf("save report: %w", err)
			}
			if err := store.SavePlan(plan); err != nil {
				return fmt.Errorf("save plan: %w", err)
			}
			if err := store.Archive(); err != nil {
				return fmt.Errorf("archive run: %w", err)
			}
			log.Info().Str("run_id", rec.RunID).Str("dir", store.Dir()).Msg("report saved")

			rpt := reporter.New(rec, plan)
			rpt.TopN = cfg.Analysis.TopN

			if flagCSV != "" {
				paths, err := rpt.ExportCSV(flagCSV)
				if err != nil {
					return fmt.Errorf("export csv: %w", err)
				}
				log.Info().Strs("files", paths).Msg("csv exported")
			}

			if flagJSON {
				data, err := rpt.JSON()
				if err != nil {
					return err
				}
				fmt.Println(string(data))
				return runErr
			}

			rpt.PrintSummaryReport(os.Stdout)
			if flagHistogram {
				rpt.PrintHistogram(os.Stdout, 20, 40)
			}
			return runErr
		},
	}

	defaults := config.Default()
	cmd.Flags().IntVarP(&flagRuns, "runs", "n", defaults.Simulation.Runs, "Number of simulation runs")
	cmd.Flags().Uint64Var(&flagSeed, "seed", defaults.Simulation.Seed, "Random seed")
	cmd.Flags().IntVarP(&flagWorkers, "workers", "w", defaults.Simulation.Workers, "Parallel workers")
	cmd.Flags().StringVarP(&flagSampler, "sampler", "s", "", fmt.Sprintf("Duration distribution %v", sampler.Names()))
	cmd.Flags().Float64Var(&flagThreshold, "threshold", defaults.Analysis.CriticalityThreshold, "Criticality threshold (percent)")
	cmd.Flags().StringVar(&flagEstimate, "estimate", planner.EstimateMean, "Baseline estimate (mean, most_likely)")
	cmd.Flags().StringVar(&flagCSV, "csv", "", "Export CSV tables to this directory")
	cmd.Flags().BoolVar(&flagHistogram, "histogram", false, "Print the duration histogram")
	cmd.Flags().BoolVarP(&flagQuiet, "quiet", "q", false, "Skip the logo and banner")

	return cmd
}

func planCmd() *cobra.Command {
	var (
		flagFormat   string
		flagEstimate string
		flagTemplate string
		flagOutput   string
	)

	cmd := &cobra.Command{
		Use:   "plan <tasks-file>",
		Short: "Compute the deterministic baseline schedule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			log := logging.New(cfg.Logging, os.Stderr)

			net, err := loadNetwork(args[0], log)
			if err != nil {
				return err
			}

			plan, err := planner.Generate(net, planner.PlanConfig{
				Estimate:        flagEstimate,
				DOTTemplatePath: flagTemplate,
			})
			if err != nil {
				return fmt.Errorf("generate plan: %w", err)
			}

			if flagOutput != "" {
				data, err := json.MarshalIndent(plan, "", "  ")
				if err != nil {
					return err
				}
				return os.WriteFile(flagOutput, data, 0644)
			}

			if flagJSON {
				return outputJSON(plan)
			}

			switch flagFormat {
			case "text":
				reporter.PrintPlan(os.Stdout, plan)
				return nil
			case "dot":
				dot, err := planner.RenderDOT(plan, plan.Config.DOTTemplatePath)
				if err != nil {
					return err
				}
				fmt.Print(dot)
				return nil
			default:
				return fmt.Errorf("unsupported format: %s (use text or dot)", flagFormat)
			}
		},
	}

	cmd.Flags().StringVar(&flagFormat, "format", "text", "Output format: text or dot")
	cmd.Flags().StringVar(&flagEstimate, "estimate", planner.EstimateMean, "Point estimate (mean, most_likely)")
	cmd.Flags().StringVar(&flagTemplate, "template", "", "Custom DOT template path")
	cmd.Flags().StringVar(&flagOutput, "output", "", "Save plan to file")

	return cmd
}

func validateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <tasks-file>",
		Short: "Check a tasks file for errors without simulating",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			log := logging.New(cfg.Logging, os.Stderr)

			net, err := loadNetwork(args[0], log)
			if err != nil {
				fmt.Printf("%s %s\n", ui.Red("✗"), err)
				return err
			}

			fmt.Printf("%s %s: %s tasks, %s categories, %d start and %d end tasks\n",
				ui.Green("✓"), args[0],
				ui.Bold(net.TaskCount()), ui.Bold(len(net.Categories())),
				len(net.Roots), len(net.Leaves))
			return nil
		},
	}
}

func showCmd() *cobra.Command {
	var (
		flagRun       string
		flagPrevious  bool
		flagHistogram bool
	)

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print a saved report",
		RunE: func(cmd *cobra.Command, args []string) error {
			if flagPrevious && flagRun != "" {
				return fmt.Errorf("--previous and --run are mutually exclusive")
			}

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			store, err := state.Open(cfg.State.Dir)
			if err != nil {
				return err
			}

			var (
				rec  *state.RunRecord
				plan *planner.BaselinePlan
			)
			switch {
			case flagPrevious:
				rec, plan, err = store.LoadPrevious()
				if err != nil {
					return fmt.Errorf("load previous run: %w", err)
				}

			case flagRun != "":
				rec, err = store.LoadArchived(flagRun)
				if err != nil {
					return err
				}
				// Runs archived without a baseline still print
				plan, _ = store.LoadArchivedPlan(flagRun)

			default:
				if !store.Exists() {
					return fmt.Errorf("no saved report in %s (run `pertsim run` first)", store.Dir())
				}
				rec, err = store.LoadReport()
				if err != nil {
					return err
				}
				plan, _ = store.LoadPlan()
			}

			if rec.Analysis == nil {
				return fmt.Errorf("report %s has no analysis", rec.RunID)
			}

			rpt := reporter.New(rec, plan)
			rpt.TopN = cfg.Analysis.TopN

			if flagJSON {
				data, err := rpt.JSON()
				if err != nil {
					return err
				}
				fmt.Println(string(data))
				return nil
			}

			rpt.PrintSummaryReport(os.Stdout)
			if flagHistogram {
				rpt.PrintHistogram(os.Stdout, 20, 40)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&flagRun, "run", "", "Show an archived run by id")
	cmd.Flags().BoolVar(&flagPrevious, "previous", false, "Show the most recent archived run")
	cmd.Flags().BoolVar(&flagHistogram, "histogram", false, "Print the duration histogram")

	return cmd
}

func historyCmd() *cobra.Command {
	var flagClean bool

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List saved runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			store, err := state.Open(cfg.State.Dir)
			if err != nil {
				return err
			}

			if flagClean {
				if err := store.Clean(); err != nil {
					return err
				}
				fmt.Printf("%s Removed %s\n", ui.Dim("🧹"), store.Dir())
				return nil
			}

			runs, err := store.Summarize()
			if err != nil {
				return err
			}
			if flagJSON {
				return outputJSON(runs)
			}
			reporter.PrintHistory(os.Stdout, runs)
			return nil
		},
	}

	cmd.Flags().BoolVar(&flagClean, "clean", false, "Delete all saved reports")

	return cmd
}

// --- Output helpers ---

func outputJSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}
