package cli

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	shellwords "github.com/mattn/go-shellwords"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/probelab/webpilot/internal/brain"
	"github.com/probelab/webpilot/internal/config"
	"github.com/probelab/webpilot/internal/diagnose"
	"github.com/probelab/webpilot/internal/output"
	"github.com/probelab/webpilot/internal/page"
	"github.com/probelab/webpilot/internal/report"
	"github.com/probelab/webpilot/internal/run"
	"github.com/probelab/webpilot/internal/server"
	"github.com/probelab/webpilot/internal/telemetry"
	"github.com/probelab/webpilot/internal/types"
)

// These function variables allow tests to stub browser access.
var (
	openPage = func(ctx context.Context, cfg *config.Config, device types.DeviceProfile) (page.Page, error) {
		flags, err := shellwords.Parse(cfg.Browser.Flags)
		if err != nil {
			return nil, fmt.Errorf("parse browser flags: %w", err)
		}
		return page.NewChromePage(ctx, page.ChromeOptions{
			Headless:   cfg.Browser.Headless,
			Device:     device,
			ExtraFlags: flags,
		})
	}
	listenAndServe = func(addr string, handler http.Handler) error {
		return http.ListenAndServe(addr, handler)
	}
)

// Execute runs the CLI.
func Execute() error {
	var configPath string
	root := silenceUsageAndErrors(&cobra.Command{
		Use:   "webpilot",
		Short: "Diagnose and exercise web pages with automated test runs.",
	})
	root.PersistentFlags().StringVar(&configPath, "config", "webpilot.yml", "path to the configuration file")

	root.AddCommand(newDiagnoseCmd(&configPath))
	root.AddCommand(newRunCmd(&configPath))
	root.AddCommand(newServeCmd(&configPath))
	executed, err := root.ExecuteC()
	if err != nil {
		maybePrintUsage(executed, root, err)
	}
	return err
}

func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	cfg.Apply()
	return cfg, nil
}

func newDiagnoseCmd(configPath *string) *cobra.Command {
	var deviceName string
	var jsonOut bool
	var timeout time.Duration
	cmd := silenceUsageAndErrors(&cobra.Command{
		Use:   "diagnose <url>",
		Short: "Analyze a page and report what is testable",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			device, err := cfg.Device(deviceName)
			if err != nil {
				return err
			}
			p, err := openPage(ctx, cfg, device)
			if err != nil {
				return fmt.Errorf("open browser: %w", err)
			}
			defer p.Close()
			if err := p.Navigate(ctx, args[0]); err != nil {
				return fmt.Errorf("navigate: %w", err)
			}

			collector := telemetry.Attach(p)
			collector.Design = cfg.Design
			defer collector.Detach()

			analyzerTimeout := cfg.Defaults.DiagnoserTimeout
			if timeout > 0 {
				analyzerTimeout = timeout
			}
			session := diagnose.NewSession(diagnose.DefaultSet(),
				diagnose.WithDiagnoserTimeout(analyzerTimeout))
			bar := newDiagnosisBar(jsonOut)
			result, err := session.Run(ctx, p, nil, func(prog types.DiagnosisProgress) {
				bar.Describe(fmt.Sprintf("%s: %s", prog.StepLabel, prog.SubStepLabel))
				bar.Set(int(prog.Percent))
			})
			bar.Finish()
			fmt.Fprintln(os.Stderr)
			if err != nil {
				return err
			}
			result.ComprehensiveTests = collector.Collect(ctx)
			if jsonOut {
				return report.WriteDiagnosisJSON(os.Stdout, result)
			}
			printer := output.NewPrinter(os.Stdout)
			report.PrintDiagnosis(printer, args[0], result)
			if cfg.TrackerDebug {
				report.PrintTrackers(printer, result.ComprehensiveTests.ThirdParties)
			}
			return nil
		},
	})
	cmd.Flags().StringVar(&deviceName, "device", "", "device profile to emulate")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "emit the diagnosis as JSON")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "per-analyzer timeout override")
	return cmd
}

func newRunCmd(configPath *string) *cobra.Command {
	var deviceName string
	var jsonOut bool
	var maxSteps int
	var budget time.Duration
	var mode string
	var approve string
	var seed int64
	var failOnStuck bool
	var visualDiff bool
	var baselineRun string
	var visualThreshold float64
	cmd := silenceUsageAndErrors(&cobra.Command{
		Use:   "run <url>",
		Short: "Diagnose a page, then execute a test run against it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			device, err := cfg.Device(deviceName)
			if err != nil {
				return err
			}
			opts := cfg.RunOptions()
			opts.Device = device
			if maxSteps > 0 {
				opts.MaxSteps = maxSteps
			}
			if budget > 0 {
				opts.TimeBudget = budget
			}
			if mode != "" {
				opts.TestMode = types.StepMode(mode)
			}
			if approve != "" {
				opts.Approval.Mode = types.ApprovalMode(approve)
			}
			// A CLI run has nobody watching the approval gate; only the
			// manual mode set explicitly on the flag keeps it.
			if approve == "" && opts.Approval.Mode == types.ApprovalManual {
				opts.Approval.Mode = types.ApprovalAuto
			}
			opts.FailOnStuck = failOnStuck || opts.FailOnStuck
			if visualDiff || baselineRun != "" {
				opts.VisualDiff.Enabled = true
			}
			if baselineRun != "" {
				opts.VisualDiff.BaselineRunID = baselineRun
			}
			if visualThreshold > 0 {
				opts.VisualDiff.Threshold = visualThreshold
			}

			p, err := openPage(ctx, cfg, device)
			if err != nil {
				return fmt.Errorf("open browser: %w", err)
			}
			defer p.Close()

			manager := run.NewManager()
			exec := run.NewExecutor(manager)
			exec.DiagnoserTimeout = cfg.Defaults.DiagnoserTimeout
			exec.Design = cfg.Design
			if opts.TestMode == types.ModeMonkey {
				exec.Brain = brain.NewMonkey(seed)
			}
			r := manager.Create(args[0], opts)
			execErr := exec.Execute(ctx, r, p)

			snap := r.Snapshot()
			if jsonOut {
				if err := report.WriteJSON(os.Stdout, snap); err != nil {
					return err
				}
			} else {
				printer := output.NewPrinter(os.Stdout)
				if snap.Diagnosis != nil {
					report.PrintDiagnosis(printer, args[0], snap.Diagnosis)
					if cfg.TrackerDebug && snap.Diagnosis.ComprehensiveTests != nil {
						report.PrintTrackers(printer, snap.Diagnosis.ComprehensiveTests.ThirdParties)
					}
				}
				report.PrintRun(printer, snap)
			}
			return execErr
		},
	})
	cmd.Flags().StringVar(&deviceName, "device", "", "device profile to emulate")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "emit the run record as JSON")
	cmd.Flags().IntVar(&maxSteps, "max-steps", 0, "step ceiling override")
	cmd.Flags().DurationVar(&budget, "time-budget", 0, "wall-clock budget override")
	cmd.Flags().StringVar(&mode, "mode", "", "step decider: llm, speculative or monkey")
	cmd.Flags().StringVar(&approve, "approval", "", "approval mode: manual, auto or auto_on_clean")
	cmd.Flags().Int64Var(&seed, "seed", 1, "monkey mode random seed")
	cmd.Flags().BoolVar(&failOnStuck, "fail-on-stuck", false, "fail instead of waiting for intervention when healing is exhausted")
	cmd.Flags().BoolVar(&visualDiff, "visual-diff", false, "compare step screenshots against approved baselines")
	cmd.Flags().StringVar(&baselineRun, "baseline-run", "", "run ID whose baselines to diff against (implies --visual-diff)")
	cmd.Flags().Float64Var(&visualThreshold, "visual-threshold", 0, "diff percentage above which a step is flagged")
	return cmd
}

func newServeCmd(configPath *string) *cobra.Command {
	var addr string
	cmd := silenceUsageAndErrors(&cobra.Command{
		Use:   "serve",
		Short: "Serve the run API and live control channel",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Server.Addr = addr
			}
			manager := run.NewManager()
			exec := run.NewExecutor(manager)
			exec.DiagnoserTimeout = cfg.Defaults.DiagnoserTimeout
			exec.Design = cfg.Design
			factory := func(ctx context.Context, device types.DeviceProfile) (page.Page, error) {
				return openPage(ctx, cfg, device)
			}
			logf := func(format string, args ...any) {
				fmt.Fprintf(os.Stderr, format+"\n", args...)
			}
			srv := server.New(manager, exec, factory, cfg.RunOptions(), logf)
			fmt.Fprintf(os.Stderr, "webpilot listening on %s\n", cfg.Server.Addr)
			return listenAndServe(cfg.Server.Addr, srv)
		},
	})
	cmd.Flags().StringVar(&addr, "addr", "", "listen address override")
	return cmd
}

func newDiagnosisBar(quiet bool) *progressbar.ProgressBar {
	if quiet {
		return progressbar.DefaultSilent(100)
	}
	return progressbar.NewOptions(100,
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetDescription("Diagnosing"),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)
}

func silenceUsageAndErrors(cmd *cobra.Command) *cobra.Command {
	silenceErrors(cmd)
	cmd.SilenceUsage = true
	return cmd
}

func silenceErrors(cmd *cobra.Command) *cobra.Command {
	cmd.SilenceErrors = true
	return cmd
}

func maybePrintUsage(cmd, root *cobra.Command, err error) {
	if err == nil {
		return
	}
	target := cmd
	if target == nil {
		target = root
	}
	if target == nil {
		return
	}
	if shouldShowUsage(err) {
		_ = target.Usage()
	}
}

func shouldShowUsage(err error) bool {
	msg := strings.ToLower(err.Error())
	if strings.HasPrefix(msg, "unknown command") {
		return true
	}
	if strings.HasPrefix(msg, "unknown flag") || strings.HasPrefix(msg, "unknown shorthand flag") {
		return true
	}
	if strings.Contains(msg, "accepts") && strings.Contains(msg, "arg") {
		return true
	}
	if strings.Contains(msg, "required flag") {
		return true
	}
	if strings.Contains(msg, "flag needs an argument") {
		return true
	}
	if strings.HasPrefix(msg, "invalid argument") {
		return true
	}
	return false
}
