package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/leanworks/mend/internal/cli/tui"
	"github.com/leanworks/mend/internal/config"
	"github.com/leanworks/mend/internal/diag"
	"github.com/leanworks/mend/internal/events"
	"github.com/leanworks/mend/internal/gitutil"
	"github.com/leanworks/mend/internal/innovate"
	"github.com/leanworks/mend/internal/llm"
	"github.com/leanworks/mend/internal/loop"
	"github.com/leanworks/mend/internal/patch"
	"github.com/leanworks/mend/internal/project"
	"github.com/leanworks/mend/internal/rules"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// RunOptions holds flags for the run command
type RunOptions struct {
	File           string // Target Lean file to repair
	MaxIterations  int    // Patch budget per session (0 = config default)
	Beam           int    // Deterministic candidates per iteration (0 = config default)
	InnovateRounds int    // Extension attempts after repair (-1 = config default)
	Theme          string // Steers what the extensions are about
	Document       bool   // Run the comment-enrichment pass
	ScratchBranch  bool   // Park the run on a fresh git branch
	NoTUI          bool   // Disable TUI even when stdout is a TTY
}

// Validate checks RunOptions for validity
func (opts RunOptions) Validate() error {
	if opts.File == "" {
		return fmt.Errorf("target file must not be empty")
	}
	if opts.MaxIterations < 0 {
		return fmt.Errorf("max iterations must be non-negative, got %d", opts.MaxIterations)
	}
	if opts.Beam < 0 {
		return fmt.Errorf("beam must be non-negative, got %d", opts.Beam)
	}
	return nil
}

// NewRunCmd creates the run command
func NewRunCmd(app *App) *cobra.Command {
	opts := RunOptions{
		InnovateRounds: -1,
	}

	cmd := &cobra.Command{
		Use:   "run <file.lean>",
		Short: "Repair a Lean file until it verifies",
		Long: `Run compiles the file, applies one patch per iteration (deterministic
rules first, language model as fallback), and recompiles until the file
verifies or no progress is possible.

Snapshots, an event log, and a JSON report land in the runs directory.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.File = args[0]

			if err := opts.Validate(); err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
				os.Exit(2)
			}

			return app.RunRepair(context.Background(), opts)
		},
	}

	cmd.Flags().IntVarP(&opts.MaxIterations, "max-iters", "n", 0, "Patch budget per session (default from config)")
	cmd.Flags().IntVar(&opts.Beam, "beam", 0, "Deterministic candidates raced per iteration (default from config)")
	cmd.Flags().IntVar(&opts.InnovateRounds, "innovate", -1, "Extension attempts after a successful repair")
	cmd.Flags().StringVar(&opts.Theme, "theme", "", "Theme for generated extensions")
	cmd.Flags().BoolVar(&opts.Document, "document", false, "Add doc comments after repair (reverted if the build breaks)")
	cmd.Flags().BoolVar(&opts.ScratchBranch, "scratch-branch", false, "Create a scratch git branch for the run")
	cmd.Flags().BoolVar(&opts.NoTUI, "no-tui", false, "Disable interactive TUI (use log output)")

	return cmd
}

// RunRepair executes one repair session end to end
func (a *App) RunRepair(ctx context.Context, opts RunOptions) error {
	if err := opts.Validate(); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var tuiBridge *tui.Bridge
	handler := NewSignalHandler(cancel)
	handler.OnShutdown(func() {
		if tuiBridge != nil {
			tuiBridge.SendQuit()
			return
		}
		fmt.Fprintln(os.Stderr, "\nShutting down gracefully...")
	})
	handler.Start()
	defer handler.Stop()

	proj, err := project.Discover(opts.File)
	if err != nil {
		return fmt.Errorf("discover project: %w", err)
	}

	cfg, err := config.LoadConfig(proj.Root())
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	applyFlagOverrides(cfg, opts)

	runDir, err := project.NewRunDir(cfg.RunsDir)
	if err != nil {
		return fmt.Errorf("create run dir: %w", err)
	}

	bus := events.NewBus()

	eventLog, err := runDir.CreateLog("events.jsonl")
	if err != nil {
		return fmt.Errorf("create event log: %w", err)
	}
	defer eventLog.Close()
	bus.Subscribe(events.JSONEmitterHandler(events.NewJSONEmitter(eventLog)))

	useTUI := !opts.NoTUI && term.IsTerminal(int(os.Stdout.Fd()))

	shutdownTUI := func() {}
	if useTUI {
		model := tui.NewModel(proj.TargetPath(), cfg.Loop.MaxIterations)
		program := tea.NewProgram(model, tea.WithAltScreen())
		tuiBridge = tui.NewBridge(program)
		bus.Subscribe(tuiBridge.Handler())

		logWriter := tui.NewLogWriter(program)
		bus.Subscribe(events.LogHandler(events.LogConfig{
			Writer:         logWriter,
			IncludePayload: a.verbose,
		}))

		tuiDone := make(chan struct{})
		go func() {
			defer close(tuiDone)
			if _, err := program.Run(); err != nil {
				fmt.Fprintf(os.Stderr, "TUI error: %v\n", err)
			}
		}()

		var once sync.Once
		shutdownTUI = func() {
			once.Do(func() {
				logWriter.Flush()
				tuiBridge.SendDone()
				<-tuiDone
			})
		}
		defer shutdownTUI()
	} else {
		bus.Subscribe(events.LogHandler(events.LogConfig{
			Writer:         os.Stderr,
			IncludePayload: a.verbose,
		}))
	}

	branch := ""
	if opts.ScratchBranch || cfg.Git.ScratchBranch {
		branch, err = gitutil.EnsureScratchBranch(ctx, proj.Root(), cfg.Git.BranchPrefix)
		if err != nil {
			return fmt.Errorf("scratch branch: %w", err)
		}
		if branch != "" {
			bus.Emit(events.NewEvent(events.BranchCreated, proj.TargetPath()).WithPayload(branch))
		} else {
			bus.Emit(events.NewEvent(events.BranchSkipped, proj.TargetPath()))
		}
	}

	toolchainTimeout, err := cfg.ToolchainTimeout()
	if err != nil {
		return fmt.Errorf("invalid toolchain timeout: %w", err)
	}
	collector := diag.NewToolchainCollector(proj,
		diag.WithCommand(cfg.Toolchain.Command),
		diag.WithFallback(cfg.Toolchain.Fallback),
		diag.WithTimeout(toolchainTimeout),
	)

	adapter, err := buildAdapter(cfg, proj.Root())
	if err != nil {
		return err
	}

	buffer, err := proj.ReadTarget()
	if err != nil {
		return fmt.Errorf("read target: %w", err)
	}
	if _, err := runDir.Snapshot(proj.TargetPath(), "initial", buffer); err != nil {
		return fmt.Errorf("snapshot: %w", err)
	}

	repairLoop := &loop.Loop{
		Collector:     collector,
		Rules:         rules.NewEngine(),
		Events:        bus,
		Session:       proj.TargetPath(),
		MaxIterations: cfg.Loop.MaxIterations,
		Beam:          cfg.Loop.Beam,
		LintClean: func(buffer string) bool {
			return len(project.Lint(buffer)) == 0
		},
		Snapshot: func(tag, content string) {
			if _, err := runDir.Snapshot(proj.TargetPath(), tag, content); err == nil {
				bus.Emit(events.NewEvent(events.SnapshotWritten, proj.TargetPath()).WithPayload(tag))
			}
		},
	}
	if adapter != nil {
		repairLoop.Generator = adapter
	}

	started := time.Now()
	state, runErr := repairLoop.Run(ctx, buffer)

	final := state.Buffer
	var rounds []innovate.Round
	if runErr == nil && state.Status == loop.StatusFixed && adapter != nil && cfg.Innovate.Rounds > 0 {
		innovator := &innovate.Innovator{
			Extender: adapter,
			Runner:   repairLoop,
			Events:   bus,
			Session:  proj.TargetPath(),
			Theme:    cfg.Innovate.Theme,
			Rounds:   cfg.Innovate.Rounds,
			Document: cfg.Innovate.Document,
			Verify:   collector.Compile,
		}
		final, rounds, err = innovator.Run(ctx, state.Buffer)
		if err != nil {
			return fmt.Errorf("innovate: %w", err)
		}
	}

	if state.Status == loop.StatusFixed {
		if err := proj.WriteTarget(final); err != nil {
			return fmt.Errorf("write target: %w", err)
		}
		if _, err := runDir.Snapshot(proj.TargetPath(), "final", final); err != nil {
			return fmt.Errorf("snapshot: %w", err)
		}
	}

	if err := writeReport(runDir, proj.TargetPath(), state, started); err != nil {
		return err
	}

	if branch != "" && state.Status == loop.StatusFixed {
		msg := fmt.Sprintf("Repair %s (%d iterations)", proj.TargetPath(), state.Iteration)
		if _, err := gitutil.CommitAll(ctx, proj.Root(), msg); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: commit failed: %v\n", err)
		}
	}

	// The summary must land on the regular screen, not inside the alt screen.
	shutdownTUI()
	printSummary(os.Stdout, state, rounds, runDir.Path)

	if runErr != nil {
		return runErr
	}
	if state.Status != loop.StatusFixed {
		return fmt.Errorf("repair did not converge: %s", state.Status)
	}
	return nil
}

// applyFlagOverrides lets explicit flags win over file and env config.
func applyFlagOverrides(cfg *config.Config, opts RunOptions) {
	if opts.MaxIterations > 0 {
		cfg.Loop.MaxIterations = opts.MaxIterations
	}
	if opts.Beam > 0 {
		cfg.Loop.Beam = opts.Beam
	}
	if opts.InnovateRounds >= 0 {
		cfg.Innovate.Rounds = opts.InnovateRounds
	}
	if opts.Theme != "" {
		cfg.Innovate.Theme = opts.Theme
	}
	if opts.Document {
		cfg.Innovate.Document = true
	}
}

// buildAdapter wires the generative fallback, or returns nil when no API
// key is available. Repair still runs on deterministic rules alone.
func buildAdapter(cfg *config.Config, root string) (*llm.Adapter, error) {
	key := cfg.ResolveAPIKey(root)
	if key == "" {
		return nil, nil
	}
	requestTimeout, err := cfg.ModelRequestTimeout()
	if err != nil {
		return nil, fmt.Errorf("invalid model request timeout: %w", err)
	}
	client := llm.NewOpenAIClient(key,
		llm.WithModel(cfg.Model.Name),
		llm.WithMaxTokens(cfg.Model.MaxTokens),
		llm.WithRequestTimeout(requestTimeout),
	)
	return llm.NewAdapter(client), nil
}

func writeReport(runDir *project.RunDir, session string, state *loop.SessionState, started time.Time) error {
	reportFile, err := runDir.CreateLog("report.json")
	if err != nil {
		return fmt.Errorf("create report: %w", err)
	}
	defer reportFile.Close()

	report := loop.NewReport(session, state, started, time.Now())
	if err := report.Write(reportFile); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}

func printSummary(w io.Writer, state *loop.SessionState, rounds []innovate.Round, runPath string) {
	fmt.Fprintf(w, "\nRepair complete:\n")
	fmt.Fprintf(w, "  Status:       %s\n", state.Status)
	fmt.Fprintf(w, "  Iterations:   %d\n", state.Iteration)
	if state.Final != nil && !state.Final.Success {
		fmt.Fprintf(w, "  Remaining:    %d errors\n", state.Final.ErrorCount())
	}
	deterministic, generative := 0, 0
	for _, rec := range state.History {
		if rec.Patch != nil && rec.Patch.Origin == patch.OriginGenerative {
			generative++
		} else {
			deterministic++
		}
	}
	if len(state.History) > 0 {
		fmt.Fprintf(w, "  Patches:      %d deterministic, %d generative\n", deterministic, generative)
	}
	if len(rounds) > 0 {
		accepted := 0
		for _, r := range rounds {
			if r.Accepted {
				accepted++
			}
		}
		fmt.Fprintf(w, "  Extensions:   %d/%d accepted\n", accepted, len(rounds))
	}
	fmt.Fprintf(w, "  Artifacts:    %s\n", runPath)
}
