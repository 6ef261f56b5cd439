package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/gookit/color"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"voxelbuild.ai/internal/buildrun"
	persistlog "voxelbuild.ai/internal/persistence/log"
	"voxelbuild.ai/internal/persistence/snapfile"
	"voxelbuild.ai/internal/sim/battery"
	"voxelbuild.ai/internal/sim/site"
)

var (
	tuningFlag   string
	originFlag   string
	facingFlag   int
	stockFlag    string
	itemFlag     string
	resumeFlag   string
	maxTicksFlag uint64
	cancelAtFlag uint64
	saveFlag     string
	logDirFlag   string
)

var runCmd = &cobra.Command{
	Use:   "run TARGET",
	Short: "Build a definition or snapshot headless and print a summary",
	Args:  cobra.ExactArgs(1),
	Run:   runCommand,
}

func init() {
	runCmd.Flags().StringVar(&tuningFlag, "tuning", "", "Tuning file (default: <configs>/tuning.yaml)")
	runCmd.Flags().StringVar(&originFlag, "origin", "", "Build origin x,y,z (default: 0,<ground_y>,0)")
	runCmd.Flags().IntVar(&facingFlag, "facing", 0, "Quarter turns the structure faces")
	runCmd.Flags().StringVar(&stockFlag, "stock", "", "Starting inventory ITEM=N,... (default: exactly what the target needs)")
	runCmd.Flags().StringVar(&itemFlag, "template-item", buildrun.DefaultTemplateItem, "Item templates are built from when stocking automatically")
	runCmd.Flags().StringVar(&resumeFlag, "resume", "", "World file to continue from")
	runCmd.Flags().Uint64Var(&maxTicksFlag, "max-ticks", 1_000_000, "Give up after this many ticks")
	runCmd.Flags().Uint64Var(&cancelAtFlag, "cancel-at", 0, "Cancel the build at this tick (0: never)")
	runCmd.Flags().StringVar(&saveFlag, "save", "", "Write the final world to this file")
	runCmd.Flags().StringVar(&logDirFlag, "log-dir", "", "Write tick and audit logs under this directory")
}

type simResult struct {
	Name      string
	Ticks     uint64
	TickRate  int
	Placed    int64
	Cleared   int64
	Done      bool
	Cancelled bool
	Stored    uint64
	Left      map[string]int
	Wall      time.Duration
}

func runCommand(cmd *cobra.Command, args []string) {
	opts := buildrun.Options{
		ConfigDir:    configDir,
		TuningPath:   tuningFlag,
		Target:       args[0],
		Facing:       facingFlag,
		TemplateItem: itemFlag,
		Resume:       resumeFlag,
		Logger:       log.Logger,
	}
	if strings.TrimSpace(originFlag) != "" {
		c, err := buildrun.ParseCell(originFlag)
		if err != nil {
			log.Fatal().Err(err).Msg("Bad --origin")
		}
		opts.Origin = &c
	}
	if strings.TrimSpace(stockFlag) != "" {
		m, err := buildrun.ParseStock(stockFlag)
		if err != nil {
			log.Fatal().Err(err).Msg("Bad --stock")
		}
		opts.Stock = m
	}

	var closers []io.Closer
	var s *site.Site
	if logDirFlag != "" {
		tl := persistlog.NewTickLogger(logDirFlag)
		al := persistlog.NewAuditLogger(logDirFlag, func() uint64 { return s.Tick() })
		closers = append(closers, tl, al)
		opts.Site = append(opts.Site, site.WithTickSink(tl), site.WithAudit(al))
	}

	run, err := buildrun.Prepare(opts)
	if err != nil {
		log.Fatal().Err(err).Msg("Couldn't prepare build")
	}
	s = run.Site

	fmt.Fprintln(os.Stderr, color.Cyan.Sprintf("Building %s...", run.Snapshot.Meta().Header.Name))
	res, err := simulate(run, maxTicksFlag, cancelAtFlag)
	for _, c := range closers {
		_ = c.Close()
	}
	if err != nil {
		log.Error().Err(err).Msg("Build did not finish")
	}
	if saveFlag != "" {
		cp, cerr := s.Checkpoint()
		if cerr == nil {
			cerr = snapfile.WriteWorld(saveFlag, run.World(cp, time.Now()))
		}
		if cerr != nil {
			log.Fatal().Err(cerr).Msg("Couldn't save world")
		}
		log.Info().Str("path", saveFlag).Msg("World saved")
	}
	printSummary(os.Stderr, res)
	if err != nil {
		os.Exit(1)
	}
}

// simulate steps the site as fast as possible. cancelAt 0 never cancels.
func simulate(run *buildrun.Run, maxTicks, cancelAt uint64) (simResult, error) {
	s := run.Site
	start := time.Now()
	var err error
	for {
		if cancelAt > 0 && s.Tick() >= cancelAt && !s.Cancelled() {
			s.CancelNow()
			break
		}
		if !s.Step() {
			break
		}
		if s.Tick() >= maxTicks {
			err = fmt.Errorf("still building after %d ticks", maxTicks)
			break
		}
	}
	return simResult{
		Name:      run.Snapshot.Meta().Header.Name,
		Ticks:     s.Tick(),
		TickRate:  run.Tuning.TickRateHz,
		Placed:    s.Placed(),
		Cleared:   s.Cleared(),
		Done:      s.Done(),
		Cancelled: s.Cancelled(),
		Stored:    s.Battery().Stored(),
		Left:      s.Inventory().Map(),
		Wall:      time.Since(start),
	}, err
}

func printSummary(w io.Writer, r simResult) {
	state := color.Yellow.Sprint("unfinished")
	switch {
	case r.Cancelled:
		state = color.Magenta.Sprint("cancelled")
	case r.Done:
		state = color.Green.Sprint("done")
	}
	simTime := time.Duration(0)
	if r.TickRate > 0 {
		simTime = time.Duration(r.Ticks) * time.Second / time.Duration(r.TickRate)
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "%s %s\n", color.Bold.Sprint(r.Name), state)
	fmt.Fprintf(w, "  ticks:     %d (%s simulated, %s wall)\n", r.Ticks, simTime, r.Wall.Round(time.Millisecond))
	fmt.Fprintf(w, "  placed:    %d\n", r.Placed)
	fmt.Fprintf(w, "  cleared:   %d\n", r.Cleared)
	fmt.Fprintf(w, "  battery:   %.3f MJ\n", float64(r.Stored)/float64(battery.MJ))
	left := buildrun.FormatStock(r.Left)
	if left == "" {
		left = "-"
	}
	fmt.Fprintf(w, "  inventory: %s\n", left)
}
