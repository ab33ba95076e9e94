// Public domain.

// Package lkprog is the linker command tree.
package lkprog

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/google/uuid"
	"github.com/soniakeys/exit"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/chapinalc/New-NewLinker/internal/config"
	"github.com/chapinalc/New-NewLinker/internal/oracle"
)

const versionString = "linker version 0.3 Go source."

// Main runs the linker command line.
func Main() {
	defer exit.Handler()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	a := newApp(os.Stdout)
	err := a.rootCmd().ExecuteContext(ctx)
	if a.log != nil {
		_ = a.log.Sync()
	}
	if err != nil {
		exit.Log(err)
	}
}

// app holds state shared by the commands of one invocation.
type app struct {
	v       *viper.Viper
	cfgFile string
	verbose bool
	dets    string // detection catalog
	stage   string // stage read from a track database

	cfg      config.Config
	runGiven bool
	log      *zap.Logger
	out      io.Writer
	ora      oracle.Oracle // nil selects the Exec oracle
}

func newApp(out io.Writer) *app {
	return &app{v: viper.New(), out: out}
}

func (a *app) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "linker",
		Short: "Grow and merge tracks of moving objects",
		Long: `linker grows short tracks of transient detections into longer ones.
Candidate detections near orbit predictions are collected, then tracks
sharing detections are merged while their combined orbit fits stay good.
Orbit fitting and prediction are done by external programs.`,
		Version:           versionString,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
	}
	pf := root.PersistentFlags()
	pf.StringVar(&a.cfgFile, "config", "", "config file (default linker.toml in . or $HOME)")
	pf.String("work-dir", ".", "directory for oracle files")
	pf.Bool("overwrite", false, "rerun oracle programs even if their results exist")
	pf.String("run", "", "run id naming oracle files and stored tracks (default random)")
	pf.BoolVarP(&a.verbose, "verbose", "v", false, "debug logging")
	pf.StringVarP(&a.dets, "dets", "d", "", "detection catalog, CSV")
	pf.StringVar(&a.stage, "stage", "seeds", "stage to read from a track database")
	_ = a.v.BindPFlag("work_dir", pf.Lookup("work-dir"))
	_ = a.v.BindPFlag("overwrite", pf.Lookup("overwrite"))
	_ = a.v.BindPFlag("run", pf.Lookup("run"))

	root.AddCommand(
		a.siftCmd(),
		a.growCmd(),
		a.mergeCmd(),
		a.scriptCmd(),
		a.evalCmd(),
		a.simulateCmd(),
	)
	return root
}

// setup loads configuration and builds the logger.
func (a *app) setup(cmd *cobra.Command, args []string) error {
	config.Init(a.v, a.cfgFile)
	cfg, err := config.Load(a.v)
	if err != nil {
		return err
	}
	if a.verbose {
		cfg.Log.Level = "debug"
	}
	a.runGiven = cfg.Run != ""
	if !a.runGiven {
		cfg.Run = uuid.NewString()
	}
	a.cfg = cfg
	if a.log == nil {
		if a.log, err = newLogger(cfg.Log); err != nil {
			return err
		}
	}
	a.log.Debug("configured",
		zap.String("command", cmd.Name()),
		zap.String("run", cfg.Run),
		zap.String("config", a.v.ConfigFileUsed()))
	return nil
}

func newLogger(c config.LogConfig) (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	if c.Development {
		zc = zap.NewDevelopmentConfig()
	}
	lvl, err := zap.ParseAtomicLevel(c.Level)
	if err != nil {
		return nil, fmt.Errorf("%w: log.level: %v", config.ErrInvalid, err)
	}
	zc.Level = lvl
	return zc.Build()
}

// openOracle returns the configured oracle.  The effective configuration
// of a run that calls external programs is saved beside their files.
func (a *app) openOracle() (oracle.Oracle, error) {
	if a.ora != nil {
		return a.ora, nil
	}
	if err := os.MkdirAll(a.cfg.WorkDir, 0o755); err != nil {
		return nil, err
	}
	fn := oracleConfigPath(a.cfg)
	if err := a.cfg.WriteTOML(fn); err != nil {
		return nil, err
	}
	a.log.Info("run", zap.String("run", a.cfg.Run), zap.String("config", fn))
	return oracle.NewExec(a.cfg.WorkDir, a.cfg.Run, a.cfg.Commands(), a.cfg.Overwrite, nil, a.log), nil
}
