package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"jsonetl/internal/config"
	jsonparser "jsonetl/internal/parser/json"
	"jsonetl/internal/scan"
	"jsonetl/internal/transformer"
)

// app carries state shared by the subcommands of one invocation.
type app struct {
	v       *viper.Viper
	cfgFile string
	verbose bool
	noBars  bool

	cfg config.Config
	log *zap.Logger
	fs  afero.Fs
}

func newRootCmd() *cobra.Command {
	a := &app{v: viper.New(), fs: afero.NewOsFs()}
	config.SetDefaults(a.v)

	root := &cobra.Command{
		Use:   "jsonetl",
		Short: "Load folders of JSON record files into a SQL table",
		Long: `jsonetl discovers .json, .jsonl and .ddbjson files under source folders,
flattens every record, infers a column type for every field across all records
and loads them into a table named after the target.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init(cmd)
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if a.log != nil {
				_ = a.log.Sync()
			}
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.cfgFile, "config", "", "config file (default is ./jsonetl.yaml)")
	pf.String("kind", "", "storage backend: sqlite, postgres, mssql or mysql")
	pf.String("dsn", "", "storage data source name")
	pf.StringP("target", "t", "", "target identifier; the table is jsonetl_<sanitized target>")
	pf.Int("batch-size", 0, "records per insert transaction")
	pf.Int("max-depth", 0, "object levels expanded into compound column names")
	pf.String("metrics-backend", "", "metrics backend: none or datadog")
	pf.BoolVarP(&a.verbose, "verbose", "v", false, "enable debug logs")
	pf.BoolVar(&a.noBars, "no-progress", false, "disable progress bars")

	_ = a.v.BindPFlag("storage.kind", pf.Lookup("kind"))
	_ = a.v.BindPFlag("storage.dsn", pf.Lookup("dsn"))
	_ = a.v.BindPFlag("target", pf.Lookup("target"))
	_ = a.v.BindPFlag("load.batch_size", pf.Lookup("batch-size"))
	_ = a.v.BindPFlag("scan.max_depth", pf.Lookup("max-depth"))
	_ = a.v.BindPFlag("metrics.backend", pf.Lookup("metrics-backend"))

	root.AddCommand(newScanCmd(a), newLoadCmd(a), newValidateCmd(a))
	return root
}

// init reads the config file and environment, then builds the logger.
func (a *app) init(cmd *cobra.Command) error {
	if err := a.readConfig(); err != nil {
		return err
	}
	cfg, err := config.Load(a.v)
	if err != nil {
		return err
	}
	if a.verbose {
		cfg.Log.Level = "debug"
	}
	a.cfg = cfg

	if cmd.Name() == "validate" {
		return nil
	}
	issues := config.Validate(cfg)
	for _, iss := range issues {
		fmt.Fprintf(cmd.ErrOrStderr(), "%s: %s: %s\n", iss.Severity, iss.Path, iss.Message)
	}
	if config.HasErrors(issues) {
		return errors.New("configuration is invalid")
	}

	a.log, err = cfg.Log.NewLogger()
	return err
}

func (a *app) readConfig() error {
	if a.cfgFile != "" {
		a.v.SetConfigFile(a.cfgFile)
	} else {
		if ex, err := os.Executable(); err == nil {
			a.v.AddConfigPath(filepath.Dir(ex))
		}
		a.v.AddConfigPath(".")
		a.v.SetConfigName("jsonetl")
		a.v.SetConfigType("yaml")
	}
	config.BindEnv(a.v)

	if err := a.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if a.cfgFile == "" && errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

// folders resolves scan roots from arguments, falling back to config.
func (a *app) folders(args []string) ([]scan.SourceFolder, error) {
	paths := args
	if len(paths) == 0 {
		paths = a.cfg.Sources
	}
	if len(paths) == 0 {
		return nil, errors.New("no source folders: pass them as arguments or set sources in config")
	}
	out := make([]scan.SourceFolder, len(paths))
	for i, p := range paths {
		out[i] = scan.SourceFolder{ID: fmt.Sprintf("src-%d", i+1), Path: p}
	}
	return out, nil
}

func (a *app) scanOptions() scan.Options {
	return scan.Options{
		Fs:                a.fs,
		Parser:            jsonparser.Options{YieldEvery: a.cfg.Scan.YieldEvery},
		Flatten:           transformer.FlattenOptions{MaxDepth: a.cfg.Scan.MaxDepth, Separator: a.cfg.Scan.Separator},
		SkipDirs:          a.cfg.Scan.SkipDirs,
		FileProgressEvery: a.cfg.Scan.FileProgressEvery,
		Logger:            a.log,
	}
}
