package main

import (
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	flag "github.com/spf13/pflag"

	"fractaldim/pkg/analysis"
	"fractaldim/pkg/config"
	"fractaldim/pkg/loader"
	"fractaldim/pkg/sink"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		log.Fatalf("fractaldim: %v", err)
	}
}

// run parses args, analyses the input archive and writes every configured output
func run(args []string) error {
	fs := flag.NewFlagSet("fractaldim", flag.ContinueOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: fractaldim [flags] <input.npz>\n\n")
		fs.PrintDefaults()
	}

	defaults := config.DefaultConfig()
	configPath := fs.StringP("config", "c", "", "YAML configuration file")
	writeConfig := fs.String("write-config", "", "Write the default configuration to this path and exit")
	outputFile := fs.StringP("output-file", "o", defaults.Output.File, "Output file for the per-frame dimensions")
	separator := fs.StringP("csv-separator", "s", defaults.Output.Separator, "Single-character column separator")
	arrayName := fs.StringP("array-name", "a", defaults.Analysis.ArrayName, "Name of the 4D array inside the archive")
	numCores := fs.IntP("cores", "j", defaults.Processing.NumCores, "Number of CPU cores used by --parallel")
	parallel := fs.Bool("parallel", defaults.Processing.Parallel, "Generate keys with the data-parallel strategy")
	lacunarity := fs.Bool("lacunarity", defaults.Output.Lacunarity, "Append the per-level lacunarity curve to every row")
	sqlitePath := fs.String("sqlite", "", "Also record results into this SQLite database")
	plotPath := fs.String("plot", "", "Also render the dimension series as a PNG chart")
	maskDir := fs.String("mask-dir", "", "Save the central occupancy slices of every frame to this directory")
	quiet := fs.BoolP("quiet", "q", false, "Do not log per-frame progress")

	if err := fs.Parse(args); err != nil {
		return err
	}

	if *writeConfig != "" {
		if err := config.CreateDefaultConfigFile(*writeConfig); err != nil {
			return err
		}
		fmt.Printf("Default configuration written to: %s\n", *writeConfig)
		return nil
	}

	if fs.NArg() != 1 {
		fs.Usage()
		return fmt.Errorf("expected exactly one input file, got %d", fs.NArg())
	}
	inputPath := fs.Arg(0)

	cfg := defaults
	if *configPath != "" {
		// LoadConfig falls back to defaults for a missing file, an explicit path must exist
		if _, err := os.Stat(*configPath); err != nil {
			return fmt.Errorf("config file: %w", err)
		}
		var err error
		if cfg, err = config.LoadConfig(*configPath); err != nil {
			return err
		}
	}

	// explicit flags win over the configuration file
	overrides := map[string]func(){
		"output-file":   func() { cfg.Output.File = *outputFile },
		"csv-separator": func() { cfg.Output.Separator = *separator },
		"array-name":    func() { cfg.Analysis.ArrayName = *arrayName },
		"cores":         func() { cfg.Processing.NumCores = *numCores },
		"parallel":      func() { cfg.Processing.Parallel = *parallel },
		"lacunarity":    func() { cfg.Output.Lacunarity = *lacunarity },
		"sqlite":        func() { cfg.Output.SQLitePath = *sqlitePath },
		"plot":          func() { cfg.Output.PlotPath = *plotPath },
		"mask-dir":      func() { cfg.Output.MaskDir = *maskDir },
		"quiet":         func() { cfg.Output.Verbose = !*quiet },
	}
	fs.Visit(func(f *flag.Flag) {
		if apply, ok := overrides[f.Name]; ok {
			apply()
		}
	})

	if err := cfg.Validate(); err != nil {
		return err
	}
	sep, err := config.ParseSeparator(cfg.Output.Separator)
	if err != nil {
		return err
	}

	series, err := loader.Load(inputPath, cfg.Analysis)
	if err != nil {
		return err
	}
	if cfg.Output.Verbose {
		log.Printf("Loaded %d frames of %dx%dx%d", series.Frames, series.X, series.Y, series.Z)
		log.Println("Loading done. Starting processing.")
	}

	var mapper analysis.KeyMapper = analysis.SequentialMapper{}
	if cfg.Processing.Parallel {
		mapper = analysis.ParallelMapper{NumCores: cfg.Processing.NumCores}
	}

	out, err := openSinks(cfg, sep, inputPath, mapper.Name())
	if err != nil {
		return err
	}

	driver, err := analysis.NewDriver(&analysis.Params{
		Analysis:   cfg.Analysis,
		Mapper:     mapper,
		FlushEvery: cfg.Processing.FlushEvery,
		Verbose:    cfg.Output.Verbose,
		MaskDir:    cfg.Output.MaskDir,
	})
	if err != nil {
		out.Close()
		return err
	}

	startTime := time.Now()
	if err := driver.Process(series, out); err != nil {
		out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	processingTime := time.Since(startTime)

	if cfg.Output.Verbose {
		summary := driver.GetSummary()
		fmt.Printf("\nProcessed %d frames in %.2f seconds using %s key generation\n",
			summary.Frames, processingTime.Seconds(), mapper.Name())
		fmt.Printf("Empty frames: %d\n", summary.EmptyFrames)
		fmt.Printf("Mean fractal dimension: %.4f (std %.4f)\n", summary.MeanDimension, summary.StdDimension)
		fmt.Printf("Output saved to: %s\n", cfg.Output.File)
	}

	return nil
}

// openSinks opens the CSV output and every optional sink enabled in cfg
func openSinks(cfg *config.Config, sep byte, inputPath, strategy string) (sink.Multi, error) {
	levels := 0
	if cfg.Output.Lacunarity {
		levels = cfg.Analysis.Levels()
	}

	csvSink, err := sink.CreateCSV(cfg.Output.File, sep, levels)
	if err != nil {
		return nil, err
	}
	out := sink.Multi{csvSink}

	if cfg.Output.SQLitePath != "" {
		db, err := sink.OpenSQLite(cfg.Output.SQLitePath, inputPath, strategy)
		if err != nil {
			out.Close()
			return nil, err
		}
		out = append(out, db)
	}

	if cfg.Output.PlotPath != "" {
		out = append(out, sink.NewPlotSink(cfg.Output.PlotPath, inputPath))
	}

	return out, nil
}
