// Command camcli converts PCB fabrication data into machine toolpaths.
// Gerber layers become isolation (and optionally clearing) programs,
// Excellon drill files become drilling programs. Inputs are processed in
// parallel and each produces one motion-code file in the output
// directory.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	flag "github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/johnbetts/flatcam-mac-fork"
	"github.com/johnbetts/flatcam-mac-fork/excellon"
	"github.com/johnbetts/flatcam-mac-fork/gcode"
	"github.com/johnbetts/flatcam-mac-fork/gerber"
	"github.com/johnbetts/flatcam-mac-fork/internal/batch"
	"github.com/johnbetts/flatcam-mac-fork/toolpath"
)

func main() {
	var (
		configPath  = flag.String("config", "", "config file (default: camcli.yaml in the working directory)")
		outDir      = flag.String("out-dir", ".", "directory for generated programs")
		dialect     = flag.String("dialect", "grbl", "target dialect: grbl, linuxcnc, marlin or a name from --profile")
		profile     = flag.String("profile", "", "HCL file with custom dialect profiles")
		jobs        = flag.Int("jobs", 0, "parallel workers (0 = all CPUs)")
		clearCopper = flag.Bool("clear", false, "also generate copper clearing for Gerber inputs")
		strict      = flag.Bool("strict", false, "fail on recoverable parse errors")
		verbose     = flag.Bool("verbose", false, "debug logging")
	)
	flag.SetInterspersed(true)
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	camlib.SetLogger(logger)

	if len(flag.Args()) == 0 {
		fmt.Fprintf(os.Stderr, "Usage:\n    %s [options] <file.gbr|file.drl>...\n", os.Args[0])
		flag.PrintDefaults()
		os.Exit(1)
	}

	if err := loadConfig(*configPath); err != nil {
		logger.Error("config", "error", err)
		os.Exit(1)
	}

	d, err := resolveDialect(*dialect, *profile)
	if err != nil {
		logger.Error("dialect", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	run := runner{
		log:     logger,
		outDir:  *outDir,
		dialect: d,
		clear:   *clearCopper,
		strict:  *strict,
	}

	pool := batch.New(*jobs)
	defer pool.Close()

	inputs := flag.Args()
	work := make([]batch.Job, len(inputs))
	for i, path := range inputs {
		path := path
		work[i] = func(ctx context.Context) error {
			return run.process(ctx, path)
		}
	}

	failed := 0
	for i, err := range pool.Run(ctx, work) {
		if err != nil {
			logger.Error("failed", "input", inputs[i], "error", err)
			failed++
		}
	}
	if failed > 0 {
		os.Exit(1)
	}
}

// loadConfig reads defaults for tool and cut parameters. A missing file is
// fine unless the user named one explicitly.
func loadConfig(path string) error {
	viper.SetDefault("tool.name", "vbit-0.2")
	viper.SetDefault("tool.diameter", 0.2)
	viper.SetDefault("tool.feed_xy", 120.0)
	viper.SetDefault("tool.feed_z", 60.0)
	viper.SetDefault("tool.rpm", 10000.0)
	viper.SetDefault("tool.pass_depth", 0.0)
	viper.SetDefault("drill.name", "drill-0.8")
	viper.SetDefault("drill.diameter", 0.8)
	viper.SetDefault("drill.feed_z", 90.0)
	viper.SetDefault("cut.depth", 0.1)
	viper.SetDefault("cut.drill_depth", 1.8)
	viper.SetDefault("cut.safe_z", 2.0)
	viper.SetDefault("isolation.passes", 1)
	viper.SetDefault("isolation.step_over", 0.0)
	viper.SetDefault("clearing.overlap", 0.25)

	if path != "" {
		viper.SetConfigFile(path)
		return viper.ReadInConfig()
	}
	viper.SetConfigName("camcli")
	viper.AddConfigPath(".")
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return err
	}
	return nil
}

func resolveDialect(name, profilePath string) (gcode.Dialect, error) {
	if profilePath != "" {
		ds, err := gcode.LoadDialectFile(profilePath)
		if err != nil {
			return gcode.Dialect{}, err
		}
		for _, d := range ds {
			if d.Name == name {
				return d, nil
			}
		}
	}
	if d, ok := gcode.Builtin(name); ok {
		return d, nil
	}
	return gcode.Dialect{}, fmt.Errorf("unknown dialect %q", name)
}

type runner struct {
	log     *slog.Logger
	outDir  string
	dialect gcode.Dialect
	clear   bool
	strict  bool
}

// process runs the full pipeline for one input file.
func (r *runner) process(ctx context.Context, path string) error {
	cfg := camlib.DefaultKernel()

	var paths []toolpath.Toolpath
	var warnings []camlib.CoverageWarning

	switch kind := detectKind(path); kind {
	case kindGerber:
		g, err := r.parseGerber(path, cfg)
		if err != nil {
			return err
		}
		res, err := toolpath.Generate(ctx, g, isolationParams(), cfg)
		if err != nil {
			return err
		}
		paths, warnings = res.Paths, res.Warnings
		if r.clear {
			cres, err := toolpath.Generate(ctx, g, clearingParams(), cfg)
			if err != nil {
				return err
			}
			paths = append(paths, cres.Paths...)
			warnings = append(warnings, cres.Warnings...)
		}
	case kindExcellon:
		doc, err := r.parseExcellon(path)
		if err != nil {
			return err
		}
		// One drilling request per file tool keeps hits grouped so each
		// physical tool mounts once, and carries the file's hole diameter
		// so oversized holes fall back to routing.
		for _, n := range doc.ToolNumbers() {
			g := doc.ResolveTool(n, cfg)
			if len(g.Points) == 0 && len(g.Lines) == 0 {
				continue
			}
			res, err := toolpath.Generate(ctx, g, drillingParams(doc.Tools[n].Diameter), cfg)
			if err != nil {
				return err
			}
			paths = append(paths, res.Paths...)
			warnings = append(warnings, res.Warnings...)
		}
	default:
		return fmt.Errorf("cannot tell Gerber from Excellon by extension: %s", path)
	}

	for _, w := range warnings {
		r.log.Warn("coverage", "input", path, "detail", w.String())
	}

	paths = toolpath.Optimize(paths, toolpath.OptimizeOptions{})

	out := filepath.Join(r.outDir, strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))+".gcode")
	f, err := os.Create(out)
	if err != nil {
		return err
	}
	defer f.Close()

	meta := gcode.Meta{
		Generator: "camcli",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		BBox:      pathBounds(paths),
		SafeZ:     viper.GetFloat64("cut.safe_z"),
	}
	for _, w := range warnings {
		meta.Notes = append(meta.Notes, w.String())
	}
	if err := gcode.Emit(f, paths, r.dialect, meta); err != nil {
		return err
	}
	r.log.Info("wrote", "input", path, "output", out, "paths", len(paths))
	return nil
}

func (r *runner) parseGerber(path string, cfg camlib.KernelConfig) (camlib.Geometry, error) {
	f, err := os.Open(path)
	if err != nil {
		return camlib.Geometry{}, err
	}
	defer f.Close()

	var opts []gerber.ParseOption
	if r.strict {
		opts = append(opts, gerber.WithStrict())
	}
	doc, err := gerber.Parse(f, opts...)
	if err != nil {
		return camlib.Geometry{}, err
	}
	for _, perr := range doc.Errors {
		r.log.Warn("recovered", "input", path, "error", perr)
	}
	return doc.Resolve(cfg)
}

func (r *runner) parseExcellon(path string) (*excellon.Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var opts []excellon.ParseOption
	if r.strict {
		opts = append(opts, excellon.WithStrict())
	}
	doc, err := excellon.Parse(f, opts...)
	if err != nil {
		return nil, err
	}
	for _, perr := range doc.Errors {
		r.log.Warn("recovered", "input", path, "error", perr)
	}
	return doc, nil
}

func millTool() toolpath.Tool {
	return toolpath.Tool{
		Name:       viper.GetString("tool.name"),
		Diameter:   viper.GetFloat64("tool.diameter"),
		FeedXY:     viper.GetFloat64("tool.feed_xy"),
		FeedZ:      viper.GetFloat64("tool.feed_z"),
		SpindleRPM: viper.GetFloat64("tool.rpm"),
		PassDepth:  viper.GetFloat64("tool.pass_depth"),
	}
}

func isolationParams() toolpath.Params {
	return toolpath.Params{
		Kind:  toolpath.OpIsolation,
		Tool:  millTool(),
		Depth: viper.GetFloat64("cut.depth"),
		SafeZ: viper.GetFloat64("cut.safe_z"),
		Isolation: toolpath.IsolationParams{
			Passes:   viper.GetInt("isolation.passes"),
			StepOver: viper.GetFloat64("isolation.step_over"),
			Join:     camlib.JoinRound,
		},
	}
}

func clearingParams() toolpath.Params {
	return toolpath.Params{
		Kind:  toolpath.OpClearing,
		Tool:  millTool(),
		Depth: viper.GetFloat64("cut.depth"),
		SafeZ: viper.GetFloat64("cut.safe_z"),
		Clearing: toolpath.ClearingParams{
			Overlap: viper.GetFloat64("clearing.overlap"),
		},
	}
}

func drillingParams(holeDiameter float64) toolpath.Params {
	t := millTool()
	t.Name = viper.GetString("drill.name")
	t.Diameter = viper.GetFloat64("drill.diameter")
	t.FeedZ = viper.GetFloat64("drill.feed_z")
	return toolpath.Params{
		Kind:     toolpath.OpDrilling,
		Tool:     t,
		Depth:    viper.GetFloat64("cut.drill_depth"),
		SafeZ:    viper.GetFloat64("cut.safe_z"),
		Drilling: toolpath.DrillingParams{HoleDiameter: holeDiameter},
	}
}

type inputKind int

const (
	kindUnknown inputKind = iota
	kindGerber
	kindExcellon
)

func detectKind(path string) inputKind {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".gbr", ".ger", ".gtl", ".gbl", ".gko", ".gm1":
		return kindGerber
	case ".drl", ".xln", ".exc", ".txt":
		return kindExcellon
	default:
		return kindUnknown
	}
}

func pathBounds(paths []toolpath.Toolpath) camlib.Rect {
	bb := camlib.EmptyRect()
	for _, tp := range paths {
		for _, m := range tp.Moves {
			bb = bb.Expand(m.To)
		}
	}
	if bb.IsEmpty() {
		return camlib.Rect{}
	}
	return bb
}
