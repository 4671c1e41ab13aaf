package main

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/fatih/color"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sghaida/locatorgen/internal/config"
	"github.com/sghaida/locatorgen/internal/diag"
	"github.com/sghaida/locatorgen/internal/emit"
	"github.com/sghaida/locatorgen/internal/generator"
	"github.com/sghaida/locatorgen/internal/host/gohost"
	"github.com/sghaida/locatorgen/internal/logging"
)

// Exit codes.
const (
	exitOK          = 0
	exitDiagnostics = 1
	exitUsage       = 2
)

// options are the command-line settings layered over the config file.
type options struct {
	dir        string
	configPath string
	out        string
	funcName   string
	jobs       int
	verbose    bool
	dryRun     bool
	noColor    bool
	patterns   []string
}

// pkgResult is the outcome of one package, printed in load order.
type pkgResult struct {
	path        string
	target      string
	written     bool
	removed     bool
	source      []byte
	diagnostics []diag.Diagnostic
	err         error
}

// run executes the generator and returns an exit code.
// It exists separately from main to allow unit testing without os.Exit.
func run(args []string, stdout, stderr io.Writer) int {
	opts, ok := parseFlags(args, stderr)
	if !ok {
		return exitUsage
	}

	cfg, err := loadConfig(opts)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "locatorgen: %v\n", err)
		return exitUsage
	}

	log, err := logging.New(cfg.Log, stderr)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "locatorgen: %v\n", err)
		return exitUsage
	}
	defer func() { _ = log.Sync() }()
	if cfg.Path != "" {
		log.Debug("configuration loaded", zap.String("path", cfg.Path))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	pkgs, err := gohost.Load(ctx, gohost.Config{
		Dir:               opts.dir,
		InjectTag:         cfg.InjectTag,
		ConstructorMarker: cfg.ConstructorMarker,
	}, opts.patterns...)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "locatorgen: %v\n", err)
		return exitUsage
	}
	log.Debug("packages loaded", zap.Int("packages", len(pkgs)))

	// Packages are independent: a failing package is reported with the
	// others, it does not cancel them. Only an interrupt stops the run.
	results := make([]pkgResult, len(pkgs))
	var g errgroup.Group
	g.SetLimit(parallelism(cfg.Parallelism))
	for i, pkg := range pkgs {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				results[i] = pkgResult{path: pkg.Path, err: err}
				return nil
			}
			results[i] = generatePackage(pkg, cfg, opts.dryRun, log)
			return nil
		})
	}
	_ = g.Wait()

	p := newDiagPrinter(stderr, opts.noColor)
	code := exitOK
	for _, res := range results {
		for _, d := range res.diagnostics {
			p.print(d)
			code = exitDiagnostics
		}
		if res.err != nil {
			_, _ = fmt.Fprintf(stderr, "locatorgen: %s: %v\n", res.path, res.err)
			code = exitDiagnostics
			continue
		}
		if opts.dryRun && res.source != nil {
			_, _ = fmt.Fprintf(stdout, "// %s\n", res.target)
			_, _ = stdout.Write(res.source)
		}
		switch {
		case res.written:
			log.Info("generated", zap.String("package", res.path), zap.String("file", res.target))
		case res.removed:
			log.Info("removed stale output", zap.String("package", res.path), zap.String("file", res.target))
		}
	}
	return code
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func parseFlags(args []string, stderr io.Writer) (options, bool) {
	flags := flag.NewFlagSet("locatorgen", flag.ContinueOnError)
	flags.SetOutput(stderr)
	flags.Usage = func() {
		_, _ = fmt.Fprintln(stderr, "usage: locatorgen [flags] [packages]")
		flags.PrintDefaults()
	}

	var opts options
	flags.StringVar(&opts.dir, "dir", ".", "directory to resolve package patterns from")
	flags.StringVar(&opts.configPath, "config", "", "config file (default: nearest .locatorgen.yaml)")
	flags.StringVar(&opts.out, "out", "", "output file name, overrides config")
	flags.StringVar(&opts.funcName, "func", "", "generated function name, overrides config")
	flags.IntVar(&opts.jobs, "j", -1, "packages generated in parallel, overrides config (0: GOMAXPROCS)")
	flags.BoolVar(&opts.verbose, "v", false, "debug logging")
	flags.BoolVar(&opts.dryRun, "n", false, "print generated code to stdout instead of writing files")
	flags.BoolVar(&opts.noColor, "no-color", false, "disable colored diagnostics")

	if err := flags.Parse(args); err != nil {
		return options{}, false
	}

	opts.patterns = flags.Args()
	if len(opts.patterns) == 0 {
		opts.patterns = []string{"."}
	}
	if strings.TrimSpace(opts.dir) == "" {
		_, _ = fmt.Fprintln(stderr, "locatorgen: -dir must not be empty")
		return options{}, false
	}
	return opts, true
}

// loadConfig reads the config file and applies the command-line overrides.
func loadConfig(opts options) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if opts.configPath != "" {
		cfg, err = config.Load(opts.configPath)
	} else {
		cfg, err = config.Find(opts.dir)
	}
	if err != nil {
		return nil, err
	}

	if opts.out != "" {
		cfg.Output = opts.out
	}
	if opts.funcName != "" {
		cfg.Function = opts.funcName
	}
	if opts.jobs >= 0 {
		cfg.Parallelism = opts.jobs
	}
	if opts.verbose {
		cfg.Log.Level = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func parallelism(n int) int {
	if n <= 0 {
		return runtime.GOMAXPROCS(0)
	}
	return n
}

// generatePackage runs the pipeline for pkg and writes, or removes, its
// output file.
func generatePackage(pkg *gohost.Package, cfg *config.Config, dryRun bool, log *zap.Logger) pkgResult {
	res := pkgResult{path: pkg.Path, target: filepath.Join(pkg.Dir, cfg.Output)}

	for _, e := range pkg.Errors {
		log.Warn("package has errors", zap.String("package", pkg.Path), zap.Error(e))
	}
	if pkg.Host == nil {
		res.err = errors.New("package could not be type-checked")
		return res
	}

	bag := &diag.Bag{}
	out, err := generator.Generate(pkg.Host, pkg.Files(cfg.Output), bag, generator.Options{
		Emit: emit.Options{
			Package:       pkg.Name,
			PackagePath:   pkg.Path,
			Func:          cfg.Function,
			LocatorImport: cfg.LocatorImport,
		},
		Logger: log,
	})
	res.diagnostics = bag.All()
	if err != nil {
		res.err = err
		return res
	}
	res.source = out.Source

	if dryRun {
		return res
	}
	if out.Source == nil {
		res.removed, res.err = removeStale(res.target)
		return res
	}
	if err := writeFileAtomic(res.target, out.Source, 0o644); err != nil {
		res.err = fmt.Errorf("write %s: %w", res.target, err)
		return res
	}
	res.written = true
	return res
}

// generatedHeader is the first line of every file this tool writes.
var generatedHeader = []byte("// Code generated by " + emit.DefaultGenerator + "; DO NOT EDIT.")

// removeStale deletes path when it is a file previously written by this tool.
// Any other file is left alone.
func removeStale(path string) (bool, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	first, err := bufio.NewReader(f).ReadBytes('\n')
	_ = f.Close()
	if err != nil && !errors.Is(err, io.EOF) {
		return false, err
	}
	if !bytes.Equal(bytes.TrimSpace(first), generatedHeader) {
		return false, nil
	}
	if err := removeFile(path); err != nil {
		return false, err
	}
	return true, nil
}

// diagPrinter writes diagnostics as "pos: error CODE Name: message".
type diagPrinter struct {
	w        io.Writer
	pos      *color.Color
	severity *color.Color
	code     *color.Color
}

func newDiagPrinter(w io.Writer, noColor bool) *diagPrinter {
	p := &diagPrinter{
		w:        w,
		pos:      color.New(color.Bold),
		severity: color.New(color.FgRed, color.Bold),
		code:     color.New(color.FgYellow),
	}
	if noColor {
		p.pos.DisableColor()
		p.severity.DisableColor()
		p.code.DisableColor()
	}
	return p
}

func (p *diagPrinter) print(d diag.Diagnostic) {
	if pos := d.Pos.String(); pos != "-" {
		_, _ = p.pos.Fprint(p.w, pos)
		_, _ = fmt.Fprint(p.w, ": ")
	}
	_, _ = p.severity.Fprint(p.w, d.Severity.String())
	_, _ = fmt.Fprint(p.w, " ")
	_, _ = p.code.Fprint(p.w, d.Code.String())
	_, _ = fmt.Fprintf(p.w, ": %s\n", d.Message)
}

// tempFile abstracts an os.File for testability.
type tempFile interface {
	Name() string
	Write([]byte) (int, error)
	Close() error
}

// File operation hooks, overridden in tests.
var (
	createTempFile = func(dir, pattern string) (tempFile, error) { return os.CreateTemp(dir, pattern) }
	chmodFile      = os.Chmod
	renameFile     = os.Rename
	removeFile     = os.Remove
)

// writeFileAtomic writes to a temporary file next to targetPath and renames it
// into place, so go build never sees a half-written file.
func writeFileAtomic(targetPath string, data []byte, perm os.FileMode) (err error) {
	tmp, err := createTempFile(filepath.Dir(targetPath), "."+filepath.Base(targetPath)+".tmp-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()

	defer func() {
		if err != nil {
			_ = removeFile(tmpPath)
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	if err = chmodFile(tmpPath, perm); err != nil {
		return err
	}
	return renameFile(tmpPath, targetPath)
}
