package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"runtime/debug"
	"strings"

	"github.com/klauspost/compress/gzip"

	"sparkviz/internal/analyzer"
	"sparkviz/internal/config"
	"sparkviz/internal/diff"
	"sparkviz/internal/metrics"
	"sparkviz/internal/model"
	"sparkviz/internal/parser"
	"sparkviz/internal/render/dot"
	"sparkviz/internal/render/html"
	"sparkviz/internal/render/tui"
	"sparkviz/internal/runner"
)

var version = "dev"

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	var err error
	switch cmd {
	case "render":
		err = renderCommand(args)
	case "tree":
		err = treeCommand(args)
	case "run":
		err = runCommand(args)
	case "analyze":
		err = analyzeCommand(args)
	case "diff":
		err = diffCommand(args)
	case "version":
		err = versionCommand(args)
	case "help", "-h", "--help":
		usage()
		return
	default:
		_, _ = fmt.Fprintf(os.Stderr, "Unknown command %q\n\n", cmd)
		usage()
		os.Exit(1)
	}

	if err != nil {
		var malformed *parser.MalformedPlanError
		if errors.As(err, &malformed) {
			_, _ = fmt.Fprintf(os.Stderr, "Error: %v (is the input a plan text dump?)\n", err)
		} else {
			_, _ = fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}

func usage() {
	fmt.Println(`sparkviz - query execution plan visualizer

Usage:
  sparkviz <command> [options]

Commands:
  render   Parse a plan text and render an interactive diagram
  tree     Parse a plan text and emit the structured tree as JSON
  run      Execute EXPLAIN over a pg-wire connection and save the plan text
  analyze  Run EXPLAIN and render in one step
  diff     Compare two plans and emit a Markdown summary
  version  Show CLI version information

Use "sparkviz <command> -h" for command-specific help.`)
}

func applyConfigPath(path string) error {
	path = strings.TrimSpace(path)
	if path == "" {
		path = strings.TrimSpace(os.Getenv("SPARKVIZ_CONFIG"))
	}
	return config.Apply(path)
}

func renderCommand(args []string) error {
	fs := flag.NewFlagSet("render", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.Usage = func() {
		_, _ = fmt.Fprintf(os.Stdout, "Usage: sparkviz render --input plan.txt [--metrics metrics.json] [--mode html|svg|dot|tui] [--out file[.gz]]\n\nOptions:\n")
		fs.PrintDefaults()
	}

	var (
		input       = fs.String("input", "", "Path to the plan text dump (\"-\" for stdin)")
		metricsPath = fs.String("metrics", "", "Optional path to a runtime metrics JSON map")
		mode        = fs.String("mode", "html", "Output mode: html, svg, dot or tui")
		outPath     = fs.String("out", "", "Output path (stdout if omitted; .gz compresses)")
		title       = fs.String("title", "query plan", "Diagram title (html)")
		height      = fs.Int("height", 0, "Diagram viewport height in pixels (html)")
		color       = fs.Bool("color", true, "Enable ANSI colors (tui)")
		maxDepth    = fs.Int("max-depth", 0, "Limit tree depth (tui)")
		warnings    = fs.Bool("warnings", true, "Show warnings (tui)")
		configPath  = fs.String("config", "", "Path to configuration file (JSON or YAML). Falls back to $SPARKVIZ_CONFIG")
	)

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			fs.SetOutput(os.Stdout)
			fs.Usage()
			return nil
		}
		return err
	}
	if err := applyConfigPath(*configPath); err != nil {
		return err
	}
	if *input == "" {
		return fmt.Errorf("--input is required")
	}

	tree, err := loadTree(*input, *metricsPath)
	if err != nil {
		return err
	}

	return renderTree(tree, *mode, *outPath, html.Options{Title: *title, Height: *height}, tui.Options{
		EnableColor:  *color,
		MaxDepth:     *maxDepth,
		ShowWarnings: *warnings,
	})
}

func treeCommand(args []string) error {
	fs := flag.NewFlagSet("tree", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.Usage = func() {
		_, _ = fmt.Fprintf(os.Stdout, "Usage: sparkviz tree --input plan.txt [--metrics metrics.json] [--out file]\n\nOptions:\n")
		fs.PrintDefaults()
	}

	var (
		input       = fs.String("input", "", "Path to the plan text dump (\"-\" for stdin)")
		metricsPath = fs.String("metrics", "", "Optional path to a runtime metrics JSON map")
		outPath     = fs.String("out", "", "Output path (stdout if omitted; .gz compresses)")
	)

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			fs.SetOutput(os.Stdout)
			fs.Usage()
			return nil
		}
		return err
	}
	if *input == "" {
		return fmt.Errorf("--input is required")
	}

	tree, err := loadTree(*input, *metricsPath)
	if err != nil {
		return err
	}

	payload, err := json.MarshalIndent(tree, "", "  ")
	if err != nil {
		return fmt.Errorf("encode tree: %w", err)
	}

	target, closeTarget, err := openOutput(*outPath)
	if err != nil {
		return err
	}
	defer closeTarget()
	if _, err := target.Write(payload); err != nil {
		return err
	}
	_, err = io.WriteString(target, "\n")
	return err
}

func runCommand(args []string) error {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.Usage = func() {
		_, _ = fmt.Fprintf(os.Stdout, "Usage: sparkviz run --url <url> --sql <file> [--analyze] [--out plan.txt]\n\nOptions:\n")
		fs.PrintDefaults()
	}

	envURL := os.Getenv("DATABASE_URL")

	var (
		urlFlag    = fs.String("url", envURL, "Engine connection string (pg wire); defaults to $DATABASE_URL")
		sqlPath    = fs.String("sql", "", "Path to the SQL file to EXPLAIN")
		analyze    = fs.Bool("analyze", false, "Execute the statement to collect runtime annotations")
		outPath    = fs.String("out", "", "Path to write the plan text (defaults to stdout)")
		timeout    = fs.Duration("timeout", 0, "Optional execution timeout, e.g. 45s")
		configPath = fs.String("config", "", "Path to configuration file (JSON or YAML). Falls back to $SPARKVIZ_CONFIG")
	)

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			fs.SetOutput(os.Stdout)
			fs.Usage()
			return nil
		}
		return err
	}
	if err := applyConfigPath(*configPath); err != nil {
		return err
	}
	connection := strings.TrimSpace(*urlFlag)
	if connection == "" {
		return fmt.Errorf("--url is required or set $DATABASE_URL")
	}
	if *sqlPath == "" {
		return fmt.Errorf("--sql is required")
	}

	sqlBytes, err := os.ReadFile(*sqlPath)
	if err != nil {
		return fmt.Errorf("read sql file: %w", err)
	}

	ctx := context.Background()
	planText, err := runner.Run(ctx, connection, string(sqlBytes), runner.Options{
		Timeout: *timeout,
		Analyze: *analyze,
	})
	if err != nil {
		return err
	}

	if *outPath == "" {
		_, err = fmt.Println(planText)
		return err
	}
	return os.WriteFile(*outPath, []byte(planText+"\n"), 0o644)
}

func analyzeCommand(args []string) error {
	fs := flag.NewFlagSet("analyze", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.Usage = func() {
		_, _ = fmt.Fprintf(os.Stdout, "Usage: sparkviz analyze --url <url> (--sql file.sql | --query \"SELECT ...\") [--mode html|svg|dot|tui]\n\nOptions:\n")
		fs.PrintDefaults()
	}

	envURL := os.Getenv("DATABASE_URL")

	var (
		urlFlag    = fs.String("url", envURL, "Engine connection string (pg wire); defaults to $DATABASE_URL")
		sqlPath    = fs.String("sql", "", "Path to the SQL file to EXPLAIN")
		inlineSQL  = fs.String("query", "", "Inline SQL string to EXPLAIN")
		mode       = fs.String("mode", "tui", "Output mode: html, svg, dot or tui")
		outPath    = fs.String("out", "", "Output path (stdout if omitted; .gz compresses)")
		title      = fs.String("title", "query plan", "Diagram title (html)")
		color      = fs.Bool("color", true, "Enable ANSI colors (tui)")
		maxDepth   = fs.Int("max-depth", 0, "Limit tree depth (tui)")
		warnings   = fs.Bool("warnings", true, "Show warnings (tui)")
		timeout    = fs.Duration("timeout", 0, "Optional execution timeout, e.g. 45s")
		configPath = fs.String("config", "", "Path to configuration file (JSON or YAML). Falls back to $SPARKVIZ_CONFIG")
	)

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			fs.SetOutput(os.Stdout)
			fs.Usage()
			return nil
		}
		return err
	}
	if err := applyConfigPath(*configPath); err != nil {
		return err
	}

	connection := strings.TrimSpace(*urlFlag)
	if connection == "" {
		return fmt.Errorf("--url is required or set $DATABASE_URL")
	}
	if *sqlPath != "" && *inlineSQL != "" {
		return fmt.Errorf("specify only one of --sql or --query")
	}

	var sqlText string
	switch {
	case *sqlPath != "":
		data, err := os.ReadFile(*sqlPath)
		if err != nil {
			return fmt.Errorf("read sql file: %w", err)
		}
		sqlText = string(data)
	case *inlineSQL != "":
		sqlText = *inlineSQL
	default:
		return fmt.Errorf("--sql or --query is required")
	}

	ctx := context.Background()
	planText, err := runner.Run(ctx, connection, sqlText, runner.Options{Timeout: *timeout})
	if err != nil {
		return err
	}

	tree, err := parser.Parse(planText)
	if err != nil {
		return err
	}

	return renderTree(tree, *mode, *outPath, html.Options{Title: *title}, tui.Options{
		EnableColor:  *color,
		MaxDepth:     *maxDepth,
		ShowWarnings: *warnings,
	})
}

func diffCommand(args []string) error {
	fs := flag.NewFlagSet("diff", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.Usage = func() {
		_, _ = fmt.Fprintf(os.Stdout, "Usage: sparkviz diff --base base.txt --target target.txt [--format md|json]\n\nOptions:\n")
		fs.PrintDefaults()
	}

	var (
		basePath      = fs.String("base", "", "Path to the baseline plan text")
		targetPath    = fs.String("target", "", "Path to the target plan text")
		baseMetrics   = fs.String("base-metrics", "", "Optional metrics JSON for the baseline plan")
		targetMetrics = fs.String("target-metrics", "", "Optional metrics JSON for the target plan")
		format        = fs.String("format", "md", "Output format (md or json)")
		output        = fs.String("out", "", "Output path (stdout if omitted)")
		minDelta      = fs.Float64("min-delta", 0, "Minimum duration delta in ms to report (default from config)")
		minPct        = fs.Float64("min-percent", 0, "Minimum percent change to report (default from config)")
		maxItems      = fs.Int("limit", 0, "Maximum rows per section (default from config)")
		configPath    = fs.String("config", "", "Path to configuration file (JSON or YAML). Falls back to $SPARKVIZ_CONFIG")
	)

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			fs.SetOutput(os.Stdout)
			fs.Usage()
			return nil
		}
		return err
	}
	if err := applyConfigPath(*configPath); err != nil {
		return err
	}
	if *basePath == "" || *targetPath == "" {
		return fmt.Errorf("--base and --target are required")
	}

	baseAnalysis, err := loadAnalysis(*basePath, *baseMetrics)
	if err != nil {
		return fmt.Errorf("load base: %w", err)
	}
	targetAnalysis, err := loadAnalysis(*targetPath, *targetMetrics)
	if err != nil {
		return fmt.Errorf("load target: %w", err)
	}

	report, err := diff.Compare(baseAnalysis, targetAnalysis, diff.Options{
		MinDurationMs:    *minDelta,
		MinPercentChange: *minPct,
		MaxItems:         *maxItems,
	})
	if err != nil {
		return err
	}

	switch *format {
	case "md", "markdown":
		content := report.Markdown()
		if *output == "" {
			fmt.Print(content)
			return nil
		}
		return os.WriteFile(*output, []byte(content), 0o644)
	case "json":
		payload, err := report.JSON()
		if err != nil {
			return err
		}
		if *output == "" {
			os.Stdout.Write(payload)
			os.Stdout.WriteString("\n")
			return nil
		}
		return os.WriteFile(*output, payload, 0o644)
	default:
		return fmt.Errorf("unsupported format %q", *format)
	}
}

func versionCommand(args []string) error {
	fs := flag.NewFlagSet("version", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	short := fs.Bool("short", false, "Print only the version number")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			fs.SetOutput(os.Stdout)
			fs.Usage()
			return nil
		}
		return err
	}

	v, meta := resolveVersion()
	if *short {
		fmt.Println(v)
		return nil
	}
	if meta != "" {
		fmt.Printf("sparkviz %s (%s)\n", v, meta)
	} else {
		fmt.Printf("sparkviz %s\n", v)
	}
	return nil
}

func resolveVersion() (string, string) {
	v := strings.TrimSpace(version)
	if v == "" {
		v = "dev"
	}

	var commit, buildTime string
	var dirty bool
	if info, ok := debug.ReadBuildInfo(); ok {
		if (v == "dev" || v == "(devel)") &&
			info.Main.Version != "" &&
			info.Main.Version != "(devel)" &&
			!strings.HasPrefix(info.Main.Version, "v0.0.0-") {
			v = info.Main.Version
		}
		for _, setting := range info.Settings {
			switch setting.Key {
			case "vcs.revision":
				commit = setting.Value
			case "vcs.time":
				buildTime = setting.Value
			case "vcs.modified":
				dirty = setting.Value == "true"
			}
		}
	}

	var details []string
	if commit != "" {
		short := commit
		if len(short) > 12 {
			short = short[:12]
		}
		if dirty {
			short += "*"
			dirty = false
		}
		details = append(details, fmt.Sprintf("commit %s", short))
	}
	if buildTime != "" {
		details = append(details, fmt.Sprintf("built %s", buildTime))
	}
	if dirty {
		details = append(details, "modified workspace")
	}

	return v, strings.Join(details, ", ")
}

func loadTree(inputPath, metricsPath string) (*model.PlanTree, error) {
	var (
		data []byte
		err  error
	)
	if inputPath == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(inputPath)
	}
	if err != nil {
		return nil, fmt.Errorf("read plan: %w", err)
	}

	tree, err := parser.Parse(string(data))
	if err != nil {
		return nil, err
	}

	if metricsPath != "" {
		file, err := os.Open(metricsPath)
		if err != nil {
			return nil, fmt.Errorf("open metrics: %w", err)
		}
		defer func() { _ = file.Close() }()

		source, err := metrics.ParseJSON(file)
		if err != nil {
			return nil, err
		}
		metrics.Merge(tree, source)
	}
	return tree, nil
}

func loadAnalysis(inputPath, metricsPath string) (*analyzer.PlanAnalysis, error) {
	tree, err := loadTree(inputPath, metricsPath)
	if err != nil {
		return nil, err
	}
	return analyzer.Analyze(tree)
}

func renderTree(tree *model.PlanTree, mode, outPath string, htmlOpts html.Options, tuiOpts tui.Options) error {
	target, closeTarget, err := openOutput(outPath)
	if err != nil {
		return err
	}
	defer closeTarget()

	switch mode {
	case "html":
		return html.Render(target, tree, htmlOpts)
	case "svg":
		return dot.Render(context.Background(), target, tree, dot.FormatSVG)
	case "dot":
		return dot.Render(context.Background(), target, tree, dot.FormatDOT)
	case "tui":
		analysis, err := analyzer.Analyze(tree)
		if err != nil {
			return err
		}
		return tui.Render(target, analysis, tuiOpts)
	default:
		return fmt.Errorf("unknown mode %q (expected html, svg, dot or tui)", mode)
	}
}

// openOutput resolves the output writer: stdout for an empty path, a
// plain file otherwise, gzip-wrapped when the path ends in .gz.
func openOutput(path string) (io.Writer, func(), error) {
	if path == "" {
		return os.Stdout, func() {}, nil
	}
	file, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("create output: %w", err)
	}
	if strings.HasSuffix(path, ".gz") {
		zw := gzip.NewWriter(file)
		return zw, func() {
			_ = zw.Close()
			_ = file.Close()
		}, nil
	}
	return file, func() { _ = file.Close() }, nil
}
