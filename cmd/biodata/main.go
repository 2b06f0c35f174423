// biodata - Biodata and wedding card compositor.
//
// Usage:
//
//	biodata -o <file> --doc <path> [options]
//	biodata check --doc <path>
//	biodata serve [--config file]
//	biodata assets [--category c]
//	biodata templates
//	biodata init
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/xob0t/GoBiodata/clients/server"
	"github.com/xob0t/GoBiodata/pkg/asset"
	"github.com/xob0t/GoBiodata/pkg/config"
	"github.com/xob0t/GoBiodata/pkg/editor"
	"github.com/xob0t/GoBiodata/pkg/export"
	"github.com/xob0t/GoBiodata/pkg/logging"
	"github.com/xob0t/GoBiodata/pkg/template"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var err error
	switch os.Args[1] {
	case "init":
		err = runInit(os.Args[2:])
	case "check":
		err = runCheck(os.Args[2:])
	case "serve":
		err = runServe(ctx, os.Args[2:])
	case "assets":
		err = runAssets(ctx, os.Args[2:])
	case "templates":
		err = runTemplates(ctx, os.Args[2:])
	case "help", "-h", "--help":
		printUsage()
	default:
		// Default: generate mode (all flags on root).
		err = run(ctx, os.Args[1:])
	}
	if err != nil {
		stop()
		fatal(err)
	}
}

// setup loads configuration and builds the logger.
func setup(configPath, level string) (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	if level == "" {
		level = cfg.Log.Level
	}
	log, err := logging.New(level, os.Stderr)
	if err != nil {
		return nil, nil, err
	}
	slog.SetDefault(log)
	return cfg, log, nil
}

func run(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("biodata", flag.ExitOnError)

	var (
		output     string
		docPath    string
		quality    float64
		page       string
		configPath string
		level      string
		online     bool
		timeout    time.Duration
	)

	fs.StringVar(&output, "o", "", "Output file (.png, .jpg, .pdf or .docx)")
	fs.StringVar(&output, "output", "", "Output file (.png, .jpg, .pdf or .docx)")
	fs.StringVar(&docPath, "doc", "", "Path to document.json or a .biodata bundle")
	fs.Float64Var(&quality, "quality", export.DefaultJPEGQuality, "JPEG quality in (0, 1]")
	fs.StringVar(&page, "page", "a4", "PDF page size: a4 or letter")
	fs.StringVar(&configPath, "config", "", "Config file (optional)")
	fs.StringVar(&level, "log-level", "", "Log level (default from config)")
	fs.BoolVar(&online, "online", false, "Load admin photos and fonts from the backend API")
	fs.DurationVar(&timeout, "timeout", time.Minute, "Give up when rendering takes longer")

	fs.Usage = printUsage
	if err := fs.Parse(args); err != nil {
		return err
	}
	if output == "" {
		printUsage()
		return errors.New("output file is required (-o)")
	}
	if docPath == "" {
		return errors.New("--doc is required")
	}
	pageSize, err := export.ParsePageSize(page)
	if err != nil {
		return err
	}

	cfg, log, err := setup(configPath, level)
	if err != nil {
		return err
	}

	doc, cleanup, err := template.LoadDocument(docPath)
	if err != nil {
		return fmt.Errorf("load document: %w", err)
	}
	defer cleanup()
	for _, ref := range []*string{&doc.Config.Border, &doc.Config.GodsImage, &doc.Config.UserImage} {
		*ref = siteURL(cfg.Server.SiteOrigin, *ref)
	}

	fetcher := asset.NewFetcher(cfg.Server.SiteOrigin, cfg.API.Timeout)
	fetcher.AllowLocalFiles = true

	deps := editor.Deps{Loader: fetcher, ProbeDelay: cfg.Render.ProbeDelay, Logger: log}
	if online {
		client := asset.NewClient(cfg.API.BaseURL, cfg.API.Token, cfg.API.Timeout)
		deps.Resolver = asset.NewResolver(client, fetcher, cfg.Server.SiteOrigin, log)
	}

	sess, err := editor.NewFromDocument(*doc, deps)
	if err != nil {
		return fmt.Errorf("open document: %w", err)
	}
	defer sess.Close()

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := sess.LoadAssets(ctx); err != nil {
		return fmt.Errorf("load assets: %w", err)
	}

	fmt.Printf("Rendering %s (%s)\n", docPath, doc.Config.Layout)
	err = sess.WriteFile(ctx, output, export.Options{Quality: quality, Page: pageSize})
	if errors.Is(err, export.ErrExportBlocked) {
		return fmt.Errorf("%w\nhint: download the images and reference them as local files", err)
	}
	if err != nil {
		return err
	}
	fmt.Printf("Done: %s\n", output)
	return nil
}

// siteURL resolves site-rooted paths ("/images/...") that do not exist on disk against
// the site origin, the way the editor page resolves them.
func siteURL(origin, p string) string {
	if origin == "" || !strings.HasPrefix(p, "/") {
		return p
	}
	if _, err := os.Stat(p); err == nil {
		return p
	}
	return origin + p
}

func runCheck(args []string) error {
	fs := flag.NewFlagSet("check", flag.ExitOnError)
	var docPath string
	fs.StringVar(&docPath, "doc", "", "Path to document.json or a .biodata bundle")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if docPath == "" {
		return errors.New("--doc is required for check command")
	}

	doc, cleanup, err := template.LoadDocument(docPath)
	if err != nil {
		return err
	}
	defer cleanup()

	warnings := template.ValidateDocument(doc)
	for _, w := range warnings {
		fmt.Fprintf(os.Stderr, "Warning: %s\n", w)
	}
	fmt.Printf("%s: %d fields, %s, %s, %d warnings\n",
		docPath, len(doc.Fields), doc.Template.Type, doc.Config.Layout, len(warnings))
	return nil
}

func runServe(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	var configPath, level string
	fs.StringVar(&configPath, "config", "", "Config file (optional)")
	fs.StringVar(&level, "log-level", "", "Log level (default from config)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, log, err := setup(configPath, level)
	if err != nil {
		return err
	}
	return server.RunServe(ctx, cfg, log)
}

func runAssets(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("assets", flag.ExitOnError)
	var configPath, category string
	fs.StringVar(&configPath, "config", "", "Config file (optional)")
	fs.StringVar(&category, "category", "", "Only list this category")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cats := asset.Categories
	if category != "" {
		c, err := asset.ParseCategory(category)
		if err != nil {
			return err
		}
		cats = []asset.Category{c}
	}

	cfg, log, err := setup(configPath, "")
	if err != nil {
		return err
	}
	client := asset.NewClient(cfg.API.BaseURL, cfg.API.Token, cfg.API.Timeout)
	resolver := asset.NewResolver(client, nil, cfg.Server.SiteOrigin, log)

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "CATEGORY\tID\tNAME\tBUILTIN\tURL")
	for _, c := range cats {
		for _, a := range resolver.List(ctx, c) {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%t\t%s\n", c, a.ID, a.OriginalName, a.Builtin, a.URL)
		}
	}
	return tw.Flush()
}

func runTemplates(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("templates", flag.ExitOnError)
	var configPath string
	fs.StringVar(&configPath, "config", "", "Config file (optional)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, _, err := setup(configPath, "")
	if err != nil {
		return err
	}
	list, err := asset.NewClient(cfg.API.BaseURL, cfg.API.Token, cfg.API.Timeout).Templates(ctx)
	if err != nil {
		return fmt.Errorf("list templates: %w", err)
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tCATEGORY\tTYPE")
	for _, t := range list {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", t.ID, t.Name, t.Category, t.Type)
	}
	return tw.Flush()
}

func runInit(args []string) error {
	fs := flag.NewFlagSet("init", flag.ExitOnError)
	var out string
	fs.StringVar(&out, "doc", "document.json", "Output path for the sample document (.json or .biodata)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if strings.EqualFold(filepath.Ext(out), template.BundleExt) {
		doc, err := template.ParseDocument([]byte(template.GetExampleJSON()))
		if err != nil {
			return err
		}
		f, err := os.Create(out)
		if err != nil {
			return fmt.Errorf("create bundle: %w", err)
		}
		if err := template.WriteBundle(f, doc); err != nil {
			f.Close()
			return fmt.Errorf("write bundle: %w", err)
		}
		if err := f.Close(); err != nil {
			return fmt.Errorf("write bundle: %w", err)
		}
	} else if err := os.WriteFile(out, []byte(template.GetExampleJSON()), 0644); err != nil {
		return fmt.Errorf("write document: %w", err)
	}

	fmt.Printf("Created: %s\n", out)
	fmt.Printf("Run: biodata -o biodata.png --doc %s\n", out)
	return nil
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}

func printUsage() {
	fmt.Print(`biodata - Biodata & wedding card compositor

USAGE:
    biodata -o <file> --doc <path> [options]
    biodata check --doc <path>
    biodata serve [--config file]
    biodata assets [--category c] [--config file]
    biodata templates [--config file]
    biodata init [--doc document.json]

GENERATE:
    --doc <path>           document.json or .biodata bundle
    -o, --output <path>    Output file (.png, .jpg, .pdf or .docx)
    --quality <q>          JPEG quality in (0, 1] (default: 0.92)
    --page <size>          PDF page size: a4 or letter (default: a4)
    --online               Use admin photos and fonts from the backend
    --config <path>        Config file (YAML, JSON or TOML)
    --timeout <dur>        Render timeout (default: 1m)

SERVER:
    biodata serve [--config file]       Start the editor API

ENVIRONMENT:
    BIODATA_SERVER_PORT, BIODATA_SERVER_SITE_ORIGIN, BIODATA_API_BASE_URL,
    BIODATA_API_TOKEN, BIODATA_REDIS_ENABLED, BIODATA_REDIS_ADDR, BIODATA_LOG_LEVEL

EXAMPLES:
    biodata init
    biodata -o biodata.png --doc document.json
    biodata -o biodata.pdf --doc saved.biodata --page letter
    biodata -o biodata.jpg --doc document.json --quality 0.8
    biodata assets --category adminPhoto
    biodata serve --config biodata.yaml
`)
}
