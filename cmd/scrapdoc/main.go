package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/briandowns/spinner"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/hyperifyio/scrapdoc/internal/app"
	"github.com/hyperifyio/scrapdoc/internal/web"
)

func main() {
	// Logging setup
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

type options struct {
	configPath string
	envFiles   []string

	outputDir    string
	staticDir    string
	title        string
	writeText    bool
	userAgent    string
	timeout      time.Duration
	maxAttempts  int
	robots       bool
	cacheDir     string
	cacheMaxAge  time.Duration
	cacheClear   bool
	cacheBypass  bool
	imageWidthMM float64
	textTables   bool
	verbose      bool

	cfg app.Config
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:   "scrapdoc",
		Short: "Scrape paragraphs, images and tables from a web page into a PDF",
		Long: `scrapdoc fetches one web page, walks the elements under a container tag
and writes the selected content (p, img, table) into a PDF document, with an
optional plain-text copy where tables are drawn as grids.`,
		Version:      app.BuildVersion,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, opts)
			if err != nil {
				return err
			}
			opts.cfg = cfg
			if cfg.Verbose {
				zerolog.SetGlobalLevel(zerolog.DebugLevel)
			} else {
				zerolog.SetGlobalLevel(zerolog.InfoLevel)
			}
			return nil
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&opts.configPath, "config", "", "Path to a YAML or JSON config file")
	pf.StringSliceVar(&opts.envFiles, "env-file", []string{".env"}, "Dotenv files to load before reading SCRAPDOC_* variables")
	pf.StringVar(&opts.outputDir, "output-dir", "", "Directory for generated documents")
	pf.StringVar(&opts.staticDir, "static-dir", "", "Directory for downloaded images")
	pf.StringVar(&opts.title, "title", "", "Document heading (defaults to the page title)")
	pf.BoolVar(&opts.writeText, "write-text", false, "Also write a plain-text copy next to the PDF")
	pf.StringVar(&opts.userAgent, "user-agent", "", "User-Agent header for requests")
	pf.DurationVar(&opts.timeout, "timeout", 0, "Per-request timeout")
	pf.IntVar(&opts.maxAttempts, "max-attempts", 0, "Attempts per request, including the first")
	pf.BoolVar(&opts.robots, "robots", false, "Honor robots.txt for the page and its images")
	pf.StringVar(&opts.cacheDir, "cache-dir", "", "HTTP cache directory (disabled when empty)")
	pf.DurationVar(&opts.cacheMaxAge, "cache-max-age", 0, "Purge cache entries older than this at startup")
	pf.BoolVar(&opts.cacheClear, "cache-clear", false, "Clear the cache directory at startup")
	pf.BoolVar(&opts.cacheBypass, "cache-bypass", false, "Always refetch; still refresh the cache")
	pf.Float64Var(&opts.imageWidthMM, "image-width-mm", 0, "Display width of embedded images in millimetres")
	pf.BoolVar(&opts.textTables, "text-tables", false, "Render tables as plain-text grids instead of native tables")
	pf.BoolVarP(&opts.verbose, "verbose", "v", false, "Enable debug logging")

	root.AddCommand(newRunCmd(opts), newServeCmd(opts), newVersionCmd())
	return root
}

// loadConfig layers defaults, dotenv files, the config file, SCRAPDOC_*
// environment variables and finally explicitly set flags.
func loadConfig(cmd *cobra.Command, opts *options) (app.Config, error) {
	cfg := app.DefaultConfig()
	if err := app.LoadEnvFiles(opts.envFiles...); err != nil {
		return cfg, err
	}
	if opts.configPath != "" {
		fc, err := app.LoadConfigFile(opts.configPath)
		if err != nil {
			return cfg, fmt.Errorf("load config: %w", err)
		}
		if err := app.ApplyFileConfig(&cfg, fc); err != nil {
			return cfg, err
		}
	}
	app.ApplyEnvOverrides(&cfg)

	flags := cmd.Flags()
	if flags.Changed("output-dir") {
		cfg.OutputDir = opts.outputDir
	}
	if flags.Changed("static-dir") {
		cfg.StaticDir = opts.staticDir
	}
	if flags.Changed("title") {
		cfg.Title = opts.title
	}
	if flags.Changed("write-text") {
		cfg.WriteText = opts.writeText
	}
	if flags.Changed("user-agent") {
		cfg.UserAgent = opts.userAgent
	}
	if flags.Changed("timeout") {
		cfg.Timeout = opts.timeout
	}
	if flags.Changed("max-attempts") {
		cfg.MaxAttempts = opts.maxAttempts
	}
	if flags.Changed("robots") {
		cfg.RespectRobots = opts.robots
	}
	if flags.Changed("cache-dir") {
		cfg.CacheDir = opts.cacheDir
	}
	if flags.Changed("cache-max-age") {
		cfg.CacheMaxAge = opts.cacheMaxAge
	}
	if flags.Changed("cache-clear") {
		cfg.CacheClear = opts.cacheClear
	}
	if flags.Changed("cache-bypass") {
		cfg.CacheBypass = opts.cacheBypass
	}
	if flags.Changed("image-width-mm") {
		cfg.ImageWidthMM = opts.imageWidthMM
	}
	if flags.Changed("text-tables") {
		cfg.TextTables = opts.textTables
	}
	if flags.Changed("verbose") {
		cfg.Verbose = opts.verbose
	}
	if err := app.ValidateConfig(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func newRunCmd(opts *options) *cobra.Command {
	var (
		sourceURL string
		container string
		tags      string
		output    string
		progress  bool
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Scrape one page and write the document",
		Example: `  scrapdoc run --url https://www.w3schools.com/html/html_tables.asp --tags p,table --output web
  scrapdoc run --url http://makes.org.in --container div --tags "p, img" --output makes --write-text`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := app.ParseRequest(sourceURL, container, tags, output)
			if err != nil {
				return err
			}
			a, err := app.New(cmd.Context(), opts.cfg)
			if err != nil {
				return err
			}

			var sp *spinner.Spinner
			if progress {
				sp = spinner.New(spinner.CharSets[9], 100*time.Millisecond, spinner.WithWriter(cmd.ErrOrStderr()))
				sp.Suffix = " scraping " + req.SourceURL
				sp.Start()
			}
			rep, err := a.Run(cmd.Context(), req)
			if sp != nil {
				sp.Stop()
			}
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, rep.OutputPath)
			if rep.TextPath != "" {
				fmt.Fprintln(out, rep.TextPath)
			}
			for _, img := range rep.Images {
				if !img.Embedded {
					fmt.Fprintf(out, "skipped image %s: %s\n", img.Src, img.Reason)
				}
			}
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVarP(&sourceURL, "url", "u", "", "Page URL to scrape")
	f.StringVarP(&container, "container", "c", "body", "Container tag to scope extraction to")
	f.StringVarP(&tags, "tags", "t", "p,img,table", "Comma-separated content tags (p, img, table)")
	f.StringVarP(&output, "output", "o", "web_scrape", "Output file name without extension")
	f.BoolVar(&progress, "progress", false, "Show a spinner while scraping")
	_ = cmd.MarkFlagRequired("url")
	return cmd
}

func newServeCmd(opts *options) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the scrape form over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := opts.cfg
			if cmd.Flags().Changed("addr") {
				cfg.ServeAddr = addr
			}
			a, err := app.New(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			return web.ListenAndServe(cmd.Context(), a.Config().ServeAddr, web.New(a).Handler())
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default from config, 127.0.0.1:8080)")
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), app.VersionString())
			return nil
		},
	}
}
