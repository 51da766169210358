package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"image-compressor-go/internal/config"
	"image-compressor-go/internal/logger"
	"image-compressor-go/internal/persist"
	"image-compressor-go/internal/session"
	"image-compressor-go/internal/statistics"
	"image-compressor-go/internal/web"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	cfgFile string
	verbose bool
	quiet   bool

	quality           float64
	sizeRatio         float64
	outputFolder      string
	threadCount       int
	preserveStructure bool
	sortBy            string
	jsonOutput        bool
	pickFiles         bool
	openResult        bool
	port              int
)

// rootCmd is the base command for the CLI.
var rootCmd = &cobra.Command{
	Use:   "image-compressor",
	Short: "Batch-compress images to JPEG",
	Long: `image-compressor analyses a selection of images, previews the space a
compression run would save and writes JPEG copies into an output folder.

Features:
- Accepts files and folders (searched recursively)
- Quality and resize ratio controls with a live size estimate
- Parallel compression with a configurable worker count
- Optional preservation of the source folder structure
- Settings remembered between runs (file, Redis or in-memory storage)
- Local engine or a remote backend served by "image-compressor serve"`,
	SilenceUsage: true,
}

var compressCmd = &cobra.Command{
	Use:   "compress [paths...]",
	Short: "Analyse and compress images",
	Long: `Analyses the given files and folders, prints the estimated savings and
compresses the selection into the output folder. Flags that change a
setting are remembered for later runs.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCompress(cmd, args)
	},
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze [paths...]",
	Short: "Show the selection and estimated savings without compressing",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runAnalyze(cmd, args)
	},
}

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Show or change the remembered settings",
}

var settingsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the active settings",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSettingsShow()
	},
}

var settingsSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Change and store settings",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSettingsSet(cmd)
	},
}

var validateCmd = &cobra.Command{
	Use:   "validate <paths...>",
	Short: "Check that paths exist and contain supported images",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runValidate(args)
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the compression backend over HTTP",
	Long: `Starts an HTTP server exposing the backend commands at
/api/commands/{name} with streamed progress at /api/commands/{name}/stream.
Other machines can use it with backend.mode=remote.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd)
	},
}

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show system information and defaults",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runInfo()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "enable verbose logging")
	rootCmd.PersistentFlags().BoolVar(&quiet, "quiet", false, "suppress non-error output")

	for _, c := range []*cobra.Command{compressCmd, analyzeCmd, settingsSetCmd} {
		c.Flags().Float64VarP(&quality, "quality", "q", 85, "JPEG quality (0-100)")
		c.Flags().Float64VarP(&sizeRatio, "ratio", "r", 0.8, "resize ratio (0-1)")
		c.Flags().StringVarP(&outputFolder, "output", "o", "", "output folder")
		c.Flags().IntVarP(&threadCount, "threads", "t", 4, "number of worker threads")
	}
	for _, c := range []*cobra.Command{compressCmd, analyzeCmd} {
		c.Flags().BoolVar(&preserveStructure, "preserve-structure", false, "keep the source folder structure")
		c.Flags().BoolVar(&pickFiles, "pick", false, "choose images with a native file picker")
	}
	analyzeCmd.Flags().StringVar(&sortBy, "sort", string(session.SortNameAsc), "sort order: name-asc, name-desc, size-asc, size-desc")
	analyzeCmd.Flags().BoolVar(&jsonOutput, "json", false, "print the selection as JSON")
	compressCmd.Flags().BoolVar(&openResult, "open", false, "open the output folder when done")
	serveCmd.Flags().IntVar(&port, "port", 0, "port to run web server on (default from config)")

	settingsCmd.AddCommand(settingsShowCmd, settingsSetCmd)
	rootCmd.AddCommand(compressCmd, analyzeCmd, settingsCmd, validateCmd, serveCmd, infoCmd)
}

// signalContext is cancelled on Ctrl+C so running batches stop cleanly.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// applyFlags pushes changed setting flags into the session. Persisted
// settings are saved on every change.
func applyFlags(cmd *cobra.Command, a *app) {
	s := a.session
	flags := cmd.Flags()
	if flags.Changed("quality") {
		a.reportSave(s.SetQuality(quality))
	}
	if flags.Changed("ratio") {
		a.reportSave(s.SetSizeRatio(sizeRatio))
	}
	if flags.Changed("output") {
		a.reportSave(s.SetOutputFolder(outputFolder))
	}
	if flags.Changed("threads") {
		a.reportSave(s.SetThreadCount(threadCount))
	}
	if flags.Lookup("preserve-structure") != nil && flags.Changed("preserve-structure") {
		s.SetPreserveStructure(preserveStructure)
	}
}

// selectImages analyses args, or the files chosen in a picker, into the
// session.
func selectImages(ctx context.Context, a *app, args []string) error {
	paths := args
	if pickFiles {
		picked, err := a.client.SelectFiles(ctx)
		if err != nil {
			return err
		}
		paths = append(paths, picked...)
	}
	if len(paths) == 0 {
		return errors.New("no input paths given")
	}
	_, err := a.session.Analyze(ctx, progressAnalyzer{inner: a.client, out: progressWriter()}, paths)
	return err
}

func runCompress(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()
	applyFlags(cmd, a)

	if err := selectImages(ctx, a, args); err != nil {
		return err
	}

	if a.session.Settings().OutputFolder == "" {
		folder, ok, err := a.client.SelectFolder(ctx)
		if err != nil {
			return err
		}
		if !ok {
			return errors.New("no output folder selected")
		}
		a.reportSave(a.session.SetOutputFolder(folder))
	}

	if !quiet {
		printSelection(os.Stdout, a.session.Snapshot())
		fmt.Printf("Output folder:     %s\n\n", a.session.Settings().OutputFolder)
	}

	res, err := a.session.Compress(ctx, progressCompressor{inner: a.client, out: progressWriter()})
	if err != nil {
		return err
	}
	if !quiet && a.session.ShowResults() {
		fmt.Println("\n" + statistics.Summary(res))
		a.session.SetShowResults(false)
	}

	if openResult {
		if err := a.client.OpenInExplorer(ctx, a.session.Settings().OutputFolder); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
		}
	}
	if res.Failed > 0 {
		return fmt.Errorf("%d of %d images failed", res.Failed, res.Total)
	}
	return nil
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	order, err := session.ParseSortOrder(sortBy)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()
	applyFlags(cmd, a)
	a.session.SetSortBy(order)

	if err := selectImages(ctx, a, args); err != nil {
		return err
	}

	snap := a.session.Snapshot()
	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(snap.SortedImages())
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "FILE\tFORMAT\tDIMENSIONS\tSIZE\tESTIMATED")
	for _, img := range snap.SortedImages() {
		fmt.Fprintf(w, "%s\t%s\t%dx%d\t%s\t%s\n",
			img.Filename, img.Format, img.Width, img.Height,
			statistics.FormatBytes(img.OriginalSize, 1),
			statistics.FormatBytes(img.EstimatedSize, 1))
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Println()
	printSelection(os.Stdout, snap)
	return nil
}

func runSettingsShow() error {
	ctx, cancel := signalContext()
	defer cancel()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	s := a.session.Settings()
	fmt.Printf("Storage:            %s", a.cfg.Storage.Backend)
	if fkv, ok := a.storeKV.(*persist.FileKV); ok {
		fmt.Printf(" (%s)", fkv.Path())
	}
	if !a.boot.StorageAvailable {
		fmt.Print(" [unavailable]")
	}
	fmt.Println()
	fmt.Printf("Quality:            %g\n", s.Quality)
	fmt.Printf("Size ratio:         %g\n", s.SizeRatio)
	fmt.Printf("Thread count:       %d\n", s.ThreadCount)
	fmt.Printf("Output folder:      %s\n", s.OutputFolder)
	fmt.Printf("Preserve structure: %v\n", s.PreserveStructure)
	return nil
}

func runSettingsSet(cmd *cobra.Command) error {
	ctx, cancel := signalContext()
	defer cancel()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	applyFlags(cmd, a)
	res := a.session.SaveSettings()
	if !res.OK() {
		return fmt.Errorf("settings not saved (%s): %v", res.Status, res.Err)
	}
	if !quiet {
		fmt.Println("Settings saved")
	}
	return nil
}

func runValidate(args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	results, err := a.client.ValidatePaths(ctx, args)
	if err != nil {
		return err
	}
	invalid := 0
	for _, r := range results {
		if r.IsValid {
			fmt.Printf("OK    %s\n", r.Path)
			continue
		}
		invalid++
		fmt.Printf("FAIL  %s: %s\n", r.Path, r.Error)
	}
	if invalid > 0 {
		return fmt.Errorf("%d of %d paths are invalid", invalid, len(results))
	}
	return nil
}

// runServe starts the web server and handles graceful shutdown.
func runServe(cmd *cobra.Command) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if cmd.Flags().Changed("port") {
		cfg.Server.Port = port
	}

	log := setupLogger(cfg)
	eng := newEngine(cfg, log)
	defer eng.Close()
	server := web.NewServer(cfg.Server, eng, log)

	ctx, cancel := signalContext()
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	fmt.Printf("Image compressor backend listening on http://localhost:%d\n", cfg.Server.Port)
	fmt.Printf("Press Ctrl+C to stop the server\n\n")

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}
	fmt.Println("\nShutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Stop(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	fmt.Println("Server stopped gracefully")
	return nil
}

func runInfo() error {
	ctx, cancel := signalContext()
	defer cancel()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	info, err := a.client.GetSystemInfo(ctx)
	if err != nil {
		return err
	}
	defaults, err := a.client.GetDefaultConfig(ctx)
	if err != nil {
		return err
	}
	folder, err := a.client.GetDefaultOutputFolder(ctx)
	if err != nil {
		folder = fmt.Sprintf("unavailable (%v)", err)
	}

	fmt.Printf("Backend:                  %s\n", a.cfg.Backend.Mode)
	fmt.Printf("CPU cores:                %d\n", info.CPUCores)
	fmt.Printf("Recommended threads:      %d\n", info.RecommendedThreadCount)
	fmt.Printf("Default quality:          %g\n", defaults.Quality)
	fmt.Printf("Default size ratio:       %g\n", defaults.SizeRatio)
	fmt.Printf("Default output folder:    %s\n", folder)
	fmt.Printf("Session:                  %s\n", a.session.ID())
	return nil
}

// loadConfig loads configuration for the selected config file.
func loadConfig() (*config.Config, error) {
	return config.LoadConfig(cfgFile)
}

// setupLogger configures and returns a logger.
func setupLogger(cfg *config.Config) *logrus.Logger {
	loggerCfg := logger.LoggerConfig{
		Level:      cfg.Logging.Level,
		FilePath:   cfg.Logging.FilePath,
		MaxSize:    cfg.Logging.MaxSize,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAge:     cfg.Logging.MaxAge,
		Compress:   cfg.Logging.Compress,
		Console:    cfg.Logging.Console && !quiet,
	}

	if verbose {
		loggerCfg.Level = "debug"
	}

	log, err := logger.NewLogger(loggerCfg)
	if err != nil {
		log = logrus.New()
		log.SetLevel(logrus.InfoLevel)
	}
	if quiet {
		logger.Quiet(log)
	}

	return log
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
