package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/TobiSchelling/Quantify/internal/assistant"
	"github.com/TobiSchelling/Quantify/internal/config"
	"github.com/TobiSchelling/Quantify/internal/database"
	"github.com/TobiSchelling/Quantify/internal/pipeline"
	"github.com/TobiSchelling/Quantify/internal/posts"
	"github.com/TobiSchelling/Quantify/internal/server"
	"github.com/TobiSchelling/Quantify/internal/session"
	"github.com/TobiSchelling/Quantify/internal/watch"
	"github.com/spf13/cobra"
)

var version = "dev"

var (
	verbose    bool
	configPath string
	cfg        *config.Config
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "quantify",
	Short:   "Social media post analytics",
	Long:    "Quantify ingests exported post metrics, aggregates engagement per post type, and answers questions about them.",
	Version: version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if verbose {
			log.SetFlags(log.LstdFlags | log.Lshortfile)
		} else {
			log.SetFlags(log.LstdFlags)
		}

		// Skip config loading for init and version
		if cmd.Name() == "init" || cmd.Name() == "version" {
			return nil
		}

		if err := config.LoadDotEnv(".env"); err != nil {
			return err
		}

		path, err := config.ResolveConfigPath(configPath)
		switch {
		case errors.Is(err, config.ErrNoConfig) && configPath == "":
			log.Println("No config file found, using built-in defaults (run 'quantify init' to create one)")
			cfg = config.Default()
		case err != nil:
			return err
		default:
			cfg, err = config.Load(path)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
		}

		if strings.EqualFold(cfg.Logging.Level, "debug") {
			log.SetFlags(log.LstdFlags | log.Lshortfile)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(historyCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("quantify", version)
	},
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration in ~/.config/quantify/",
	RunE: func(cmd *cobra.Command, args []string) error {
		target := filepath.Join(config.ConfigDir(), "config.yaml")
		if _, err := os.Stat(target); err == nil {
			fmt.Printf("Config already exists: %s\n", target)
			return nil
		}

		if err := os.MkdirAll(config.ConfigDir(), 0o755); err != nil {
			return fmt.Errorf("creating config directory: %w", err)
		}

		if err := os.WriteFile(target, config.DefaultConfigYAML, 0o644); err != nil {
			return fmt.Errorf("writing config: %w", err)
		}

		fmt.Printf("Created config: %s\n", target)
		fmt.Println("Edit it to configure the assistant provider and ingestion options.")
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show database and system status",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		stats, err := db.GetStats()
		if err != nil {
			return fmt.Errorf("getting stats: %w", err)
		}

		fmt.Printf("Data directory: %s\n", cfg.GetDataDir())
		fmt.Printf("Database: %s\n\n", db.Path())
		fmt.Println("Uploads:")
		fmt.Printf("  Files ingested: %d\n", stats.Uploads)
		fmt.Printf("  Posts ingested: %d\n", stats.PostsIngested)
		if stats.LastUpload != "" {
			fmt.Printf("  Last upload: %s\n", stats.LastUpload)
		}
		fmt.Println("\nReports:")
		fmt.Printf("  Archived: %d\n", stats.Reports)
		fmt.Println("\nAssistant:")
		fmt.Printf("  Provider: %s\n", cfg.Assistant.Provider)
		fmt.Printf("  Include stats: %t\n", cfg.Assistant.IncludeStats)
		return nil
	},
}

// --- serve command ---

var (
	servePort int
	watchDir  string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the local dashboard",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		pipe := pipeline.New(cfg)
		sess := session.New(newAssistant())

		srv, err := server.New(cfg, db, pipe, sess)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if watchDir != "" {
			w := watch.New(watchDir, func(ctx context.Context, path string) {
				ingestDropped(ctx, pipe, sess, db, path)
			})
			go func() {
				if err := w.Run(ctx); err != nil {
					log.Printf("Drop folder stopped: %v", err)
				}
			}()
			fmt.Printf("Watching %s for new exports\n", watchDir)
		}

		port := servePort
		if !cmd.Flags().Changed("port") {
			port = cfg.Server.Port
		}
		fmt.Printf("Starting server at http://localhost:%d\n", port)
		fmt.Println("Press Ctrl+C to stop")
		return server.Serve(ctx, srv, port)
	},
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 8000, "Port to run server on")
	serveCmd.Flags().StringVar(&watchDir, "watch", "", "Drop folder whose files replace the dashboard data")
}

// ingestDropped loads a file from the drop folder into the live session, the
// same way an upload through the dashboard would.
func ingestDropped(ctx context.Context, pipe *pipeline.Pipeline, sess *session.Session, db *database.DB, path string) {
	tok := sess.Begin()
	result, err := pipe.RunFile(ctx, path)
	if err != nil {
		log.Printf("Skipping %s: %v", path, err)
		return
	}
	name := filepath.Base(path)
	if err := sess.Commit(tok, result.Posts, name); err != nil {
		log.Printf("Dropped %s: %v", name, err)
		return
	}
	if _, err := db.InsertUpload(name, string(result.Format), len(result.Posts), result.Fallbacks); err != nil {
		log.Printf("Recording upload %s: %v", name, err)
	}
	log.Printf("Loaded %d posts from %s", len(result.Posts), name)
}

// --- report command ---

var (
	reportOut     string
	reportJSON    bool
	reportArchive bool
)

var reportCmd = &cobra.Command{
	Use:   "report [file]",
	Short: "Print the analytics report for an export file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		pipe := pipeline.New(cfg)
		result, err := pipe.RunFile(cmd.Context(), args[0])
		if verbose && result != nil {
			printSteps(result.Steps)
		}
		if err != nil {
			return err
		}

		var body string
		if reportJSON {
			out, err := json.MarshalIndent(struct {
				Rows   []posts.AggregateRow `json:"rows"`
				Totals posts.Totals         `json:"totals"`
			}{result.Rows, posts.ComputeTotals(result.Posts)}, "", "  ")
			if err != nil {
				return fmt.Errorf("encoding aggregate: %w", err)
			}
			body = string(out) + "\n"
		} else {
			now := time.Now()
			body = posts.FormatReport(result.Rows, result.Posts, posts.ReportOptions{
				GeneratedAt: now,
				TopPosts:    cfg.Report.TopPosts,
			})
			if reportArchive {
				if err := archiveReport(now, len(result.Posts), body); err != nil {
					return err
				}
			}
		}

		if reportOut == "" {
			fmt.Print(body)
			return nil
		}
		if err := os.WriteFile(reportOut, []byte(body), 0o644); err != nil {
			return fmt.Errorf("writing report: %w", err)
		}
		fmt.Printf("Report written to %s\n", reportOut)
		return nil
	},
}

func init() {
	reportCmd.Flags().StringVarP(&reportOut, "output", "o", "", "Write the report to a file instead of stdout")
	reportCmd.Flags().BoolVar(&reportJSON, "json", false, "Print the aggregate as JSON")
	reportCmd.Flags().BoolVar(&reportArchive, "archive", false, "Store the text report in the history")
}

func archiveReport(at time.Time, postCount int, body string) error {
	db, err := openDB()
	if err != nil {
		return err
	}
	defer db.Close()

	id, err := db.InsertReport(at, postCount, body)
	if err != nil {
		return fmt.Errorf("archiving report: %w", err)
	}
	log.Printf("Archived report %d", id)
	return nil
}

func printSteps(steps []pipeline.StepResult) {
	for i, step := range steps {
		fmt.Fprintf(os.Stderr, "Step %d/%d: %s\n", i+1, len(steps), step.Name)
		if step.Err != nil {
			fmt.Fprintf(os.Stderr, "  Error: %v\n", step.Err)
		} else {
			fmt.Fprintf(os.Stderr, "  %s\n", step.Summary)
		}
	}
}

// --- ask command ---

var askData string

var askCmd = &cobra.Command{
	Use:   "ask [question...]",
	Short: "Ask the assistant a question about your posts",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var stats *assistant.Stats
		if askData != "" {
			result, err := pipeline.New(cfg).RunFile(cmd.Context(), askData)
			if err != nil {
				return err
			}
			stats = &assistant.Stats{Rows: result.Rows, Totals: posts.ComputeTotals(result.Posts)}
		}

		reply, err := newAssistant().Ask(cmd.Context(), strings.Join(args, " "), stats)
		if err != nil {
			return err
		}
		fmt.Println(reply)
		return nil
	},
}

func init() {
	askCmd.Flags().StringVar(&askData, "data", "", "Export file whose statistics are sent with the question")
}

// --- watch command ---

var watchOut string

var watchCmd = &cobra.Command{
	Use:   "watch [dir]",
	Short: "Print a report for every export dropped into a directory",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if watchOut != "" {
			if err := os.MkdirAll(watchOut, 0o755); err != nil {
				return fmt.Errorf("creating output directory: %w", err)
			}
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		pipe := pipeline.New(cfg)
		w := watch.New(args[0], func(ctx context.Context, path string) {
			result, err := pipe.RunFile(ctx, path)
			if err != nil {
				log.Printf("Skipping %s: %v", path, err)
				return
			}
			body := posts.FormatReport(result.Rows, result.Posts, posts.ReportOptions{
				GeneratedAt: time.Now(),
				TopPosts:    cfg.Report.TopPosts,
			})
			if watchOut == "" {
				fmt.Printf("== %s ==\n%s\n", filepath.Base(path), body)
				return
			}
			name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)) + "_report.txt"
			target := filepath.Join(watchOut, name)
			if err := os.WriteFile(target, []byte(body), 0o644); err != nil {
				log.Printf("Writing %s: %v", target, err)
				return
			}
			fmt.Printf("Wrote %s\n", target)
		})

		fmt.Printf("Watching %s (Ctrl+C to stop)\n", args[0])
		return w.Run(ctx)
	},
}

func init() {
	watchCmd.Flags().StringVar(&watchOut, "out", "", "Directory to write reports into instead of stdout")
}

// --- history command ---

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List archived reports",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		reports, err := db.ListReports(historyLimit)
		if err != nil {
			return err
		}
		if len(reports) == 0 {
			fmt.Println("No archived reports. Create one with: quantify report <file> --archive")
			return nil
		}

		fmt.Println("Archived reports:")
		fmt.Println()
		for _, r := range reports {
			fmt.Printf("  [%d] %s  %d posts\n", r.ID, r.GeneratedAt, r.PostCount)
		}
		return nil
	},
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Maximum number of reports to list")
}

func newAssistant() *assistant.Assistant {
	provider := assistant.CreateProvider(cfg.Assistant, cfg.AssistantTimeout())
	return assistant.New(provider, cfg.Assistant.MaxTokens, cfg.Assistant.IncludeStats)
}

func openDB() (*database.DB, error) {
	if err := os.MkdirAll(cfg.GetDataDir(), 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	return database.Open(cfg.DBPath())
}
