package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/TobiSchelling/annograph/internal/analysis"
	"github.com/TobiSchelling/annograph/internal/config"
	"github.com/TobiSchelling/annograph/internal/corpus"
	"github.com/TobiSchelling/annograph/internal/database"
	"github.com/TobiSchelling/annograph/internal/decode"
	"github.com/TobiSchelling/annograph/internal/logging"
	"github.com/TobiSchelling/annograph/internal/metrics"
	"github.com/TobiSchelling/annograph/internal/report"
	"github.com/TobiSchelling/annograph/internal/server"
	"github.com/TobiSchelling/annograph/internal/stats"
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
	Use:     "annograph",
	Short:   "Analyze annotated document tables",
	Long:    "annograph decodes keyword, entity and relation annotations from CSV/XLSX tables and serves graphs and statistics over them.",
	Version: version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := godotenv.Load(); err != nil {
			log.Debug("no .env file found, using process environment")
		}
		if err := logging.Setup("info", verbose); err != nil {
			return err
		}

		// Skip config loading for init and version
		if cmd.Name() == "init" || cmd.Name() == "version" {
			return nil
		}

		path, err := config.ResolveConfigPath(configPath)
		switch {
		case err != nil && configPath != "":
			return err
		case err != nil:
			log.Debug("no config file found, using built-in defaults")
			cfg = config.Default()
		default:
			cfg, err = config.Load(path)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid config: %w", err)
		}
		return logging.Setup(cfg.Logging.Level, verbose)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(serveCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("annograph", version)
	},
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration in ~/.config/annograph/",
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
		fmt.Println("Edit it to set the input table and analysis thresholds.")
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the stored table",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB(cmd.Context(), database.ReadOnly())
		if errors.Is(err, os.ErrNotExist) || errors.Is(err, database.ErrSchemaOutdated) {
			fmt.Println("No table imported. Run 'annograph import FILE'.")
			return nil
		}
		if err != nil {
			return err
		}
		defer db.Close()

		stats, err := db.GetStats(cmd.Context())
		if err != nil {
			return fmt.Errorf("getting stats: %w", err)
		}

		fmt.Printf("Database: %s\n\n", db.Path())
		if stats.Imports == 0 {
			fmt.Println("No table imported. Run 'annograph import FILE'.")
			return nil
		}
		fmt.Println("Table:")
		fmt.Printf("  Source: %s\n", stats.CurrentSource)
		if stats.ImportedAt != nil {
			fmt.Printf("  Imported: %s\n", *stats.ImportedAt)
		}
		fmt.Println("\nDocuments:")
		fmt.Printf("  Total: %d\n", stats.Documents)
		fmt.Printf("  With content: %d\n", stats.WithContent)
		fmt.Printf("  With entities: %d\n", stats.WithEntities)
		fmt.Printf("  With triples: %d\n", stats.WithTriples)
		return nil
	},
}

// --- import command ---

var importCmd = &cobra.Command{
	Use:   "import [file]",
	Short: "Import a CSV or XLSX table, replacing the stored one",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := cfg.Input.Path
		if len(args) > 0 {
			path = args[0]
		}
		if path == "" {
			return fmt.Errorf("no input file; pass one or set input.path in the config")
		}

		table, err := corpus.Load(path)
		if err != nil {
			return err
		}

		db, err := openDB(cmd.Context())
		if err != nil {
			return err
		}
		defer db.Close()

		imp, err := db.ImportTable(cmd.Context(), table)
		if err != nil {
			return fmt.Errorf("importing table: %w", err)
		}

		fmt.Printf("Imported %d documents from %s\n", imp.DocumentCount, imp.Source)
		fmt.Printf("  Columns: %v\n", imp.Columns)
		if table.IsRoleTable() {
			fmt.Println("  Role table: directors/actors/genres become relations")
		}
		return nil
	},
}

// --- analyze command ---

var (
	analyzeJSON     bool
	analyzeMarkdown bool
	analyzeTop      int
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze [file]",
	Short: "Run the analysis over a file or the stored table",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		snap, err := loadSnapshot(cmd.Context(), args)
		if err != nil {
			return err
		}

		if analyzeMarkdown {
			fmt.Print(report.Compose(snap, analyzeTop).Markdown())
			return nil
		}
		if analyzeJSON {
			return printJSON(map[string]any{
				"snapshot":  snap.ID,
				"summary":   snap.Summary(),
				"sentiment": snap.Stats().SentimentDistribution(),
				"keywords":  stats.Top(snap.Stats().KeywordFrequencies(), analyzeTop),
				"entities":  stats.Top(snap.Stats().EntityFrequencies(""), analyzeTop),
				"topics":    snap.Topics(),
			})
		}

		for i, step := range snap.Steps {
			fmt.Printf("\nStep %d/%d: %s\n", i+1, len(snap.Steps), step.Name)
			if step.Err != nil {
				fmt.Printf("  Error: %v\n", step.Err)
			} else {
				fmt.Printf("  %s\n", step.Summary)
			}
		}

		summary := snap.Summary()
		fmt.Println("\nSummary:")
		fmt.Printf("  Documents: %d (%d with content, %d dated)\n", summary.Documents, summary.WithContent, summary.Dated)
		fmt.Printf("  Keywords: %d (%d distinct)\n", summary.Keywords, summary.DistinctTerms)
		fmt.Printf("  Entities: %d mentions, %d identities\n", summary.EntityMentions, summary.Identities)
		fmt.Printf("  Triples: %d\n", summary.Triples)

		dist := snap.Stats().SentimentDistribution()
		fmt.Printf("  Sentiment: %d positive, %d neutral, %d negative\n", dist.Positive, dist.Neutral, dist.Negative)

		if kws := stats.Top(snap.Stats().KeywordFrequencies(), analyzeTop); len(kws) > 0 {
			fmt.Println("\nTop keywords:")
			for _, kw := range kws {
				fmt.Printf("  %s: %d\n", kw.Term, kw.Count)
			}
		}
		if topics := snap.Topics(); len(topics) > 0 {
			fmt.Println("\nTopics:")
			for _, t := range topics {
				fmt.Printf("  %s (%d)\n", t.Label, t.Size())
			}
		}
		return nil
	},
}

func init() {
	analyzeCmd.Flags().BoolVar(&analyzeJSON, "json", false, "Print the results as JSON")
	analyzeCmd.Flags().BoolVar(&analyzeMarkdown, "markdown", false, "Print a markdown report")
	analyzeCmd.Flags().IntVar(&analyzeTop, "top", 10, "Number of keywords and entities to list")
}

// --- show command ---

var showJSON bool

var showCmd = &cobra.Command{
	Use:   "show [id]",
	Short: "Show the decoded fields of one stored document",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid document ID: %s", args[0])
		}

		snap, err := loadSnapshot(cmd.Context(), nil)
		if err != nil {
			return err
		}
		doc, err := snap.Document(id)
		if err != nil {
			return fmt.Errorf("document %d: %w", id, err)
		}
		record, _ := snap.Record(id)

		if showJSON {
			g, _ := snap.DocumentGraph(id)
			return printJSON(map[string]any{"document": doc, "decoded": record, "graph": g})
		}

		fmt.Printf("[%d] %s\n", doc.ID, record.Title)
		if doc.Author != "" {
			fmt.Printf("  Author: %s\n", doc.Author)
		}
		if doc.Timestamp != "" {
			fmt.Printf("  Date: %s\n", doc.Timestamp)
		}
		fmt.Printf("  Keywords: %v\n", record.Keywords)
		for _, m := range record.Mentions {
			fmt.Printf("  %s: %s\n", m.Category, m.Name)
		}
		if len(record.Triples) > 0 {
			fmt.Printf("  Triples: %s\n", decode.FormatTriples(record.Triples))
		}
		return nil
	},
}

func init() {
	showCmd.Flags().BoolVar(&showJSON, "json", false, "Print the document as JSON")
}

// --- serve command ---

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the local web server",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB(cmd.Context())
		if err != nil {
			return err
		}
		defer db.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if err := importConfiguredInput(ctx, db); err != nil {
			return err
		}

		m := metrics.New()
		cache := analysis.NewCache(newAnalyzer(m))
		srv, err := server.New(cache, db, m)
		if err != nil {
			return err
		}

		port := cfg.Server.Port
		if cmd.Flags().Changed("port") {
			port = servePort
		}
		fmt.Printf("Starting server at http://localhost:%d\n", port)
		fmt.Println("Press Ctrl+C to stop")
		return server.Serve(ctx, srv, port)
	},
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 8000, "Port to run server on")
}

func newAnalyzer(m *metrics.Metrics) *analysis.Analyzer {
	opts := analysis.OptionsFromConfig(cfg.Analysis)
	if m == nil {
		return analysis.New(opts)
	}
	return analysis.New(opts,
		analysis.WithDecoder(decode.New(decode.WithObserver(m))),
		analysis.WithRecorder(m),
	)
}

// loadSnapshot analyzes the file in args, or the stored table when args is empty.
func loadSnapshot(ctx context.Context, args []string) (*analysis.Snapshot, error) {
	analyzer := newAnalyzer(nil)

	if len(args) > 0 {
		table, err := corpus.Load(args[0])
		if err != nil {
			return nil, err
		}
		return analyzer.Analyze(ctx, table)
	}

	db, err := openDB(ctx)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	if err := importConfiguredInput(ctx, db); err != nil {
		return nil, err
	}
	return analysis.NewCache(analyzer).Snapshot(ctx, db)
}

// importConfiguredInput imports input.path when the store is still empty.
func importConfiguredInput(ctx context.Context, db *database.DB) error {
	if cfg.Input.Path == "" {
		return nil
	}
	version, err := db.TableVersion(ctx)
	if err != nil {
		return err
	}
	if version != database.EmptyVersion {
		return nil
	}

	table, err := corpus.Load(cfg.Input.Path)
	if err != nil {
		return err
	}
	imp, err := db.ImportTable(ctx, table)
	if err != nil {
		return fmt.Errorf("importing %s: %w", cfg.Input.Path, err)
	}
	log.Info("imported configured input", "source", imp.Source, "documents", imp.DocumentCount)
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func openDB(ctx context.Context, opts ...database.Option) (*database.DB, error) {
	dbPath := filepath.Join(cfg.GetDataDir(), "annograph.db")
	return database.Open(ctx, dbPath, opts...)
}
