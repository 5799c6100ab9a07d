package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	tea "charm.land/bubbletea/v2"
	"github.com/charmbracelet/fang"
	charmLog "github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/hylla/syssla/internal/adapters/identity"
	"github.com/hylla/syssla/internal/adapters/storage/postgres"
	"github.com/hylla/syssla/internal/adapters/storage/sqlite"
	"github.com/hylla/syssla/internal/config"
	"github.com/hylla/syssla/internal/domain"
	"github.com/hylla/syssla/internal/platform"
	"github.com/hylla/syssla/internal/store"
	"github.com/hylla/syssla/internal/tui"
)

// version stores a package-level helper value.
var version = "dev"

// program represents program data used by this package.
type program interface {
	Run() (tea.Model, error)
}

// programFactory stores a package-level helper value.
var programFactory = func(m tea.Model) program {
	return tea.NewProgram(m)
}

// repository is the persistence surface the commands need: the store contract
// plus shutdown.
type repository interface {
	store.Repository
	Close() error
}

// defaultSeeds are the starter categories created on a user's first run.
var defaultSeeds = []store.CategorySeed{
	{Name: "Personal", Icon: "🏠", Color: "#60a5fa"},
	{Name: "Work", Icon: "💼", Color: "#f97316"},
	{Name: "Health", Icon: "💪", Color: "#34d399"},
	{Name: "Learning", Icon: "📚", Color: "#a78bfa"},
}

// rootFlags carries the persistent flag values shared by every command.
type rootFlags struct {
	configPath string
	dbPath     string
	devMode    bool
}

// main handles main.
func main() {
	if err := fang.Execute(context.Background(), newRootCmd()); err != nil {
		os.Exit(1)
	}
}

// newRootCmd builds the CLI tree. The bare command runs the TUI.
func newRootCmd() *cobra.Command {
	flags := &rootFlags{}
	cmd := &cobra.Command{
		Use:           "syssla",
		Short:         "Personal task board for the terminal",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runTUI(cmd.Context(), flags, cmd.ErrOrStderr())
		},
	}
	cmd.PersistentFlags().StringVar(&flags.configPath, "config", "", "path to config TOML")
	cmd.PersistentFlags().StringVar(&flags.dbPath, "db", "", "path to sqlite database")
	cmd.PersistentFlags().BoolVar(&flags.devMode, "dev", version == "dev", "use dev mode paths (syssla-dev)")

	cmd.AddCommand(newPathsCmd(flags))
	cmd.AddCommand(newExportCmd(flags))
	cmd.AddCommand(newImportCmd(flags))
	cmd.AddCommand(newSignOutCmd(flags))
	return cmd
}

// runtimeEnv is everything resolved before a command body runs.
type runtimeEnv struct {
	paths  platform.Paths
	cfg    config.Config
	logger *runtimeLogger
	repo   repository
	ident  store.Identity
	store  *store.Store
	user   store.User
}

// Close releases the environment's resources in reverse open order.
func (e *runtimeEnv) Close() {
	if e.repo != nil {
		if err := e.repo.Close(); err != nil {
			e.logger.Warn("repository close failed", "err", err)
		}
	}
	if err := e.logger.Close(); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "warning: close log sink: %v\n", err)
	}
}

// setupEnv resolves paths, config, logging, storage, and identity, and signs
// the user in.
func setupEnv(ctx context.Context, flags *rootFlags, stderr io.Writer) (*runtimeEnv, error) {
	paths, err := platform.DefaultPathsWithOptions(platform.Options{
		AppName: "syssla",
		DevMode: flags.devMode,
	})
	if err != nil {
		return nil, err
	}

	configPath := flags.configPath
	if configPath == "" {
		if envPath := strings.TrimSpace(os.Getenv("SYSSLA_CONFIG")); envPath != "" {
			configPath = envPath
		} else {
			configPath = paths.ConfigPath
		}
	}
	dbPath := flags.dbPath
	dbOverridden := strings.TrimSpace(dbPath) != ""
	if !dbOverridden {
		if envPath := strings.TrimSpace(os.Getenv("SYSSLA_DB_PATH")); envPath != "" {
			dbPath = envPath
			dbOverridden = true
		} else {
			dbPath = paths.DBPath
		}
	}

	cfg, err := config.Load(configPath, config.Default(dbPath))
	if err != nil {
		return nil, fmt.Errorf("load config %q: %w", configPath, err)
	}
	if dbOverridden {
		cfg.Database.Driver = config.DriverSQLite
		cfg.Database.Path = dbPath
	}

	logger, err := newRuntimeLogger(stderr, cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("configure runtime logger: %w", err)
	}
	logger.Info("configuration loaded", "config_path", configPath, "driver", cfg.Database.Driver, "log_level", cfg.Logging.Level)

	env := &runtimeEnv{paths: paths, cfg: cfg, logger: logger}
	if env.repo, err = openRepository(cfg, logger); err != nil {
		env.Close()
		return nil, err
	}
	if env.ident, err = buildIdentity(cfg, paths); err != nil {
		env.Close()
		return nil, err
	}

	env.store = store.New(env.repo, env.ident, nil)
	user, ok := env.ident.CurrentUser()
	if !ok {
		logger.Info("no cached session, signing in", "mode", cfg.Identity.Mode)
		if user, err = env.ident.SignIn(ctx); err != nil {
			env.Close()
			return nil, fmt.Errorf("sign in: %w", err)
		}
	}
	env.user = user
	if err = env.store.SetUser(ctx, user.ID); err != nil {
		env.Close()
		return nil, fmt.Errorf("load user data: %w", err)
	}
	logger.Info("user session ready", "user_id", user.ID)

	if cfg.Categories.SeedDefaults {
		if err = env.store.EnsureDefaultCategories(ctx, defaultSeeds); err != nil {
			env.Close()
			return nil, fmt.Errorf("seed default categories: %w", err)
		}
	}
	return env, nil
}

// openRepository opens the backend selected by the config driver.
func openRepository(cfg config.Config, logger *runtimeLogger) (repository, error) {
	switch cfg.Database.Driver {
	case config.DriverPostgres:
		logger.Info("opening postgres repository")
		repo, err := postgres.Open(cfg.Database.DSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres repository: %w", err)
		}
		return repo, nil
	default:
		logger.Info("opening sqlite repository", "db_path", cfg.Database.Path)
		repo, err := sqlite.Open(cfg.Database.Path)
		if err != nil {
			return nil, fmt.Errorf("open sqlite repository: %w", err)
		}
		return repo, nil
	}
}

// buildIdentity constructs the identity adapter for the configured mode.
func buildIdentity(cfg config.Config, paths platform.Paths) (store.Identity, error) {
	if strings.TrimSpace(strings.ToLower(cfg.Identity.Mode)) != "oauth" {
		return identity.NewLocal("", ""), nil
	}
	ident, err := identity.NewOAuth(identity.OAuthConfig{
		ClientID:     cfg.Identity.ClientID,
		ClientSecret: cfg.Identity.ClientSecret,
		AuthURL:      cfg.Identity.AuthURL,
		TokenURL:     cfg.Identity.TokenURL,
		UserInfoURL:  cfg.Identity.UserInfoURL,
		Scopes:       cfg.Identity.Scopes,
		RedirectPort: cfg.Identity.RedirectPort,
		CacheDir:     paths.IdentityDir,
	})
	if err != nil {
		return nil, fmt.Errorf("configure oauth identity: %w", err)
	}
	return ident, nil
}

// runTUI handles run tui.
func runTUI(ctx context.Context, flags *rootFlags, stderr io.Writer) error {
	env, err := setupEnv(ctx, flags, stderr)
	if err != nil {
		return err
	}
	defer env.Close()
	// Keep TUI rendering clean: runtime logs stay in the dev-file sink while
	// the board is active.
	env.logger.SetConsoleEnabled(false)

	label := env.user.Email
	if label == "" {
		label = env.user.Name
	}
	m := tui.NewModel(
		env.store,
		tui.WithTaskFieldConfig(tui.TaskFieldConfig{
			ShowPriority:    env.cfg.TaskFields.ShowPriority,
			ShowDueDate:     env.cfg.TaskFields.ShowDueDate,
			ShowTimeRange:   env.cfg.TaskFields.ShowTimeRange,
			ShowDescription: env.cfg.TaskFields.ShowDescription,
		}),
		tui.WithUserLabel(label),
	)
	env.logger.Info("starting tui program loop")
	if _, err := programFactory(m).Run(); err != nil {
		env.logger.Error("tui program terminated with error", "err", err)
		return fmt.Errorf("run tui program: %w", err)
	}
	return nil
}

// newPathsCmd prints the resolved platform paths.
func newPathsCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "paths",
		Short: "Print resolved config and data paths",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			paths, err := platform.DefaultPathsWithOptions(platform.Options{
				AppName: "syssla",
				DevMode: flags.devMode,
			})
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "dev_mode: %t\n", flags.devMode)
			_, _ = fmt.Fprintf(out, "config: %s\n", paths.ConfigPath)
			_, _ = fmt.Fprintf(out, "data_dir: %s\n", paths.DataDir)
			_, _ = fmt.Fprintf(out, "db: %s\n", paths.DBPath)
			_, _ = fmt.Fprintf(out, "identity_dir: %s\n", paths.IdentityDir)
			return nil
		},
	}
}

// snapshot is the export/import wire format.
type snapshot struct {
	ExportedAt time.Time         `json:"exported_at"`
	UserID     string            `json:"user_id"`
	Categories []domain.Category `json:"categories"`
	Tasks      []domain.Task     `json:"tasks"`
}

// newExportCmd writes the signed-in user's data as JSON.
func newExportCmd(flags *rootFlags) *cobra.Command {
	var outPath string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export tasks and categories as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			env, err := setupEnv(cmd.Context(), flags, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer env.Close()

			snap := snapshot{
				ExportedAt: time.Now().UTC(),
				UserID:     env.user.ID,
				Categories: env.store.Categories(),
				Tasks:      env.store.Tasks(),
			}
			encoded, err := json.MarshalIndent(snap, "", "  ")
			if err != nil {
				return fmt.Errorf("encode snapshot json: %w", err)
			}
			encoded = append(encoded, '\n')

			if outPath == "-" {
				_, err = cmd.OutOrStdout().Write(encoded)
				return err
			}
			if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
				return fmt.Errorf("create export output dir: %w", err)
			}
			if err := os.WriteFile(outPath, encoded, 0o644); err != nil {
				return fmt.Errorf("write export file: %w", err)
			}
			env.logger.Info("export complete", "out", outPath, "tasks", len(snap.Tasks), "categories", len(snap.Categories))
			return nil
		},
	}
	cmd.Flags().StringVar(&outPath, "out", "-", "output file path ('-' for stdout)")
	return cmd
}

// newImportCmd recreates tasks and categories from a snapshot file. Rows get
// fresh ids; category references are remapped.
func newImportCmd(flags *rootFlags) *cobra.Command {
	var inPath string
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import tasks and categories from a JSON snapshot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if inPath == "" {
				return fmt.Errorf("--in is required")
			}
			content, err := os.ReadFile(inPath)
			if err != nil {
				return fmt.Errorf("read import file: %w", err)
			}
			var snap snapshot
			if err := json.Unmarshal(content, &snap); err != nil {
				return fmt.Errorf("decode snapshot json: %w", err)
			}

			env, err := setupEnv(cmd.Context(), flags, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer env.Close()

			if err := importSnapshot(cmd.Context(), env.store, snap); err != nil {
				return fmt.Errorf("import snapshot: %w", err)
			}
			env.logger.Info("import complete", "in", inPath, "tasks", len(snap.Tasks), "categories", len(snap.Categories))
			return nil
		},
	}
	cmd.Flags().StringVar(&inPath, "in", "", "input snapshot JSON file")
	return cmd
}

// importSnapshot replays a snapshot through the store mutations.
func importSnapshot(ctx context.Context, st *store.Store, snap snapshot) error {
	categoryIDs := make(map[string]string, len(snap.Categories))
	for _, cat := range snap.Categories {
		created, err := st.AddCategory(ctx, store.CreateCategoryInput{
			Name:  cat.Name,
			Icon:  cat.Icon,
			Color: cat.Color,
		})
		if err != nil {
			return fmt.Errorf("import category %q: %w", cat.Name, err)
		}
		categoryIDs[cat.ID] = created.ID
	}

	// Snapshots list tasks newest-first; replay oldest-first so the recreated
	// rows keep the original relative order.
	for i := len(snap.Tasks) - 1; i >= 0; i-- {
		task := snap.Tasks[i]
		created, err := st.AddTask(ctx, store.CreateTaskInput{
			Title:       task.Title,
			Description: task.Description,
			DueDate:     task.DueDate,
			CategoryID:  categoryIDs[task.CategoryID],
			Priority:    task.Priority,
			TimeRange:   task.TimeRange,
		})
		if err != nil {
			return fmt.Errorf("import task %q: %w", task.Title, err)
		}
		if task.Status != domain.StatusTodo {
			if _, err := st.UpdateTaskStatus(ctx, created.ID, task.Status); err != nil {
				return fmt.Errorf("restore status for %q: %w", task.Title, err)
			}
		}
	}
	return nil
}

// newSignOutCmd drops the cached identity session.
func newSignOutCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "signout",
		Short: "Drop the cached sign-in session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			paths, err := platform.DefaultPathsWithOptions(platform.Options{
				AppName: "syssla",
				DevMode: flags.devMode,
			})
			if err != nil {
				return err
			}
			configPath := flags.configPath
			if configPath == "" {
				configPath = paths.ConfigPath
			}
			cfg, err := config.Load(configPath, config.Default(paths.DBPath))
			if err != nil {
				return fmt.Errorf("load config %q: %w", configPath, err)
			}
			ident, err := buildIdentity(cfg, paths)
			if err != nil {
				return err
			}
			if err := ident.SignOut(cmd.Context()); err != nil {
				return fmt.Errorf("sign out: %w", err)
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "signed out")
			return nil
		},
	}
}

// runtimeLogger fans log events to a styled console sink and an optional
// file sink.
type runtimeLogger struct {
	sinks          []*charmLog.Logger
	consoleSink    *charmLog.Logger
	consoleEnabled bool
	closeFile      func() error
}

// newRuntimeLogger configures runtime log sinks from config state.
func newRuntimeLogger(stderr io.Writer, cfg config.LoggingConfig) (*runtimeLogger, error) {
	levelName := cfg.Level
	if strings.TrimSpace(levelName) == "" {
		levelName = "info"
	}
	level, err := charmLog.ParseLevel(levelName)
	if err != nil {
		return nil, fmt.Errorf("parse logging level %q: %w", cfg.Level, err)
	}
	if stderr == nil {
		stderr = io.Discard
	}

	consoleLogger := charmLog.NewWithOptions(stderr, charmLog.Options{
		Level:           level,
		Prefix:          "syssla",
		ReportTimestamp: true,
		TimeFormat:      time.RFC3339,
		Formatter:       charmLog.TextFormatter,
	})
	logger := &runtimeLogger{
		sinks:          []*charmLog.Logger{consoleLogger},
		consoleSink:    consoleLogger,
		consoleEnabled: true,
	}
	if strings.TrimSpace(cfg.DevFile) == "" {
		return logger, nil
	}

	if err := os.MkdirAll(filepath.Dir(cfg.DevFile), 0o755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	logFile, err := os.OpenFile(cfg.DevFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	// Keep file output parseable and unstyled while preserving styled console
	// logs.
	fileLogger := charmLog.NewWithOptions(logFile, charmLog.Options{
		Level:           level,
		Prefix:          "syssla",
		ReportTimestamp: true,
		TimeFormat:      time.RFC3339,
		Formatter:       charmLog.LogfmtFormatter,
	})
	logger.sinks = append(logger.sinks, fileLogger)
	logger.closeFile = logFile.Close
	return logger, nil
}

// Close closes the optional file sink.
func (l *runtimeLogger) Close() error {
	if l == nil || l.closeFile == nil {
		return nil
	}
	return l.closeFile()
}

// SetConsoleEnabled toggles whether the console sink receives runtime events.
func (l *runtimeLogger) SetConsoleEnabled(enabled bool) {
	if l == nil {
		return
	}
	l.consoleEnabled = enabled
}

// shouldLogToSink reports whether one sink should receive runtime output.
func (l *runtimeLogger) shouldLogToSink(sink *charmLog.Logger) bool {
	if l == nil || sink == nil {
		return false
	}
	if sink == l.consoleSink && !l.consoleEnabled {
		return false
	}
	return true
}

// Info logs an informational event to all configured sinks.
func (l *runtimeLogger) Info(msg string, keyvals ...any) {
	if l == nil {
		return
	}
	for _, sink := range l.sinks {
		if !l.shouldLogToSink(sink) {
			continue
		}
		sink.Info(msg, keyvals...)
	}
}

// Warn logs a warning event to all configured sinks.
func (l *runtimeLogger) Warn(msg string, keyvals ...any) {
	if l == nil {
		return
	}
	for _, sink := range l.sinks {
		if !l.shouldLogToSink(sink) {
			continue
		}
		sink.Warn(msg, keyvals...)
	}
}

// Error logs an error event to all configured sinks.
func (l *runtimeLogger) Error(msg string, keyvals ...any) {
	if l == nil {
		return
	}
	for _, sink := range l.sinks {
		if !l.shouldLogToSink(sink) {
			continue
		}
		sink.Error(msg, keyvals...)
	}
}
