package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/razvan-soare/gemstone-tracker-sub000/internal/app"
	"github.com/razvan-soare/gemstone-tracker-sub000/internal/db"
	"github.com/razvan-soare/gemstone-tracker-sub000/internal/engine"
	"github.com/razvan-soare/gemstone-tracker-sub000/internal/export"
	"github.com/razvan-soare/gemstone-tracker-sub000/internal/logging"
	"github.com/razvan-soare/gemstone-tracker-sub000/internal/migrate"
	"github.com/razvan-soare/gemstone-tracker-sub000/internal/repo"
)

var rootCmd = &cobra.Command{
	Use:   "gt",
	Short: "Gemstone tracker CLI",
	Long: `gt keeps a gemstone inventory per organization and exports it as CSV or XLSX.
- Workspace: the .gemstones directory holding the SQLite database; .env next to it is loaded on start.
- Organization: owns stones, config (owners, currencies, timezone) and roles.
- Stones: add, update, sell and unsell; deletes are soft.
- Search: "red & ruby" needs every term, "emerald | spinel" needs any.
- History: stones grouped by purchase or sale day, newest first.
- Export: date range, sold status and owner filters, or an explicit --select list.
- Event log: every change, view with 'gt log tail'.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		_, err := db.EnsureWorkspace(viper.GetString("workspace"))
		return err
	},
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	if err := app.LoadEnv(viper.GetString("workspace")); err != nil {
		fmt.Fprintln(os.Stderr, "warning: .env:", err)
	}
	viper.SetEnvPrefix("GEMSTONES")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	flags := rootCmd.PersistentFlags()
	flags.StringP("workspace", "w", ".", "workspace directory")
	flags.Bool("json", false, "output JSON")
	flags.String("actor-id", "local-user", "actor identifier")
	flags.String("org", "", "organization id (defaults to GEMSTONES_ORG or the only organization)")
	flags.String("log-level", "warn", "log level (debug, info, warn, error)")
	flags.String("log-format", "text", "log format (text or json)")
	flags.String("export-dir", "", "directory for exported files (default <workspace>/.gemstones/exports)")
	flags.String("s3-endpoint", "", "S3-compatible endpoint for exports")
	flags.String("s3-access-key", "", "S3 access key")
	flags.String("s3-secret-key", "", "S3 secret key")
	flags.String("s3-region", "", "S3 region")
	flags.String("s3-bucket", "", "S3 bucket")
	flags.String("s3-prefix", "exports", "S3 key prefix")
	flags.Bool("s3-use-ssl", true, "use TLS for S3")
	for _, name := range []string{
		"workspace", "json", "actor-id", "org", "log-level", "log-format", "export-dir",
		"s3-endpoint", "s3-access-key", "s3-secret-key", "s3-region", "s3-bucket", "s3-prefix", "s3-use-ssl",
	} {
		_ = viper.BindPFlag(name, flags.Lookup(name))
	}
}

func registerCommands() {
	rootCmd.AddCommand(orgCmd())
	rootCmd.AddCommand(statusCmd())
	rootCmd.AddCommand(stoneCmd())
	rootCmd.AddCommand(searchCmd())
	rootCmd.AddCommand(historyCmd())
	rootCmd.AddCommand(exportCmd())
	rootCmd.AddCommand(logCmd())
	rootCmd.AddCommand(apikeyCmd())
	rootCmd.AddCommand(serveCmd())
}

// --- helpers ---

func newLogger() *logrus.Logger {
	return logging.NewWithOutput(viper.GetString("log-level"), viper.GetString("log-format"), os.Stderr)
}

func openEngine(ctx context.Context) (engine.Engine, func(), error) {
	conn, err := db.Open(db.Config{Workspace: viper.GetString("workspace")})
	if err != nil {
		return engine.Engine{}, nil, err
	}
	if err := migrate.MigrateContext(ctx, conn); err != nil {
		conn.Close()
		return engine.Engine{}, nil, err
	}
	e := engine.New(conn, newLogger())
	return e, func() { conn.Close() }, nil
}

func withEngine(ctx context.Context, fn func(context.Context, engine.Engine) error) error {
	e, closeFn, err := openEngine(ctx)
	if err != nil {
		return err
	}
	defer closeFn()
	return fn(ctx, e)
}

// withOrg resolves the active organization and checks that the actor holds
// perm in it.
func withOrg(ctx context.Context, perm string, fn func(context.Context, engine.Engine, string) error) error {
	return withEngine(ctx, func(ctx context.Context, e engine.Engine) error {
		orgID, err := app.ResolveOrg(ctx, viper.GetString("org"), e.Repo)
		if err != nil {
			return err
		}
		if perm != "" {
			if err := e.Auth.Require(ctx, orgID, actorID(), perm); err != nil {
				return err
			}
		}
		return fn(ctx, e, orgID)
	})
}

func withRepo(ctx context.Context, fn func(context.Context, repo.Repo) error) error {
	return withEngine(ctx, func(ctx context.Context, e engine.Engine) error {
		return fn(ctx, e.Repo)
	})
}

func actorID() string {
	return viper.GetString("actor-id")
}

// exportSink delivers to object storage when an S3 endpoint is configured,
// otherwise to the export directory.
func exportSink() (export.Sink, error) {
	if endpoint := viper.GetString("s3-endpoint"); endpoint != "" {
		return export.NewObjectSink(export.ObjectConfig{
			EndpointURL:     endpoint,
			AccessKeyID:     viper.GetString("s3-access-key"),
			SecretAccessKey: viper.GetString("s3-secret-key"),
			Region:          viper.GetString("s3-region"),
			Bucket:          viper.GetString("s3-bucket"),
			Prefix:          viper.GetString("s3-prefix"),
			UseSSL:          viper.GetBool("s3-use-ssl"),
		})
	}
	dir := viper.GetString("export-dir")
	if dir == "" {
		dir = filepath.Join(viper.GetString("workspace"), ".gemstones", "exports")
	}
	return export.LocalSink{Dir: dir}, nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newTable() table.Writer {
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.SetStyle(table.StyleLight)
	return tw
}

func dec(d *decimal.Decimal) string {
	if d == nil {
		return ""
	}
	return d.String()
}
