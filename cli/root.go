package cli

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"os"

	"github.com/spf13/cobra"

	"kzz_crawler/config"
	"kzz_crawler/logging"
	"kzz_crawler/models"
	"kzz_crawler/notify"
	"kzz_crawler/scraper"
	"kzz_crawler/services"
	"kzz_crawler/session"
	"kzz_crawler/storage"
	"kzz_crawler/workers"
)

// Execute runs the command line in args. Whatever the command opened is
// closed on return, including when it failed.
func Execute(ctx context.Context, args []string) error {
	var e env
	return run(ctx, &e, newRootCmd(&e), args)
}

func run(ctx context.Context, e *env, root *cobra.Command, args []string) error {
	defer e.close()
	root.SetArgs(args)
	return root.ExecuteContext(ctx)
}

func newRootCmd(e *env) *cobra.Command {
	root := &cobra.Command{
		Use:           "kzz_crawler",
		Short:         "Convertible bond crawler, store and change monitor",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return e.setup()
		},
	}

	root.AddCommand(
		newServeCmd(e),
		newCrawlCmd(e),
		newMonitorCmd(e),
		newSessionCmd(e),
		newStatusCmd(e),
		newStrategyCmd(e),
		newTriggerCmd(e),
	)
	return root
}

// env holds what the subcommands share. Stores are opened on first use and
// closed by Execute.
type env struct {
	cfg     *config.Config
	logFile *logging.RotatingWriter

	pg       *storage.PostgresStore
	sqlite   *storage.SQLiteStore
	sessions *session.BadgerStore
}

func (e *env) setup() error {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	e.cfg = cfg

	if cfg.Log.Path != "" {
		rw, err := logging.Setup(cfg.Log.Path, logging.Policy{MaxSize: cfg.Log.MaxSize, Backups: cfg.Log.Backups})
		if err != nil {
			log.Printf("Warning: could not set up file logging: %v", err)
		} else {
			e.logFile = rw
		}
	}
	return nil
}

func (e *env) close() {
	if e.pg != nil {
		e.pg.Close()
		e.pg = nil
	}
	if e.sqlite != nil {
		if err := e.sqlite.Close(); err != nil {
			log.Printf("close sqlite: %v", err)
		}
		e.sqlite = nil
	}
	if e.sessions != nil {
		if err := e.sessions.Close(); err != nil {
			log.Printf("close session store: %v", err)
		}
		e.sessions = nil
	}
	if e.logFile != nil {
		log.SetOutput(os.Stdout)
		e.logFile.Close()
		e.logFile = nil
	}
}

func (e *env) postgres(ctx context.Context) (*storage.PostgresStore, error) {
	if e.pg != nil {
		return e.pg, nil
	}
	db := e.cfg.Database
	pg, err := storage.NewPostgresStore(ctx, db.URL, db.MaxConns, db.MinConns)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	log.Printf("Connected to Postgres: %s", maskConnectionString(db.URL))
	e.pg = pg
	return pg, nil
}

func (e *env) operational() (*storage.SQLiteStore, error) {
	if e.sqlite != nil {
		return e.sqlite, nil
	}
	s, err := storage.NewSQLiteStore(e.cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	log.Printf("SQLite database: %s", e.cfg.DBPath)
	e.sqlite = s
	return s, nil
}

func (e *env) sessionManager() (*session.Manager, error) {
	if e.sessions == nil {
		s, err := session.NewBadgerStore(e.cfg.SessionDir)
		if err != nil {
			return nil, err
		}
		e.sessions = s
	}
	return session.NewManager(e.sessions, e.cfg.Site().PrimaryCookie), nil
}

func (e *env) archiver(ctx context.Context) (storage.Archiver, error) {
	a := e.cfg.Archive
	if a.Bucket == "" {
		return storage.NopArchiver{}, nil
	}
	archiver, err := storage.NewS3Archiver(ctx, storage.S3Config{
		Bucket:          a.Bucket,
		Prefix:          a.Prefix,
		Region:          a.Region,
		Endpoint:        a.Endpoint,
		AccessKeyID:     a.AccessKeyID,
		SecretAccessKey: a.SecretAccessKey,
	})
	if err != nil {
		return nil, err
	}
	log.Printf("Archiving raw payloads to s3://%s/%s", a.Bucket, a.Prefix)
	return archiver, nil
}

func (e *env) bondService(ctx context.Context) (*services.BondService, error) {
	pg, err := e.postgres(ctx)
	if err != nil {
		return nil, err
	}
	archiver, err := e.archiver(ctx)
	if err != nil {
		return nil, err
	}
	return services.NewBondService(pg, archiver, e.cfg.Crawler), nil
}

func (e *env) orchestrator(ctx context.Context) (*scraper.Orchestrator, error) {
	bonds, err := e.bondService(ctx)
	if err != nil {
		return nil, err
	}
	ops, err := e.operational()
	if err != nil {
		return nil, err
	}
	sessions, err := e.sessionManager()
	if err != nil {
		return nil, err
	}
	return scraper.NewOrchestrator(e.cfg, ops, bonds, sessions), nil
}

func (e *env) monitor(ctx context.Context) (*workers.Monitor, error) {
	pg, err := e.postgres(ctx)
	if err != nil {
		return nil, err
	}
	m := workers.NewMonitor(pg, notify.New(e.cfg.Notify.FeishuWebhook, e.cfg.Notify.Timeout), e.cfg.Monitor)
	if ops, err := e.operational(); err == nil {
		m.SetLogger(func(level models.LogLevel, source, message string) {
			if err := ops.Log(nil, level, source, message); err != nil {
				log.Printf("[monitor] write log: %v", err)
			}
		})
	}
	return m, nil
}

// maskConnectionString hides the password of a URL-style DSN.
func maskConnectionString(connStr string) string {
	u, err := url.Parse(connStr)
	if err != nil || u.User == nil {
		return connStr
	}
	return u.Redacted()
}
