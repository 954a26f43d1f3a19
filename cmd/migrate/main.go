package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/abundantshare/share-backend/pkg/config"
	"github.com/abundantshare/share-backend/pkg/db"
	"github.com/abundantshare/share-backend/pkg/logger"
	"github.com/abundantshare/share-backend/pkg/migrate"
	"github.com/joho/godotenv"
)

const usage = `usage: migrate -cmd <command> [flags]

commands:
  up         apply all pending migrations
  down       roll back the latest migration
  status     list migrations and whether they are applied
  version    print the current schema version, or migrate to -version
  create     write a new migration file named -name into -dir
  validate   check migration file names and goose sections
`

func main() {
	cmd := flag.String("cmd", "up", "migration command")
	dir := flag.String("dir", "", "migrations directory (embedded set when empty)")
	name := flag.String("name", "", "migration name for create")
	target := flag.String("version", "", "target version (YYYYMMDDHHMMSS) for version")
	flag.Usage = func() {
		fmt.Fprint(flag.CommandLine.Output(), usage)
		flag.PrintDefaults()
	}
	flag.Parse()

	// create and validate only touch files and need no config.
	switch *cmd {
	case "create":
		outDir := *dir
		if outDir == "" {
			outDir = migrate.DefaultDir
		}
		path, err := migrate.CreateSQLMigration(outDir, *name, time.Now())
		exitOn("create migration", err)
		fmt.Println("created", path)
		return
	case "validate":
		exitOn("validate migrations", migrate.Validate(migrate.Source(*dir)))
		fmt.Println("migrations valid")
		return
	}

	_ = godotenv.Load()
	cfg, err := config.Load()
	exitOn("load config", err)
	if cfg.DB.Driver == config.DBDriverSQLite {
		exitOn("migrate", fmt.Errorf("goose migrations target postgres; sqlite schemas are created by the services at startup"))
	}

	logg := logger.New(logger.Options{
		ServiceName: "migrate",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		Format:      cfg.App.LogFormat,
		WarnStack:   cfg.App.LogWarnStack,
	})
	ctx := logg.WithFields(context.Background(), map[string]any{"env": cfg.App.Env, "cmd": *cmd})

	dbClient, err := db.New(ctx, cfg.DB, logg)
	exitOn("connect database", err)
	defer dbClient.Close()

	sqlDB, err := dbClient.DB().DB()
	exitOn("sql handle", err)
	runner, err := migrate.NewRunner(sqlDB, migrate.Source(*dir), logg)
	exitOn("migration runner", err)

	switch *cmd {
	case "up":
		err = runner.Up(ctx)
	case "down":
		err = runner.Down(ctx)
	case "status":
		err = printStatus(ctx, runner)
	case "version":
		if *target != "" {
			err = runner.To(ctx, *target)
			break
		}
		var v int64
		if v, err = runner.Version(ctx); err == nil {
			fmt.Println(v)
		}
	default:
		flag.Usage()
		os.Exit(2)
	}
	if err != nil {
		logg.Error(ctx, "migrate.failed", err)
		os.Exit(1)
	}
}

func printStatus(ctx context.Context, runner *migrate.Runner) error {
	states, err := runner.Status(ctx)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "VERSION\tSTATE\tFILE")
	for _, s := range states {
		state := "pending"
		if s.Applied {
			state = "applied"
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\n", s.Version, state, s.Path)
	}
	return tw.Flush()
}

func exitOn(step string, err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(os.Stderr, "%s: %v\n", step, err)
	os.Exit(1)
}
