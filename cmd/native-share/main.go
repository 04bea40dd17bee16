// Package main is the entrypoint for native-share.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/url"
	"os"
	"os/signal"
	"syscall"

	"github.com/morezero/native-share/internal/config"
	"github.com/morezero/native-share/internal/server"
	"github.com/morezero/native-share/pkg/channel"
	"github.com/morezero/native-share/pkg/commsutil"
	"github.com/morezero/native-share/pkg/db"
	"github.com/morezero/native-share/pkg/gallery"
	"github.com/morezero/native-share/pkg/manifest"
)

const usage = `Usage: native-share [command]
       native-share serve                          Start the channel (NATS, UI loop, HTTP health/metrics).
       native-share call shareImage <path> [subject]  Invoke shareImage on a running channel.
       native-share call saveImageToGallery <path>    Invoke saveImageToGallery on a running channel.
       native-share call <method> [json-arguments]    Invoke any method with a raw argument bag.
       native-share manifest [constraint]          Print the served manifest; fail if the version does not satisfy constraint.
       native-share migrate up                     Run database migrations.
       native-share migrate down                   Roll back (migrations are forward-only; prints guidance).
       native-share migrate status                 Show migration status.
       native-share ensure-db [name]               Create database if missing (default name: native_share_test). Uses DATABASE_URL host/user.
       native-share clear                          Remove saved assets and stored permission decisions.

Commands:
  serve            (default) Start the native share channel.
  call             Send one call and print the reply envelope.
  manifest         Fetch the channel manifest.
  migrate up       Run database migrations only.
  migrate down     Roll back last migration (optional).
  migrate status   Show current migration status.
  ensure-db [name] Create database (e.g. native_share_test) on same host as DATABASE_URL.
  clear            Empty the gallery backend (GALLERY_BACKEND dir or postgres).

Environment: COMMS_URL, GALLERY_BACKEND, GALLERY_DIR, DATABASE_URL, MIGRATION_PATH, HTTP_ADDR, LOG_LEVEL. See README.
`

func main() {
	args := os.Args[1:]
	cmd := ""
	if len(args) > 0 && args[0] != "" {
		cmd = args[0]
	}

	switch cmd {
	case "call":
		if len(args) < 2 {
			log.Fatalf("native-share call: require method")
		}
		if err := runCall(args[1], args[2:]); err != nil {
			log.Fatalf("native-share call: %v", err)
		}
		return
	case "manifest":
		constraint := ""
		if len(args) > 1 {
			constraint = args[1]
		}
		if err := runManifest(constraint); err != nil {
			log.Fatalf("native-share manifest: %v", err)
		}
		return
	case "migrate":
		if len(args) < 2 {
			log.Fatalf("native-share migrate: require subcommand (up, down, status)")
		}
		sub := args[1]
		switch sub {
		case "up":
			if err := runMigrateUp(); err != nil {
				log.Fatalf("native-share migrate up: %v", err)
			}
		case "status":
			if err := runMigrateStatus(); err != nil {
				log.Fatalf("native-share migrate status: %v", err)
			}
		case "down":
			if err := runMigrateDown(); err != nil {
				log.Fatalf("native-share migrate down: %v", err)
			}
		default:
			log.Fatalf("native-share migrate: unknown subcommand %q (use up, down, status)", sub)
		}
		return
	case "clear":
		if err := runClear(); err != nil {
			log.Fatalf("native-share clear: %v", err)
		}
		return
	case "ensure-db":
		dbName := "native_share_test"
		if len(args) > 1 && args[1] != "" {
			dbName = args[1]
		}
		if err := runEnsureDB(dbName); err != nil {
			log.Fatalf("native-share ensure-db: %v", err)
		}
		return
	case "help", "-h", "--help":
		fmt.Print(usage)
		return
	case "serve", "":
		// serve (explicit or default)
		break
	default:
		fmt.Fprintf(os.Stderr, "Unknown command %q.\n%s", cmd, usage)
		os.Exit(1)
	}

	if err := server.Run(); err != nil {
		log.Fatalf("native-share: %v", err)
	}
}

// callArguments builds the argument bag for method from positional args.
func callArguments(method string, rest []string) (interface{}, error) {
	switch method {
	case "shareImage":
		if len(rest) < 1 {
			return nil, fmt.Errorf("shareImage requires <path>")
		}
		args := map[string]string{"imagePath": rest[0]}
		if len(rest) > 1 {
			args["subject"] = rest[1]
		}
		return args, nil
	case "saveImageToGallery":
		if len(rest) < 1 {
			return nil, fmt.Errorf("saveImageToGallery requires <path>")
		}
		return map[string]string{"imagePath": rest[0]}, nil
	default:
		if len(rest) == 0 {
			return nil, nil
		}
		var raw json.RawMessage
		if err := json.Unmarshal([]byte(rest[0]), &raw); err != nil {
			return nil, fmt.Errorf("arguments must be JSON: %w", err)
		}
		return raw, nil
	}
}

func newClient() (*channel.Client, func(), error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	nc, err := commsutil.Connect(cfg.COMMSURL, cfg.COMMSName+"-cli")
	if err != nil {
		return nil, nil, fmt.Errorf("connect: %w", err)
	}
	client := channel.NewClient(nc, channel.WithSubjects(cfg.ChannelSubject, ""), channel.WithCaller(cfg.COMMSName+"-cli"))
	return client, nc.Close, nil
}

// interruptContext is cancelled on SIGINT/SIGTERM. Calls have no deadline of their own.
func interruptContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func runCall(method string, rest []string) error {
	args, err := callArguments(method, rest)
	if err != nil {
		return err
	}
	client, closeConn, err := newClient()
	if err != nil {
		return err
	}
	defer closeConn()

	ctx, cancel := interruptContext()
	defer cancel()
	resp, err := client.Invoke(ctx, method, args)
	if err != nil {
		return err
	}
	out, _ := json.MarshalIndent(resp, "", "  ")
	fmt.Println(string(out))
	return channel.Err(resp)
}

func runManifest(constraint string) error {
	client, closeConn, err := newClient()
	if err != nil {
		return err
	}
	defer closeConn()

	ctx, cancel := interruptContext()
	defer cancel()
	var m *manifest.Manifest
	if constraint != "" {
		m, err = client.CheckCompatible(ctx, constraint)
	} else {
		m, err = client.Manifest(ctx)
	}
	if m != nil {
		out, _ := json.MarshalIndent(m, "", "  ")
		fmt.Println(string(out))
	}
	return err
}

func runMigrateUp() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.ValidateForDB(); err != nil {
		return err
	}
	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()

	migrations, err := db.LoadMigrationFiles(cfg.MigrationPath)
	if err != nil {
		return fmt.Errorf("load migrations: %w", err)
	}
	if err := db.RunMigrations(ctx, pool, migrations); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}

func runMigrateStatus() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.ValidateForDB(); err != nil {
		return err
	}
	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()

	return db.MigrationStatus(ctx, pool, cfg.MigrationPath)
}

func runMigrateDown() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.ValidateForDB(); err != nil {
		return err
	}
	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()

	return db.MigrationDown(ctx, pool, cfg.MigrationPath)
}

func runClear() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if !cfg.UsesDatabase() {
		store, err := gallery.NewDirStore(cfg.GalleryDir)
		if err != nil {
			return fmt.Errorf("open gallery dir: %w", err)
		}
		if err := store.Clear(); err != nil {
			return fmt.Errorf("clear gallery dir: %w", err)
		}
		return nil
	}

	if err := cfg.ValidateForDB(); err != nil {
		return err
	}
	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()

	if err := db.ClearGallery(ctx, pool); err != nil {
		return fmt.Errorf("clear gallery: %w", err)
	}
	return nil
}

func runEnsureDB(dbName string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	u, err := url.Parse(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("parse DATABASE_URL: %w", err)
	}
	// Replace path with target database name; query (e.g. sslmode) is kept on u.RawQuery.
	u.Path = "/" + dbName
	if err := db.EnsureDatabase(context.Background(), u.String()); err != nil {
		return err
	}
	fmt.Printf("Database %q is ready.\n", dbName)
	return nil
}
