// Package main runs a headless UI host that answers native-share share sheet
// and permission requests.
package main

import (
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/morezero/native-share/internal/uihost"
	"github.com/morezero/native-share/pkg/commsutil"
)

const usage = `Usage: ui-host

Answers share sheet and photo permission requests for a running native-share.

Environment:
  COMMS_URL           NATS URL (default nats://127.0.0.1:4222)
  SHEET_SUBJECT       Share sheet subject (default native_share.ui.sheet)
  PERMISSION_SUBJECT  Permission subject (default native_share.ui.permission)
  UI_HOST_PERMISSION  authorized | denied | undetermined (default authorized)
  UI_HOST_PRESENT     false to report no presentation context (default true)
  UI_HOST_OUTBOX      Directory receiving a copy of each shared image
`

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "help", "-h", "--help":
			fmt.Print(usage)
			return
		default:
			fmt.Fprintf(os.Stderr, "Unknown command %q.\n%s", os.Args[1], usage)
			os.Exit(1)
		}
	}

	if err := run(); err != nil {
		log.Fatalf("ui-host: %v", err)
	}
}

func run() error {
	cfg, err := uihost.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	nc, err := commsutil.Connect(cfg.COMMSURL, "native-share-ui-host")
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer nc.Close()

	h, err := uihost.New(cfg, nc)
	if err != nil {
		return err
	}
	if err := h.Start(); err != nil {
		return err
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	slog.Info(fmt.Sprintf("ui-host - Received signal %s, shutting down", sig))
	h.Stop()
	return nc.Drain()
}
