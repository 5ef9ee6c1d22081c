package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"memvault/go-backend/internal/composition/daemonserver"
)

var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	rpcAddr := flag.String("rpc-addr", "", "JSON-RPC listen address (default from config)")
	configPath := flag.String("config", "", "Path to config.yaml (optional)")
	dataDir := flag.String("data-dir", "", "Directory for the durable session store (optional)")
	rpcToken := flag.String("rpc-token", "", "RPC token for Authorization/X-Memvault-RPC-Token (optional)")
	flag.Parse()
	if *showVersion {
		fmt.Printf("memvault-daemon version=%s commit=%s build_date=%s\n", version, commit, buildDate)
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if *rpcToken != "" {
		_ = os.Setenv("MEMVAULT_RPC_TOKEN", *rpcToken)
	}

	srv, err := daemonserver.New(*rpcAddr, *configPath, *dataDir)
	if err != nil {
		log.Fatalf("memvault-daemon failed to initialize: %v", err)
	}

	log.Println("memvault-daemon starting")
	if err := srv.Run(ctx); err != nil {
		log.Fatalf("memvault-daemon failed: %v", err)
	}
	log.Println("memvault-daemon stopped")
}
