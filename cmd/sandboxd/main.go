// Command sandboxd is the MCP stdio server exposing the multi-language
// code execution sandbox.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/Pit-CL/mcp-multilang-sandbox/internal/config"
	"github.com/Pit-CL/mcp-multilang-sandbox/internal/server"
)

func main() {
	logger := log.New(os.Stderr, "[sandboxd] ", log.LstdFlags|log.Lmsgprefix)

	cfg := config.Load()

	srv, err := server.New(cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "sandboxd: failed to initialize: %v\n", err)
		os.Exit(1)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		logger.Printf("received signal %v, shutting down", sig)
		srv.Shutdown(context.Background())
		os.Exit(0)
	}()

	mcpServer := newMCPServer(srv)

	logger.Printf("starting sandboxd over stdio")
	if err := serveStdio(mcpServer); err != nil {
		fmt.Fprintf(os.Stderr, "sandboxd: %v\n", err)
		os.Exit(1)
	}
}
