package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/plexgate/plexgate/internal/config"
	"github.com/plexgate/plexgate/internal/server"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "Usage: plexgate <command> [flags]")
		fmt.Fprintln(os.Stderr, "Commands: serve, check")
		os.Exit(1)
	}

	switch os.Args[1] {
	case "serve":
		os.Exit(cmdServe())
	case "check":
		os.Exit(cmdCheck())
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		fmt.Fprintln(os.Stderr, "Commands: serve, check")
		os.Exit(1)
	}
}

func cmdServe() int {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	cfg := config.DefaultFromEnv()

	fs.StringVar(&cfg.Host, "host", cfg.Host, "Bind host")
	fs.IntVar(&cfg.Port, "port", cfg.Port, "Listen port")
	fs.BoolVar(&cfg.Verbose, "verbose", cfg.Verbose, "Enable verbose logging")
	fs.DurationVar(&cfg.RequestTimeout, "timeout", cfg.RequestTimeout, "Per-request time budget")
	fs.Parse(os.Args[2:])

	if cfg.Verbose {
		slog.SetLogLoggerLevel(slog.LevelDebug)
	}

	srv := server.New(cfg)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Fprintln(os.Stderr, "\nShutting down...")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	}()

	slog.Info("plexgate starting", "host", cfg.Host, "port", cfg.Port)
	if err := srv.ListenAndServe(); err != nil && err.Error() != "http: Server closed" {
		slog.Error("server error", "error", err)
		return 1
	}
	return 0
}

// cmdCheck validates the environment the way startup would, without
// binding a port. Cookie values are never printed, only their names.
func cmdCheck() int {
	creds, err := config.LoadCredentials()
	if err != nil {
		fmt.Println("Configuration")
		fmt.Printf("  • Invalid: %v\n", err)
		return 1
	}

	fmt.Println("Configuration")
	fmt.Println("  • Gateway API key: set")
	fmt.Printf("  • Provider cookies: %d (%s)\n", len(creds.ProviderCookies), joinKeys(creds.ProviderCookies))
	if len(creds.EmailCookies) > 0 {
		fmt.Printf("  • Account provisioning: enabled (%d cookies)\n", len(creds.EmailCookies))
	} else {
		fmt.Println("  • Account provisioning: disabled (" + config.EnvEmailCookies + " not set)")
	}
	return 0
}

func joinKeys(m map[string]string) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := ""
	for i, k := range keys {
		if i > 0 {
			out += ", "
		}
		out += k
	}
	return out
}
