// simserve serves a scene bundle directory to simview over HTTP polling and
// the websocket push channel.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/Faultbox/simview/internal/logger"
	"github.com/Faultbox/simview/internal/server"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]
	args := os.Args[2:]

	switch command {
	case "serve":
		cmdServe(args)
	case "info":
		cmdInfo(args)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`simserve - scene bundle server for simview

Usage:
  simserve <command> [options] <bundle-dir>

Commands:
  serve [options] <dir>   Serve the bundle, reloading on change
  info <dir>              Show bundle information

Serve options:
  -addr :5000             HTTP polling address (also serves /ws)
  -push :5001             Dedicated push address, empty to disable
  -spin 0.5               Spin speed of the root's children in rad/s, 0 to disable
  -tick 50ms              Animation step
  -debug                  Enable debug logging

Examples:
  simserve info ./bundle
  simserve serve -spin 1 ./bundle`)
}

func cmdInfo(args []string) {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "Usage: simserve info <dir>")
		os.Exit(1)
	}

	b, err := server.LoadBundle(args[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	bodies := len(server.Flatten(&b.Scene.Root))
	var size int
	hashes := make([]string, 0, len(b.Blobs))
	for h, blob := range b.Blobs {
		size += len(blob)
		hashes = append(hashes, h)
	}
	sort.Strings(hashes)

	fmt.Printf("Bundle:    %s\n", args[0])
	fmt.Printf("Scene ID:  %s\n", b.ID)
	fmt.Printf("Bodies:    %d\n", bodies)
	fmt.Printf("Meshes:    %d\n", len(b.Scene.Meshes))
	fmt.Printf("Materials: %d\n", len(b.Scene.Materials))
	fmt.Printf("Textures:  %d\n", len(b.Scene.Textures))
	fmt.Printf("Blobs:     %d (%d bytes)\n", len(b.Blobs), size)
	for _, h := range hashes {
		fmt.Printf("  %s %d\n", h, len(b.Blobs[h]))
	}
	if len(b.Missing) > 0 {
		fmt.Printf("Missing:   %d\n", len(b.Missing))
		for _, h := range b.Missing {
			fmt.Printf("  %s\n", h)
		}
	}
}

func cmdServe(args []string) {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	addr := fs.String("addr", ":5000", "HTTP polling address")
	push := fs.String("push", ":5001", "Dedicated push address")
	spin := fs.Float64("spin", 0.5, "Spin speed in rad/s")
	tick := fs.Duration("tick", 50*time.Millisecond, "Animation step")
	debug := fs.Bool("debug", false, "Enable debug logging")
	fs.Parse(args)

	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Usage: simserve serve [options] <dir>")
		os.Exit(1)
	}

	level := "info"
	if *debug {
		level = "debug"
	}
	if err := logger.Init(level, ""); err != nil {
		fmt.Fprintf(os.Stderr, "Logger error: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := serve(fs.Arg(0), *addr, *push, float32(*spin), *tick); err != nil {
		logger.Error("server error", zap.Error(err))
		logger.Sync()
		os.Exit(1)
	}
}

func serve(dir, addr, pushAddr string, spin float32, tick time.Duration) error {
	st, err := server.NewStore(dir)
	if err != nil {
		return err
	}
	hub := server.NewHub(st)
	defer hub.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := server.NewWatcher(st, hub, 100*time.Millisecond).Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Warn("bundle watcher stopped", zap.Error(err))
		}
	}()
	if spin != 0 {
		go server.NewAnimator(st, hub, spin, tick).Run(ctx)
	}

	servers := []*http.Server{{Addr: addr, Handler: server.NewRouter(st, hub)}}
	if pushAddr != "" {
		mux := http.NewServeMux()
		mux.Handle(server.PathPush, hub)
		servers = append(servers, &http.Server{Addr: pushAddr, Handler: mux})
	}

	errc := make(chan error, len(servers))
	for _, srv := range servers {
		logger.Info("listening", zap.String("addr", srv.Addr))
		go func(srv *http.Server) {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errc <- fmt.Errorf("%s: %w", srv.Addr, err)
			}
		}(srv)
	}

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-errc:
	}

	shutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for _, srv := range servers {
		runErr = multierr.Append(runErr, srv.Shutdown(shutdown))
	}
	return runErr
}
