package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/SimplyPrint/nfc-wedge/internal/api"
	"github.com/SimplyPrint/nfc-wedge/internal/config"
	"github.com/SimplyPrint/nfc-wedge/internal/logging"
	"github.com/SimplyPrint/nfc-wedge/internal/loop"
	"github.com/SimplyPrint/nfc-wedge/internal/output"
	"github.com/SimplyPrint/nfc-wedge/internal/service"
	"github.com/SimplyPrint/nfc-wedge/internal/status"
	"github.com/SimplyPrint/nfc-wedge/internal/tray"
)

func main() {
	versionFlag := flag.Bool("version", false, "Print version information and exit")
	noTrayFlag := flag.Bool("no-tray", false, "Run without system tray (headless mode)")
	configFlag := flag.String("config", "", "Path to config.yaml (default: user config dir)")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "NFC Wedge - types NFC card UIDs into the focused application\n\n")
		fmt.Fprintf(os.Stderr, "Usage:\n")
		fmt.Fprintf(os.Stderr, "  nfc-wedge [flags]\n")
		fmt.Fprintf(os.Stderr, "  nfc-wedge <command>\n\n")
		fmt.Fprintf(os.Stderr, "Commands:\n")
		fmt.Fprintf(os.Stderr, "  install     Start automatically with the user session\n")
		fmt.Fprintf(os.Stderr, "  uninstall   Remove the autostart entry\n")
		fmt.Fprintf(os.Stderr, "  status      Show whether autostart is installed and running\n")
		fmt.Fprintf(os.Stderr, "  version     Print version information\n\n")
		fmt.Fprintf(os.Stderr, "Flags:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nEnvironment variables:\n")
		fmt.Fprintf(os.Stderr, "  NFC_WEDGE_HOST         Host to bind to (default: 127.0.0.1)\n")
		fmt.Fprintf(os.Stderr, "  NFC_WEDGE_PORT         Port to listen on (default: 32146)\n")
		fmt.Fprintf(os.Stderr, "  NFC_WEDGE_OUTPUTS      Comma separated outputs: keyboard, stdout, mqtt\n")
		fmt.Fprintf(os.Stderr, "  NFC_WEDGE_DEBOUNCE_MS  Pause after a successful read\n")
	}

	flag.Parse()

	if *versionFlag {
		printVersion()
		return
	}

	if args := flag.Args(); len(args) > 0 {
		switch args[0] {
		case "version":
			printVersion()
		case "install":
			if err := service.New().Install(); err != nil {
				log.Fatalf("Failed to install autostart: %v", err)
			}
			fmt.Println("Autostart installed")
		case "uninstall":
			if err := service.New().Uninstall(); err != nil {
				log.Fatalf("Failed to remove autostart: %v", err)
			}
			fmt.Println("Autostart removed")
		case "status":
			state, err := service.New().Status()
			if err != nil {
				log.Fatalf("Failed to query autostart: %v", err)
			}
			fmt.Printf("Autostart: %s\n", state)
		default:
			fmt.Fprintf(os.Stderr, "Unknown command: %s\n", args[0])
			flag.Usage()
			os.Exit(1)
		}
		return
	}

	cfg, err := config.Load(*configFlag)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	run(cfg, *noTrayFlag)
}

func printVersion() {
	fmt.Printf("nfc-wedge %s\n", api.Version)
	fmt.Printf("Build time: %s\n", api.BuildTime)
	fmt.Printf("Git commit: %s\n", api.GitCommit)
}

// consoleSurface mirrors accepted status lines into the structured log.
type consoleSurface struct{}

func (consoleSurface) Append(text string) {
	logging.Info(logging.CatLoop, text, nil)
}

func run(cfg *config.Config, headless bool) {
	level, ok := logging.ParseLevel(cfg.LogLevel)
	if !ok {
		log.Printf("Unknown log level %q, using info", cfg.LogLevel)
	}
	logging.Init(1000, level)
	logging.Info(logging.CatSystem, "NFC Wedge starting", map[string]any{
		"version": api.Version,
		"outputs": cfg.Outputs,
	})

	if logging.InitSentry(api.Version, cfg.CrashReporting, cfg.SentryDSN) {
		defer logging.FlushSentry(2 * time.Second)
	}

	hub := api.InitWebSocket()

	emitters, err := output.New(cfg)
	if err != nil {
		log.Printf("Some outputs are unavailable: %v", err)
	}
	emitters.Add("websocket", hub)
	logging.Info(logging.CatOutput, "UID outputs ready", map[string]any{
		"outputs": emitters.Names(),
	})

	statusLog := status.NewLog(500)
	reporter := status.NewReporter(emitters, statusLog, hub, consoleSurface{})

	readLoop := loop.New(reporter, loop.Options{
		Debounce:  cfg.Debounce,
		PausePoll: cfg.PausePoll,
	})

	api.SetController(readLoop)
	api.SetStatus(reporter, statusLog)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	go func() {
		_ = readLoop.Run(ctx)
	}()

	mux := api.NewMux()
	mux.HandleFunc("/v1/ws", hub.Handler())

	addr := cfg.Address()
	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	useTray := !headless && tray.IsSupported()
	var trayApp *tray.TrayApp

	var once sync.Once
	shutdown := func() {
		once.Do(func() {
			log.Println("Shutting down...")
			logging.Info(logging.CatSystem, "Shutting down", nil)
			cancel()

			shutdownCtx, done := context.WithTimeout(context.Background(), 3*time.Second)
			defer done()
			if err := server.Shutdown(shutdownCtx); err != nil {
				logging.Warn(logging.CatSystem, "HTTP shutdown incomplete", map[string]any{"error": err.Error()})
			}
			if err := emitters.Close(); err != nil {
				logging.Warn(logging.CatOutput, "Closing outputs failed", map[string]any{"error": err.Error()})
			}
			if trayApp != nil {
				trayApp.Quit()
			}
		})
	}
	api.SetShutdownHandler(shutdown)

	go func() {
		<-ctx.Done()
		shutdown()
	}()

	startServer := func() {
		log.Printf("nfc-wedge %s listening on http://%s\n", api.Version, addr)
		log.Printf("WebSocket available at ws://%s/v1/ws\n", addr)
		logging.Info(logging.CatSystem, "Server started", map[string]any{
			"address": addr,
		})

		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			// The wedge keeps typing without its API.
			logging.Error(logging.CatHTTP, "Server error", map[string]any{
				"error": err.Error(),
			})
		}
	}

	if useTray {
		log.Println("Starting with system tray...")
		trayApp = tray.New(addr, readLoop, statusLog, shutdown)
		// Blocks on the main thread until quit (required for macOS Cocoa).
		trayApp.RunWithServer(startServer)
		return
	}

	if headless {
		log.Println("Running in headless mode (no system tray)")
	} else {
		log.Println("System tray not supported on this platform, running headless")
	}

	startServer()
	<-ctx.Done()
}
