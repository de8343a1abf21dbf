package server

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"supapool/pkg/config"
	"supapool/pkg/logger"
)

func Main() {
	// Check for help flag early before instance check
	if len(os.Args) > 1 && (os.Args[len(os.Args)-1] == "-h" || os.Args[len(os.Args)-1] == "--help") {
		fs := flag.NewFlagSet("supapool", flag.ContinueOnError)
		registerFlags(fs)
		printHelp(fs)
		return
	}

	// Handle subcommands: start|stop|restart|status (default: start)
	command := "start"
	if len(os.Args) > 1 {
		first := os.Args[1]
		if first == "start" || first == "stop" || first == "restart" || first == "status" {
			command = first
			// Remove subcommand from args before flag parsing
			os.Args = append([]string{os.Args[0]}, os.Args[2:]...)
		}
	}

	instanceMgr := NewInstanceManager()

	if command != "start" {
		switch command {
		case "status":
			if running, pid := instanceMgr.IsRunning(); running {
				fmt.Printf("Server running (PID %d)\n", pid)
			} else {
				fmt.Println("Server not running")
			}
			return
		case "stop":
			if err := instanceMgr.Kill(); err != nil {
				fmt.Printf("Stop failed: %v\n", err)
			} else {
				fmt.Println("Server stopped")
			}
			return
		case "restart":
			_ = instanceMgr.Kill() // Ignore error; may not be running
			fmt.Println("Restarting server...")
		}
	}

	// Enforce single instance before starting
	if command == "start" {
		if running, pid := instanceMgr.IsRunning(); running {
			fmt.Printf("Server already running (PID %d)\n", pid)
			return
		}
	}

	addr := flag.String("addr", ":8080", "Server address")
	configPath := flag.String("config", "", "Config file path (optional)")
	supabaseURL := flag.String("supabase-url", "", "Supabase project URL (rest backend)")
	poolSize := flag.Int("pool-size", 0, "Maximum pooled connections (0 uses config)")
	webUsername := flag.String("web-user", "admin", "Admin API username")
	webPassword := flag.String("web-pass", "admin", "Admin API password")
	logLevel := flag.String("log-level", "info", "Log level: debug, info, warn, error")
	logFormat := flag.String("log-format", "text", "Log format: text or json")
	flag.Parse()

	// Initialize structured logger
	logger.Init(logger.LogLevel(*logLevel), *logFormat)
	log := logger.Get()

	log.InfoWith("server starting", "version", "1.0.0")

	// Load configuration (from file, env, or defaults)
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.ErrorWithErr("failed to load configuration", err)
		return
	}

	// Override config with command-line flags if provided
	if *addr != ":8080" {
		cfg.Address = *addr
	}
	if *supabaseURL != "" {
		cfg.Backend.URL = *supabaseURL
	}
	if *poolSize > 0 {
		cfg.Pool.PoolSize = *poolSize
	}
	if *webUsername != "admin" {
		cfg.WebUI.Username = *webUsername
	}
	if *webPassword != "admin" {
		cfg.WebUI.Password = *webPassword
	}
	if *logLevel != "info" {
		cfg.Logging.Level = *logLevel
	}
	if *logFormat != "text" {
		cfg.Logging.Format = *logFormat
	}

	log.InfoWith("configuration loaded", "address", cfg.Address,
		"backend", cfg.Backend.Type, "pool_size", cfg.Pool.PoolSize)

	// Initialize services (dependency injection container)
	services, err := NewServices(cfg)
	if err != nil {
		log.ErrorWithErr("failed to initialize services", err)
		return
	}

	srv := NewServer(services)

	// Write PID file for instance management
	if err := instanceMgr.WritePID(); err != nil {
		log.WarnWith("failed to write PID file", "error", err)
	}
	defer instanceMgr.RemovePID()

	// Setup signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM, syscall.SIGQUIT)

	errorChan := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil {
			log.ErrorWithErr("server error", err)
			errorChan <- err
		}
	}()

	log.InfoWith("server is running", "press", "Ctrl+C to stop")

	select {
	case sig := <-sigChan:
		log.InfoWith("received signal", "signal", sig.String())
		log.InfoWith("shutting down server gracefully")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			log.ErrorWithErr("error during shutdown", err)
		}
		log.InfoWith("server stopped")
		return

	case err := <-errorChan:
		if err != nil {
			log.ErrorWithErr("server encountered fatal error", err)
		}
		log.InfoWith("server stopped")
		return
	}
}

func registerFlags(fs *flag.FlagSet) {
	fs.String("addr", ":8080", "Server address")
	fs.String("config", "", "Config file path (optional)")
	fs.String("supabase-url", "", "Supabase project URL (rest backend)")
	fs.Int("pool-size", 0, "Maximum pooled connections (0 uses config)")
	fs.String("web-user", "admin", "Admin API username")
	fs.String("web-pass", "admin", "Admin API password")
	fs.String("log-level", "info", "Log level: debug, info, warn, error")
	fs.String("log-format", "text", "Log format: text or json")
}

// printHelp displays help information for the server
func printHelp(fs *flag.FlagSet) {
	fmt.Print(`Supapool - Usage:

Commands:
  start              Start the server (default if no command given)
  stop               Stop the running server
  restart            Restart the server
  status             Show server status

Flags:
`)
	fs.PrintDefaults()
	fmt.Print(`
Examples:
  ./bin/supapool                                  # Start on default port 8080
  ./bin/supapool -addr 127.0.0.1:8081             # Start on custom port
  ./bin/supapool -pool-size 20                    # Larger pool
  ./bin/supapool stop                             # Stop the server
  ./bin/supapool status                           # Check if server is running
`)
}
