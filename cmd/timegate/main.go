package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"timegate/internal/config"
	"timegate/internal/gate"
	appLog "timegate/internal/log"
	"timegate/internal/watch"
	"timegate/internal/web"
)

const version = "0.1.0"

// Exit codes of a one-shot check.
const (
	exitInside  = 0
	exitOutside = 1
	exitError   = 2
)

type flagConfig struct {
	configPath string
	schedule   string
	at         string
	serve      bool
	listen     string
	logLevel   string
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout))
}

func run(args []string, stdout io.Writer) int {
	flags, err := parseFlags(args)
	if err != nil {
		return exitError
	}

	conf, err := loadConfig(flags)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", flags.configPath)
		return exitError
	}

	level, ok := appLog.ParseLevel(conf.LogLevel)
	if !ok {
		appLog.Warn("unknown log level, using info", "log_level", conf.LogLevel)
	}
	appLog.SetLevel(level)

	loc, err := conf.Location()
	if err != nil {
		appLog.Error("invalid config", err)
		return exitError
	}

	appLog.Debug("effective config",
		"listen", conf.Listen,
		"timezone", loc.String(),
		"schedule", conf.Schedule,
		"evaluate", conf.Evaluate,
		"refresh", conf.RefreshCron,
		"horizon_days", conf.HorizonDays,
		"ics_count", len(conf.ICS),
		"serve", flags.serve,
	)

	g := gate.New(gate.FromConfig(conf, loc))

	if !flags.serve {
		return check(g, flags.at, loc, stdout)
	}
	if err := serve(conf, g, loc); err != nil {
		appLog.Error("timegate stopped with error", err)
		return exitError
	}
	return exitInside
}

func parseFlags(args []string) (flagConfig, error) {
	var cfg flagConfig

	fs := flag.NewFlagSet("timegate", flag.ContinueOnError)
	fs.StringVar(&cfg.configPath, "config", "/etc/timegate/config.yaml", "Path to config file (empty: built-in defaults)")
	fs.StringVar(&cfg.schedule, "schedule", "", "Schedule definition file (overrides config if set)")
	fs.StringVar(&cfg.at, "at", "", "Instant to check, RFC 3339 (default: now)")
	fs.BoolVar(&cfg.serve, "serve", false, "Run the watcher and HTTP API instead of a one-shot check")
	fs.StringVar(&cfg.listen, "listen", "", "HTTP listen address (overrides config if set)")
	fs.StringVar(&cfg.logLevel, "log-level", "", "debug, info, warn or error (overrides config if set)")

	err := fs.Parse(args)
	return cfg, err
}

// loadConfig reads the config file, applies flag overrides and validates
// the result.
func loadConfig(flags flagConfig) (*config.Config, error) {
	conf := config.DefaultConfig()
	if flags.configPath != "" {
		loaded, err := config.Load(flags.configPath)
		switch {
		case err != nil && loaded == nil:
			return nil, err
		case err != nil:
			// Defaults could not be written on first run; they still apply.
			appLog.Warn("default config not saved", "config_path", flags.configPath, "err", err)
		}
		conf = loaded
	}

	if flags.schedule != "" {
		conf.Schedule = flags.schedule
	}
	if flags.listen != "" {
		conf.Listen = flags.listen
	}
	if flags.logLevel != "" {
		conf.LogLevel = flags.logLevel
	}
	if err := conf.Validate(); err != nil {
		return nil, err
	}
	return conf, nil
}

func check(g *gate.Gate, rawAt string, loc *time.Location, stdout io.Writer) int {
	at := time.Now().In(loc)
	if rawAt != "" {
		t, err := time.Parse(time.RFC3339, rawAt)
		if err != nil {
			appLog.Error("invalid -at, expected RFC 3339", err, "at", rawAt)
			return exitError
		}
		at = t
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	if err := g.Reload(ctx); err != nil {
		return exitError
	}

	active := g.Active(at)
	if len(active) == 0 {
		fmt.Fprintf(stdout, "%s outside\n", at.Format(time.RFC3339))
		return exitOutside
	}

	names := make([]string, 0, len(active))
	for _, e := range active {
		name := e.Name
		if name == "" {
			name = e.Period.String()
		}
		names = append(names, name)
	}
	fmt.Fprintf(stdout, "%s inside (%s)\n", at.Format(time.RFC3339), strings.Join(names, ", "))
	return exitInside
}

func serve(conf *config.Config, g *gate.Gate, loc *time.Location) error {
	appLog.Info("timegate starting", "version", version, "listen", conf.Listen)

	// Root context with cancellation on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := g.Reload(ctx); err != nil {
		return err
	}

	w := watch.New(g, watch.Config{
		Evaluate: conf.Evaluate,
		Refresh:  conf.RefreshCron,
		Location: loc,
	})
	if err := w.Start(ctx); err != nil {
		return err
	}
	defer w.Stop()

	err := web.NewServer(conf, g).ListenAndServe(ctx)
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	appLog.Info("timegate exiting")
	return err
}
