package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/sync/errgroup"

	"github.com/hyprpal/autotile/internal/config"
	"github.com/hyprpal/autotile/internal/engine"
	"github.com/hyprpal/autotile/internal/ipc"
	"github.com/hyprpal/autotile/internal/metrics"
	"github.com/hyprpal/autotile/internal/util"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

type options struct {
	debug       bool
	showVersion bool
	workspaces  []string
	socket      string
	configPath  string
	configSet   bool
	dryRun      bool
	logLevel    string
}

func parseFlags(argv []string) (options, error) {
	var opts options
	fs := flag.NewFlagSet("autotile", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	fs.BoolVar(&opts.debug, "debug", false, "print debug messages to stderr")
	fs.BoolVar(&opts.showVersion, "version", false, "display version information")
	fs.BoolVar(&opts.showVersion, "v", false, "shorthand for -version")
	var workspaces string
	fs.StringVar(&workspaces, "workspaces", "", "restrict autotiling to these workspaces, e.g. -workspaces 8 9")
	fs.StringVar(&workspaces, "w", "", "shorthand for -workspaces")
	fs.StringVar(&opts.socket, "socket", "", "IPC socket path (default $SWAYSOCK, $I3SOCK, or sway/i3 --get-socketpath)")
	fs.StringVar(&opts.configPath, "config", config.DefaultPath(), "path to optional YAML config")
	fs.BoolVar(&opts.dryRun, "dry-run", false, "log layout changes instead of sending them")
	fs.StringVar(&opts.logLevel, "log-level", "", "override log level (trace|debug|info|warn|error|off)")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: %s [flags] [-w N [N...]]\n\n", fs.Name())
		fmt.Fprintln(fs.Output(), "Switches i3/sway split orientation to follow the focused window's longer side.")
		fmt.Fprintln(fs.Output())
		fmt.Fprintln(fs.Output(), "Flags:")
		fs.PrintDefaults()
	}
	if err := fs.Parse(argv); err != nil {
		return opts, err
	}

	workspacesSet := false
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "workspaces", "w":
			workspacesSet = true
		case "config":
			opts.configSet = true
		}
	})
	opts.workspaces = config.SplitWorkspaces(workspaces)
	if rest := fs.Args(); len(rest) > 0 {
		if !workspacesSet {
			return opts, fmt.Errorf("unexpected arguments: %s", strings.Join(rest, " "))
		}
		for _, arg := range rest {
			opts.workspaces = append(opts.workspaces, config.SplitWorkspaces(arg)...)
		}
	}
	return opts, nil
}

func loadConfig(opts options) (*config.Config, []byte, error) {
	if opts.configSet {
		raw, err := os.ReadFile(opts.configPath)
		if err != nil {
			return nil, nil, fmt.Errorf("read config: %w", err)
		}
		cfg, err := config.Parse(raw)
		if err != nil {
			return nil, nil, err
		}
		return cfg, raw, nil
	}
	return config.LoadOptional(opts.configPath)
}

func logLevelFor(opts options, debug bool) util.LogLevel {
	if opts.logLevel != "" {
		return util.ParseLogLevel(opts.logLevel)
	}
	if debug {
		return util.LevelDebug
	}
	return util.LevelOff
}

func run(argv []string, stdout io.Writer) error {
	opts, err := parseFlags(argv)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}
	if opts.showVersion {
		fmt.Fprintf(stdout, "autotile %s, %s\n", version, runtime.Version())
		return nil
	}

	fileCfg, raw, err := loadConfig(opts)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	cfg := fileCfg.WithOverrides(opts.debug, opts.workspaces)
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := util.NewLogger(logLevelFor(opts, cfg.Debug))
	if cfg.Debug && len(cfg.Workspaces) > 0 {
		logger.Infof("autotiling is only active on workspaces: %s", strings.Join(cfg.Workspaces, ","))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	conn, err := ipc.Connect(ctx, opts.socket)
	if err != nil {
		return err
	}
	defer conn.Close()
	if v, err := conn.Version(ctx); err != nil {
		logger.Warnf("query version: %v", err)
	} else {
		logger.Debugf("connected to %s at %s", describeVersion(v), conn.Path())
	}

	collector := metrics.NewCollector(true)
	eng := engine.New(conn, logger, engine.Options{
		Scope:   cfg.Scope(),
		DryRun:  opts.dryRun,
		Metrics: collector,
	})
	reloader := newConfigReloader(opts, logger, eng, raw)

	reloadRequests := make(chan string, 1)
	watcher, err := watchConfigFile(logger, opts.configPath)
	if err != nil {
		logger.Debugf("config hot reload disabled: %v", err)
	} else {
		defer watcher.Close()
	}

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(sigs)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer cancel()
		return eng.Run(gctx)
	})
	if watcher != nil {
		g.Go(func() error {
			watchConfig(gctx, logger, watcher, filepath.Clean(opts.configPath), reloadRequests)
			return nil
		})
	}
	g.Go(func() error {
		for {
			select {
			case <-gctx.Done():
				return nil
			case reason := <-reloadRequests:
				if err := reloader.Reload(reason); err != nil {
					logger.Errorf("reload failed: %v", err)
				}
			case sig := <-sigs:
				switch sig {
				case syscall.SIGHUP:
					if err := reloader.Reload("received SIGHUP"); err != nil {
						logger.Errorf("reload failed: %v", err)
					}
				default:
					logger.Infof("received %s, shutting down", sig)
					cancel()
				}
			}
		}
	})

	err = g.Wait()
	snap := collector.Snapshot()
	logger.Debugf("handled %d focus cycles: %d switched, %d skipped, %d errors",
		snap.Totals.Cycles, snap.Totals.Switched, snap.Totals.Skipped, snap.Totals.Errors)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func describeVersion(v ipc.Version) string {
	name := "i3"
	if v.Variant != "" {
		name = v.Variant
	}
	if v.HumanReadable != "" {
		return name + " " + v.HumanReadable
	}
	return fmt.Sprintf("%s %d.%d.%d", name, v.Major, v.Minor, v.Patch)
}

func watchConfigFile(logger *util.Logger, path string) (*fsnotify.Watcher, error) {
	full, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watch config: %w", err)
	}
	if err := watcher.Add(filepath.Dir(full)); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("watch config dir: %w", err)
	}
	if err := watcher.Add(full); err != nil {
		logger.Debugf("unable to watch config file directly: %v", err)
	}
	return watcher, nil
}

func watchConfig(ctx context.Context, logger *util.Logger, watcher *fsnotify.Watcher, target string, reloadRequests chan<- string) {
	const debounceWindow = 250 * time.Millisecond
	if abs, err := filepath.Abs(target); err == nil {
		target = abs
	}
	var (
		timer   *time.Timer
		timerCh <-chan time.Time
	)
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(debounceWindow)
				timerCh = timer.C
			} else {
				if !timer.Stop() {
					<-timerCh
				}
				timer.Reset(debounceWindow)
			}
		case <-timerCh:
			timer = nil
			timerCh = nil
			select {
			case reloadRequests <- "config file updated":
			default:
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			logger.Warnf("config watcher error: %v", err)
		}
	}
}
