// Command placemap hosts the marker map: it keeps the marker store, tracks the
// device location and accepts commands on stdin or from the map frontend.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/myplaces/placemap/internal/api"
	"github.com/myplaces/placemap/internal/config"
	"github.com/myplaces/placemap/internal/dispatcher"
	"github.com/myplaces/placemap/internal/handlers"
	"github.com/myplaces/placemap/internal/influx"
	"github.com/myplaces/placemap/internal/journal"
	"github.com/myplaces/placemap/internal/location"
	"github.com/myplaces/placemap/internal/logging"
	"github.com/myplaces/placemap/internal/markers"
	"github.com/myplaces/placemap/internal/monitor"
	intOtel "github.com/myplaces/placemap/internal/otel"
	"github.com/myplaces/placemap/internal/render"
	"github.com/myplaces/placemap/internal/tracker"
	"github.com/myplaces/placemap/internal/util"
	"github.com/myplaces/placemap/pkg/core"
	"github.com/myplaces/placemap/pkg/streaming"

	"github.com/spf13/viper"
	"gorm.io/gorm"
)

// AppName names the log files and the GELF facility.
const AppName = "placemap"

const (
	tileAttribution = "&copy; OpenStreetMap contributors"
	statusInterval  = 10 * time.Second
	frontendWait    = 30 * time.Second
)

var (
	// Version can be set at build time via ldflags
	Version = "0.1.0"

	SessionStartTime = time.Now()
)

func main() {
	configDir := flag.String("config", ".", "directory containing "+config.FileName)
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, *configDir, os.Stdin, os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "placemap:", err)
		os.Exit(1)
	}
}

// app holds everything built at startup that needs closing.
type app struct {
	logManager *logging.SlogManager
	logger     *slog.Logger
	logFile    *os.File
	otel       *intOtel.Provider

	store    *markers.Store
	tracker  *tracker.Tracker
	feed     *location.Feed
	device   *location.ManualProvider
	monitor  *monitor.Service
	journal  *journal.Journal
	influx   *influx.Manager
	ws       *render.WebsocketRenderer
	events   *dispatcher.Dispatcher
	handlers *handlers.Service
	host     *hostOutput

	// ready is set once the domain is wired; log context reads it first.
	ready atomic.Bool
}

func run(ctx context.Context, configDir string, in io.Reader, out io.Writer) error {
	a := &app{logManager: logging.NewSlogManager(), host: newHostOutput(out)}
	defer a.close()

	configErr := config.Load(configDir)

	if err := a.setupLogging(); err != nil {
		return err
	}
	switch {
	case errors.Is(configErr, config.ErrNotFound):
		a.logger.Warn("Config file not found, using defaults", "dir", configDir)
	case configErr != nil:
		return configErr
	default:
		a.logger.Info("Loaded config", "path", config.Used())
	}
	a.logger.Info("Starting placemap", "version", Version)

	if err := a.setupDomain(ctx); err != nil {
		return err
	}
	a.seedMarkers()

	if a.monitor != nil {
		if err := a.monitor.Start(ctx); err != nil {
			a.logger.Warn("Status monitor not started", "error", err)
		}
	}

	return a.commandLoop(ctx, in)
}

// setupLogging builds the log file, Graylog and OpenTelemetry outputs.
func (a *app) setupLogging() error {
	level := viper.GetString("logLevel")
	opts := logging.Options{Level: level, ServiceName: AppName}

	logFile, err := logging.OpenLogFile(viper.GetString("logsDir"), AppName, SessionStartTime)
	if err != nil {
		// Keep going on the console.
		fmt.Fprintln(os.Stderr, "placemap: log file:", err)
	} else {
		a.logFile = logFile
		opts.File = io.MultiWriter(os.Stderr, logFile)
	}

	if gl := config.GetGraylogConfig(); gl.Enabled {
		w, err := logging.NewGelfWriter(gl.Address, AppName)
		if err != nil {
			fmt.Fprintln(os.Stderr, "placemap: graylog:", err)
		} else {
			opts.Gelf = w
		}
	}

	if otelCfg := config.GetOTelConfig(); otelCfg.Enabled {
		var logWriter io.Writer
		if a.logFile != nil {
			logWriter = a.logFile
		}
		a.otel, err = intOtel.New(otelCfg, logWriter)
		if err != nil {
			fmt.Fprintln(os.Stderr, "placemap: otel:", err)
		} else {
			opts.Provider = a.otel.LoggerProvider()
			opts.ServiceName = a.otel.ServiceName()
		}
	}

	opts.Context = func() []slog.Attr {
		if !a.ready.Load() {
			return nil
		}
		return []slog.Attr{
			slog.String("tracking", a.tracker.State().String()),
			slog.Int("markers", a.store.Count()),
		}
	}

	a.logManager.Setup(opts)
	a.logger = a.logManager.Logger()
	slog.SetDefault(a.logger)
	return nil
}

// setupDomain wires renderers, the store, the location feed, the tracker and
// the command handlers.
func (a *app) setupDomain(ctx context.Context) error {
	var err error

	renderers := []render.Renderer{render.NewLogRenderer(a.logger)}

	if j, err := a.openJournal(); err != nil {
		a.logger.Error("Journal disabled", "error", err)
	} else if j != nil {
		a.journal = j
		a.journal.Start()
		renderers = append(renderers, j)
	}

	rendererCfg := config.GetRendererConfig()
	mapCfg := config.GetMapConfig()
	if rendererCfg.Type == "websocket" {
		a.ws = render.NewWebsocket(render.WebsocketConfig{
			URL:    rendererCfg.URL,
			Secret: rendererCfg.Secret,
			MapInit: streaming.MapInitPayload{
				Center:      mapCfg.Center,
				Zoom:        mapCfg.Zoom,
				TileURL:     mapCfg.TileURL,
				Attribution: tileAttribution,
			},
			Snapshot: func(view func([]core.Marker)) {
				if a.store == nil {
					view(nil)
					return
				}
				a.store.View(view)
			},
			OnMessage: func(env streaming.Envelope) {
				if a.events != nil {
					handlers.Forward(a.events, a.logger)(env)
				}
			},
			Logger: a.logger,
		})
		renderers = append(renderers, a.ws)
	}

	a.store, err = markers.New(markers.Dependencies{
		Renderer: render.NewMulti(renderers...),
		Logger:   a.logger,
	})
	if err != nil {
		return fmt.Errorf("create marker store: %w", err)
	}

	locCfg := config.GetLocationConfig()
	var provider location.Provider
	switch locCfg.Provider {
	case "replay":
		provider = location.NewReplayProvider(locCfg.Positions, locCfg.Interval)
	case "manual":
		a.device = location.NewManualProvider()
		provider = a.device
	case "none", "":
	default:
		a.logger.Warn("Unknown location provider, location disabled", "provider", locCfg.Provider)
	}
	a.feed = location.NewFeed(location.Dependencies{
		Provider: provider,
		Logger:   a.logger,
		Buffer:   locCfg.Buffer,
	})

	var recorders []tracker.FixRecorder
	if a.journal != nil {
		recorders = append(recorders, a.journal)
	}
	if m := a.openInflux(ctx); m != nil {
		a.influx = m
		recorders = append(recorders, m)
	}

	a.tracker, err = tracker.New(tracker.Dependencies{
		Store:     a.store,
		Feed:      a.feed,
		Logger:    a.logger,
		Recorders: recorders,
		OnError:   a.locationError,
	})
	if err != nil {
		return fmt.Errorf("create tracker: %w", err)
	}

	a.monitor = monitor.NewService(monitor.Dependencies{
		Markers:           a.store,
		Tracker:           a.tracker,
		LocationAvailable: a.feed.Available,
		Logger:            a.logger,
		StatusFile:        filepath.Join(viper.GetString("logsDir"), "status.json"),
		Interval:          statusInterval,
	})

	a.events, err = dispatcher.New(logging.NewDispatcherLogger(
		logging.NewZerolog(dispatcherLogOutput(a.logFile), viper.GetString("logLevel")),
	))
	if err != nil {
		return fmt.Errorf("create dispatcher: %w", err)
	}

	a.handlers = handlers.NewService(ctx, handlers.Dependencies{
		Store:   a.store,
		Tracker: a.tracker,
		Monitor: a.monitor,
		Device:  a.device,
		Logger:  a.logger,

		OnLocationError: a.locationError,
	})
	a.handlers.Register(a.events)
	a.ready.Store(true)
	a.logger.Info("Commands registered", "commands", a.events.Commands())

	if a.ws != nil {
		a.connectFrontend(ctx)
	}
	return nil
}

func dispatcherLogOutput(logFile *os.File) io.Writer {
	if logFile != nil {
		return logFile
	}
	return os.Stderr
}

// openJournal opens the configured journal database. It returns nil when the
// journal is turned off.
func (a *app) openJournal() (*journal.Journal, error) {
	cfg := config.GetJournalConfig()

	var (
		db  *gorm.DB
		err error
	)
	switch cfg.Type {
	case "", "none":
		return nil, nil
	case "sqlite":
		db, err = journal.OpenSQLite(cfg.Path)
	case "postgres":
		db, err = journal.OpenPostgres(journal.PostgresConfig{
			Host:     cfg.DB.Host,
			Port:     cfg.DB.Port,
			Username: cfg.DB.Username,
			Password: cfg.DB.Password,
			Database: cfg.DB.Database,
		})
		if err != nil {
			a.logger.Error("Failed to connect to Postgres, falling back to in-memory SQLite", "error", err)
			db, err = journal.OpenSQLite("")
		}
	default:
		return nil, fmt.Errorf("%w: journal type %q", core.ErrInvalidArgument, cfg.Type)
	}
	if err != nil {
		return nil, err
	}

	j, err := journal.New(journal.Dependencies{DB: db, Logger: a.logger})
	if err != nil {
		return nil, err
	}
	a.logger.Info("Journal ready", "dialect", db.Dialector.Name())
	return j, nil
}

// openInflux connects fix telemetry. It returns nil when telemetry is off or
// cannot be used at all.
func (a *app) openInflux(ctx context.Context) *influx.Manager {
	cfg := config.GetInfluxConfig()
	if !cfg.Enabled {
		return nil
	}

	backupPath := ""
	if cfg.BackupDir != "" {
		if err := os.MkdirAll(cfg.BackupDir, 0o755); err != nil {
			a.logger.Warn("Influx backup dir unavailable", "error", err)
		} else {
			backupPath = filepath.Join(cfg.BackupDir,
				fmt.Sprintf("influx_backup_%s.gz", SessionStartTime.Format("20060102_150405")))
		}
	}

	m := influx.NewManager(
		logging.NewZerolog(dispatcherLogOutput(a.logFile), viper.GetString("logLevel")),
		influx.Config{
			Enabled:    true,
			Protocol:   cfg.Protocol,
			Host:       cfg.Host,
			Port:       cfg.Port,
			Token:      cfg.Token,
			Org:        cfg.Org,
			Bucket:     cfg.Bucket,
			BackupPath: backupPath,
		},
	)

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := m.Connect(connectCtx); err != nil {
		a.logger.Error("Fix telemetry disabled", "error", err)
		_ = m.Close()
		return nil
	}
	return m
}

// connectFrontend waits for the map frontend and connects the websocket
// renderer. Until it connects, updates are only logged.
func (a *app) connectFrontend(ctx context.Context) {
	client := api.New(viper.GetString("api.serverUrl"))

	waitCtx, cancel := context.WithTimeout(ctx, frontendWait)
	defer cancel()
	if err := client.WaitReady(waitCtx, time.Second); err != nil {
		a.logger.Warn("Map frontend is offline", "error", err)
	} else {
		a.logger.Info("Map frontend is online")
	}

	if err := a.ws.Init(); err != nil {
		a.logger.Error("Failed to connect to map frontend", "error", err)
		return
	}
	a.logger.Info("Connected to map frontend", "url", config.GetRendererConfig().URL)
}

func (a *app) seedMarkers() {
	for _, seed := range config.GetMapConfig().SeedMarkers {
		if _, err := a.store.Add(seed.Position(), seed.Draggable); err != nil {
			a.logger.Warn("Skipping seed marker", "position", seed.Position().String(), "error", err)
		}
	}
	a.logger.Info("Seed markers added", "count", a.store.Count())
}

// commandLoop reads one command per line from in and prints each result as
// a JSON line to the host output. It returns when in is exhausted or ctx is
// done.
func (a *app) commandLoop(ctx context.Context, in io.Reader) error {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			a.logger.Info("Shutting down")
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			command, args := util.ParseLine(line)
			if command == "" {
				continue
			}
			result, err := a.events.Dispatch(dispatcher.Event{
				Command: command,
				Args:    args,
				Source:  dispatcher.SourceStdin,
			})
			reply := map[string]any{"command": command}
			switch {
			case err != nil:
				reply["error"] = err.Error()
			case result != nil:
				reply["result"] = result
			default:
				reply["queued"] = true
			}
			if err := a.host.write(reply); err != nil {
				return fmt.Errorf("write reply: %w", err)
			}
		}
	}
}

// locationError surfaces a locate or tracking failure to the host on stdout
// and to the map frontend.
func (a *app) locationError(err error) {
	reason := core.LocationFailureReason(err)
	a.logger.Warn("Location failed", "reason", reason, "error", err)
	if a.ws != nil {
		a.ws.LocationError(err)
	}
	if werr := a.host.write(map[string]any{
		"event":  streaming.TypeLocationError,
		"reason": reason,
		"error":  err.Error(),
	}); werr != nil {
		a.logger.Warn("Failed to report location error to host", "error", werr)
	}
}

// hostOutput serializes JSON lines to the host. Command replies and
// asynchronous events share it.
type hostOutput struct {
	mu  sync.Mutex
	enc *json.Encoder
}

func newHostOutput(w io.Writer) *hostOutput {
	return &hostOutput{enc: json.NewEncoder(w)}
}

func (h *hostOutput) write(v any) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.enc.Encode(v)
}

func (a *app) close() {
	if a.tracker != nil {
		a.tracker.Stop()
	}
	if a.monitor != nil {
		a.monitor.Stop()
	}
	if a.events != nil {
		a.events.Close()
	}
	if a.ws != nil {
		if err := a.ws.Close(); err != nil {
			a.logger.Warn("Failed to close frontend connection", "error", err)
		}
	}
	if a.journal != nil {
		if err := a.journal.Close(); err != nil {
			a.logger.Error("Failed to close journal", "error", err)
		}
	}
	if a.influx != nil {
		if err := a.influx.Close(); err != nil {
			a.logger.Error("Failed to close influx", "error", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.logManager.Flush(shutdownCtx); err != nil {
		fmt.Fprintln(os.Stderr, "placemap: flush logs:", err)
	}
	if a.otel != nil {
		if err := a.otel.Shutdown(shutdownCtx); err != nil {
			fmt.Fprintln(os.Stderr, "placemap: otel shutdown:", err)
		}
	}
	if a.logFile != nil {
		_ = a.logFile.Close()
	}
}
