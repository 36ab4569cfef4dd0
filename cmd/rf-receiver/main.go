// Command rf-receiver tracks the North/South/East/West/Common outputs of an
// RX480E-4 RF receiver on Raspberry Pi GPIO lines and reports their history on exit.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"
	"golang.org/x/sync/errgroup"

	"github.com/sweeney/rf-receiver/internal/config"
	"github.com/sweeney/rf-receiver/internal/gpio"
	"github.com/sweeney/rf-receiver/internal/logging"
	"github.com/sweeney/rf-receiver/internal/logic"
	"github.com/sweeney/rf-receiver/internal/metrics"
	"github.com/sweeney/rf-receiver/internal/mqtt"
	"github.com/sweeney/rf-receiver/internal/receiver"
	"github.com/sweeney/rf-receiver/internal/report"
	"github.com/sweeney/rf-receiver/internal/status"
	"github.com/sweeney/rf-receiver/internal/web"
)

func main() {
	cmd := &cli.Command{
		Name:   "rf-receiver",
		Usage:  "Track RX480E-4 channel levels on GPIO and report their history on exit",
		Action: run,
		Flags:  flags(),
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "config",
			Aliases:     []string{"c"},
			Usage:       "Path to config file",
			DefaultText: config.DefaultPath,
			Value:       config.DefaultPath,
			Sources:     cli.EnvVars("RF_RECEIVER_CONFIG"),
		},
		&cli.DurationFlag{
			Name:  "debounce",
			Usage: "Minimum time a line must hold a level",
		},
		&cli.DurationFlag{
			Name:  "sample",
			Usage: "History sampling interval",
		},
		&cli.StringFlag{
			Name:  "http",
			Usage: "HTTP status address (empty to disable)",
		},
		&cli.StringFlag{
			Name:    "broker",
			Usage:   "MQTT broker address (empty to disable)",
			Sources: cli.EnvVars("RF_RECEIVER_BROKER"),
		},
		&cli.StringFlag{
			Name:  "report",
			Usage: "Exit report format: text, csv or none",
		},
		&cli.StringFlag{
			Name:  "log-level",
			Usage: "Log level: debug, info, warn or error",
		},
		&cli.BoolFlag{
			Name:  "print-state",
			Usage: "Print current channel levels and exit",
		},
	}
}

// applyFlags overlays explicitly set flags onto cfg.
func applyFlags(cmd *cli.Command, cfg *config.Config) {
	if cmd.IsSet("debounce") {
		cfg.GPIO.Debounce = cmd.Duration("debounce")
	}
	if cmd.IsSet("sample") {
		cfg.Sampler.Interval = cmd.Duration("sample")
	}
	if cmd.IsSet("http") {
		cfg.HTTP.Addr = cmd.String("http")
	}
	if cmd.IsSet("broker") {
		cfg.MQTT.Broker = cmd.String("broker")
	}
	if cmd.IsSet("report") {
		cfg.Report.Format = cmd.String("report")
	}
	if cmd.IsSet("log-level") {
		cfg.Log.Level = cmd.String("log-level")
	}
}

func run(ctx context.Context, cmd *cli.Command) error {
	cfg, err := config.LoadFile(cmd.String("config"))
	if err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}
	applyFlags(cmd, cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := logging.New(cfg.Log.SlogLevel(), cfg.Log.Format, os.Stderr)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	lines, err := cfg.GPIO.ChannelLines()
	if err != nil {
		return err
	}
	tracker, err := logic.NewTrackerWithLines(lines)
	if err != nil {
		return err
	}

	source, err := gpio.NewRealSource(cfg.GPIO.Options(tracker.Offsets(), logger))
	if err != nil {
		return fmt.Errorf("init gpio: %w", err)
	}

	if cmd.Bool("print-state") {
		defer source.Close()
		return printState(os.Stdout, tracker, source)
	}

	a, err := newApp(cfg, logger, tracker, source)
	if err != nil {
		source.Close()
		return err
	}
	return a.serve(ctx)
}

// printState writes the current raw level of every wired channel.
func printState(w io.Writer, tracker *logic.Tracker, source gpio.Source) error {
	levels, err := source.Levels()
	if err != nil {
		return fmt.Errorf("read gpio: %w", err)
	}
	wired := tracker.Lines()
	for _, c := range logic.Channels {
		line, ok := wired[c]
		if !ok {
			continue
		}
		fmt.Fprintf(w, "%s: %s (line %d)\n", c, logic.LevelString(levels[line]), line)
	}
	return nil
}

// app holds the wired components of a running receiver.
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	runID   string
	now     func() time.Time
	tracker *logic.Tracker
	history *logic.History
	metrics *metrics.Metrics
	source  gpio.Source
	rx      *receiver.Receiver
	status  *status.Tracker
	report  report.Renderer
	output  io.Closer

	// publisher and mqttStatus are nil when MQTT is disabled.
	publisher  mqtt.Publisher
	mqttStatus mqtt.ConnectionStatus

	networkEnv string
}

func newApp(cfg *config.Config, logger *slog.Logger, tracker *logic.Tracker, source gpio.Source) (*app, error) {
	mode, err := receiver.ParseSampleMode(cfg.Sampler.Mode)
	if err != nil {
		return nil, err
	}

	out, err := report.Open(cfg.Report.Output)
	if err != nil {
		return nil, err
	}
	renderer, err := report.New(cfg.Report.Format, out, cfg.Report.Width)
	if err != nil {
		out.Close()
		return nil, err
	}

	a := &app{
		cfg:        cfg,
		logger:     logger,
		runID:      uuid.NewString(),
		now:        time.Now,
		tracker:    tracker,
		history:    logic.NewHistory(),
		metrics:    metrics.New(),
		source:     source,
		report:     renderer,
		output:     out,
		networkEnv: status.DefaultNetworkEnvFile,
	}
	a.rx = receiver.New(tracker, receiver.Options{
		History: a.history,
		Mode:    mode,
		Logger:  logger,
		Metrics: a.metrics,
	})
	a.status = status.NewTracker(a.now(), a.runID, statusConfig(cfg, tracker))

	if cfg.MQTT.Enabled() {
		pub, err := mqtt.NewRealPublisher(mqtt.Options{
			Broker:             cfg.MQTT.Broker,
			ClientID:           cfg.MQTT.ClientID,
			TopicPrefix:        cfg.MQTT.TopicPrefix,
			RunID:              a.runID,
			OnConnectionChange: a.status.SetMQTTConnected,
			Logger:             logger,
		})
		if err != nil {
			out.Close()
			return nil, fmt.Errorf("init mqtt: %w", err)
		}
		a.publisher = pub
		a.mqttStatus = pub
	}
	return a, nil
}

func statusConfig(cfg *config.Config, tracker *logic.Tracker) status.Config {
	sc := status.Config{
		Chip:       cfg.GPIO.Chip,
		GPIOMode:   cfg.GPIO.Mode,
		DebounceMs: cfg.GPIO.Debounce.Milliseconds(),
		SampleMode: cfg.Sampler.Mode,
		SampleMs:   cfg.Sampler.Interval.Milliseconds(),
		Broker:     cfg.MQTT.Broker,
		HTTPAddr:   cfg.HTTP.Addr,
		Lines:      tracker.Lines(),
	}
	if cfg.GPIO.Mode == config.GPIOModePoll {
		sc.PollMs = cfg.GPIO.Poll.Milliseconds()
	}
	if cfg.MQTT.Enabled() {
		sc.HeartbeatMs = cfg.MQTT.Heartbeat.Milliseconds()
	}
	return sc
}

// start seeds lines that are already HIGH, begins edge delivery and records
// the first sample.
func (a *app) start() error {
	// The kernel only reports changes; lines already asserted at startup
	// would otherwise read LOW until their next edge. Seed before Start so
	// live edges always land after the startup read. The poller reports a
	// debounced baseline of its own.
	if a.cfg.GPIO.Mode != config.GPIOModePoll {
		a.seedLevels()
	}

	if err := a.source.Start(a.rx.HandleEdge); err != nil {
		return fmt.Errorf("start gpio: %w", err)
	}

	a.tracker.SampleInto(a.history, a.now())
	a.refreshStatus()

	if net := status.ReadNetworkInfo(a.networkEnv); net != nil {
		a.status.SetNetwork(net)
	}
	a.publishSystem("STARTUP", "")
	return nil
}

func (a *app) seedLevels() {
	levels, err := a.source.Levels()
	if err != nil {
		a.logger.Warn("read initial levels", slog.String("error", err.Error()))
		return
	}
	for _, line := range a.tracker.Offsets() {
		if levels[line] {
			a.rx.HandleEdge(gpio.Edge{Line: line, Level: true, Time: a.now()})
		}
	}
}

func (a *app) serve(ctx context.Context) error {
	if err := a.start(); err != nil {
		a.source.Close()
		return err
	}

	g, gctx := errgroup.WithContext(ctx)

	var srv *web.Server
	if a.cfg.HTTP.Enabled() {
		srv = web.New(a.cfg.HTTP.Addr, web.Deps{
			Tracker: a.status,
			History: a.history,
			Metrics: a.metrics,
			Logger:  a.logger,
		})
		g.Go(func() error {
			a.logger.Info("http status server listening", slog.String("addr", a.cfg.HTTP.Addr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("http server: %w", err)
			}
			return nil
		})
	}

	a.logger.Info("started",
		slog.String("run_id", a.runID),
		slog.String("gpio_mode", a.cfg.GPIO.Mode),
		slog.Duration("debounce", a.cfg.GPIO.Debounce),
		slog.String("sample_mode", a.cfg.Sampler.Mode),
		slog.Duration("sample", a.cfg.Sampler.Interval),
		slog.String("broker", a.cfg.MQTT.Broker))

	ticker := time.NewTicker(a.cfg.Sampler.Interval)
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	g.Go(func() error {
		defer func() {
			if srv != nil {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				srv.Shutdown(shutdownCtx)
			}
			if a.publisher != nil {
				a.publisher.Close()
			}
		}()
		return a.runLoop(gctx, ticker.C, sigCh)
	})

	return g.Wait()
}

// runLoop samples on every tick and forwards transitions until a signal
// arrives or ctx is cancelled, then shuts down.
func (a *app) runLoop(ctx context.Context, tick <-chan time.Time, sig <-chan os.Signal) error {
	for {
		select {
		case s := <-sig:
			a.logger.Info("received signal, shutting down", slog.String("signal", s.String()))
			return a.shutdown(signalName(s))

		case <-ctx.Done():
			a.logger.Info("context cancelled, shutting down")
			return a.shutdown("CANCELLED")

		case <-tick:
			a.sample(a.now())

		case t := <-a.rx.Transitions():
			a.forward(t)
		}
	}
}

func (a *app) sample(t time.Time) {
	if a.rx.Mode() == receiver.SampleTick {
		a.tracker.SampleInto(a.history, t)
	}
	a.refreshStatus()

	if a.publisher == nil || !a.status.HeartbeatDue(t, a.cfg.MQTT.Heartbeat) {
		return
	}
	if net := status.ReadNetworkInfo(a.networkEnv); net != nil {
		a.status.SetNetwork(net)
	}
	snap := a.status.Snapshot()
	a.logger.Info("heartbeat",
		slog.Duration("uptime", snap.Uptime().Truncate(time.Second)),
		slog.Int("transitions", snap.Transitions()),
		slog.Int("samples", snap.Samples))
	a.publishSystem("HEARTBEAT", "")
}

func (a *app) forward(t receiver.Transition) {
	a.status.MarkChange(t.Time)
	a.refreshStatus()
	if a.publisher == nil {
		return
	}
	if err := a.publisher.Publish(t); err != nil {
		a.logger.Warn("publish error", slog.String("error", err.Error()))
	}
}

func (a *app) refreshStatus() {
	n := a.history.Len()
	a.metrics.SetHistorySamples(n)
	a.status.Update(a.tracker.Snapshot(), a.tracker.Counts(), n)
	if a.mqttStatus != nil {
		a.status.SetMQTTConnected(a.mqttStatus.IsConnected())
	}
}

// shutdown stops edge processing, releases the lines, renders the report
// exactly once and announces the shutdown.
func (a *app) shutdown(reason string) error {
	a.logger.Info("Exiting...", slog.String("reason", reason))

	a.rx.Stop()
	if err := a.source.Close(); err != nil {
		a.logger.Warn("release gpio lines", slog.String("error", err.Error()))
	}

	// Forward transitions applied before Stop.
	for drained := false; !drained; {
		select {
		case t := <-a.rx.Transitions():
			a.forward(t)
		default:
			drained = true
		}
	}

	if a.rx.Mode() == receiver.SampleTick {
		a.tracker.SampleInto(a.history, a.now())
	}
	a.refreshStatus()

	if err := a.report.Render(a.history); err != nil {
		a.logger.Error("render report", slog.String("error", err.Error()))
	}
	if a.output != nil {
		if err := a.output.Close(); err != nil {
			a.logger.Error("close report", slog.String("error", err.Error()))
		}
	}

	a.publishSystem("SHUTDOWN", reason)
	return nil
}

func (a *app) publishSystem(event, reason string) {
	if a.publisher == nil {
		return
	}
	snap := a.status.Snapshot()
	ev := mqtt.SystemEvent{
		Timestamp:  snap.Now,
		Event:      event,
		Reason:     reason,
		Retained:   event != "HEARTBEAT",
		RawPayload: status.FormatStatusEvent(snap, event, reason),
	}
	if err := a.publisher.PublishSystem(ev); err != nil {
		a.logger.Warn("failed to publish system event", slog.String("event", event), slog.String("error", err.Error()))
		return
	}
	a.logger.Debug("published system event", slog.String("event", event))
}

func signalName(s os.Signal) string {
	switch s {
	case syscall.SIGINT:
		return "SIGINT"
	case syscall.SIGTERM:
		return "SIGTERM"
	}
	return "UNKNOWN"
}
