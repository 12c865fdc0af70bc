package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"github.com/poolhouse/poolhouse-controller/internal/api"
	"github.com/poolhouse/poolhouse-controller/internal/config"
	"github.com/poolhouse/poolhouse-controller/internal/controlloop"
	"github.com/poolhouse/poolhouse-controller/internal/history"
	"github.com/poolhouse/poolhouse-controller/internal/logging"
	"github.com/poolhouse/poolhouse-controller/internal/model"
	"github.com/poolhouse/poolhouse-controller/internal/nvram"
	"github.com/poolhouse/poolhouse-controller/internal/relay"
	"github.com/poolhouse/poolhouse-controller/internal/scheduler"
	"github.com/poolhouse/poolhouse-controller/internal/sensor"
	"github.com/poolhouse/poolhouse-controller/internal/settings"
	"github.com/poolhouse/poolhouse-controller/internal/telemetry"
	"github.com/poolhouse/poolhouse-controller/system/shutdown"
)

func main() {
	cfg := config.Load()
	logging.Init(cfg.LogLevel, cfg.LogFile)

	log.Info().
		Str("nvram", cfg.NVRAMFile).
		Str("history", cfg.HistoryFile).
		Str("unit", cfg.Unit).
		Msg("Starting poolhouse controller")

	// Relay board. Safe mode swaps in the fake backend so nothing on
	// the real board can be driven.
	var backend relay.Backend
	if cfg.SafeMode {
		log.Warn().Msg("SAFE MODE ENABLED — relay board is disabled system-wide")
		backend = relay.NewFakeBackend()
	} else {
		rpioBackend, err := relay.NewRPIO(cfg.RelayPins(), cfg.RelayBoardActiveHigh)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to open relay board")
		}
		defer rpioBackend.Close()
		backend = rpioBackend
	}
	gateway := relay.NewGateway(backend)

	// Clear anything a prior firmware revision left engaged.
	gateway.AllOff()

	nv, err := nvram.Open(cfg.NVRAMFile)
	if err != nil {
		shutdown.WithError(err, "Failed to open nvram store", gateway)
	}
	keeper := settings.NewKeeper(settings.NewStore(nv))

	db, err := history.Open(cfg.HistoryFile)
	if err != nil {
		shutdown.WithError(err, "Failed to open history database", gateway, nv)
	}

	telemetry.InitMetrics(cfg.DDAgentAddr, cfg.DDNamespace, cfg.DDTags)

	monitor := &telemetry.Monitor{DB: db}
	if cfg.MQTTBroker != "" {
		publisher, err := telemetry.NewMQTTPublisher(cfg.MQTTBroker, cfg.MQTTClientID)
		if err != nil {
			log.Warn().Err(err).Msg("MQTT broker unreachable, status publishing disabled")
		} else {
			defer publisher.Close()
			monitor.Publisher = publisher
		}
	}

	loops := buildLoops(cfg, keeper, gateway, monitor)

	var ambient *sensor.Reader
	if cfg.AmbientBus != "" {
		driver, err := sensor.NewAmbient(cfg.AmbientBus, cfg.AmbientAddr)
		if err != nil {
			log.Warn().Err(err).Msg("Ambient sensor unavailable")
		} else {
			defer driver.Close()
			ambient = sensor.NewReader(driver, model.Unit(cfg.Unit))
			ambient.RejectImplausible = true
		}
	}

	sched := scheduler.New(loops, gateway, ambient)

	apiLoops := make(map[string]api.Loop, len(loops))
	for _, l := range loops {
		apiLoops[string(l.ID())] = l
	}
	server := api.NewServer(apiLoops, gateway, db, sched)
	go func() {
		if err := server.Start(cfg.APIPort); err != nil {
			shutdown.WithError(err, "API server failed", gateway, nv, db)
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		s := <-sig
		log.Info().Str("signal", s.String()).Msg("Shutting down")
		cancel()
	}()

	sched.Run(ctx)
	shutdown.FailSafe(gateway, nv, db)
}

func buildLoops(cfg config.Config, keeper *settings.Keeper, gateway *relay.Gateway, monitor *telemetry.Monitor) []*controlloop.Loop {
	loops := make([]*controlloop.Loop, 0, len(cfg.Loops))
	for i, lc := range cfg.Loops {
		stored := keeper.Loop(i)
		reader := sensor.NewReader(sensor.NewOneWire(lc.SensorBus), model.Unit(cfg.Unit))
		loop := controlloop.New(
			controlloop.Config{
				ID:          model.LoopID(lc.ID),
				Index:       i,
				RelayID:     lc.Relay,
				Target:      stored.Target,
				Calibration: stored.Calibration,
				Resume:      stored.Resume,
			},
			controlloop.Deps{
				Sampler:  reader,
				Relays:   gateway,
				Settings: keeper,
				Observer: monitor,
			},
		)
		loops = append(loops, loop)
	}
	return loops
}
