package main

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/viper"

	"bp_monitor/internal/logger"
	"bp_monitor/internal/models"
	"bp_monitor/internal/service"
	"bp_monitor/internal/session"
)

const defaultEmulatorTick = 100 * time.Millisecond

func main() {
	// load config.yml first so the log level is honored
	if err := loadConfig(); err != nil {
		logger.Get(logger.InfoLevel).Fatalw("error reading config", "err", err)
	}
	log := logger.Get(viper.GetString("log.level"))

	// wire dependencies
	sess := session.New(sessionConfig(), log)
	defer sess.Close()

	var once sync.Once
	finished := make(chan struct{})
	sess.Subscribe(func(ev models.SessionEvent) {
		logSessionEvent(log, ev)
		switch ev.(type) {
		case models.MeasurementComplete, models.SessionError:
			once.Do(func() { close(finished) })
		}
	})

	services := service.NewService(sess, emulatorConfig(), log)

	// context for background goroutines
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sess.Start()
	go services.Emulator.Run(ctx, emulatorTick())

	waitForExit(finished, cancel, log)
}

func loadConfig() error {
	viper.AddConfigPath("configs") // configs/config.yml
	viper.SetConfigName("config")
	return viper.ReadInConfig()
}

func sessionConfig() session.Config {
	cfg := session.DefaultConfig()
	if ms := viper.GetInt("session.watchdog_timeout_ms"); ms > 0 {
		cfg.WatchdogTimeout = time.Duration(ms) * time.Millisecond
	}
	if step := viper.GetInt("session.max_pressure_step"); step > 0 {
		cfg.MaxPressureStep = uint16(step)
	}
	if step := viper.GetInt("session.min_pressure_step"); step > 0 {
		cfg.MinPressureStep = uint16(step)
	}
	if ms := viper.GetInt("session.progress_throttle_ms"); ms > 0 {
		cfg.ProgressThrottle = time.Duration(ms) * time.Millisecond
	}
	return cfg
}

func emulatorConfig() service.EmulatorConfig {
	return service.EmulatorConfig{
		TargetMmHg: uint16(viper.GetInt("emulator.target_pressure")),
	}
}

func emulatorTick() time.Duration {
	if ms := viper.GetInt("emulator.tick_ms"); ms > 0 {
		return time.Duration(ms) * time.Millisecond
	}
	return defaultEmulatorTick
}

func logSessionEvent(log *logger.Logger, ev models.SessionEvent) {
	switch e := ev.(type) {
	case models.PhaseChanged:
		log.Infow("phase changed", "phase", e.Phase)
	case models.Progress:
		log.Infow("pressure", "mmhg", e.PressureMmHg, "phase", e.Phase)
	case models.MeasurementComplete:
		log.Infow("result",
			"systolic", e.Result.SystolicMmHg,
			"diastolic", e.Result.DiastolicMmHg,
			"mean", e.Result.MeanMmHg,
			"pulse", e.Result.PulseRateBpm,
			"quality", e.Result.Quality,
		)
	case models.SessionError:
		log.Errorw("session error", "kind", e.Kind, "message", e.Message)
	}
}

// waitForExit returns when the measurement reaches a terminal event or a
// termination signal arrives.
func waitForExit(finished <-chan struct{}, cancel context.CancelFunc, log *logger.Logger) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-finished:
		// let trailing throttled progress drain before exit
		time.Sleep(200 * time.Millisecond)
	case <-quit:
		log.Infow("shutting down...")
	}
	cancel()
}
