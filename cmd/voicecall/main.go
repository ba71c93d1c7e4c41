// Команда voicecall проводит двусторонний голосовой звонок G.711 поверх
// RTP между локальным аудио устройством и удаленным адресом.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/arzzra/voice_engine/pkg/config"
	"github.com/arzzra/voice_engine/pkg/driver"
	"github.com/arzzra/voice_engine/pkg/logging"
)

const defaultConfigPath = "configs/voicecall.yaml"

func main() {
	configPath := flag.String("config", defaultConfigPath, "путь к файлу конфигурации")
	driverName := flag.String("driver", "", fmt.Sprintf("аудио драйвер %v", driver.Names()))
	listDevices := flag.Bool("list-devices", false, "вывести список устройств и выйти")
	printOrder := flag.Bool("print-order", false, "вывести порядок обработки цепочки")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ошибка загрузки конфигурации: %v\n", err)
		os.Exit(1)
	}
	if *driverName != "" {
		cfg.Audio.Driver = *driverName
	}

	logger, closeLog, err := logging.Open(cfg.Logging.Config())
	if err != nil {
		fmt.Fprintf(os.Stderr, "ошибка настройки логов: %v\n", err)
		os.Exit(1)
	}
	defer closeLog()

	if err := run(cfg, logger, *listDevices, *printOrder); err != nil {
		logger.Error("звонок завершился с ошибкой", slog.String("error", err.Error()))
		closeLog()
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger, listDevices, printOrder bool) error {
	name := cfg.Audio.Driver
	if name == "" {
		name = driver.DefaultName()
	}
	drv, err := driver.New(name, driver.Options{Logger: logger})
	if err != nil {
		return err
	}
	defer func() {
		if err := driver.Release(drv); err != nil {
			logger.Warn("ошибка освобождения драйвера", slog.String("error", err.Error()))
		}
	}()

	if listDevices {
		return writeDevices(os.Stdout, drv)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	c, err := newCall(cfg, drv, logger, reg)
	if err != nil {
		return err
	}
	if printOrder {
		if err := c.writeOrder(os.Stdout); err != nil {
			return err
		}
	}

	var server *http.Server
	if cfg.Metrics.Enabled {
		server = serveMetrics(cfg.Metrics.Address, reg, logger)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := c.Start(); err != nil {
		return err
	}
	<-ctx.Done()
	logger.Info("получен сигнал завершения")

	callErr := c.Stop()
	if server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Warn("ошибка остановки сервера метрик", slog.String("error", err.Error()))
		}
	}
	return callErr
}

func serveMetrics(address string, reg *prometheus.Registry, logger *slog.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	server := &http.Server{
		Addr:              address,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("сервер метрик остановлен", slog.String("error", err.Error()))
		}
	}()
	logger.Info("метрики доступны", slog.String("address", address))
	return server
}
