package telemetry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"

	"github.com/manash/splendid/internal/config"
)

const serviceName = "splendid"

// Version is reported as the service version on exported telemetry.
var Version = "dev"

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

func rotating(path string) (*lumberjack.Logger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	return &lumberjack.Logger{
		Filename:   path,
		MaxSize:    10, // MB
		MaxBackups: 3,
		MaxAge:     28,
		Compress:   true,
	}, nil
}

// NewLogger builds the process logger. With a log file configured records
// go to a rotated JSON file, otherwise to w as text. The returned closer
// releases the file.
func NewLogger(cfg config.LogConfig, w io.Writer) (*log.Logger, io.Closer, error) {
	level, err := log.ParseLevel(cfg.Level)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: log.level: %v", config.ErrInvalidConfig, err)
	}

	if cfg.File == "" {
		logger := log.NewWithOptions(w, log.Options{Level: level, Prefix: serviceName})
		return logger, nopCloser{}, nil
	}

	file, err := rotating(cfg.File)
	if err != nil {
		return nil, nil, err
	}
	logger := log.NewWithOptions(file, log.Options{
		Level:           level,
		ReportTimestamp: true,
		Formatter:       log.JSONFormatter,
	})
	return logger, file, nil
}

// Shutdown flushes and stops whatever Setup started.
type Shutdown func(context.Context) error

// Setup installs global trace and meter providers exporting to rotated
// files. When telemetry is disabled the otel no-op providers stay in place.
func Setup(ctx context.Context, cfg config.TelemetryConfig, logger *log.Logger) (Shutdown, error) {
	if !cfg.Enabled {
		return func(context.Context) error { return nil }, nil
	}
	if cfg.TraceFile == "" || cfg.MetricFile == "" {
		return nil, fmt.Errorf("%w: telemetry requires trace_file and metric_file", config.ErrInvalidConfig)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(serviceName),
			semconv.ServiceVersion(Version),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	traceFile, err := rotating(cfg.TraceFile)
	if err != nil {
		return nil, err
	}
	traceExporter, err := stdouttrace.New(stdouttrace.WithWriter(traceFile))
	if err != nil {
		return nil, fmt.Errorf("failed to create trace exporter: %w", err)
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(traceExporter),
		sdktrace.WithResource(res),
	)

	metricFile, err := rotating(cfg.MetricFile)
	if err != nil {
		return nil, err
	}
	metricExporter, err := stdoutmetric.New(stdoutmetric.WithWriter(metricFile))
	if err != nil {
		return nil, fmt.Errorf("failed to create metric exporter: %w", err)
	}
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExporter,
			sdkmetric.WithInterval(10*time.Second))),
		sdkmetric.WithResource(res),
	)

	otel.SetTracerProvider(tp)
	otel.SetMeterProvider(mp)
	if logger != nil {
		logger.Debug("telemetry enabled", "traces", cfg.TraceFile, "metrics", cfg.MetricFile)
	}

	return func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		return errors.Join(
			tp.Shutdown(ctx),
			mp.Shutdown(ctx),
			traceFile.Close(),
			metricFile.Close(),
		)
	}, nil
}
