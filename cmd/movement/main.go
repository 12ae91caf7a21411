// Command movement drives the movement example from the keyboard: w, a, s and
// d move, j dashes and q quits. Keys are read a line at a time.
package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/stateforward/go-fsm"
	"github.com/stateforward/go-fsm/examples/movement"
	"github.com/stateforward/go-fsm/pkg/plantuml"
)

func newLogger(level string) (*zap.Logger, error) {
	atomic, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, err
	}
	config := zap.NewDevelopmentConfig()
	config.Level = atomic
	config.OutputPaths = []string{"stderr"}
	return config.Build()
}

func run(ctx context.Context, in io.Reader, w io.Writer, cfg movement.Config, logger *zap.Logger) error {
	sugar := logger.Sugar()
	// states write from timer goroutines too
	out := zapcore.Lock(zapcore.AddSync(w))
	m, err := movement.New(ctx, out, cfg,
		fsm.WithLogger(sugar),
		fsm.WithErrorHandler(func(timer string, err error) {
			sugar.Errorw("timer failed", "timer", timer, "error", err)
		}),
	)
	if err != nil {
		return err
	}
	if _, err := m.Spin(movement.StateStill); err != nil {
		return err
	}
	fmt.Fprintln(out, "Press WASD keys (Press 'q' to quit)")

	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		for _, key := range scanner.Text() {
			lines, ok := movement.Handle(m, key)
			if !ok {
				return quit(m, out, cfg)
			}
			for _, line := range lines {
				fmt.Fprintln(out, line)
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	return quit(m, out, cfg)
}

func quit(m *fsm.Machine, out io.Writer, cfg movement.Config) error {
	if cfg.Diagram {
		if err := plantuml.Generate(out, m); err != nil {
			return err
		}
	}
	return m.Stop()
}

func main() {
	cfg, err := movement.LoadConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to load config:", err)
		os.Exit(1)
	}
	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to create logger:", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := run(context.Background(), os.Stdin, os.Stdout, cfg, logger); err != nil {
		logger.Error("movement failed", zap.Error(err))
		os.Exit(1)
	}
}
