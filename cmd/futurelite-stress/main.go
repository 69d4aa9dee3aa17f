// Command futurelite-stress drives the futurelite primitives with many
// concurrent task chains on a chosen executor and checks their
// invariants.
//
// Flags default to the FUTURELITE_* environment variables, which may
// also come from a .env file in the working directory.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	_ "github.com/joho/godotenv/autoload"
	"github.com/phsym/zeroslog"
	"github.com/rs/zerolog"

	"github.com/webriots/futurelite"
	"github.com/webriots/futurelite/executor"
)

var log zerolog.Logger

func init() {
	output := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Stamp}
	log = zerolog.New(output).With().Timestamp().Logger()
	slog.SetDefault(slog.New(
		zeroslog.NewHandler(log, &zeroslog.HandlerOptions{Level: slog.LevelInfo}),
	))
}

type config struct {
	executor   string
	tasks      int
	iterations int
	permits    int
	ticks      time.Duration
}

func envString(key, def string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func parseFlags() config {
	var cfg config
	flag.StringVar(&cfg.executor, "executor", envString("FUTURELITE_EXECUTOR", "pool"), "executor backend")
	flag.IntVar(&cfg.tasks, "tasks", envInt("FUTURELITE_TASKS", 64), "concurrent task chains")
	flag.IntVar(&cfg.iterations, "iterations", envInt("FUTURELITE_ITERATIONS", 100), "iterations per task chain")
	flag.IntVar(&cfg.permits, "permits", envInt("FUTURELITE_PERMITS", 4), "semaphore permits")
	flag.DurationVar(&cfg.ticks, "ticks", 200*time.Millisecond, "how long repeated tasks run")
	flag.Parse()
	return cfg
}

func main() {
	reg := executor.NewRegistry()
	executor.RegisterBuiltins(reg)
	os.Exit(run(parseFlags(), reg))
}

// run executes every stage and returns the process exit code. The
// executor is closed before run returns.
func run(cfg config, reg *executor.Registry) int {
	runID := uuid.New()
	logger := slog.Default().With(slog.String("run", runID.String()), slog.String("executor", cfg.executor))

	ex, err := reg.New(cfg.executor)
	if err != nil {
		logger.Error("failed to create executor", slog.String("error", err.Error()), slog.Any("known", reg.Names()))
		return 2
	}
	if c, ok := ex.(io.Closer); ok {
		defer c.Close()
	}

	ctx := context.Background()
	stages := []struct {
		name string
		run  func(context.Context, futurelite.Executor, config) error
	}{
		{"mutex", stressMutex},
		{"barrier", stressBarrier},
		{"semaphore", stressSemaphore},
		{"generator", stressGenerator},
		{"taskmanager", stressTaskManager},
	}

	failed := false
	for _, stage := range stages {
		start := time.Now()
		if err := stage.run(ctx, ex, cfg); err != nil {
			logger.Error("stage failed", slog.String("stage", stage.name), slog.String("error", err.Error()))
			failed = true
			continue
		}
		logger.Info("stage passed", slog.String("stage", stage.name), slog.Duration("elapsed", time.Since(start)))
	}

	if failed {
		return 1
	}
	return 0
}

// hop suspends the task until a foreign goroutine wakes it, which
// forces a trip through the affinity engine.
func hop(task *futurelite.Task) error {
	_, err := futurelite.AwaitCallback(task, func(cb func(struct{}, error)) {
		go cb(struct{}{}, nil)
	})
	return err
}

func stressMutex(ctx context.Context, ex futurelite.Executor, cfg config) error {
	var (
		mux      futurelite.Mutex
		critical atomic.Int32
		overlaps atomic.Int32
		total    int
	)

	g := futurelite.NewGroup(ctx, ex)
	for range cfg.tasks {
		g.Go(func(_ context.Context, task *futurelite.Task) error {
			for range cfg.iterations {
				mux.Lock(task)
				if critical.Add(1) != 1 {
					overlaps.Add(1)
				}
				total++
				err := hop(task)
				critical.Add(-1)
				mux.Unlock()
				if err != nil {
					return err
				}
			}
			return nil
		})
	}
	if err := g.Wait(futurelite.Blocking(ctx)); err != nil {
		return err
	}
	if n := overlaps.Load(); n != 0 {
		return fmt.Errorf("%d overlapping critical sections", n)
	}
	if want := cfg.tasks * cfg.iterations; total != want {
		return fmt.Errorf("counted %d, want %d", total, want)
	}
	return nil
}

func stressBarrier(ctx context.Context, ex futurelite.Executor, cfg config) error {
	b := futurelite.NewBarrier(cfg.tasks)

	var arrived, early atomic.Int32
	g := futurelite.NewGroup(ctx, ex)
	for range cfg.tasks {
		g.Go(func(_ context.Context, task *futurelite.Task) error {
			if err := hop(task); err != nil {
				return err
			}
			arrived.Add(1)
			b.Wait(task)
			if arrived.Load() != int32(cfg.tasks) {
				early.Add(1)
			}
			return nil
		})
	}

	if err := g.Wait(futurelite.Blocking(ctx)); err != nil {
		return err
	}
	if n := early.Load(); n != 0 {
		return fmt.Errorf("%d participants released early", n)
	}
	return nil
}

func stressSemaphore(ctx context.Context, ex futurelite.Executor, cfg config) error {
	sema := futurelite.NewSemaphore(int64(cfg.permits))

	var inside, peak atomic.Int32
	g := futurelite.NewGroup(ctx, ex)
	for range cfg.tasks {
		g.Go(func(_ context.Context, task *futurelite.Task) error {
			sema.Wait(task)
			defer sema.Signal(task)

			n := inside.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			err := hop(task)
			inside.Add(-1)
			return err
		})
	}

	if err := g.Wait(futurelite.Blocking(ctx)); err != nil {
		return err
	}
	if p := peak.Load(); p > int32(cfg.permits) {
		return fmt.Errorf("%d holders, only %d permits", p, cfg.permits)
	}
	return nil
}

func stressGenerator(ctx context.Context, ex futurelite.Executor, cfg config) error {
	var live atomic.Int32

	gen := futurelite.NewGenerator(ctx,
		func(_ context.Context, task *futurelite.Task, yield func(int)) error {
			for i := range cfg.iterations {
				if err := hop(task); err != nil {
					return err
				}
				live.Add(1)
				yield(i)
			}
			return nil
		},
		futurelite.WithRelease(func(int) { live.Add(-1) }),
	)
	defer gen.Close()

	sum, err := futurelite.NewLazy(func(_ context.Context, task *futurelite.Task) (int, error) {
		sum := 0
		for v, err := range gen.All(task) {
			if err != nil {
				return 0, err
			}
			sum += v
		}
		return sum, nil
	}).Via(ex).Get(ctx)
	if err != nil {
		return err
	}

	if want := cfg.iterations * (cfg.iterations - 1) / 2; sum != want {
		return fmt.Errorf("sum %d, want %d", sum, want)
	}
	if n := live.Load(); n != 0 {
		return fmt.Errorf("%d elements never released", n)
	}
	return nil
}

func stressTaskManager(ctx context.Context, ex futurelite.Executor, cfg config) error {
	m := futurelite.NewTaskManager(ex)
	s := futurelite.Blocking(ctx)

	var ticks atomic.Int64
	for i := range cfg.permits {
		name := "tick-" + strconv.Itoa(i)
		if !m.AddRepeatedTask(s, name, futurelite.Fn(func(context.Context) { ticks.Add(1) }), time.Millisecond) {
			return fmt.Errorf("could not add %s", name)
		}
	}
	if m.AddRepeatedTask(s, "tick-0", futurelite.Fn(func(context.Context) {}), time.Millisecond) {
		return errors.New("duplicate name accepted")
	}

	futurelite.SyncAwait(futurelite.After(nil, cfg.ticks))
	m.DeleteAll(s, true)

	deadline := time.Now().Add(time.Second)
	for m.ActiveRepeatedTasks() != 0 {
		if time.Now().After(deadline) {
			return fmt.Errorf("%d loops still active", m.ActiveRepeatedTasks())
		}
		futurelite.SyncAwait(futurelite.After(nil, time.Millisecond))
	}
	if ticks.Load() == 0 {
		return errors.New("no repeated task ran")
	}
	return nil
}
