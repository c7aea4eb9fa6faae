// Riptide demo - spawns host tasks against an embedded engine and drives
// them to completion, optionally recording a scheduler trace.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"
	"golang.org/x/sync/errgroup"

	"github.com/chazu/riptide/config"
	"github.com/chazu/riptide/engine"
	"github.com/chazu/riptide/future"
	"github.com/chazu/riptide/runtime"
	"github.com/chazu/riptide/trace"
)

func main() {
	verbose := flag.Bool("v", false, "Verbose output")
	confDir := flag.String("config", ".", "Directory containing riptide.toml")
	traceOut := flag.String("trace", "", "Write a CBOR scheduler trace to this file (overrides riptide.toml)")
	timeout := flag.Duration("timeout", 5*time.Second, "Overall demo timeout")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: riptide-demo [options]\n\n")
		fmt.Fprintf(os.Stderr, "Spawns timer, promise and channel tasks on a riptide runtime and drives them.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  riptide-demo -v                    # Chatty run\n")
		fmt.Fprintf(os.Stderr, "  riptide-demo -trace run.cbor       # Record a trace, decode with riptide-trace\n")
	}
	flag.Parse()

	cfg, err := config.Load(*confDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	verbosity := cfg.Log.Verbosity
	if *verbose {
		verbosity = 2
	}
	commonlog.Configure(verbosity, nil)

	if err := run(cfg, *traceOut, *timeout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, traceOut string, timeout time.Duration) error {
	rt := runtime.New()
	defer rt.Close()

	var rec *trace.Recorder
	tracePath := traceOut
	if tracePath == "" && cfg.Trace.Enabled {
		tracePath = cfg.Trace.Output
	}
	if tracePath != "" {
		rec = trace.NewRecorder(cfg.Trace.Capacity)
		rt.SetRecorder(rec)
	}

	if cfg.Sweep.Enabled {
		interval, err := cfg.Sweep.IntervalDuration(engine.DefaultSweepInterval)
		if err != nil {
			return err
		}
		var sweeper *engine.RegistrySweeper
		if err := rt.Do(func(e *engine.Engine) error {
			sweeper = engine.NewRegistrySweeper(e, interval)
			return nil
		}); err != nil {
			return err
		}
		sweeper.Start()
		defer sweeper.Stop()
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	driverCtx, stopDriver := context.WithCancel(ctx)
	defer stopDriver()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := future.Block(driverCtx, rt.Drive())
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	// Timer task.
	sleep := future.Sleep(10 * time.Millisecond)
	timerHandle, err := rt.Spawn(future.Func(func(cx *future.Context) future.Poll {
		if sleep.Poll(cx) == future.Pending {
			return future.Pending
		}
		fmt.Println("timer task fired")
		return future.Ready
	}))
	if err != nil {
		return err
	}
	timerHandle.Detach()

	// Promise task: resolved by the host from another goroutine.
	var pr *engine.Promise
	var resolve func(any)
	if err := rt.Do(func(e *engine.Engine) error {
		pr, resolve, _ = e.NewPromise()
		return nil
	}); err != nil {
		return err
	}
	await := pr.Await()
	promiseHandle, err := rt.Spawn(future.Func(func(cx *future.Context) future.Poll {
		if await.Poll(cx) == future.Pending {
			return future.Pending
		}
		fmt.Printf("promise settled: %v\n", pr.Result())
		return future.Ready
	}))
	if err != nil {
		return err
	}
	promiseHandle.Detach()

	g.Go(func() error {
		select {
		case <-time.After(20 * time.Millisecond):
		case <-ctx.Done():
			return ctx.Err()
		}
		return rt.Do(func(e *engine.Engine) error {
			resolve("hello from the host")
			return nil
		})
	})

	// Channel task.
	ch := make(chan int, 1)
	recv := future.RecvFrom(ch)
	chanHandle, err := rt.Spawn(future.Func(func(cx *future.Context) future.Poll {
		if recv.Poll(cx) == future.Pending {
			return future.Pending
		}
		fmt.Printf("channel task received %d\n", recv.Value)
		return future.Ready
	}))
	if err != nil {
		return err
	}
	chanHandle.Detach()
	g.Go(func() error {
		ch <- 42
		return nil
	})

	if err := future.Block(ctx, rt.Idle()); err != nil {
		return fmt.Errorf("waiting for idle: %w", err)
	}
	stopDriver()
	if err := g.Wait(); err != nil {
		return err
	}

	rt.Close()
	if rec != nil {
		if err := rec.WriteFile(tracePath); err != nil {
			return err
		}
		fmt.Printf("wrote %d trace events to %s\n", rec.Len(), tracePath)
	}
	return nil
}
