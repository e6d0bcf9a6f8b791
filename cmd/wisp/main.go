// Wisp - a desktop companion that keeps you company while you work.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/normanking/wisp/internal/activity"
	"github.com/normanking/wisp/internal/brain"
	"github.com/normanking/wisp/internal/config"
	"github.com/normanking/wisp/internal/emotion"
	"github.com/normanking/wisp/internal/logging"
	"github.com/normanking/wisp/internal/memory"
	"github.com/normanking/wisp/internal/pipeline"
	"github.com/normanking/wisp/internal/prompt"
	"github.com/normanking/wisp/internal/reaction"
	"github.com/normanking/wisp/internal/scheduler"
)

var (
	version   = "1.0.0"
	buildTime = "unknown"
)

func main() {
	showVersion := flag.Bool("version", false, "Show version")
	metricsAddr := flag.String("metrics", "", "Serve Prometheus metrics on this address (e.g. :9090)")
	simulate := flag.Bool("simulate", false, "Feed synthetic activity samples (for trying Wisp without a sampler)")
	flag.Parse()

	if *showVersion {
		fmt.Printf("Wisp v%s (built %s)\n", version, buildTime)
		os.Exit(0)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(&logging.Config{
		LogDir:     defaultLogDir(),
		Level:      logging.LogLevel(cfg.Logging.Level),
		MaxHistory: 1000,
		Console:    cfg.Logging.Console,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logging: %v\n", err)
		os.Exit(1)
	}
	defer logger.Close()
	logger.Info("main", "Starting Wisp", map[string]interface{}{"version": version})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info("main", "Shutting down...", nil)
		cancel()
	}()

	if err := run(ctx, cfg, logger, *metricsAddr, *simulate); err != nil {
		logger.Error("main", "Fatal error", map[string]interface{}{"error": err.Error()})
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *logging.Logger, metricsAddr string, simulate bool) error {
	dir, err := config.Dir()
	if err != nil {
		return fmt.Errorf("failed to resolve config dir: %w", err)
	}

	store, err := memory.NewSQLiteStore(cfg.Memory.DBPath)
	if err != nil {
		return fmt.Errorf("failed to open memory store: %w", err)
	}
	defer store.Close()

	templates, err := reaction.LoadTemplateStore(filepath.Join(dir, "templates.yaml"))
	if err != nil {
		// Seeded defaults are still usable.
		logger.Warn("main", "Template store degraded", map[string]interface{}{"error": err.Error()})
	}

	hint := prompt.LoadPersonalityHint(filepath.Join(dir, "personality.yaml"))

	client := brain.NewClient(brain.Config{
		BaseURL: cfg.Model.BaseURL,
		Model:   cfg.Model.Name,
		Options: brain.Options{
			NumPredict:  cfg.Model.NumPredict,
			NumCtx:      cfg.Model.NumCtx,
			Temperature: cfg.Model.Temperature,
			TopP:        cfg.Model.TopP,
			TopK:        cfg.Model.TopK,
		},
		HistoryTurns:  cfg.Memory.HistoryTurns,
		StreamTimeout: cfg.Model.Timeout,
		Cache:         brain.NewCache(cfg.Memory.CacheEntries, cfg.Memory.CacheTTL),
	})

	if err := client.Ping(ctx); err != nil {
		logger.Warn("main", "Model backend unreachable, continuing anyway", map[string]interface{}{"error": err.Error()})
	}

	machineCfg := emotion.DefaultMachineConfig()
	if cfg.Activity.SampleInterval > 0 {
		machineCfg.SampleInterval = cfg.Activity.SampleInterval
	}
	machine := emotion.NewMachine(machineCfg)
	cooldown := emotion.NewCooldown(nil)
	window := activity.NewWindow(cfg.Activity.WindowSize)

	orch := pipeline.New(pipeline.Config{
		Window:          window,
		Machine:         machine,
		Cooldown:        cooldown,
		Templates:       templates,
		Client:          client,
		Logger:          logger,
		PersonalityHint: hint,
		Emit: func(line string, mood emotion.Tag) {
			fmt.Printf("\n[wisp · %s] %s\n> ", mood, line)
		},
		Status: func(status string) {
			fmt.Printf("\n[wisp] %s\n> ", status)
		},
	})
	live := &atomic.Pointer[config.Config]{}
	live.Store(cfg)

	orch.AddSink(pipeline.SinkFunc{SinkName: "log", Fn: func(t pipeline.Tick) error {
		if live.Load().Activity.LoggingEnabled {
			logger.Debug("activity", "Tick", map[string]interface{}{
				"summary": t.Summary,
				"mood":    string(t.Mood),
			})
		}
		return nil
	}})

	chat := pipeline.NewChatService(pipeline.ChatConfig{
		Client:          client,
		Memory:          store,
		Machine:         machine,
		Cooldown:        cooldown,
		Logger:          logger,
		PersonalityHint: hint,
		MaxTurns:        cfg.Memory.MaxTurns,
		CompressAbove:   cfg.Memory.CompressAbove,
		KeepRecent:      cfg.Memory.KeepRecent,
	})

	sched, err := scheduler.New(store, orch, logger)
	if err != nil {
		return fmt.Errorf("failed to create scheduler: %w", err)
	}
	sched.Start()
	defer sched.Stop()

	config.Watch(func(fresh *config.Config) {
		live.Store(fresh)
		client.SetModel(fresh.Model.Name, brain.Options{
			NumPredict:  fresh.Model.NumPredict,
			NumCtx:      fresh.Model.NumCtx,
			Temperature: fresh.Model.Temperature,
			TopP:        fresh.Model.TopP,
			TopK:        fresh.Model.TopK,
		})
		logger.Info("main", "Configuration reloaded", map[string]interface{}{
			"model": fresh.Model.Name,
		})
	})

	if metricsAddr != "" {
		go serveMetrics(metricsAddr, logger)
	}

	if cfg.Proactive.Enabled {
		go orch.Run(ctx)
	}
	if simulate {
		go simulateSamples(ctx, orch, live)
	}

	return chatLoop(ctx, chat)
}

// chatLoop is a minimal line-based front end; the real presentation
// layer lives elsewhere and talks to the same ChatService.
func chatLoop(ctx context.Context, chat *pipeline.ChatService) error {
	fmt.Print("Wisp is here. Say something (Ctrl-C to quit).\n> ")

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return nil
		}

		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			fmt.Print("> ")
			continue
		}

		reply, mood, err := chat.Send(ctx, text, func(partial string) {
			fmt.Printf("\r[wisp] %s", partial)
		})
		if err != nil {
			fmt.Printf("\n[wisp] (timed out — try again in a moment)\n> ")
			continue
		}
		fmt.Printf("\r[wisp · %s] %s\n> ", mood, reply)
	}
	return scanner.Err()
}

func simulateSamples(ctx context.Context, orch *pipeline.Orchestrator, live *atomic.Pointer[config.Config]) {
	interval := sampleInterval(live)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			orch.Submit(activity.Sample{
				Timestamp:   now,
				Process:     "code",
				WindowTitle: "main.go — wisp",
			})
			if fresh := sampleInterval(live); fresh != interval {
				interval = fresh
				ticker.Reset(interval)
			}
		}
	}
}

func sampleInterval(live *atomic.Pointer[config.Config]) time.Duration {
	if d := live.Load().Activity.SampleInterval; d > 0 {
		return d
	}
	return 5 * time.Minute
}

func serveMetrics(addr string, logger *logging.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Warn("main", "Metrics server stopped", map[string]interface{}{"error": err.Error()})
	}
}

func defaultLogDir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".wisp", "logs")
}
