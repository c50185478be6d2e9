package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/zeusync/entisync/internal/core/ecs"
	"github.com/zeusync/entisync/internal/core/observability/log"
	"github.com/zeusync/entisync/internal/demo"
	"github.com/zeusync/entisync/sdk/go/client"
	"github.com/zeusync/entisync/sdk/go/client/storage"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

type options struct {
	configPath string
	serverAddr string
	transport  string
	storage    string
	name       string
	speed      float64
	turn       float64
	duration   time.Duration
	logLevel   string
}

func newRootCmd() *cobra.Command {
	var opts options

	cmd := &cobra.Command{
		Use:          "entisync-bot",
		Short:        "Headless client that owns a wandering player",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			config, err := opts.config(cmd)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()
			if opts.duration > 0 {
				ctx, cancel = context.WithTimeout(ctx, opts.duration)
				defer cancel()
			}

			stopCh := make(chan os.Signal, 1)
			signal.Notify(stopCh, os.Interrupt, syscall.SIGTERM)
			defer signal.Stop(stopCh)
			go func() {
				select {
				case <-stopCh:
					cancel()
				case <-ctx.Done():
				}
			}()

			return run(ctx, config, opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&opts.configPath, "config", "c", "", "path to a YAML config file")
	flags.StringVar(&opts.serverAddr, "server", "", "server address, e.g. 127.0.0.1:8080")
	flags.StringVar(&opts.transport, "transport", "", "websocket or quic")
	flags.StringVar(&opts.storage, "storage", "", "YAML file keeping owned entities between runs")
	flags.StringVar(&opts.name, "name", "bot", "player name")
	flags.Float64Var(&opts.speed, "speed", 40, "walking speed in units per second")
	flags.Float64Var(&opts.turn, "turn", 2, "seconds between heading changes")
	flags.DurationVar(&opts.duration, "duration", 0, "stop after this long; 0 runs until interrupted")
	flags.StringVar(&opts.logLevel, "log-level", "", "debug, info, warn or error")
	return cmd
}

func (o options) config(cmd *cobra.Command) (client.Config, error) {
	config := client.DefaultConfig()
	if o.configPath != "" {
		var err error
		if config, err = client.LoadConfig(o.configPath); err != nil {
			return config, err
		}
	}
	flags := cmd.Flags()
	if flags.Changed("server") {
		config.ServerAddr = o.serverAddr
	}
	if flags.Changed("transport") {
		config.Transport = o.transport
	}
	if flags.Changed("storage") {
		config.StoragePath = o.storage
	}
	if flags.Changed("log-level") {
		level, err := log.ParseLevel(o.logLevel)
		if err != nil {
			return config, err
		}
		config.LogLevel = level
	}
	return config, nil
}

func run(ctx context.Context, config client.Config, opts options) error {
	logger := log.New(config.LogLevel)
	defer func() { _ = logger.Sync() }()

	registry := ecs.NewRegistry()
	blueprints := ecs.NewBlueprints()
	if err := demo.Register(registry, blueprints, config.Interpolation); err != nil {
		return err
	}

	var store storage.Store = storage.NewMemoryStore()
	if config.StoragePath != "" {
		fileStore, err := storage.OpenFile(config.StoragePath)
		if err != nil {
			return err
		}
		store = fileStore
	}

	link, err := client.Dial(ctx, config)
	if err != nil {
		return fmt.Errorf("connect to %s: %w", config.ServerAddr, err)
	}
	c, err := client.New(link, registry, blueprints, store, config, logger)
	if err != nil {
		_ = link.Close()
		return err
	}

	// The loop outlives ctx so the final save can still run on it.
	g, loopCtx := errgroup.WithContext(context.Background())
	g.Go(func() error {
		return c.Run(loopCtx)
	})
	g.Go(func() error {
		defer c.Close()
		return play(ctx, loopCtx, c, opts, logger)
	})
	return g.Wait()
}

// play bootstraps, walks the player until ctx ends and saves on the way
// out. loopCtx ends when the client stops on its own.
func play(ctx, loopCtx context.Context, c *client.Client, opts options, logger log.Log) error {
	session, err := c.Bootstrap(ctx)
	if err != nil {
		return err
	}

	var id ecs.EntityID
	if session.Restored > 0 {
		err = c.Do(ctx, func(w *ecs.World) error {
			for _, actor := range ecs.Query1[*client.ClientActor](w) {
				if actor.Blueprint() == demo.BlueprintPlayer {
					id = actor.Entity().ID()
					break
				}
			}
			return nil
		})
		if err != nil {
			return err
		}
	}
	if id != 0 {
		logger.Info("Resuming player", log.Uint64("entity_id", uint64(id)))
	} else {
		id, err = c.Spawn(ctx, demo.BlueprintPlayer, ecs.Props{
			"name":                    opts.name,
			string(demo.KindPosition): map[string]any{"x": session.Spawn.X, "y": session.Spawn.Y},
		})
		if err != nil {
			return err
		}
		logger.Info("Spawned player", log.Uint64("entity_id", uint64(id)))
	}

	err = c.Do(ctx, func(w *ecs.World) error {
		e, ok := w.Entity(id)
		if !ok {
			return fmt.Errorf("%w: %d", ecs.ErrEntityNotFound, id)
		}
		if e.Has(demo.KindWander) {
			return nil
		}
		return e.Add(demo.NewWander(opts.speed, opts.turn, uint64(time.Now().UnixNano())))
	})
	if err != nil {
		return err
	}

	select {
	case <-ctx.Done():
	case <-loopCtx.Done():
		return nil
	}

	saveCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err = c.SaveAll(saveCtx); err != nil {
		logger.Warn("Failed to save owned entities", log.Error(err))
	}
	return nil
}
