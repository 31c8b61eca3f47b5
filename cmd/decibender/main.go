package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/dooshek/decibender/internal/audio"
	"github.com/dooshek/decibender/internal/config"
	"github.com/dooshek/decibender/internal/dbus"
	"github.com/dooshek/decibender/internal/fileops"
	"github.com/dooshek/decibender/internal/keyboard"
	"github.com/dooshek/decibender/internal/lights"
	"github.com/dooshek/decibender/internal/logger"
	"github.com/dooshek/decibender/internal/monitor"
	"github.com/dooshek/decibender/internal/mqttbridge"
	"github.com/dooshek/decibender/internal/notification"
	"github.com/dooshek/decibender/internal/rules"
	"github.com/dooshek/decibender/internal/server"
	"github.com/dooshek/decibender/internal/sounds"
	"github.com/dooshek/decibender/internal/spotify"
	"github.com/dooshek/decibender/internal/tts"
	"github.com/dooshek/decibender/internal/types"
	"github.com/dooshek/decibender/internal/watch"
	"github.com/fatih/color"
)

const queueCapacity = 64

func init() {
	// Set custom usage message to show -- prefix
	flag.Usage = func() {
		out := flag.CommandLine.Output()
		fmt.Fprintf(out, "Usage of %s:\n", os.Args[0])
		flag.VisitAll(func(f *flag.Flag) {
			fmt.Fprintf(out, "  --%s", f.Name)
			name, usage := flag.UnquoteUsage(f)
			if len(name) > 0 {
				fmt.Fprintf(out, " %s", name)
			}
			fmt.Fprintf(out, "\n    \t%s", usage)
			if f.DefValue != "" && f.DefValue != "false" {
				fmt.Fprintf(out, " (default %q)", f.DefValue)
			}
			fmt.Fprintf(out, "\n")
		})
	}
}

func main() {
	configPath := flag.String("config", "", "Path to the config file (default ~/.config/decibender/decibender.yaml)")
	logLevel := flag.String("log-level", "info", "Set log level (debug|info|warn|error)")
	logFilename := flag.String("log-filename", "", "Log to file instead of stdout")
	listDevices := flag.Bool("list-devices", false, "List capture devices and exit")
	runInit := flag.Bool("init", false, "Run the configuration wizard")
	spotifyLogin := flag.Bool("spotify-login", false, "Authorize Spotify playback control and store the token")
	flag.Parse()

	// Set up logging level and output
	logger.SetLevel(*logLevel)
	if *logFilename != "" {
		if err := logger.SetOutputFile(*logFilename); err != nil {
			fmt.Printf("Error setting log file: %v\n", err)
			os.Exit(1)
		}
		defer logger.CloseLogFile()
	}

	switch {
	case *listDevices:
		if err := printDevices(); err != nil {
			logger.Error("Failed to list capture devices", err)
			os.Exit(1)
		}
		return
	case *runInit:
		devices, err := audio.ListDevices()
		if err != nil {
			logger.Error("Failed to list capture devices", err)
			os.Exit(1)
		}
		if err := config.RunWizard(devices); err != nil {
			logger.Error("Error running wizard", err)
			os.Exit(1)
		}
		return
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		logger.Error("Error loading config", err)
		os.Exit(1)
	}

	fileOps, err := fileops.NewDefaultFileOps()
	if err != nil {
		logger.Error("Failed to initialize file operations", err)
		os.Exit(1)
	}
	if err := fileOps.EnsureDirectories(); err != nil {
		logger.Error("Failed to create necessary directories", err)
		os.Exit(1)
	}

	if *spotifyLogin {
		if !cfg.Spotify.Enabled() {
			logger.Error("Spotify login failed", errors.New("spotify.client_id and spotify.client_secret must be set"))
			os.Exit(1)
		}
		if err := spotify.Authorize(context.Background(), cfg.Spotify, tokenPath(cfg, fileOps), os.Stdin, os.Stdout); err != nil {
			logger.Error("Spotify login failed", err)
			os.Exit(1)
		}
		return
	}

	// Check if another instance is running
	if err := fileOps.CheckPID(); err != nil {
		logger.Error("Another instance of Decibender is already running", err)
		os.Exit(1)
	}
	if err := fileOps.SavePID(); err != nil {
		logger.Error("Failed to save PID file", err)
		os.Exit(1)
	}

	err = run(cfg, fileOps)
	if cerr := fileOps.CleanupPID(); cerr != nil {
		logger.Error("Failed to cleanup PID file", cerr)
	}
	if err != nil {
		logger.Error("Decibender stopped", err)
		logger.CloseLogFile()
		os.Exit(1)
	}
	logger.Info("Bye 👋")
}

func printDevices() error {
	devices, err := audio.ListDevices()
	if err != nil {
		return err
	}
	if len(devices) == 0 {
		color.Yellow("No capture devices found.")
		return nil
	}
	color.New(color.Bold).Println("Capture devices:")
	for _, name := range devices {
		fmt.Printf("  %s\n", color.CyanString(name))
	}
	return nil
}

func tokenPath(cfg *types.Config, fileOps fileops.FileOps) string {
	if cfg.Spotify.TokenFile != "" {
		return cfg.Spotify.TokenFile
	}
	return fileOps.GetTokenPath()
}

// run wires the pipeline and blocks until a signal or a fatal error.
func run(cfg *types.Config, fileOps fileops.FileOps) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var synth sounds.Synthesizer
	if cfg.TTS.OpenAIKey != "" {
		manager, err := tts.NewManager(cfg.GetTTSConfig(), fileOps.GetCacheDir())
		if err != nil {
			return err
		}
		synth = manager
	}
	if err := sounds.EnsureDefaults(cfg.Sounds); err != nil {
		return err
	}
	library, err := sounds.Load(ctx, cfg.Sounds, synth)
	if err != nil {
		return fmt.Errorf("failed to load sounds: %w", err)
	}

	var lightsClient rules.Lights
	if len(cfg.Lights.Zones) > 0 {
		lightsClient = lights.New(cfg.Lights)
	}

	var music rules.Music
	if cfg.Spotify.Enabled() {
		client, err := spotify.New(ctx, cfg.Spotify, tokenPath(cfg, fileOps))
		switch {
		case errors.Is(err, spotify.ErrNoToken):
			logger.Warnf("Music control disabled: %v", err)
		case err != nil:
			return fmt.Errorf("failed to initialize Spotify: %w", err)
		default:
			music = client
		}
	}

	slot := rules.NewSlot()
	executor := rules.NewExecutor(slot, rules.AudioPlayer(audio.NewPlayer(cfg.Sounds.Player)), lightsClient, music, library)

	loudness := watch.New(audio.InitialDB)
	thresholds := watch.New(cfg.Thresholds)
	windowSeconds := watch.New(cfg.Audio.WindowSeconds)

	queue := audio.NewQueue[float64](queueCapacity)
	source := audio.NewSource(cfg.Audio, queue)
	aggregator := audio.NewAggregator(queue, cfg.Audio.SampleRate, cfg.Audio.FrameSize, windowSeconds, loudness)
	controller := monitor.NewController(loudness, thresholds, windowSeconds, executor, monitor.Options{
		GracePeriod: cfg.Control.GracePeriod,
		StepDB:      cfg.Control.StepDB,
	})

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	spawn := func(name string, fatal bool, fn func(context.Context) error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := fn(ctx)
			switch {
			case err == nil:
			case fatal:
				errs <- fmt.Errorf("%s: %w", name, err)
			default:
				logger.Warnf("%s stopped: %v", name, err)
			}
		}()
	}

	if cfg.Bridges.DBus.Enabled {
		bus := dbus.NewServer(controller)
		if err := bus.Start(); err != nil {
			logger.Warnf("D-Bus bridge disabled: %v", err)
		} else {
			defer bus.Stop()
			controller.AddSink(bus)
		}
	}
	if cfg.Bridges.WebSocket.Listen != "" {
		ws := server.New(cfg.Bridges.WebSocket.Listen, controller)
		controller.AddSink(ws)
		spawn("websocket bridge", true, ws.Run)
	}
	if cfg.Bridges.MQTT.Broker != "" {
		bridge := mqttbridge.New(cfg.Bridges.MQTT, controller)
		controller.AddSink(bridge)
		spawn("mqtt bridge", true, bridge.Run)
	}
	if cfg.Notifications {
		notifier := notification.New()
		controller.AddSink(notifier)
		notifier.Notify("🔊 Decibender started")
	}
	if cfg.Hotkeys.Enabled {
		keys, err := keyboard.NewMonitor(cfg.Hotkeys, controller)
		if err != nil {
			return fmt.Errorf("invalid hotkeys: %w", err)
		}
		spawn("keyboard shortcuts", false, keys.Start)
		logger.Infof("Press %s for louder, %s for quieter",
			keyboard.FormatCombo(cfg.Hotkeys.Louder), keyboard.FormatCombo(cfg.Hotkeys.Quieter))
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		slot.Run(ctx)
	}()
	spawn("aggregator", true, aggregator.Run)
	spawn("monitor", true, controller.Run)

	if err := source.Start(); err != nil {
		cancel()
		slot.Close()
		wg.Wait()
		return err
	}

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("Shutting down...")
	case runErr = <-source.Fatal():
	case runErr = <-errs:
	}

	cancel()
	source.Close()
	queue.Close()
	slot.Close()
	wg.Wait()
	return runErr
}
