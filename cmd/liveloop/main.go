package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/cbegin/liveloop-go"
	"github.com/cbegin/liveloop-go/internal/audio"
	"github.com/cbegin/liveloop-go/internal/event"
	"github.com/cbegin/liveloop-go/internal/fx"
	"github.com/cbegin/liveloop-go/internal/midiout"
	"github.com/cbegin/liveloop-go/internal/oscout"
	"github.com/cbegin/liveloop-go/internal/render"
	"github.com/cbegin/liveloop-go/internal/repl"
	"github.com/cbegin/liveloop-go/internal/script"
)

func main() {
	var (
		file       = flag.String("file", "", "loop set to load at start")
		watch      = flag.Bool("watch", false, "reload -file whenever it changes")
		bpm        = flag.Float64("bpm", 60, "starting tempo")
		audioOut   = flag.String("audio", "builtin", "audio output: builtin|none|path to an SF2 SoundFont")
		sampleRate = flag.Int("sample-rate", 48000, "audio sample rate")
		buffer     = flag.Duration("buffer", 50*time.Millisecond, "audio device buffer")
		midiPort   = flag.String("midi", "", "MIDI output port (name substring or index)")
		oscAddr    = flag.String("osc", "", "send events as OSC to host:port")
		record     = flag.String("record", "", "write a Standard MIDI File of the session")
		ahead      = flag.Duration("ahead", liveloop.DefaultScheduleAhead, "schedule-ahead window")
		latency    = flag.Duration("latency", -1, "how early events are handed to the outputs (default: -ahead with audio, 0 without)")
		history    = flag.String("history", defaultHistoryDir(), "session history directory")
		noConsole  = flag.Bool("no-console", false, "play without the interactive console")
		effects    = flag.String("fx", "", "master effects, e.g. reverb:room=0.8,echo (overrides the file's fx)")
		verbose    = flag.Bool("v", false, "print loop lifecycle notices")
	)
	flag.Parse()

	logger := repl.NewLogger(os.Stderr)
	var (
		sinks   event.Multi
		closers []func() error
		rec     *midiout.Recorder
		player  *audio.Player
		synth   *render.Synth
	)
	fxFlag, err := fx.ParseList(*effects)
	if err != nil {
		log.Fatal(err)
	}

	switch *audioOut {
	case "none", "":
	default:
		synth, err = newSynth(*audioOut, *sampleRate)
		if err != nil {
			log.Fatal(err)
		}
		player, err = audio.NewPlayer(*sampleRate, synth, *buffer)
		if err != nil {
			log.Fatal(err)
		}
		sinks = append(sinks, synth)
		closers = append(closers, player.Close)
	}
	if *midiPort != "" {
		out, closeMIDI, err := openMIDIOut(*midiPort)
		if err != nil {
			log.Fatal(err)
		}
		sinks = append(sinks, midiout.NewSink(out, midiout.WithPrograms(midiout.GMPrograms)))
		closers = append(closers, closeMIDI)
	}
	if *oscAddr != "" {
		host, port, err := splitHostPort(*oscAddr)
		if err != nil {
			log.Fatal(err)
		}
		sinks = append(sinks, oscout.Dial(host, port))
	}
	if *record != "" {
		rec = midiout.NewRecorder(*bpm)
		sinks = append(sinks, rec)
	}

	lat := *latency
	if lat < 0 {
		lat = 0
		if player != nil {
			lat = *ahead
		}
	}
	opts := []liveloop.Option{
		liveloop.WithBPM(*bpm),
		liveloop.WithSink(sinks),
		liveloop.WithLogger(logger),
		liveloop.WithScheduleAhead(*ahead),
		liveloop.WithLatency(lat),
	}
	if player != nil {
		opts = append(opts, liveloop.WithClock(liveloop.ClockFunc(player.Position)))
	}
	rt := liveloop.New(opts...)

	notices := rt.Watch()
	go func() {
		// aborts and failures are already logged by the scheduler
		for n := range notices {
			if *verbose && n.Kind != liveloop.NoticeCycleStarted {
				logger.Printf("info: %v", n)
			}
		}
	}()

	// load defines the file's loops and swaps in its effects chain
	load := func(path string) ([]string, error) {
		f, err := script.Load(path)
		if err != nil {
			return nil, err
		}
		names, err := rt.Load(f)
		if synth != nil && *effects == "" {
			chain, ferr := fx.Build(*sampleRate, f.Effects())
			if ferr != nil {
				return names, ferr
			}
			synth.SetEffects(chain)
		}
		return names, err
	}
	if synth != nil && len(fxFlag) > 0 {
		chain, err := fx.Build(*sampleRate, fxFlag)
		if err != nil {
			log.Fatal(err)
		}
		synth.SetEffects(chain)
	}
	if *file != "" {
		names, err := load(*file)
		if err != nil {
			log.Fatal(err)
		}
		logger.Printf("info: defined %v", names)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if player != nil {
		player.Play()
	}
	done := make(chan struct{})
	go func() {
		defer close(done)
		rt.Run(ctx)
	}()
	if *watch && *file != "" {
		go watchFile(ctx, *file, time.Second/2, func() {
			names, err := load(*file)
			if err != nil {
				logger.Printf("error: %v", err)
				return
			}
			logger.Printf("info: reloaded %v", names)
		})
	}

	if *noConsole {
		<-ctx.Done()
	} else {
		console := repl.New(controller{rt, load}, os.Stdout, repl.WithHistoryDir(*history))
		if err := console.Run(ctx, os.Stdin); err != nil && ctx.Err() == nil {
			logger.Printf("error: %v", err)
		}
	}

	rt.StopAll()
	stop()
	<-done

	if err := rt.Close(); err != nil {
		logger.Printf("error: %v", err)
	}
	for _, c := range closers {
		if err := c(); err != nil {
			logger.Printf("error: %v", err)
		}
	}
	if rec != nil {
		if err := rec.WriteFile(*record); err != nil {
			log.Fatal(err)
		}
		fmt.Printf("recorded %s\n", *record)
	}
}

// controller routes the console's load command through the effects aware
// loader.
type controller struct {
	*liveloop.Runtime
	load func(string) ([]string, error)
}

func (c controller) LoadFile(path string) ([]string, error) { return c.load(path) }

func newSynth(name string, sampleRate int) (*render.Synth, error) {
	if name == "builtin" {
		return render.NewBuiltin(sampleRate), nil
	}
	sf, err := render.LoadSoundFont(name, sampleRate)
	if err != nil {
		return nil, err
	}
	return render.NewSynth(sampleRate, sf), nil
}

func splitHostPort(addr string) (string, int, error) {
	host, p, err := net.SplitHostPort(addr)
	if err != nil {
		return "", 0, fmt.Errorf("osc address %q: %w", addr, err)
	}
	port, err := strconv.Atoi(p)
	if err != nil || port <= 0 || port > 65535 {
		return "", 0, fmt.Errorf("osc address %q: bad port", addr)
	}
	if host == "" {
		host = "localhost"
	}
	return host, port, nil
}

func defaultHistoryDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".liveloop", "sessions")
}
