// Command liveloop-render renders loop sets to WAV files without an audio
// device.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/remeh/sizedwaitgroup"

	"github.com/cbegin/liveloop-go"
)

func main() {
	var (
		seconds    = flag.Float64("seconds", 8, "length of each render")
		sampleRate = flag.Int("sample-rate", 48000, "output sample rate")
		jobs       = flag.Int("jobs", runtime.NumCPU(), "renders to run at once")
		outDir     = flag.String("out", "", "output directory (default: next to each input)")
	)
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [flags] set.yaml...\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}
	if *seconds <= 0 {
		log.Fatal("-seconds must be positive")
	}
	dur := time.Duration(*seconds * float64(time.Second))
	if *outDir != "" {
		if err := os.MkdirAll(*outDir, 0o755); err != nil {
			log.Fatal(err)
		}
	}

	var (
		mu     sync.Mutex
		failed int
	)
	wg := sizedwaitgroup.New(max(*jobs, 1))
	for _, in := range flag.Args() {
		wg.Add()
		go func(in string) {
			defer wg.Done()
			out := outputPath(in, *outDir)
			if err := renderOne(in, out, *sampleRate, dur); err != nil {
				mu.Lock()
				failed++
				mu.Unlock()
				log.Printf("%s: %v", in, err)
				return
			}
			log.Printf("%s -> %s", in, out)
		}(in)
	}
	wg.Wait()
	if failed > 0 {
		log.Fatalf("%d of %d renders failed", failed, flag.NArg())
	}
}

func renderOne(in, out string, sampleRate int, dur time.Duration) error {
	samples, err := liveloop.RenderFile(in, sampleRate, dur)
	if err != nil {
		return err
	}
	f, err := os.Create(out)
	if err != nil {
		return err
	}
	if err := liveloop.WriteWAV(f, samples, sampleRate); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func outputPath(in, dir string) string {
	name := strings.TrimSuffix(filepath.Base(in), filepath.Ext(in)) + ".wav"
	if dir == "" {
		dir = filepath.Dir(in)
	}
	return filepath.Join(dir, name)
}
