package main

import (
	"context"
	"os"
	"time"
)

// watchFile calls reload whenever path's modification time or size changes.
func watchFile(ctx context.Context, path string, every time.Duration, reload func()) {
	last := stamp(path)
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
		cur := stamp(path)
		if cur == last || cur == (fileStamp{}) {
			continue
		}
		last = cur
		reload()
	}
}

type fileStamp struct {
	mod  time.Time
	size int64
}

func stamp(path string) fileStamp {
	fi, err := os.Stat(path)
	if err != nil {
		return fileStamp{}
	}
	return fileStamp{mod: fi.ModTime(), size: fi.Size()}
}
