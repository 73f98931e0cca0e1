// Package statsview serves live runtime statistics of the emulator process
// over HTTP.
//
// After launch, graphs are viewable at:
//
//	<addr>/debug/statsview
//
// And the standard pprof endpoints at:
//
//	<addr>/debug/pprof/
package statsview

import (
	"log/slog"

	"github.com/go-echarts/statsview"
	"github.com/go-echarts/statsview/viewer"
)

// DefaultAddress is used when --statsview is given without a value.
const DefaultAddress = "localhost:12600"

const path = "/debug/statsview"

// Launch starts the stats server in a new goroutine.
func Launch(addr string) {
	go func() {
		viewer.SetConfiguration(viewer.WithAddr(addr))
		mgr := statsview.New()
		mgr.Start()
	}()

	slog.Info("stats server available", "url", "http://"+addr+path)
}
