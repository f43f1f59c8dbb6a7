package loadtest

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/mattn/go-runewidth"

	"github.com/wasatchphotonics/wasatch-shell/internal/durfmt"
)

// latencyStat accumulates round-trip timings for one command.
type latencyStat struct {
	name  string
	count int
	min   time.Duration
	max   time.Duration
	total time.Duration
}

type stats struct {
	order  []string
	byName map[string]*latencyStat
}

func newStats() *stats {
	return &stats{byName: make(map[string]*latencyStat)}
}

func (st *stats) record(send string, d time.Duration) {
	name := send
	if i := strings.IndexByte(send, ' '); i >= 0 {
		name = send[:i]
	}
	stat, ok := st.byName[name]
	if !ok {
		stat = &latencyStat{name: name, min: d, max: d}
		st.byName[name] = stat
		st.order = append(st.order, name)
	}
	stat.count++
	stat.total += d
	if d < stat.min {
		stat.min = d
	}
	if d > stat.max {
		stat.max = d
	}
}

// render prints a per-command latency table in first-seen order.
func (st *stats) render(w io.Writer) {
	if len(st.order) == 0 {
		return
	}
	nameWidth := runewidth.StringWidth("command")
	for _, name := range st.order {
		if width := runewidth.StringWidth(name); width > nameWidth {
			nameWidth = width
		}
	}

	fmt.Fprintf(w, "%s  %6s  %8s  %8s  %8s\n",
		runewidth.FillRight("command", nameWidth), "count", "min", "mean", "max")
	for _, name := range st.order {
		stat := st.byName[name]
		mean := stat.total / time.Duration(stat.count)
		fmt.Fprintf(w, "%s  %6d  %8s  %8s  %8s\n",
			runewidth.FillRight(stat.name, nameWidth),
			stat.count,
			durfmt.Compact(stat.min),
			durfmt.Compact(mean),
			durfmt.Compact(stat.max))
	}
}
