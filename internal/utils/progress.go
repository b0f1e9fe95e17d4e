package utils

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
	"golang.org/x/term"
)

// Progress renders one labelled mpb bar on stderr. It is a no-op when
// disabled or when stderr is not a terminal.
type Progress struct {
	container *mpb.Progress
	bar       *mpb.Bar
	enabled   bool

	mu          sync.Mutex
	current     int
	description string
}

var descLength = 24

// NewProgress creates a progress bar for total steps, prefixed with label
func NewProgress(label string, total int, enabled bool) *Progress {
	p := &Progress{enabled: enabled && isTerminal()}
	if !p.enabled {
		return p
	}

	// Add space before progress bar
	fmt.Fprintln(os.Stderr)

	p.container = mpb.New(
		mpb.WithOutput(os.Stderr),
		mpb.WithWidth(64),
		mpb.WithRefreshRate(100*time.Millisecond),
	)
	p.bar = p.container.New(int64(total),
		mpb.BarStyle().Lbound("[").Filler("█").Tip("█").Padding("░").Rbound("]"),
		mpb.PrependDecorators(
			decor.Name(label, decor.WC{C: decor.DindentRight | decor.DextraSpace}),
			decor.Any(func(decor.Statistics) string {
				return p.currentDescription()
			}, decor.WC{W: descLength, C: decor.DindentRight}),
			decor.CountersNoUnit("%d/%d", decor.WC{C: decor.DindentRight}),
		),
		mpb.AppendDecorators(
			decor.Percentage(),
		),
	)
	return p
}

func (p *Progress) currentDescription() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.description) > descLength {
		return p.description[:descLength-2] + ".."
	}
	return p.description
}

// Update sets the bar to current and shows description next to it
func (p *Progress) Update(current int, description string) {
	if !p.enabled {
		return
	}
	p.mu.Lock()
	p.current = current
	p.description = description
	p.mu.Unlock()
	p.bar.SetCurrent(int64(current))
}

// Increment advances the bar by one step
func (p *Progress) Increment(description string) {
	if !p.enabled {
		return
	}
	p.mu.Lock()
	p.current++
	current := p.current
	p.mu.Unlock()
	p.Update(current, description)
}

// Finish completes the bar and waits for the final render
func (p *Progress) Finish() {
	if !p.enabled {
		return
	}
	p.bar.SetTotal(-1, true)
	p.container.Wait()

	// Add space after progress bar
	fmt.Fprintln(os.Stderr)
}

// isTerminal checks if stderr is a terminal (TTY)
func isTerminal() bool {
	return term.IsTerminal(int(os.Stderr.Fd()))
}
