package cli

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"
)

const spinnerInterval = 80 * time.Millisecond

var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// spinner is a single-line activity indicator for commands that block on
// compilation. It animates on stderr so command output stays pipeable, and
// winds down on its own when the surrounding context ends.
type spinner struct {
	message string
	ctx     context.Context
	quit    chan struct{}
	parked  chan struct{}
	stop    sync.Once
}

func newSpinner(message string) *spinner {
	return newSpinnerWithContext(context.Background(), message)
}

func newSpinnerWithContext(ctx context.Context, message string) *spinner {
	return &spinner{
		message: message,
		ctx:     ctx,
		quit:    make(chan struct{}),
		parked:  make(chan struct{}),
	}
}

// Start runs the animation until Stop is called or the context ends.
func (s *spinner) Start() {
	go func() {
		defer close(s.parked)
		ticker := time.NewTicker(spinnerInterval)
		defer ticker.Stop()

		for frame := 0; ; frame++ {
			select {
			case <-s.ctx.Done():
				s.clearLine()
				return
			case <-s.quit:
				return
			case <-ticker.C:
				glyph := spinnerFrames[frame%len(spinnerFrames)]
				fmt.Fprintf(os.Stderr, "\r%s %s", styleIconSpinner.Render(glyph), StyleDim.Render(s.message))
			}
		}
	}()
}

// Stop halts the animation and clears the line. Safe to call more than
// once; it waits for the animation goroutine to park before clearing.
func (s *spinner) Stop() {
	s.stop.Do(func() { close(s.quit) })
	<-s.parked
	s.clearLine()
}

func (s *spinner) clearLine() {
	fmt.Fprintf(os.Stderr, "\r%s\r", strings.Repeat(" ", len(s.message)+4))
}

// StopWithSuccess stops the spinner and prints a success line in its place.
func (s *spinner) StopWithSuccess(message string) {
	s.Stop()
	printSuccess("%s", message)
}

// StopWithError stops the spinner and prints an error line in its place.
func (s *spinner) StopWithError(message string) {
	s.Stop()
	printError("%s", message)
}

// Cancelled reports whether the surrounding context ended the spinner.
func (s *spinner) Cancelled() bool {
	return s.ctx.Err() != nil
}
