// internal/ui/terminal.go
package ui

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/briandowns/spinner"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"openai-cli/internal/logging"
	"openai-cli/internal/models"
	"openai-cli/internal/orchestrator"
)

// Options configures a Terminal
type Options struct {
	Out      io.Writer
	Color    bool
	Markdown bool
	Spinner  bool
	Width    int
	Logger   *slog.Logger
}

// Terminal renders one batch at a time as plain scrolling output. The
// winner's fragments pass straight through; every other model is printed as
// one block once it finishes. Blocks that finish while the winner is still
// streaming are held back until the winner is done.
type Terminal struct {
	out      io.Writer
	color    bool
	logger   *slog.Logger
	renderer *glamour.TermRenderer
	spin     *spinner.Spinner

	mu          sync.Mutex
	live        *models.Spec
	winnerDone  bool
	pending     []orchestrator.ModelResult
	wrote       bool
	atLineStart bool
}

var _ orchestrator.Sink = (*Terminal)(nil)

func NewTerminal(opts Options) *Terminal {
	t := &Terminal{
		out:         opts.Out,
		color:       opts.Color,
		logger:      logging.OrDiscard(opts.Logger),
		atLineStart: true,
	}
	if t.out == nil {
		t.out = os.Stdout
	}

	if opts.Markdown {
		width := opts.Width
		if width <= 0 {
			width = 100
		}
		style := glamour.WithStandardStyle("notty")
		if opts.Color {
			style = glamour.WithAutoStyle()
		}
		r, err := glamour.NewTermRenderer(style, glamour.WithWordWrap(width))
		if err != nil {
			t.logger.Warn("markdown renderer unavailable", "error", err)
		} else {
			t.renderer = r
		}
	}

	if opts.Spinner {
		t.spin = spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(os.Stderr))
	}
	return t
}

// Attach subscribes the terminal to a coordinator. The returned function
// detaches it again.
func (t *Terminal) Attach(c *orchestrator.Coordinator) (detach func()) {
	unsubs := []func(){
		c.OnDisplayResult(t.displayResult),
		c.OnWinnerCompleted(t.winnerCompleted),
		c.OnRemainingCountChanged(t.remainingChanged),
	}
	return func() {
		for _, u := range unsubs {
			u()
		}
	}
}

// Begin prepares for a new batch and starts the waiting indicator.
func (t *Terminal) Begin(specs []models.Spec) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.live = nil
	t.winnerDone = false
	t.pending = nil
	t.wrote = false

	if len(specs) > 1 {
		names := make([]string, len(specs))
		for i, s := range specs {
			names[i] = s.String()
		}
		t.line(t.paint(DimStyle, "racing "+strings.Join(names, ", ")))
	}
	t.startSpinner(fmt.Sprintf(" waiting for %d model(s)", len(specs)))
}

// Live prints a fragment of the winning model as it arrives.
func (t *Terminal) Live(spec models.Spec, fragment string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.live == nil {
		s := spec
		t.live = &s
		t.stopSpinner()
		t.separate()
		t.line(t.header(spec, 0))
	} else if *t.live != spec {
		t.logger.Warn("live fragment from a non-winning model", "model", spec.String())
		return
	}
	t.write(fragment)
}

func (t *Terminal) displayResult(r orchestrator.ModelResult) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if r.Aborted {
		return
	}
	if t.live != nil && !t.winnerDone {
		t.pending = append(t.pending, r)
		return
	}

	// nobody is streaming yet: keep the indicator around the block
	restart := t.live == nil && t.spinning()
	t.stopSpinner()
	t.block(r)
	if restart {
		t.startSpinner("")
	}
}

func (t *Terminal) winnerCompleted(r orchestrator.ModelResult) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.winnerDone = true
	if t.live == nil {
		// winner was chosen but nothing reached the sink
		t.stopSpinner()
		if !r.Aborted {
			t.block(r)
		}
	} else {
		t.endLine()
		if r.Err != nil {
			t.line(t.paint(ErrorStyle, "error: "+r.ErrorText()))
		}
	}
	t.flush()
}

func (t *Terminal) remainingChanged(rc orchestrator.RemainingChange) {
	if t.spin == nil {
		return
	}
	t.spin.Lock()
	t.spin.Suffix = fmt.Sprintf(" waiting for %d/%d model(s)", rc.Remaining, rc.Total)
	t.spin.Unlock()
}

// Cancelled reports an interrupted batch. outstanding lists models whose
// executions had not returned when the signal arrived.
func (t *Terminal) Cancelled(outstanding []models.Spec) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.stopSpinner()
	t.endLine()
	msg := "cancelled"
	if len(outstanding) > 0 {
		names := make([]string, len(outstanding))
		for i, s := range outstanding {
			names[i] = s.String()
		}
		msg += fmt.Sprintf(" (stopping %s)", strings.Join(names, ", "))
	}
	t.line(t.paint(StatusWarn, msg))
}

// Finish prints held-back blocks and the batch summary.
func (t *Terminal) Finish(summary orchestrator.Summary) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.stopSpinner()
	t.endLine()
	t.flush()

	text := summary.String()
	if text == "" {
		return
	}
	style := DimStyle
	if summary.AllFailed() {
		style = ErrorStyle
	}
	t.separate()
	t.line(t.paint(style, text))
}

// Error prints a failure outside of a batch.
func (t *Terminal) Error(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.endLine()
	t.line(t.paint(ErrorStyle, "error: "+err.Error()))
}

// Print writes preformatted text, such as help or listings.
func (t *Terminal) Print(text string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.endLine()
	t.line(strings.TrimRight(text, "\n"))
}

// flush and everything below expect mu held.
func (t *Terminal) flush() {
	pending := t.pending
	t.pending = nil
	for _, r := range pending {
		t.block(r)
	}
}

func (t *Terminal) block(r orchestrator.ModelResult) {
	t.separate()
	t.line(t.header(r.Spec, r.Duration))
	if r.Err != nil {
		t.line(t.paint(ErrorStyle, "error: "+r.ErrorText()))
		return
	}
	if r.Text == "" {
		t.line(t.paint(DimStyle, "(empty response)"))
		return
	}
	t.write(t.render(r.Text))
	t.endLine()
}

func (t *Terminal) render(text string) string {
	if t.renderer == nil {
		return text
	}
	out, err := t.renderer.Render(text)
	if err != nil {
		t.logger.Warn("markdown render failed", "error", err)
		return text
	}
	return strings.Trim(out, "\n")
}

func (t *Terminal) header(spec models.Spec, d time.Duration) string {
	h := t.paint(ProviderStyle(spec.Provider), "● "+spec.String())
	if d > 0 {
		h += " " + t.paint(DimStyle, fmt.Sprintf("(%.1fs)", d.Seconds()))
	}
	return h
}

func (t *Terminal) paint(style lipgloss.Style, s string) string {
	if !t.color {
		return s
	}
	return style.Render(s)
}

// separate puts a blank line between blocks of the same batch
func (t *Terminal) separate() {
	t.endLine()
	if t.wrote {
		t.write("\n")
	}
}

func (t *Terminal) line(s string) {
	t.write(s)
	t.write("\n")
}

func (t *Terminal) endLine() {
	if !t.atLineStart {
		t.write("\n")
	}
}

func (t *Terminal) write(s string) {
	if s == "" {
		return
	}
	io.WriteString(t.out, s)
	t.wrote = true
	t.atLineStart = strings.HasSuffix(s, "\n")
}

func (t *Terminal) startSpinner(suffix string) {
	if t.spin == nil {
		return
	}
	if suffix != "" {
		t.spin.Lock()
		t.spin.Suffix = suffix
		t.spin.Unlock()
	}
	t.spin.Start()
}

func (t *Terminal) stopSpinner() {
	if t.spin != nil {
		t.spin.Stop()
	}
}

func (t *Terminal) spinning() bool {
	return t.spin != nil && t.spin.Active()
}
