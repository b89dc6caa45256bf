// Package output writes command results for people and for scripts.
//
// A Writer carries the global output switches: JSON documents (or one
// object per line for streams), quiet mode, and whether prompts are allowed.
// Status marks are coloured and spinners animate only on a colour TTY.
package output

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	jsoniter "github.com/json-iterator/go"

	"github.com/profilecard/presence/internal/terminal"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Status marks.
const (
	CheckMark   = "✓"
	XMark       = "✗"
	WarningMark = "⚠"
	InfoMark    = "ℹ"
)

type tone int

const (
	toneSuccess tone = iota
	toneFailure
	toneWarning
	toneInfo
	toneMuted
)

var toneColors = map[tone]color.Attribute{
	toneSuccess: color.FgGreen,
	toneFailure: color.FgRed,
	toneWarning: color.FgYellow,
	toneInfo:    color.FgCyan,
	toneMuted:   color.FgHiBlack,
}

type writerKey struct{}

// Writer is the destination for everything a command prints.
type Writer struct {
	Out     io.Writer
	Err     io.Writer
	JSON    bool
	Quiet   bool
	NoInput bool

	term   *terminal.Info
	colors map[tone]*color.Color
}

// Default writes to stdout and stderr using the detected terminal.
func Default() *Writer {
	return NewWriter(os.Stdout, os.Stderr, terminal.Detect())
}

// NewWriter builds a Writer over out and errOut.
func NewWriter(out, errOut io.Writer, term *terminal.Info) *Writer {
	w := &Writer{
		Out:    out,
		Err:    errOut,
		term:   term,
		colors: make(map[tone]*color.Color, len(toneColors)),
	}

	for t, attr := range toneColors {
		w.colors[t] = color.New(attr)
	}

	if !term.ColorEnabled() {
		color.NoColor = true
	}

	return w
}

// WithContext returns a copy of ctx carrying w.
func (w *Writer) WithContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, writerKey{}, w)
}

// FromContext returns the Writer stored in ctx, or Default.
func FromContext(ctx context.Context) *Writer {
	if w, ok := ctx.Value(writerKey{}).(*Writer); ok {
		return w
	}

	return Default()
}

// Terminal reports the capabilities the Writer was built with.
func (w *Writer) Terminal() *terminal.Info {
	return w.term
}

// SetNoColor applies --no-color.
func (w *Writer) SetNoColor(disabled bool) {
	w.term.ForceFlag = disabled
	if disabled {
		color.NoColor = true
	}
}

// Print writes formatted text to Out unless quiet.
func (w *Writer) Print(format string, args ...any) {
	if w.Quiet {
		return
	}

	fmt.Fprintf(w.Out, format, args...)
}

// Println writes a line to Out unless quiet.
func (w *Writer) Println(args ...any) {
	if w.Quiet {
		return
	}

	fmt.Fprintln(w.Out, args...)
}

// PrintJSON writes v as an indented JSON document. Quiet does not apply.
func (w *Writer) PrintJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode json: %w", err)
	}

	return w.writeLine(data)
}

// PrintJSONLine writes v as one compact JSON line.
func (w *Writer) PrintJSONLine(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode json: %w", err)
	}

	return w.writeLine(data)
}

func (w *Writer) writeLine(data []byte) error {
	if _, err := w.Out.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("write json: %w", err)
	}

	return nil
}

// Field writes a "label  value" row with the label padded to width.
func (w *Writer) Field(width int, label, value string) {
	if w.Quiet {
		return
	}

	label += strings.Repeat(" ", max(width-len(label), 0))
	w.paint(w.Out, toneMuted, label)
	fmt.Fprintln(w.Out, "  "+value)
}

// Success writes a checkmarked line.
func (w *Writer) Success(format string, args ...any) {
	w.status(w.Out, toneSuccess, CheckMark, format, args...)
}

// Warning writes a warning line.
func (w *Writer) Warning(format string, args ...any) {
	w.status(w.Out, toneWarning, WarningMark, format, args...)
}

// Info writes an informational line.
func (w *Writer) Info(format string, args ...any) {
	w.status(w.Out, toneInfo, InfoMark, format, args...)
}

// Failure writes an error line to Err, even when quiet.
func (w *Writer) Failure(format string, args ...any) {
	w.paint(w.Err, toneFailure, XMark+" ")
	fmt.Fprintln(w.Err, fmt.Sprintf(format, args...))
}

// Muted writes a dimmed line.
func (w *Writer) Muted(format string, args ...any) {
	if w.Quiet {
		return
	}

	w.paint(w.Out, toneMuted, fmt.Sprintf(format, args...))
	fmt.Fprintln(w.Out)
}

func (w *Writer) status(dst io.Writer, t tone, mark, format string, args ...any) {
	if w.Quiet {
		return
	}

	w.paint(dst, t, mark+" ")
	fmt.Fprintln(dst, fmt.Sprintf(format, args...))
}

func (w *Writer) paint(dst io.Writer, t tone, text string) {
	if w.term.ColorEnabled() {
		w.colors[t].Fprint(dst, text)
		return
	}

	fmt.Fprint(dst, text)
}

// Spinner returns a progress indicator for message. Without a colour TTY it
// prints "message... " on Start and "done" or "failed" on Finish.
func (w *Writer) Spinner(message string) *Spinner {
	s := &Spinner{message: message, w: w}
	if w.Quiet || !w.term.SpinnersEnabled() {
		return s
	}

	s.spin = spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	s.spin.Writer = w.Out
	s.spin.Suffix = " " + message

	return s
}

// Spinner wraps briandowns/spinner.
type Spinner struct {
	spin    *spinner.Spinner
	message string
	w       *Writer
}

// Start shows the spinner.
func (s *Spinner) Start() {
	if s.spin == nil {
		s.w.Print("%s... ", s.message)
		return
	}

	s.spin.Start()
}

// Finish stops the spinner and reports the outcome of the work.
func (s *Spinner) Finish(err error) {
	if s.spin != nil {
		s.spin.Stop()
		return
	}

	if err != nil {
		s.w.Println("failed")
		return
	}

	s.w.Println("done")
}
