package annotate

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/nerrad567/gray-logic-dcc/internal/dcc"
)

// Row identifies an annotation row.
type Row string

// Annotation rows.
const (
	RowLogic    Row = "logic"
	RowPeriod   Row = "period"
	RowType     Row = "type"
	RowAddress  Row = "adr"
	RowFunction Row = "func"
	RowAverage  Row = "average"
)

// AllRows lists the rows in display order.
var AllRows = []Row{RowLogic, RowPeriod, RowType, RowAddress, RowFunction, RowAverage}

// ParseRow resolves a row name.
func ParseRow(name string) (Row, error) {
	for _, r := range AllRows {
		if strings.EqualFold(name, string(r)) {
			return r, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownRow, name)
}

// Annotation is one labelled span. Texts run from longest to shortest.
type Annotation struct {
	Start uint64
	End   uint64
	Row   Row
	Texts []string
}

// Text returns the longest text, or the shortest when short is set.
func (a Annotation) Text(short bool) string {
	if len(a.Texts) == 0 {
		return ""
	}
	if short {
		return a.Texts[len(a.Texts)-1]
	}
	return a.Texts[0]
}

// Options configures an Annotator.
type Options struct {
	// Rows selects the rows to write; empty writes all.
	Rows []Row

	// Short writes the shortest text variant.
	Short bool

	// Raw receives every decoded byte, nil for none.
	Raw io.Writer
}

// Annotator is a dcc.Sink that writes one line per annotation:
//
//	<start>-<end> <row>: <text>
//
// Write errors are sticky: after the first failure nothing more is written
// and Err reports the failure.
type Annotator struct {
	w     io.Writer
	raw   io.Writer
	rows  map[Row]bool
	short bool

	mu  sync.Mutex
	err error
	n   uint64
}

var _ dcc.Sink = (*Annotator)(nil)

// New creates an annotator writing to w.
func New(w io.Writer, opts Options) *Annotator {
	a := &Annotator{w: w, raw: opts.Raw, short: opts.Short}
	if len(opts.Rows) > 0 {
		a.rows = make(map[Row]bool, len(opts.Rows))
		for _, r := range opts.Rows {
			a.rows[r] = true
		}
	}
	return a
}

// Err returns the first write error.
func (a *Annotator) Err() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.err
}

// Written returns the number of annotation lines written.
func (a *Annotator) Written() uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.n
}

// Bit implements dcc.Sink.
func (a *Annotator) Bit(e dcc.BitEvent) {
	if e.Cell.Value != dcc.Invalid {
		a.emit(Annotation{Start: e.Cell.Start, End: e.Cell.End, Row: RowLogic, Texts: []string{e.Cell.Value.String()}})
	}
	a.emit(Annotation{Start: e.Cell.Start, End: e.Cell.End, Row: RowPeriod, Texts: []string{PeriodString(e.PeriodSeconds())}})
}

// Preamble implements dcc.Sink.
func (a *Annotator) Preamble(e dcc.PreambleEvent) {
	a.emit(Annotation{Start: e.Start, End: e.End, Row: RowType, Texts: PreambleTexts(e.Count)})
}

// Byte implements dcc.Sink.
func (a *Annotator) Byte(e dcc.ByteEvent) {
	if a.raw == nil {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.err != nil {
		return
	}
	if _, err := a.raw.Write([]byte{e.Value}); err != nil {
		a.err = fmt.Errorf("writing raw byte: %w", err)
	}
}

// Telegram implements dcc.Sink.
func (a *Annotator) Telegram(e dcc.TelegramEvent) {
	a.emit(Annotation{Start: e.Start, End: e.End, Row: RowType, Texts: TypeTexts(e.Command)})
	if adr, ok := AddressText(e.Command); ok {
		a.emit(Annotation{Start: e.Start, End: e.End, Row: RowAddress, Texts: []string{adr}})
	}
	if texts := FunctionTexts(e.Command); len(texts) > 0 {
		a.emit(Annotation{Start: e.Start, End: e.End, Row: RowFunction, Texts: texts})
	}
}

// SyncLost implements dcc.Sink. Framing losses are not annotated.
func (a *Annotator) SyncLost(dcc.SyncEvent) {}

// Average implements dcc.Sink.
func (a *Annotator) Average(e dcc.AverageEvent) {
	a.emit(Annotation{Row: RowAverage, Texts: []string{fmt.Sprintf("%.1f Hz", e.FrequencyHz)}})
}

func (a *Annotator) emit(ann Annotation) {
	if a.rows != nil && !a.rows[ann.Row] {
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.err != nil {
		return
	}
	if _, err := fmt.Fprintf(a.w, "%d-%d %s: %s\n", ann.Start, ann.End, ann.Row, ann.Text(a.short)); err != nil {
		a.err = fmt.Errorf("writing annotation: %w", err)
		return
	}
	a.n++
}
