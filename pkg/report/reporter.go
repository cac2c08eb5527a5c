// Package report is the analysis sink. It appends one CSV per record stream
// per run; everything here is best-effort and never stalls the simulation.
package report

import (
	"bufio"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"

	"github.com/luxfi/log"
	"github.com/shopspring/decimal"

	"github.com/apxr/marketsim/pkg/book"
)

// impactEpsilon floors mid prices before taking logs so an empty book
// (mid 0) cannot produce -Inf.
const impactEpsilon = 1e-4

// Wipe clears the output directory. Called once, before the first run.
func Wipe(dir string) error {
	if err := os.RemoveAll(dir); err != nil {
		return err
	}
	return os.MkdirAll(dir, 0o755)
}

// Reporter owns the four per-run CSV streams. It consumes the public feed
// for trades and order sides, the book's impact hook for price impacts, and
// the scheduler's mid-price samples.
type Reporter struct {
	tickD  decimal.Decimal
	logger log.Logger

	files   []*os.File
	mids    *bufio.Writer
	trades  *bufio.Writer
	sides   *bufio.Writer
	impacts *bufio.Writer
}

// OpenRun allocates the output files for one run number.
func OpenRun(dir string, run int, tick float64) (*Reporter, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	r := &Reporter{
		tickD:  decimal.NewFromFloat(tick),
		logger: log.Root().New("module", "report", "run", run),
	}
	for _, f := range []struct {
		name string
		dst  **bufio.Writer
	}{
		{fmt.Sprintf("apxr_mid_prices%d.csv", run), &r.mids},
		{fmt.Sprintf("apxr_trades%d.csv", run), &r.trades},
		{fmt.Sprintf("apxr_order_sides%d.csv", run), &r.sides},
		{fmt.Sprintf("apxr_price_impacts%d.csv", run), &r.impacts},
	} {
		fh, err := os.OpenFile(filepath.Join(dir, f.name), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			r.Close()
			return nil, err
		}
		r.files = append(r.files, fh)
		*f.dst = bufio.NewWriter(fh)
	}
	return r, nil
}

// MidPrice appends the end-of-timestep mid, rounded to two decimals.
func (r *Reporter) MidPrice(timestep int64, mid decimal.Decimal) {
	r.writeLine(r.mids, mid.StringFixed(2))
}

// OnOrderbookEvent records trade prices and new-order sides off the feed.
func (r *Reporter) OnOrderbookEvent(e book.Event) {
	switch {
	case e.Transaction:
		r.writeLine(r.trades, e.Price.Decimal(r.tickD).StringFixed(2))
	case e.Type == book.EventNewMarketOrder || e.Type == book.EventNewLimitOrder:
		r.writeLine(r.sides, strconv.Itoa(int(e.Direction)))
	}
}

// PriceImpact appends (volume, log mid_after - log mid_before).
func (r *Reporter) PriceImpact(timestep int64, orderID uint64, volume int64, midBefore, midAfter float64) {
	impact := math.Log(math.Max(midAfter, impactEpsilon)) - math.Log(math.Max(midBefore, impactEpsilon))
	r.writeLine(r.impacts, strconv.FormatInt(volume, 10)+","+strconv.FormatFloat(impact, 'f', -1, 64))
}

func (r *Reporter) writeLine(w *bufio.Writer, line string) {
	if w == nil {
		return
	}
	if _, err := w.WriteString(line + "\n"); err != nil {
		r.logger.Error("append failed", "error", err)
	}
}

// Close flushes and closes every stream.
func (r *Reporter) Close() error {
	var firstErr error
	for _, w := range []*bufio.Writer{r.mids, r.trades, r.sides, r.impacts} {
		if w != nil {
			if err := w.Flush(); err != nil && firstErr == nil {
				firstErr = err
			}
		}
	}
	for _, f := range r.files {
		if err := f.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
