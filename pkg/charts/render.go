package charts

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/ccollicutt/logsift/pkg/normalizer"
)

// Default image size in inches.
const (
	DefaultWidth  = 10.0
	DefaultHeight = 6.0
)

// Options controls rendering.
type Options struct {
	// Dir receives one <kind>.png per chart. It is created if missing.
	Dir string

	// Width and Height are in inches.
	Width  float64
	Height float64

	// Kinds selects charts; empty means AllKinds.
	Kinds []Kind

	// MaxBars truncates long series to their largest bars. Zero keeps all.
	MaxBars int
}

// Renderer draws bar charts for a record set.
type Renderer struct {
	opts Options
}

// NewRenderer creates a Renderer, filling zero-valued options with defaults.
func NewRenderer(opts Options) *Renderer {
	if opts.Width <= 0 {
		opts.Width = DefaultWidth
	}
	if opts.Height <= 0 {
		opts.Height = DefaultHeight
	}
	if len(opts.Kinds) == 0 {
		opts.Kinds = AllKinds
	}
	return &Renderer{opts: opts}
}

// Render writes every selected chart and returns the written paths in kind
// order. Empty charts are skipped. Charts render concurrently; the
// first failure cancels the rest.
func (r *Renderer) Render(ctx context.Context, records []normalizer.CleanRecord) ([]string, error) {
	if err := os.MkdirAll(r.opts.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create chart directory: %w", err)
	}

	paths := make([]string, len(r.opts.Kinds))
	g, ctx := errgroup.WithContext(ctx)

	for i, kind := range r.opts.Kinds {
		i, kind := i, kind
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}

			series, err := Aggregate(kind, records)
			if err != nil {
				return err
			}
			if series.Empty() {
				return nil
			}

			path := filepath.Join(r.opts.Dir, string(kind)+".png")
			if err := r.draw(series, path); err != nil {
				return fmt.Errorf("failed to render %s: %w", kind, err)
			}
			paths[i] = path
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	written := paths[:0]
	for _, p := range paths {
		if p != "" {
			written = append(written, p)
		}
	}
	return written, nil
}

// saveMu serializes plot.Save; gonum's font handling is not documented as
// safe for concurrent saves.
var saveMu sync.Mutex

func (r *Renderer) draw(series Series, path string) error {
	bars := series.Bars
	if r.opts.MaxBars > 0 && len(bars) > r.opts.MaxBars && series.Kind != KindRequestsPerHour {
		bars = bars[:r.opts.MaxBars]
	}

	values := make(plotter.Values, len(bars))
	labels := make([]string, len(bars))
	for i, b := range bars {
		values[i] = b.Value
		labels[i] = b.Label
	}

	p := plot.New()
	p.Title.Text = series.Title
	p.X.Label.Text = series.XLabel
	p.Y.Label.Text = series.YLabel

	chart, err := plotter.NewBarChart(values, vg.Points(barWidth(len(bars), r.opts.Width)))
	if err != nil {
		return err
	}
	chart.LineStyle.Width = vg.Length(0)
	chart.Color = plotutil.Color(0)

	p.Add(chart)
	p.NominalX(labels...)
	p.X.Tick.Label.Rotation = math.Pi / 2
	p.X.Tick.Label.XAlign = draw.XRight
	p.X.Tick.Label.YAlign = draw.YCenter

	saveMu.Lock()
	defer saveMu.Unlock()
	return p.Save(vg.Length(r.opts.Width)*vg.Inch, vg.Length(r.opts.Height)*vg.Inch, path)
}

// barWidth shrinks bars so that dense series still fit the canvas.
func barWidth(n int, widthInches float64) float64 {
	const maxWidth = 20.0
	if n == 0 {
		return maxWidth
	}
	// 72 points per inch, leave roughly a fifth for axes and gaps.
	w := widthInches * 72 * 0.8 / float64(n) * 0.8
	return math.Max(1, math.Min(maxWidth, w))
}
