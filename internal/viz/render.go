package viz

import (
	"fmt"
	"image/color"
	"io"
	"log/slog"
	"math"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"

	"gonum.org/v1/gonum/stat/distuv"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"

	"github.com/KaramelBytes/dataloom-cli/internal/analysis"
	"github.com/KaramelBytes/dataloom-cli/internal/dataset"
)

const (
	histogramBins = 20

	singleWidth  = 6 * vg.Inch
	singleHeight = 4 * vg.Inch
	heatWidth    = 7 * vg.Inch
	heatHeight   = 6 * vg.Inch
	panelWidth   = 18 * vg.Inch
	panelHeight  = 6 * vg.Inch
)

var (
	fillBlue  = color.NRGBA{R: 70, G: 130, B: 180, A: 200}
	lineRed   = color.NRGBA{R: 178, G: 34, B: 34, A: 255}
	pointBlue = color.NRGBA{R: 31, G: 119, B: 180, A: 255}
)

// Renderer writes per-column plot images under <staticDir>/<runID>/.
// Paths in the returned mapping are relative, suitable for serving the
// static directory as-is.
type Renderer struct {
	staticDir string
	runID     string
	logger    *slog.Logger
}

func New(staticDir, runID string, logger *slog.Logger) *Renderer {
	if staticDir == "" {
		staticDir = "static"
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Renderer{staticDir: staticDir, runID: runID, logger: logger}
}

// Render draws a histogram with density overlay, a box plot, a QQ plot and
// a combined three-panel image for every numeric column, plus a correlation
// heatmap when the matrix spans more than one column. A failure on one
// column is recorded as a warning and does not stop the others; the only
// hard failure is not being able to create the output directory.
func (r *Renderer) Render(f *dataset.Frame, corr *analysis.CorrMatrix) (map[string]string, []string, error) {
	dir := filepath.Join(r.staticDir, r.runID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, nil, fmt.Errorf("create plot dir: %w", err)
	}
	rel := path.Join(filepath.Base(r.staticDir), r.runID)

	out := make(map[string]string)
	var warnings []string
	for _, c := range f.NumericColumns() {
		vals := c.Values()
		if len(vals) == 0 {
			warnings = append(warnings, fmt.Sprintf("column %q: no values to plot", c.Name))
			continue
		}
		files, err := renderColumn(dir, rel, c.Name, vals)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("column %q: %v", c.Name, err))
			r.logger.Warn("column plots failed", "column", c.Name, "error", err)
			continue
		}
		for k, v := range files {
			out[k] = v
		}
		r.logger.Debug("column plots written", "column", c.Name)
	}

	if corr != nil && len(corr.Columns) > 1 {
		hp, err := heatmapPlot(corr)
		if err == nil {
			err = hp.Save(heatWidth, heatHeight, filepath.Join(dir, "correlation_heatmap.png"))
		}
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("correlation heatmap: %v", err))
			r.logger.Warn("correlation heatmap failed", "error", err)
		} else {
			out["correlation_heatmap"] = path.Join(rel, "correlation_heatmap.png")
		}
	}
	return out, warnings, nil
}

// renderColumn writes the three single plots and the combined panel for one
// column, returning plot key -> relative path.
func renderColumn(dir, rel, name string, vals []float64) (map[string]string, error) {
	hist, err := histPlot(name, vals)
	if err != nil {
		return nil, fmt.Errorf("histogram: %w", err)
	}
	box, err := boxPlot(name, vals)
	if err != nil {
		return nil, fmt.Errorf("box plot: %w", err)
	}
	qq, err := qqPlot(name, vals)
	if err != nil {
		return nil, fmt.Errorf("qq plot: %w", err)
	}

	safe := sanitizeName(name)
	out := make(map[string]string, 4)
	for _, s := range []struct {
		key  string
		file string
		p    *plot.Plot
	}{
		{name + "_hist", safe + "_hist.png", hist},
		{name + "_boxplot", safe + "_boxplot.png", box},
		{name + "_qqplot", safe + "_qqplot.png", qq},
	} {
		if err := s.p.Save(singleWidth, singleHeight, filepath.Join(dir, s.file)); err != nil {
			return nil, fmt.Errorf("save %s: %w", s.file, err)
		}
		out[s.key] = path.Join(rel, s.file)
	}

	panelFile := safe + "_plots.png"
	if err := savePanel(filepath.Join(dir, panelFile), hist, box, qq); err != nil {
		return nil, fmt.Errorf("combined panel: %w", err)
	}
	out[name] = path.Join(rel, panelFile)
	return out, nil
}

func histPlot(name string, vals []float64) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = "Distribution of " + name
	p.X.Label.Text = name
	p.Y.Label.Text = "Density"
	h, err := plotter.NewHist(plotter.Values(vals), histogramBins)
	if err != nil {
		return nil, err
	}
	h.Normalize(1)
	h.FillColor = fillBlue
	p.Add(h)
	if pts := kdePoints(vals); len(pts) > 0 {
		line, err := plotter.NewLine(pts)
		if err != nil {
			return nil, err
		}
		line.Color = lineRed
		line.Width = vg.Points(1.5)
		p.Add(line)
	}
	return p, nil
}

func boxPlot(name string, vals []float64) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = "Box Plot of " + name
	p.Y.Label.Text = name
	b, err := plotter.NewBoxPlot(vg.Points(40), 0, plotter.Values(vals))
	if err != nil {
		return nil, err
	}
	p.Add(b)
	p.NominalX(name)
	return p, nil
}

func qqPlot(name string, vals []float64) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = "QQ Plot of " + name
	p.X.Label.Text = "Theoretical Quantiles"
	p.Y.Label.Text = "Standardized Sample Quantiles"
	pts := qqPoints(vals)
	sc, err := plotter.NewScatter(pts)
	if err != nil {
		return nil, err
	}
	sc.GlyphStyle.Radius = vg.Points(1.5)
	sc.GlyphStyle.Color = pointBlue
	p.Add(sc)
	lo, hi := pts[0].X, pts[len(pts)-1].X
	ref, err := plotter.NewLine(plotter.XYs{{X: lo, Y: lo}, {X: hi, Y: hi}})
	if err != nil {
		return nil, err
	}
	ref.Color = lineRed
	p.Add(ref)
	return p, nil
}

// corrGrid adapts a correlation matrix to the plotter grid interface, one
// unit cell per column pair.
type corrGrid struct {
	m *analysis.CorrMatrix
}

func (g corrGrid) Dims() (c, r int) { n := len(g.m.Columns); return n, n }
func (g corrGrid) Z(c, r int) float64 {
	return g.m.Values[r][c]
}
func (g corrGrid) X(c int) float64 { return float64(c) }
func (g corrGrid) Y(r int) float64 { return float64(r) }

func heatmapPlot(m *analysis.CorrMatrix) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = "Correlation Heatmap"
	h := plotter.NewHeatMap(corrGrid{m: m}, palette.Heat(12, 1))
	h.Min, h.Max = -1, 1
	p.Add(h)

	n := len(m.Columns)
	ticks := make([]plot.Tick, n)
	for i, name := range m.Columns {
		ticks[i] = plot.Tick{Value: float64(i), Label: name}
	}
	p.X.Tick.Marker = plot.ConstantTicks(ticks)
	p.Y.Tick.Marker = plot.ConstantTicks(ticks)

	labels := plotter.XYLabels{
		XYs:    make(plotter.XYs, 0, n*n),
		Labels: make([]string, 0, n*n),
	}
	for r := 0; r < n; r++ {
		for c := 0; c < n; c++ {
			labels.XYs = append(labels.XYs, plotter.XY{X: float64(c), Y: float64(r)})
			labels.Labels = append(labels.Labels, strconv.FormatFloat(m.Values[r][c], 'f', 2, 64))
		}
	}
	lab, err := plotter.NewLabels(labels)
	if err != nil {
		return nil, err
	}
	p.Add(lab)
	return p, nil
}

// savePanel aligns the given plots on one row and writes a single PNG.
func savePanel(file string, plots ...*plot.Plot) error {
	img := vgimg.New(panelWidth, panelHeight)
	dc := draw.New(img)
	tiles := draw.Tiles{Rows: 1, Cols: len(plots), PadX: vg.Millimeter * 4, PadY: vg.Millimeter * 4}
	canvases := plot.Align([][]*plot.Plot{plots}, tiles, dc)
	for i, pl := range plots {
		pl.Draw(canvases[0][i])
	}
	w, err := os.Create(file)
	if err != nil {
		return err
	}
	png := vgimg.PngCanvas{Canvas: img}
	if _, err := png.WriteTo(w); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}

// kdePoints samples a Gaussian kernel density estimate with Scott's
// bandwidth over the value range. Returns nil when a density is undefined
// (fewer than two values or zero spread).
func kdePoints(vals []float64) plotter.XYs {
	n := len(vals)
	_, std := sampleStats(vals)
	if n < 2 || std <= 0 {
		return nil
	}
	bw := std * math.Pow(float64(n), -0.2)
	lo, hi := vals[0], vals[0]
	for _, v := range vals {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	lo -= 3 * bw
	hi += 3 * bw
	const steps = 200
	pts := make(plotter.XYs, steps)
	for i := range pts {
		x := lo + (hi-lo)*float64(i)/float64(steps-1)
		var density float64
		for _, v := range vals {
			density += distuv.UnitNormal.Prob((x - v) / bw)
		}
		density /= float64(n) * bw
		pts[i] = plotter.XY{X: x, Y: density}
	}
	return pts
}

// qqPoints pairs standard-normal quantiles at midpoint plotting positions
// with the standardized order statistics of the sample.
func qqPoints(vals []float64) plotter.XYs {
	sorted := append([]float64(nil), vals...)
	sort.Float64s(sorted)
	n := len(sorted)
	mean, std := sampleStats(sorted)
	pts := make(plotter.XYs, n)
	for i, v := range sorted {
		q := distuv.UnitNormal.Quantile((float64(i) + 0.5) / float64(n))
		z := 0.0
		if std > 0 {
			z = (v - mean) / std
		}
		pts[i] = plotter.XY{X: q, Y: z}
	}
	return pts
}

func sampleStats(vals []float64) (mean, std float64) {
	var n int
	var m2 float64
	for _, x := range vals {
		n++
		delta := x - mean
		mean += delta / float64(n)
		m2 += delta * (x - mean)
	}
	if n > 1 {
		std = math.Sqrt(m2 / float64(n-1))
	}
	return mean, std
}

var unsafeNameChars = regexp.MustCompile(`[^A-Za-z0-9._-]`)

// sanitizeName makes a column name safe to use as a file name.
func sanitizeName(name string) string {
	s := unsafeNameChars.ReplaceAllString(name, "_")
	if s == "" {
		return "column"
	}
	return s
}
