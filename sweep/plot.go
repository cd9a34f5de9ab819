package sweep

import (
	"fmt"
	"image/color"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// Plot renders the curve to a PNG: error against component count on a
// log-scaled x axis, one line per split.
func (c Curve) Plot(name string) error {
	if len(c) == 0 {
		return fmt.Errorf("sweep: plot of an empty curve")
	}
	p := plot.New()
	p.Title.Text = "double descent"
	p.X.Label.Text = "random features"
	p.Y.Label.Text = "classification error"
	p.X.Scale = plot.LogScale{}
	p.X.Tick.Marker = plot.LogTicks{}

	trainXY := make(plotter.XYs, len(c))
	testXY := make(plotter.XYs, len(c))
	for i, pt := range c {
		trainXY[i] = plotter.XY{X: float64(pt.Components), Y: pt.TrainErr}
		testXY[i] = plotter.XY{X: float64(pt.Components), Y: pt.TestErr}
	}

	trainLine, err := plotter.NewLine(trainXY)
	if err != nil {
		return err
	}
	trainLine.Color = color.RGBA{B: 255, A: 255}
	testLine, err := plotter.NewLine(testXY)
	if err != nil {
		return err
	}
	testLine.Color = color.RGBA{R: 255, A: 255}

	p.Add(trainLine, testLine)
	p.Legend.Add("train", trainLine)
	p.Legend.Add("test", testLine)
	p.Legend.Top = true

	return p.Save(6*vg.Inch, 4*vg.Inch, name)
}
