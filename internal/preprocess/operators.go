package preprocess

import (
	"image"
	"math"

	"gocv.io/x/gocv"
)

// Gamma applies a gamma-LUT contrast adjustment: out = 255*(in/255)^gamma.
type Gamma struct {
	value float64
	lut   gocv.Mat
}

// NewGamma builds a Gamma operator and precomputes its 256-entry LUT.
func NewGamma(gamma float64) *Gamma {
	if gamma <= 0 {
		gamma = GammaDefault
	}
	lut := gocv.NewMatWithSize(1, 256, gocv.MatTypeCV8U)
	for i := 0; i < 256; i++ {
		v := math.Pow(float64(i)/255.0, gamma) * 255.0
		if v > 255 {
			v = 255
		}
		lut.SetUCharAt(0, i, uint8(v))
	}
	return &Gamma{value: gamma, lut: lut}
}

func (g *Gamma) Name() string { return "gamma" }

// Apply runs the LUT transform channel-wise.
func (g *Gamma) Apply(in gocv.Mat, out *gocv.Mat) error {
	gocv.LUT(in, g.lut, out)
	return nil
}

// Close releases the precomputed LUT.
func (g *Gamma) Close() { g.lut.Close() }

// Unsharp sharpens edges via unsharp masking: out = in + amount*(in - blur(in)).
type Unsharp struct {
	ksize  int
	amount float64
}

// NewUnsharp builds an Unsharp operator. ksize is rounded up to the nearest
// odd value as gocv's Gaussian blur requires.
func NewUnsharp(ksize int, amount float64) *Unsharp {
	if ksize <= 0 {
		ksize = UnsharpKsize
	}
	if ksize%2 == 0 {
		ksize++
	}
	if amount == 0 {
		amount = UnsharpAmount
	}
	return &Unsharp{ksize: ksize, amount: amount}
}

func (u *Unsharp) Name() string { return "unsharp" }

func (u *Unsharp) Apply(in gocv.Mat, out *gocv.Mat) error {
	blurred := gocv.NewMat()
	defer blurred.Close()
	gocv.GaussianBlur(in, &blurred, imgSize(u.ksize), 0, 0, gocv.BorderDefault)

	gocv.AddWeighted(in, 1+u.amount, blurred, -u.amount, 0, out)
	return nil
}

// Gauss denoises via Gaussian blur.
type Gauss struct {
	ksize int
	sigma float64
}

// NewGauss builds a Gauss operator. A non-positive ksize is replaced by
// DenoiseKsize; an even ksize is rounded up to the next odd value.
func NewGauss(ksize int, sigma float64) *Gauss {
	if ksize <= 0 {
		ksize = DenoiseKsize
	}
	if ksize%2 == 0 {
		ksize++
	}
	return &Gauss{ksize: ksize, sigma: sigma}
}

func (g *Gauss) Name() string { return "gauss" }

func (g *Gauss) Apply(in gocv.Mat, out *gocv.Mat) error {
	gocv.GaussianBlur(in, out, imgSize(g.ksize), g.sigma, g.sigma, gocv.BorderDefault)
	return nil
}

// Laplacian deblurs via Laplacian-sharpening: out = in + alpha*laplacian(in).
type Laplacian struct {
	alpha float64
	ksize int
}

// NewLaplacian builds a Laplacian operator.
func NewLaplacian(alpha float64, ksize int) *Laplacian {
	if alpha == 0 {
		alpha = LaplaceAlpha
	}
	if ksize <= 0 {
		ksize = LaplaceKsize
	}
	if ksize%2 == 0 {
		ksize++
	}
	return &Laplacian{alpha: alpha, ksize: ksize}
}

func (l *Laplacian) Name() string { return "laplacian" }

func (l *Laplacian) Apply(in gocv.Mat, out *gocv.Mat) error {
	lap := gocv.NewMat()
	defer lap.Close()
	gocv.LaplacianWithParams(in, &lap, gocv.MatTypeCV16S, l.ksize, 1, 0, gocv.BorderDefault)

	lap8 := gocv.NewMat()
	defer lap8.Close()
	lap.ConvertTo(&lap8, in.Type())

	gocv.AddWeighted(in, 1, lap8, l.alpha, 0, out)
	return nil
}

// Clutter masks stationary background via MOG2 background subtraction. It
// owns the background model across frames and is NOT thread-safe — the
// pipeline stage that constructs it must be its sole owner (spec.md §4.B,
// §5, §9).
type Clutter struct {
	sub gocv.BackgroundSubtractorMOG2
}

// NewClutter builds a Clutter operator with the given MOG2 parameters.
func NewClutter(history, varThreshold int, detectShadows bool) *Clutter {
	if history <= 0 {
		history = ClutterHistory
	}
	if varThreshold <= 0 {
		varThreshold = ClutterVarThr
	}
	sub := gocv.NewBackgroundSubtractorMOG2WithParams(history, float64(varThreshold), detectShadows)
	return &Clutter{sub: sub}
}

func (c *Clutter) Name() string { return "clutter_removal" }

// Apply computes the foreground mask and copies the original frame through
// it, so foreground pixels pass through unmodified and background pixels
// are set to zero.
func (c *Clutter) Apply(in gocv.Mat, out *gocv.Mat) error {
	mask := gocv.NewMat()
	defer mask.Close()
	c.sub.Apply(in, &mask)

	result := gocv.NewMat()
	defer result.Close()
	in.CopyToWithMask(&result, mask)
	*out = result.Clone()
	return nil
}

// Close releases the background model.
func (c *Clutter) Close() { c.sub.Close() }

func imgSize(ksize int) image.Point {
	return image.Point{X: ksize, Y: ksize}
}
