package opticalflow

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// Polynomial expansion channels per pixel.
const (
	chY  = iota // linear coefficient along y
	chX         // linear coefficient along x
	chYY        // quadratic coefficient along y
	chXX        // quadratic coefficient along x
	chXY        // cross coefficient
	numPolyChannels
)

type expansionKernel struct {
	n    int
	g    []float64 // indexed by offset+n
	xg   []float64
	xxg  []float64
	ig11 float64
	ig03 float64
	ig33 float64
	ig55 float64
}

// newExpansionKernel builds the Gaussian applicability weights and the
// entries of the inverted normal-equation matrix the expansion needs.
func newExpansionKernel(n int, sigma float64) (*expansionKernel, error) {
	if sigma < 1e-7 {
		sigma = float64(n) * 0.3
	}
	k := &expansionKernel{
		n:   n,
		g:   make([]float64, 2*n+1),
		xg:  make([]float64, 2*n+1),
		xxg: make([]float64, 2*n+1),
	}

	sum := 0.0
	for x := -n; x <= n; x++ {
		v := math.Exp(-float64(x*x) / (2 * sigma * sigma))
		k.g[x+n] = v
		sum += v
	}
	for x := -n; x <= n; x++ {
		fx := float64(x)
		k.g[x+n] /= sum
		k.xg[x+n] = fx * k.g[x+n]
		k.xxg[x+n] = fx * fx * k.g[x+n]
	}

	var g00, g11, g33, g55 float64
	for y := -n; y <= n; y++ {
		for x := -n; x <= n; x++ {
			w := k.g[y+n] * k.g[x+n]
			fx, fy := float64(x), float64(y)
			g00 += w
			g11 += w * fx * fx
			g33 += w * fx * fx * fx * fx
			g55 += w * fx * fx * fy * fy
		}
	}

	// Basis order: 1, x, y, x^2, y^2, xy.
	G := mat.NewSymDense(6, nil)
	G.SetSym(0, 0, g00)
	G.SetSym(1, 1, g11)
	G.SetSym(2, 2, g11)
	G.SetSym(0, 3, g11)
	G.SetSym(0, 4, g11)
	G.SetSym(3, 3, g33)
	G.SetSym(4, 4, g33)
	G.SetSym(3, 4, g55)
	G.SetSym(5, 5, g55)

	var chol mat.Cholesky
	if ok := chol.Factorize(G); !ok {
		return nil, fmt.Errorf("polynomial expansion: normal matrix not positive definite (n=%d sigma=%v)", n, sigma)
	}
	var inv mat.SymDense
	if err := chol.InverseTo(&inv); err != nil {
		return nil, fmt.Errorf("polynomial expansion: invert normal matrix: %w", err)
	}
	k.ig11 = inv.At(1, 1)
	k.ig03 = inv.At(0, 3)
	k.ig33 = inv.At(3, 3)
	k.ig55 = inv.At(5, 5)
	return k, nil
}

// expand fits a quadratic polynomial around every pixel of img and returns
// the coefficients, numPolyChannels per pixel. Borders replicate edge pixels.
func (k *expansionKernel) expand(img []float64, width, height int) []float64 {
	n := k.n
	out := make([]float64, width*height*numPolyChannels)
	// Vertical pass results, three per pixel, padded by n pixels each side.
	row := make([]float64, (width+2*n)*3)
	at := func(x int) []float64 { return row[(x+n)*3 : (x+n)*3+3] }

	for y := 0; y < height; y++ {
		g0 := k.g[n]
		src := img[y*width : (y+1)*width]
		for x := 0; x < width; x++ {
			v := at(x)
			v[0] = src[x] * g0
			v[1], v[2] = 0, 0
		}
		for o := 1; o <= n; o++ {
			above := img[clampIndex(y-o, height)*width:]
			below := img[clampIndex(y+o, height)*width:]
			gk, xgk, xxgk := k.g[n+o], k.xg[n+o], k.xxg[n+o]
			for x := 0; x < width; x++ {
				p := above[x] + below[x]
				v := at(x)
				v[0] += gk * p
				v[1] += xgk * (below[x] - above[x])
				v[2] += xxgk * p
			}
		}
		for o := 1; o <= n; o++ {
			copy(at(-o), at(0))
			copy(at(width-1+o), at(width-1))
		}

		for x := 0; x < width; x++ {
			c := at(x)
			g0 := k.g[n]
			b1 := c[0] * g0
			b2 := 0.0
			b3 := c[1] * g0
			b4 := 0.0
			b5 := c[2] * g0
			b6 := 0.0
			for o := 1; o <= n; o++ {
				r, l := at(x+o), at(x-o)
				gk, xgk, xxgk := k.g[n+o], k.xg[n+o], k.xxg[n+o]
				tg := r[0] + l[0]
				b1 += tg * gk
				b4 += tg * xxgk
				b2 += (r[0] - l[0]) * xgk
				b3 += (r[1] + l[1]) * gk
				b6 += (r[1] - l[1]) * xgk
				b5 += (r[2] + l[2]) * gk
			}
			d := out[(y*width+x)*numPolyChannels:]
			d[chY] = b3 * k.ig11
			d[chX] = b2 * k.ig11
			d[chYY] = b1*k.ig03 + b5*k.ig33
			d[chXX] = b1*k.ig03 + b4*k.ig33
			d[chXY] = b6 * k.ig55
		}
	}
	return out
}
