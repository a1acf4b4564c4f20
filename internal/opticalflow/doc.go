// Package opticalflow computes dense optical flow between two grayscale
// frames with Gunnar Farnebäck's polynomial expansion method.
//
// Each pixel neighbourhood is approximated by a quadratic polynomial; the
// displacement between frames falls out of how the polynomial coefficients
// shift. The estimate runs coarse-to-fine over an image pyramid, averaging
// the per-pixel constraints over a box window before solving for the flow.
//
// The arithmetic follows the widely used reference formulation (pyramid
// construction, border attenuation, regularised 2x2 solve) in float64, so
// results track that implementation closely without being bit-identical.
package opticalflow
