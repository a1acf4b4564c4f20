// Package scoring reduces a sampled frame sequence to the two signals the
// verdict policies consume: a frequency-domain artifact score and a mean
// optical-flow motion score.
package scoring
