// Package main provides the CPU run of the double descent study: random
// features are produced by an explicit Gaussian matrix multiplied in
// cache-sized blocks, a ridge readout is fitted at every requested width
// and the error curve is written as CSV and PNG.
package main
