//go:build cgo

// Package main provides the CUDA run of the double descent study. It is
// the same experiment as train_doubledescent with the block multiplies
// executed on device 0, kept as a separate binary so only this command
// links the CUDA toolkit.
package main
