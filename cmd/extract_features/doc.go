// Package main provides the feature extraction step of the double descent
// study: it trains a small autoencoder on MNIST, encodes both splits into
// feature rows, boolean-encodes them for the optical path and saves the
// result for the training commands.
package main
