// Package main provides the optical run of the double descent study. It
// is the same experiment as train_doubledescent with the projection
// performed by the optical processing unit daemon: features are boolean
// encoded at a threshold and each row comes back as uint8 counts.
package main
