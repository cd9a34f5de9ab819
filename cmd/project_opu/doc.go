// Package main provides a minimal call into the optical processing unit:
// it opens a session, projects a random binary batch and prints the
// shape and value bounds of what comes back.
package main
