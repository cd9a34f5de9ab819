package main

import "flag"
import "fmt"
import "math/rand"
import "time"

import "github.com/lightonai/doubledescent/features"
import "github.com/lightonai/doubledescent/opu"

func main() {
	components := flag.Int("components", 1024, "projected width")
	rows := flag.Int("rows", 4, "rows in the random batch")
	bits := flag.Int("bits", 784, "bits per row")
	socket := flag.String("socket", "", "daemon socket path (default "+opu.DefaultSocket+")")
	seed := flag.Int64("seed", 1, "prng seed for the batch")
	flag.Parse()

	batch, err := features.NewBitMatrix(*rows, *bits)
	if err != nil {
		panic(err.Error())
	}
	rng := rand.New(rand.NewSource(*seed))
	for i := 0; i < *rows; i++ {
		for j := 0; j < *bits; j++ {
			if rng.Intn(2) == 1 {
				batch.Set(i, j)
			}
		}
	}

	opts := []opu.Option{}
	if *socket != "" {
		opts = append(opts, opu.WithSocket(*socket))
	}
	session, err := opu.New(*bits, *components, opts...)
	if err != nil {
		panic(err.Error())
	}
	defer session.Close()
	fmt.Printf("session %s: %d bits -> %d components\n", session.Session(), *bits, *components)

	start := time.Now()
	out, err := session.Transform2D(batch)
	if err != nil {
		panic(err.Error())
	}
	elapsed := time.Since(start)

	lo, hi := out[0][0], out[0][0]
	for _, row := range out {
		for _, v := range row {
			if v < lo {
				lo = v
			}
			if v > hi {
				hi = v
			}
		}
	}
	fmt.Printf("shape=(%d, %d) dtype=uint8 min=%d max=%d elapsed=%v\n",
		len(out), len(out[0]), lo, hi, elapsed.Round(time.Microsecond))
}
