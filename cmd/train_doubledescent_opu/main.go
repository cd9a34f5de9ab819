package main

import "flag"
import "fmt"
import "math/rand"
import "strconv"
import "strings"

import "github.com/lightonai/doubledescent/datasets"
import "github.com/lightonai/doubledescent/datasets/mnist"
import "github.com/lightonai/doubledescent/features"
import "github.com/lightonai/doubledescent/opu"
import "github.com/lightonai/doubledescent/sweep"

func parseComponents(s string) ([]int, error) {
	parts := strings.Split(s, ",")
	out := make([]int, 0, len(parts))
	for _, p := range parts {
		k, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, fmt.Errorf("component list %q: %v", s, err)
		}
		out = append(out, k)
	}
	return out, nil
}

func loadSets(featuresFile, dataDir string, trainN, testN int, seed int64) (train, test datasets.Set, err error) {
	if featuresFile != "" {
		extract, err := features.ReadFile(featuresFile)
		if err != nil {
			return datasets.Set{}, datasets.Set{}, err
		}
		return extract.Train, extract.Test, nil
	}
	if dataDir != "" {
		if err := mnist.Download(dataDir); err != nil {
			return datasets.Set{}, datasets.Set{}, err
		}
		train, test, err = mnist.Load(dataDir)
	} else {
		train, test, err = mnist.New()
	}
	if err != nil {
		return datasets.Set{}, datasets.Set{}, err
	}
	rng := rand.New(rand.NewSource(seed))
	train.Shuffle(rng)
	test.Shuffle(rng)
	if trainN > 0 && trainN < train.Len() {
		if train, err = train.Head(trainN); err != nil {
			return datasets.Set{}, datasets.Set{}, err
		}
	}
	if testN > 0 && testN < test.Len() {
		if test, err = test.Head(testN); err != nil {
			return datasets.Set{}, datasets.Set{}, err
		}
	}
	return train, test, nil
}

func main() {
	featuresFile := flag.String("features", "", "feature extract file; raw pixels when empty")
	components := flag.String("components", "16,32,64,128,256,512,1024,2048,4096", "component counts to evaluate")
	alpha := flag.Float64("alpha", 1e-6, "ridge penalty")
	seed := flag.Int64("seed", 42, "prng seed")
	trainN := flag.Int("train-n", 10000, "training samples to keep (0 = all)")
	testN := flag.Int("test-n", 2000, "test samples to keep (0 = all)")
	dataDir := flag.String("data", "", "dataset directory; cache dirs when empty")
	socket := flag.String("socket", "", "daemon socket path; OPU_SOCKET or the default when empty")
	threshold := flag.Float64("threshold", 0.5, "boolean encoding threshold")
	csvOut := flag.String("csv", "curve.csv", "curve CSV output")
	pngOut := flag.String("png", "curve.png", "curve PNG output")
	flag.Parse()

	ks, err := parseComponents(*components)
	if err != nil {
		panic(err.Error())
	}
	train, test, err := loadSets(*featuresFile, *dataDir, *trainN, *testN, *seed)
	if err != nil {
		panic(err.Error())
	}
	fmt.Printf("samples: %d train, %d test, %d features\n", train.Len(), test.Len(), train.Features())

	maxK := ks[0]
	for _, k := range ks {
		if k > maxK {
			maxK = k
		}
	}
	backend, err := opu.New(train.Features(), maxK,
		opu.WithSocket(*socket),
		opu.WithThreshold(*threshold))
	if err != nil {
		panic(err.Error())
	}
	defer backend.Close()
	fmt.Printf("opu session %s: %d bits -> %d components\n",
		backend.Session(), backend.Features(), backend.Components())

	curve, err := sweep.Run(backend, train, test, sweep.Config{
		Components: ks,
		Alpha:      *alpha,
		Classes:    mnist.Classes,
		Verbose:    true,
	})
	if err != nil {
		panic(err.Error())
	}

	if err := curve.WriteCSVFile(*csvOut); err != nil {
		panic(err.Error())
	}
	if err := curve.Plot(*pngOut); err != nil {
		panic(err.Error())
	}

	best := curve[0]
	for _, p := range curve {
		if p.TestErr < best.TestErr {
			best = p
		}
	}
	fmt.Printf("best test error %.4f at %d components; curve in %s and %s\n",
		best.TestErr, best.Components, *csvOut, *pngOut)
}
