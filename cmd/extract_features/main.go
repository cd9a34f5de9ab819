package main

import "flag"
import "fmt"
import "math/rand"
import "time"

import "github.com/lightonai/doubledescent/datasets"
import "github.com/lightonai/doubledescent/datasets/mnist"
import "github.com/lightonai/doubledescent/features"

// loadMnist reads the dataset from dir, fetching missing files into it
// first; with no dir the package cache directories are used.
func loadMnist(dir string) (train, test datasets.Set, err error) {
	if dir == "" {
		return mnist.New()
	}
	if err := mnist.Download(dir); err != nil {
		return datasets.Set{}, datasets.Set{}, err
	}
	return mnist.Load(dir)
}

func main() {
	out := flag.String("out", "features.gob", "output file for the extracted features")
	hidden := flag.Int("hidden", 256, "autoencoder hidden width")
	epochs := flag.Int("epochs", 3, "autoencoder training epochs")
	batch := flag.Int("batch", 64, "minibatch size")
	rate := flag.Float64("rate", 0.5, "learning rate")
	seed := flag.Int64("seed", 42, "prng seed")
	threshold := flag.Float64("threshold", 0.5, "boolean encoding threshold")
	trainN := flag.Int("train-n", 10000, "training samples to keep (0 = all)")
	testN := flag.Int("test-n", 2000, "test samples to keep (0 = all)")
	dataDir := flag.String("data", "", "dataset directory; cache dirs when empty")
	flag.Parse()

	start := time.Now()
	train, test, err := loadMnist(*dataDir)
	if err != nil {
		panic(err.Error())
	}
	fmt.Printf("loaded mnist: %d train, %d test (%v)\n", train.Len(), test.Len(), time.Since(start).Round(time.Millisecond))

	rng := rand.New(rand.NewSource(*seed))
	train.Shuffle(rng)
	test.Shuffle(rng)
	if *trainN > 0 && *trainN < train.Len() {
		if train, err = train.Head(*trainN); err != nil {
			panic(err.Error())
		}
	}
	if *testN > 0 && *testN < test.Len() {
		if test, err = test.Head(*testN); err != nil {
			panic(err.Error())
		}
	}

	enc, err := features.NewEncoder(train.Features(), *hidden, *seed)
	if err != nil {
		panic(err.Error())
	}
	start = time.Now()
	losses, err := enc.Train(train.X, features.TrainConfig{
		Epochs:    *epochs,
		BatchSize: *batch,
		Rate:      *rate,
		Seed:      *seed,
	})
	if err != nil {
		panic(err.Error())
	}
	for i, l := range losses {
		fmt.Printf("epoch=%d reconstruction_mse=%.5f\n", i+1, l)
	}
	fmt.Printf("trained autoencoder in %v\n", time.Since(start).Round(time.Millisecond))

	trainFeat, err := enc.Encode(train.X)
	if err != nil {
		panic(err.Error())
	}
	testFeat, err := enc.Encode(test.X)
	if err != nil {
		panic(err.Error())
	}
	trainBits, err := features.Binarize(trainFeat, *threshold)
	if err != nil {
		panic(err.Error())
	}
	testBits, err := features.Binarize(testFeat, *threshold)
	if err != nil {
		panic(err.Error())
	}

	extract := features.Extract{
		Train:     datasets.Set{X: trainFeat, Labels: train.Labels},
		Test:      datasets.Set{X: testFeat, Labels: test.Labels},
		TrainBits: trainBits,
		TestBits:  testBits,
		Threshold: *threshold,
	}
	if err := extract.WriteFile(*out); err != nil {
		panic(err.Error())
	}
	fmt.Printf("wrote %d-wide features for %d+%d samples to %s\n",
		*hidden, train.Len(), test.Len(), *out)
}
