// Package mnist locates, downloads and verifies the MNIST handwritten
// digit dataset and exposes it as sample sets for the study.
package mnist

import (
	"crypto/sha256"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	GoMNIST "github.com/petar/GoMNIST"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"github.com/lightonai/doubledescent/datasets"
)

// ImgSize is the side of one MNIST image.
const ImgSize = 28

// Classes is the number of digit classes.
const Classes = 10

const baseURL = "https://storage.googleapis.com/cvdf-datasets/mnist/"

const (
	trainSetImg = "train-images-idx3-ubyte.gz"
	trainSetVal = "train-labels-idx1-ubyte.gz"
	inferSetImg = "t10k-images-idx3-ubyte.gz"
	inferSetVal = "t10k-labels-idx1-ubyte.gz"
)

// sha256 digests of the canonical gz files
var digests = map[string]string{
	trainSetImg: "440fcabf73cc546fa21475e81ea370265605f56be210a4024d2ca8f203523609",
	trainSetVal: "3552534a0a558bbed6aed32b30c495cca23d567ec52cac8be1a0730e8010255c",
	inferSetImg: "8d422c7b0a1c1c79245a5bcf07fe86e33eeafee792b84584aec276f5a2dbc4e6",
	inferSetVal: "f7ae60f92e00ec6debd23a6088c31dbd2371eca3ffa0defaefb259924204aec6",
}

// SearchDirs lists the directories probed for an existing copy of the
// dataset, in order. The last entry is also the download target.
func SearchDirs() []string {
	dirs := []string{"/tmp/mnist"}
	if cache, err := os.UserCacheDir(); err == nil {
		dirs = append(dirs, filepath.Join(cache, "mnist"))
	}
	return dirs
}

// New returns the train and test sets, downloading and verifying the four
// idx files first if no local copy is found.
func New() (train, test datasets.Set, err error) {
	dirs := SearchDirs()
	for _, dir := range dirs {
		if verifyDir(dir) == nil {
			return Load(dir)
		}
	}
	target := dirs[len(dirs)-1]
	if err := Download(target); err != nil {
		return datasets.Set{}, datasets.Set{}, err
	}
	if err := verifyDir(target); err != nil {
		return datasets.Set{}, datasets.Set{}, err
	}
	return Load(target)
}

// Load parses the four idx gz files found under dir. No digest check is
// performed; use New for verified loading.
func Load(dir string) (train, test datasets.Set, err error) {
	tr, te, err := GoMNIST.Load(dir)
	if err != nil {
		return datasets.Set{}, datasets.Set{}, errors.Wrapf(err, "mnist: load %s", dir)
	}
	train, err = convert(tr)
	if err != nil {
		return datasets.Set{}, datasets.Set{}, err
	}
	test, err = convert(te)
	if err != nil {
		return datasets.Set{}, datasets.Set{}, err
	}
	return train, test, nil
}

// Download fetches any of the four gz files missing under dir and checks
// every digest afterwards.
func Download(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrap(err, "mnist: create dataset dir")
	}
	for name := range digests {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			continue
		}
		if err := fetch(baseURL+name, path); err != nil {
			return err
		}
	}
	return verifyDir(dir)
}

func fetch(url, path string) error {
	resp, err := http.Get(url)
	if err != nil {
		return errors.Wrapf(err, "mnist: fetch %s", url)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("mnist: fetch %s: %s", url, resp.Status)
	}
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "mnist: create download file")
	}
	_, err = io.Copy(f, resp.Body)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(path)
		return errors.Wrapf(err, "mnist: write %s", path)
	}
	return nil
}

func verifyDir(dir string) error {
	for name, want := range digests {
		if err := verifyFile(filepath.Join(dir, name), want); err != nil {
			return err
		}
	}
	return nil
}

func verifyFile(path, want string) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "mnist: open %s", path)
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return errors.Wrapf(err, "mnist: hash %s", path)
	}
	if got := fmt.Sprintf("%x", h.Sum(nil)); got != want {
		return fmt.Errorf("mnist: digest mismatch for %s: got %s want %s", path, got, want)
	}
	return nil
}

// convert turns a raw GoMNIST set into float64 rows scaled to [0, 1].
func convert(s *GoMNIST.Set) (datasets.Set, error) {
	n := len(s.Images)
	cols := s.NRow * s.NCol
	if n == 0 || cols == 0 {
		return datasets.Set{}, fmt.Errorf("mnist: empty set (%d images of %dx%d)", n, s.NRow, s.NCol)
	}
	if len(s.Labels) != n {
		return datasets.Set{}, fmt.Errorf("mnist: %d images but %d labels", n, len(s.Labels))
	}
	x := mat.NewDense(n, cols, nil)
	labels := make([]byte, n)
	for i, img := range s.Images {
		if len(img) != cols {
			return datasets.Set{}, fmt.Errorf("mnist: image %d has %d pixels, want %d", i, len(img), cols)
		}
		row := x.RawRowView(i)
		for j, p := range img {
			row[j] = float64(p) / 255
		}
		labels[i] = byte(s.Labels[i])
	}
	return datasets.Set{X: x, Labels: labels}, nil
}
