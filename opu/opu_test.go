package opu

import (
	"encoding/binary"
	"io"
	"math/rand"
	"net"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/lightonai/doubledescent/datasets"
	"github.com/lightonai/doubledescent/features"
	"github.com/lightonai/doubledescent/projection"
	"github.com/lightonai/doubledescent/sweep"
)

var _ projection.Backend = (*OPU)(nil)

// fakeDaemon speaks the session protocol and answers each row with
// counts derived from the payload, so responses are deterministic.
func fakeDaemon(t *testing.T, conn net.Conn, reject string) {
	t.Helper()
	defer conn.Close()

	var hs [28]byte
	if _, err := io.ReadFull(conn, hs[:]); err != nil {
		return
	}
	if string(hs[0:4]) != "OPU1" {
		t.Errorf("handshake magic %q", hs[0:4])
		return
	}
	components := int(binary.LittleEndian.Uint32(hs[20:24]))

	if reject != "" {
		conn.Write([]byte("OPU1"))
		conn.Write([]byte{1})
		binary.Write(conn, binary.LittleEndian, uint16(len(reject)))
		conn.Write([]byte(reject))
		return
	}
	conn.Write([]byte("OPU1"))
	conn.Write([]byte{0})

	for {
		var op [1]byte
		if _, err := io.ReadFull(conn, op[:]); err != nil {
			return
		}
		if op[0] != opTransform {
			return
		}
		var dims [8]byte
		if _, err := io.ReadFull(conn, dims[:]); err != nil {
			return
		}
		rows := int(binary.LittleEndian.Uint32(dims[0:4]))
		wpr := int(binary.LittleEndian.Uint32(dims[4:8]))
		payload := make([]uint64, rows*wpr)
		if err := binary.Read(conn, binary.LittleEndian, payload); err != nil {
			return
		}

		resp := make([]byte, 10)
		resp[0] = opTransform
		binary.LittleEndian.PutUint32(resp[2:6], uint32(rows))
		binary.LittleEndian.PutUint32(resp[6:10], uint32(components))
		conn.Write(resp)
		out := make([]byte, rows*components)
		for i := 0; i < rows; i++ {
			var sum uint64
			for _, w := range payload[i*wpr : (i+1)*wpr] {
				sum += w
			}
			for j := 0; j < components; j++ {
				out[i*components+j] = byte(sum + uint64(j)*7)
			}
		}
		conn.Write(out)
	}
}

func newTestOPU(t *testing.T, featureBits, components int) *OPU {
	t.Helper()
	client, server := net.Pipe()
	go fakeDaemon(t, server, "")
	o, err := New(featureBits, components, WithConn(client))
	if err != nil {
		t.Fatal(err)
	}
	return o
}

func TestTransform2D(t *testing.T) {
	o := newTestOPU(t, 70, 8)
	defer o.Close()

	bits, err := features.NewBitMatrix(3, 70)
	if err != nil {
		t.Fatal(err)
	}
	bits.Set(0, 1)
	bits.Set(1, 69)
	bits.Set(2, 5)
	bits.Set(2, 64)

	out, err := o.Transform2D(bits)
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 3 {
		t.Fatalf("got %d rows, want 3", len(out))
	}
	for i, row := range out {
		if len(row) != 8 {
			t.Fatalf("row %d has %d counts, want 8", i, len(row))
		}
	}
	again, err := o.Transform2D(bits)
	if err != nil {
		t.Fatal(err)
	}
	for i := range out {
		for j := range out[i] {
			if out[i][j] != again[i][j] {
				t.Fatal("same rows projected to different counts")
			}
		}
	}
}

func TestTransform1D(t *testing.T) {
	o := newTestOPU(t, 64, 4)
	defer o.Close()

	out, err := o.Transform1D([]uint64{0xdeadbeef})
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 4 {
		t.Fatalf("got %d counts, want 4", len(out))
	}
	if _, err := o.Transform1D([]uint64{1, 2}); err == nil {
		t.Error("oversized row accepted")
	}
}

func TestTransformBackend(t *testing.T) {
	o := newTestOPU(t, 6, 5)
	defer o.Close()

	src := mat.NewDense(2, 6, []float64{
		0, 1, 0, 1, 0, 1,
		1, 1, 1, 0, 0, 0,
	})
	out, err := o.Transform(src)
	if err != nil {
		t.Fatal(err)
	}
	r, c := out.Dims()
	if r != 2 || c != 5 {
		t.Fatalf("projected shape %dx%d, want 2x5", r, c)
	}
	// counts are uint8 on the wire
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			v := out.At(i, j)
			if v < 0 || v > 255 || v != float64(uint8(v)) {
				t.Fatalf("count %v at (%d,%d) is not a uint8 value", v, i, j)
			}
		}
	}
}

// the session drives the full error curve like any other backend
func TestSweepThroughSession(t *testing.T) {
	const p = 24
	o := newTestOPU(t, p, 16)
	defer o.Close()

	set := func(n int, seed int64) datasets.Set {
		rng := rand.New(rand.NewSource(seed))
		x := mat.NewDense(n, p, nil)
		labels := make([]byte, n)
		for i := 0; i < n; i++ {
			labels[i] = byte(i % 2)
			for j := 0; j < p; j++ {
				x.Set(i, j, float64(labels[i])*rng.Float64())
			}
		}
		return datasets.Set{X: x, Labels: labels}
	}

	curve, err := sweep.Run(o, set(40, 1), set(12, 2), sweep.Config{
		Components: []int{4, 16},
		Alpha:      1e-2,
		Classes:    2,
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(curve) != 2 {
		t.Fatalf("curve has %d points, want 2", len(curve))
	}
	for _, pt := range curve {
		if pt.TrainErr < 0 || pt.TrainErr > 1 || pt.TestErr < 0 || pt.TestErr > 1 {
			t.Errorf("errors out of [0,1] at %d components: %v / %v", pt.Components, pt.TrainErr, pt.TestErr)
		}
	}
}

func TestFeatureWidthMismatch(t *testing.T) {
	o := newTestOPU(t, 70, 8)
	defer o.Close()
	bits, err := features.NewBitMatrix(2, 60)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := o.Transform2D(bits); err == nil {
		t.Error("width mismatch accepted")
	}
}

func TestRejectedSession(t *testing.T) {
	client, server := net.Pipe()
	go fakeDaemon(t, server, "device busy")
	if _, err := New(64, 8, WithConn(client)); err == nil {
		t.Fatal("rejected handshake did not error")
	}
}

func TestClosedSession(t *testing.T) {
	o := newTestOPU(t, 64, 4)
	if err := o.Close(); err != nil {
		t.Fatal(err)
	}
	if err := o.Close(); err != nil {
		t.Errorf("second close errored: %v", err)
	}
	if _, err := o.Transform1D([]uint64{1}); err != ErrClosed {
		t.Errorf("transform on closed session returned %v, want ErrClosed", err)
	}
}

func TestBadShapes(t *testing.T) {
	if _, err := New(0, 4); err == nil {
		t.Error("zero feature bits accepted")
	}
	if _, err := New(4, 0); err == nil {
		t.Error("zero components accepted")
	}
}
