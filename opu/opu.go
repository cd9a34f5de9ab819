// Package opu is the client for the optical processing unit daemon. The
// daemon performs the physical random projection; this side only frames
// bit-packed rows onto the session socket and reads back 8-bit counts.
package opu

import (
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"os"
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"github.com/lightonai/doubledescent/features"
)

// DefaultSocket is the daemon's unix socket path.
const DefaultSocket = "/var/run/opud.sock"

// EnvSocket overrides DefaultSocket when set.
const EnvSocket = "OPU_SOCKET"

var magic = [4]byte{'O', 'P', 'U', '1'}

const (
	opTransform = 1
	opClose     = 2
)

// ErrClosed is returned when a released session is used.
var ErrClosed = errors.New("opu: session is closed")

// OPU is one projection session on the optical processing unit.
type OPU struct {
	features   int
	components int
	session    uuid.UUID
	threshold  float64

	mut    sync.Mutex
	conn   net.Conn
	closed bool
}

// Option adjusts session setup.
type Option func(*config)

type config struct {
	socket    string
	conn      net.Conn
	threshold float64
}

// WithSocket dials the daemon at the given unix socket path.
func WithSocket(path string) Option {
	return func(c *config) { c.socket = path }
}

// WithConn uses an established connection instead of dialing.
func WithConn(conn net.Conn) Option {
	return func(c *config) { c.conn = conn }
}

// WithThreshold sets the binarization threshold used by Transform.
func WithThreshold(t float64) Option {
	return func(c *config) { c.threshold = t }
}

// New opens a session projecting features-bit rows to components counts.
func New(featureBits, components int, opts ...Option) (*OPU, error) {
	if featureBits <= 0 || components <= 0 {
		return nil, fmt.Errorf("opu: session shape %d -> %d", featureBits, components)
	}
	cfg := config{threshold: 0.5}
	for _, opt := range opts {
		opt(&cfg)
	}
	conn := cfg.conn
	if conn == nil {
		path := cfg.socket
		if path == "" {
			path = os.Getenv(EnvSocket)
		}
		if path == "" {
			path = DefaultSocket
		}
		var err error
		conn, err = net.Dial("unix", path)
		if err != nil {
			return nil, errors.Wrap(err, "opu: dial daemon")
		}
	}
	o := &OPU{
		features:   featureBits,
		components: components,
		session:    uuid.New(),
		threshold:  cfg.threshold,
		conn:       conn,
	}
	if err := o.handshake(); err != nil {
		conn.Close()
		return nil, err
	}
	return o, nil
}

func (o *OPU) handshake() error {
	var req [28]byte
	copy(req[0:4], magic[:])
	copy(req[4:20], o.session[:])
	binary.LittleEndian.PutUint32(req[20:24], uint32(o.components))
	binary.LittleEndian.PutUint32(req[24:28], uint32(o.features))
	if _, err := o.conn.Write(req[:]); err != nil {
		return errors.Wrap(err, "opu: send handshake")
	}

	var resp [5]byte
	if _, err := io.ReadFull(o.conn, resp[:]); err != nil {
		return errors.Wrap(err, "opu: read handshake")
	}
	if [4]byte(resp[0:4]) != magic {
		return fmt.Errorf("opu: daemon spoke %q, want %q", resp[0:4], magic[:])
	}
	if resp[4] != 0 {
		msg, err := readMessage(o.conn)
		if err != nil {
			return errors.Wrap(err, "opu: read rejection")
		}
		return fmt.Errorf("opu: daemon rejected session: %s", msg)
	}
	return nil
}

func readMessage(r io.Reader) (string, error) {
	var n uint16
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return "", err
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}

// Features returns the session's input width in bits.
func (o *OPU) Features() int { return o.features }

// Components returns the projected width.
func (o *OPU) Components() int { return o.components }

// Session returns the session id.
func (o *OPU) Session() uuid.UUID { return o.session }

// Transform1D projects one bit-packed row and returns its counts, one
// uint8 per component.
func (o *OPU) Transform1D(row []uint64) ([]uint8, error) {
	wpr := (o.features + 63) / 64
	if len(row) != wpr {
		return nil, fmt.Errorf("opu: row of %d words, session wants %d", len(row), wpr)
	}
	out, err := o.transform(1, wpr, row)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Transform2D projects every row of a bit matrix. The result holds one
// components-long count row per input row.
func (o *OPU) Transform2D(b *features.BitMatrix) ([][]uint8, error) {
	if b.Cols() != o.features {
		return nil, fmt.Errorf("opu: %d-bit rows, session wants %d", b.Cols(), o.features)
	}
	rows := b.Rows()
	wpr := b.WordsPerRow()
	payload := make([]uint64, 0, rows*wpr)
	for i := 0; i < rows; i++ {
		payload = append(payload, b.Row(i)...)
	}
	flat, err := o.transform(rows, wpr, payload)
	if err != nil {
		return nil, err
	}
	out := make([][]uint8, rows)
	for i := range out {
		out[i] = flat[i*o.components : (i+1)*o.components]
	}
	return out, nil
}

// Transform binarizes src at the session threshold and projects it,
// returning the counts as float64 so the optical path plugs into the
// same call sites as the explicit matrix backends.
func (o *OPU) Transform(src *mat.Dense) (*mat.Dense, error) {
	bits, err := features.Binarize(src, o.threshold)
	if err != nil {
		return nil, err
	}
	rows, err := o.Transform2D(bits)
	if err != nil {
		return nil, err
	}
	out := mat.NewDense(len(rows), o.components, nil)
	for i, counts := range rows {
		dst := out.RawRowView(i)
		for j, v := range counts {
			dst[j] = float64(v)
		}
	}
	return out, nil
}

func (o *OPU) transform(rows, wpr int, payload []uint64) ([]uint8, error) {
	o.mut.Lock()
	defer o.mut.Unlock()
	if o.closed {
		return nil, ErrClosed
	}

	var hdr [9]byte
	hdr[0] = opTransform
	binary.LittleEndian.PutUint32(hdr[1:5], uint32(rows))
	binary.LittleEndian.PutUint32(hdr[5:9], uint32(wpr))
	if _, err := o.conn.Write(hdr[:]); err != nil {
		return nil, errors.Wrap(err, "opu: send transform header")
	}
	if err := binary.Write(o.conn, binary.LittleEndian, payload); err != nil {
		return nil, errors.Wrap(err, "opu: send rows")
	}

	var resp [10]byte
	if _, err := io.ReadFull(o.conn, resp[:]); err != nil {
		return nil, errors.Wrap(err, "opu: read transform header")
	}
	if resp[0] != opTransform {
		return nil, fmt.Errorf("opu: unexpected opcode %d in response", resp[0])
	}
	if resp[1] != 0 {
		msg, err := readMessage(o.conn)
		if err != nil {
			return nil, errors.Wrap(err, "opu: read failure reason")
		}
		return nil, fmt.Errorf("opu: transform failed: %s", msg)
	}
	gotRows := int(binary.LittleEndian.Uint32(resp[2:6]))
	gotComps := int(binary.LittleEndian.Uint32(resp[6:10]))
	if gotRows != rows || gotComps != o.components {
		return nil, fmt.Errorf("opu: daemon returned %dx%d, want %dx%d", gotRows, gotComps, rows, o.components)
	}
	out := make([]uint8, rows*o.components)
	if _, err := io.ReadFull(o.conn, out); err != nil {
		return nil, errors.Wrap(err, "opu: read counts")
	}
	return out, nil
}

// Close releases the session and the connection.
func (o *OPU) Close() error {
	o.mut.Lock()
	defer o.mut.Unlock()
	if o.closed {
		return nil
	}
	o.closed = true
	o.conn.Write([]byte{opClose})
	return o.conn.Close()
}
