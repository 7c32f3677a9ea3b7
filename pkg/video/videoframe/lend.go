package videoframe

// Callback is invoked once per captured frame. The frame is only valid
// for the duration of the call.
type Callback func(*Frame) error

// Frame is an exclusive, time boxed view of a capture buffer. Once the
// callback it was lent to returns, Pix returns nil and the dimensions
// read as zero. Copy the pixels if they are needed later.
type Frame struct {
	seq      uint64
	geometry Geometry
	pix      []byte
}

// Lend hands pix to fn as a Frame and revokes the view when fn returns.
func Lend(seq uint64, g Geometry, pix []byte, fn Callback) error {
	f := &Frame{seq: seq, geometry: g, pix: pix}
	defer f.revoke()
	return fn(f)
}

func (f *Frame) revoke() {
	f.pix = nil
	f.geometry = Geometry{}
}

// Seq is the capture order number, starting at 1.
func (f *Frame) Seq() uint64 { return f.seq }

func (f *Frame) Pix() []byte { return f.pix }

func (f *Frame) Width() int { return f.geometry.Width }

func (f *Frame) Height() int { return f.geometry.Height }

func (f *Frame) Geometry() Geometry { return f.geometry }

// Valid reports whether the frame is still lent out.
func (f *Frame) Valid() bool { return f.pix != nil }
