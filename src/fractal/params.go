package fractal

import (
	"encoding/binary"
	"fmt"

	"github.com/chewxy/math32"
)

// ParametersSize is the wire size of the parameters uniform block.
const ParametersSize = 32

// FrameParameters is the fixed-layout value copied verbatim into the
// parameters buffer each frame. Field order and sizes match the 32-byte
// block the compute program consumes; 4 bytes of tail padding keep the
// block a multiple of 16.
type FrameParameters struct {
	CenterX       float32
	CenterY       float32
	Zoom          float32
	MaxIterations uint32
	ImageWidth    uint32
	ImageHeight   uint32
	ColorScale    float32
}

// DefaultParameters is the classic full-set view.
func DefaultParameters() FrameParameters {
	return FrameParameters{
		CenterX:       -0.5,
		CenterY:       0,
		Zoom:          1,
		MaxIterations: 100,
		ImageWidth:    800,
		ImageHeight:   600,
		ColorScale:    1,
	}
}

// Encode serializes the block little-endian into a fresh slice of
// ParametersSize bytes. The padding tail is zero.
func (p FrameParameters) Encode() []byte {
	out := make([]byte, ParametersSize)
	le := binary.LittleEndian
	le.PutUint32(out[0:], math32.Float32bits(p.CenterX))
	le.PutUint32(out[4:], math32.Float32bits(p.CenterY))
	le.PutUint32(out[8:], math32.Float32bits(p.Zoom))
	le.PutUint32(out[12:], p.MaxIterations)
	le.PutUint32(out[16:], p.ImageWidth)
	le.PutUint32(out[20:], p.ImageHeight)
	le.PutUint32(out[24:], math32.Float32bits(p.ColorScale))
	return out
}

// DecodeParameters reads an encoded block back.
func DecodeParameters(in []byte) (FrameParameters, error) {
	if len(in) < ParametersSize {
		return FrameParameters{}, fmt.Errorf("decode parameters: need %d bytes, got %d", ParametersSize, len(in))
	}
	le := binary.LittleEndian
	return FrameParameters{
		CenterX:       math32.Float32frombits(le.Uint32(in[0:])),
		CenterY:       math32.Float32frombits(le.Uint32(in[4:])),
		Zoom:          math32.Float32frombits(le.Uint32(in[8:])),
		MaxIterations: le.Uint32(in[12:]),
		ImageWidth:    le.Uint32(in[16:]),
		ImageHeight:   le.Uint32(in[20:]),
		ColorScale:    math32.Float32frombits(le.Uint32(in[24:])),
	}, nil
}

// OutputSize returns the byte size of the RGBA8 output buffer the parameters
// describe.
func (p FrameParameters) OutputSize() int64 {
	return int64(p.ImageWidth) * int64(p.ImageHeight) * 4
}
