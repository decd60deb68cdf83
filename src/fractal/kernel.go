package fractal

import "github.com/chewxy/math32"

// GroupSize is the square workgroup edge the compute program is written for.
const GroupSize = 16

// baseSpan is the real-axis width of the view at zoom 1.
const baseSpan = 4.0

// Workgroups returns how many groups of the given size cover n invocations.
func Workgroups(n, size int) int {
	return (n + size - 1) / size
}

// Iterate runs the escape-time loop for the point (re, im) and returns the
// iteration count, maxIterations when the point never escapes.
func Iterate(re, im float32, maxIterations uint32) uint32 {
	var zr, zi float32
	var n uint32
	for n = 0; n < maxIterations; n++ {
		zr2 := zr * zr
		zi2 := zi * zi
		if zr2+zi2 > 4 {
			break
		}
		zi = 2*zr*zi + im
		zr = zr2 - zi2 + re
	}
	return n
}

// Shade maps an iteration count to an RGBA8 pixel. Interior points are
// black; escaped points follow a cosine palette over the scaled escape
// fraction.
func Shade(n, maxIterations uint32, colorScale float32) (r, g, b, a uint8) {
	if maxIterations == 0 || n >= maxIterations {
		return 0, 0, 0, 0xff
	}
	t := float32(n) * colorScale / float32(maxIterations)
	return channel(t, 0.0), channel(t, 0.6), channel(t, 1.0), 0xff
}

func channel(t, phase float32) uint8 {
	v := 0.5 + 0.5*math32.Cos(3.0+t*15.0+phase)
	return uint8(v * 255)
}

// point maps a pixel to the complex plane: the view spans baseSpan/Zoom
// units of the real axis centered on (CenterX, CenterY), imaginary span
// scaled by the aspect ratio.
func (p FrameParameters) point(x, y int) (re, im float32) {
	w := float32(p.ImageWidth)
	h := float32(p.ImageHeight)
	span := baseSpan / p.Zoom
	re = p.CenterX + ((float32(x)+0.5)/w-0.5)*span
	im = p.CenterY + ((float32(y)+0.5)/h-0.5)*span*(h/w)
	return re, im
}

// Pixel computes the RGBA8 value of one pixel.
func (p FrameParameters) Pixel(x, y int) (r, g, b, a uint8) {
	re, im := p.point(x, y)
	return Shade(Iterate(re, im, p.MaxIterations), p.MaxIterations, p.ColorScale)
}

// ComputeGroup runs one GroupSize x GroupSize workgroup, writing RGBA8
// pixels into out. Invocations outside the image are clipped, which is what
// makes the ceil-divided dispatch grid safe at non-multiple extents.
func ComputeGroup(p FrameParameters, out []byte, groupX, groupY int) {
	for ly := 0; ly < GroupSize; ly++ {
		y := groupY*GroupSize + ly
		if y >= int(p.ImageHeight) {
			break
		}
		for lx := 0; lx < GroupSize; lx++ {
			x := groupX*GroupSize + lx
			if x >= int(p.ImageWidth) {
				break
			}
			r, g, b, a := p.Pixel(x, y)
			o := (y*int(p.ImageWidth) + x) * 4
			out[o+0] = r
			out[o+1] = g
			out[o+2] = b
			out[o+3] = a
		}
	}
}

// Kernel is the escape-time program in the shape the software compute
// pipeline dispatches: params holds the encoded FrameParameters block and
// out the RGBA8 storage buffer. A short params block leaves out untouched,
// mirroring a shader reading an unbound uniform.
func Kernel(params, out []byte, groupX, groupY int) {
	p, err := DecodeParameters(params)
	if err != nil {
		return
	}
	ComputeGroup(p, out, groupX, groupY)
}
