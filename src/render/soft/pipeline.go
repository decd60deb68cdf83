package soft

import (
	"errors"
	"fmt"

	"github.com/UntitledError-09/fractal-generator/src/render"
)

// KernelFunc is the shape of a compute program this backend can run: params
// is the raw uniform block, out the storage buffer, groupX and groupY the
// workgroup being invoked.
type KernelFunc func(params, out []byte, groupX, groupY int)

// ComputePipeline binds a kernel to its parameter and output buffers, the
// way a descriptor set would.
type ComputePipeline struct {
	kernel KernelFunc
	params *buffer
	output *buffer
}

func NewComputePipeline(kernel KernelFunc, params, output render.Buffer) (*ComputePipeline, error) {
	if kernel == nil {
		return nil, errors.New("soft: compute pipeline needs a kernel")
	}
	pb, ok := params.(*buffer)
	if !ok {
		return nil, errors.New("soft: params buffer is not a soft buffer")
	}
	ob, ok := output.(*buffer)
	if !ok {
		return nil, errors.New("soft: output buffer is not a soft buffer")
	}
	return &ComputePipeline{kernel: kernel, params: pb, output: ob}, nil
}

func (c *ComputePipeline) dispatch(groupsX, groupsY, groupsZ int) error {
	if groupsX <= 0 || groupsY <= 0 || groupsZ <= 0 {
		return nil
	}
	pb := c.params.bytes()
	ob := c.output.bytes()
	if pb == nil || ob == nil {
		return errors.New("soft: dispatch against unbound buffer memory")
	}
	for gy := 0; gy < groupsY; gy++ {
		for gx := 0; gx < groupsX; gx++ {
			c.kernel(pb, ob, gx, gy)
		}
	}
	return nil
}

// GraphicsPipeline samples a shader-readable image into the bound render
// target, nearest-filtered over the full target extent.
type GraphicsPipeline struct {
	view    *imageView
	sampler *sampler
}

func NewGraphicsPipeline(view render.ImageView, smp render.Sampler) (*GraphicsPipeline, error) {
	v, ok := view.(*imageView)
	if !ok {
		return nil, errors.New("soft: view is not a soft image view")
	}
	s, ok := smp.(*sampler)
	if !ok {
		return nil, errors.New("soft: sampler is not a soft sampler")
	}
	return &GraphicsPipeline{view: v, sampler: s}, nil
}

func (g *GraphicsPipeline) draw(target *surfaceImage) error {
	src := g.view.img
	if src.layout != render.ImageShaderRead {
		return fmt.Errorf("soft: sampling image in layout %s, want %s",
			src.layout, render.ImageShaderRead)
	}
	pixels := src.bytes()
	if pixels == nil {
		return errors.New("soft: sampling unbound image")
	}
	swizzle := src.format == render.FormatRGBA8 && target.format == render.FormatBGRA8 ||
		src.format == render.FormatBGRA8 && target.format == render.FormatRGBA8
	for ty := 0; ty < target.height; ty++ {
		sy := ty * src.height / target.height
		for tx := 0; tx < target.width; tx++ {
			sx := tx * src.width / target.width
			so := (sy*src.width + sx) * 4
			to := (ty*target.width + tx) * 4
			if swizzle {
				target.pixels[to+0] = pixels[so+2]
				target.pixels[to+1] = pixels[so+1]
				target.pixels[to+2] = pixels[so+0]
				target.pixels[to+3] = pixels[so+3]
			} else {
				copy(target.pixels[to:to+4], pixels[so:so+4])
			}
		}
	}
	return nil
}

// PipelineProvider builds soft pipelines around one kernel. It satisfies the
// orchestrator's provider contract.
type PipelineProvider struct {
	Kernel KernelFunc
}

func (p PipelineProvider) ComputePipeline(params, output render.Buffer) (render.ComputePipeline, error) {
	return NewComputePipeline(p.Kernel, params, output)
}

func (p PipelineProvider) GraphicsPipeline(view render.ImageView, smp render.Sampler) (render.GraphicsPipeline, error) {
	return NewGraphicsPipeline(view, smp)
}
