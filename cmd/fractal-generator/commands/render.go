package commands

import (
	"fmt"
	"image"
	"image/png"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/UntitledError-09/fractal-generator/src/engine"
	"github.com/UntitledError-09/fractal-generator/src/fractal"
	"github.com/UntitledError-09/fractal-generator/src/logging"
	"github.com/UntitledError-09/fractal-generator/src/render/soft"
)

var renderCmd = &cobra.Command{
	Use:   "render",
	Short: "Render fractal frames and write the last one as a PNG",
	Long: `Render runs the full frame pipeline on the software device: uploads
the frame parameters, dispatches the compute kernel, copies the result
into a sampled image and presents it. The last presented frame is
written to the output path.`,
	RunE: runRender,
}

func init() {
	renderCmd.Flags().Int("width", 800, "output width in pixels")
	renderCmd.Flags().Int("height", 600, "output height in pixels")
	renderCmd.Flags().Float32("center-x", -0.5, "real coordinate at the image center")
	renderCmd.Flags().Float32("center-y", 0, "imaginary coordinate at the image center")
	renderCmd.Flags().Float32("zoom", 1, "magnification factor")
	renderCmd.Flags().Uint32("iterations", 100, "escape iteration limit")
	renderCmd.Flags().Float32("color-scale", 1, "palette cycling speed")
	renderCmd.Flags().Int("frames", 1, "number of frames to render")
	renderCmd.Flags().StringP("output", "o", "fractal.png", "output PNG path")

	viper.BindPFlag("width", renderCmd.Flags().Lookup("width"))
	viper.BindPFlag("height", renderCmd.Flags().Lookup("height"))
	viper.BindPFlag("center-x", renderCmd.Flags().Lookup("center-x"))
	viper.BindPFlag("center-y", renderCmd.Flags().Lookup("center-y"))
	viper.BindPFlag("zoom", renderCmd.Flags().Lookup("zoom"))
	viper.BindPFlag("iterations", renderCmd.Flags().Lookup("iterations"))
	viper.BindPFlag("color-scale", renderCmd.Flags().Lookup("color-scale"))
	viper.BindPFlag("frames", renderCmd.Flags().Lookup("frames"))
	viper.BindPFlag("output", renderCmd.Flags().Lookup("output"))

	rootCmd.AddCommand(renderCmd)
}

func runRender(cmd *cobra.Command, args []string) error {
	log := logging.Get()

	width := viper.GetInt("width")
	height := viper.GetInt("height")
	frames := viper.GetInt("frames")
	output := viper.GetString("output")
	if width <= 0 || height <= 0 {
		return fmt.Errorf("image dimensions must be positive, got %dx%d", width, height)
	}
	if frames <= 0 {
		return fmt.Errorf("frame count must be positive, got %d", frames)
	}

	params := fractal.FrameParameters{
		CenterX:       float32(viper.GetFloat64("center-x")),
		CenterY:       float32(viper.GetFloat64("center-y")),
		Zoom:          float32(viper.GetFloat64("zoom")),
		MaxIterations: viper.GetUint32("iterations"),
		ImageWidth:    uint32(width),
		ImageHeight:   uint32(height),
		ColorScale:    float32(viper.GetFloat64("color-scale")),
	}

	device := soft.NewDevice()
	display := soft.NewDisplay(width, height)
	orch, err := engine.New(engine.Config{
		Device:    device,
		Display:   display,
		Pipelines: soft.PipelineProvider{Kernel: fractal.Kernel},
		Width:     width,
		Height:    height,
		Log:       log,
	})
	if err != nil {
		return fmt.Errorf("start renderer: %w", err)
	}
	defer orch.Close()

	ctx := cmd.Context()
	start := time.Now()
	for frame := 0; frame < frames; frame++ {
		if err := orch.RenderFrame(ctx, params); err != nil {
			if ctx.Err() != nil {
				return err
			}
			// dropped frames are already logged by the orchestrator
			continue
		}
	}

	log.WithFields(logrus.Fields{
		"frames":  display.Presented(),
		"elapsed": time.Since(start).Round(time.Millisecond),
	}).Info("render finished")

	if display.Presented() == 0 {
		return fmt.Errorf("no frame was presented")
	}
	if output != "" {
		if err := writePNG(output, width, height, display.LastFrame()); err != nil {
			return fmt.Errorf("write %s: %w", output, err)
		}
		log.WithField("path", output).Info("wrote image")
	}
	return nil
}

func writePNG(path string, width, height int, rgba []byte) error {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	copy(img.Pix, rgba)

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return png.Encode(f, img)
}
