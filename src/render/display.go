package render

// Display hands out presentable surface images. Surface and swapchain
// negotiation stay with the embedder; only the acquire/present contract is
// visible here.
//
// AcquireNextImage and PresentImage report staleness through the outdated
// return instead of an error: a stale surface is a recoverable signal that
// the embedder must recreate the swapchain, not a failure.
type Display interface {
	AcquireNextImage() (imageIndex int, outdated bool, err error)
	PresentImage(imageIndex int) (outdated bool, err error)

	// RenderTarget returns the presentable image behind an acquired index
	// for render-pass recording.
	RenderTarget(imageIndex int) RenderTarget

	SurfaceFormat() Format
	SurfaceExtent() (width, height int)
}
