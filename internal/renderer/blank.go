package renderer

import (
	"bytes"
	"image"
	"image/png"
)

// encodeOnce builds the shared transparent 256x256 PNG payload used by
// primitive renderer stubs to exercise the rest of the pipeline without a
// real drawing engine wired in.
func encodeOnce() []byte {
	img := image.NewRGBA(image.Rect(0, 0, 256, 256))
	var buf bytes.Buffer
	_ = png.Encode(&buf, img)
	return buf.Bytes()
}
