package transcode

import (
	"image"
	"image/color"
	"testing"

	"github.com/artemp/render-stack/internal/domain"
	"github.com/stretchr/testify/require"
)

func solidImage(c color.Color) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, 256, 256))
	for y := 0; y < 256; y++ {
		for x := 0; x < 256; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func TestEncodePNG(t *testing.T) {
	data, err := Encode(solidImage(color.RGBA{255, 0, 0, 255}), domain.FormatPNG)
	require.NoError(t, err)
	require.NotEmpty(t, data)
	require.Equal(t, []byte{0x89, 'P', 'N', 'G'}, data[:4])
}

func TestEncodeGIFUsesPalette(t *testing.T) {
	data, err := Encode(solidImage(color.RGBA{0, 255, 0, 255}), domain.FormatGIF)
	require.NoError(t, err)
	require.NotEmpty(t, data)
	require.Equal(t, []byte("GIF8"), data[:4])
}

func TestQuantizeMarksTransparency(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	img.Set(0, 0, color.RGBA{0, 0, 0, 0})
	img.Set(1, 0, color.RGBA{10, 20, 30, 255})
	pal := Quantize(img)
	if idx := pal.ColorIndexAt(0, 0); idx != TransparentIndex {
		t.Fatalf("expected transparent pixel to map to reserved index, got %d", idx)
	}
}

func TestResizeNoOpWhenAlready256(t *testing.T) {
	img := solidImage(color.RGBA{1, 2, 3, 255})
	resized := Resize(img)
	b := resized.Bounds()
	require.Equal(t, 256, b.Dx())
	require.Equal(t, 256, b.Dy())
}
