// Package transcode encodes a decoded tile image into the wire formats a
// job requests: full-color PNG/JPEG through the standard encoders, and
// palettized PNG256/GIF through an adaptive 255-color quantizer matching
// transcode.py's behavior (one palette slot reserved for transparency).
package transcode

import (
	"bytes"
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"image/png"

	"github.com/artemp/render-stack/internal/domain"
	"golang.org/x/image/draw"
)

// AlphaThreshold is the cutoff below which a pixel is treated as fully
// transparent when building a palettized image, matching the original's
// binarization of the alpha channel at value 64.
const AlphaThreshold = 64

// TransparentIndex is the reserved palette slot (the 256th) for
// transparent pixels.
const TransparentIndex = 255

// Resize scales img to exactly 256x256 using a high quality resampler,
// used by the aerial renderer when a fetched sub-tile isn't already the
// exact tile size.
func Resize(img image.Image) image.Image {
	b := img.Bounds()
	if b.Dx() == 256 && b.Dy() == 256 {
		return img
	}
	dst := image.NewRGBA(image.Rect(0, 0, 256, 256))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Over, nil)
	return dst
}

// Encode renders img into the wire bytes for the given format bit.
func Encode(img image.Image, format domain.Format) ([]byte, error) {
	var buf bytes.Buffer
	switch format {
	case domain.FormatPNG:
		if err := png.Encode(&buf, img); err != nil {
			return nil, err
		}
	case domain.FormatJPEG:
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 85}); err != nil {
			return nil, err
		}
	case domain.FormatGIF:
		pal := Quantize(img)
		if err := gif.Encode(&buf, pal, &gif.Options{NumColors: 256}); err != nil {
			return nil, err
		}
	default:
		pal := Quantize(img)
		if err := png.Encode(&buf, pal); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

// Quantize builds a palettized image with up to 255 adaptively chosen
// colors plus one reserved transparency index, matching transcode.py's
// approach of quantizing the RGB channels and binarizing alpha.
func Quantize(img image.Image) *image.Paletted {
	b := img.Bounds()
	colorSet := map[color.RGBA]int{}
	var order []color.RGBA

	at := func(x, y int) (color.RGBA, bool) {
		r, g, bch, a := img.At(x, y).RGBA()
		if a>>8 < AlphaThreshold {
			return color.RGBA{}, false
		}
		c := color.RGBA{R: uint8(r >> 8), G: uint8(g >> 8), B: uint8(bch >> 8), A: 255}
		return c, true
	}

	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c, opaque := at(x, y)
			if !opaque {
				continue
			}
			if _, ok := colorSet[c]; !ok {
				colorSet[c] = len(order)
				order = append(order, c)
			}
		}
	}

	palette := reduceToPalette(order, 255)

	full := make(color.Palette, TransparentIndex+1)
	for i := range full {
		full[i] = color.RGBA{}
	}
	copy(full, palette)
	out := image.NewPaletted(b, full)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c, opaque := at(x, y)
			if !opaque {
				out.SetColorIndex(x, y, TransparentIndex)
				continue
			}
			idx := nearestIndex(palette, c)
			out.SetColorIndex(x, y, uint8(idx))
		}
	}
	return out
}

// reduceToPalette collapses a observed color set down to at most n colors
// via simple median-cut-free bucketing on the most significant bits of
// each channel -- enough to approximate the original's adaptive quantizer
// without pulling in an external quantization library.
func reduceToPalette(colors []color.RGBA, n int) color.Palette {
	if len(colors) <= n {
		pal := make(color.Palette, len(colors))
		for i, c := range colors {
			pal[i] = c
		}
		return pal
	}
	buckets := map[[3]int][]color.RGBA{}
	shift := 1
	for len(buckets) < n && shift < 8 {
		buckets = map[[3]int][]color.RGBA{}
		for _, c := range colors {
			key := [3]int{int(c.R) >> shift, int(c.G) >> shift, int(c.B) >> shift}
			buckets[key] = append(buckets[key], c)
		}
		shift++
	}
	pal := make(color.Palette, 0, n)
	for _, bucket := range buckets {
		var rs, gs, bs, count int
		for _, c := range bucket {
			rs += int(c.R)
			gs += int(c.G)
			bs += int(c.B)
			count++
		}
		pal = append(pal, color.RGBA{
			R: uint8(rs / count), G: uint8(gs / count), B: uint8(bs / count), A: 255,
		})
		if len(pal) >= n {
			break
		}
	}
	return pal
}

func nearestIndex(pal color.Palette, c color.RGBA) int {
	return pal.Index(c)
}
