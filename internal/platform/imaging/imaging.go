// Copyright (c) 2026 Mosava. All rights reserved.
// Author: vann.pham.vn@gmail.com

/*
Package imaging implements the pixel-level operations behind mosaic composition.

It covers the full pipeline from client upload to stored artifact:

  - Codecs: JPEG/PNG decoding, JPEG encoding, animated GIF encoding with a
    median-cut palette.
  - Geometry: high-quality resampling, aspect-preserving thumbnails, and
    center cropping to a target aspect ratio.
  - Compositing: alpha blending, brightness scaling, and box blur used when
    portraits are merged into their segments.
  - Analysis: mean luma measurement, the basis for brightness classification.

All compositing operates on [Pixels], a raw RGB buffer that round-trips
losslessly through storage.
*/
package imaging

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	stddraw "image/draw"
	"image/gif"
	"image/jpeg"
	_ "image/png" // register PNG decoding for uploads

	"github.com/ericpauley/go-quantize/quantize"
	xdraw "golang.org/x/image/draw"
)

// DefaultJPEGQuality is the encoder quality for stored artifacts.
const DefaultJPEGQuality = 90

// # Codecs

// Decode parses uploaded image bytes (JPEG or PNG) into an RGB buffer.
func Decode(payload []byte) (*Pixels, error) {
	img, _, err := image.Decode(bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("imaging: failed to decode image: %w", err)
	}
	return FromImage(img), nil
}

// EncodeJPEG encodes the buffer as a JPEG at [DefaultJPEGQuality].
func EncodeJPEG(pixels *Pixels) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, pixels.Image(), &jpeg.Options{Quality: DefaultJPEGQuality}); err != nil {
		return nil, fmt.Errorf("imaging: failed to encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}

// EncodeGIF encodes the frames as a looping animated GIF.
//
// Each frame is quantized to its own 256-color palette using median cut,
// which keeps gradients in photographic content acceptable. delay is in
// hundredths of a second per frame; the animation loops forever.
func EncodeGIF(frames []*Pixels, delay int) ([]byte, error) {
	if len(frames) == 0 {
		return nil, fmt.Errorf("imaging: cannot encode gif with no frames")
	}

	quantizer := quantize.MedianCutQuantizer{}
	anim := &gif.GIF{LoopCount: 0}

	for _, frame := range frames {
		img := frame.Image()
		palette := quantizer.Quantize(make(color.Palette, 0, 256), img)

		paletted := image.NewPaletted(img.Bounds(), palette)
		stddraw.Draw(paletted, img.Bounds(), img, image.Point{}, stddraw.Src)

		anim.Image = append(anim.Image, paletted)
		anim.Delay = append(anim.Delay, delay)
	}

	var buf bytes.Buffer
	if err := gif.EncodeAll(&buf, anim); err != nil {
		return nil, fmt.Errorf("imaging: failed to encode gif: %w", err)
	}
	return buf.Bytes(), nil
}

// # Geometry

// Resize resamples the buffer to exactly width x height using Catmull-Rom
// interpolation.
func Resize(pixels *Pixels, width, height int) *Pixels {
	if width == pixels.Width && height == pixels.Height {
		return pixels.Clone()
	}
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), pixels.Image(), image.Rect(0, 0, pixels.Width, pixels.Height), xdraw.Over, nil)
	return FromImage(dst)
}

// Thumbnail downscales the buffer so its longer side is at most maxSize,
// preserving aspect ratio. Buffers already within bounds are returned as a copy.
func Thumbnail(pixels *Pixels, maxSize int) *Pixels {
	longest := pixels.Width
	if pixels.Height > longest {
		longest = pixels.Height
	}
	if longest <= maxSize {
		return pixels.Clone()
	}

	scale := float64(maxSize) / float64(longest)
	width := int(float64(pixels.Width) * scale)
	height := int(float64(pixels.Height) * scale)
	if width < 1 {
		width = 1
	}
	if height < 1 {
		height = 1
	}
	return Resize(pixels, width, height)
}

// CenterCrop trims the buffer to the target aspect ratio ratioW:ratioH,
// keeping the center and discarding equal margins from the longer dimension.
func CenterCrop(pixels *Pixels, ratioW, ratioH int) *Pixels {
	cropW, cropH := pixels.Width, pixels.Height

	if pixels.Width*ratioH > pixels.Height*ratioW {
		// Too wide: narrow to match the ratio.
		cropW = pixels.Height * ratioW / ratioH
	} else {
		// Too tall: shorten to match the ratio.
		cropH = pixels.Width * ratioH / ratioW
	}

	x0 := (pixels.Width - cropW) / 2
	y0 := (pixels.Height - cropH) / 2
	return pixels.Region(x0, y0, x0+cropW, y0+cropH)
}

// # Compositing

// Blend mixes two equally-sized buffers: result = a*alpha + b*(1-alpha).
func Blend(a, b *Pixels, alpha float64) (*Pixels, error) {
	if a.Width != b.Width || a.Height != b.Height {
		return nil, fmt.Errorf("imaging: blend size mismatch: %dx%d vs %dx%d", a.Width, a.Height, b.Width, b.Height)
	}

	out := NewPixels(a.Width, a.Height)
	beta := 1 - alpha
	for i := range a.Pix {
		v := float64(a.Pix[i])*alpha + float64(b.Pix[i])*beta
		out.Pix[i] = clampByte(v)
	}
	return out, nil
}

// ScaleBrightness multiplies every channel by factor, clamping to [0, 255].
func ScaleBrightness(pixels *Pixels, factor float64) *Pixels {
	out := NewPixels(pixels.Width, pixels.Height)
	for i, v := range pixels.Pix {
		out.Pix[i] = clampByte(float64(v) * factor)
	}
	return out
}

// BoxBlur applies a separable box blur with the given radius. A radius of
// zero or less returns a copy of the input.
func BoxBlur(pixels *Pixels, radius int) *Pixels {
	if radius <= 0 {
		return pixels.Clone()
	}

	horizontal := blurPass(pixels, radius, true)
	return blurPass(horizontal, radius, false)
}

// blurPass averages along one axis. The kernel is clamped at the edges so
// border pixels average over fewer neighbors instead of darkening.
func blurPass(src *Pixels, radius int, horizontal bool) *Pixels {
	out := NewPixels(src.Width, src.Height)

	for y := 0; y < src.Height; y++ {
		for x := 0; x < src.Width; x++ {
			var sumR, sumG, sumB, count int
			for k := -radius; k <= radius; k++ {
				sx, sy := x, y
				if horizontal {
					sx += k
				} else {
					sy += k
				}
				if sx < 0 || sx >= src.Width || sy < 0 || sy >= src.Height {
					continue
				}
				off := (sy*src.Width + sx) * 3
				sumR += int(src.Pix[off])
				sumG += int(src.Pix[off+1])
				sumB += int(src.Pix[off+2])
				count++
			}
			off := (y*src.Width + x) * 3
			out.Pix[off] = uint8(sumR / count)
			out.Pix[off+1] = uint8(sumG / count)
			out.Pix[off+2] = uint8(sumB / count)
		}
	}
	return out
}

// # Analysis

// MeanLuma returns the average perceptual brightness of the buffer in
// [0, 255], using the Rec. 601 luma weights.
func MeanLuma(pixels *Pixels) float64 {
	if len(pixels.Pix) == 0 {
		return 0
	}

	var sum float64
	for i := 0; i < len(pixels.Pix); i += 3 {
		sum += 0.299*float64(pixels.Pix[i]) + 0.587*float64(pixels.Pix[i+1]) + 0.114*float64(pixels.Pix[i+2])
	}
	return sum / float64(pixels.Width*pixels.Height)
}

func clampByte(v float64) uint8 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v + 0.5)
}
