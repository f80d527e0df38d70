// Copyright (c) 2026 Mosava. All rights reserved.
// Author: vann.pham.vn@gmail.com

package imaging

import (
	"encoding/binary"
	"fmt"
	"image"
	"image/color"
)

// Pixels is a raw interleaved RGB buffer, the working representation for all
// mosaic compositing. It round-trips losslessly through the blob codec, unlike
// JPEG which would accumulate artifacts across repeated segment fills.
type Pixels struct {
	Width  int
	Height int
	// Pix holds interleaved R, G, B bytes, row-major, 3 bytes per pixel.
	Pix []uint8
}

// NewPixels allocates a zeroed (black) RGB buffer of the given dimensions.
func NewPixels(width, height int) *Pixels {
	return &Pixels{
		Width:  width,
		Height: height,
		Pix:    make([]uint8, width*height*3),
	}
}

// FromImage converts any decoded image into an RGB buffer, discarding alpha.
func FromImage(img image.Image) *Pixels {
	bounds := img.Bounds()
	pixels := NewPixels(bounds.Dx(), bounds.Dy())

	offset := 0
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, _ := img.At(x, y).RGBA()
			pixels.Pix[offset] = uint8(r >> 8)
			pixels.Pix[offset+1] = uint8(g >> 8)
			pixels.Pix[offset+2] = uint8(b >> 8)
			offset += 3
		}
	}
	return pixels
}

// Image converts the buffer back into a standard [image.RGBA] for encoding.
func (p *Pixels) Image() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, p.Width, p.Height))

	src := 0
	for y := 0; y < p.Height; y++ {
		dst := img.PixOffset(0, y)
		for x := 0; x < p.Width; x++ {
			img.Pix[dst] = p.Pix[src]
			img.Pix[dst+1] = p.Pix[src+1]
			img.Pix[dst+2] = p.Pix[src+2]
			img.Pix[dst+3] = 0xff
			src += 3
			dst += 4
		}
	}
	return img
}

// At returns the color at (x, y). Implements enough of [image.Image] for
// direct inspection in tests.
func (p *Pixels) At(x, y int) color.Color {
	offset := (y*p.Width + x) * 3
	return color.RGBA{R: p.Pix[offset], G: p.Pix[offset+1], B: p.Pix[offset+2], A: 0xff}
}

// Clone returns a deep copy of the buffer.
func (p *Pixels) Clone() *Pixels {
	clone := &Pixels{Width: p.Width, Height: p.Height, Pix: make([]uint8, len(p.Pix))}
	copy(clone.Pix, p.Pix)
	return clone
}

// Region extracts the rectangle [x0, x1) x [y0, y1) as a new buffer.
// Coordinates are clamped to the buffer bounds.
func (p *Pixels) Region(x0, y0, x1, y1 int) *Pixels {
	x0, y0 = clamp(x0, 0, p.Width), clamp(y0, 0, p.Height)
	x1, y1 = clamp(x1, x0, p.Width), clamp(y1, y0, p.Height)

	region := NewPixels(x1-x0, y1-y0)
	for y := 0; y < region.Height; y++ {
		srcRow := ((y0+y)*p.Width + x0) * 3
		dstRow := y * region.Width * 3
		copy(region.Pix[dstRow:dstRow+region.Width*3], p.Pix[srcRow:srcRow+region.Width*3])
	}
	return region
}

// SetRegion writes src into the buffer with its top-left corner at (x0, y0).
// Pixels falling outside the buffer are dropped.
func (p *Pixels) SetRegion(x0, y0 int, src *Pixels) {
	for y := 0; y < src.Height; y++ {
		dy := y0 + y
		if dy < 0 || dy >= p.Height {
			continue
		}
		for x := 0; x < src.Width; x++ {
			dx := x0 + x
			if dx < 0 || dx >= p.Width {
				continue
			}
			srcOff := (y*src.Width + x) * 3
			dstOff := (dy*p.Width + dx) * 3
			p.Pix[dstOff] = src.Pix[srcOff]
			p.Pix[dstOff+1] = src.Pix[srcOff+1]
			p.Pix[dstOff+2] = src.Pix[srcOff+2]
		}
	}
}

// # Blob Codec
//
// Pixel buffers persist as BLOBs: a fixed 8-byte header (big-endian uint32
// width, then height) followed by the raw interleaved RGB bytes.

const blobHeaderSize = 8

// Marshal serializes the buffer into its storage blob form.
func (p *Pixels) Marshal() []byte {
	blob := make([]byte, blobHeaderSize+len(p.Pix))
	binary.BigEndian.PutUint32(blob[0:4], uint32(p.Width))
	binary.BigEndian.PutUint32(blob[4:8], uint32(p.Height))
	copy(blob[blobHeaderSize:], p.Pix)
	return blob
}

// UnmarshalPixels parses a storage blob back into a buffer.
func UnmarshalPixels(blob []byte) (*Pixels, error) {
	if len(blob) < blobHeaderSize {
		return nil, fmt.Errorf("imaging: pixel blob too short (%d bytes)", len(blob))
	}
	width := int(binary.BigEndian.Uint32(blob[0:4]))
	height := int(binary.BigEndian.Uint32(blob[4:8]))

	expected := width * height * 3
	if len(blob)-blobHeaderSize != expected {
		return nil, fmt.Errorf("imaging: pixel blob size mismatch: header says %dx%d (%d bytes), got %d",
			width, height, expected, len(blob)-blobHeaderSize)
	}

	pixels := &Pixels{Width: width, Height: height, Pix: make([]uint8, expected)}
	copy(pixels.Pix, blob[blobHeaderSize:])
	return pixels, nil
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
