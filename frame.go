package h263

import (
	"image"
	"image/color"
	"image/draw"
	"unsafe"
)

// Plane is one plane of image data in 4:2:0 layout: the luma plane (Y) is
// double the size of each of the two chroma planes (Cb, Cr) in both
// dimensions. Plane sizes are always rounded up to the nearest macroblock
// (16px of luma), so they do *not* necessarily match the displayed size.
type Plane struct {
	Width  int
	Height int
	Data   []byte
}

// Picture is one decoded picture: the parsed header plus the reconstructed
// planes. Pictures returned by the decoder stay valid until their temporal
// reference is evicted from the reference store.
type Picture struct {
	Header PictureHeader

	Width  int
	Height int

	Y  Plane
	Cb Plane
	Cr Plane

	imYCbCr image.YCbCr
	imRGBA  image.RGBA
}

// newPicture allocates a picture for the given display size with all planes
// backed by one contiguous buffer, rounded up to whole macroblocks.
func newPicture(width, height int) *Picture {
	lumaWidth := (width + 15) &^ 15
	lumaHeight := (height + 15) &^ 15
	chromaWidth := lumaWidth >> 1
	chromaHeight := lumaHeight >> 1

	lumaSize := lumaWidth * lumaHeight
	chromaSize := chromaWidth * chromaHeight
	pictureSize := lumaSize + 2*chromaSize

	base := make([]byte, pictureSize)

	p := &Picture{
		Width:  width,
		Height: height,
		Y:      Plane{lumaWidth, lumaHeight, base[0:lumaSize:lumaSize]},
		Cb:     Plane{chromaWidth, chromaHeight, base[lumaSize : lumaSize+chromaSize : lumaSize+chromaSize]},
		Cr:     Plane{chromaWidth, chromaHeight, base[lumaSize+chromaSize : pictureSize : pictureSize]},
	}

	p.imYCbCr = image.YCbCr{
		Y:              p.Y.Data,
		Cb:             p.Cb.Data,
		Cr:             p.Cr.Data,
		SubsampleRatio: image.YCbCrSubsampleRatio420,
		YStride:        lumaWidth,
		CStride:        chromaWidth,
		Rect:           image.Rect(0, 0, width, height),
	}

	p.imRGBA = image.RGBA{
		Pix:    make([]byte, width*height*4),
		Stride: 4 * width,
		Rect:   image.Rect(0, 0, width, height),
	}

	return p
}

// YCbCr returns the picture as image.YCbCr.
func (p *Picture) YCbCr() *image.YCbCr {
	return &p.imYCbCr
}

// RGBA returns the picture as image.RGBA.
func (p *Picture) RGBA() *image.RGBA {
	b := p.imYCbCr.Bounds()
	draw.Draw(&p.imRGBA, b, &p.imYCbCr, b.Min, draw.Src)

	return &p.imRGBA
}

// Pixels returns the picture as a slice of color.RGBA.
func (p *Picture) Pixels() []color.RGBA {
	img := p.RGBA()

	return unsafe.Slice((*color.RGBA)(unsafe.Pointer(&img.Pix[0])), len(img.Pix)/4)
}
