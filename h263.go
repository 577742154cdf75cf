// Package h263 implements an ITU-T H.263 (and Sorenson Spark / FLV1) video
// decoder that turns a raw elementary bitstream into YCbCr pictures.
//
// The decoder is a synchronous, single-threaded session object. Feed it bytes
// either through an io.Reader passed to NewDecoder (data is pulled on demand)
// or by calling Write() on the decoder (data is pushed, e.g. from SWF video
// tags). Each call to DecodeNextPicture() parses exactly one picture:
//
//	dec, _ := h263.NewDecoder(file, 0)
//	for {
//	    pic, err := dec.DecodeNextPicture()
//	    if errors.Is(err, h263.ErrEndOfBitstream) {
//	        break // or Write() more bytes and retry
//	    }
//	    ...
//	}
//
// A failed call rolls the bit cursor back to where the call started and
// leaves the reference-picture state untouched, so a caller that streams the
// bitstream incrementally can append more bytes and simply call
// DecodeNextPicture() again.
//
// Picture data is decoded into a struct with all 3 planes (Y, Cb, Cr) stored
// in separate buffers; you can get image.YCbCr via the YCbCr() function, or
// convert to image.RGBA on the CPU (slow) via the RGBA() function, or do it
// on the GPU with the usual BT.601 matrix. The decoder performs no colorspace
// conversion or rendering of its own.
//
// Containers (FLV, SWF, RTP) are out of scope: the input must be the raw
// H.263 picture layer. Passing SorensonSparkBitstream selects the Flash
// flavor of the syntax (17-bit start code, Sorenson picture header, extended
// escape levels); all other semantics follow ITU-T H.263.
package h263

import "errors"

// Decoding errors.
var (
	// ErrEndOfBitstream is returned when the buffer does not hold enough
	// bits to finish the current picture. It is distinct from malformed
	// data: the cursor is rolled back, so the caller may Write() more bytes
	// and retry from the same logical position.
	ErrEndOfBitstream = errors.New("end of bitstream")

	// ErrInvalidBitstream is returned when the byte stream does not conform
	// to the H.263 grammar at the current position.
	ErrInvalidBitstream = errors.New("invalid bitstream")

	// ErrUncodedIFrameBlocks is returned when an I-frame claims to contain
	// uncoded macroblocks, which the grammar does not allow.
	ErrUncodedIFrameBlocks = errors.New("uncoded blocks in I-frame")

	// ErrPictureFormatMissing is returned when a picture carries no source
	// format and none can be inherited from a previous reference picture.
	ErrPictureFormatMissing = errors.New("picture format missing")

	// ErrPictureFormatInvalid is returned when the source format cannot be
	// resolved to concrete dimensions (reserved code, zero-sized custom
	// format, malformed aspect ratio).
	ErrPictureFormatInvalid = errors.New("picture format invalid")

	// ErrUnimplementedDecoding is returned for bitstream features that are
	// recognized but intentionally not decoded: B/EI/EP pictures,
	// syntax-based arithmetic coding, advanced intra coding, reference
	// picture selection and resampling, reduced-resolution update,
	// slice-structured mode, alternative inter VLC, modified quantization.
	ErrUnimplementedDecoding = errors.New("unimplemented decoding feature")
)

// DecoderOption is a set of decoder-external knobs passed at session
// construction. Options only resolve framing ambiguity that is not derivable
// from the bitstream itself; they never change conforming-bitstream
// semantics.
type DecoderOption uint32

const (
	// SorensonSparkBitstream selects the Sorenson Spark (FLV1) flavor of
	// the bitstream as used by Flash video: 17-bit picture start code, the
	// Sorenson picture header layout, and 11-bit extended escape levels.
	SorensonSparkBitstream DecoderOption = 1 << iota
)
