package h263

import (
	"errors"
	"io"
)

// Decoder decodes an H.263 or Sorenson Spark elementary bitstream into
// pictures. Decoded reference pictures are retained, keyed by temporal
// reference, until the next I-picture replaces the set.
type Decoder struct {
	buf     *Buffer
	options DecoderOption

	refPictures map[uint16]*Picture
	lastTR      uint16
	hasLast     bool

	// Picture-to-picture running state: options inherited by headers
	// without OPPTYPE, and the dimensions implied for headers without an
	// explicit source format.
	runningOptions PictureOption
	width          int
	height         int
	hasDimensions  bool

	blockData [64]int
}

// NewDecoder creates a decoder reading from r. Pass SorensonSparkBitstream
// for the FLV variant of the syntax.
func NewDecoder(r io.Reader, options DecoderOption) (*Decoder, error) {
	buf, err := NewBuffer(r)
	if err != nil {
		return nil, err
	}

	if r != nil {
		buf.SetLoadCallback(buf.LoadReaderCallback)
	}

	return &Decoder{
		buf:         buf,
		options:     options,
		refPictures: make(map[uint16]*Picture),
	}, nil
}

// Buffer returns the underlying bit buffer.
func (d *Decoder) Buffer() *Buffer {
	return d.buf
}

// Write appends more bitstream data; used when feeding the decoder
// incrementally instead of through the reader.
func (d *Decoder) Write(p []byte) int {
	return d.buf.Write(p)
}

// SignalEnd marks that no further data will arrive.
func (d *Decoder) SignalEnd() {
	d.buf.SignalEnd()
}

// LastPicture returns the most recent reference picture, or nil before the
// first one is decoded.
func (d *Decoder) LastPicture() *Picture {
	if !d.hasLast {
		return nil
	}

	return d.refPictures[d.lastTR]
}

// Picture returns the retained reference picture with the given temporal
// reference, or nil.
func (d *Decoder) Picture(tr uint16) *Picture {
	return d.refPictures[tr]
}

// DecodeNextPicture decodes and returns the next picture in the bitstream.
// On ErrEndOfBitstream no input is consumed: the caller may Write more data
// and call again. Other errors also leave the cursor where it was, but
// indicate bitstream damage the retry will not cure.
func (d *Decoder) DecodeNextPicture() (*Picture, error) {
	var pic *Picture

	err := d.buf.Transaction(func(b *Buffer) error {
		p, err := d.decodePicture(b)
		if err != nil {
			return err
		}
		pic = p

		return nil
	})
	if err != nil {
		return nil, err
	}

	d.buf.discardReadBytes()

	return pic, nil
}

// decodePicture runs one whole picture: header, option and format
// resolution, the macroblock layer with GOB resynchronization, and finally
// the reference-store commit. Any error leaves the decoder state untouched.
func (d *Decoder) decodePicture(b *Buffer) (*Picture, error) {
	sorenson := d.options&SorensonSparkBitstream != 0

	if err := d.seekPictureStart(b); err != nil {
		return nil, err
	}

	header, err := decodePictureHeader(b, d.options, d.runningOptions)
	if err != nil {
		return nil, err
	}

	options := mergeOptions(header, d.runningOptions, sorenson)

	switch header.PictureType {
	case PictureTypeI, PictureTypeP, PictureTypeDisposableP, PictureTypePB:
	default:
		return nil, ErrUnimplementedDecoding
	}
	for _, opt := range [...]PictureOption{
		SyntaxBasedArithmeticCoding,
		AdvancedIntraCoding,
		SliceStructured,
		ReferencePictureSelection,
		ReferencePictureResampling,
		ReducedResolutionUpdate,
		AlternativeInterVLC,
		ModifiedQuantization,
	} {
		if options.Has(opt) {
			return nil, ErrUnimplementedDecoding
		}
	}

	width, height, err := d.resolveFormat(header)
	if err != nil {
		return nil, err
	}

	var ref *Picture
	if header.PictureType != PictureTypeI {
		ref = d.LastPicture()
		if ref == nil {
			return nil, ErrInvalidBitstream
		}
	}

	next := newPicture(width, height)
	next.Header = *header

	if err := d.decodeMacroblocks(b, next, ref, header, options, sorenson); err != nil {
		return nil, err
	}

	// Commit. Nothing below can fail, so a rolled-back picture never
	// leaves partial decoder state behind.
	d.runningOptions = options
	d.width, d.height = width, height
	d.hasDimensions = true

	if header.PictureType == PictureTypeI {
		for tr := range d.refPictures {
			delete(d.refPictures, tr)
		}
	}
	if header.PictureType.IsReference() {
		d.refPictures[header.TemporalReference] = next
		d.lastTR = header.TemporalReference
		d.hasLast = true
	}

	return next, nil
}

// mergeOptions resolves the options in force for a picture. A PLUSPTYPE
// header without OPPTYPE inherits the OPPTYPE-controlled options from the
// previous picture; every other header states its options completely.
func mergeOptions(header *PictureHeader, running PictureOption, sorenson bool) PictureOption {
	if sorenson || !header.HasPlusType || header.HasOpptype {
		return header.Options
	}

	return (header.Options &^ OpptypeOptions) | (running & OpptypeOptions)
}

// seekPictureStart positions the cursor on the next picture start code,
// stepping over end-of-sequence codes and any inter-picture garbage.
func (d *Decoder) seekPictureStart(b *Buffer) error {
	for {
		if err := nextStartCode(b); err != nil {
			return err
		}

		if d.options&SorensonSparkBitstream != 0 {
			return nil
		}

		code, err := b.PeekBits(pictureStartBits)
		if err != nil {
			return err
		}

		switch code & 0x1f {
		case 0:
			return nil
		case gobNumberEndOfSequence:
			if err := b.SkipBits(pictureStartBits); err != nil {
				return err
			}
		default:
			if err := b.SkipBits(1); err != nil {
				return err
			}
		}
	}
}

// resolveFormat turns the header's source format into pixel dimensions,
// falling back to the previous picture's size when an inter picture omits
// the format.
func (d *Decoder) resolveFormat(header *PictureHeader) (width, height int, err error) {
	switch header.Format {
	case SourceFormatUnknown:
		if header.PictureType == PictureTypeI || !d.hasDimensions {
			return 0, 0, ErrPictureFormatMissing
		}

		return d.width, d.height, nil
	case SourceFormatExtended:
		cf := header.CustomFormat
		if cf == nil || cf.Width == 0 || cf.Height == 0 {
			return 0, 0, ErrPictureFormatInvalid
		}

		return cf.Width, cf.Height, nil
	default:
		w, h, ok := header.Format.Dimensions()
		if !ok {
			return 0, 0, ErrPictureFormatInvalid
		}

		return w, h, nil
	}
}

// decodeMacroblocks runs the macroblock layer over the whole picture.
// An invalid-bitstream error inside a macroblock triggers a scan for the
// next GOB header and decoding resumes at the macroblock row it names;
// running out of start codes ends the picture with whatever was decoded.
func (d *Decoder) decodeMacroblocks(b *Buffer, pic, ref *Picture, header *PictureHeader, options PictureOption, sorenson bool) error {
	perLine := (pic.Width + 15) >> 4
	mbCount := perLine * ((pic.Height + 15) >> 4)

	mvs := make([][4]MotionVector, mbCount)
	quant := header.Quantizer
	gobStart := 0
	mbIndex := 0

	for mbIndex < mbCount {
		// A failed macroblock rolls the cursor back to the macroblock
		// boundary, where an in-stream GOB header (which no macroblock
		// code can parse) is still intact for the resync scan.
		advance := false
		err := b.Transaction(func(b *Buffer) error {
			var err error
			advance, err = d.decodeMacroblockInto(b, pic, ref, header, options, sorenson, mvs, mbIndex, gobStart, perLine, &quant)

			return err
		})
		if errors.Is(err, ErrInvalidBitstream) {
			start, gobQuant, clean, rerr := d.resyncGOB(b, pic.Width, perLine, mbCount, header.MultiplexBitstream, sorenson)
			if rerr != nil {
				return rerr
			}
			if clean {
				return nil
			}

			gobStart = start
			mbIndex = start
			quant = gobQuant

			continue
		}
		if err != nil {
			return err
		}

		if advance {
			mbIndex++
		}
	}

	return nil
}

// resyncGOB scans for the next GOB header on any bit phase. clean=true
// means the picture is over: the scan hit a picture-layer code (left for
// the next picture) or ran out of codes entirely.
func (d *Decoder) resyncGOB(b *Buffer, width, perLine, mbCount int, cpm, sorenson bool) (start, quant int, clean bool, err error) {
	for {
		if err := nextStartCode(b); err != nil {
			return 0, 0, true, nil
		}

		// Sorenson streams have no GOB layer; the next code can only
		// open another picture.
		if sorenson {
			return 0, 0, true, nil
		}

		var gn, gq int
		var valid bool
		found, err := b.TransactionOption(func(b *Buffer) (bool, error) {
			n, q, ok, err := decodeGOBHeader(b, cpm)
			if err != nil {
				if errors.Is(err, ErrInvalidBitstream) {
					return false, nil
				}

				return false, err
			}

			gn, gq, valid = n, q, ok

			return true, nil
		})
		if err != nil {
			return 0, 0, true, nil
		}
		if !found {
			// Not a decodable GOB header; keep scanning past this bit.
			if err := b.SkipBits(1); err != nil {
				return 0, 0, true, nil
			}

			continue
		}
		if !valid {
			return 0, 0, true, nil
		}

		start = gn * gobRows(width) * perLine
		if start >= mbCount {
			if err := b.SkipBits(1); err != nil {
				return 0, 0, true, nil
			}

			continue
		}

		return start, gq, false, nil
	}
}

// decodeMacroblockInto decodes one macroblock-layer record and reconstructs
// it into pic. advance=false reports a stuffing record, which occupies no
// macroblock position.
func (d *Decoder) decodeMacroblockInto(b *Buffer, pic, ref *Picture, header *PictureHeader, options PictureOption, sorenson bool, mvs [][4]MotionVector, mbIndex, gobStart, perLine int, quant *int) (advance bool, err error) {
	mb, err := decodeMacroblock(b, header.PictureType, options)
	if err != nil {
		return false, err
	}
	if mb.Stuffing {
		return false, nil
	}

	mbCol := mbIndex % perLine
	mbRow := mbIndex / perLine

	if !mb.Coded {
		if header.PictureType == PictureTypeI {
			return false, ErrUncodedIFrameBlocks
		}

		copyMacroblock(ref, pic, mbCol, mbRow)

		return true, nil
	}

	if mb.Type.HasQuantizer() {
		*quant = clampQuantizer(*quant + mb.DQuant)
	}

	interPredicted := header.PictureType != PictureTypeI && !mb.Type.IsIntra()

	if interPredicted {
		umv := options.Has(UnrestrictedMotionVectors)

		if mb.Type.HasFourVectors() {
			for blk := 0; blk < 4; blk++ {
				pred := predictMotionVector(mvs, mbIndex, gobStart, perLine, blk)
				mvs[mbIndex][blk] = wrapMotionVector(pred.plus(mb.MV[blk]), umv)
			}
		} else {
			pred := predictMotionVector(mvs, mbIndex, gobStart, perLine, 0)
			mv := wrapMotionVector(pred.plus(mb.MV[0]), umv)
			for blk := 0; blk < 4; blk++ {
				mvs[mbIndex][blk] = mv
			}
		}

		for blk := 0; blk < 4; blk++ {
			dx := mbCol<<4 + (blk&1)<<3
			dy := mbRow<<4 + (blk>>1)<<3
			gatherBlock(&ref.Y, &pic.Y, mvs[mbIndex][blk], dx, dy, 8)
		}

		cmv := chromaMotionVector(mvs[mbIndex])
		gatherBlock(&ref.Cb, &pic.Cb, cmv, mbCol<<3, mbRow<<3, 8)
		gatherBlock(&ref.Cr, &pic.Cr, cmv, mbCol<<3, mbRow<<3, 8)
	}

	intra := mb.Type.IsIntra()
	for blk := 0; blk < 6; blk++ {
		coded := mb.CodedBlockPattern.block(blk)
		if !intra && !coded {
			continue
		}

		n, err := decodeBlock(b, d.blockData[:], intra, coded, *quant, sorenson)
		if err != nil {
			return false, err
		}

		d.moveBlock(pic, mbCol, mbRow, blk, n, intra)
	}

	if header.PictureType == PictureTypePB {
		if err := d.discardBFrameBlocks(b, &mb, sorenson, *quant); err != nil {
			return false, err
		}
	}

	return true, nil
}

// moveBlock transfers blockData into its place in the picture: intra blocks
// overwrite, inter blocks add to the prediction. A block holding only its
// first coefficient takes the flat shortcut past the IDCT. blockData is
// left zeroed either way.
func (d *Decoder) moveBlock(pic *Picture, mbCol, mbRow, block, n int, intra bool) {
	var dest []byte
	var di, scan int

	lumaWidth := pic.Y.Width

	if block < 4 {
		dest = pic.Y.Data
		di = (mbRow*lumaWidth + mbCol) << 4
		scan = lumaWidth - 8
		if block&1 != 0 {
			di += 8
		}
		if block&2 != 0 {
			di += lumaWidth << 3
		}
	} else {
		if block == 4 {
			dest = pic.Cb.Data
		} else {
			dest = pic.Cr.Data
		}
		di = ((mbRow * lumaWidth) << 2) + (mbCol << 3)
		scan = (lumaWidth >> 1) - 8
	}

	s := d.blockData[:]
	if intra {
		// Overwrite (no prediction)
		if n == 1 {
			value := (s[0] + 128) >> 8
			copyValueToDest(int(clamp(value)), dest, di, scan)
			s[0] = 0
		} else {
			idct(s)
			copyBlockToDest(s, dest, di, scan)
			for i := range d.blockData {
				d.blockData[i] = 0
			}
		}
	} else {
		// Add data to the predicted macroblock
		if n == 1 {
			value := (s[0] + 128) >> 8
			addValueToDest(value, dest, di, scan)
			s[0] = 0
		} else {
			idct(s)
			addBlockToDest(s, dest, di, scan)
			for i := range d.blockData {
				d.blockData[i] = 0
			}
		}
	}
}

// discardBFrameBlocks consumes the B-block coefficients of a PB-frame
// macroblock. Only the P half of a PB picture is reconstructed, but the
// B data must still be read to keep bit sync.
func (d *Decoder) discardBFrameBlocks(b *Buffer, mb *Macroblock, sorenson bool, quant int) error {
	for blk := 0; blk < 6; blk++ {
		if mb.CodedBlockPatternB&(0x20>>blk) == 0 {
			continue
		}

		if _, err := decodeBlock(b, d.blockData[:], false, true, quant, sorenson); err != nil {
			return err
		}
		for i := range d.blockData {
			d.blockData[i] = 0
		}
	}

	return nil
}

// clampQuantizer keeps the running quantizer in its 5-bit range.
func clampQuantizer(q int) int {
	if q < 1 {
		return 1
	}
	if q > 31 {
		return 31
	}

	return q
}
