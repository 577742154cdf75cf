package h263

// Start codes. A picture start code is the 17-bit GOB start code prefix
// followed by group number zero; scanning for the short code therefore finds
// both, and the group number read afterwards tells them apart.
const (
	startCodeBits  = 17
	startCodeValue = 0x1

	pictureStartBits  = 22
	pictureStartValue = 0x20

	gobNumberEndOfSequence = 31
)

// nextStartCode advances the cursor to the first bit of the next start code,
// testing every bit phase. The code itself is not consumed. Returns
// ErrEndOfBitstream when the buffered data holds no further code.
func nextStartCode(b *Buffer) error {
	for {
		v, err := b.PeekBits(startCodeBits)
		if err != nil {
			return err
		}

		if v == startCodeValue {
			return nil
		}

		if err := b.SkipBits(1); err != nil {
			return err
		}
	}
}

// decodePictureHeader reads one picture-layer header at the cursor, which
// must sit on a picture start code. running carries the options in force
// from the previous picture; a few header fields are only present when the
// mode they belong to is inherited rather than restated.
func decodePictureHeader(b *Buffer, opts DecoderOption, running PictureOption) (*PictureHeader, error) {
	if opts&SorensonSparkBitstream != 0 {
		return decodeSorensonHeader(b)
	}

	return decodeStandardHeader(b, running)
}

// baseSourceFormat maps the 3-bit PTYPE source format field. Value 0b111
// does not name a format; it announces PLUSPTYPE and is handled before
// this is called.
func baseSourceFormat(bits uint32) (SourceFormat, error) {
	switch bits {
	case 1:
		return SourceFormatSubQCIF, nil
	case 2:
		return SourceFormatQCIF, nil
	case 3:
		return SourceFormatCIF, nil
	case 4:
		return SourceFormatFourCIF, nil
	case 5:
		return SourceFormatSixteenCIF, nil
	case 6:
		return SourceFormatReserved, nil
	}

	return SourceFormatUnknown, ErrInvalidBitstream
}

// opptypeSourceFormat maps the 3-bit OPPTYPE source format field, where
// 0b110 selects a custom format carried in CPFMT.
func opptypeSourceFormat(bits uint32) SourceFormat {
	switch bits {
	case 1:
		return SourceFormatSubQCIF
	case 2:
		return SourceFormatQCIF
	case 3:
		return SourceFormatCIF
	case 4:
		return SourceFormatFourCIF
	case 5:
		return SourceFormatSixteenCIF
	case 6:
		return SourceFormatExtended
	}

	return SourceFormatReserved
}

// mpptypePictureType maps the 3-bit MPPTYPE picture coding type field.
func mpptypePictureType(bits uint32) PictureTypeCode {
	switch bits {
	case 0:
		return PictureTypeI
	case 1:
		return PictureTypeP
	case 2:
		return PictureTypeImprovedPB
	case 3:
		return PictureTypeB
	case 4:
		return PictureTypeEI
	case 5:
		return PictureTypeEP
	}

	return PictureTypeReserved
}

// decodeStandardHeader parses the ITU-T H.263 §5.1 picture layer up to and
// including PEI. Reference-picture-selection sub-fields are rejected as
// unimplemented rather than skipped blind.
func decodeStandardHeader(b *Buffer, running PictureOption) (*PictureHeader, error) {
	psc, err := b.ReadBits(pictureStartBits)
	if err != nil {
		return nil, err
	}
	if psc != pictureStartValue {
		return nil, ErrInvalidBitstream
	}

	tr, err := b.ReadBits(8)
	if err != nil {
		return nil, err
	}

	h := &PictureHeader{TemporalReference: uint16(tr)}

	// PTYPE: marker, video-format zero bit, three flags, source format.
	ptype, err := b.ReadBits(5)
	if err != nil {
		return nil, err
	}
	if ptype&0x18 != 0x10 {
		return nil, ErrInvalidBitstream
	}
	if ptype&0x4 != 0 {
		h.Options |= UseSplitScreen
	}
	if ptype&0x2 != 0 {
		h.Options |= UseDocumentCamera
	}
	if ptype&0x1 != 0 {
		h.Options |= ReleaseFullPictureFreeze
	}

	formatBits, err := b.ReadBits(3)
	if err != nil {
		return nil, err
	}

	if formatBits != 0x7 {
		if err := decodePtypeTail(b, h, formatBits); err != nil {
			return nil, err
		}
	} else {
		if err := decodePlusPtype(b, h, running); err != nil {
			return nil, err
		}
	}

	quant, err := b.ReadBits(5)
	if err != nil {
		return nil, err
	}
	if quant == 0 {
		return nil, ErrInvalidBitstream
	}
	h.Quantizer = int(quant)

	if !h.HasPlusType {
		if err := decodeCPM(b, h); err != nil {
			return nil, err
		}
	}

	if h.PictureType == PictureTypePB {
		trb, err := b.ReadBits(3)
		if err != nil {
			return nil, err
		}
		dbq, err := b.ReadBits(2)
		if err != nil {
			return nil, err
		}
		h.TRB = uint8(trb)
		h.DBQuant = uint8(dbq)
	}

	if err := skipExtraInformation(b); err != nil {
		return nil, err
	}

	return h, nil
}

// decodePtypeTail reads the five mode bits that complete a non-PLUSPTYPE
// PTYPE record.
func decodePtypeTail(b *Buffer, h *PictureHeader, formatBits uint32) error {
	format, err := baseSourceFormat(formatBits)
	if err != nil {
		return err
	}
	h.Format = format

	bits, err := b.ReadBits(5)
	if err != nil {
		return err
	}

	if bits&0x10 != 0 {
		h.PictureType = PictureTypeP
	}
	if bits&0x8 != 0 {
		h.Options |= UnrestrictedMotionVectors
	}
	if bits&0x4 != 0 {
		h.Options |= SyntaxBasedArithmeticCoding
	}
	if bits&0x2 != 0 {
		h.Options |= AdvancedPrediction
	}
	if bits&0x1 != 0 {
		h.PictureType = PictureTypePB
	}

	return nil
}

// decodePlusPtype reads UFEP, the optional OPPTYPE, MPPTYPE and the extended
// header records they unlock (CPM/PSBI, CPFMT, CPCFC/ETR, UUI, SSS). ETR
// presence follows the clock in force, which may be inherited via running
// when this header has no OPPTYPE.
func decodePlusPtype(b *Buffer, h *PictureHeader, running PictureOption) error {
	h.HasPlusType = true

	ufep, err := b.ReadBits(3)
	if err != nil {
		return err
	}

	switch ufep {
	case 0:
		// No OPPTYPE: format and mode options carry over from the
		// previous picture.
	case 1:
		h.HasOpptype = true

		opptype, err := b.ReadBits(18)
		if err != nil {
			return err
		}
		if opptype&0xf != 0x8 {
			return ErrInvalidBitstream
		}

		h.Format = opptypeSourceFormat(opptype >> 15)

		for _, f := range [...]struct {
			bit uint32
			opt PictureOption
		}{
			{1 << 14, CustomPictureClockFrequency},
			{1 << 13, UnrestrictedMotionVectors},
			{1 << 12, SyntaxBasedArithmeticCoding},
			{1 << 11, AdvancedPrediction},
			{1 << 10, AdvancedIntraCoding},
			{1 << 9, DeblockingFilter},
			{1 << 8, SliceStructured},
			{1 << 7, ReferencePictureSelection},
			{1 << 6, IndependentSegmentDecoding},
			{1 << 5, AlternativeInterVLC},
			{1 << 4, ModifiedQuantization},
		} {
			if opptype&f.bit != 0 {
				h.Options |= f.opt
			}
		}
	default:
		return ErrInvalidBitstream
	}

	mpptype, err := b.ReadBits(9)
	if err != nil {
		return err
	}
	if mpptype&0x7 != 0x1 {
		return ErrInvalidBitstream
	}

	h.PictureType = mpptypePictureType(mpptype >> 6)
	if mpptype&(1<<5) != 0 {
		h.Options |= ReferencePictureResampling
	}
	if mpptype&(1<<4) != 0 {
		h.Options |= ReducedResolutionUpdate
	}
	if mpptype&(1<<3) != 0 {
		h.Options |= RoundingControl
	}

	if err := decodeCPM(b, h); err != nil {
		return err
	}

	if h.HasOpptype {
		if h.Format == SourceFormatExtended {
			cf, err := decodeCPFMT(b)
			if err != nil {
				return err
			}
			h.CustomFormat = cf
		}

		if h.Options.Has(CustomPictureClockFrequency) {
			cpcfc, err := b.ReadBits(8)
			if err != nil {
				return err
			}
			h.PictureClock = &CustomPictureClock{
				Conversion1001: cpcfc&0x80 != 0,
				Divisor:        uint8(cpcfc & 0x7f),
			}
		}
	}

	// ETR is present whenever a custom picture clock is in force: signalled
	// by this picture's OPPTYPE, or inherited from the previous picture when
	// OPPTYPE is absent.
	clockInForce := running.Has(CustomPictureClockFrequency)
	if h.HasOpptype {
		clockInForce = h.Options.Has(CustomPictureClockFrequency)
	}
	if clockInForce {
		etr, err := b.ReadBits(2)
		if err != nil {
			return err
		}
		h.ExtendedTR = uint8(etr)
		h.TemporalReference |= uint16(etr) << 8
	}

	if h.HasOpptype {
		if h.Options.Has(UnrestrictedMotionVectors) {
			// UUI is "1" or "01"; the vector range it selects is not
			// tracked separately.
			bit, err := b.ReadBit()
			if err != nil {
				return err
			}
			if bit == 0 {
				bit, err = b.ReadBit()
				if err != nil {
					return err
				}
				if bit == 0 {
					return ErrInvalidBitstream
				}
			}
		}

		if h.Options.Has(SliceStructured) {
			if err := b.SkipBits(2); err != nil {
				return err
			}
		}
	}

	if h.Options.Has(ReferencePictureSelection) {
		return ErrUnimplementedDecoding
	}

	return nil
}

// decodeCPM reads the continuous-presence-multipoint bit and, when set, the
// sub-bitstream indicator.
func decodeCPM(b *Buffer, h *PictureHeader) error {
	cpm, err := b.ReadBit()
	if err != nil {
		return err
	}
	if cpm == 0 {
		return nil
	}

	h.MultiplexBitstream = true

	psbi, err := b.ReadBits(2)
	if err != nil {
		return err
	}
	h.PSBI = uint8(psbi)

	return nil
}

// decodeCPFMT reads the custom picture format record: pixel aspect ratio
// (with its extended escape), then width and height with a marker bit
// between them.
func decodeCPFMT(b *Buffer) (*CustomPictureFormat, error) {
	par, err := b.ReadBits(4)
	if err != nil {
		return nil, err
	}
	if par == 0 {
		return nil, ErrInvalidBitstream
	}

	pwi, err := b.ReadBits(9)
	if err != nil {
		return nil, err
	}

	marker, err := b.ReadBit()
	if err != nil {
		return nil, err
	}
	if marker != 1 {
		return nil, ErrInvalidBitstream
	}

	phi, err := b.ReadBits(9)
	if err != nil {
		return nil, err
	}
	if phi == 0 {
		return nil, ErrInvalidBitstream
	}

	cf := &CustomPictureFormat{
		PixelAspectRatio: PixelAspectRatio{Code: uint8(par)},
		Width:            (int(pwi) + 1) * 4,
		Height:           int(phi) * 4,
	}

	if par == 0xf {
		w, err := b.ReadBits(8)
		if err != nil {
			return nil, err
		}
		hgt, err := b.ReadBits(8)
		if err != nil {
			return nil, err
		}
		if w == 0 || hgt == 0 {
			return nil, ErrInvalidBitstream
		}
		cf.PixelAspectRatio.Width = uint8(w)
		cf.PixelAspectRatio.Height = uint8(hgt)
	}

	return cf, nil
}

// parSquare is the signalled 1:1 pixel aspect ratio.
var parSquare = PixelAspectRatio{Code: 1, Width: 1, Height: 1}

// decodeSorensonHeader parses the Sorenson Spark picture header, which
// replaces the H.263 picture layer with a fixed shorter record: start code,
// version, temporal reference, one of eight frame sizes, picture type,
// deblocking flag and quantizer.
func decodeSorensonHeader(b *Buffer) (*PictureHeader, error) {
	code, err := b.ReadBits(startCodeBits)
	if err != nil {
		return nil, err
	}
	if code != startCodeValue {
		return nil, ErrInvalidBitstream
	}

	version, err := b.ReadBits(5)
	if err != nil {
		return nil, err
	}
	if version > 1 {
		return nil, ErrUnimplementedDecoding
	}

	tr, err := b.ReadBits(8)
	if err != nil {
		return nil, err
	}

	h := &PictureHeader{
		TemporalReference: uint16(tr),
		Format:            SourceFormatExtended,
		SorensonVersion:   uint8(version),
	}

	formatBits, err := b.ReadBits(3)
	if err != nil {
		return nil, err
	}

	var width, height int
	switch formatBits {
	case 0:
		w, err := b.ReadBits(8)
		if err != nil {
			return nil, err
		}
		hgt, err := b.ReadBits(8)
		if err != nil {
			return nil, err
		}
		width, height = int(w), int(hgt)
	case 1:
		w, err := b.ReadBits(16)
		if err != nil {
			return nil, err
		}
		hgt, err := b.ReadBits(16)
		if err != nil {
			return nil, err
		}
		width, height = int(w), int(hgt)
	case 2:
		width, height = 352, 288
	case 3:
		width, height = 176, 144
	case 4:
		width, height = 128, 96
	case 5:
		width, height = 320, 240
	case 6:
		width, height = 160, 120
	default:
		return nil, ErrInvalidBitstream
	}
	if width == 0 || height == 0 {
		return nil, ErrPictureFormatInvalid
	}
	h.CustomFormat = &CustomPictureFormat{
		PixelAspectRatio: parSquare,
		Width:            width,
		Height:           height,
	}

	ptype, err := b.ReadBits(2)
	if err != nil {
		return nil, err
	}
	switch ptype {
	case 0:
		h.PictureType = PictureTypeI
	case 1:
		h.PictureType = PictureTypeP
	case 2:
		h.PictureType = PictureTypeDisposableP
	default:
		return nil, ErrInvalidBitstream
	}

	deblock, err := b.ReadBit()
	if err != nil {
		return nil, err
	}
	if deblock != 0 {
		h.Options |= DeblockingFilter
	}

	quant, err := b.ReadBits(5)
	if err != nil {
		return nil, err
	}
	if quant == 0 {
		return nil, ErrInvalidBitstream
	}
	h.Quantizer = int(quant)

	if err := skipExtraInformation(b); err != nil {
		return nil, err
	}

	return h, nil
}

// skipExtraInformation consumes the PEI/PSUPP loop: while the next bit is
// set, eight bits of supplemental data follow.
func skipExtraInformation(b *Buffer) error {
	for {
		pei, err := b.ReadBit()
		if err != nil {
			return err
		}
		if pei == 0 {
			return nil
		}

		if err := b.SkipBits(8); err != nil {
			return err
		}
	}
}

// decodeGOBHeader reads a GOB header at the cursor, which must sit on a
// 17-bit start code. ok=false with nothing consumed means the code belongs
// to the picture layer (a picture start or end-of-sequence code), ending
// the GOB layer of the current picture.
func decodeGOBHeader(b *Buffer, cpm bool) (gobNumber, gobQuant int, ok bool, err error) {
	code, err := b.PeekBits(startCodeBits + 5)
	if err != nil {
		return 0, 0, false, err
	}

	gn := int(code & 0x1f)
	if gn == 0 || gn == gobNumberEndOfSequence {
		return gn, 0, false, nil
	}

	if err := b.SkipBits(startCodeBits + 5); err != nil {
		return 0, 0, false, err
	}

	if cpm {
		// GSBI
		if err := b.SkipBits(2); err != nil {
			return 0, 0, false, err
		}
	}

	// GFID
	if err := b.SkipBits(2); err != nil {
		return 0, 0, false, err
	}

	quant, err := b.ReadBits(5)
	if err != nil {
		return 0, 0, false, err
	}
	if quant == 0 {
		return 0, 0, false, ErrInvalidBitstream
	}

	return gn, int(quant), true, nil
}
