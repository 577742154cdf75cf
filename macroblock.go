package h263

// decodeMacroblock reads one macroblock-layer record: the COD flag on inter
// pictures, MCBPC, the PB companion fields, CBPY, DQUANT and the motion
// vector differentials. Block-layer coefficients are decoded separately.
func decodeMacroblock(b *Buffer, pictureType PictureTypeCode, options PictureOption) (Macroblock, error) {
	var mb Macroblock

	interPicture := pictureType != PictureTypeI

	if interPicture {
		cod, err := b.ReadBit()
		if err != nil {
			return mb, err
		}
		if cod == 1 {
			return mb, nil
		}
	}

	table := mcbpcIntraTable
	if interPicture {
		table = mcbpcInterTable
	}

	mcbpc, err := b.readVLC(table)
	if err != nil {
		return mb, err
	}
	if mcbpc == mcbpcStuffing {
		mb.Stuffing = true

		return mb, nil
	}

	mb.Coded = true
	mb.Type = MacroblockType(mcbpc >> 2)
	mb.CodedBlockPattern.ChromaB = mcbpc&0x2 != 0
	mb.CodedBlockPattern.ChromaR = mcbpc&0x1 != 0

	if pictureType == PictureTypePB {
		if err := decodeMODB(b, &mb); err != nil {
			return mb, err
		}
	}

	cbpy, err := b.readVLC(cbpyTable)
	if err != nil {
		return mb, err
	}
	if !mb.Type.IsIntra() {
		cbpy ^= 0xf
	}
	for i := 0; i < 4; i++ {
		mb.CodedBlockPattern.Luma[i] = cbpy&(0x8>>i) != 0
	}

	if mb.Type.HasQuantizer() {
		dquant, err := b.ReadBits(2)
		if err != nil {
			return mb, err
		}
		mb.DQuant = dquantDelta[dquant]
	}

	if interPicture && !mb.Type.IsIntra() {
		vectors := 1
		if mb.Type.HasFourVectors() {
			vectors = 4
		}
		for i := 0; i < vectors; i++ {
			mv, err := decodeMotionVector(b)
			if err != nil {
				return mb, err
			}
			mb.MV[i] = mv
		}
	}

	if mb.HasMotionVectorsB {
		mv, err := decodeMotionVector(b)
		if err != nil {
			return mb, err
		}
		mb.MotionVectorB = mv
	}

	return mb, nil
}

// dquantDelta maps the 2-bit DQUANT field to a quantizer adjustment.
var dquantDelta = [4]int{-1, -2, 1, 2}

// decodeMODB reads the PB-frame MODB field and the CBPB it can announce.
func decodeMODB(b *Buffer, mb *Macroblock) error {
	modb, err := b.readVLC(modbTable)
	if err != nil {
		return err
	}

	if modb&0x2 != 0 {
		cbpb, err := b.ReadBits(6)
		if err != nil {
			return err
		}
		mb.CodedBlockPatternB = uint8(cbpb)
	}
	mb.HasMotionVectorsB = modb&0x1 != 0

	return nil
}

// decodeMotionVector reads one MVD pair. Each component is a magnitude code
// in half-pixel units followed by a sign bit for nonzero magnitudes.
func decodeMotionVector(b *Buffer) (MotionVector, error) {
	x, err := decodeMotionVectorComponent(b)
	if err != nil {
		return MotionVector{}, err
	}

	y, err := decodeMotionVectorComponent(b)
	if err != nil {
		return MotionVector{}, err
	}

	return MotionVector{x, y}, nil
}

func decodeMotionVectorComponent(b *Buffer) (HalfPel, error) {
	magnitude, err := b.readVLC(mvdTable)
	if err != nil {
		return 0, err
	}
	if magnitude == 0 {
		return 0, nil
	}

	sign, err := b.ReadBit()
	if err != nil {
		return 0, err
	}
	if sign == 1 {
		return HalfPel(-magnitude), nil
	}

	return HalfPel(magnitude), nil
}

// predictMotionVector forms the spatial motion vector predictor for one luma
// block as the per-axis median of three neighbour candidates. mvs holds the
// final vectors of every macroblock decoded so far this picture, with the
// current macroblock's earlier blocks already filled in; macroblocks before
// gobStart belong to a previous GOB and are treated as absent.
func predictMotionVector(mvs [][4]MotionVector, index, gobStart, perLine, block int) MotionVector {
	col := index % perLine

	hasLeft := col > 0 && index-1 >= gobStart
	hasAbove := index-perLine >= gobStart
	hasAboveRight := hasAbove && col+1 < perLine

	var mv1, mv2, mv3 MotionVector

	switch block {
	case 0:
		if hasLeft {
			mv1 = mvs[index-1][1]
		}
	case 1:
		mv1 = mvs[index][0]
	case 2:
		if hasLeft {
			mv1 = mvs[index-1][3]
		}
	case 3:
		mv1 = mvs[index][2]
	}

	// The lower blocks predict from vectors of the current macroblock; the
	// upper blocks fall back to MV1 when the row above is absent.
	switch block {
	case 0, 1:
		if !hasAbove {
			return mv1
		}

		if block == 0 {
			mv2 = mvs[index-perLine][2]
		} else {
			mv2 = mvs[index-perLine][3]
		}
		if hasAboveRight {
			mv3 = mvs[index-perLine+1][2]
		}
	case 2, 3:
		mv2 = mvs[index][0]
		mv3 = mvs[index][1]
	}

	return MotionVector{
		X: median3(mv1.X, mv2.X, mv3.X),
		Y: median3(mv1.Y, mv2.Y, mv3.Y),
	}
}

func median3(a, b, c HalfPel) HalfPel {
	min, max := a, a
	if b < min {
		min = b
	}
	if b > max {
		max = b
	}
	if c < min {
		min = c
	}
	if c > max {
		max = c
	}

	return a + b + c - min - max
}

// wrapMotionVectorComponent folds the predictor-plus-differential sum back
// into the legal vector range: [-16, 15.5] pixels, or [-31.5, 31.5] with
// unrestricted motion vectors. Specification: ITU-T H.263, §6.1.1 / Annex D.
func wrapMotionVectorComponent(v HalfPel, umv bool) HalfPel {
	lo, hi := HalfPel(-32), HalfPel(31)
	if umv {
		lo, hi = -63, 63
	}

	if v < lo {
		v += 64
	} else if v > hi {
		v -= 64
	}

	return v
}

// wrapMotionVector range-folds both components.
func wrapMotionVector(v MotionVector, umv bool) MotionVector {
	return MotionVector{
		X: wrapMotionVectorComponent(v.X, umv),
		Y: wrapMotionVectorComponent(v.Y, umv),
	}
}

// chromaMotionVector derives the chroma-plane vector from the four luma
// block vectors: the component sum divided by eight, with sixteenth-pel
// remainders 0..2 rounding to the full-pixel position and 3..15 to the
// half-pixel position. Specification: ITU-T H.263, §6.1.1.
func chromaMotionVector(mvs [4]MotionVector) MotionVector {
	var sx, sy HalfPel
	for _, mv := range mvs {
		sx += mv.X
		sy += mv.Y
	}

	return MotionVector{chromaComponent(sx), chromaComponent(sy)}
}

func chromaComponent(sum HalfPel) HalfPel {
	neg := sum < 0
	if neg {
		sum = -sum
	}

	c := 2 * (sum / 16)
	if sum%16 >= 3 {
		c++
	}

	if neg {
		return -c
	}

	return c
}
