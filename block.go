package h263

// dequantize scales a coefficient level by the quantizer, restores odd
// parity for even quantizers and clips to the 12-bit coefficient range.
// Specification: ITU-T H.263, §6.3.2.
func dequantize(level, quant int) int {
	if level == 0 {
		return 0
	}

	neg := level < 0
	if neg {
		level = -level
	}

	d := quant * (2*level + 1)
	if quant&1 == 0 {
		d--
	}

	if neg {
		d = -d
	}

	if d > 2047 {
		d = 2047
	} else if d < -2048 {
		d = -2048
	}

	return d
}

// decodeBlock reads the coefficients of one 8x8 block into blockData in
// premultiplied raster order and returns the number of coefficient positions
// filled. blockData must be all zeros on entry; the caller clears it again
// after moving the block out, and decodeBlock restores the all-zero state
// itself on failure. Intra blocks always carry INTRADC; coded gates only
// the TCOEF part.
func decodeBlock(b *Buffer, blockData []int, intra, coded bool, quant int, sorenson bool) (int, error) {
	n, err := decodeBlockData(b, blockData, intra, coded, quant, sorenson)
	if err != nil {
		for i := range blockData {
			blockData[i] = 0
		}

		return 0, err
	}

	return n, nil
}

func decodeBlockData(b *Buffer, blockData []int, intra, coded bool, quant int, sorenson bool) (int, error) {
	n := 0

	if intra {
		dc, err := b.ReadUint8()
		if err != nil {
			return 0, err
		}

		var rec int
		switch dc {
		case 0, 128:
			return 0, ErrInvalidBitstream
		case 255:
			rec = 1024
		default:
			rec = int(dc) * 8
		}

		blockData[0] = rec * int(premultiplierMatrix[0])
		n = 1
	}

	if !coded {
		return n, nil
	}

	for {
		idx, err := b.readVLC(tcoefTable)
		if err != nil {
			return 0, err
		}

		var run, level int
		var last bool

		if idx == tcoefEscape {
			run, level, last, err = decodeEscape(b, sorenson)
			if err != nil {
				return 0, err
			}
		} else {
			run = int(tcoefRun[idx])
			level = int(tcoefLevel[idx])
			last = idx >= tcoefFirstLast

			sign, err := b.ReadBit()
			if err != nil {
				return 0, err
			}
			if sign == 1 {
				level = -level
			}
		}

		n += run
		if n >= 64 {
			return 0, ErrInvalidBitstream
		}

		pos := zigZag[n]
		n++

		blockData[pos] = dequantize(level, quant) * int(premultiplierMatrix[pos])

		if last {
			return n, nil
		}
	}
}

// decodeEscape reads the fixed-length TCOEF escape: LAST, a 6-bit run and
// an 8-bit signed level. Level -128 selects the Sorenson extended 11-bit
// level and is forbidden otherwise, as is level zero.
func decodeEscape(b *Buffer, sorenson bool) (run, level int, last bool, err error) {
	bit, err := b.ReadBit()
	if err != nil {
		return 0, 0, false, err
	}
	last = bit == 1

	r, err := b.ReadBits(6)
	if err != nil {
		return 0, 0, false, err
	}
	run = int(r)

	lv, err := b.ReadBits(8)
	if err != nil {
		return 0, 0, false, err
	}
	level = int(int8(lv))

	switch level {
	case 0:
		return 0, 0, false, ErrInvalidBitstream
	case -128:
		if !sorenson {
			return 0, 0, false, ErrInvalidBitstream
		}

		ext, err := b.ReadBits(11)
		if err != nil {
			return 0, 0, false, err
		}
		level = int(int32(ext<<21) >> 21)
		if level == 0 {
			return 0, 0, false, ErrInvalidBitstream
		}
	}

	return run, level, last, nil
}
