package h263

// idct performs the 8x8 inverse DCT in place. Coefficients must be stored
// premultiplied by premultiplierMatrix; output values are actual samples
// (intra) or prediction residuals (inter).
// See http://vsr.informatik.tu-chemnitz.de/~jan/MPEG/HTML/IDCT.html for more info.
func idct(block []int) {
	var b1, b3, b4, b6, b7, tmp1, tmp2, m0,
		x0, x1, x2, x3, x4, y3, y4, y5, y6, y7 int

	// Transform columns
	for i := 0; i < 8; i++ {
		b1 = block[4*8+i]
		b3 = block[2*8+i] + block[6*8+i]
		b4 = block[5*8+i] - block[3*8+i]
		tmp1 = block[1*8+i] + block[7*8+i]
		tmp2 = block[3*8+i] + block[5*8+i]
		b6 = block[1*8+i] - block[7*8+i]
		b7 = tmp1 + tmp2
		m0 = block[0*8+i]
		x4 = ((b6*473 - b4*196 + 128) >> 8) - b7
		x0 = x4 - (((tmp1-tmp2)*362 + 128) >> 8)
		x1 = m0 - b1
		x2 = (((block[2*8+i]-block[6*8+i])*362 + 128) >> 8) - b3
		x3 = m0 + b1
		y3 = x1 + x2
		y4 = x3 + b3
		y5 = x1 - x2
		y6 = x3 - b3
		y7 = -x0 - ((b4*473 + b6*196 + 128) >> 8)
		block[0*8+i] = b7 + y4
		block[1*8+i] = x4 + y3
		block[2*8+i] = y5 - x0
		block[3*8+i] = y6 - y7
		block[4*8+i] = y6 + y7
		block[5*8+i] = x0 + y5
		block[6*8+i] = y3 - x4
		block[7*8+i] = y4 - b7
	}

	// Transform rows
	for i := 0; i < 64; i += 8 {
		b1 = block[4+i]
		b3 = block[2+i] + block[6+i]
		b4 = block[5+i] - block[3+i]
		tmp1 = block[1+i] + block[7+i]
		tmp2 = block[3+i] + block[5+i]
		b6 = block[1+i] - block[7+i]
		b7 = tmp1 + tmp2
		m0 = block[0+i]
		x4 = ((b6*473 - b4*196 + 128) >> 8) - b7
		x0 = x4 - (((tmp1-tmp2)*362 + 128) >> 8)
		x1 = m0 - b1
		x2 = (((block[2+i]-block[6+i])*362 + 128) >> 8) - b3
		x3 = m0 + b1
		y3 = x1 + x2
		y4 = x3 + b3
		y5 = x1 - x2
		y6 = x3 - b3
		y7 = -x0 - ((b4*473 + b6*196 + 128) >> 8)
		block[0+i] = (b7 + y4 + 128) >> 8
		block[1+i] = (x4 + y3 + 128) >> 8
		block[2+i] = (y5 - x0 + 128) >> 8
		block[3+i] = (y6 - y7 + 128) >> 8
		block[4+i] = (y6 + y7 + 128) >> 8
		block[5+i] = (x0 + y5 + 128) >> 8
		block[6+i] = (y3 - x4 + 128) >> 8
		block[7+i] = (y4 - b7 + 128) >> 8
	}
}

func copyBlockToDest(block []int, dest []byte, index, scan int) {
	for n := 0; n < 64; n += 8 {
		dest[index+0] = clamp(block[n+0])
		dest[index+1] = clamp(block[n+1])
		dest[index+2] = clamp(block[n+2])
		dest[index+3] = clamp(block[n+3])
		dest[index+4] = clamp(block[n+4])
		dest[index+5] = clamp(block[n+5])
		dest[index+6] = clamp(block[n+6])
		dest[index+7] = clamp(block[n+7])

		index += scan + 8
	}
}

func addBlockToDest(block []int, dest []byte, index, scan int) {
	for n := 0; n < 64; n += 8 {
		dest[index+0] = clamp(int(dest[index+0]) + block[n+0])
		dest[index+1] = clamp(int(dest[index+1]) + block[n+1])
		dest[index+2] = clamp(int(dest[index+2]) + block[n+2])
		dest[index+3] = clamp(int(dest[index+3]) + block[n+3])
		dest[index+4] = clamp(int(dest[index+4]) + block[n+4])
		dest[index+5] = clamp(int(dest[index+5]) + block[n+5])
		dest[index+6] = clamp(int(dest[index+6]) + block[n+6])
		dest[index+7] = clamp(int(dest[index+7]) + block[n+7])

		index += scan + 8
	}
}

func copyValueToDest(value int, dest []byte, index, scan int) {
	val := clamp(value)
	for n := 0; n < 64; n += 8 {
		dest[index+0] = val
		dest[index+1] = val
		dest[index+2] = val
		dest[index+3] = val
		dest[index+4] = val
		dest[index+5] = val
		dest[index+6] = val
		dest[index+7] = val

		index += scan + 8
	}
}

func addValueToDest(value int, dest []byte, index, scan int) {
	for n := 0; n < 64; n += 8 {
		dest[index+0] = clamp(int(dest[index+0]) + value)
		dest[index+1] = clamp(int(dest[index+1]) + value)
		dest[index+2] = clamp(int(dest[index+2]) + value)
		dest[index+3] = clamp(int(dest[index+3]) + value)
		dest[index+4] = clamp(int(dest[index+4]) + value)
		dest[index+5] = clamp(int(dest[index+5]) + value)
		dest[index+6] = clamp(int(dest[index+6]) + value)
		dest[index+7] = clamp(int(dest[index+7]) + value)

		index += scan + 8
	}
}

func clamp(n int) byte {
	if n > 255 {
		n = 255
	} else if n < 0 {
		n = 0
	}

	return byte(n)
}

// zigZag maps coefficient transmission order to raster block positions.
var zigZag = [64]byte{
	0, 1, 8, 16, 9, 2, 3, 10,
	17, 24, 32, 25, 18, 11, 4, 5,
	12, 19, 26, 33, 40, 48, 41, 34,
	27, 20, 13, 6, 7, 14, 21, 28,
	35, 42, 49, 56, 57, 50, 43, 36,
	29, 22, 15, 23, 30, 37, 44, 51,
	58, 59, 52, 45, 38, 31, 39, 46,
	53, 60, 61, 54, 47, 55, 62, 63,
}

// premultiplierMatrix holds the IDCT input scale factors; dequantized
// coefficients are stored multiplied by the entry at their raster position.
var premultiplierMatrix = [64]byte{
	32, 44, 42, 38, 32, 25, 17, 9,
	44, 62, 58, 52, 44, 35, 24, 12,
	42, 58, 55, 49, 42, 33, 23, 12,
	38, 52, 49, 44, 38, 30, 20, 10,
	32, 44, 42, 38, 32, 25, 17, 9,
	25, 35, 33, 30, 25, 20, 14, 7,
	17, 24, 23, 20, 17, 14, 9, 5,
	9, 12, 12, 10, 9, 7, 5, 2,
}
