package h263

// vlc is one node of a binary code-walker table: Index > 0 points at the
// pair of child nodes for the next bit, Index == 0 marks a leaf carrying
// Value, Index < 0 marks an unassigned code.
type vlc struct {
	Index int16
	Value int16
}

type vlcEntry struct {
	code   uint16
	length uint8
	value  int16
}

// buildVLC constructs a walker table from (code, length, value) triples.
// Codes are MSB-first. Built once at package init; malformed inputs
// (duplicate or non-prefix-free codes) panic immediately.
func buildVLC(entries []vlcEntry) []vlc {
	table := []vlc{{-1, 0}, {-1, 0}}

	for _, e := range entries {
		pos := 0
		for i := int(e.length) - 1; i >= 0; i-- {
			bit := int(e.code>>uint(i)) & 1
			idx := pos + bit

			if i == 0 {
				if table[idx].Index > 0 {
					panic("h263: vlc code is a prefix of another")
				}
				table[idx] = vlc{0, e.value}

				break
			}

			if table[idx].Index <= 0 {
				if table[idx].Index == 0 {
					panic("h263: vlc code extends a shorter code")
				}
				child := len(table)
				table = append(table, vlc{-1, 0}, vlc{-1, 0})
				table[idx] = vlc{int16(child), 0}
			}

			pos = int(table[idx].Index)
		}
	}

	return table
}

// mcbpcValue packs a macroblock type and 2-bit chroma pattern into one
// table value; mcbpcStuffing marks the stuffing code.
func mcbpcValue(t MacroblockType, cbpc int) int16 {
	return int16(t)<<2 | int16(cbpc)
}

const mcbpcStuffing = 127

// MCBPC for I-pictures. Specification: ITU-T H.263, Table 8.
var mcbpcIntraTable = buildVLC([]vlcEntry{
	{0x1, 1, mcbpcValue(MbIntra, 0)},
	{0x1, 3, mcbpcValue(MbIntra, 1)},
	{0x2, 3, mcbpcValue(MbIntra, 2)},
	{0x3, 3, mcbpcValue(MbIntra, 3)},
	{0x1, 4, mcbpcValue(MbIntraQ, 0)},
	{0x1, 6, mcbpcValue(MbIntraQ, 1)},
	{0x2, 6, mcbpcValue(MbIntraQ, 2)},
	{0x3, 6, mcbpcValue(MbIntraQ, 3)},
	{0x1, 9, mcbpcStuffing},
})

// MCBPC for P-pictures. Specification: ITU-T H.263, Table 9 (the final
// four codes are the Annex T extension for MbInter4VQ).
var mcbpcInterTable = buildVLC([]vlcEntry{
	{0x1, 1, mcbpcValue(MbInter, 0)},
	{0x3, 4, mcbpcValue(MbInter, 1)},
	{0x2, 4, mcbpcValue(MbInter, 2)},
	{0x5, 6, mcbpcValue(MbInter, 3)},
	{0x3, 3, mcbpcValue(MbInterQ, 0)},
	{0x7, 7, mcbpcValue(MbInterQ, 1)},
	{0x6, 7, mcbpcValue(MbInterQ, 2)},
	{0x5, 9, mcbpcValue(MbInterQ, 3)},
	{0x2, 3, mcbpcValue(MbInter4V, 0)},
	{0x5, 7, mcbpcValue(MbInter4V, 1)},
	{0x4, 7, mcbpcValue(MbInter4V, 2)},
	{0x5, 8, mcbpcValue(MbInter4V, 3)},
	{0x3, 5, mcbpcValue(MbIntra, 0)},
	{0x4, 8, mcbpcValue(MbIntra, 1)},
	{0x3, 8, mcbpcValue(MbIntra, 2)},
	{0x3, 7, mcbpcValue(MbIntra, 3)},
	{0x4, 6, mcbpcValue(MbIntraQ, 0)},
	{0x4, 9, mcbpcValue(MbIntraQ, 1)},
	{0x3, 9, mcbpcValue(MbIntraQ, 2)},
	{0x2, 9, mcbpcValue(MbIntraQ, 3)},
	{0x1, 9, mcbpcStuffing},
	{0x2, 11, mcbpcValue(MbInter4VQ, 0)},
	{0xc, 13, mcbpcValue(MbInter4VQ, 1)},
	{0xe, 13, mcbpcValue(MbInter4VQ, 2)},
	{0xf, 13, mcbpcValue(MbInter4VQ, 3)},
})

// CBPY, coded for the intra sense (bit set = block coded); inter
// macroblocks complement the value. Specification: ITU-T H.263, Table 13.
var cbpyTable = buildVLC([]vlcEntry{
	{0x3, 4, 0},
	{0x5, 5, 1},
	{0x4, 5, 2},
	{0x9, 4, 3},
	{0x3, 5, 4},
	{0x7, 4, 5},
	{0x2, 6, 6},
	{0xb, 4, 7},
	{0x2, 5, 8},
	{0x3, 6, 9},
	{0x5, 4, 10},
	{0xa, 4, 11},
	{0x4, 4, 12},
	{0x8, 4, 13},
	{0x6, 4, 14},
	{0x3, 2, 15},
})

// Motion vector differential magnitudes in half-pixel units; a sign bit
// follows every nonzero magnitude. Specification: ITU-T H.263, Table 14.
var mvdTable = buildVLC([]vlcEntry{
	{0x1, 1, 0},
	{0x1, 2, 1},
	{0x1, 3, 2},
	{0x1, 4, 3},
	{0x3, 6, 4},
	{0x5, 7, 5},
	{0x4, 7, 6},
	{0x3, 7, 7},
	{0xb, 9, 8},
	{0xa, 9, 9},
	{0x9, 9, 10},
	{0x11, 10, 11},
	{0x10, 10, 12},
	{0xf, 10, 13},
	{0xe, 10, 14},
	{0xd, 10, 15},
	{0xc, 10, 16},
	{0xb, 10, 17},
	{0xa, 10, 18},
	{0x9, 10, 19},
	{0x8, 10, 20},
	{0x7, 10, 21},
	{0x6, 10, 22},
	{0x5, 10, 23},
	{0x4, 10, 24},
	{0x7, 11, 25},
	{0x6, 11, 26},
	{0x5, 11, 27},
	{0x4, 11, 28},
	{0x3, 11, 29},
	{0x2, 11, 30},
	{0x3, 12, 31},
	{0x2, 12, 32},
})

// MODB for PB-frame macroblocks. Specification: ITU-T H.263, Table 11.
// Value bit 0 = MVDB present, bit 1 = CBPB present.
var modbTable = buildVLC([]vlcEntry{
	{0x0, 1, 0},
	{0x2, 2, 1},
	{0x3, 2, 3},
})

// TCOEF events, indexed in (last, run, level) order; tcoefEscape selects
// the fixed-length escape that follows. A sign bit follows every
// non-escape code. Specification: ITU-T H.263, Table 16.
const (
	tcoefEscape    = 102
	tcoefFirstLast = 58
)

var tcoefTable = buildVLC([]vlcEntry{
	// last = 0, run = 0, levels 1..12
	{0x2, 2, 0},
	{0xf, 4, 1},
	{0x15, 6, 2},
	{0x17, 7, 3},
	{0x1f, 8, 4},
	{0x25, 9, 5},
	{0x24, 9, 6},
	{0x21, 10, 7},
	{0x20, 10, 8},
	{0x7, 11, 9},
	{0x6, 11, 10},
	{0x20, 11, 11},
	// run = 1, levels 1..6
	{0x6, 3, 12},
	{0x14, 6, 13},
	{0x1e, 8, 14},
	{0xf, 10, 15},
	{0x21, 11, 16},
	{0x50, 12, 17},
	// run = 2, levels 1..4
	{0xe, 4, 18},
	{0x1d, 8, 19},
	{0xe, 10, 20},
	{0x51, 12, 21},
	// run = 3, levels 1..3
	{0xd, 5, 22},
	{0x23, 9, 23},
	{0xd, 10, 24},
	// run = 4, levels 1..3
	{0xc, 5, 25},
	{0x22, 9, 26},
	{0x52, 12, 27},
	// run = 5, levels 1..3
	{0xb, 5, 28},
	{0xc, 10, 29},
	{0x53, 12, 30},
	// run = 6, levels 1..3
	{0x13, 6, 31},
	{0xb, 10, 32},
	{0x54, 12, 33},
	// run = 7, levels 1..2
	{0x12, 6, 34},
	{0xa, 10, 35},
	// run = 8, levels 1..2
	{0x11, 6, 36},
	{0x9, 10, 37},
	// run = 9, levels 1..2
	{0x10, 6, 38},
	{0x8, 10, 39},
	// run = 10, levels 1..2
	{0x16, 7, 40},
	{0x55, 12, 41},
	// runs 11..26, level 1
	{0x15, 7, 42},
	{0x14, 7, 43},
	{0x1c, 8, 44},
	{0x1b, 8, 45},
	{0x21, 9, 46},
	{0x20, 9, 47},
	{0x1f, 9, 48},
	{0x1e, 9, 49},
	{0x1d, 9, 50},
	{0x1c, 9, 51},
	{0x1b, 9, 52},
	{0x1a, 9, 53},
	{0x22, 11, 54},
	{0x23, 11, 55},
	{0x56, 12, 56},
	{0x57, 12, 57},
	// last = 1, run = 0, levels 1..3
	{0x7, 4, 58},
	{0x19, 9, 59},
	{0x5, 11, 60},
	// run = 1, levels 1..2
	{0xf, 6, 61},
	{0x4, 11, 62},
	// runs 2..40, level 1
	{0xe, 6, 63},
	{0xd, 6, 64},
	{0xc, 6, 65},
	{0x13, 7, 66},
	{0x12, 7, 67},
	{0x11, 7, 68},
	{0x10, 7, 69},
	{0x1a, 8, 70},
	{0x19, 8, 71},
	{0x18, 8, 72},
	{0x17, 8, 73},
	{0x16, 8, 74},
	{0x15, 8, 75},
	{0x14, 8, 76},
	{0x13, 8, 77},
	{0x18, 9, 78},
	{0x17, 9, 79},
	{0x16, 9, 80},
	{0x15, 9, 81},
	{0x14, 9, 82},
	{0x13, 9, 83},
	{0x12, 9, 84},
	{0x11, 9, 85},
	{0x7, 10, 86},
	{0x6, 10, 87},
	{0x5, 10, 88},
	{0x4, 10, 89},
	{0x24, 11, 90},
	{0x25, 11, 91},
	{0x26, 11, 92},
	{0x27, 11, 93},
	{0x58, 12, 94},
	{0x59, 12, 95},
	{0x5a, 12, 96},
	{0x5b, 12, 97},
	{0x5c, 12, 98},
	{0x5d, 12, 99},
	{0x5e, 12, 100},
	{0x5f, 12, 101},
	// escape
	{0x3, 7, tcoefEscape},
})

// tcoefRun / tcoefLevel map a TCOEF event index to its zero run and level
// magnitude; entries from tcoefFirstLast up are "last" events.
var tcoefRun = [102]uint8{
	0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
	1, 1, 1, 1, 1, 1,
	2, 2, 2, 2,
	3, 3, 3,
	4, 4, 4,
	5, 5, 5,
	6, 6, 6,
	7, 7,
	8, 8,
	9, 9,
	10, 10,
	11, 12, 13, 14, 15, 16, 17, 18, 19, 20, 21, 22, 23, 24, 25, 26,
	// last = 1
	0, 0, 0,
	1, 1,
	2, 3, 4, 5, 6, 7, 8, 9, 10, 11,
	12, 13, 14, 15, 16, 17, 18, 19, 20, 21,
	22, 23, 24, 25, 26, 27, 28, 29, 30, 31,
	32, 33, 34, 35, 36, 37, 38, 39, 40,
}

var tcoefLevel = [102]uint8{
	1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12,
	1, 2, 3, 4, 5, 6,
	1, 2, 3, 4,
	1, 2, 3,
	1, 2, 3,
	1, 2, 3,
	1, 2, 3,
	1, 2,
	1, 2,
	1, 2,
	1, 2,
	1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1,
	// last = 1
	1, 2, 3,
	1, 2,
	1, 1, 1, 1, 1, 1, 1, 1, 1, 1,
	1, 1, 1, 1, 1, 1, 1, 1, 1, 1,
	1, 1, 1, 1, 1, 1, 1, 1, 1, 1,
	1, 1, 1, 1, 1, 1, 1, 1, 1,
}
