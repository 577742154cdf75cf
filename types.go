package h263

// SourceFormat identifies the picture resolution: one of the named CIF
// family members, or a custom format carried in the picture header.
// Specification: ITU-T H.263, Table 4 / §5.1.4.
type SourceFormat int

// Source formats.
const (
	SourceFormatUnknown SourceFormat = iota
	SourceFormatSubQCIF
	SourceFormatQCIF
	SourceFormatCIF
	SourceFormatFourCIF
	SourceFormatSixteenCIF
	SourceFormatReserved
	SourceFormatExtended
)

// Dimensions returns the luma width and height of a named format. ok is
// false for SourceFormatUnknown, SourceFormatReserved and
// SourceFormatExtended (the latter takes its size from CustomPictureFormat).
func (f SourceFormat) Dimensions() (width, height int, ok bool) {
	switch f {
	case SourceFormatSubQCIF:
		return 128, 96, true
	case SourceFormatQCIF:
		return 176, 144, true
	case SourceFormatCIF:
		return 352, 288, true
	case SourceFormatFourCIF:
		return 704, 576, true
	case SourceFormatSixteenCIF:
		return 1408, 1152, true
	}

	return 0, 0, false
}

// gobRows returns how many macroblock rows one GOB spans for pictures of
// the given width. Specification: ITU-T H.263, §5.2.4.
func gobRows(width int) int {
	switch {
	case width <= 352:
		return 1
	case width <= 704:
		return 2
	default:
		return 4
	}
}

// PixelAspectRatio is the sample shape signalled in CPFMT. Code 0b1111
// selects an extended ratio with an explicit Width:Height.
type PixelAspectRatio struct {
	Code   uint8
	Width  uint8
	Height uint8
}

// CustomPictureFormat carries explicit dimensions from CPFMT or from the
// Sorenson header's custom-size encodings.
type CustomPictureFormat struct {
	PixelAspectRatio PixelAspectRatio
	Width            int
	Height           int
}

// CustomPictureClock is the CPCFC record: an alternative picture clock
// frequency of 1800000/(divisor * conversion) Hz, parsed and carried but not
// interpreted by the decoder itself.
type CustomPictureClock struct {
	Conversion1001 bool
	Divisor        uint8
}

// PictureOption is a bitmask of the optional coding modes a picture header
// can switch on. Options controlled by an absent OPPTYPE record are
// inherited from the previous picture; see OpptypeOptions.
type PictureOption uint32

// Picture options.
const (
	UseSplitScreen PictureOption = 1 << iota
	UseDocumentCamera
	ReleaseFullPictureFreeze
	UnrestrictedMotionVectors
	SyntaxBasedArithmeticCoding
	AdvancedPrediction
	AdvancedIntraCoding
	CustomPictureClockFrequency
	DeblockingFilter
	SliceStructured
	ReferencePictureSelection
	IndependentSegmentDecoding
	AlternativeInterVLC
	ModifiedQuantization
	ReferencePictureResampling
	ReducedResolutionUpdate
	RoundingControl
)

// OpptypeOptions is the set of options whose in-force values are carried by
// the OPPTYPE record. When a picture omits OPPTYPE these are inherited
// verbatim from the previous picture; when OPPTYPE is present they are fully
// replaced.
const OpptypeOptions = UnrestrictedMotionVectors |
	SyntaxBasedArithmeticCoding |
	AdvancedPrediction |
	AdvancedIntraCoding |
	CustomPictureClockFrequency |
	DeblockingFilter |
	SliceStructured |
	ReferencePictureSelection |
	IndependentSegmentDecoding |
	AlternativeInterVLC |
	ModifiedQuantization

// Has reports whether all options in mask are set.
func (o PictureOption) Has(mask PictureOption) bool {
	return o&mask == mask
}

// PictureTypeCode identifies how a picture predicts from its references.
type PictureTypeCode int

// Picture types.
const (
	PictureTypeI PictureTypeCode = iota
	PictureTypeP
	PictureTypePB
	PictureTypeImprovedPB
	PictureTypeB
	PictureTypeEI
	PictureTypeEP
	PictureTypeReserved
	// PictureTypeDisposableP is the Sorenson "droppable" P-frame: it
	// predicts from the last reference but never becomes one itself.
	PictureTypeDisposableP
)

// IsReference reports whether a successfully decoded picture of this type
// enters the reference store.
func (t PictureTypeCode) IsReference() bool {
	switch t {
	case PictureTypeI, PictureTypeP, PictureTypePB:
		return true
	}

	return false
}

// PictureHeader is the decoded picture-layer header. It is created fresh
// per picture by the syntax decoders and read-only afterwards; the running
// quantizer that mutates per GOB lives in the decoder, not here.
type PictureHeader struct {
	TemporalReference uint16
	Format            SourceFormat
	CustomFormat      *CustomPictureFormat
	Options           PictureOption
	PictureType       PictureTypeCode
	Quantizer         int

	// HasPlusType / HasOpptype record which optional header records were
	// present, which gates the running-options merge.
	HasPlusType bool
	HasOpptype  bool

	// Parsed-and-unused fields, kept so the bit positions stay accounted
	// for: continuous-presence multipoint, PB sub-fields, custom clock.
	MultiplexBitstream bool
	PSBI               uint8
	TRB                uint8
	DBQuant            uint8
	PictureClock       *CustomPictureClock
	ExtendedTR         uint8

	// SorensonVersion is the 5-bit version field of a Sorenson Spark
	// header (0 or 1); only meaningful with SorensonSparkBitstream.
	SorensonVersion uint8
}

// HalfPel is a displacement in half-pixel units.
type HalfPel int32

// MotionVector is a signed half-pixel displacement locating a block's
// predictor within a reference picture.
type MotionVector struct {
	X HalfPel
	Y HalfPel
}

// plus returns the component-wise sum.
func (v MotionVector) plus(o MotionVector) MotionVector {
	return MotionVector{v.X + o.X, v.Y + o.Y}
}

// MacroblockType is the coding mode signalled by MCBPC.
// Specification: ITU-T H.263, Tables 8 and 9.
type MacroblockType int

// Macroblock types; the numbering follows H.263 MB type codes.
const (
	MbInter MacroblockType = iota
	MbInterQ
	MbInter4V
	MbIntra
	MbIntraQ
	MbInter4VQ
)

// IsIntra reports whether the macroblock codes pixels without prediction.
func (t MacroblockType) IsIntra() bool {
	return t == MbIntra || t == MbIntraQ
}

// HasQuantizer reports whether a DQUANT field follows CBPY.
func (t MacroblockType) HasQuantizer() bool {
	return t == MbInterQ || t == MbIntraQ || t == MbInter4VQ
}

// HasFourVectors reports whether the macroblock carries one motion vector
// per luma quadrant instead of one for the whole macroblock.
func (t MacroblockType) HasFourVectors() bool {
	return t == MbInter4V || t == MbInter4VQ
}

// CodedBlockPattern flags which of the six 8×8 blocks of a macroblock carry
// transmitted coefficients (4 luma quadrants + 2 chroma blocks).
type CodedBlockPattern struct {
	Luma    [4]bool
	ChromaB bool
	ChromaR bool
}

// block reports the flag for block index 0..5 in transmission order.
func (c CodedBlockPattern) block(i int) bool {
	switch i {
	case 4:
		return c.ChromaB
	case 5:
		return c.ChromaR
	default:
		return c.Luma[i]
	}
}

// Macroblock is the transient result of decoding one macroblock layer
// record. Exactly one of Stuffing, (“uncoded”: !Stuffing && !Coded), or
// Coded holds; the remaining fields are only meaningful when Coded.
type Macroblock struct {
	Stuffing bool
	Coded    bool

	Type              MacroblockType
	CodedBlockPattern CodedBlockPattern
	DQuant            int

	// MV carries the motion vector *differentials* as read from the
	// bitstream; the decoder adds the spatial predictor and range-wraps.
	MV [4]MotionVector

	// PB-frame companion data, decoded to keep bit sync and otherwise
	// discarded (the B half of PB pictures is not reconstructed).
	CodedBlockPatternB uint8
	HasMotionVectorsB  bool
	MotionVectorB      MotionVector
}
