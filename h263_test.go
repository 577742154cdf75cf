package h263_test

import (
	"bytes"
	"errors"
	"testing"

	"github.com/torokati44/h263"
)

// bitWriter assembles MSB-first test bitstreams.
type bitWriter struct {
	data []byte
	n    int
}

func (w *bitWriter) writeBits(value uint32, count int) {
	for i := count - 1; i >= 0; i-- {
		if w.n == 0 {
			w.data = append(w.data, 0)
		}

		bit := byte(value>>uint(i)) & 1
		w.data[len(w.data)-1] |= bit << uint(7-w.n)
		w.n = (w.n + 1) & 7
	}
}

// writeSorensonHeader emits a Sorenson Spark picture header for a 16x16
// picture: one macroblock.
func (w *bitWriter) writeSorensonHeader(tr, pictureType, quant uint32) {
	w.writeBits(1, 17) // start code
	w.writeBits(0, 5)  // version
	w.writeBits(tr, 8) // temporal reference
	w.writeBits(0, 3)  // custom 8-bit size
	w.writeBits(16, 8) // width
	w.writeBits(16, 8) // height
	w.writeBits(pictureType, 2)
	w.writeBits(0, 1)     // deblocking
	w.writeBits(quant, 5) // PQUANT
	w.writeBits(0, 1)     // PEI
}

// writeIntraMacroblock emits an intra macroblock carrying only the six DC
// levels, so every block decodes to a flat 8x8 patch.
func (w *bitWriter) writeIntraMacroblock(dc [6]uint32) {
	w.writeBits(1, 1) // MCBPC: intra, chroma blocks not coded
	w.writeBits(3, 4) // CBPY: luma blocks not coded
	for _, v := range dc {
		w.writeBits(v, 8)
	}
}

func checkFlatPlane(t *testing.T, name string, p h263.Plane, want byte) {
	t.Helper()

	for i, v := range p.Data {
		if v != want {
			t.Fatalf("%s[%d]: got %d, want %d", name, i, v, want)
		}
	}
}

func TestBuffer(t *testing.T) {
	buf, err := h263.NewBuffer(bytes.NewReader([]byte{0xa5, 0x0f}))
	if err != nil {
		t.Fatal(err)
	}

	buf.SetLoadCallback(buf.LoadReaderCallback)

	if buf.Size() != 2 {
		t.Errorf("Size: got %d, want %d", buf.Size(), 2)
	}

	v, err := buf.ReadBits(4)
	if err != nil {
		t.Fatal(err)
	}
	if v != 0xa {
		t.Errorf("ReadBits: got %#x, want %#x", v, 0xa)
	}

	err = buf.Transaction(func(b *h263.Buffer) error {
		if _, rerr := b.ReadBits(8); rerr != nil {
			return rerr
		}

		return h263.ErrInvalidBitstream
	})
	if !errors.Is(err, h263.ErrInvalidBitstream) {
		t.Errorf("Transaction: got %v, want %v", err, h263.ErrInvalidBitstream)
	}

	if buf.BitIndex() != 4 {
		t.Errorf("BitIndex after rollback: got %d, want %d", buf.BitIndex(), 4)
	}

	err = buf.Transaction(func(b *h263.Buffer) error {
		v, rerr := b.ReadBits(8)
		if rerr != nil {
			return rerr
		}
		if v != 0x50 {
			t.Errorf("ReadBits: got %#x, want %#x", v, 0x50)
		}

		return nil
	})
	if err != nil {
		t.Fatal(err)
	}

	if buf.BitIndex() != 12 {
		t.Errorf("BitIndex after commit: got %d, want %d", buf.BitIndex(), 12)
	}

	ok, err := buf.TransactionOption(func(b *h263.Buffer) (bool, error) {
		if _, rerr := b.ReadBits(4); rerr != nil {
			return false, rerr
		}

		return false, nil
	})
	if err != nil || ok {
		t.Errorf("TransactionOption: got ok=%v err=%v, want soft failure", ok, err)
	}

	if buf.BitIndex() != 12 {
		t.Errorf("BitIndex after option rollback: got %d, want %d", buf.BitIndex(), 12)
	}

	if _, err := buf.ReadBits(8); !errors.Is(err, h263.ErrEndOfBitstream) {
		t.Errorf("ReadBits past end: got %v, want %v", err, h263.ErrEndOfBitstream)
	}

	if buf.BitIndex() != 12 {
		t.Errorf("BitIndex after failed read: got %d, want %d", buf.BitIndex(), 12)
	}

	buf.SkipToAlignment()
	if buf.BitIndex() != 16 {
		t.Errorf("BitIndex after alignment: got %d, want %d", buf.BitIndex(), 16)
	}
}

func TestDecodeSorensonIntra(t *testing.T) {
	var w bitWriter
	w.writeSorensonHeader(7, 0, 10)
	w.writeIntraMacroblock([6]uint32{150, 150, 150, 150, 100, 60})

	dec, err := h263.NewDecoder(bytes.NewReader(w.data), h263.SorensonSparkBitstream)
	if err != nil {
		t.Fatal(err)
	}

	pic, err := dec.DecodeNextPicture()
	if err != nil {
		t.Fatal(err)
	}

	if pic.Width != 16 || pic.Height != 16 {
		t.Errorf("size: got %dx%d, want 16x16", pic.Width, pic.Height)
	}

	if pic.Header.PictureType != h263.PictureTypeI {
		t.Errorf("PictureType: got %d, want %d", pic.Header.PictureType, h263.PictureTypeI)
	}

	if pic.Header.TemporalReference != 7 {
		t.Errorf("TemporalReference: got %d, want %d", pic.Header.TemporalReference, 7)
	}

	if pic.Header.Quantizer != 10 {
		t.Errorf("Quantizer: got %d, want %d", pic.Header.Quantizer, 10)
	}

	checkFlatPlane(t, "Y", pic.Y, 150)
	checkFlatPlane(t, "Cb", pic.Cb, 100)
	checkFlatPlane(t, "Cr", pic.Cr, 60)

	if dec.LastPicture() != pic {
		t.Error("LastPicture: not the decoded picture")
	}

	img := pic.YCbCr()
	if img.Bounds().Dx() != 16 || img.Bounds().Dy() != 16 {
		t.Errorf("YCbCr bounds: got %v, want 16x16", img.Bounds())
	}

	if _, err := dec.DecodeNextPicture(); !errors.Is(err, h263.ErrEndOfBitstream) {
		t.Errorf("past end: got %v, want %v", err, h263.ErrEndOfBitstream)
	}
}

func TestDecodeSorensonPrediction(t *testing.T) {
	var w bitWriter
	w.writeSorensonHeader(7, 0, 10)
	w.writeIntraMacroblock([6]uint32{150, 150, 150, 150, 100, 60})

	// P-picture with its single macroblock uncoded: a copy of the
	// reference.
	w.writeSorensonHeader(8, 1, 10)
	w.writeBits(1, 1) // COD

	// Disposable P-picture, also uncoded; must not become a reference.
	w.writeSorensonHeader(9, 2, 10)
	w.writeBits(1, 1) // COD

	dec, err := h263.NewDecoder(bytes.NewReader(w.data), h263.SorensonSparkBitstream)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := dec.DecodeNextPicture(); err != nil {
		t.Fatal(err)
	}

	p, err := dec.DecodeNextPicture()
	if err != nil {
		t.Fatal(err)
	}
	if p.Header.PictureType != h263.PictureTypeP {
		t.Errorf("PictureType: got %d, want %d", p.Header.PictureType, h263.PictureTypeP)
	}
	checkFlatPlane(t, "Y", p.Y, 150)
	checkFlatPlane(t, "Cb", p.Cb, 100)
	checkFlatPlane(t, "Cr", p.Cr, 60)

	dp, err := dec.DecodeNextPicture()
	if err != nil {
		t.Fatal(err)
	}
	if dp.Header.PictureType != h263.PictureTypeDisposableP {
		t.Errorf("PictureType: got %d, want %d", dp.Header.PictureType, h263.PictureTypeDisposableP)
	}
	checkFlatPlane(t, "Y", dp.Y, 150)

	if got := dec.LastPicture().Header.TemporalReference; got != 8 {
		t.Errorf("LastPicture: got TR %d, want %d", got, 8)
	}
	if dec.Picture(9) != nil {
		t.Error("Picture(9): disposable picture entered the reference store")
	}
}

func TestDecodeStandardIntra(t *testing.T) {
	var w bitWriter
	w.writeBits(0x20, 22) // picture start code
	w.writeBits(42, 8)    // temporal reference
	w.writeBits(0x10, 5)  // PTYPE: marker, zero, no flags
	w.writeBits(2, 3)     // source format: QCIF
	w.writeBits(0, 5)     // I-picture, no optional modes
	w.writeBits(12, 5)    // PQUANT
	w.writeBits(0, 1)     // CPM
	w.writeBits(0, 1)     // PEI

	for i := 0; i < 99; i++ {
		w.writeIntraMacroblock([6]uint32{64, 64, 64, 64, 128 + 10, 128 - 10})
	}

	dec, err := h263.NewDecoder(bytes.NewReader(w.data), 0)
	if err != nil {
		t.Fatal(err)
	}

	pic, err := dec.DecodeNextPicture()
	if err != nil {
		t.Fatal(err)
	}

	if pic.Width != 176 || pic.Height != 144 {
		t.Errorf("size: got %dx%d, want 176x144", pic.Width, pic.Height)
	}

	if pic.Header.Format != h263.SourceFormatQCIF {
		t.Errorf("Format: got %d, want %d", pic.Header.Format, h263.SourceFormatQCIF)
	}

	if pic.Header.TemporalReference != 42 {
		t.Errorf("TemporalReference: got %d, want %d", pic.Header.TemporalReference, 42)
	}

	checkFlatPlane(t, "Y", pic.Y, 64)
	checkFlatPlane(t, "Cb", pic.Cb, 138)
	checkFlatPlane(t, "Cr", pic.Cr, 118)
}

func TestDecodeStandardMultipleGOBs(t *testing.T) {
	var w bitWriter
	w.writeBits(0x20, 22) // picture start code
	w.writeBits(9, 8)     // temporal reference
	w.writeBits(0x10, 5)  // PTYPE: marker, zero, no flags
	w.writeBits(1, 3)     // source format: sub-QCIF
	w.writeBits(0, 5)     // I-picture, no optional modes
	w.writeBits(12, 5)    // PQUANT
	w.writeBits(0, 1)     // CPM
	w.writeBits(0, 1)     // PEI

	// GOB 0: one row of eight macroblocks.
	for i := 0; i < 8; i++ {
		w.writeIntraMacroblock([6]uint32{150, 150, 150, 150, 100, 60})
	}

	// GOB 1 opens with an in-stream header; the remaining five rows follow
	// without further headers.
	w.writeBits(1, 17) // GOB start code
	w.writeBits(1, 5)  // group number
	w.writeBits(0, 2)  // GFID
	w.writeBits(14, 5) // GQUANT
	for i := 0; i < 40; i++ {
		w.writeIntraMacroblock([6]uint32{50, 50, 50, 50, 100, 60})
	}

	dec, err := h263.NewDecoder(bytes.NewReader(w.data), 0)
	if err != nil {
		t.Fatal(err)
	}

	pic, err := dec.DecodeNextPicture()
	if err != nil {
		t.Fatal(err)
	}

	if pic.Width != 128 || pic.Height != 96 {
		t.Fatalf("size: got %dx%d, want 128x96", pic.Width, pic.Height)
	}

	for y := 0; y < pic.Y.Height; y++ {
		want := byte(50)
		if y < 16 {
			want = 150
		}
		for x := 0; x < pic.Y.Width; x++ {
			if got := pic.Y.Data[y*pic.Y.Width+x]; got != want {
				t.Fatalf("luma (%d, %d): got %d, want %d", x, y, got, want)
			}
		}
	}
}

func TestDecodeUnimplementedOption(t *testing.T) {
	var w bitWriter
	w.writeBits(0x20, 22) // picture start code
	w.writeBits(8, 8)     // temporal reference
	w.writeBits(0x10, 5)  // PTYPE: marker, zero, no flags
	w.writeBits(7, 3)     // source format: PLUSPTYPE
	w.writeBits(1, 3)     // UFEP: OPPTYPE present
	w.writeBits(2<<15|1<<4|0x8, 18)
	w.writeBits(1, 9)  // MPPTYPE: I-picture
	w.writeBits(0, 1)  // CPM
	w.writeBits(10, 5) // PQUANT
	w.writeBits(0, 1)  // PEI

	dec, err := h263.NewDecoder(bytes.NewReader(w.data), 0)
	if err != nil {
		t.Fatal(err)
	}

	// Modified quantization changes DQUANT and TCOEF syntax; the decoder
	// must refuse the picture instead of desyncing.
	if _, err := dec.DecodeNextPicture(); !errors.Is(err, h263.ErrUnimplementedDecoding) {
		t.Errorf("got %v, want %v", err, h263.ErrUnimplementedDecoding)
	}
}

func TestDecodeStreaming(t *testing.T) {
	var w bitWriter
	w.writeSorensonHeader(3, 0, 10)
	w.writeIntraMacroblock([6]uint32{150, 150, 150, 150, 100, 60})

	dec, err := h263.NewDecoder(nil, h263.SorensonSparkBitstream)
	if err != nil {
		t.Fatal(err)
	}

	dec.Write(w.data[:5])

	if _, err := dec.DecodeNextPicture(); !errors.Is(err, h263.ErrEndOfBitstream) {
		t.Fatalf("partial data: got %v, want %v", err, h263.ErrEndOfBitstream)
	}

	dec.Write(w.data[5:])
	dec.SignalEnd()

	pic, err := dec.DecodeNextPicture()
	if err != nil {
		t.Fatal(err)
	}

	checkFlatPlane(t, "Y", pic.Y, 150)
}

func BenchmarkDecodeStandardIntra(b *testing.B) {
	var w bitWriter
	w.writeBits(0x20, 22)
	w.writeBits(42, 8)
	w.writeBits(0x10, 5)
	w.writeBits(2, 3)
	w.writeBits(0, 5)
	w.writeBits(12, 5)
	w.writeBits(0, 1)
	w.writeBits(0, 1)

	for i := 0; i < 99; i++ {
		w.writeIntraMacroblock([6]uint32{64, 64, 64, 64, 138, 118})
	}

	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		dec, err := h263.NewDecoder(bytes.NewReader(w.data), 0)
		if err != nil {
			b.Fatal(err)
		}

		if _, err := dec.DecodeNextPicture(); err != nil {
			b.Fatal(err)
		}
	}
}

func TestReferenceStoreReset(t *testing.T) {
	var w bitWriter
	w.writeSorensonHeader(7, 0, 10)
	w.writeIntraMacroblock([6]uint32{150, 150, 150, 150, 100, 60})
	w.writeSorensonHeader(8, 1, 10)
	w.writeBits(1, 1) // COD
	w.writeSorensonHeader(20, 0, 10)
	w.writeIntraMacroblock([6]uint32{50, 50, 50, 50, 128 + 1, 128 - 1})

	dec, err := h263.NewDecoder(bytes.NewReader(w.data), h263.SorensonSparkBitstream)
	if err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 2; i++ {
		if _, err := dec.DecodeNextPicture(); err != nil {
			t.Fatal(err)
		}
	}

	if dec.Picture(7) == nil || dec.Picture(8) == nil {
		t.Fatal("reference store: pictures 7 and 8 not retained")
	}

	if _, err := dec.DecodeNextPicture(); err != nil {
		t.Fatal(err)
	}

	if dec.Picture(7) != nil || dec.Picture(8) != nil {
		t.Error("reference store: not cleared by I-picture")
	}
	if dec.Picture(20) == nil {
		t.Error("Picture(20): missing after I-picture")
	}
	checkFlatPlane(t, "Y", dec.Picture(20).Y, 50)
}
