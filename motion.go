package h263

// sample reads one plane sample with coordinates clamped to the edges, which
// implements the unrestricted-motion-vector edge extension.
func (p *Plane) sample(x, y int) int {
	if x < 0 {
		x = 0
	} else if x >= p.Width {
		x = p.Width - 1
	}
	if y < 0 {
		y = 0
	} else if y >= p.Height {
		y = p.Height - 1
	}

	return int(p.Data[y*p.Width+x])
}

// gatherBlock writes the motion-compensated prediction for the size-square
// block anchored at (dx, dy) in dst, sampling src displaced by mv. Whole
// and half pixel displacements split as floor(mv/2) plus fraction, so
// negative vectors round toward the left/top sample. Half-pixel positions
// interpolate with a single rounding step per sample.
func gatherBlock(src, dst *Plane, mv MotionVector, dx, dy, size int) {
	ix := int(mv.X) >> 1
	iy := int(mv.Y) >> 1
	oddH := mv.X&1 != 0
	oddV := mv.Y&1 != 0

	for y := 0; y < size; y++ {
		di := (dy+y)*dst.Width + dx
		sy := dy + y + iy

		switch {
		case oddH && oddV:
			for x := 0; x < size; x++ {
				sx := dx + x + ix
				dst.Data[di+x] = byte((src.sample(sx, sy) +
					src.sample(sx+1, sy) +
					src.sample(sx, sy+1) +
					src.sample(sx+1, sy+1) + 2) >> 2)
			}
		case oddH:
			for x := 0; x < size; x++ {
				sx := dx + x + ix
				dst.Data[di+x] = byte((src.sample(sx, sy) + src.sample(sx+1, sy) + 1) >> 1)
			}
		case oddV:
			for x := 0; x < size; x++ {
				sx := dx + x + ix
				dst.Data[di+x] = byte((src.sample(sx, sy) + src.sample(sx, sy+1) + 1) >> 1)
			}
		default:
			for x := 0; x < size; x++ {
				dst.Data[di+x] = byte(src.sample(dx+x+ix, sy))
			}
		}
	}
}

// copyMacroblock copies a colocated macroblock from the reference picture,
// which reconstructs an uncoded inter macroblock.
func copyMacroblock(ref, dst *Picture, mbCol, mbRow int) {
	var zero MotionVector
	gatherBlock(&ref.Y, &dst.Y, zero, mbCol<<4, mbRow<<4, 16)
	gatherBlock(&ref.Cb, &dst.Cb, zero, mbCol<<3, mbRow<<3, 8)
	gatherBlock(&ref.Cr, &dst.Cr, zero, mbCol<<3, mbRow<<3, 8)
}
