package interpolators

// resizeArea resamples a single-channel frame to dstH x dstW using
// area averaging: each destination pixel is the coverage-weighted mean
// of the source region it maps onto. This matches the behavior wanted
// for downscaling stimulus frames without aliasing; upscaling degrades
// to box interpolation.
func resizeArea(src []float64, srcH, srcW, dstH, dstW int) []float64 {
	if srcH == dstH && srcW == dstW {
		out := make([]float64, len(src))
		copy(out, src)
		return out
	}

	out := make([]float64, dstH*dstW)
	scaleY := float64(srcH) / float64(dstH)
	scaleX := float64(srcW) / float64(dstW)

	for dy := 0; dy < dstH; dy++ {
		y0 := float64(dy) * scaleY
		y1 := float64(dy+1) * scaleY
		for dx := 0; dx < dstW; dx++ {
			x0 := float64(dx) * scaleX
			x1 := float64(dx+1) * scaleX
			out[dy*dstW+dx] = boxMean(src, srcW, y0, y1, x0, x1)
		}
	}
	return out
}

// boxMean averages src over the fractional box [y0, y1) x [x0, x1).
func boxMean(src []float64, srcW int, y0, y1, x0, x1 float64) float64 {
	var sum, area float64
	for sy := int(y0); float64(sy) < y1; sy++ {
		wy := rowCoverage(float64(sy), y0, y1)
		if wy <= 0 {
			continue
		}
		for sx := int(x0); float64(sx) < x1; sx++ {
			wx := rowCoverage(float64(sx), x0, x1)
			if wx <= 0 {
				continue
			}
			sum += src[sy*srcW+sx] * wy * wx
			area += wy * wx
		}
	}
	if area == 0 {
		return 0
	}
	return sum / area
}

// rowCoverage returns how much of unit cell [c, c+1) falls inside
// [lo, hi).
func rowCoverage(c, lo, hi float64) float64 {
	start := c
	if lo > start {
		start = lo
	}
	end := c + 1
	if hi < end {
		end = hi
	}
	if end <= start {
		return 0
	}
	return end - start
}
