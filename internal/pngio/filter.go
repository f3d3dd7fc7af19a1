package pngio

import "fmt"

// Filter types, as per the PNG spec.
const (
	FilterNone    = 0
	FilterSub     = 1
	FilterUp      = 2
	FilterAverage = 3
	FilterPaeth   = 4
	nFilter       = 5
)

// Defilter reconstructs the raw pixel buffer from a filtered scanline stream
// of height rows, each a filter selector byte followed by width*bpp bytes.
// Rows are reconstructed strictly top to bottom since Up, Average and Paeth
// read the previous reconstructed row. Trailing bytes after the last row are
// ignored.
func Defilter(filtered []byte, width, height, bpp int) ([]byte, error) {
	stride := width * bpp
	raw := make([]byte, stride*height)
	prev := make([]byte, stride) // all zero above the first row

	for y := 0; y < height; y++ {
		off := y * (1 + stride)
		if off+1+stride > len(filtered) {
			return nil, &TruncatedError{
				What: fmt.Sprintf("scanline %d", y),
				Want: 1 + stride,
				Got:  max(len(filtered)-off, 0),
			}
		}
		cur := raw[y*stride : (y+1)*stride]
		copy(cur, filtered[off+1:off+1+stride])

		switch ft := filtered[off]; ft {
		case FilterNone:
			// No-op.
		case FilterSub:
			for i := bpp; i < stride; i++ {
				cur[i] += cur[i-bpp]
			}
		case FilterUp:
			for i, p := range prev {
				cur[i] += p
			}
		case FilterAverage:
			for i := 0; i < bpp && i < stride; i++ {
				cur[i] += prev[i] / 2
			}
			for i := bpp; i < stride; i++ {
				cur[i] += uint8((int(cur[i-bpp]) + int(prev[i])) / 2)
			}
		case FilterPaeth:
			for i := 0; i < stride; i++ {
				var a, c uint8
				if i >= bpp {
					a, c = cur[i-bpp], prev[i-bpp]
				}
				cur[i] += paeth(a, prev[i], c)
			}
		default:
			return nil, UnknownFilterError(ft)
		}
		prev = cur
	}
	return raw, nil
}

// paeth implements the Paeth predictor, preferring a, then b, then c on ties.
func paeth(a, b, c uint8) uint8 {
	p := int(a) + int(b) - int(c)
	pa := abs(p - int(a))
	pb := abs(p - int(b))
	pc := abs(p - int(c))
	if pa <= pb && pa <= pc {
		return a
	}
	if pb <= pc {
		return b
	}
	return c
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

// Filter encodes raw as a scanline stream using filter type None on every
// row.
func Filter(raw []byte, width, height, bpp int) ([]byte, error) {
	return encode(raw, width, height, bpp, func(dst []byte, cur, prev []byte) {
		dst[0] = FilterNone
		copy(dst[1:], cur)
	})
}

// FilterAdaptive encodes raw choosing, for every row, the filter type whose
// output has the smallest sum of absolute signed byte values. This usually
// compresses better than Filter at the cost of five trial encodings per row.
func FilterAdaptive(raw []byte, width, height, bpp int) ([]byte, error) {
	var trial [nFilter][]byte
	for ft := range trial {
		trial[ft] = make([]byte, 1+width*bpp)
	}
	return encode(raw, width, height, bpp, func(dst []byte, cur, prev []byte) {
		best, bestSum := 0, -1
		for ft := range trial {
			filterRow(trial[ft], ft, cur, prev, bpp)
			sum := 0
			for _, b := range trial[ft][1:] {
				sum += abs(int(int8(b)))
			}
			if bestSum < 0 || sum < bestSum {
				best, bestSum = ft, sum
			}
		}
		copy(dst, trial[best])
	})
}

func encode(raw []byte, width, height, bpp int, row func(dst, cur, prev []byte)) ([]byte, error) {
	stride := width * bpp
	if len(raw) != stride*height {
		return nil, FormatError(fmt.Sprintf("raw buffer is %d bytes, want %d", len(raw), stride*height))
	}
	out := make([]byte, (1+stride)*height)
	prev := make([]byte, stride)
	for y := 0; y < height; y++ {
		cur := raw[y*stride : (y+1)*stride]
		row(out[y*(1+stride):(y+1)*(1+stride)], cur, prev)
		prev = cur
	}
	return out, nil
}

// filterRow writes the selector ft followed by cur filtered against prev
// into dst, which must hold 1+len(cur) bytes.
func filterRow(dst []byte, ft int, cur, prev []byte, bpp int) {
	dst[0] = byte(ft)
	out := dst[1:]
	for i := range cur {
		var a, b, c uint8
		if i >= bpp {
			a, c = cur[i-bpp], prev[i-bpp]
		}
		b = prev[i]
		switch ft {
		case FilterNone:
			out[i] = cur[i]
		case FilterSub:
			out[i] = cur[i] - a
		case FilterUp:
			out[i] = cur[i] - b
		case FilterAverage:
			out[i] = cur[i] - uint8((int(a)+int(b))/2)
		case FilterPaeth:
			out[i] = cur[i] - paeth(a, b, c)
		}
	}
}
