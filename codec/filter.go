package codec

// Filter type, as per the PNG spec.
const (
	ftNone    = 0
	ftSub     = 1
	ftUp      = 2
	ftAverage = 3
	ftPaeth   = 4
	nFilter   = 5
)

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

// paeth implements the Paeth predictor function from the PNG spec.
func paeth(a, b, c uint8) uint8 {
	pc := int(c)
	pa := int(b) - pc
	pb := int(a) - pc
	pc = abs(pa + pb)
	pa = abs(pa)
	pb = abs(pb)
	if pa <= pb && pa <= pc {
		return a
	} else if pb <= pc {
		return b
	}
	return c
}

// unfilter reverses filter type ft in place on cdat using the previous row pdat.
func unfilter(ft uint8, cdat, pdat []byte, bpp int) bool {
	switch ft {
	case ftNone:
	case ftSub:
		for i := bpp; i < len(cdat); i++ {
			cdat[i] += cdat[i-bpp]
		}
	case ftUp:
		for i, p := range pdat {
			cdat[i] += p
		}
	case ftAverage:
		for i := 0; i < bpp && i < len(cdat); i++ {
			cdat[i] += pdat[i] / 2
		}
		for i := bpp; i < len(cdat); i++ {
			cdat[i] += uint8((int(cdat[i-bpp]) + int(pdat[i])) / 2)
		}
	case ftPaeth:
		for i := 0; i < bpp && i < len(cdat); i++ {
			cdat[i] += paeth(0, pdat[i], 0)
		}
		for i := bpp; i < len(cdat); i++ {
			cdat[i] += paeth(cdat[i-bpp], pdat[i], pdat[i-bpp])
		}
	default:
		return false
	}
	return true
}

// chooseFilter fills cr[1..4] with the filtered forms of cr[0] and returns
// the filter type that minimizes the sum of absolute differences, the
// heuristic recommended by the PNG spec. cr[i][0] holds the filter type byte.
// The length of pr sets the length of the row.
func chooseFilter(cr *[nFilter][]byte, pr []byte, bpp int, adaptive bool) int {
	cdat0 := cr[0][1:]
	pdat := pr[1:]
	if !adaptive {
		return ftNone
	}
	n := len(pdat)
	best, filter := 0, ftNone
	for i := range n {
		best += abs(int(int8(cdat0[i])))
	}

	cdat := cr[ftUp][1:]
	sum := 0
	for i := range n {
		cdat[i] = cdat0[i] - pdat[i]
		sum += abs(int(int8(cdat[i])))
	}
	if sum < best {
		best, filter = sum, ftUp
	}

	cdat = cr[ftPaeth][1:]
	sum = 0
	for i := 0; i < bpp && i < n; i++ {
		cdat[i] = cdat0[i] - pdat[i]
		sum += abs(int(int8(cdat[i])))
	}
	for i := bpp; i < n; i++ {
		cdat[i] = cdat0[i] - paeth(cdat0[i-bpp], pdat[i], pdat[i-bpp])
		sum += abs(int(int8(cdat[i])))
		if sum >= best {
			break
		}
	}
	if sum < best {
		best, filter = sum, ftPaeth
	}

	cdat = cr[ftSub][1:]
	sum = 0
	for i := 0; i < bpp && i < n; i++ {
		cdat[i] = cdat0[i]
		sum += abs(int(int8(cdat[i])))
	}
	for i := bpp; i < n; i++ {
		cdat[i] = cdat0[i] - cdat0[i-bpp]
		sum += abs(int(int8(cdat[i])))
		if sum >= best {
			break
		}
	}
	if sum < best {
		best, filter = sum, ftSub
	}

	cdat = cr[ftAverage][1:]
	sum = 0
	for i := 0; i < bpp && i < n; i++ {
		cdat[i] = cdat0[i] - pdat[i]/2
		sum += abs(int(int8(cdat[i])))
	}
	for i := bpp; i < n; i++ {
		cdat[i] = cdat0[i] - uint8((int(cdat0[i-bpp])+int(pdat[i]))/2)
		sum += abs(int(int8(cdat[i])))
		if sum >= best {
			break
		}
	}
	if sum < best {
		filter = ftAverage
	}
	return filter
}
