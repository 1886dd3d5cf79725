package codec

// interlaceScan defines the placement and size of a pass for Adam7 interlacing.
type interlaceScan struct {
	xFactor, yFactor, xOffset, yOffset int
}

// adam7 lists the seven Adam7 passes.
// https://www.w3.org/TR/PNG/#8Interlace
var adam7 = [7]interlaceScan{
	{8, 8, 0, 0},
	{8, 8, 4, 0},
	{4, 8, 0, 4},
	{4, 4, 2, 0},
	{2, 4, 0, 2},
	{2, 2, 1, 0},
	{1, 2, 0, 1},
}

func (p interlaceScan) width(w int) int {
	if w <= p.xOffset {
		return 0
	}
	return (w - p.xOffset + p.xFactor - 1) / p.xFactor
}

func (p interlaceScan) height(h int) int {
	if h <= p.yOffset {
		return 0
	}
	return (h - p.yOffset + p.yFactor - 1) / p.yFactor
}

// contains reports whether image row y carries pixels of this pass for an
// image w pixels wide.
func (p interlaceScan) contains(y, w int) bool {
	return p.width(w) > 0 && y >= p.yOffset && (y-p.yOffset)%p.yFactor == 0
}

// scatter copies the n pixels of a reduced row src into their positions in
// the full row dst. Pixels are bpp bits wide.
func (p interlaceScan) scatter(dst, src []byte, n, bpp int) {
	if bpp >= 8 {
		bytes := bpp / 8
		for i := range n {
			x := p.xOffset + i*p.xFactor
			copy(dst[x*bytes:x*bytes+bytes], src[i*bytes:i*bytes+bytes])
		}
		return
	}
	for i := range n {
		x := p.xOffset + i*p.xFactor
		setBits(dst, x, bpp, getBits(src, i, bpp))
	}
}

// gather is the inverse of scatter.
func (p interlaceScan) gather(dst, src []byte, n, bpp int) {
	if bpp >= 8 {
		bytes := bpp / 8
		for i := range n {
			x := p.xOffset + i*p.xFactor
			copy(dst[i*bytes:i*bytes+bytes], src[x*bytes:x*bytes+bytes])
		}
		return
	}
	for i := range n {
		x := p.xOffset + i*p.xFactor
		setBits(dst, i, bpp, getBits(src, x, bpp))
	}
}

// getBits returns the i-th bpp bit wide value of a packed, MSB first row.
func getBits(row []byte, i, bpp int) uint8 {
	bit := i * bpp
	shift := 8 - bpp - bit%8
	return (row[bit/8] >> shift) & (1<<bpp - 1)
}

func setBits(row []byte, i, bpp int, v uint8) {
	bit := i * bpp
	shift := 8 - bpp - bit%8
	mask := uint8(1<<bpp-1) << shift
	row[bit/8] = row[bit/8]&^mask | (v<<shift)&mask
}
