package contour

// Edge identifies a side of a marching squares cell.
type Edge uint8

const (
	EdgeBottom Edge = iota // Between bottom-left and bottom-right corners.
	EdgeRight              // Between bottom-right and top-right corners.
	EdgeTop                // Between top-left and top-right corners.
	EdgeLeft               // Between bottom-left and top-left corners.
)

func (e Edge) String() string {
	switch e {
	case EdgeBottom:
		return "bottom"
	case EdgeRight:
		return "right"
	case EdgeTop:
		return "top"
	case EdgeLeft:
		return "left"
	}
	return "invalid"
}

// Corner bits of a configuration code.
const (
	BitBottomLeft  = 1
	BitBottomRight = 2
	BitTopRight    = 4
	BitTopLeft     = 8
)

type caseEntry struct {
	n     uint8
	edges [2][2]Edge
}

// caseTable maps a configuration code to the edges each emitted segment
// joins. Segments are oriented so the region above iso lies to the left of
// start→end. Saddles 5 and 10 always join the above-iso corners through the
// cell centre.
var caseTable = [16]caseEntry{
	0:  {},
	1:  {1, [2][2]Edge{{EdgeBottom, EdgeLeft}}},
	2:  {1, [2][2]Edge{{EdgeRight, EdgeBottom}}},
	3:  {1, [2][2]Edge{{EdgeRight, EdgeLeft}}},
	4:  {1, [2][2]Edge{{EdgeTop, EdgeRight}}},
	5:  {2, [2][2]Edge{{EdgeTop, EdgeLeft}, {EdgeBottom, EdgeRight}}},
	6:  {1, [2][2]Edge{{EdgeTop, EdgeBottom}}},
	7:  {1, [2][2]Edge{{EdgeTop, EdgeLeft}}},
	8:  {1, [2][2]Edge{{EdgeLeft, EdgeTop}}},
	9:  {1, [2][2]Edge{{EdgeBottom, EdgeTop}}},
	10: {2, [2][2]Edge{{EdgeLeft, EdgeBottom}, {EdgeRight, EdgeTop}}},
	11: {1, [2][2]Edge{{EdgeRight, EdgeTop}}},
	12: {1, [2][2]Edge{{EdgeLeft, EdgeRight}}},
	13: {1, [2][2]Edge{{EdgeBottom, EdgeRight}}},
	14: {1, [2][2]Edge{{EdgeLeft, EdgeBottom}}},
	15: {},
}

// CaseCount returns how many segments configuration code emits.
func CaseCount(code uint8) int {
	return int(caseTable[code&0xf].n)
}

// CaseEdges returns the (start, end) edge pairs of the segments code emits.
func CaseEdges(code uint8) [][2]Edge {
	c := caseTable[code&0xf]
	return c.edges[:c.n]
}

// Code builds the 4-bit configuration of a cell from its corner values.
// A corner is set when its value exceeds iso.
func Code(bl, br, tr, tl, iso float32) uint8 {
	var code uint8
	if bl > iso {
		code |= BitBottomLeft
	}
	if br > iso {
		code |= BitBottomRight
	}
	if tr > iso {
		code |= BitTopRight
	}
	if tl > iso {
		code |= BitTopLeft
	}
	return code
}
