package digits

import (
	"fmt"
	"sort"

	"shelfscan/pkg/geometry"
)

// SortMethod selects the axis and direction used to order glyph boxes.
type SortMethod int

const (
	LeftToRight SortMethod = iota
	RightToLeft
	TopToBottom
	BottomToTop
)

func (m SortMethod) String() string {
	switch m {
	case LeftToRight:
		return "left-to-right"
	case RightToLeft:
		return "right-to-left"
	case TopToBottom:
		return "top-to-bottom"
	case BottomToTop:
		return "bottom-to-top"
	default:
		return fmt.Sprintf("SortMethod(%d)", int(m))
	}
}

// SortBoxes orders boxes in place by their top-left coordinate along the
// method's axis. Boxes with equal keys keep their discovery order.
func SortBoxes(boxes []geometry.RectInt, method SortMethod) {
	key := func(b geometry.RectInt) int { return b.X }
	if method == TopToBottom || method == BottomToTop {
		key = func(b geometry.RectInt) int { return b.Y }
	}
	desc := method == RightToLeft || method == BottomToTop

	sort.SliceStable(boxes, func(i, j int) bool {
		if desc {
			return key(boxes[i]) > key(boxes[j])
		}
		return key(boxes[i]) < key(boxes[j])
	})
}
