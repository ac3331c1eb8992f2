package layout

// Rect is a container rectangle in output pixels as reported by the window manager.
type Rect struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Portrait reports whether the rectangle is strictly taller than it is wide.
func (r Rect) Portrait() bool {
	return r.Height > r.Width
}

// Container layouts as reported in the tree's layout field.
const (
	SplitH  = "splith"
	SplitV  = "splitv"
	Stacked = "stacked"
	Tabbed  = "tabbed"
)

// Orientation returns the split layout matching the rectangle's longer axis.
// Square rectangles split horizontally.
func Orientation(r Rect) string {
	if r.Portrait() {
		return SplitV
	}
	return SplitH
}
