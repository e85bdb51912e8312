package layout

// TabStops computes tab advances in oracle units.
// Stops are placed every tabWidth space widths from the start of a row.
type TabStops struct {
	tabWidth int
}

// DefaultTabWidth is the tab width used when none is configured.
const DefaultTabWidth = 4

// NewTabStops creates tab stops every tabWidth spaces.
func NewTabStops(tabWidth int) TabStops {
	if tabWidth < 1 {
		tabWidth = DefaultTabWidth
	}
	return TabStops{tabWidth: tabWidth}
}

// TabWidth returns the tab width in spaces.
func (t TabStops) TabWidth() int {
	return t.tabWidth
}

// Advance returns the width a tab occupies when it starts at position x,
// given the width of one space. A tab always advances by a positive amount.
func (t TabStops) Advance(x, space float64) float64 {
	stop := float64(t.tabWidth) * space
	if stop <= 0 {
		return space
	}
	next := (float64(int(x/stop)) + 1) * stop
	return next - x
}
