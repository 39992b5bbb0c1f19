package yinyang

// State selects the rule table the next residue must come from.
type State uint8

const (
	Yin State = iota
	Yang
)

// tables maps a bit pair (00, 01, 10, 11) to a residue, per state.
var tables = [2]string{
	Yin:  "FYVL",
	Yang: "ESTA",
}

func (s State) String() string {
	if s == Yang {
		return "yang"
	}

	return "yin"
}

// Table returns the residues allowed in state s, ordered by bit pair.
func (s State) Table() string {
	return tables[s]
}

func (s State) opposite() State {
	return 1 - s
}

// Emit returns the residue carrying the bit pair value in state s, and the
// state for the following residue.
func Emit(s State, value int) (byte, State) {
	return tables[s][value&3], s.opposite()
}

// Transition reads residue r in state s. It returns the bit pair r carries and
// the next state, or ok=false when r is not allowed in s.
func Transition(s State, r byte) (State, int, bool) {
	table := tables[s]
	for v := 0; v < len(table); v++ {
		if table[v] == r {
			return s.opposite(), v, true
		}
	}

	return s, 0, false
}
