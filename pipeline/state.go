package pipeline

// State is a run's position in the single-pass stage sequence.
type State int

const (
	Idle State = iota
	Collecting
	Decrypting
	Deduplicating
	Enriching
	Reporting
	Done
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "Idle"
	case Collecting:
		return "Collecting"
	case Decrypting:
		return "Decrypting"
	case Deduplicating:
		return "Deduplicating"
	case Enriching:
		return "Enriching"
	case Reporting:
		return "Reporting"
	case Done:
		return "Done"
	case Failed:
		return "Failed"
	default:
		return "Unknown"
	}
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool { return s == Done || s == Failed }
