package condition

// Result is the tri-state outcome of a condition evaluation. Undefined is
// distinct from False: it marks insufficient history or missing data, and
// the scan engine logs it separately so a quiet strategy can be told apart
// from a data gap.
type Result int

const (
	False Result = iota
	True
	Undefined
)

func (r Result) String() string {
	switch r {
	case True:
		return "true"
	case False:
		return "false"
	case Undefined:
		return "undefined"
	default:
		return "invalid"
	}
}

// Satisfied reports whether the condition passed. Undefined never
// satisfies a required condition.
func (r Result) Satisfied() bool {
	return r == True
}
