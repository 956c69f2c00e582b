package feasibility

// Status is the cached travel-pressure label of a requested slot.
type Status string

const (
	StatusOK       Status = "ok"
	StatusTight    Status = "tight"
	StatusConflict Status = "conflict"
)

// Valid reports whether s is a known label.
func (s Status) Valid() bool {
	switch s {
	case StatusOK, StatusTight, StatusConflict:
		return true
	}
	return false
}

// Label classifies a slot: conflict when v is infeasible, tight when the
// travel from the preceding viewing exceeds tolerance, else ok.
func Label(v Verdict, travel int, hasPrevious bool, tolerance int) Status {
	switch {
	case !v.Feasible:
		return StatusConflict
	case hasPrevious && travel > tolerance:
		return StatusTight
	default:
		return StatusOK
	}
}
