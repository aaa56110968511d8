package budget

import "fmt"

// ErrExceeded is returned when usage surpasses configured limits.
type ErrExceeded struct {
	Kind    string
	Usage   int64
	Limit   int64
	ResetIn string
}

func (e ErrExceeded) Error() string {
	return fmt.Sprintf("llm budget %s exceeded: usage=%d limit=%d (resets in %s)", e.Kind, e.Usage, e.Limit, e.ResetIn)
}
