package catalog

import "fmt"

// Failure reasons, stable for inspection in tests and metrics.
const (
	ReasonTransport = "transport"
	ReasonStatus    = "status"
	ReasonDecode    = "decode"
)

// Failure describes one soft failure: which call failed and why. A Failure
// is contained where it occurs and degrades to an absent value one layer
// up; it never aborts a run.
type Failure struct {
	URL    string
	Reason string
	Err    error
}

// Error implements error so failures read well in logs and test output.
func (f *Failure) Error() string {
	if f.Err != nil {
		return fmt.Sprintf("%s: %s: %v", f.URL, f.Reason, f.Err)
	}
	return fmt.Sprintf("%s: %s", f.URL, f.Reason)
}

// Unwrap exposes the underlying cause.
func (f *Failure) Unwrap() error {
	return f.Err
}
