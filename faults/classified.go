package faults

// classified pins an error to a fixed severity tier, bypassing the keyword
// and type rules.
type classified struct {
	err      error
	severity Severity
}

func (c *classified) Error() string { return c.err.Error() }

func (c *classified) Unwrap() error { return c.err }

// WithSeverity wraps err so Classify always returns sev for it. A nil err
// returns nil.
func WithSeverity(err error, sev Severity) error {
	if err == nil {
		return nil
	}
	return &classified{err: err, severity: sev}
}
