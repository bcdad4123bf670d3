package llmprovider

import "context"

// Fake is a deterministic test double matching this package's
// Generate contract.
type Fake struct {
	Text string
	OK   bool
	Err  error
	// Calls records every prompt passed to Generate, for assertions.
	Calls []string
}

func (f *Fake) Generate(_ context.Context, prompt string, _ Options) (string, bool, error) {
	f.Calls = append(f.Calls, prompt)
	if f.Err != nil {
		return "", false, f.Err
	}
	return f.Text, f.OK, nil
}
