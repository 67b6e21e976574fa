package classifier

import "fmt"

// ErrValidation indicates the input text failed the minimum length contract.
type ErrValidation struct {
	Length int
	Min    int
}

func (e *ErrValidation) Error() string {
	return fmt.Sprintf("text is too short: %d characters, need at least %d", e.Length, e.Min)
}

// ErrModelUnavailable indicates a strategy's artifacts never loaded. It is
// permanent for the life of the process.
type ErrModelUnavailable struct {
	Strategy string
	Err      error
}

func (e *ErrModelUnavailable) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s model unavailable: %v", e.Strategy, e.Err)
	}
	return fmt.Sprintf("%s model unavailable", e.Strategy)
}

func (e *ErrModelUnavailable) Unwrap() error { return e.Err }

// ErrInference indicates a loaded strategy failed for one specific input.
type ErrInference struct {
	Strategy string
	Err      error
}

func (e *ErrInference) Error() string {
	return fmt.Sprintf("%s inference failed: %v", e.Strategy, e.Err)
}

func (e *ErrInference) Unwrap() error { return e.Err }

// ErrInternal wraps failures nothing else anticipated.
type ErrInternal struct {
	Err error
}

func (e *ErrInternal) Error() string {
	return fmt.Sprintf("internal error: %v", e.Err)
}

func (e *ErrInternal) Unwrap() error { return e.Err }
