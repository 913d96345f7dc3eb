package llmclient

import "fmt"

// ProviderError wraps any failure on the completion transport so the agent
// loop can distinguish "the model could not answer" from every other error
// class. It always surfaces; nothing in this package swallows one.
type ProviderError struct {
	Provider string
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("llm provider %s: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// newProviderError wraps err for the named provider. A nil err returns nil.
func newProviderError(provider string, err error) error {
	if err == nil {
		return nil
	}
	return &ProviderError{Provider: provider, Err: err}
}
