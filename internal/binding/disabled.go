package binding

// Text generation, sampling and speculative decoding are not wired to the
// engine. These entry points exist so callers get a clear failure instead of
// a missing symbol; none of them touches the BoundModel.

func unsupported(op string) error {
	return fail(newError(Unsupported, op, op+" is disabled: text generation is not supported, use Embeddings", nil))
}

// Predict always fails with ErrUnsupported.
func (b *BoundModel) Predict(prompt string) (string, error) { return "", unsupported("predict") }

// Eval always fails with ErrUnsupported.
func (b *BoundModel) Eval(text string) error { return unsupported("eval") }

// TokenizeString always fails with ErrUnsupported.
func (b *BoundModel) TokenizeString(text string) ([]int32, error) {
	return nil, unsupported("tokenize")
}

// SpeculativeSampling always fails with ErrUnsupported.
func (b *BoundModel) SpeculativeSampling(draft *BoundModel, prompt string) (string, error) {
	return "", unsupported("speculative sampling")
}
