// Package llm is the generative model collaborator.
//
// Every backend implements Client. Errors are classified so callers can
// tell a timeout from any other failure:
//
//	out, err := client.Generate(ctx, prompt, llm.Options{Timeout: time.Minute})
//	switch {
//	case errors.Is(err, llm.ErrTimeout):
//	    // the call exceeded Options.Timeout
//	case err != nil:
//	    var ce *llm.CallError // provider, network or decoding failure
//	    errors.As(err, &ce)
//	}
//
// LangChain adapts langchaingo's Ollama, OpenAI and Anthropic models behind a
// shared rate limiter. Scripted answers from canned rules and backs tests
// and offline runs.
package llm
