// Package llm provides the language-model collaborator client.
//
// The client speaks the OpenAI-compatible chat completion protocol (OpenRouter
// by default) and always requests JSON output. Each call is exactly one HTTP
// attempt. Failures come back typed through the services taxonomy:
//
//   - 408/504 and client timeouts: transient, reason timeout
//   - 429: transient, reason rate_limited, carrying any Retry-After hint
//   - 5xx and transport failures: transient, reason unavailable
//   - empty or unparseable completions: transient, reason malformed_response
//   - 401/403: configuration error
//   - other 4xx: contract violation
//
// Retrying is the node executor's job, so a retry policy lives in one place.
//
// DecodeLLMJSON tolerates code fences and surrounding prose. Decode wraps it
// so a parse failure is reported as a malformed response.
package llm
