// Package llm provides an OpenAI-compatible chat client for text generation.
//
// This package is used by:
//   - Segment splitting: semantic splits of long cues at phrase boundaries
//   - Text polishing: batch cleanup of transcribed dialogue
//
// # Configuration
//
// Requires model and optionally base_url, api_key, timeout. BaseURL may point
// at OpenRouter, Ollama, or any other chat-completions endpoint; api_key may
// be empty for keyless local providers.
//
// # Entry Points
//
// NewClient: construct client from Config.
// Client.Generate: send a prompt, receive the model's text.
// Client.HealthCheck: verify endpoint and model availability.
// DecodeResponse / DecodeStringList: parse JSON out of malformed responses.
//
// # Retry Behaviour
//
// The client retries on HTTP 408/429/5xx errors and network timeouts with
// exponential backoff (base 1s, max 10s, up to 5 attempts by default).
// Context cancellation aborts retries immediately.
//
// # Fallback
//
// If the LLM is unavailable or returns an error, callers degrade the feature
// for that input and keep the original data; an LLM failure is never fatal to
// a run.
package llm
