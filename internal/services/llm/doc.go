// Package llm is a chat-completion client for OpenAI-compatible APIs such as
// Perplexity. The research gateway uses it when research.provider is
// "perplexity".
//
// Complete sends a system and user prompt and returns the first non-empty
// choice together with any top-level citations and search results. Requests
// go through the gateway package, so a call is a single attempt and failures
// carry the same kinds as every other gateway. Status 401, 402 and 403 are
// tagged auth_or_quota.
//
// DecodeLLMJSON tolerates code fences and prose around the JSON object
// models tend to emit.
package llm
