// Package imagegen is the client for the image collaborator that brands
// templates, renders meme text and animates finished memes.
//
// Every operation posts a JSON request to the configured service and writes
// the returned bytes atomically to a caller-chosen path inside the run
// directory. Failures use the same typing as the LLM client: throttling,
// timeouts and server errors are transient, other 4xx responses are contract
// violations. Each call is a single attempt.
package imagegen
