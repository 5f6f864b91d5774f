// Package ollama wraps the ollama CLI and local HTTP API, exposing queue
// executors for model pulls and model inference runs.
package ollama
