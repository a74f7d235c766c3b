// Package assist holds the HTTP clients for the external collaborator
// services: speech transcription, code generation, and code review. Each
// service is treated as an opaque HTTP endpoint speaking JSON; the
// transcription path retries transient failures with exponential backoff
// because it sits on the live voice loop.
package assist
