// Package openai implements the ai interfaces using OpenAI-compatible APIs
// via langchaingo. It works with any OpenAI-compatible server (OpenAI,
// Ollama, LocalAI, vLLM).
package openai
