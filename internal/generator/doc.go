// Package generator produces images for the gateway's initial and continue
// endpoints.
//
// Two backends exist:
//
//   - echo: returns the input image unchanged with the text
//     "(Stub) Model response for prompt: <prompt>". Useful for development
//     and tests.
//   - openai: calls the OpenAI image edit endpoint (gpt-image-1 by default)
//     with the input image and prompt, and decodes the base64 PNG it returns.
//
// New picks the backend from config.GeneratorConfig.
package generator
