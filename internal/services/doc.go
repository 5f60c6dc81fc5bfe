// Package services defines the [Gateway] interface for AI providers that read manga pages and implements it for
// Gemini, along with the page image loader and the speech backends used for narration.
//
// # Gateway Interface
//
// A gateway receives one page image and a target language. TranslatePage returns every detected text region with
// its translation and speaker; NarratePage returns a flowing script suitable for reading aloud.
//
// # Gemini Implementation
//
// [GeminiService] calls the generateContent REST endpoint with the image inlined as base64 and a response schema.
// Authentication uses the x-goog-api-key header, or an [oauth2] transport when an access token is configured.
// Requests are paced by a [rate.Limiter] and bounded by a per-request timeout.
//
// Responses are decoded strictly: unknown fields, missing translations and anything that is not the expected JSON
// shape fail with [shared.ErrInvalidResponse]. An empty array is a valid "no text on this page" result.
//
// # Page Loading
//
// [PageLoader] resolves http(s) URLs, base64 data URLs and paths under the assets directory. The image type is
// sniffed with mimetype so the gateway always gets an accurate MIME type.
//
// # Speech
//
// [Synthesizer] backends voice one [Utterance] at a time:
//   - [CaptionSynthesizer] prints captions and holds each one for its estimated reading time
//   - [ExecSynthesizer] runs an external program such as espeak-ng or say
//
// Backends never fire callbacks from inside Speak, and a stopped utterance never reports completion.
//
// # Error Handling
//
// Services use typed errors from shared package:
//   - [shared.ErrMissingCredentials] : no API key or access token
//   - [shared.ErrGateway] : transport failure, non-2xx status or blocked prompt
//   - [shared.ErrInvalidResponse] : response did not match the schema
//   - [shared.ErrPlayback] : speech backend refused or failed an utterance
package services
