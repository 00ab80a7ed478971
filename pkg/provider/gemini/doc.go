// Package gemini implements the adapter for the Google Gemini
// GenerateContent API, registered under the "google" and "gemini" kinds.
//
// Assistant turns use the "model" role and function outputs are sent as
// functionResponse parts whose name is looked up from the originating
// call. Thought parts are surfaced as reasoning.
package gemini
