// Package openaicompat implements the Chat Completions backend adapter.
// It serves the openai-compatible, openai-chat, cloudflare-ai and zhipu
// kinds: request translation from canonical items to chat messages,
// response translation, and SSE chunk parsing into provider events.
//
// Zhipu has no native reasoning-effort parameter; high and xhigh effort
// are expressed as an appended system reminder message.
package openaicompat
