package chat

// wellnessSystemPrompt frames every conversation. It is the first
// history entry of each session and is never shown in the transcript.
const wellnessSystemPrompt = "You are a helpful wellness assistant who provides advice about health, lifestyle, and stress management. Keep responses concise and practical."
