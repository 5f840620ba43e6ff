// Package researcher turns a transcript into research notes, citations, and
// tweet drafts.
//
// Two providers exist. The "service" provider posts the transcript to a
// research endpoint that already speaks clipdraft's contract. The
// "perplexity" provider prompts a chat-completion model and maps its JSON
// answer and top-level citations onto the same Result.
//
// Both validate the answer the same way: notes must be present, at least one
// draft must be non-blank, and every citation needs a source.
package researcher
