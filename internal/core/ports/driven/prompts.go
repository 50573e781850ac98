package driven

// PromptStore provides access to LLM prompt templates.
// Implementations may load prompts from files, embed them in the binary,
// or fetch them from a remote configuration service.
type PromptStore interface {
	// Load returns the prompt template for the given name.
	// If the prompt is not found, implementations should return a sensible default
	// or an error, depending on whether the prompt is required.
	Load(name string) (string, error)

	// Reload clears any cached prompts, forcing fresh loads on next access.
	// This is useful when prompts may have been edited on disk.
	Reload()
}

// Well-known prompt names used throughout the application.
// These constants define the contract between prompt consumers and providers.
const (
	// PromptDecompose splits a question into sub-questions.
	// The template expects %d (max sub-questions) and %s (question).
	PromptDecompose = "decompose"

	// PromptSynthesize asks for a cited answer.
	// The template expects %s (numbered evidence) and %s (question).
	PromptSynthesize = "synthesize"

	// PromptCondense is the system prompt that turns a follow-up question
	// and chat history into a standalone question. No placeholders.
	PromptCondense = "condense"

	// PromptRerank asks for a 0-10 relevance grade.
	// The template expects %s (query) and %s (passage).
	PromptRerank = "rerank"
)

// PromptStoreAware is an optional interface for services that can use custom prompts.
type PromptStoreAware interface {
	// SetPromptStore sets the prompt store for loading customisable prompts.
	// If not set, the service should use hardcoded default prompts.
	SetPromptStore(store PromptStore)
}
