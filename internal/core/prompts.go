package core

// prompts.go defines the prompt and reply texts used by the orchestrator and
// composer.  Keeping them in one file makes them easy to tweak without
// touching the routing logic.

const (
	// Greeting seeds every new session transcript.
	Greeting = "Hello! I'm your post-discharge care assistant. What's your name?"

	// FoundReply greets a patient whose discharge record was found.  Arguments:
	// name, discharge date, primary diagnosis.
	FoundReply = "Hi %s, I found a discharge on %s for %s. How are you feeling? Are you following your meds?"

	// ApologyReply replaces an answer when the generation service fails.
	ApologyReply = "I'm sorry, I couldn't generate an answer right now. Please try again, or contact your care team if this is urgent."

	// GroundedInstruction opens the grounded prompt.  The references block
	// and the question are appended after it.
	GroundedInstruction = "You are a clinical assistant. Answer the question using only the references below. " +
		"If the references do not cover the question, say so. Cite every source you use by its [SOURCE: id] tag."

	// GroundedClosing ends the grounded prompt.
	GroundedClosing = "Answer with short guidance and cite sources."

	// relyOnInternal closes every web fallback reply that carries no results.
	relyOnInternal = "You must rely on internal knowledge instead."

	webNotConfigured = "Web search is not configured (missing TAVILY_API_KEY). No web evidence was found for '%s'. " + relyOnInternal
	webFailed        = "Web search failed with error: %v. No web evidence was found for '%s'. " + relyOnInternal
	webNoResults     = "No web results found for '%s'. " + relyOnInternal
	webResultsHeader = "Web fallback used. See results:"

	// unknownValue stands in for a blank date or diagnosis in FoundReply.
	unknownValue = "an unrecorded value"
)
