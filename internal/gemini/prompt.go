package gemini

// PromptTemplate is prepended to the listing text of every request.
const PromptTemplate = "Suggest three detailed practice projects based on the following job listing text. " +
	"For each project, include a brief description, key skills required, and expected learning outcomes. " +
	"These projects should be designed to be completable within a week by a dedicated learner.\n\n"

// NoSuggestions is returned, without error, when the API answered with a
// well-formed response that carried no text.
const NoSuggestions = "No suggestions returned."

// BuildPrompt appends sourceText to the template unchanged.
func BuildPrompt(sourceText string) string {
	return PromptTemplate + sourceText
}
