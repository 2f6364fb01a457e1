package agent

import "github.com/kissan-ai/kissan/pkg/providers"

const configErrorText = "System Error: API Key is missing or invalid. Please check your configuration."

const defaultGenericErrorText = "Maaf kijiye, mujhe response hasil karne mein dushwari ho rahi hai. Baraye meharbani dobara koshish karein. (Sorry, I encountered an error. Please try again.)"

var genericErrorText = map[providers.Language]string{
	providers.LanguageEnglish: "Sorry, I encountered an error. Please try again.",
}

// FailureText is the user-facing text for a failed advisory. Credential
// problems get a dedicated message; everything else asks for a retry.
func FailureText(lang providers.Language, err error) string {
	if providers.IsConfigError(err) {
		return configErrorText
	}
	if text, ok := genericErrorText[lang]; ok {
		return text
	}
	return defaultGenericErrorText
}
