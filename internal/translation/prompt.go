package translation

import (
	"fmt"

	"golang.org/x/text/language"

	"nmt-api/internal/models"
)

var supportedLanguages = []struct {
	tag        language.Tag
	name       string
	nativeName string
}{
	{language.English, "English", "English"},
	{language.Tamil, "Tamil", "தமிழ்"},
}

// languageNames is keyed by canonical tag string.
var languageNames = func() map[string]string {
	out := make(map[string]string, len(supportedLanguages))
	for _, l := range supportedLanguages {
		out[l.tag.String()] = l.name
	}
	return out
}()

// SupportedLanguages returns the static list of languages the model was trained on.
func SupportedLanguages() []models.LanguageInfo {
	out := make([]models.LanguageInfo, 0, len(supportedLanguages))
	for _, l := range supportedLanguages {
		out = append(out, models.LanguageInfo{
			Code:       l.tag.String(),
			Name:       l.name,
			NativeName: l.nativeName,
		})
	}
	return out
}

// FormatPrompt builds the task-prefixed model input. Known language pairs are spelled out
// by name, matching the prefixes the model was fine-tuned on; anything else uses raw codes.
func FormatPrompt(text, source, target string) string {
	srcName, srcOK := languageNames[source]
	tgtName, tgtOK := languageNames[target]
	if srcOK && tgtOK && source != target {
		return fmt.Sprintf("translate %s to %s: %s", srcName, tgtName, text)
	}
	return fmt.Sprintf("translate %s to %s: %s", source, target, text)
}
