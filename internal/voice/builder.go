package voice

import (
	"strings"

	"callflow-platform/internal/campaign"
)

// ttsLanguages is the gateway's text-to-speech allowlist. Campaign languages
// outside this set degrade to the bare language code, then to English.
var ttsLanguages = map[string]bool{
	"en-US": true, "en-GB": true, "en-AU": true, "en-CA": true,
	"es-US": true, "es-ES": true, "es-MX": true,
	"fr-FR": true, "fr-CA": true,
	"de-DE": true, "it-IT": true, "pt-BR": true,
	"en": true, "es": true, "fr": true, "de": true, "it": true,
}

// TTSLanguage resolves a campaign language to one the gateway can speak.
func TTSLanguage(lang string) string {
	if ttsLanguages[lang] {
		return lang
	}
	if i := strings.IndexByte(lang, '-'); i > 0 {
		if base := lang[:i]; ttsLanguages[base] {
			return base
		}
	}
	return "en"
}

// Builder renders campaign prompts as verbs: recorded audio when the
// campaign provides it, text-to-speech otherwise.
type Builder struct {
	campaign campaign.Campaign
	language string
}

func NewBuilder(c campaign.Campaign) *Builder {
	return &Builder{campaign: c, language: TTSLanguage(c.LanguageCode())}
}

// Prompt returns the verb for one campaign message. Params substitute into
// the spoken text, e.g. {{name}} becomes the target's name.
func (b *Builder) Prompt(key string, params map[string]string) any {
	msg, _ := b.campaign.MessageOrDefault(key)
	if msg.AudioURL != "" {
		return Play{URL: msg.AudioURL}
	}
	return Say{Language: b.language, Text: substitute(msg.Text, params)}
}

// PromptText returns the rendered spoken text for one campaign message.
// Used by the embed surface, which serves scripts as JSON rather than verbs.
func (b *Builder) PromptText(key string, params map[string]string) string {
	msg, _ := b.campaign.MessageOrDefault(key)
	return substitute(msg.Text, params)
}

// substitute replaces {{name}} placeholders. Unknown placeholders are left
// in place so a misconfigured prompt is audible rather than silent.
func substitute(text string, params map[string]string) string {
	if len(params) == 0 || !strings.Contains(text, "{{") {
		return text
	}
	pairs := make([]string, 0, len(params)*2)
	for k, v := range params {
		pairs = append(pairs, "{{"+k+"}}", v)
	}
	return strings.NewReplacer(pairs...).Replace(text)
}
