package campaign

import (
	"errors"
	"strings"
	"time"
)

// Campaign is the targeting policy for one advocacy effort. The call flow
// reads campaigns; authoring happens elsewhere (operator tooling), so the
// core treats this model as read-only apart from status flips.
type Campaign struct {
	ID   int64  `json:"id" db:"id"`
	Name string `json:"name" db:"name"`

	CountryCode string `json:"country_code" db:"country_code"`
	// Subtype narrows location targeting within a country dataset,
	// e.g. "both", "upper", "lower" for a congress campaign.
	Subtype  string `json:"subtype,omitempty" db:"subtype"`
	Language string `json:"language,omitempty" db:"language"`

	SegmentBy SegmentBy `json:"segment_by" db:"segment_by"`
	LocateBy  LocateBy  `json:"locate_by,omitempty" db:"locate_by"`

	// TargetKeys is the authored, ordered target set for custom segmentation.
	TargetKeys []string `json:"target_keys,omitempty"`

	TargetOrdering string       `json:"target_ordering,omitempty" db:"target_ordering"`
	ShuffleChamber bool         `json:"shuffle_chamber" db:"shuffle_chamber"`
	TargetOffices  OfficePolicy `json:"target_offices,omitempty" db:"target_offices"`

	// CallMaximum caps the dial sequence length. Zero means no cap.
	CallMaximum int `json:"call_maximum,omitempty" db:"call_maximum"`

	PromptSchedule bool `json:"prompt_schedule" db:"prompt_schedule"`
	AllowIntlCalls bool `json:"allow_intl_calls" db:"allow_intl_calls"`

	Status Status `json:"status" db:"status"`

	// PhoneNumbers are the campaign's outbound caller numbers.
	PhoneNumbers []PhoneNumber `json:"phone_numbers,omitempty"`

	// Messages maps message keys (msg_intro, msg_goodbye, ...) to campaign
	// recordings. Keys absent here fall back to DefaultMessages.
	Messages map[string]Message `json:"messages,omitempty"`

	// Embed is echoed to web callers of /call/create.
	Embed *Embed `json:"embed,omitempty"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// PhoneNumber is one outbound number owned by the campaign.
type PhoneNumber struct {
	Number  string `json:"number" db:"number"`   // E.164
	Country string `json:"country" db:"country"` // ISO-2
}

// Message is a prompt definition: a hosted recording, a TTS template, or both.
// When AudioURL is set it wins; Text is the TTS fallback.
type Message struct {
	AudioURL string `json:"audio_url,omitempty" db:"audio_url"`
	Text     string `json:"text,omitempty" db:"text"`
}

func (m Message) IsZero() bool { return m.AudioURL == "" && m.Text == "" }

// Embed carries the script/redirect shown on the campaign's embedding page.
type Embed struct {
	Script   string `json:"script,omitempty"`
	Redirect string `json:"redirect,omitempty"`
}

var ErrInvalidCampaign = errors.New("campaign: invalid configuration")

// Validate enforces the structural invariant that location segmentation
// needs a way to locate callers.
func (c Campaign) Validate() error {
	if c.Name == "" {
		return ErrInvalidCampaign
	}
	switch c.SegmentBy {
	case SegmentByLocation:
		if c.LocateBy == LocateByNone {
			return ErrInvalidCampaign
		}
	case SegmentByCustom:
	default:
		return ErrInvalidCampaign
	}
	return nil
}

// LanguageCode combines campaign language and country into a locale tag,
// defaulting to en-US.
func (c Campaign) LanguageCode() string {
	if c.Language != "" && c.CountryCode != "" {
		return strings.ToLower(c.Language) + "-" + strings.ToUpper(c.CountryCode)
	}
	return "en-US"
}

// NumbersFor returns the campaign's outbound numbers usable for a caller in
// the given region. International campaigns return everything.
func (c Campaign) NumbersFor(region string) []string {
	region = strings.ToUpper(strings.TrimSpace(region))
	out := make([]string, 0, len(c.PhoneNumbers))
	for _, n := range c.PhoneNumbers {
		if region == "" || c.AllowIntlCalls || strings.EqualFold(n.Country, region) {
			out = append(out, n.Number)
		}
	}
	return out
}

// MessageOrDefault resolves a prompt by key, falling back to the installed
// defaults. The second return reports whether the default was used.
func (c Campaign) MessageOrDefault(key string) (Message, bool) {
	if m, ok := c.Messages[key]; ok && !m.IsZero() {
		return m, false
	}
	m, ok := DefaultMessages[key]
	if !ok {
		return Message{}, true
	}
	return m, true
}
