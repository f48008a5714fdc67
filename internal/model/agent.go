package model

import (
	"fmt"
	"strings"
)

// Personality is the closed set of speaking styles an agent can have.
type Personality string

const (
	PersonalityCritical     Personality = "critical"
	PersonalityVisionary    Personality = "visionary"
	PersonalityConservative Personality = "conservative"
	PersonalityNeutral      Personality = "neutral"
)

// ParsePersonality accepts the English values as well as the German ones
// used by older roster files ("kritisch", "visionär", "konservativ").
func ParsePersonality(s string) (Personality, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "critical", "kritisch":
		return PersonalityCritical, nil
	case "visionary", "visionär", "visionaer":
		return PersonalityVisionary, nil
	case "conservative", "konservativ":
		return PersonalityConservative, nil
	case "neutral", "":
		return PersonalityNeutral, nil
	default:
		return "", fmt.Errorf("unknown personality %q", s)
	}
}

func (p Personality) Valid() bool {
	switch p {
	case PersonalityCritical, PersonalityVisionary, PersonalityConservative, PersonalityNeutral:
		return true
	}
	return false
}

// AgentDefinition is one roster entry. Values are copied into a run and never mutated.
type AgentDefinition struct {
	Name        string      `json:"name"`
	Personality Personality `json:"personality"`
	Instruction string      `json:"instruction"`
}

// Language selects the reply-language directive appended to every prompt.
type Language string

const (
	LanguageUnspecified Language = ""
	LanguageGerman      Language = "german"
	LanguageEnglish     Language = "english"
	LanguageFrench      Language = "french"
	LanguageSpanish     Language = "spanish"
)

// ParseLanguage maps identifiers, display names and ISO codes to a Language.
// Anything unrecognized is LanguageUnspecified, which adds no directive.
func ParseLanguage(s string) Language {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "german", "deutsch", "de":
		return LanguageGerman
	case "english", "englisch", "en":
		return LanguageEnglish
	case "french", "französisch", "français", "francais", "fr":
		return LanguageFrench
	case "spanish", "spanisch", "español", "espanol", "es":
		return LanguageSpanish
	default:
		return LanguageUnspecified
	}
}
