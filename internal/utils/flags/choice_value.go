// Package flags provides choice-valued pflag helpers whose usage text highlights the default.
package flags

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
)

const (
	choiceValueTypeName          = "string"
	unsupportedChoiceTemplate    = "unsupported value %q (expected one of %s)"
	supportedChoicesSeparator    = ", "
	choiceValueDefaultTrimPolicy = " \t"
	choicePlaceholderTemplate    = "`<%s>`"
	choicePlaceholderSeparator   = "|"
	choiceUsageSeparator         = " "
)

// ChoiceValue is a pflag.Value accepting one of a fixed set of case-insensitive choices.
type ChoiceValue struct {
	selected      string
	defaultChoice string
	choices       []string
	changed       bool
}

// NewChoiceValue constructs a ChoiceValue holding defaultChoice.
// Choices are lower-cased; blank and repeated choices are dropped.
func NewChoiceValue(defaultChoice string, choices []string) *ChoiceValue {
	normalizedChoices := make([]string, 0, len(choices))
	seenChoices := make(map[string]struct{}, len(choices))
	for _, choice := range choices {
		normalizedChoice := normalizeChoice(choice)
		if len(normalizedChoice) == 0 {
			continue
		}
		if _, seen := seenChoices[normalizedChoice]; seen {
			continue
		}
		seenChoices[normalizedChoice] = struct{}{}
		normalizedChoices = append(normalizedChoices, normalizedChoice)
	}
	normalizedDefault := normalizeChoice(defaultChoice)
	return &ChoiceValue{selected: normalizedDefault, defaultChoice: normalizedDefault, choices: normalizedChoices}
}

// String returns the selected choice.
func (value *ChoiceValue) String() string {
	if value == nil {
		return ""
	}
	return value.selected
}

// Set validates and stores the provided choice.
func (value *ChoiceValue) Set(rawChoice string) error {
	normalizedChoice := normalizeChoice(rawChoice)
	for _, choice := range value.choices {
		if choice == normalizedChoice {
			value.selected = normalizedChoice
			value.changed = true
			return nil
		}
	}
	return fmt.Errorf(unsupportedChoiceTemplate, rawChoice, strings.Join(value.choices, supportedChoicesSeparator))
}

// Type names the flag value type in help output.
func (value *ChoiceValue) Type() string {
	return choiceValueTypeName
}

// Changed reports whether Set accepted a value.
func (value *ChoiceValue) Changed() bool {
	return value != nil && value.changed
}

// Usage renders the accepted choices as a placeholder with the default upper-cased,
// followed by description when it is not blank.
func (value *ChoiceValue) Usage(description string) string {
	displayedChoices := make([]string, 0, len(value.choices))
	for _, choice := range value.choices {
		if choice == value.defaultChoice {
			displayedChoices = append(displayedChoices, strings.ToUpper(choice))
			continue
		}
		displayedChoices = append(displayedChoices, choice)
	}

	placeholder := fmt.Sprintf(choicePlaceholderTemplate, strings.Join(displayedChoices, choicePlaceholderSeparator))
	trimmedDescription := strings.TrimSpace(description)
	if len(trimmedDescription) == 0 {
		return placeholder
	}
	return placeholder + choiceUsageSeparator + trimmedDescription
}

// AddChoiceFlag registers a choice flag whose usage highlights the default choice.
func AddChoiceFlag(flagSet *pflag.FlagSet, name string, defaultChoice string, choices []string, description string) *ChoiceValue {
	choiceValue := NewChoiceValue(defaultChoice, choices)
	if flagSet == nil {
		return choiceValue
	}
	flagSet.Var(choiceValue, name, choiceValue.Usage(description))
	return choiceValue
}

func normalizeChoice(rawChoice string) string {
	return strings.ToLower(strings.Trim(rawChoice, choiceValueDefaultTrimPolicy))
}

var _ pflag.Value = (*ChoiceValue)(nil)
