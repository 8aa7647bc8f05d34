package flags

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
)

const (
	choicePlaceholderTemplate   = "<%s>"
	choiceSeparatorLiteral      = "|"
	choiceUsageTemplate         = "`%s` %s"
	choiceUsageBareTemplate     = "`%s`"
	choiceFlagTypeConstant      = "string"
	invalidChoiceTemplate       = "invalid value %q for --%s; choose one of %s"
	choiceListSeparatorConstant = ", "
)

// InvalidChoiceError reports a flag value outside the allowed choices.
type InvalidChoiceError struct {
	FlagName string
	Value    string
	Choices  []string
}

// Error lists the accepted choices.
func (choiceError InvalidChoiceError) Error() string {
	return fmt.Sprintf(invalidChoiceTemplate, choiceError.Value, choiceError.FlagName, strings.Join(choiceError.Choices, choiceListSeparatorConstant))
}

// AddChoiceFlag registers a string flag restricted to choices. Values match
// case-insensitively and are stored in their canonical spelling. The target
// keeps its current value until the flag is set; highlightedChoice only marks
// the effective default in the usage text.
func AddChoiceFlag(flagSet *pflag.FlagSet, target *string, name string, highlightedChoice string, choices []string, description string) {
	if flagSet == nil || target == nil || len(name) == 0 {
		return
	}

	canonicalChoices := uniqueChoices(choices)
	flagSet.Var(&choiceFlagValue{flagName: name, target: target, choices: canonicalChoices}, name, FormatChoiceUsage(highlightedChoice, canonicalChoices, description))
}

// FormatChoiceUsage builds usage text whose placeholder lists the choices with
// the highlighted one upper-cased, for example "`<debug|INFO|warn>` Level.".
func FormatChoiceUsage(highlightedChoice string, choices []string, description string) string {
	normalizedHighlight := strings.ToLower(strings.TrimSpace(highlightedChoice))

	displayedChoices := uniqueChoices(choices)
	for choiceIndex, choice := range displayedChoices {
		if len(normalizedHighlight) > 0 && strings.ToLower(choice) == normalizedHighlight {
			displayedChoices[choiceIndex] = strings.ToUpper(choice)
		}
	}

	placeholder := fmt.Sprintf(choicePlaceholderTemplate, strings.Join(displayedChoices, choiceSeparatorLiteral))
	trimmedDescription := strings.TrimSpace(description)
	if len(trimmedDescription) == 0 {
		return fmt.Sprintf(choiceUsageBareTemplate, placeholder)
	}
	return fmt.Sprintf(choiceUsageTemplate, placeholder, trimmedDescription)
}

type choiceFlagValue struct {
	flagName string
	target   *string
	choices  []string
}

func (value *choiceFlagValue) Set(rawValue string) error {
	normalizedValue := strings.ToLower(strings.TrimSpace(rawValue))
	for _, choice := range value.choices {
		if strings.ToLower(choice) == normalizedValue {
			*value.target = choice
			return nil
		}
	}
	return InvalidChoiceError{FlagName: value.flagName, Value: rawValue, Choices: value.choices}
}

func (value *choiceFlagValue) String() string {
	if value == nil || value.target == nil {
		return ""
	}
	return *value.target
}

func (value *choiceFlagValue) Type() string {
	return choiceFlagTypeConstant
}

// uniqueChoices trims choices and drops blanks and case-insensitive duplicates, keeping the first spelling.
func uniqueChoices(choices []string) []string {
	unique := make([]string, 0, len(choices))
	seen := make(map[string]struct{}, len(choices))
	for _, choice := range choices {
		trimmedChoice := strings.TrimSpace(choice)
		normalizedChoice := strings.ToLower(trimmedChoice)
		if len(trimmedChoice) == 0 {
			continue
		}
		if _, duplicate := seen[normalizedChoice]; duplicate {
			continue
		}
		seen[normalizedChoice] = struct{}{}
		unique = append(unique, trimmedChoice)
	}
	return unique
}
