package flags

import (
	"fmt"
	"strings"
	"sync"

	"github.com/spf13/pflag"
)

const (
	toggleTrueLiteral           = "true"
	toggleFalseLiteral          = "false"
	toggleFlagTypeConstant      = "bool"
	toggleEnabledPlaceholder    = "<YES|no>"
	toggleDisabledPlaceholder   = "<yes|NO>"
	toggleUsageTemplate         = "`%s` %s"
	toggleUsageBareTemplate     = "`%s`"
	toggleParseErrorTemplate    = "invalid toggle value %q"
	argumentTerminatorLiteral   = "--"
	longFlagPrefixLiteral       = "--"
	shortFlagPrefixLiteral      = "-"
	flagAssignmentLiteral       = "="
	shortFlagNameLengthConstant = 1
)

var toggleLiterals = map[string]bool{
	toggleTrueLiteral:  true,
	"yes":              true,
	"on":               true,
	"1":                true,
	"t":                true,
	"y":                true,
	toggleFalseLiteral: false,
	"no":               false,
	"off":              false,
	"0":                false,
	"f":                false,
	"n":                false,
}

// toggleRegistry remembers toggle flag names so NormalizeToggleArguments can
// recognize them without access to the flag sets.
type toggleRegistry struct {
	mutex      sync.RWMutex
	names      map[string]struct{}
	shorthands map[string]struct{}
}

var registeredToggles = &toggleRegistry{names: map[string]struct{}{}, shorthands: map[string]struct{}{}}

func (registry *toggleRegistry) register(name string, shorthand string) {
	registry.mutex.Lock()
	defer registry.mutex.Unlock()
	registry.names[name] = struct{}{}
	if len(shorthand) > 0 {
		registry.shorthands[shorthand] = struct{}{}
	}
}

func (registry *toggleRegistry) contains(flagName string, isShorthand bool) bool {
	registry.mutex.RLock()
	defer registry.mutex.RUnlock()
	if isShorthand {
		_, found := registry.shorthands[flagName]
		return found
	}
	_, found := registry.names[flagName]
	return found
}

// AddToggleFlag registers a boolean flag that accepts yes/no style values and
// treats a bare occurrence as true.
func AddToggleFlag(flagSet *pflag.FlagSet, target *bool, name string, shorthand string, defaultValue bool, usage string) {
	if flagSet == nil || len(name) == 0 {
		return
	}

	flagSet.VarP(newToggleFlagValue(defaultValue, target), name, shorthand, formatToggleUsage(usage, defaultValue))
	if flag := flagSet.Lookup(name); flag != nil {
		flag.NoOptDefVal = toggleTrueLiteral
	}

	registeredToggles.register(name, shorthand)
}

// NormalizeToggleArguments rewrites "--flag value" into "--flag=value" for toggle
// flags when value is a recognized toggle literal. Any other following argument
// is left alone so positional command words after a bare toggle survive. The
// result is never nil so Cobra does not fall back to the process arguments.
func NormalizeToggleArguments(arguments []string) []string {
	normalized := make([]string, 0, len(arguments))
	for index := 0; index < len(arguments); index++ {
		current := arguments[index]
		if current == argumentTerminatorLiteral {
			return append(normalized, arguments[index:]...)
		}

		if index+1 < len(arguments) && isBareToggle(current) && isToggleLiteral(arguments[index+1]) {
			normalized = append(normalized, current+flagAssignmentLiteral+arguments[index+1])
			index++
			continue
		}
		normalized = append(normalized, current)
	}
	return normalized
}

// isBareToggle reports whether argument names a registered toggle without an inline value.
func isBareToggle(argument string) bool {
	if strings.Contains(argument, flagAssignmentLiteral) {
		return false
	}
	if strings.HasPrefix(argument, longFlagPrefixLiteral) {
		flagName := strings.TrimPrefix(argument, longFlagPrefixLiteral)
		return len(flagName) > 0 && registeredToggles.contains(flagName, false)
	}
	if strings.HasPrefix(argument, shortFlagPrefixLiteral) {
		shorthand := strings.TrimPrefix(argument, shortFlagPrefixLiteral)
		return len(shorthand) == shortFlagNameLengthConstant && registeredToggles.contains(shorthand, true)
	}
	return false
}

func isToggleLiteral(value string) bool {
	_, known := toggleLiterals[strings.ToLower(strings.TrimSpace(value))]
	return known
}

func formatToggleUsage(description string, defaultValue bool) string {
	placeholder := toggleDisabledPlaceholder
	if defaultValue {
		placeholder = toggleEnabledPlaceholder
	}
	trimmedDescription := strings.TrimSpace(description)
	if len(trimmedDescription) == 0 {
		return fmt.Sprintf(toggleUsageBareTemplate, placeholder)
	}
	return fmt.Sprintf(toggleUsageTemplate, placeholder, trimmedDescription)
}

type toggleFlagValue struct {
	currentValue bool
	target       *bool
}

func newToggleFlagValue(defaultValue bool, target *bool) *toggleFlagValue {
	if target != nil {
		*target = defaultValue
	}
	return &toggleFlagValue{currentValue: defaultValue, target: target}
}

func (value *toggleFlagValue) Set(rawValue string) error {
	trimmedValue := strings.TrimSpace(rawValue)
	if len(trimmedValue) == 0 {
		trimmedValue = toggleTrueLiteral
	}

	parsedValue, known := toggleLiterals[strings.ToLower(trimmedValue)]
	if !known {
		return fmt.Errorf(toggleParseErrorTemplate, rawValue)
	}

	value.currentValue = parsedValue
	if value.target != nil {
		*value.target = parsedValue
	}
	return nil
}

func (value *toggleFlagValue) String() string {
	if value != nil && value.currentValue {
		return toggleTrueLiteral
	}
	return toggleFalseLiteral
}

func (value *toggleFlagValue) Type() string {
	return toggleFlagTypeConstant
}
