// Package environment manages session environment values applied to executions.
//
// Store keeps values that persist across executions of one session and can be
// reset to its defaults. ExpandVariables substitutes $NAME and ${NAME}
// references using any lookup function.
package environment
