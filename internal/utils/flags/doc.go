// Package flags provides helpers for binding cellrun flags to Cobra commands:
// yes/no toggles that tolerate a following command line, and choice usage text
// that highlights the default option.
package flags
