// Package pathutils resolves user supplied directory paths.
package pathutils

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

const (
	tildeSymbolConstant             = "~"
	tildeForwardSlashPrefixConstant = "~/"
	resolveDirectoryErrorTemplate   = "unable to resolve directory %s: %w"
)

var tildeWithPathSeparatorPrefix = tildeSymbolConstant + string(os.PathSeparator)

// ErrNotDirectory indicates a resolved path that exists but is not a directory.
var ErrNotDirectory = errors.New("not a directory")

// HomeDirectoryProvider resolves the current user's home directory path.
type HomeDirectoryProvider func() (string, error)

// VariableExpander substitutes environment references in a path.
type VariableExpander func(value string) string

// HomeExpander converts user home shortcuts to absolute paths.
type HomeExpander struct {
	homeDirectoryProvider HomeDirectoryProvider
	homeDirectory         string
	homeDirectoryError    error
	initializationGuard   sync.Once
}

// NewHomeExpander constructs a HomeExpander using the operating system lookup.
func NewHomeExpander() *HomeExpander {
	return NewHomeExpanderWithProvider(os.UserHomeDir)
}

// NewHomeExpanderWithProvider constructs a HomeExpander with a custom provider.
func NewHomeExpanderWithProvider(provider HomeDirectoryProvider) *HomeExpander {
	if provider == nil {
		provider = os.UserHomeDir
	}
	return &HomeExpander{homeDirectoryProvider: provider}
}

// Expand resolves a leading tilde to the user's home directory.
func (expander *HomeExpander) Expand(candidatePath string) string {
	if expander == nil || !strings.HasPrefix(candidatePath, tildeSymbolConstant) {
		return candidatePath
	}

	resolvedHomeDirectory := expander.resolveHomeDirectory()
	if len(resolvedHomeDirectory) == 0 {
		return candidatePath
	}

	switch {
	case candidatePath == tildeSymbolConstant:
		return resolvedHomeDirectory
	case strings.HasPrefix(candidatePath, tildeForwardSlashPrefixConstant):
		return filepath.Join(resolvedHomeDirectory, strings.TrimPrefix(candidatePath, tildeForwardSlashPrefixConstant))
	case strings.HasPrefix(candidatePath, tildeWithPathSeparatorPrefix):
		return filepath.Join(resolvedHomeDirectory, strings.TrimPrefix(candidatePath, tildeWithPathSeparatorPrefix))
	default:
		return candidatePath
	}
}

func (expander *HomeExpander) resolveHomeDirectory() string {
	expander.initializationGuard.Do(func() {
		expander.homeDirectory, expander.homeDirectoryError = expander.homeDirectoryProvider()
	})
	if expander.homeDirectoryError != nil {
		return ""
	}
	return expander.homeDirectory
}

// DirectoryResolver turns working directory arguments into absolute paths.
type DirectoryResolver struct {
	homeExpander     *HomeExpander
	variableExpander VariableExpander
}

// NewDirectoryResolver constructs a resolver. A nil variableExpander leaves variables untouched.
func NewDirectoryResolver(homeExpander *HomeExpander, variableExpander VariableExpander) *DirectoryResolver {
	if homeExpander == nil {
		homeExpander = NewHomeExpander()
	}
	return &DirectoryResolver{homeExpander: homeExpander, variableExpander: variableExpander}
}

// ExpandPath applies variable substitution and home expansion without touching the filesystem.
func (resolver *DirectoryResolver) ExpandPath(candidatePath string) string {
	expandedPath := strings.TrimSpace(candidatePath)
	if len(expandedPath) == 0 {
		return expandedPath
	}
	if resolver.variableExpander != nil {
		expandedPath = resolver.variableExpander(expandedPath)
	}
	return resolver.homeExpander.Expand(expandedPath)
}

// ResolveExistingDirectory expands candidatePath, makes it absolute, and
// verifies that it names a directory. An empty path resolves to empty.
func (resolver *DirectoryResolver) ResolveExistingDirectory(candidatePath string) (string, error) {
	expandedPath := resolver.ExpandPath(candidatePath)
	if len(expandedPath) == 0 {
		return "", nil
	}

	absolutePath, absoluteError := filepath.Abs(expandedPath)
	if absoluteError != nil {
		return "", fmt.Errorf(resolveDirectoryErrorTemplate, expandedPath, absoluteError)
	}

	fileInformation, statError := os.Stat(absolutePath)
	if statError != nil {
		return "", fmt.Errorf(resolveDirectoryErrorTemplate, absolutePath, statError)
	}
	if !fileInformation.IsDir() {
		return "", fmt.Errorf(resolveDirectoryErrorTemplate, absolutePath, ErrNotDirectory)
	}
	return absolutePath, nil
}
