package utils

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

const (
	environmentKeySeparatorOldConstant              = "."
	environmentKeySeparatorNewConstant              = "_"
	listValueSeparatorConstant                      = ","
	configurationReadErrorTemplateConstant          = "failed to read configuration: %w"
	configurationUnmarshalErrorTemplateConstant     = "failed to parse configuration: %w"
	embeddedConfigurationMergeErrorTemplateConstant = "failed to merge embedded configuration: %w"
)

// ConfigurationLoader resolves layered configuration with Viper: defaults, an
// embedded document, an optional configuration file, and prefixed environment variables.
type ConfigurationLoader struct {
	configurationName         string
	configurationType         string
	environmentPrefix         string
	searchPaths               []string
	embeddedConfiguration     []byte
	embeddedConfigurationType string
}

// LoadedConfiguration surfaces metadata about the resolved configuration.
type LoadedConfiguration struct {
	// ConfigFileUsed is empty when no configuration file was found.
	ConfigFileUsed string
	// EmbeddedDefaultsApplied reports whether the embedded document was merged.
	EmbeddedDefaultsApplied bool
}

// NewConfigurationLoader creates a loader that searches known paths and respects an environment prefix.
func NewConfigurationLoader(configurationName string, configurationType string, environmentPrefix string, searchPaths []string) *ConfigurationLoader {
	return &ConfigurationLoader{
		configurationName: configurationName,
		configurationType: configurationType,
		environmentPrefix: environmentPrefix,
		searchPaths:       append([]string(nil), searchPaths...),
	}
}

// SetEmbeddedConfiguration stores a document merged beneath any configuration file.
func (loader *ConfigurationLoader) SetEmbeddedConfiguration(configurationData []byte, configurationType string) {
	if loader == nil {
		return
	}

	loader.embeddedConfigurationType = strings.TrimSpace(configurationType)
	loader.embeddedConfiguration = nil
	if len(configurationData) > 0 {
		loader.embeddedConfiguration = append([]byte(nil), configurationData...)
	}
}

// LoadConfiguration populates targetConfiguration from, in increasing priority,
// defaults, the embedded document, the configuration file, and environment variables.
// Durations accept Go duration strings and lists accept comma separated values.
func (loader *ConfigurationLoader) LoadConfiguration(configurationFilePath string, defaultValues map[string]any, targetConfiguration any) (LoadedConfiguration, error) {
	viperInstance := viper.New()
	viperInstance.SetConfigName(loader.configurationName)

	embeddedApplied, embeddedError := loader.mergeEmbeddedConfiguration(viperInstance)
	if embeddedError != nil {
		return LoadedConfiguration{}, embeddedError
	}

	viperInstance.SetConfigType(loader.configurationType)
	loader.bindEnvironment(viperInstance)
	for defaultKey, defaultValue := range defaultValues {
		viperInstance.SetDefault(defaultKey, defaultValue)
	}

	if readError := loader.mergeConfigurationFile(viperInstance, configurationFilePath); readError != nil {
		return LoadedConfiguration{}, readError
	}

	if unmarshalError := viperInstance.Unmarshal(targetConfiguration, viper.DecodeHook(configurationDecodeHook())); unmarshalError != nil {
		return LoadedConfiguration{}, fmt.Errorf(configurationUnmarshalErrorTemplateConstant, unmarshalError)
	}

	return LoadedConfiguration{
		ConfigFileUsed:          viperInstance.ConfigFileUsed(),
		EmbeddedDefaultsApplied: embeddedApplied,
	}, nil
}

func (loader *ConfigurationLoader) mergeEmbeddedConfiguration(viperInstance *viper.Viper) (bool, error) {
	if len(loader.embeddedConfiguration) == 0 {
		return false, nil
	}

	embeddedType := loader.embeddedConfigurationType
	if len(embeddedType) == 0 {
		embeddedType = loader.configurationType
	}
	viperInstance.SetConfigType(embeddedType)
	if mergeError := viperInstance.MergeConfig(bytes.NewReader(loader.embeddedConfiguration)); mergeError != nil {
		return false, fmt.Errorf(embeddedConfigurationMergeErrorTemplateConstant, mergeError)
	}
	return true, nil
}

func (loader *ConfigurationLoader) bindEnvironment(viperInstance *viper.Viper) {
	viperInstance.SetEnvPrefix(loader.environmentPrefix)
	viperInstance.SetEnvKeyReplacer(strings.NewReplacer(environmentKeySeparatorOldConstant, environmentKeySeparatorNewConstant))
	viperInstance.AutomaticEnv()
}

// mergeConfigurationFile merges the explicit file, or the first file found on
// the search paths. A missing file on the search paths is not an error.
func (loader *ConfigurationLoader) mergeConfigurationFile(viperInstance *viper.Viper, configurationFilePath string) error {
	for _, searchPath := range loader.searchPaths {
		viperInstance.AddConfigPath(searchPath)
	}
	if len(configurationFilePath) > 0 {
		viperInstance.SetConfigFile(configurationFilePath)
	}

	readError := viperInstance.MergeInConfig()
	if readError == nil {
		return nil
	}

	var notFoundError viper.ConfigFileNotFoundError
	if errors.As(readError, &notFoundError) {
		return nil
	}
	return fmt.Errorf(configurationReadErrorTemplateConstant, readError)
}

func configurationDecodeHook() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(listValueSeparatorConstant),
	)
}
