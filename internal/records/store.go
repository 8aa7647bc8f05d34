package records

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

const (
	recordFileExtensionConstant        = ".yaml"
	recordDirectoryPermissionsConstant = 0o755
	recordFilePermissionsConstant      = 0o600
	directoryRequiredMessageConstant   = "records: directory required"
	loggerNotConfiguredMessageConstant = "records: logger not configured"
	recordIdentifierRequiredMessage    = "records: record identifier required"
	createDirectoryErrorTemplate       = "records: unable to create %s: %w"
	encodeRecordErrorTemplate          = "records: unable to encode record %s: %w"
	writeRecordErrorTemplate           = "records: unable to write %s: %w"
	readRecordErrorTemplate            = "records: unable to read %s: %w"
	decodeRecordErrorTemplate          = "records: unable to decode %s: %w"
	listRecordsErrorTemplate           = "records: unable to list %s: %w"
	recordSavedMessageConstant         = "execution record saved"
	skippedRecordMessageConstant       = "skipping unreadable execution record"
	logFieldRecordIdentifierConstant   = "record_id"
	logFieldRecordPathConstant         = "path"
)

var (
	// ErrDirectoryRequired indicates a store without a directory.
	ErrDirectoryRequired = errors.New(directoryRequiredMessageConstant)
	// ErrLoggerNotConfigured indicates a store without a logger.
	ErrLoggerNotConfigured = errors.New(loggerNotConfiguredMessageConstant)
	// ErrRecordIdentifierRequired indicates a record without an identifier.
	ErrRecordIdentifierRequired = errors.New(recordIdentifierRequiredMessage)
)

// FileStore keeps one YAML document per record inside a directory.
type FileStore struct {
	logger    *zap.Logger
	directory string
}

// NewFileStore constructs a store rooted at directory.
func NewFileStore(logger *zap.Logger, directory string) (*FileStore, error) {
	if logger == nil {
		return nil, ErrLoggerNotConfigured
	}
	trimmedDirectory := strings.TrimSpace(directory)
	if len(trimmedDirectory) == 0 {
		return nil, ErrDirectoryRequired
	}
	return &FileStore{logger: logger, directory: filepath.Clean(trimmedDirectory)}, nil
}

// Save writes the record and returns the path of its document.
func (store *FileStore) Save(record ExecutionRecord) (string, error) {
	if len(strings.TrimSpace(record.ID)) == 0 {
		return "", ErrRecordIdentifierRequired
	}
	if createError := os.MkdirAll(store.directory, recordDirectoryPermissionsConstant); createError != nil {
		return "", fmt.Errorf(createDirectoryErrorTemplate, store.directory, createError)
	}

	encodedRecord, encodeError := yaml.Marshal(record)
	if encodeError != nil {
		return "", fmt.Errorf(encodeRecordErrorTemplate, record.ID, encodeError)
	}

	recordPath := store.recordPath(record.ID)
	if writeError := os.WriteFile(recordPath, encodedRecord, recordFilePermissionsConstant); writeError != nil {
		return "", fmt.Errorf(writeRecordErrorTemplate, recordPath, writeError)
	}

	store.logger.Debug(recordSavedMessageConstant, zap.String(logFieldRecordIdentifierConstant, record.ID), zap.String(logFieldRecordPathConstant, recordPath))
	return recordPath, nil
}

// Load reads the record with the given identifier.
func (store *FileStore) Load(recordIdentifier string) (ExecutionRecord, error) {
	if len(strings.TrimSpace(recordIdentifier)) == 0 {
		return ExecutionRecord{}, ErrRecordIdentifierRequired
	}
	return store.readRecord(store.recordPath(recordIdentifier))
}

// List returns every readable record ordered by creation time. Unreadable documents are logged and skipped.
func (store *FileStore) List() ([]ExecutionRecord, error) {
	directoryEntries, listError := os.ReadDir(store.directory)
	if listError != nil {
		if errors.Is(listError, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf(listRecordsErrorTemplate, store.directory, listError)
	}

	storedRecords := make([]ExecutionRecord, 0, len(directoryEntries))
	for _, directoryEntry := range directoryEntries {
		if directoryEntry.IsDir() || filepath.Ext(directoryEntry.Name()) != recordFileExtensionConstant {
			continue
		}
		recordPath := filepath.Join(store.directory, directoryEntry.Name())
		storedRecord, readError := store.readRecord(recordPath)
		if readError != nil {
			store.logger.Warn(skippedRecordMessageConstant, zap.String(logFieldRecordPathConstant, recordPath), zap.Error(readError))
			continue
		}
		storedRecords = append(storedRecords, storedRecord)
	}

	sort.SliceStable(storedRecords, func(leftIndex int, rightIndex int) bool {
		return storedRecords[leftIndex].CreatedAt.Before(storedRecords[rightIndex].CreatedAt)
	})
	return storedRecords, nil
}

func (store *FileStore) recordPath(recordIdentifier string) string {
	return filepath.Join(store.directory, filepath.Base(recordIdentifier)+recordFileExtensionConstant)
}

func (store *FileStore) readRecord(recordPath string) (ExecutionRecord, error) {
	documentContent, readError := os.ReadFile(recordPath)
	if readError != nil {
		return ExecutionRecord{}, fmt.Errorf(readRecordErrorTemplate, recordPath, readError)
	}
	var storedRecord ExecutionRecord
	if decodeError := yaml.Unmarshal(documentContent, &storedRecord); decodeError != nil {
		return ExecutionRecord{}, fmt.Errorf(decodeRecordErrorTemplate, recordPath, decodeError)
	}
	return storedRecord, nil
}
