package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrConfiguration signals a missing or invalid required setting.
	ErrConfiguration = errors.New("configuration error")
	// ErrInputValidation signals a malformed or unacceptable caller input.
	ErrInputValidation = errors.New("invalid input")
	// ErrCollaborator signals a failure in an external collaborator (extraction, embedding, completion, storage).
	ErrCollaborator = errors.New("collaborator error")
	// ErrEmbeddingProviderError signals an embedding provider failure.
	ErrEmbeddingProviderError = fmt.Errorf("embedding provider error: %w", ErrCollaborator)
	// ErrTokenBudgetExceeded signals that the provider token budget is spent.
	ErrTokenBudgetExceeded = fmt.Errorf("token budget exceeded: %w", ErrCollaborator)
	// ErrCompletionProviderError signals a completion provider failure.
	ErrCompletionProviderError = fmt.Errorf("completion provider error: %w", ErrCollaborator)
	// ErrExtraction signals that an uploaded file could not be turned into text.
	ErrExtraction = fmt.Errorf("text extraction failed: %w", ErrCollaborator)
	// ErrStorage signals a vector store failure.
	ErrStorage = fmt.Errorf("storage error: %w", ErrCollaborator)
	// ErrVectorDimMismatch signals a vector dimension mismatch.
	ErrVectorDimMismatch = fmt.Errorf("vector dimension mismatch: %w", ErrCollaborator)
	// ErrPairing signals a chunk/embedding count mismatch.
	ErrPairing = errors.New("chunk and embedding counts differ")
	// ErrPartialWrite signals that only part of a write batch was persisted.
	ErrPartialWrite = errors.New("partial write")
	// ErrGeneration signals that the token stream failed after generation started.
	ErrGeneration = errors.New("generation failed")
	// ErrEmptyDocument signals a document without extractable text.
	ErrEmptyDocument = fmt.Errorf("document has no text: %w", ErrInputValidation)
	// ErrPromptTooLarge signals that the question alone exceeds the prompt budget.
	ErrPromptTooLarge = fmt.Errorf("question exceeds prompt budget: %w", ErrInputValidation)
)

// ConfigurationError names the setting that failed validation.
type ConfigurationError struct {
	Setting string
	Reason  string
}

func (e *ConfigurationError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("%s: %s is required", ErrConfiguration.Error(), e.Setting)
	}
	return fmt.Sprintf("%s: %s: %s", ErrConfiguration.Error(), e.Setting, e.Reason)
}

func (e *ConfigurationError) Unwrap() error { return ErrConfiguration }

// NewConfigurationError creates a configuration error for setting.
func NewConfigurationError(setting, reason string) error {
	return &ConfigurationError{Setting: setting, Reason: reason}
}

// PairingError carries both sequence lengths of a failed pairing.
type PairingError struct {
	Chunks     int
	Embeddings int
}

func (e *PairingError) Error() string {
	return fmt.Sprintf("%s: %d chunks, %d embeddings", ErrPairing.Error(), e.Chunks, e.Embeddings)
}

func (e *PairingError) Unwrap() error { return ErrPairing }

// PartialWriteError reports how many items of a batch were persisted.
type PartialWriteError struct {
	Written int
	Total   int
	Err     error
}

func (e *PartialWriteError) Error() string {
	msg := fmt.Sprintf("%s: %d of %d stored", ErrPartialWrite.Error(), e.Written, e.Total)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *PartialWriteError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrPartialWrite}
	}
	return []error{ErrPartialWrite, e.Err}
}

// GenerationError wraps a mid-stream completion failure.
type GenerationError struct {
	Err error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("%s: %v", ErrGeneration.Error(), e.Err)
}

func (e *GenerationError) Unwrap() []error { return []error{ErrGeneration, e.Err} }

// BudgetExceededError names the window that rejected a provider call.
type BudgetExceededError struct {
	Period BudgetPeriod
	Stage  Stage
	Limit  int64
	Used   int64
}

func (e *BudgetExceededError) Error() string {
	return fmt.Sprintf("%s: %s window %d/%d tokens (stage %s)",
		ErrTokenBudgetExceeded.Error(), e.Period, e.Used, e.Limit, e.Stage)
}

func (e *BudgetExceededError) Unwrap() error { return ErrTokenBudgetExceeded }
