// Package repository declares the persistence port of the batch engine.
package repository

// JobRepository persists and manages batch execution metadata.
// It embeds smaller repository interfaces to separate concerns.
//
// Returned records are copies: mutating them does not affect stored state until they
// are saved again.
type JobRepository interface {
	JobInstance
	JobExecution
	StepExecution

	// Close releases resources (such as database connections) used by the repository.
	Close() error
}
