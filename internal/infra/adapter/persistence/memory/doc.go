// Package memory provides in-memory implementations of the repository
// interfaces. They back the worker's -memory mode and the usecase tests, and
// honour the same conditional-update contracts as the Postgres adapters.
package memory
