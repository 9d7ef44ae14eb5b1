// Package record defines the LogRecord value type, its closed severity set,
// boundary validation, and the canonical serialization the store persists
// and the usage accountant measures.
package record
