// Package domain contains the core types of the meeting import pipeline:
// canonical meeting records produced by provider converters, the generic
// content entity model persisted by the content store, and the import
// settings surface.
//
// Types here have no dependencies on adapters or external services.
package domain
