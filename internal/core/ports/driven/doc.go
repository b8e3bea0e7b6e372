// Package driven defines the outbound contracts of the import pipeline:
// the content store holding the entity graph, the file store managing
// binary assets, the record reader, the provider converter boundary and
// the change tracker. Adapters implement these interfaces.
package driven
