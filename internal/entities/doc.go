// Package entities provides typed wrappers over the generic content
// entity. Each wrapper checks the entity kind on construction and exposes
// the fields the import pipeline reads and writes for that kind.
package entities
