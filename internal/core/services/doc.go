// Package services implements the core import pipeline behind the
// driving ports: the batch reconciler that turns canonical meeting
// records into the persisted entity graph, and the unpublish sweep that
// retires meetings no longer present in a source's feed.
package services
