// Package catalog defines the domain model for tracked titles: seasons,
// lifecycle states, the canonical entity record, and merge rules applied
// when fresh upstream data is reconciled against stored values.
package catalog
