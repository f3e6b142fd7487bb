// Package dub resolves English-dub availability for catalog entities by
// probing a cascade of heterogeneous sources and fusing their partial
// verdicts into one confidence-scored decision.
package dub
