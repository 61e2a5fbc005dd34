// Package textflow implements the nodes of the text flow: business context
// ingestion, trend intelligence and per-platform content curation.
//
// Business context is cached by a fingerprint of the normalized business
// documents, so it is recomputed only when a document is added, removed or
// edited. Trend research is cached for trend_cache_hours. Content curation is
// never cached; it writes one JSON file per platform into the run's content
// directory.
package textflow
