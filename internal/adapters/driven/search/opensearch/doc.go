// Package opensearch implements the search index port against an OpenSearch
// cluster with the k-NN plugin, using the official opensearch-go client.
//
// Index creation, bulk loading, flush and k-NN search map one to one onto
// the engine's REST endpoints. Request bodies are gzip-compressed when
// search.compress is set, and TLS verification follows
// search.insecure_skip_verify.
package opensearch
