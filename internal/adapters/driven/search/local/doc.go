// Package local holds the pieces shared by the in-process search backends:
// bulk payload parsing, vector encoding, exact cosine top-k ranking and
// OpenSearch-shaped bulk responses.
package local
