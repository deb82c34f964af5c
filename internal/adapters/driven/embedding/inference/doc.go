// Package inference provides an image embedding adapter for a CLIP-style
// model hosted behind an HTTP inference server.
//
// Protocol:
//
//	GET  /v1/models/{name}      -> {"name": "...", "dimensions": 768}
//	POST /v1/embeddings/image   {"model": "...", "image": "<base64 JPEG>"} -> {"embedding": [...]}
//	GET  /health                -> 200 when ready
//
// Images are downscaled to Config.MaxEdge and re-encoded as JPEG before upload.
package inference
