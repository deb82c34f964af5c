// Package file provides file-based implementations of driven port interfaces.
//
// Adapters:
//   - ConfigStore: TOML configuration under ~/.imgsearch, with dotted keys
//     stored as nested tables ("search.host" is written as [search] host).
package file
