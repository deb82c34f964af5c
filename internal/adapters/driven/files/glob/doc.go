// Package glob provides file-system adapters for image discovery:
// recursive glob enumeration (doublestar), query image selection and
// an fsnotify watcher for newly created files.
package glob
