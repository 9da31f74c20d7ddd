// Package resolver stitches split-aware market history.
//
// For an id registered in the split registry, Resolve fetches live history under
// the id the remote source currently reports, decides whether the requested window
// reaches back across the split date, and if so merges archived pre-split rows
// from the split cache. Whichever side is not in the requested id's units is
// converted with the split record, so callers see one continuous series.
//
// History is the caller-side entry point: unregistered ids pass straight through
// to the history source.
package resolver
