// Package watch re-runs build operations when their sources change.
//
// A [Watcher] observes the base directories of a set of [Rule] globs,
// debounces bursts of events per rule, and runs the rule's operation.
// A failed run is reported and the watcher keeps going.
package watch
