// Package pipeline provides named, dependency-aware pipelines for
// transforming an in-memory data value.
//
// A pipeline owns an ordered list of steps and an ordered map of named
// dependency pipelines. Running a pipeline first runs every dependency in
// insertion order, threading the data value through each of them, and then
// applies the pipeline's own steps in insertion order. A step either wraps a
// registered step function or refers to a registered transform type; in both
// cases a non-nil result replaces the data value and a nil result keeps it,
// so steps are free to mutate the value in place instead.
//
// Pipelines are registered by name in a Loader. Dependencies are persisted by
// name only, never by value, and the loader rebuilds the object graph on
// load. Looking up an unknown name through a loader yields a new empty
// pipeline rather than an error, which tolerates out-of-order
// deserialization of dependency graphs.
//
// Each pipeline also carries a context store of serialized values that
// dependent pipelines can read but not override: a local entry always wins
// over an inherited one.
package pipeline
