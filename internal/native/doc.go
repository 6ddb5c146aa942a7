// Package native implements the low-level loop that the uvw package adapts.
//
// The API is deliberately C-shaped: resources are plain slot structs
// ([Handle], [Timer]) carrying an opaque Data pointer, operations are free
// functions returning an [Errno] status (zero meaning success), and
// completions are delivered by calling raw function values with the slot
// pointer as the only argument. Nothing here knows about typed events or
// listeners.
//
// Everything other than [Loop.Submit] and [Loop.Metrics] must be called from
// the goroutine running [Loop.Run] (or, before the loop runs, from the
// goroutine that owns it).
package native
