// Package reconcile keeps the client's view of the generation server in step
// with the events it pushes.
//
// A Reconciler owns the FIFO queue of in-flight jobs, the single status bar
// and the completed results list. Every handler runs on the session event
// loop; metadata fetches run off the loop and post their continuation back
// through the Loop so handlers never race. Changes are pushed to a View,
// usually a render.Board.
//
// Protocol anomalies (progress or finish with an empty queue, malformed
// events, panics inside a handler) are logged and tolerated. They never end
// the session.
package reconcile
