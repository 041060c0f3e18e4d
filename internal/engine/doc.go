// Package engine runs process instances on top of the instance store.
//
// Every operation follows the same cycle:
//
//  1. Load: read the latest snapshot and restore a fresh workflow from it
//  2. Apply: complete a task or deliver a message
//  3. Advance: run engine steps until only manual or waiting tasks remain
//  4. Save: append a snapshot stamped with the next logical clock seq
//
// No workflow is held in memory between calls, so an instance can be
// resumed by any process that can open the store.
//
// Single writer: operations are serialized by a mutex. Ordering uses the
// monotonic seq from Clock, never wall time.
package engine
