// Package tasks is the catalogue of task specification kinds.
//
// Every kind embeds workflow.Base and overrides only the hooks it needs:
//
//   - StartEvent, EndEvent: plain pass-through nodes
//   - ManualTask: left READY for the caller to complete
//   - ScriptTask: runs a script against the task attributes on completion
//   - ExclusiveGateway: follows the first flow whose condition holds
//   - ParallelGateway: splits to every output, joins until all inputs arrived
//   - MessageEvent: waits for a named message
//   - CallActivity: enters a nested process
//
// The scheduler in package workflow never inspects these types.
package tasks
