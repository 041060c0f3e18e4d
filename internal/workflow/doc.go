// Package workflow executes process graphs and captures their state.
//
// A Process is a static graph of TaskSpecs joined by identified sequence
// flows. A Workflow instantiates it as a tree of Tasks. The scheduler
// (DoEngineSteps) completes automatic tasks until only manual or waiting
// tasks remain; AcceptMessage routes external events to waiting tasks.
//
// # State capture
//
// State reduces a workflow to the set of its live branches:
//
//	Flow_A_B:R;Call:Flow_Start_Approve:W
//
// Each descriptor names the sequence flow that reached a READY (R) or
// WAITING (W) task, prefixed by the call activities it is nested in.
// Restore rediscovers a path from the process start to every branch by
// breadth-first search, merges the paths into one route, and replays the
// route on a fresh workflow. Replay is silent: interior tasks are completed
// without running their completion logic and no observation hook fires.
//
// Attributes are not part of the captured state; callers that need them
// persist them separately.
//
// # Hook contract
//
// Task kinds embed Base and override hooks. Hooks that can cause
// transitions take a Mode; transitions made with Silent never notify
// observers. A kind that overrides UpdateStateHook must call
// Task.ApplyLoadTarget first so replay can force the captured state.
package workflow
