// Package futurelite provides an executor-pluggable asynchronous
// concurrency runtime built on coroutine-style suspend/resume. Work
// runs on an Executor supplied by the embedding application, and the
// primitives in this package park task chains instead of blocking the
// goroutines that drive them.
//
// Key components:
//
//   - Executor: The abstract scheduling sink. Backends live in the
//     executor subpackage; any type satisfying the interface can be
//     plugged in.
//
//   - Task: A coroutine-like task chain. A task suspends by handing an
//     Awaiter to Task.Await and is resumed later by whoever holds the
//     continuation.
//
//   - Via: The executor-affinity engine. It makes a task woken by a
//     foreign operation resume on the executor context it suspended
//     from, whichever goroutine completed the operation.
//
//   - Lazy/Try: A single-owner computation that does nothing until it
//     is started or awaited, and its value-or-error result.
//
//   - Synchronization primitives: Mutex, CondVar, Barrier, Semaphore,
//     WaitGroup, Group and SingleFlight.
//
//   - Generator: A pull-based asynchronous sequence produced by a
//     coroutine.
//
//   - TaskManager: Named, repeating, cooperatively cancelled background
//     tasks.
//
// Every primitive that may suspend takes a Suspender. A *Task parks its
// coroutine; Blocking(ctx) parks the calling goroutine, so the same
// Mutex can be shared between task chains and plain goroutines.
package futurelite
