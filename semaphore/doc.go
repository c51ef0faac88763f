// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

/*
Package semaphore provides a counting semaphore and a mutex built on a FIFO queue of waiters.

A successful acquisition yields a Release handle.  Invoking the handle returns the slot, handing it
directly to the oldest waiter if there is one.  Handles are one-shot: extra invocations do nothing.
The scoped form, Use, runs a task while holding a slot and releases on every exit path.

A semaphore may be configured with a single timeout that applies to every queued acquisition.  Removal
from the queue is the point of truth for each waiter: a grant, a timeout, a canceled context or Close
decide the outcome by removing the waiter first, and any later event for that waiter has no effect.

By default a waiter whose timeout elapses fails with ErrTimeout.  WithOverflow instead lets such a waiter
proceed without a slot, so the number of concurrent holders is only a best-effort bound in that mode.

Re-acquiring a Mutex while holding it is not detected.  The second acquisition waits behind the first
and only returns when its context ends or the timeout elapses.
*/
package semaphore
