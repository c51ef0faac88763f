// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

/*
Package loadtest drives a semaphore with a configurable set of concurrent tasks and reports how
many tasks completed, how many timed out, and the peak number of tasks holding the semaphore at once.
*/
package loadtest
