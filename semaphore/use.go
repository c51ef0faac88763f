// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package semaphore

import "context"

// UseValue runs task while holding a slot of s and returns the task's result.  The slot is released
// exactly once, including when task panics.  An acquisition failure is returned without running task.
func UseValue[T any](ctx context.Context, s Interface, task func(context.Context) (T, error)) (T, error) {
	release, err := s.Acquire(ctx)
	if err != nil {
		var zero T
		return zero, err
	}

	defer release()
	return task(ctx)
}

func use(ctx context.Context, s Interface, task func(context.Context) error) error {
	_, err := UseValue(ctx, s, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, task(ctx)
	})

	return err
}
