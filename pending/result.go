// Copyright 2025 Blink Labs Software
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package pending

import (
	"context"
	"sync"
)

// Result is the handle for an outstanding request. It completes exactly once
type Result[V any] struct {
	once     sync.Once
	doneChan chan struct{}
	value    V
	err      error
}

func newResult[V any]() *Result[V] {
	return &Result[V]{
		doneChan: make(chan struct{}),
	}
}

func (r *Result[V]) complete(value V, err error) bool {
	completed := false
	r.once.Do(func() {
		r.value = value
		r.err = err
		close(r.doneChan)
		completed = true
	})
	return completed
}

// Done returns a channel that is closed when the result completes
func (r *Result[V]) Done() <-chan struct{} {
	return r.doneChan
}

// IsDone returns whether the result has completed
func (r *Result[V]) IsDone() bool {
	select {
	case <-r.doneChan:
		return true
	default:
		return false
	}
}

// Get blocks until the result completes or the context is done
func (r *Result[V]) Get(ctx context.Context) (V, error) {
	select {
	case <-r.doneChan:
		return r.value, r.err
	case <-ctx.Done():
		var zero V
		return zero, ctx.Err()
	}
}

// Err returns the error the result completed with. It returns nil if the result has not
// completed or completed successfully
func (r *Result[V]) Err() error {
	if !r.IsDone() {
		return nil
	}
	return r.err
}
