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

// Package pending tracks outstanding requests keyed by identifier and hands out result
// handles that complete exactly once, either with the requested value or with an error.
//
// The registry does not send any messages itself. Callers are responsible for sending the
// request that will eventually cause Resolve to be called.
package pending

import (
	"errors"
	"sync"
)

var ErrRegistryClosed = errors.New("request registry is closed")

// Registry tracks outstanding requests. It is safe for concurrent use
type Registry[K comparable, V any] struct {
	mutex    sync.Mutex
	requests map[K]*Result[V]
	closed   bool
	closeErr error
}

// NewRegistry returns a new, empty Registry
func NewRegistry[K comparable, V any]() *Registry[K, V] {
	return &Registry[K, V]{
		requests: make(map[K]*Result[V]),
	}
}

// Request registers interest in the value identified by id. A second request for an id that
// is still outstanding returns the existing handle, and the returned bool reports whether the
// handle was newly created. Once the registry is closed, an already failed handle is returned
func (r *Registry[K, V]) Request(id K) (*Result[V], bool) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	if r.closed {
		ret := newResult[V]()
		ret.complete(*new(V), r.closeErr)
		return ret, false
	}
	if ret, ok := r.requests[id]; ok {
		return ret, false
	}
	ret := newResult[V]()
	r.requests[id] = ret
	return ret, true
}

// Resolve completes the outstanding request for id with the provided value and removes it. It
// returns false if there was no outstanding request for id
func (r *Registry[K, V]) Resolve(id K, value V) bool {
	r.mutex.Lock()
	ret, ok := r.requests[id]
	if ok {
		delete(r.requests, id)
	}
	r.mutex.Unlock()
	if !ok {
		return false
	}
	return ret.complete(value, nil)
}

// Fail completes the outstanding request for id with the provided error and removes it. It
// returns false if there was no outstanding request for id
func (r *Registry[K, V]) Fail(id K, err error) bool {
	r.mutex.Lock()
	ret, ok := r.requests[id]
	if ok {
		delete(r.requests, id)
	}
	r.mutex.Unlock()
	if !ok {
		return false
	}
	return ret.complete(*new(V), err)
}

// FailAll completes every outstanding request with the provided error and clears the
// registry. It returns the number of requests that were failed
func (r *Registry[K, V]) FailAll(err error) int {
	r.mutex.Lock()
	requests := r.requests
	r.requests = make(map[K]*Result[V])
	r.mutex.Unlock()
	for _, ret := range requests {
		ret.complete(*new(V), err)
	}
	return len(requests)
}

// Close fails every outstanding request with the provided error and causes any future request
// to fail immediately with the same error
func (r *Registry[K, V]) Close(err error) {
	if err == nil {
		err = ErrRegistryClosed
	}
	r.mutex.Lock()
	if !r.closed {
		r.closed = true
		r.closeErr = err
	}
	r.mutex.Unlock()
	r.FailAll(err)
}

// Has returns whether there is an outstanding request for id
func (r *Registry[K, V]) Has(id K) bool {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	_, ok := r.requests[id]
	return ok
}

// Len returns the number of outstanding requests
func (r *Registry[K, V]) Len() int {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return len(r.requests)
}
