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

// Package event provides an ordered, fault tolerant listener set.
//
// Listeners are invoked synchronously in registration order. A listener that returns an error
// or panics does not prevent delivery to the listeners after it.
package event

import (
	"fmt"
	"sync"
)

// Listener receives events of type E
type Listener[E any] interface {
	HandleEvent(E) error
}

// ListenerFunc adapts a function to the Listener interface. Since functions are not comparable,
// a ListenerFunc can not be removed from a Dispatcher
type ListenerFunc[E any] func(E) error

func (f ListenerFunc[E]) HandleEvent(evt E) error {
	return f(evt)
}

// ListenerFault describes a listener that failed while handling an event
type ListenerFault struct {
	// Index is the position of the listener in the snapshot that was delivered to
	Index int
	Err   error
	// Panic holds the recovered value when the listener panicked
	Panic any
}

func (f *ListenerFault) Error() string {
	if f.Panic != nil {
		return fmt.Sprintf("listener %d panicked: %v", f.Index, f.Panic)
	}
	return fmt.Sprintf("listener %d failed: %s", f.Index, f.Err)
}

func (f *ListenerFault) Unwrap() error {
	return f.Err
}

// FaultFunc is called for each listener fault during Dispatch
type FaultFunc func(*ListenerFault)

// Dispatcher is an ordered set of listeners. It is safe for concurrent use
type Dispatcher[E any] struct {
	mutex     sync.Mutex
	listeners []Listener[E]
	faultFunc FaultFunc
}

// NewDispatcher returns an empty Dispatcher. The fault func may be nil
func NewDispatcher[E any](faultFunc FaultFunc) *Dispatcher[E] {
	return &Dispatcher[E]{
		faultFunc: faultFunc,
	}
}

// Add appends a listener. Adding the same listener twice causes it to receive each event twice
func (d *Dispatcher[E]) Add(listener Listener[E]) {
	if listener == nil {
		return
	}
	d.mutex.Lock()
	defer d.mutex.Unlock()
	d.listeners = append(d.listeners, listener)
}

// Remove removes the earliest registered instance of the listener. It returns false if the
// listener was not registered
func (d *Dispatcher[E]) Remove(listener Listener[E]) bool {
	if listener == nil {
		return false
	}
	d.mutex.Lock()
	defer d.mutex.Unlock()
	for idx, tmpListener := range d.listeners {
		if !sameListener(tmpListener, listener) {
			continue
		}
		listeners := make([]Listener[E], 0, len(d.listeners)-1)
		listeners = append(listeners, d.listeners[:idx]...)
		listeners = append(listeners, d.listeners[idx+1:]...)
		d.listeners = listeners
		return true
	}
	return false
}

// Len returns the number of registered listeners
func (d *Dispatcher[E]) Len() int {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	return len(d.listeners)
}

// Dispatch delivers the event to a snapshot of the registered listeners and returns any
// faults that occurred. Listeners added or removed during delivery do not affect it
func (d *Dispatcher[E]) Dispatch(evt E) []error {
	d.mutex.Lock()
	// Remove replaces the slice rather than modifying it, so sharing it here is safe
	listeners := d.listeners
	d.mutex.Unlock()
	var ret []error
	for idx, listener := range listeners {
		if fault := deliver(idx, listener, evt); fault != nil {
			if d.faultFunc != nil {
				d.faultFunc(fault)
			}
			ret = append(ret, fault)
		}
	}
	return ret
}

func deliver[E any](idx int, listener Listener[E], evt E) (fault *ListenerFault) {
	defer func() {
		if r := recover(); r != nil {
			fault = &ListenerFault{
				Index: idx,
				Panic: r,
			}
			if err, ok := r.(error); ok {
				fault.Err = err
			}
		}
	}()
	if err := listener.HandleEvent(evt); err != nil {
		return &ListenerFault{
			Index: idx,
			Err:   err,
		}
	}
	return nil
}

// sameListener compares listeners by identity. Comparing interface values holding
// non-comparable types panics, so those never match
func sameListener[E any](a, b Listener[E]) (ret bool) {
	defer func() {
		if recover() != nil {
			ret = false
		}
	}()
	return a == b
}
