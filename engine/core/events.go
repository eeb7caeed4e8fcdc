package core

import (
	"sync"

	"github.com/google/uuid"
)

// System internal event codes. Application should use codes beyond 255.
type SystemEventCode int

const (
	// Shuts the application down on the next frame.
	EVENT_CODE_APPLICATION_QUIT SystemEventCode = 0x01

	// A window and its renderer were created.
	/* Context usage:
	 * Window = id of the new window
	 * Name   = window name
	 */
	EVENT_CODE_WINDOW_OPENED SystemEventCode = 0x02

	// A window renderer was shut down.
	/* Context usage:
	 * Window = id of the closed window
	 */
	EVENT_CODE_WINDOW_CLOSED SystemEventCode = 0x03

	// An atlas image was replaced after its file changed.
	/* Context usage:
	 * Window = window whose atlas was updated
	 * Path   = asset path relative to the asset directory
	 */
	EVENT_CODE_ASSET_RELOADED SystemEventCode = 0x04

	// A changed file could not be reloaded.
	/* Context usage:
	 * Path = asset path relative to the asset directory
	 * Err  = the load error
	 */
	EVENT_CODE_ASSET_RELOAD_FAILED SystemEventCode = 0x05

	MAX_EVENT_CODE SystemEventCode = 0xFF
)

type EventContext struct {
	Window uuid.UUID
	Name   string
	Path   string
	Err    error
}

// Should return true if handled.
type FnOnEvent func(code SystemEventCode, sender interface{}, listenerInst interface{}, data EventContext) bool

type registeredEvent struct {
	listener interface{}
	callback FnOnEvent
}

// EventBus dispatches events to the listeners registered for their code.
// Listeners run synchronously on the goroutine calling Fire.
type EventBus struct {
	mutex      sync.RWMutex
	registered map[SystemEventCode][]*registeredEvent
}

func NewEventBus() *EventBus {
	return &EventBus{
		registered: make(map[SystemEventCode][]*registeredEvent),
	}
}

/**
 * Register to listen for when events are sent with the provided code. Events with duplicate
 * listeners will not be registered again and will cause this to return false.
 * @param code The event code to listen for.
 * @param listener A pointer to a listener instance. Can be nil.
 * @param onEvent The callback function to be invoked when the event code is fired.
 * @returns true if the event is successfully registered; otherwise false.
 */
func (eb *EventBus) Register(code SystemEventCode, listener interface{}, onEvent FnOnEvent) bool {
	if onEvent == nil {
		return false
	}
	eb.mutex.Lock()
	defer eb.mutex.Unlock()

	for _, e := range eb.registered[code] {
		if e.listener == listener {
			return false
		}
	}
	eb.registered[code] = append(eb.registered[code], &registeredEvent{
		listener: listener,
		callback: onEvent,
	})
	return true
}

/**
 * Unregister from listening for when events are sent with the provided code.
 * @returns true if the listener was registered for code; otherwise false.
 */
func (eb *EventBus) Unregister(code SystemEventCode, listener interface{}) bool {
	eb.mutex.Lock()
	defer eb.mutex.Unlock()

	events := eb.registered[code]
	for i, e := range events {
		if e.listener == listener {
			eb.registered[code] = append(events[:i:i], events[i+1:]...)
			return true
		}
	}
	return false
}

/**
 * Fires an event to listeners of the given code. If an event handler returns
 * true, the event is considered handled and is not passed on to any more listeners.
 * @returns true if handled, otherwise false.
 */
func (eb *EventBus) Fire(code SystemEventCode, sender interface{}, context EventContext) bool {
	eb.mutex.RLock()
	events := eb.registered[code]
	eb.mutex.RUnlock()

	for _, e := range events {
		if e.callback(code, sender, e.listener, context) {
			return true
		}
	}
	return false
}

// Shutdown drops every registration.
func (eb *EventBus) Shutdown() {
	eb.mutex.Lock()
	defer eb.mutex.Unlock()
	eb.registered = make(map[SystemEventCode][]*registeredEvent)
}
