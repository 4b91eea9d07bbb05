// Package domain defines events for the event-driven architecture.
// Events replace ad-hoc callback registration and enable loose coupling
// between the playback engine, the session controller and consumers.
package domain

import (
	"time"
)

// Event is the base interface for all events in the system.
// All events must implement this interface to be published via the event bus.
type Event interface {
	// Type returns the event type identifier
	Type() EventType

	// Timestamp returns when the event occurred
	Timestamp() time.Time
}

// EventType is a string identifier for different event types.
type EventType string

// Event type constants define all possible events in the system.
const (
	// Transport events
	EventTrackLoaded    EventType = "track.loaded"
	EventTrackStarted   EventType = "track.started"
	EventTrackPaused    EventType = "track.paused"
	EventTrackStopped   EventType = "track.stopped"
	EventTrackCompleted EventType = "track.completed"
	EventTrackProgress  EventType = "track.progress"
	EventTrackError     EventType = "track.error"

	// Transport parameter events
	EventVolumeChanged EventType = "volume.changed"
	EventMuteToggled   EventType = "mute.toggled"
	EventRateChanged   EventType = "rate.changed"

	// Session events
	EventRepeatChanged   EventType = "repeat.changed"
	EventQueueChanged    EventType = "queue.changed"
	EventFavoriteChanged EventType = "favorite.changed"

	// Sleep timer events
	EventSleepTimerSet   EventType = "sleep.set"
	EventSleepTimerFired EventType = "sleep.fired"
)

// EventHandler is a function that handles events.
type EventHandler func(event Event)

// SubscriptionID uniquely identifies an event subscription.
type SubscriptionID string

// baseEvent provides common event functionality.
// All concrete events should embed this struct.
type baseEvent struct {
	timestamp time.Time
}

// Timestamp returns when the event occurred.
func (e baseEvent) Timestamp() time.Time {
	return e.timestamp
}

// newBaseEvent creates a new base event with the current timestamp.
func newBaseEvent() baseEvent {
	return baseEvent{timestamp: time.Now()}
}

// TrackLoadedEvent is published when the engine successfully loads a track.
type TrackLoadedEvent struct {
	baseEvent
	Track    Track
	Handle   TrackHandle
	Duration time.Duration
}

// Type returns the event type.
func (e TrackLoadedEvent) Type() EventType { return EventTrackLoaded }

// NewTrackLoadedEvent creates a new TrackLoadedEvent.
func NewTrackLoadedEvent(track Track, handle TrackHandle, duration time.Duration) TrackLoadedEvent {
	return TrackLoadedEvent{baseEvent: newBaseEvent(), Track: track, Handle: handle, Duration: duration}
}

// TrackStartedEvent is published when playback starts or resumes.
type TrackStartedEvent struct {
	baseEvent
	Track Track
}

// Type returns the event type.
func (e TrackStartedEvent) Type() EventType { return EventTrackStarted }

// NewTrackStartedEvent creates a new TrackStartedEvent.
func NewTrackStartedEvent(track Track) TrackStartedEvent {
	return TrackStartedEvent{baseEvent: newBaseEvent(), Track: track}
}

// TrackPausedEvent is published when playback is paused.
type TrackPausedEvent struct {
	baseEvent
	Track    Track
	Position time.Duration
}

// Type returns the event type.
func (e TrackPausedEvent) Type() EventType { return EventTrackPaused }

// NewTrackPausedEvent creates a new TrackPausedEvent.
func NewTrackPausedEvent(track Track, position time.Duration) TrackPausedEvent {
	return TrackPausedEvent{baseEvent: newBaseEvent(), Track: track, Position: position}
}

// TrackStoppedEvent is published when playback is explicitly stopped.
type TrackStoppedEvent struct {
	baseEvent
	Track Track
}

// Type returns the event type.
func (e TrackStoppedEvent) Type() EventType { return EventTrackStopped }

// NewTrackStoppedEvent creates a new TrackStoppedEvent.
func NewTrackStoppedEvent(track Track) TrackStoppedEvent {
	return TrackStoppedEvent{baseEvent: newBaseEvent(), Track: track}
}

// TrackCompletedEvent is published when a track finishes playing naturally.
// The session controller reacts to this by replaying or advancing the queue.
// Handle identifies the engine instance that ended; duplicate end signals
// for the same instance carry the same handle.
type TrackCompletedEvent struct {
	baseEvent
	Track  Track
	Handle TrackHandle
}

// Type returns the event type.
func (e TrackCompletedEvent) Type() EventType { return EventTrackCompleted }

// NewTrackCompletedEvent creates a new TrackCompletedEvent.
func NewTrackCompletedEvent(track Track, handle TrackHandle) TrackCompletedEvent {
	return TrackCompletedEvent{baseEvent: newBaseEvent(), Track: track, Handle: handle}
}

// TrackProgressEvent is published periodically while a track is playing.
type TrackProgressEvent struct {
	baseEvent
	Position time.Duration
	Duration time.Duration
}

// Type returns the event type.
func (e TrackProgressEvent) Type() EventType { return EventTrackProgress }

// NewTrackProgressEvent creates a new TrackProgressEvent.
func NewTrackProgressEvent(position, duration time.Duration) TrackProgressEvent {
	return TrackProgressEvent{baseEvent: newBaseEvent(), Position: position, Duration: duration}
}

// TrackErrorEvent is published when an engine operation fails for a track.
type TrackErrorEvent struct {
	baseEvent
	Track Track
	Error error
}

// Type returns the event type.
func (e TrackErrorEvent) Type() EventType { return EventTrackError }

// NewTrackErrorEvent creates a new TrackErrorEvent.
func NewTrackErrorEvent(track Track, err error) TrackErrorEvent {
	return TrackErrorEvent{baseEvent: newBaseEvent(), Track: track, Error: err}
}

// VolumeChangedEvent is published when the volume changes.
type VolumeChangedEvent struct {
	baseEvent
	Volume float64 // 0.0 to 1.0
}

// Type returns the event type.
func (e VolumeChangedEvent) Type() EventType { return EventVolumeChanged }

// NewVolumeChangedEvent creates a new VolumeChangedEvent.
func NewVolumeChangedEvent(volume float64) VolumeChangedEvent {
	return VolumeChangedEvent{baseEvent: newBaseEvent(), Volume: volume}
}

// MuteToggledEvent is published when mute is toggled.
type MuteToggledEvent struct {
	baseEvent
	Muted bool
}

// Type returns the event type.
func (e MuteToggledEvent) Type() EventType { return EventMuteToggled }

// NewMuteToggledEvent creates a new MuteToggledEvent.
func NewMuteToggledEvent(muted bool) MuteToggledEvent {
	return MuteToggledEvent{baseEvent: newBaseEvent(), Muted: muted}
}

// RateChangedEvent is published when the playback rate changes.
type RateChangedEvent struct {
	baseEvent
	Rate float64
}

// Type returns the event type.
func (e RateChangedEvent) Type() EventType { return EventRateChanged }

// NewRateChangedEvent creates a new RateChangedEvent.
func NewRateChangedEvent(rate float64) RateChangedEvent {
	return RateChangedEvent{baseEvent: newBaseEvent(), Rate: rate}
}

// RepeatChangedEvent is published when the repeat mode cycles.
type RepeatChangedEvent struct {
	baseEvent
	Mode RepeatMode
}

// Type returns the event type.
func (e RepeatChangedEvent) Type() EventType { return EventRepeatChanged }

// NewRepeatChangedEvent creates a new RepeatChangedEvent.
func NewRepeatChangedEvent(mode RepeatMode) RepeatChangedEvent {
	return RepeatChangedEvent{baseEvent: newBaseEvent(), Mode: mode}
}

// QueueChangedEvent is published when the queue is replaced or the index moves.
type QueueChangedEvent struct {
	baseEvent
	Queue []Track
	Index int
}

// Type returns the event type.
func (e QueueChangedEvent) Type() EventType { return EventQueueChanged }

// NewQueueChangedEvent creates a new QueueChangedEvent.
func NewQueueChangedEvent(queue []Track, index int) QueueChangedEvent {
	return QueueChangedEvent{baseEvent: newBaseEvent(), Queue: queue, Index: index}
}

// FavoriteChangedEvent is published after a favorite toggle has been
// re-derived from the favorites store.
type FavoriteChangedEvent struct {
	baseEvent
	Track    Track
	Favorite bool
}

// Type returns the event type.
func (e FavoriteChangedEvent) Type() EventType { return EventFavoriteChanged }

// NewFavoriteChangedEvent creates a new FavoriteChangedEvent.
func NewFavoriteChangedEvent(track Track, favorite bool) FavoriteChangedEvent {
	return FavoriteChangedEvent{baseEvent: newBaseEvent(), Track: track, Favorite: favorite}
}

// SleepTimerSetEvent is published when a sleep timer is armed or cleared.
// A zero Deadline means the timer was cleared.
type SleepTimerSetEvent struct {
	baseEvent
	Deadline time.Time
}

// Type returns the event type.
func (e SleepTimerSetEvent) Type() EventType { return EventSleepTimerSet }

// NewSleepTimerSetEvent creates a new SleepTimerSetEvent.
func NewSleepTimerSetEvent(deadline time.Time) SleepTimerSetEvent {
	return SleepTimerSetEvent{baseEvent: newBaseEvent(), Deadline: deadline}
}

// SleepTimerFiredEvent is published when the sleep timer expires and
// playback has been paused.
type SleepTimerFiredEvent struct {
	baseEvent
}

// Type returns the event type.
func (e SleepTimerFiredEvent) Type() EventType { return EventSleepTimerFired }

// NewSleepTimerFiredEvent creates a new SleepTimerFiredEvent.
func NewSleepTimerFiredEvent() SleepTimerFiredEvent {
	return SleepTimerFiredEvent{baseEvent: newBaseEvent()}
}
