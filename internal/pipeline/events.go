package pipeline

import (
	"time"

	"shelfscan/internal/region"
)

// EventType identifies pipeline events.
type EventType int

const (
	EventImagesLoaded EventType = iota
	EventImageProcessed
	EventImageFailed
	EventRunComplete
	EventPreprocessed
	EventCurrentChanged
)

// EventListener is called when an event occurs. Listeners run on the
// goroutine that emitted the event.
type EventListener func(data interface{})

// Progress accompanies EventImageProcessed and EventImageFailed.
type Progress struct {
	Index   int
	Total   int
	ID      string
	Numbers []int
	Err     error
}

// Summary accompanies EventRunComplete.
type Summary struct {
	Processed int
	Skipped   int
	Failed    int
	Duration  time.Duration
}

// Preprocessed accompanies EventPreprocessed.
type Preprocessed struct {
	Index  int
	Result *region.Result
}

// On registers an event listener for the specified event type.
func (p *Pipeline) On(event EventType, listener EventListener) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.listeners[event] = append(p.listeners[event], listener)
}

// Emit triggers all listeners for the specified event type.
func (p *Pipeline) Emit(event EventType, data interface{}) {
	p.mu.RLock()
	listeners := p.listeners[event]
	p.mu.RUnlock()

	for _, listener := range listeners {
		listener(data)
	}
}
