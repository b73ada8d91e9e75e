package eventbus

// Event represents an arbitrary event passed on the bus.
type Event any

// EventBus is the untyped publish/subscribe contract the decomposition
// loop emits on.
type EventBus interface {
	Publish(Event)
	Subscribe() <-chan Event
	Unsubscribe(<-chan Event)
	Close()
}

// Bus is the default EventBus implementation.
type Bus = TypedBus[Event]

var _ EventBus = (*Bus)(nil)

// New creates a new Bus.
func New(opts ...Option) *Bus { return NewTyped[Event](opts...) }
