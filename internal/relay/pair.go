package relay

import "context"

// Pair is the fan-out/fan-in channel pair of one lobby. The streamer owns the
// Pair; viewers hold ViewerHandles obtained from Attach.
type Pair struct {
	fanOut *Topic
	fanIn  *Queue
}

// NewPair creates a pair with explicit bounds for both directions.
func NewPair(fanOutCapacity, fanInCapacity int) *Pair {
	return &Pair{
		fanOut: NewTopic(fanOutCapacity),
		fanIn:  NewQueue(fanInCapacity),
	}
}

// Publish broadcasts msg to every attached viewer.
func (p *Pair) Publish(msg Message) (int, error) {
	return p.fanOut.Publish(msg)
}

// Inbound is the streamer's read side of the fan-in queue.
func (p *Pair) Inbound() *Queue {
	return p.fanIn
}

// Viewers returns the number of attached viewers.
func (p *Pair) Viewers() int {
	return p.fanOut.Subscribers()
}

// Attach subscribes a new viewer. The viewer sees only messages published
// after this call returns.
func (p *Pair) Attach() *ViewerHandle {
	return &ViewerHandle{
		downstream: p.fanOut.Subscribe(),
		upstream:   p.fanIn,
	}
}

// Close tears down both directions. Every attached viewer observes ErrClosed.
func (p *Pair) Close() {
	p.fanOut.Close()
	p.fanIn.Close()
}

// ViewerHandle is one viewer's subscription cursor plus its write handle
// into the fan-in queue.
type ViewerHandle struct {
	downstream *Subscription
	upstream   *Queue
}

// Next returns the next message published by the streamer.
func (h *ViewerHandle) Next(ctx context.Context) (Message, error) {
	return h.downstream.Next(ctx)
}

// Send forwards msg to the streamer.
func (h *ViewerHandle) Send(ctx context.Context, msg Message) error {
	return h.upstream.Send(ctx, msg)
}

// Detach releases the viewer's subscription. The pair itself stays open.
func (h *ViewerHandle) Detach() {
	h.downstream.Close()
}
