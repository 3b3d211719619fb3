package media

import "sync/atomic"

// Channel depths for the bounded sink adapters. Sized to absorb sink-side
// jitter without letting a stalled consumer pin an unbounded share of the
// buffer pool: roughly one second of video and of 8ms audio frames.
const (
	VideoQueueDepth = 60
	AudioQueueDepth = 128
)

// AudioQueue adapts a processor's unconditional delivery to a bounded
// channel. When the consumer falls behind, the newest packet is dropped
// and its slice released so the read loop never stalls and the pool
// never grows without bound.
type AudioQueue struct {
	ch    chan *AudioPacket
	drops atomic.Int64
}

// NewAudioQueue creates a bounded audio queue. A depth of 0 uses
// AudioQueueDepth.
func NewAudioQueue(depth int) *AudioQueue {
	if depth <= 0 {
		depth = AudioQueueDepth
	}
	return &AudioQueue{ch: make(chan *AudioPacket, depth)}
}

// OnData implements AudioSink.
func (q *AudioQueue) OnData(p *AudioPacket) {
	select {
	case q.ch <- p:
	default:
		q.drops.Add(1)
		p.Release()
	}
}

// Packets returns the consumer side of the queue.
func (q *AudioQueue) Packets() <-chan *AudioPacket { return q.ch }

// Drops returns the number of packets discarded because the queue was full.
func (q *AudioQueue) Drops() int64 { return q.drops.Load() }

// Close closes the consumer channel and releases anything still queued.
// Call only after the producing processor has stopped.
func (q *AudioQueue) Close() {
	close(q.ch)
	for p := range q.ch {
		p.Release()
	}
}

// VideoQueue is the video counterpart of AudioQueue.
type VideoQueue struct {
	ch    chan *VideoPacket
	drops atomic.Int64
}

// NewVideoQueue creates a bounded video queue. A depth of 0 uses
// VideoQueueDepth.
func NewVideoQueue(depth int) *VideoQueue {
	if depth <= 0 {
		depth = VideoQueueDepth
	}
	return &VideoQueue{ch: make(chan *VideoPacket, depth)}
}

// OnData implements VideoSink.
func (q *VideoQueue) OnData(p *VideoPacket) {
	select {
	case q.ch <- p:
	default:
		q.drops.Add(1)
		p.Release()
	}
}

// Packets returns the consumer side of the queue.
func (q *VideoQueue) Packets() <-chan *VideoPacket { return q.ch }

// Drops returns the number of packets discarded because the queue was full.
func (q *VideoQueue) Drops() int64 { return q.drops.Load() }

// Close closes the consumer channel and releases anything still queued.
// Call only after the producing processor has stopped.
func (q *VideoQueue) Close() {
	close(q.ch)
	for p := range q.ch {
		p.Release()
	}
}
