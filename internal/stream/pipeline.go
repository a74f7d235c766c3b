// Package stream turns decoded audio segments into spoken-command replies.
// Each connection gets its own Pipeline: segments queue to a single worker so
// replies come back in arrival order, transcripts before the code they
// produced.
package stream

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/codevoice/backend/internal/metrics"
	"github.com/codevoice/backend/internal/model"
)

// DefaultQueueSize bounds the per-connection segment backlog.
const DefaultQueueSize = 16

// segmentFormat is the encoding the clients capture in.
const segmentFormat = "pcm16"

// Assist is the slice of the collaborator client the pipeline needs.
type Assist interface {
	Transcribe(ctx context.Context, audio []byte, format string) (string, error)
	GenerateCode(ctx context.Context, prompt, language string) (string, error)
}

// Replier delivers text messages back to the originating connection.
// *ws.Client satisfies it.
type Replier interface {
	SendText(data []byte) bool
}

// Pipeline queues audio segments and replies with TRANSCRIPT: and CODE:
// messages. It implements ws.AudioSink.
type Pipeline struct {
	assist   Assist
	reply    Replier
	language func() string
	metrics  *metrics.Metrics

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	closed   bool
	segments chan []byte

	done chan struct{}
}

// NewPipeline starts the worker. language is consulted per segment so code
// generation follows the session's current language.
func NewPipeline(assist Assist, reply Replier, language func() string, queueSize int, m *metrics.Metrics) *Pipeline {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	ctx, cancel := context.WithCancel(context.Background())
	p := &Pipeline{
		assist:   assist,
		reply:    reply,
		language: language,
		metrics:  m,
		ctx:      ctx,
		cancel:   cancel,
		segments: make(chan []byte, queueSize),
		done:     make(chan struct{}),
	}
	go p.run()
	return p
}

// Push queues one decoded segment. It never blocks: a full queue drops the
// segment and reports false.
func (p *Pipeline) Push(segment []byte) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return false
	}
	select {
	case p.segments <- segment:
		return true
	default:
		log.Warn().Str("module", "stream").Msg("segment queue full, dropping")
		return false
	}
}

// Close stops the worker. Queued segments are discarded; in-flight work is
// cancelled.
func (p *Pipeline) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.segments)
	p.mu.Unlock()

	p.cancel()
	<-p.done
}

func (p *Pipeline) run() {
	defer close(p.done)
	for segment := range p.segments {
		if p.ctx.Err() != nil {
			return
		}
		p.process(segment)
	}
}

func (p *Pipeline) process(segment []byte) {
	transcript, err := p.assist.Transcribe(p.ctx, segment, segmentFormat)
	if err != nil {
		p.metrics.TranscriptionFailed()
		log.Warn().Err(err).Str("module", "stream").Msg("transcription failed")
		return
	}
	p.metrics.TranscriptionSucceeded()
	p.reply.SendText([]byte(model.TranscriptPrefix + transcript))

	if transcript == "" {
		return
	}

	code, err := p.assist.GenerateCode(p.ctx, transcript, p.language())
	if err != nil {
		log.Warn().Err(err).Str("module", "stream").Msg("code generation failed")
		return
	}
	p.reply.SendText([]byte(model.CodePrefix + code))
}
