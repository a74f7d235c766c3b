package stream

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAssist struct {
	mu            sync.Mutex
	transcripts   map[string]string // audio -> transcript
	transcribeErr error
	generateErr   error
	generated     []string
}

func (f *fakeAssist) Transcribe(ctx context.Context, audio []byte, format string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.transcribeErr != nil {
		return "", f.transcribeErr
	}
	if t, ok := f.transcripts[string(audio)]; ok {
		return t, nil
	}
	return "transcript of " + string(audio), nil
}

func (f *fakeAssist) GenerateCode(ctx context.Context, prompt, language string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.generateErr != nil {
		return "", f.generateErr
	}
	f.generated = append(f.generated, prompt)
	return fmt.Sprintf("# %s (%s)", prompt, language), nil
}

type fakeReplier struct {
	mu    sync.Mutex
	texts []string
}

func (r *fakeReplier) SendText(data []byte) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.texts = append(r.texts, string(data))
	return true
}

func (r *fakeReplier) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.texts...)
}

func pythonLang() string { return "python" }

func TestPipelineRepliesTranscriptThenCode(t *testing.T) {
	assist := &fakeAssist{transcripts: map[string]string{"\x01": "add a loop"}}
	reply := &fakeReplier{}
	p := NewPipeline(assist, reply, pythonLang, 0, nil)
	defer p.Close()

	require.True(t, p.Push([]byte{1}))

	require.Eventually(t, func() bool { return len(reply.snapshot()) == 2 },
		time.Second, 5*time.Millisecond)

	got := reply.snapshot()
	assert.Equal(t, "TRANSCRIPT:add a loop", got[0])
	assert.Equal(t, "CODE:# add a loop (python)", got[1])
}

func TestPipelinePreservesArrivalOrder(t *testing.T) {
	assist := &fakeAssist{}
	reply := &fakeReplier{}
	p := NewPipeline(assist, reply, pythonLang, 0, nil)
	defer p.Close()

	for i := 0; i < 5; i++ {
		require.True(t, p.Push([]byte{byte('a' + i)}))
	}

	require.Eventually(t, func() bool { return len(reply.snapshot()) == 10 },
		time.Second, 5*time.Millisecond)

	var transcripts []string
	for _, msg := range reply.snapshot() {
		if strings.HasPrefix(msg, "TRANSCRIPT:") {
			transcripts = append(transcripts, msg)
		}
	}
	require.Len(t, transcripts, 5)
	for i, tr := range transcripts {
		assert.Equal(t, "TRANSCRIPT:transcript of "+string(byte('a'+i)), tr)
	}
}

func TestPipelineTranscriptionFailureIsSilent(t *testing.T) {
	assist := &fakeAssist{transcribeErr: errors.New("service down")}
	reply := &fakeReplier{}
	p := NewPipeline(assist, reply, pythonLang, 0, nil)

	p.Push([]byte{1})
	time.Sleep(50 * time.Millisecond)
	p.Close()

	assert.Empty(t, reply.snapshot())
}

func TestPipelineEmptyTranscriptSkipsGeneration(t *testing.T) {
	assist := &fakeAssist{transcripts: map[string]string{"\x01": ""}}
	reply := &fakeReplier{}
	p := NewPipeline(assist, reply, pythonLang, 0, nil)
	defer p.Close()

	p.Push([]byte{1})

	require.Eventually(t, func() bool { return len(reply.snapshot()) == 1 },
		time.Second, 5*time.Millisecond)
	assert.Equal(t, "TRANSCRIPT:", reply.snapshot()[0])

	assist.mu.Lock()
	defer assist.mu.Unlock()
	assert.Empty(t, assist.generated)
}

func TestPipelineGenerationFailureStillSendsTranscript(t *testing.T) {
	assist := &fakeAssist{generateErr: errors.New("model offline")}
	reply := &fakeReplier{}
	p := NewPipeline(assist, reply, pythonLang, 0, nil)
	defer p.Close()

	p.Push([]byte{1})

	require.Eventually(t, func() bool { return len(reply.snapshot()) == 1 },
		time.Second, 5*time.Millisecond)
	assert.True(t, strings.HasPrefix(reply.snapshot()[0], "TRANSCRIPT:"))
}

func TestPipelinePushAfterClose(t *testing.T) {
	p := NewPipeline(&fakeAssist{}, &fakeReplier{}, pythonLang, 0, nil)
	p.Close()
	p.Close() // idempotent

	assert.False(t, p.Push([]byte{1}))
}

func TestPipelineDropsWhenQueueFull(t *testing.T) {
	block := make(chan struct{})
	assist := &blockingAssist{release: block}
	reply := &fakeReplier{}
	p := NewPipeline(assist, reply, pythonLang, 1, nil)
	defer p.Close()

	// First segment occupies the worker, second fills the queue.
	require.True(t, p.Push([]byte{1}))
	require.Eventually(t, func() bool { return assist.started.Load() },
		time.Second, time.Millisecond)
	require.True(t, p.Push([]byte{2}))
	assert.False(t, p.Push([]byte{3}))

	close(block)
}

type blockingAssist struct {
	release chan struct{}
	started atomic.Bool
}

func (b *blockingAssist) Transcribe(ctx context.Context, audio []byte, format string) (string, error) {
	b.started.Store(true)
	select {
	case <-b.release:
	case <-ctx.Done():
	}
	return "", ctx.Err()
}

func (b *blockingAssist) GenerateCode(ctx context.Context, prompt, language string) (string, error) {
	return "", nil
}
