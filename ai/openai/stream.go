package openai

import (
	"context"
	"io"
	"sync"

	"github.com/poiesic/newsrag/ai"
)

// chunkStream bridges langchaingo's streaming callback to a pull-based ai.TextStream.
// The producer goroutine blocks on each fragment until the consumer receives it
// or the stream is cancelled.
type chunkStream struct {
	fragments chan string
	cancel    context.CancelFunc
	err       error // written before fragments is closed
	closeOnce sync.Once
}

var _ ai.TextStream = (*chunkStream)(nil)

func newChunkStream(cancel context.CancelFunc) *chunkStream {
	return &chunkStream{
		fragments: make(chan string),
		cancel:    cancel,
	}
}

// push is the langchaingo streaming callback.
func (s *chunkStream) push(ctx context.Context, chunk []byte) error {
	if len(chunk) == 0 {
		return nil
	}
	select {
	case s.fragments <- string(chunk):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// finish records the terminal error and ends the stream.
func (s *chunkStream) finish(err error) {
	s.err = err
	close(s.fragments)
}

func (s *chunkStream) Recv() (string, error) {
	fragment, ok := <-s.fragments
	if ok {
		return fragment, nil
	}
	if s.err != nil {
		return "", s.err
	}
	return "", io.EOF
}

// Close cancels the provider call and waits for the producer to exit.
func (s *chunkStream) Close() error {
	s.closeOnce.Do(func() {
		s.cancel()
		for range s.fragments {
		}
	})
	return nil
}
