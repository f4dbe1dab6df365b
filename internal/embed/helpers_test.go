package embed

import (
	"context"
	"math"
	"sync"
)

// vectorMagnitude computes the magnitude of a vector
func vectorMagnitude(v []float32) float64 {
	var sum float64
	for _, val := range v {
		sum += float64(val) * float64(val)
	}
	return math.Sqrt(sum)
}

// cosineSimilarity computes cosine similarity between two vectors
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}
	var dotProduct, magA, magB float64
	for i := range a {
		dotProduct += float64(a[i]) * float64(b[i])
		magA += float64(a[i]) * float64(a[i])
		magB += float64(b[i]) * float64(b[i])
	}
	if magA == 0 || magB == 0 {
		return 0
	}
	return dotProduct / (math.Sqrt(magA) * math.Sqrt(magB))
}

// scriptedEmbedder returns queued errors first, then a fixed vector.
type scriptedEmbedder struct {
	mu     sync.Mutex
	errs   []error
	calls  int
	block  bool
	closed bool
}

func (s *scriptedEmbedder) next(ctx context.Context) error {
	s.mu.Lock()
	s.calls++
	block := s.block
	var err error
	if len(s.errs) > 0 {
		err, s.errs = s.errs[0], s.errs[1:]
	}
	s.mu.Unlock()

	if block {
		<-ctx.Done()
		return ctx.Err()
	}
	return err
}

func (s *scriptedEmbedder) Embed(ctx context.Context, _ string) ([]float32, error) {
	if err := s.next(ctx); err != nil {
		return nil, err
	}
	return []float32{1, 0, 0}, nil
}

func (s *scriptedEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if err := s.next(ctx); err != nil {
		return nil, err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0, 0}
	}
	return out, nil
}

func (s *scriptedEmbedder) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func (s *scriptedEmbedder) Dimensions() int                  { return 3 }
func (s *scriptedEmbedder) ModelName() string                { return "scripted" }
func (s *scriptedEmbedder) Available(_ context.Context) bool { return true }
func (s *scriptedEmbedder) Close() error                     { s.closed = true; return nil }
