package deform

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/normanking/cortexblob/internal/emotion"
)

// minChunk keeps tiny surfaces from being split across goroutines.
const minChunk = 2048

// Apply displaces every sample of s for time t. Samples are independent, so
// they are split into chunks across up to workers goroutines; workers <= 0
// means GOMAXPROCS. Mesh normals are rebuilt afterwards.
func Apply(ctx context.Context, f *Field, s *Surface, t float64, v emotion.Vector, workers int) error {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	n := s.Len()
	chunk := (n + workers - 1) / workers
	if chunk < minChunk {
		chunk = minChunk
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for start := 0; start < n; start += chunk {
		end := min(start+chunk, n)
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			for i := start; i < end; i++ {
				s.Positions[i] = f.Displace(s.Base[i].Position, t, v)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}

	s.RecomputeNormals()
	return nil
}
