package jobstore

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"
)

// DurationProbe measures the playable length of a media file. jobstore
// takes this as a dependency instead of importing internal/media directly
// so the two packages can evolve independently; internal/httpapi wires the
// real ffprobe-backed implementation in.
type DurationProbe func(ctx context.Context, path string) (time.Duration, error)

// EstimateSeconds converts a media duration into the processing time
// estimate the reference worker used: online transcription runs roughly
// 10x faster than realtime on CPU-class hardware, 5x on Apple Silicon.
func EstimateSeconds(duration time.Duration, online bool, device string) int {
	if duration <= 0 {
		return 60
	}
	divisor := 10.0
	switch {
	case online && device == "mps":
		divisor = 5
	case online:
		divisor = 10
	case device == "mps":
		divisor = 3
	default:
		divisor = 6
	}
	return int(duration.Seconds() / divisor)
}

// QueuePosition describes one waiting job's place in line along with an ETA
// computed from every job ahead of it.
type QueuePosition struct {
	Job          *Job
	Position     int
	ETA          time.Duration
	DurationKnown bool
}

// DescribeQueue probes every job currently waiting (concurrently, bounded
// by errgroup) so the caller can render a queue position and ETA without
// blocking on one slow probe per job in sequence.
func (s *Store) DescribeQueue(ctx context.Context, probe DurationProbe, online bool, device string) ([]QueuePosition, error) {
	jobs, err := s.oldestFirst()
	if err != nil {
		return nil, err
	}

	var eligible []*Job
	for _, j := range jobs {
		ok, err := s.shouldProcess(j)
		if err != nil {
			continue
		}
		if ok {
			eligible = append(eligible, j)
		}
	}

	estimates := make([]time.Duration, len(eligible))
	known := make([]bool, len(eligible))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for i, job := range eligible {
		i, job := i, job
		g.Go(func() error {
			if job.IsZip {
				estimates[i] = time.Second
				known[i] = true
				return nil
			}
			d, err := probe(gctx, job.Path)
			if err != nil {
				return nil // unknown duration degrades gracefully, doesn't fail the whole listing
			}
			estimates[i] = d
			known[i] = true
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	positions := make([]QueuePosition, len(eligible))
	var cumulative time.Duration
	for i, job := range eligible {
		seconds := EstimateSeconds(estimates[i], online, device)
		cumulative += time.Duration(seconds) * time.Second
		positions[i] = QueuePosition{
			Job:           job,
			Position:      i + 1,
			ETA:           cumulative,
			DurationKnown: known[i],
		}
	}
	return positions, nil
}
