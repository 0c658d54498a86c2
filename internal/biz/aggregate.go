package biz

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// cancelCheckInterval is how many rows a partition folds between context checks.
const cancelCheckInterval = 4096

// groupKey identifies one aggregation group.
type groupKey struct {
	Partition string
	MovieID   int
	Title     string
}

type accumulator struct {
	count int
	sum   int64
}

// group is a reduced aggregation group.
type group struct {
	key     groupKey
	count   int
	average float64
}

// addFunc adds one rating to the group of key.
type addFunc func(key groupKey, rating int)

// aggregate folds rows into per-group counts and rating sums. The rows are cut
// into contiguous partitions that are folded concurrently into local tables,
// which are then merged. fold decides, per row, which groups it contributes
// to; a row it does not add is filtered out.
func aggregate[T any](ctx context.Context, rows []T, partitions int, fold func(row *T, add addFunc)) (map[groupKey]*accumulator, error) {
	if partitions <= 0 {
		partitions = runtime.GOMAXPROCS(0)
	}
	if partitions > len(rows) {
		partitions = max(len(rows), 1)
	}
	size := (len(rows) + partitions - 1) / partitions

	locals := make([]map[groupKey]*accumulator, partitions)
	g, ctx := errgroup.WithContext(ctx)
	for p := range partitions {
		lo := min(p*size, len(rows))
		hi := min(lo+size, len(rows))
		g.Go(func() error {
			local := make(map[groupKey]*accumulator)
			add := func(key groupKey, rating int) {
				acc, ok := local[key]
				if !ok {
					acc = &accumulator{}
					local[key] = acc
				}
				acc.count++
				acc.sum += int64(rating)
			}
			for i := lo; i < hi; i++ {
				if (i-lo)%cancelCheckInterval == 0 {
					if err := ctx.Err(); err != nil {
						return err
					}
				}
				fold(&rows[i], add)
			}
			locals[p] = local
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	merged := locals[0]
	if merged == nil {
		merged = make(map[groupKey]*accumulator)
	}
	for _, local := range locals[1:] {
		for key, acc := range local {
			if m, ok := merged[key]; ok {
				m.count += acc.count
				m.sum += acc.sum
				continue
			}
			merged[key] = acc
		}
	}
	return merged, nil
}

// reduce turns accumulated groups into a slice with unrounded averages.
func reduce(accs map[groupKey]*accumulator) []group {
	groups := make([]group, 0, len(accs))
	for key, acc := range accs {
		groups = append(groups, group{
			key:     key,
			count:   acc.count,
			average: float64(acc.sum) / float64(acc.count),
		})
	}
	return groups
}
