package sequence

import (
	"fmt"

	"github.com/tticoin/JointER/alg/featurevector"
	"golang.org/x/sync/errgroup"
)

// FeatureCache wraps a generator with precomputed gold feature vectors.
// Warm must complete before the cache is read concurrently; instances that
// were not warmed (including clones) fall through to the generator.
type FeatureCache struct {
	FeatureGenerator
	gold map[Instance][]*featurevector.Hashed
}

var _ FeatureGenerator = &FeatureCache{}

func NewFeatureCache(g FeatureGenerator) *FeatureCache {
	return &FeatureCache{FeatureGenerator: g, gold: make(map[Instance][]*featurevector.Hashed)}
}

// Warm computes the gold local vectors of every instance, fanning out over
// up to processors goroutines (unbounded when 0) if concurrent is set.
func (c *FeatureCache) Warm(instances []Instance, concurrent bool, processors int) error {
	computed := make([][]*featurevector.Hashed, len(instances))
	warm := func(i int) {
		inst := instances[i]
		gold := inst.Gold()
		local := make([]*featurevector.Hashed, inst.Size())
		for j := range local {
			local[j] = c.FeatureGenerator.Local(inst, gold.Prefix(j), j, gold.At(j))
		}
		computed[i] = local
	}
	if concurrent {
		var g errgroup.Group
		if processors > 0 {
			g.SetLimit(processors)
		}
		for i := range instances {
			g.Go(func() (err error) {
				defer func() {
					if r := recover(); r != nil {
						err = fmt.Errorf("caching features of instance %d: %v", i, r)
					}
				}()
				warm(i)
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}
	} else {
		for i := range instances {
			warm(i)
		}
	}
	for i, inst := range instances {
		c.gold[inst] = computed[i]
	}
	return nil
}

func (c *FeatureCache) Len() int {
	return len(c.gold)
}

func (c *FeatureCache) GoldLocal(inst Instance, position int) *featurevector.Hashed {
	if cached, exists := c.gold[inst]; exists {
		return cached[position]
	}
	gold := inst.Gold()
	return c.FeatureGenerator.Local(inst, gold.Prefix(position), position, gold.At(position))
}

func (c *FeatureCache) GoldFeatures(inst Instance, size int) *featurevector.Hashed {
	cached, exists := c.gold[inst]
	if !exists {
		return Features(c.FeatureGenerator, inst, inst.Gold(), size)
	}
	fv := featurevector.NewHashed(c.Dim())
	for _, local := range cached[:size] {
		fv.Add(1, local)
	}
	return fv
}

// LocalOnly returns an uncached local-only view when the wrapped generator
// supports one.
func (c *FeatureCache) LocalOnly() FeatureGenerator {
	if l, ok := c.FeatureGenerator.(LocalOnly); ok {
		return l.LocalOnly()
	}
	return c.FeatureGenerator
}
