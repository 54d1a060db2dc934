package builtin

import (
	"context"
	"fmt"

	"github.com/zeebo/xxh3"

	"geoetl/internal/ctxlog"
	"geoetl/internal/dataset"
	"geoetl/internal/rule"
)

// splitDuplicates partitions rows by whether their subset key occurs more
// than once. Keys are typed: the string "5" and the number 5 differ. Every occurrence of a repeated key goes to the duplicates
// output; both outputs keep the input's row order and labels.
func splitDuplicates(ctx context.Context, in []*dataset.Dataset, params rule.Params) ([]*dataset.Dataset, error) {
	p, err := paramsAs[*rule.SplitDuplicates](SplitDuplicates, params)
	if err != nil {
		return nil, err
	}
	d, err := single(SplitDuplicates, in)
	if err != nil {
		return nil, err
	}
	if err := d.Require(p.Subset...); err != nil {
		return nil, fmt.Errorf("split_duplicates: subset: %w", err)
	}

	var counts keyCounts
	seen := make([]*keyCount, d.Len())
	for i, r := range d.Rows {
		seen[i] = counts.add(dataset.TypedKey(r, p.Subset))
	}

	var dup, uniq []int
	for i, kc := range seen {
		if kc.n > 1 {
			dup = append(dup, i)
		} else {
			uniq = append(uniq, i)
		}
	}

	dups := d.Take(dup)
	if p.SortDuplicatesBy != "" {
		if err := dups.SortStableBy(p.SortDuplicatesBy); err != nil {
			return nil, fmt.Errorf("split_duplicates: sort_duplicates_by: %w", err)
		}
	}
	ctxlog.FromContext(ctx).Info("split_duplicates: partitioned",
		"duplicates", len(dup), "unique", len(uniq))
	return []*dataset.Dataset{dups, d.Take(uniq)}, nil
}

type keyCount struct {
	key string
	n   int
}

// keyCounts counts keys in buckets by hash. Keys that share a hash are told
// apart by comparing the full key.
type keyCounts struct {
	// hash defaults to xxh3.
	hash    func(string) uint64
	buckets map[uint64][]*keyCount
}

func (c *keyCounts) add(key string) *keyCount {
	if c.buckets == nil {
		c.buckets = make(map[uint64][]*keyCount)
	}
	if c.hash == nil {
		c.hash = xxh3.HashString
	}
	h := c.hash(key)
	for _, kc := range c.buckets[h] {
		if kc.key == key {
			kc.n++
			return kc
		}
	}
	kc := &keyCount{key: key, n: 1}
	c.buckets[h] = append(c.buckets[h], kc)
	return kc
}
