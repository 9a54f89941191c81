package chunk

import "sort"

// Per-file priority scores. Tests are the cheapest to accept (the guard
// exempts them), docs and config next; plain source carries rejection risk
// under a strict guard; generated files are near-worthless to refactor.
const (
	scoreTest         = 100
	scoreDocConfig    = 80
	scoreSource       = 60
	scoreSourceStrict = 40
	scoreOther        = 50
	scoreGenerated    = 10
)

// Score assigns a chunk the maximum per-file score across its files.
func Score(c *Chunk, strictGuard bool) int {
	best := 0
	for _, f := range c.Files {
		s := fileScore(f, strictGuard)
		if s > best {
			best = s
		}
	}
	return best
}

func fileScore(path string, strictGuard bool) int {
	switch Classify(path) {
	case KindTest:
		return scoreTest
	case KindDocConfig:
		return scoreDocConfig
	case KindSource:
		if strictGuard {
			return scoreSourceStrict
		}
		return scoreSource
	case KindGenerated:
		return scoreGenerated
	default:
		return scoreOther
	}
}

// Prioritize returns the chunks sorted by descending score, ties broken by
// ascending diff size so cheaper requests go first. The input slice is not
// modified; truncating to a run budget is the caller's job.
func Prioritize(chunks []*Chunk, strictGuard bool) []*Chunk {
	ordered := make([]*Chunk, len(chunks))
	copy(ordered, chunks)
	sort.SliceStable(ordered, func(i, j int) bool {
		si, sj := Score(ordered[i], strictGuard), Score(ordered[j], strictGuard)
		if si != sj {
			return si > sj
		}
		return len(ordered[i].Diff) < len(ordered[j].Diff)
	})
	return ordered
}
