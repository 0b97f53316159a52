package genotype

import (
	"math/rand/v2"
	"sort"

	"lamarck/internal/model"
)

type cell struct{ x, y int }

var neighborOffsets = [...]cell{{1, 0}, {-1, 0}, {0, 1}, {0, -1}}

// MutateBody applies one structural change: add a module next to the body,
// remove a module (pruning anything it disconnected), or toggle a module kind.
func MutateBody(rng *rand.Rand, body model.BodyGenome, registry *InnovationRegistry, gridSize int) model.BodyGenome {
	out := CloneBody(body)
	op := 0
	if len(out.Modules) > 0 {
		op = rng.IntN(3)
	}
	switch op {
	case 0:
		kind := model.ModuleHinge
		if rng.IntN(2) == 1 {
			kind = model.ModuleBrick
		}
		out = addModule(rng, out, registry, gridSize, kind)
	case 1:
		idx := rng.IntN(len(out.Modules))
		out.Modules = append(out.Modules[:idx], out.Modules[idx+1:]...)
		out = pruneDisconnected(out)
	default:
		idx := rng.IntN(len(out.Modules))
		gene := out.Modules[idx]
		if gene.Kind == model.ModuleHinge {
			gene.Kind = model.ModuleBrick
		} else {
			gene.Kind = model.ModuleHinge
		}
		gene.Innovation = registry.Innovation(gene.X, gene.Y, gene.Kind)
		out.Modules[idx] = gene
	}
	sortModules(out.Modules)
	return out
}

// GrowBody adds n modules next to the body without ever removing one. The
// first module of an empty body is always a hinge.
func GrowBody(rng *rand.Rand, body model.BodyGenome, registry *InnovationRegistry, gridSize, n int) model.BodyGenome {
	out := CloneBody(body)
	for i := 0; i < n; i++ {
		kind := model.ModuleHinge
		if len(Hinges(out)) > 0 && rng.IntN(2) == 1 {
			kind = model.ModuleBrick
		}
		out = addModule(rng, out, registry, gridSize, kind)
	}
	sortModules(out.Modules)
	return out
}

// addModule places a module of kind on a random free cell adjacent to the
// body. A body with no free neighbor cell is returned unchanged.
func addModule(rng *rand.Rand, body model.BodyGenome, registry *InnovationRegistry, gridSize int, kind string) model.BodyGenome {
	at, err := RandomElement(rng, freeNeighborCells(body, gridSize))
	if err != nil {
		return body
	}
	body.Modules = append(body.Modules, model.ModuleGene{
		Innovation: registry.Innovation(at.x, at.y, kind),
		X:          at.x,
		Y:          at.y,
		Kind:       kind,
	})
	return body
}

// CrossoverBody keeps every gene of the primary parent and inherits each gene
// unique to the other parents with probability 0.5. Genes are aligned by
// innovation; a cell already taken keeps its first gene.
func CrossoverBody(rng *rand.Rand, parents []model.BodyGenome) model.BodyGenome {
	if len(parents) == 0 {
		return model.BodyGenome{}
	}
	out := CloneBody(parents[0])
	known := make(map[int64]struct{}, len(out.Modules))
	for _, gene := range out.Modules {
		known[gene.Innovation] = struct{}{}
	}
	for _, other := range parents[1:] {
		for _, gene := range other.Modules {
			if _, ok := known[gene.Innovation]; ok {
				continue
			}
			if rng.Float64() < 0.5 {
				out.Modules = append(out.Modules, gene)
				known[gene.Innovation] = struct{}{}
			}
		}
	}
	out = dedupeCells(out)
	out = pruneDisconnected(out)
	sortModules(out.Modules)
	return out
}

func occupied(body model.BodyGenome) map[cell]struct{} {
	cells := make(map[cell]struct{}, len(body.Modules)+1)
	cells[cell{}] = struct{}{}
	for _, gene := range body.Modules {
		cells[cell{gene.X, gene.Y}] = struct{}{}
	}
	return cells
}

func freeNeighborCells(body model.BodyGenome, gridSize int) []cell {
	taken := occupied(body)
	seen := make(map[cell]struct{})
	free := make([]cell, 0, 4*len(taken))
	for c := range taken {
		for _, off := range neighborOffsets {
			next := cell{c.x + off.x, c.y + off.y}
			if _, ok := taken[next]; ok {
				continue
			}
			if _, ok := seen[next]; ok {
				continue
			}
			if !InGrid(next.x, next.y, gridSize) {
				continue
			}
			seen[next] = struct{}{}
			free = append(free, next)
		}
	}
	sort.Slice(free, func(i, j int) bool {
		if free[i].y != free[j].y {
			return free[i].y < free[j].y
		}
		return free[i].x < free[j].x
	})
	return free
}

func dedupeCells(body model.BodyGenome) model.BodyGenome {
	taken := map[cell]struct{}{{}: {}}
	kept := body.Modules[:0]
	for _, gene := range body.Modules {
		c := cell{gene.X, gene.Y}
		if _, ok := taken[c]; ok {
			continue
		}
		taken[c] = struct{}{}
		kept = append(kept, gene)
	}
	body.Modules = kept
	return body
}

// pruneDisconnected drops modules no longer reachable from the core.
func pruneDisconnected(body model.BodyGenome) model.BodyGenome {
	byCell := make(map[cell]int, len(body.Modules))
	for i, gene := range body.Modules {
		byCell[cell{gene.X, gene.Y}] = i
	}
	reached := make(map[int]struct{}, len(body.Modules))
	queue := []cell{{}}
	for len(queue) > 0 {
		c := queue[0]
		queue = queue[1:]
		for _, off := range neighborOffsets {
			next := cell{c.x + off.x, c.y + off.y}
			idx, ok := byCell[next]
			if !ok {
				continue
			}
			if _, done := reached[idx]; done {
				continue
			}
			reached[idx] = struct{}{}
			queue = append(queue, next)
		}
	}
	kept := make([]model.ModuleGene, 0, len(reached))
	for i, gene := range body.Modules {
		if _, ok := reached[i]; ok {
			kept = append(kept, gene)
		}
	}
	body.Modules = kept
	return body
}

func sortModules(modules []model.ModuleGene) {
	sort.SliceStable(modules, func(i, j int) bool { return modules[i].Innovation < modules[j].Innovation })
}
