package genotype

import "lamarck/internal/model"

func CloneGenome(g model.Genome) model.Genome {
	out := g
	out.Body = CloneBody(g.Body)
	out.Brain = CloneBrain(g.Brain)
	return out
}

func CloneBody(b model.BodyGenome) model.BodyGenome {
	return model.BodyGenome{Modules: append([]model.ModuleGene(nil), b.Modules...)}
}

func CloneBrain(b model.BrainGenome) model.BrainGenome {
	return model.BrainGenome{
		Weights:  append([]float64(nil), b.Weights...),
		GridSize: b.GridSize,
	}
}
