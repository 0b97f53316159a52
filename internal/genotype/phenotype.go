package genotype

import (
	"lamarck/internal/model"
)

// Hinge is one actuated joint of a developed body.
type Hinge struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Phenotype is the simulate-able form of a genome: the body layout and one
// controller weight per hinge, in hinge order.
type Phenotype struct {
	Modules []model.ModuleGene
	Hinges  []Hinge
	Params  []float64
}

// Hinges lists the actuated modules of a body in module order.
func Hinges(body model.BodyGenome) []Hinge {
	hinges := make([]Hinge, 0, len(body.Modules))
	for _, gene := range body.Modules {
		if gene.Kind == model.ModuleHinge {
			hinges = append(hinges, Hinge{X: gene.X, Y: gene.Y})
		}
	}
	return hinges
}

// Develop builds the phenotype. A hinge outside the brain grid is a fatal
// body/brain mismatch and is reported as ErrGridIndexOutOfRange.
func Develop(g model.Genome) (Phenotype, error) {
	hinges := Hinges(g.Body)
	params, err := ControllerParams(g.Brain, hinges)
	if err != nil {
		return Phenotype{}, err
	}
	return Phenotype{
		Modules: append([]model.ModuleGene(nil), g.Body.Modules...),
		Hinges:  hinges,
		Params:  params,
	}, nil
}
