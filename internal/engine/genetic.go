package engine

import (
	"context"
	"math/rand"
	"sort"

	"github.com/piwi3910/platenest/internal/geometry"
	"github.com/piwi3910/platenest/internal/model"
)

// GeneticConfig holds parameters for the genetic rotation search.
type GeneticConfig struct {
	PopulationSize int
	Generations    int
	MutationRate   float64
	TournamentSize int
	EliteCount     int
}

// DefaultGeneticConfig returns sensible default parameters.
func DefaultGeneticConfig() GeneticConfig {
	return GeneticConfig{
		PopulationSize: 24,
		Generations:    40,
		MutationRate:   0.2,
		TournamentSize: 3,
		EliteCount:     2,
	}
}

// fitness of a decoded layout; fewer unplaced items, then fewer beds, then
// a smaller total pile area is better.
type fitness struct {
	unplaced int
	beds     int
	area     float64
}

func (f fitness) better(o fitness) bool {
	if f.unplaced != o.unplaced {
		return f.unplaced < o.unplaced
	}
	if f.beds != o.beds {
		return f.beds < o.beds
	}
	return f.area < o.area
}

// chromosome holds one preferred rotation index per item; -1 leaves the
// choice to the greedy placer.
type chromosome struct {
	genes   []int
	fitness fitness
}

// rotationSearch evolves per-item rotation choices. Each chromosome is
// decoded by the greedy placer on a private copy of the items.
type rotationSearch struct {
	arranger  *Arranger
	items     []model.ArrangePolygon
	fixed     []model.ArrangePolygon
	bed       geometry.Polygon
	order     []int
	rotations [][]rotationCandidate
	config    GeneticConfig
	rng       *rand.Rand
}

func newRotationSearch(a *Arranger, items, fixed []model.ArrangePolygon, bed geometry.Polygon, order []int, rotations [][]rotationCandidate, seed int64) *rotationSearch {
	config := a.Params.Genetic
	// Scale generations for larger problems
	if len(items) > 20 {
		config.Generations = config.Generations * 3 / 2
	}
	return &rotationSearch{
		arranger:  a,
		items:     items,
		fixed:     fixed,
		bed:       bed,
		order:     order,
		rotations: rotations,
		config:    config,
		rng:       rand.New(rand.NewSource(seed)),
	}
}

// run returns the best rotation preference found before the generations
// run out or ctx is cancelled.
func (s *rotationSearch) run(ctx context.Context) []int {
	choices := false
	for _, r := range s.rotations {
		if len(r) > 1 {
			choices = true
			break
		}
	}
	if !choices || s.config.PopulationSize < 1 || ctx.Err() != nil {
		return nil
	}

	population := s.initPopulation()
	for i := range population {
		population[i].fitness = s.evaluate(population[i])
	}

	for gen := 0; gen < s.config.Generations; gen++ {
		if ctx.Err() != nil {
			break
		}
		s.sortPopulation(population)

		newPop := make([]chromosome, 0, s.config.PopulationSize)

		// Elitism: carry over the best individuals unchanged
		eliteCount := min(s.config.EliteCount, len(population))
		for i := 0; i < eliteCount; i++ {
			newPop = append(newPop, copyChromosome(population[i]))
		}

		for len(newPop) < s.config.PopulationSize {
			parent1 := s.tournamentSelect(population)
			parent2 := s.tournamentSelect(population)
			child := s.uniformCrossover(parent1, parent2)
			s.mutate(&child)
			child.fitness = s.evaluate(child)
			newPop = append(newPop, child)
		}
		population = newPop
	}

	s.sortPopulation(population)
	return population[0].genes
}

// initPopulation seeds one chromosome with the plain greedy choice and
// fills the rest randomly.
func (s *rotationSearch) initPopulation() []chromosome {
	population := make([]chromosome, s.config.PopulationSize)
	for i := range population {
		genes := make([]int, len(s.items))
		for j := range genes {
			if i == 0 {
				genes[j] = -1
			} else {
				genes[j] = s.randomGene(j)
			}
		}
		population[i] = chromosome{genes: genes}
	}
	return population
}

func (s *rotationSearch) randomGene(item int) int {
	return s.rng.Intn(len(s.rotations[item])+1) - 1
}

// evaluate decodes a chromosome on a copy of the items.
func (s *rotationSearch) evaluate(c chromosome) fitness {
	items := make([]model.ArrangePolygon, len(s.items))
	copy(items, s.items)

	l := s.arranger.newLayout(s.bed, s.fixed)
	l.place(context.Background(), items, s.order, s.rotations, c.genes, nil)

	f := fitness{}
	for _, it := range items {
		if !it.Arranged {
			f.unplaced++
		}
	}
	f.beds, f.area = l.usage()
	return f
}

func (s *rotationSearch) sortPopulation(population []chromosome) {
	sort.SliceStable(population, func(i, j int) bool {
		return population[i].fitness.better(population[j].fitness)
	})
}

// tournamentSelect picks the best individual from a random tournament.
func (s *rotationSearch) tournamentSelect(population []chromosome) chromosome {
	best := population[s.rng.Intn(len(population))]
	for i := 1; i < s.config.TournamentSize; i++ {
		candidate := population[s.rng.Intn(len(population))]
		if candidate.fitness.better(best.fitness) {
			best = candidate
		}
	}
	return copyChromosome(best)
}

// uniformCrossover takes each gene from either parent with equal chance.
func (s *rotationSearch) uniformCrossover(parent1, parent2 chromosome) chromosome {
	child := chromosome{genes: make([]int, len(parent1.genes))}
	for i := range child.genes {
		if s.rng.Intn(2) == 0 {
			child.genes[i] = parent1.genes[i]
		} else {
			child.genes[i] = parent2.genes[i]
		}
	}
	return child
}

// mutate reassigns the rotation of random genes.
func (s *rotationSearch) mutate(c *chromosome) {
	for i := range c.genes {
		if len(s.rotations[i]) > 1 && s.rng.Float64() < s.config.MutationRate {
			c.genes[i] = s.randomGene(i)
		}
	}
}

// copyChromosome creates a deep copy of a chromosome.
func copyChromosome(c chromosome) chromosome {
	genes := make([]int, len(c.genes))
	copy(genes, c.genes)
	return chromosome{genes: genes, fitness: c.fitness}
}
