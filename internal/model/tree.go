package model

import (
	"context"
	"fmt"
	"slices"
)

// Tree is a decision tree over a flat node array.
type Tree struct {
	nodes []Node
}

// NewTree validates nodes against nFeatures and builds a tree.
func NewTree(nodes []Node, nFeatures int) (*Tree, error) {
	if len(nodes) == 0 {
		return nil, fmt.Errorf("%w: tree has no nodes", ErrInvalidArtifact)
	}

	for i, n := range nodes {
		if n.Leaf {
			continue
		}
		if n.Feature < 0 || (nFeatures > 0 && n.Feature >= nFeatures) {
			return nil, fmt.Errorf("%w: node %d splits on feature %d outside [0, %d)", ErrInvalidArtifact, i, n.Feature, nFeatures)
		}
		for _, child := range []int{n.Left, n.Right} {
			if child <= i || child >= len(nodes) {
				return nil, fmt.Errorf("%w: node %d has invalid child %d", ErrInvalidArtifact, i, child)
			}
		}
	}

	return &Tree{nodes: nodes}, nil
}

// Eval walks the tree for a single row and returns the leaf value.
func (t *Tree) Eval(row []float64) float64 {
	idx := 0
	for {
		node := t.nodes[idx]
		if node.Leaf {
			return node.Value
		}
		if row[node.Feature] <= node.Threshold {
			idx = node.Left
		} else {
			idx = node.Right
		}
	}
}

// Forest is an ensemble of trees. A single tree is a forest of one.
type Forest struct {
	trees     []*Tree
	format    string
	task      Task
	classes   []float64
	nFeatures int
}

// NewForest builds a forest from tree specs.
func NewForest(format string, task Task, nFeatures int, classes []float64, specs []TreeSpec) (*Forest, error) {
	if nFeatures <= 0 {
		return nil, fmt.Errorf("%w: n_features is required", ErrInvalidArtifact)
	}
	if len(specs) == 0 {
		return nil, fmt.Errorf("%w: forest has no trees", ErrInvalidArtifact)
	}
	if task == "" {
		task = TaskClassification
	}

	trees := make([]*Tree, 0, len(specs))
	for i, spec := range specs {
		tree, err := NewTree(spec.Nodes, nFeatures)
		if err != nil {
			return nil, fmt.Errorf("tree %d: %w", i, err)
		}
		trees = append(trees, tree)
	}

	return &Forest{
		trees:     trees,
		format:    format,
		task:      task,
		classes:   classes,
		nFeatures: nFeatures,
	}, nil
}

// Predict implements Predictor.
func (f *Forest) Predict(ctx context.Context, x Matrix) ([]float64, error) {
	if err := CheckFeatures(x, f.nFeatures); err != nil {
		return nil, err
	}

	out := make([]float64, len(x))
	votes := make([]float64, len(f.trees))
	for i, row := range x {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		for j, tree := range f.trees {
			votes[j] = tree.Eval(row)
		}

		if f.task == TaskRegression {
			out[i] = mean(votes)
		} else {
			out[i] = majority(votes)
		}
	}

	return out, nil
}

// Info implements Predictor.
func (f *Forest) Info() Info {
	return Info{
		Format:   f.format,
		Task:     f.task,
		Features: f.nFeatures,
		Classes:  len(f.classes),
	}
}

func mean(values []float64) float64 {
	var total float64
	for _, v := range values {
		total += v
	}
	return total / float64(len(values))
}

// majority returns the most common value. Ties go to the smallest value.
func majority(values []float64) float64 {
	counts := make(map[float64]int, len(values))
	for _, v := range values {
		counts[v]++
	}

	labels := make([]float64, 0, len(counts))
	for label := range counts {
		labels = append(labels, label)
	}
	slices.Sort(labels)

	best := labels[0]
	for _, label := range labels[1:] {
		if counts[label] > counts[best] {
			best = label
		}
	}

	return best
}
