package model

import "fmt"

// TreeNode is one node of a flattened binary decision tree. Internal nodes
// route on Feature <= Threshold; leaves have Feature == -1 and carry Value.
type TreeNode struct {
	Feature   int     `json:"feature"`
	Threshold float64 `json:"threshold"`
	Left      int     `json:"left"`
	Right     int     `json:"right"`
	Value     float64 `json:"value"`
}

// Tree is a flattened decision tree, root at index 0.
type Tree struct {
	Nodes []TreeNode `json:"nodes"`
}

// GBDTParams are the trained parameters of a gradient-boosted tree ensemble.
// The raw score is BaseScore plus every tree's leaf value, squashed through
// a sigmoid.
type GBDTParams struct {
	Trees     []Tree  `json:"trees"`
	BaseScore float64 `json:"base_score"`
}

type gbdt struct {
	trees []Tree
	base  float64
}

func newGBDT(p *GBDTParams, numFeatures int) (*gbdt, error) {
	if len(p.Trees) == 0 {
		return nil, fmt.Errorf("gbdt model has no trees")
	}
	for ti, tree := range p.Trees {
		if len(tree.Nodes) == 0 {
			return nil, fmt.Errorf("gbdt tree %d is empty", ti)
		}
		for ni, n := range tree.Nodes {
			if n.Feature < 0 {
				continue // leaf
			}
			if n.Feature >= numFeatures {
				return nil, fmt.Errorf("gbdt tree %d node %d splits on feature %d, model has %d",
					ti, ni, n.Feature, numFeatures)
			}
			// Flattened trees are topologically ordered: children always
			// come after their parent, which also rules out cycles.
			if n.Left <= ni || n.Left >= len(tree.Nodes) || n.Right <= ni || n.Right >= len(tree.Nodes) {
				return nil, fmt.Errorf("gbdt tree %d node %d has out-of-range children", ti, ni)
			}
		}
	}
	return &gbdt{trees: p.Trees, base: p.BaseScore}, nil
}

func (m *gbdt) predictProba(v []float64) float64 {
	z := m.base
	for i := range m.trees {
		z += m.trees[i].eval(v)
	}
	return sigmoid(z)
}

// contributions is unsupported for tree ensembles; callers degrade to an
// empty explanation while keeping the score.
func (m *gbdt) contributions([]float64) ([]float64, error) {
	return nil, ErrNoAttribution
}

func (t *Tree) eval(v []float64) float64 {
	i := 0
	for {
		n := t.Nodes[i]
		if n.Feature < 0 {
			return n.Value
		}
		if v[n.Feature] <= n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
	}
}
