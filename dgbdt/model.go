package dgbdt

import (
	"encoding/json"
	"errors"
	"math"
	"sort"

	"github.com/ippan/core/fixedpoint"
	"github.com/zeebo/blake3"
)

// Node is one decision node in a tree, matching §3's GBDT model layout.
// Leaf nodes have LeftChild == RightChild == -1 and carry LeafValue.
type Node struct {
	FeatureIndex int    `json:"feature_index"`
	Threshold    int64  `json:"threshold"`
	LeftChild    int    `json:"left_child"`
	RightChild   int    `json:"right_child"`
	LeafValue    int32  `json:"leaf_value"`
}

func (n Node) isLeaf() bool { return n.LeftChild < 0 && n.RightChild < 0 }

// Tree is a flat array of nodes, root at index 0.
type Tree []Node

// infer traverses the tree from the root: descend left if feature[idx] <=
// threshold, else right. Returns the reached leaf's value.
func (t Tree) infer(features [NumFeatures]int64) int32 {
	idx := 0
	for {
		if idx < 0 || idx >= len(t) {
			return 0
		}
		node := t[idx]
		if node.isLeaf() {
			return node.LeafValue
		}
		if features[node.FeatureIndex] <= node.Threshold {
			idx = node.LeftChild
		} else {
			idx = node.RightChild
		}
	}
}

// Model is the pre-trained, content-addressed GBDT model §4.6 scores
// validators with. Model bytes are canonical JSON (lexicographically
// sorted keys, no whitespace variance); Hash is BLAKE3 over those bytes
// and is the sole on-chain identity for the model.
type Model struct {
	Bias        int32  `json:"bias"`
	OutputScale int32  `json:"output_scale"`
	Version     uint32 `json:"version"`
	Trees       []Tree `json:"trees"`
}

// ErrModelHashMismatch indicates the supplied bytes do not hash to the
// claimed model hash and must not be used to score validators.
var ErrModelHashMismatch = errors.New("dgbdt: model hash mismatch")

// ModelHash returns the BLAKE3 content hash of the model's canonical
// JSON encoding.
func ModelHash(raw []byte) [32]byte {
	return blake3.Sum256(raw)
}

// LoadModel decodes raw canonical JSON bytes into a Model and verifies
// them against wantHash, refusing to return a model that does not match.
func LoadModel(raw []byte, wantHash [32]byte) (*Model, error) {
	if ModelHash(raw) != wantHash {
		return nil, ErrModelHashMismatch
	}
	var m Model
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// Score computes bias + sum(tree outputs) for the given feature vector.
// All arithmetic is integer, per §4.6's no-math-library-calls rule; the
// accumulation runs through fixedpoint.Sum so a corrupt model with an
// implausible tree count cannot silently wrap an int64 score.
func (m *Model) Score(features [NumFeatures]int64) int64 {
	outputs := make([]int64, 0, len(m.Trees)+1)
	outputs = append(outputs, int64(m.Bias))
	for _, tree := range m.Trees {
		outputs = append(outputs, int64(tree.infer(features)))
	}
	score, err := fixedpoint.Sum(outputs...)
	if err != nil {
		if m.Bias < 0 {
			return math.MinInt64
		}
		return math.MaxInt64
	}
	return score
}

// Weight derivation bounds from §4.6.
const (
	WeightOffset = 0
	MinWeight    = 1
	MaxWeight    = 1_000_000
)

// WeightFromScore clamps score+OFFSET into [MinWeight, MaxWeight].
func WeightFromScore(score int64) int64 {
	w := score + WeightOffset
	if w < MinWeight {
		return MinWeight
	}
	if w > MaxWeight {
		return MaxWeight
	}
	return w
}

// Ranked is one validator's canonical-ranking entry: its weight and a
// stable identity for the (weight desc, id asc) sort.
type Ranked struct {
	ID     [32]byte
	Weight int64
}

// Rank sorts entries by (weight desc, id asc), the canonical ranking
// step 2 of §4.6 produces before weighted sampling.
func Rank(entries []Ranked) {
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Weight != entries[j].Weight {
			return entries[i].Weight > entries[j].Weight
		}
		return lessID(entries[i].ID, entries[j].ID)
	})
}

func lessID(a, b [32]byte) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}
