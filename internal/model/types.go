package model

import (
	"fmt"
	"strings"
)

// NodeType labels a detected keypoint.
type NodeType string

const (
	NodeTip      NodeType = "tip"
	NodeInternal NodeType = "internal"
	NodeRoot     NodeType = "root"
)

func (t NodeType) Valid() bool {
	switch t {
	case NodeTip, NodeInternal, NodeRoot:
		return true
	}
	return false
}

// CheckNodeTypes fails on the first name that is not a known NodeType.
func CheckNodeTypes(types []NodeType) error {
	for _, t := range types {
		if !t.Valid() {
			return fmt.Errorf("%w: %q (want tip, internal or root)", ErrNodeType, t)
		}
	}
	return nil
}

// ParseNodeTypes splits a comma-separated list such as "internal,root".
// Blank entries are skipped; an empty string yields nil.
func ParseNodeTypes(s string) ([]NodeType, error) {
	var types []NodeType
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			types = append(types, NodeType(part))
		}
	}
	if err := CheckNodeTypes(types); err != nil {
		return nil, err
	}
	return types, nil
}

// DecodeConfig controls how the logit grid is turned into peaks.
// Counts of 0 mean unlimited (or disabled for FallbackTopK).
type DecodeConfig struct {
	Thresh                           float32 `json:"thresh"`
	Window                           int     `json:"window"`
	PerChannelTopK                   int     `json:"per_channel_topk"`
	MaxPeaks                         int     `json:"max_peaks"`
	FallbackTopK                     int     `json:"fallback_topk"`
	AssignRootLeftmostWhenTwoClasses bool    `json:"assign_root_leftmost_when_two_classes"`
}

// ModelConfig is the companion document shipped next to the model binary.
type ModelConfig struct {
	Backbone       string       `json:"backbone"`
	InChannels     int          `json:"in_channels"`
	InternalOnly   bool         `json:"internal_only"`
	NoRootPred     bool         `json:"no_root_pred"`
	NormalizeInput bool         `json:"normalize_input"`
	MaxSide        int          `json:"max_side"`
	PadMultiple    int          `json:"pad_multiple"`
	ResizeFilter   string       `json:"resize_filter,omitempty"`
	Decode         DecodeConfig `json:"decode"`
}

// PredictedNode is a detection in original-image pixel space.
type PredictedNode struct {
	X        float64  `json:"x"`
	Y        float64  `json:"y"`
	NodeType NodeType `json:"node_type"`
	Score    float32  `json:"score"`
}

// Tensor is a dense float32 buffer with an NCHW shape.
type Tensor struct {
	Shape []int64
	Data  []float32
}

// Size returns the element count implied by the shape.
func (t Tensor) Size() int64 {
	if len(t.Shape) == 0 {
		return 0
	}
	n := int64(1)
	for _, d := range t.Shape {
		n *= d
	}
	return n
}
