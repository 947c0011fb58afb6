package decode

import "github.com/Brownie44l1/node-detect-api/internal/model"

// Transform records how the crop was scaled before inference.
type Transform struct {
	ResizedW int
	ResizedH int
	ScaleX   float64
	ScaleY   float64
	CropX    int
	CropY    int
}

// ChannelToType maps an output channel to a node type.
func ChannelToType(channel int, cfg model.ModelConfig) model.NodeType {
	switch {
	case cfg.InternalOnly:
		return model.NodeInternal
	case cfg.NoRootPred:
		if channel == 0 {
			return model.NodeTip
		}
		return model.NodeInternal
	default:
		switch channel {
		case 0:
			return model.NodeTip
		case 1:
			return model.NodeInternal
		default:
			return model.NodeRoot
		}
	}
}

// MapToImageSpace converts grid peaks to typed nodes in source-image pixels.
// Peaks outside the resized region are dropped. Models trained without a root
// class get the leftmost node relabelled as root when the config asks for it.
func MapToImageSpace(peaks []Peak, cfg model.ModelConfig, t Transform) []model.PredictedNode {
	nodes := make([]model.PredictedNode, 0, len(peaks))
	for _, p := range peaks {
		if p.X < 0 || p.Y < 0 || p.X >= t.ResizedW || p.Y >= t.ResizedH {
			continue
		}
		nodes = append(nodes, model.PredictedNode{
			X:        float64(p.X)/t.ScaleX + float64(t.CropX),
			Y:        float64(p.Y)/t.ScaleY + float64(t.CropY),
			NodeType: ChannelToType(p.Channel, cfg),
			Score:    p.Score,
		})
	}

	if cfg.NoRootPred && cfg.Decode.AssignRootLeftmostWhenTwoClasses && len(nodes) > 1 {
		left := 0
		for i := 1; i < len(nodes); i++ {
			if nodes[i].X < nodes[left].X {
				left = i
			}
		}
		nodes[left].NodeType = model.NodeRoot
	}

	return nodes
}

// FilterTypes keeps the nodes whose type is in types, preserving order. An
// empty types list keeps everything.
func FilterTypes(nodes []model.PredictedNode, types []model.NodeType) []model.PredictedNode {
	if len(types) == 0 {
		return nodes
	}
	keep := make(map[model.NodeType]bool, len(types))
	for _, t := range types {
		keep[t] = true
	}
	out := nodes[:0]
	for _, n := range nodes {
		if keep[n.NodeType] {
			out = append(out, n)
		}
	}
	return out
}
