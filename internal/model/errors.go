package model

import "errors"

var (
	ErrModelNotFound = errors.New("model not found")
	ErrConfigParse   = errors.New("config parse error")
	ErrModelLoad     = errors.New("model load error")
	ErrInference     = errors.New("inference error")
	ErrShape         = errors.New("unexpected output shape")
)

// ErrNodeType reports a node type name other than tip, internal or root.
var ErrNodeType = errors.New("unknown node type")
