// Package pipeline wires preprocessing, inference and peak decoding into one
// synchronous call, and offers a worker pool for callers that must not block.
package pipeline

import (
	"fmt"
	"image"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/Brownie44l1/node-detect-api/internal/decode"
	"github.com/Brownie44l1/node-detect-api/internal/model"
	"github.com/Brownie44l1/node-detect-api/internal/preprocess"
)

// InternalTypes is the filter used by the internal-node tool.
var InternalTypes = []model.NodeType{model.NodeInternal, model.NodeRoot}

// Crop is a rectangle in source-image pixels.
type Crop struct {
	X int `json:"crop_x"`
	Y int `json:"crop_y"`
	W int `json:"crop_w"`
	H int `json:"crop_h"`
}

// Request is one detection call.
type Request struct {
	// Image is a base64 PNG, optionally with a data-URL prefix.
	Image string           `json:"image"`
	Types []model.NodeType `json:"types,omitempty"`
	Crop
}

// Runner is the part of model.Session the pipeline needs.
type Runner interface {
	Config() (model.ModelConfig, error)
	Run(model.Tensor) (model.Tensor, error)
}

type Predictor struct {
	session Runner
}

func NewPredictor(session Runner) *Predictor {
	return &Predictor{session: session}
}

// Predict decodes req.Image and runs PredictImage on it.
func (p *Predictor) Predict(req Request) ([]model.PredictedNode, error) {
	if req.W <= 0 || req.H <= 0 {
		return nil, fmt.Errorf("%w: crop dimensions must be greater than zero", preprocess.ErrInvalidCrop)
	}
	if err := model.CheckNodeTypes(req.Types); err != nil {
		return nil, err
	}

	img, err := preprocess.DecodeImage(req.Image)
	if err != nil {
		return nil, err
	}
	return p.PredictImage(img, req.Crop, req.Types)
}

// PredictImage runs the full pipeline on an already decoded image and returns
// the nodes whose type is in types (all nodes when types is empty), ordered by
// descending score.
func (p *Predictor) PredictImage(img image.Image, crop Crop, types []model.NodeType) ([]model.PredictedNode, error) {
	if crop.W <= 0 || crop.H <= 0 {
		return nil, fmt.Errorf("%w: crop dimensions must be greater than zero", preprocess.ErrInvalidCrop)
	}
	if err := model.CheckNodeTypes(types); err != nil {
		return nil, err
	}

	start := time.Now()

	cfg, err := p.session.Config()
	if err != nil {
		return nil, err
	}

	cropped, err := preprocess.Crop(img, crop.X, crop.Y, crop.W, crop.H)
	if err != nil {
		return nil, err
	}

	resized, sx, sy := preprocess.ResizeKeepAspect(cropped, cfg.MaxSide, preprocess.NewResampler(cfg.ResizeFilter))
	resizedW, resizedH := resized.Bounds().Dx(), resized.Bounds().Dy()

	padded, padW, padH := preprocess.PadToMultiple(resized, cfg.PadMultiple)

	tensor, err := preprocess.ToTensor(padded, cfg.InChannels)
	if err != nil {
		return nil, err
	}

	out, err := p.session.Run(tensor)
	if err != nil {
		return nil, err
	}

	peaks := decode.DecodePeaks(decode.GridFromTensor(out), resizedW, resizedH, cfg.Decode)
	nodes := decode.MapToImageSpace(peaks, cfg, decode.Transform{
		ResizedW: resizedW,
		ResizedH: resizedH,
		ScaleX:   sx,
		ScaleY:   sy,
		CropX:    crop.X,
		CropY:    crop.Y,
	})
	nodes = decode.FilterTypes(nodes, types)

	log.WithFields(log.Fields{
		"crop":    fmt.Sprintf("%d,%d %dx%d", crop.X, crop.Y, crop.W, crop.H),
		"resized": fmt.Sprintf("%dx%d", resizedW, resizedH),
		"pad":     fmt.Sprintf("%d,%d", padW, padH),
		"peaks":   len(peaks),
		"nodes":   len(nodes),
		"elapsed": time.Since(start),
	}).Debug("Prediction complete")

	return nodes, nil
}
