package main

import (
	"encoding/json"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"

	"github.com/akamensky/argparse"
	log "github.com/sirupsen/logrus"

	"github.com/Brownie44l1/node-detect-api/internal/detect"
	"github.com/Brownie44l1/node-detect-api/internal/model"
	"github.com/Brownie44l1/node-detect-api/internal/pipeline"
)

var Version = "dev"

func main() {
	parser := argparse.NewParser("nodedetect", "Detect tree nodes in a diagram image")
	input := parser.String("i", "input", &argparse.Options{Help: "Input PNG or JPEG file", Required: true})
	cropX := parser.Int("x", "crop-x", &argparse.Options{Help: "Crop left edge, in pixels", Default: 0})
	cropY := parser.Int("y", "crop-y", &argparse.Options{Help: "Crop top edge, in pixels", Default: 0})
	cropW := parser.Int("W", "crop-w", &argparse.Options{Help: "Crop width; 0 means to the right edge", Default: 0})
	cropH := parser.Int("H", "crop-h", &argparse.Options{Help: "Crop height; 0 means to the bottom edge", Default: 0})
	modelDir := parser.String("m", "model-dir", &argparse.Options{Help: "Directory holding model.onnx and model.config.json"})
	ortLib := parser.String("", "ort-lib", &argparse.Options{Help: "Path to the onnxruntime shared library"})
	types := parser.String("t", "types", &argparse.Options{Help: "Comma-separated node types to keep (tip,internal,root)"})
	mode := parser.Selector("", "mode", []string{"model", "tips"}, &argparse.Options{Help: "model: run the network; tips: threshold line-tip detector", Default: "model"})
	verbose := parser.Flag("v", "verbose", &argparse.Options{Help: "Debug logging"})
	if err := parser.Parse(os.Args); err != nil {
		fmt.Print(parser.Usage(err))
		os.Exit(2)
	}

	log.SetOutput(os.Stderr)
	if *verbose {
		log.SetLevel(log.DebugLevel)
	}

	f, err := os.Open(*input)
	if err != nil {
		log.Fatalf("Failed to open input: %v", err)
	}
	img, _, err := image.Decode(f)
	f.Close()
	if err != nil {
		log.Fatalf("Failed to decode input: %v", err)
	}

	crop := pipeline.Crop{X: *cropX, Y: *cropY, W: *cropW, H: *cropH}
	if crop.W == 0 {
		crop.W = img.Bounds().Dx() - crop.X
	}
	if crop.H == 0 {
		crop.H = img.Bounds().Dy() - crop.Y
	}

	var nodes []model.PredictedNode
	switch *mode {
	case "tips":
		nodes, err = detect.Tips(img, crop.X, crop.Y, crop.W, crop.H)
	default:
		nodeTypes, perr := model.ParseNodeTypes(*types)
		if perr != nil {
			log.Fatalf("Invalid --types: %v", perr)
		}
		session := model.NewSession(
			model.NewResolver(model.DefaultCandidates(model.CandidateOptions{
				OverrideDir: *modelDir,
				Dev:         Version == "dev",
			})),
			model.NewORTLoader(model.ORTOptions{SharedLibraryPath: *ortLib}),
		)
		defer session.Close()
		nodes, err = pipeline.NewPredictor(session).PredictImage(img, crop, nodeTypes)
	}
	if err != nil {
		log.Fatalf("Prediction failed: %v", err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(nodes); err != nil {
		log.Fatalf("Failed to write output: %v", err)
	}
}
