package model

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	ModelDirName  = "model"
	ModelFileName = "model.onnx"
)

// Paths locates a model binary and its companion config.
type Paths struct {
	Model  string
	Config string
}

// CandidateOptions tunes DefaultCandidates.
type CandidateOptions struct {
	// OverrideDir is searched first when set.
	OverrideDir string
	// Dev adds the source-tree layouts used when running from cmd/<name>.
	Dev bool
}

// ConfigPathFor returns the sibling config path for a model file:
// model.onnx -> model.config.json.
func ConfigPathFor(modelPath string) string {
	base := strings.TrimSuffix(filepath.Base(modelPath), filepath.Ext(modelPath))
	return filepath.Join(filepath.Dir(modelPath), base+".config.json")
}

// DefaultCandidates lists the directories searched for the model, in order.
func DefaultCandidates(opts CandidateOptions) []string {
	var dirs []string
	if opts.OverrideDir != "" {
		dirs = append(dirs, opts.OverrideDir)
	}

	if exe, err := os.Executable(); err == nil {
		dirs = append(dirs, filepath.Join(filepath.Dir(exe), ModelDirName))
	}

	if cwd, err := os.Getwd(); err == nil {
		dirs = append(dirs, filepath.Join(cwd, ModelDirName))
		if opts.Dev {
			// go run ./cmd/server from the repo root, or from inside cmd/server
			dirs = append(dirs,
				filepath.Join(cwd, "..", "..", ModelDirName),
				filepath.Join(filepath.Dir(cwd), ModelDirName),
			)
		}
	}

	return dirs
}

// ResolvePaths returns the first directory holding both model.onnx and its
// config.
func ResolvePaths(dirs []string) (Paths, error) {
	for _, dir := range dirs {
		modelPath := filepath.Join(dir, ModelFileName)
		cfgPath := ConfigPathFor(modelPath)
		if isFile(modelPath) && isFile(cfgPath) {
			return Paths{Model: modelPath, Config: cfgPath}, nil
		}
	}
	return Paths{}, fmt.Errorf("%w: expected %s and %s in one of %v",
		ErrModelNotFound, ModelFileName, ConfigPathFor(ModelFileName), dirs)
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
