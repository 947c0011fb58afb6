package model

// NewORTLoader returns an EngineLoader backed by onnxruntime.
func NewORTLoader(opts ORTOptions) EngineLoader {
	return func(path string) (Engine, error) {
		return NewORTEngine(path, opts)
	}
}

// NewResolver returns a PathResolver over a fixed candidate list.
func NewResolver(dirs []string) PathResolver {
	return func() (Paths, error) {
		return ResolvePaths(dirs)
	}
}
