package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"net/http"
	"strconv"

	log "github.com/sirupsen/logrus"

	"github.com/Brownie44l1/node-detect-api/internal/detect"
	"github.com/Brownie44l1/node-detect-api/internal/model"
	"github.com/Brownie44l1/node-detect-api/internal/pipeline"
	"github.com/Brownie44l1/node-detect-api/internal/preprocess"
)

// maxUploadBytes bounds multipart uploads on /predict/image.
const maxUploadBytes = 32 << 20

type Handler struct {
	predictor *pipeline.Predictor
	pool      *pipeline.Pool
	session   *model.Session
	maxBody   int64
}

func NewHandler(session *model.Session, predictor *pipeline.Predictor, pool *pipeline.Pool, maxBody int64) *Handler {
	if maxBody <= 0 {
		maxBody = maxUploadBytes
	}
	return &Handler{
		predictor: predictor,
		pool:      pool,
		session:   session,
		maxBody:   maxBody,
	}
}

// Routes registers every endpoint on mux.
func (h *Handler) Routes(mux *http.ServeMux) {
	mux.HandleFunc("/health", h.Health)
	mux.HandleFunc("/predict", h.Predict)
	mux.HandleFunc("/predict/internal", h.PredictInternal)
	mux.HandleFunc("/predict/image", h.PredictFromImage)
	mux.HandleFunc("/detect/tips", h.DetectTips)
	mux.HandleFunc("/ws", h.WebSocket)
}

type nodesResponse struct {
	Nodes []model.PredictedNode `json:"nodes"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":       "healthy",
		"model_loaded": h.session.Ready(),
	})
}

func (h *Handler) Predict(w http.ResponseWriter, r *http.Request) {
	h.predictJSON(w, r, nil)
}

// PredictInternal serves the internal-node tool, which only wants internal
// and root nodes.
func (h *Handler) PredictInternal(w http.ResponseWriter, r *http.Request) {
	h.predictJSON(w, r, pipeline.InternalTypes)
}

func (h *Handler) predictJSON(w http.ResponseWriter, r *http.Request, types []model.NodeType) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req pipeline.Request
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, h.maxBody)).Decode(&req); err != nil {
		writeBodyError(w, err, "Invalid JSON")
		return
	}
	if types != nil {
		req.Types = types
	}

	fut, err := h.pool.Submit(r.Context(), req)
	if err != nil {
		writeError(w, submitStatus(err), err.Error())
		return
	}
	h.respond(r.Context(), w, fut)
}

func (h *Handler) PredictFromImage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxBody)
	if err := r.ParseMultipartForm(h.maxBody); err != nil {
		writeBodyError(w, err, "Failed to parse form")
		return
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		writeError(w, http.StatusBadRequest, "No image file provided. Use 'image' as the form field name")
		return
	}
	defer file.Close()

	img, format, err := image.Decode(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid image format. Supported: JPEG, PNG")
		return
	}

	log.WithFields(log.Fields{
		"file":   header.Filename,
		"bytes":  header.Size,
		"format": format,
		"size":   img.Bounds().Size().String(),
	}).Debug("Received upload")

	crop, err := formCrop(r, img.Bounds())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	types, err := model.ParseNodeTypes(r.FormValue("types"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	fut, err := h.pool.SubmitFunc(r.Context(), func() ([]model.PredictedNode, error) {
		return h.predictor.PredictImage(img, crop, types)
	})
	if err != nil {
		writeError(w, submitStatus(err), err.Error())
		return
	}
	h.respond(r.Context(), w, fut)
}

// DetectTips finds line tips in the crop with the threshold detector. It
// does not need the model.
func (h *Handler) DetectTips(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req pipeline.Request
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, h.maxBody)).Decode(&req); err != nil {
		writeBodyError(w, err, "Invalid JSON")
		return
	}

	fut, err := h.pool.SubmitFunc(r.Context(), func() ([]model.PredictedNode, error) {
		img, err := preprocess.DecodeImage(req.Image)
		if err != nil {
			return nil, err
		}
		return detect.Tips(img, req.X, req.Y, req.W, req.H)
	})
	if err != nil {
		writeError(w, submitStatus(err), err.Error())
		return
	}
	h.respond(r.Context(), w, fut)
}

func (h *Handler) respond(ctx context.Context, w http.ResponseWriter, fut *pipeline.Future) {
	nodes, err := fut.Wait(ctx)
	if err != nil {
		if ctx.Err() != nil {
			// client went away; the job finishes on its own
			log.WithField("job", fut.ID).Debug("Client stopped waiting")
			return
		}
		writeError(w, StatusFor(err), err.Error())
		return
	}
	if nodes == nil {
		nodes = []model.PredictedNode{}
	}
	writeJSON(w, http.StatusOK, nodesResponse{Nodes: nodes})
}

// formCrop reads crop_x/crop_y/crop_w/crop_h, defaulting to the whole image.
func formCrop(r *http.Request, bounds image.Rectangle) (pipeline.Crop, error) {
	crop := pipeline.Crop{W: bounds.Dx(), H: bounds.Dy()}
	fields := []struct {
		name string
		dst  *int
	}{
		{"crop_x", &crop.X},
		{"crop_y", &crop.Y},
		{"crop_w", &crop.W},
		{"crop_h", &crop.H},
	}
	for _, f := range fields {
		v := r.FormValue(f.name)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return pipeline.Crop{}, errors.New("invalid " + f.name)
		}
		*f.dst = n
	}
	return crop, nil
}

// StatusFor maps pipeline errors to HTTP status codes.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, preprocess.ErrDecode),
		errors.Is(err, preprocess.ErrInvalidCrop),
		errors.Is(err, preprocess.ErrChannel),
		errors.Is(err, model.ErrNodeType):
		return http.StatusBadRequest
	case errors.Is(err, model.ErrModelNotFound),
		errors.Is(err, model.ErrConfigParse),
		errors.Is(err, model.ErrModelLoad):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func submitStatus(err error) int {
	if errors.Is(err, pipeline.ErrPoolClosed) {
		return http.StatusServiceUnavailable
	}
	return http.StatusRequestTimeout
}

// writeBodyError reports an oversized body as 413 and anything else as a
// malformed request.
func writeBodyError(w http.ResponseWriter, err error, msg string) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		writeError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("Request body exceeds %d bytes", tooLarge.Limit))
		return
	}
	writeError(w, http.StatusBadRequest, msg)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.WithError(err).Warn("Failed to encode response")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
