package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"os"

	apperrors "github.com/ironsheep/ocrpipe/internal/errors"
	"github.com/ironsheep/ocrpipe/internal/imaging"
	"github.com/ironsheep/ocrpipe/internal/ocr"
	"github.com/ironsheep/ocrpipe/internal/recognition"
	"github.com/ironsheep/ocrpipe/internal/result"
)

// ToolCallParams represents the parameters for a tools/call MCP request.
type ToolCallParams struct {
	// Name is the tool to invoke (e.g., "ocr_recognize", "ocr_deskew").
	Name string `json:"name"`

	// Arguments contains the tool-specific parameters as JSON.
	Arguments json.RawMessage `json:"arguments"`
}

// handleToolsCall processes a tools/call request and executes the specified tool.
//
// The response wraps the tool result in MCP's content format:
//
//	{
//	  "content": [{"type": "text", "text": "<JSON result>"}]
//	}
//
// Tool execution errors return a JSON-RPC error response with code -32000.
// Pipeline errors carry their error code and details in the error data.
func (s *Server) handleToolsCall(ctx context.Context, req *MCPRequest) *MCPResponse {
	var params ToolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return s.errorResponse(req.ID, -32602, "Invalid params", err.Error())
	}

	result, err := s.executeTool(ctx, params.Name, params.Arguments)
	if err != nil {
		s.log.Warn("Tool failed", "tool", params.Name, "error", err)
		var ocrErr *apperrors.OCRError
		if errors.As(err, &ocrErr) {
			return s.errorResponse(req.ID, -32000, "Tool execution failed", ocrErr.ToMap())
		}
		return s.errorResponse(req.ID, -32000, "Tool execution failed", err.Error())
	}

	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"content": []map[string]interface{}{
				{
					"type": "text",
					"text": mustMarshalJSON(result),
				},
			},
		},
	}
}

// executeTool dispatches tool execution to the appropriate handler function.
func (s *Server) executeTool(ctx context.Context, name string, args json.RawMessage) (interface{}, error) {
	switch name {
	// Recognition
	case "ocr_recognize":
		return s.handleRecognize(ctx, args)
	case "ocr_recognize_region":
		return s.handleRecognizeRegion(ctx, args)

	// Detection
	case "ocr_detect_boxes":
		return s.handleDetectBoxes(ctx, args)
	case "ocr_deskew":
		return s.handleDeskew(ctx, args)
	case "ocr_annotate":
		return s.handleAnnotate(ctx, args)

	// Pipeline management
	case "ocr_status":
		return s.handleStatus()
	case "ocr_change_detection_model":
		return s.handleChangeModel(ctx, args, "detection_model", s.pipeline.ChangeDetectionModel)
	case "ocr_change_recognition_model":
		return s.handleChangeModel(ctx, args, "recognition_model", s.pipeline.ChangeRecognitionModel)
	case "ocr_change_dictionary":
		return s.handleChangeDictionary(args)

	default:
		return nil, fmt.Errorf("unknown tool: %s", name)
	}
}

// errorResponse creates a JSON-RPC error response with the given details.
func (s *Server) errorResponse(id interface{}, code int, message string, data interface{}) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error: &MCPError{
			Code:    code,
			Message: message,
			Data:    data,
		},
	}
}

// mustMarshalJSON converts a value to pretty-printed JSON string.
// Panics are suppressed; on marshal failure, returns an empty string.
func mustMarshalJSON(v interface{}) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}

// loadImage returns the file at path as pipeline input. The raw bytes are
// passed on so the result cache keys on file content.
func (s *Server) loadImage(path string) (ocr.Image, error) {
	if path == "" {
		return ocr.Image{}, fmt.Errorf("path is required")
	}
	data, err := s.cache.LoadBytes(path)
	if err != nil {
		return ocr.Image{}, err
	}
	return ocr.FromBytes(data), nil
}

// === Recognition Handlers ===

type recognizeArgs struct {
	Path           string `json:"path"`
	Flatten        bool   `json:"flatten"`
	AutoDeskew     *bool  `json:"auto_deskew"`
	NoCache        bool   `json:"no_cache"`
	DictionaryPath string `json:"dictionary_path"`
}

func (s *Server) handleRecognize(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a recognizeArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	img, err := s.loadImage(a.Path)
	if err != nil {
		return nil, err
	}

	opts := ocr.RecognizeOptions{NoCache: a.NoCache, AutoDeskew: a.AutoDeskew}
	if a.DictionaryPath != "" {
		data, err := os.ReadFile(a.DictionaryPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read dictionary: %w", err)
		}
		if opts.Dictionary, err = recognition.ParseDictionary(data); err != nil {
			return nil, err
		}
	}

	grouped, err := s.pipeline.Recognize(ctx, img, opts)
	if err != nil {
		return nil, err
	}
	if a.Flatten {
		return grouped.Flatten(), nil
	}
	return grouped, nil
}

type recognizeRegionArgs struct {
	Path string `json:"path"`
	X1   int    `json:"x1"`
	Y1   int    `json:"y1"`
	X2   int    `json:"x2"`
	Y2   int    `json:"y2"`
}

func (s *Server) handleRecognizeRegion(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a recognizeRegionArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	img, err := s.cache.Load(a.Path)
	if err != nil {
		return nil, err
	}
	region, err := imaging.CropRegion(img, image.Rect(a.X1, a.Y1, a.X2, a.Y2))
	if err != nil {
		return nil, err
	}
	return s.pipeline.Recognize(ctx, ocr.FromImage(region), ocr.RecognizeOptions{})
}

// === Detection Handlers ===

type pathArgs struct {
	Path string `json:"path"`
}

// DetectBoxesResult lists the text boxes found in an image.
type DetectBoxesResult struct {
	Count int          `json:"count"`
	Boxes []result.Box `json:"boxes"`
}

func (s *Server) handleDetectBoxes(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a pathArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	img, err := s.loadImage(a.Path)
	if err != nil {
		return nil, err
	}
	boxes, err := s.pipeline.Detect(ctx, img)
	if err != nil {
		return nil, err
	}
	if boxes == nil {
		boxes = []result.Box{}
	}
	return &DetectBoxesResult{Count: len(boxes), Boxes: boxes}, nil
}

type imageOutputArgs struct {
	Path      string  `json:"path"`
	Scale     float64 `json:"scale"`
	Thickness int     `json:"thickness"`
}

// DeskewResult is the straightened image and the skew that was removed.
type DeskewResult struct {
	Angle   float64 `json:"angle"`
	Regions int     `json:"regions"`
	*imaging.EncodedImage
}

func (s *Server) handleDeskew(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a imageOutputArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	if a.Scale == 0 {
		a.Scale = 1.0
	}
	img, err := s.loadImage(a.Path)
	if err != nil {
		return nil, err
	}
	rotated, est, err := s.pipeline.Deskew(ctx, img)
	if err != nil {
		return nil, err
	}
	encoded, err := imaging.EncodePNG(rotated, a.Scale)
	if err != nil {
		return nil, err
	}
	return &DeskewResult{Angle: est.Angle, Regions: est.Regions, EncodedImage: encoded}, nil
}

// AnnotateResult is the recognized text and an image with its boxes drawn.
type AnnotateResult struct {
	Text  string `json:"text"`
	Lines int    `json:"lines"`
	Boxes int    `json:"boxes"`
	*imaging.EncodedImage
}

func (s *Server) handleAnnotate(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a imageOutputArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	if a.Scale == 0 {
		a.Scale = 1.0
	}
	if a.Thickness == 0 {
		a.Thickness = 2
	}

	src, err := s.cache.Load(a.Path)
	if err != nil {
		return nil, err
	}
	img, err := s.loadImage(a.Path)
	if err != nil {
		return nil, err
	}

	// Boxes must stay in the coordinates of the file being drawn on.
	noDeskew := false
	grouped, err := s.pipeline.Recognize(ctx, img, ocr.RecognizeOptions{AutoDeskew: &noDeskew})
	if err != nil {
		return nil, err
	}

	var annotations []imaging.Annotation
	for i, line := range grouped.Lines {
		for j, r := range line {
			annotations = append(annotations, imaging.Annotation{
				Rect:  r.Box.Rect(),
				Group: i,
				Label: imaging.IndexLabel(i, j),
			})
		}
	}

	encoded, err := imaging.EncodePNG(imaging.DrawAnnotations(src, annotations, a.Thickness), a.Scale)
	if err != nil {
		return nil, err
	}
	return &AnnotateResult{
		Text:         grouped.Text,
		Lines:        len(grouped.Lines),
		Boxes:        len(annotations),
		EncodedImage: encoded,
	}, nil
}

// === Pipeline Management Handlers ===

// StatusResult describes the pipeline and the Tesseract installation.
type StatusResult struct {
	ocr.Status
	Tesseract ocr.EngineInfo `json:"tesseract"`
}

func (s *Server) handleStatus() (interface{}, error) {
	return &StatusResult{Status: s.pipeline.Status(), Tesseract: ocr.TesseractInfo()}, nil
}

// ChangeResult reports a successful model or dictionary swap.
type ChangeResult struct {
	Changed string     `json:"changed"`
	Path    string     `json:"path"`
	Status  ocr.Status `json:"status"`
}

func readArgFile(args json.RawMessage) (string, []byte, error) {
	var a pathArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return "", nil, err
	}
	if a.Path == "" {
		return "", nil, fmt.Errorf("path is required")
	}
	data, err := os.ReadFile(a.Path)
	if err != nil {
		return "", nil, fmt.Errorf("failed to read %s: %w", a.Path, err)
	}
	return a.Path, data, nil
}

func (s *Server) handleChangeModel(ctx context.Context, args json.RawMessage, what string, change func(context.Context, []byte) error) (interface{}, error) {
	path, model, err := readArgFile(args)
	if err != nil {
		return nil, err
	}
	if err := change(ctx, model); err != nil {
		return nil, err
	}
	return &ChangeResult{Changed: what, Path: path, Status: s.pipeline.Status()}, nil
}

func (s *Server) handleChangeDictionary(args json.RawMessage) (interface{}, error) {
	path, data, err := readArgFile(args)
	if err != nil {
		return nil, err
	}
	if err := s.pipeline.ChangeTextDictionary(data); err != nil {
		return nil, err
	}
	return &ChangeResult{Changed: "dictionary", Path: path, Status: s.pipeline.Status()}, nil
}
