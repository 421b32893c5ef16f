package server

import (
	"context"
	"encoding/json"
	"fmt"
	"image"

	"github.com/ironsheep/rangefinder-mcp/internal/imaging"
	"github.com/ironsheep/rangefinder-mcp/internal/log"
	"github.com/ironsheep/rangefinder-mcp/internal/matching"
	"github.com/ironsheep/rangefinder-mcp/internal/rangefinder"
)

// ToolCallParams represents the parameters for a tools/call MCP request.
type ToolCallParams struct {
	// Name is the tool to invoke (e.g., "image_load", "distance_estimate").
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
// A frame that cannot be measured is not an error: its status is part of
// the result.
func (s *Server) handleToolsCall(ctx context.Context, req *MCPRequest) *MCPResponse {
	var params ToolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return s.errorResponse(req.ID, -32602, "Invalid params", err.Error())
	}

	result, err := s.executeTool(ctx, params.Name, params.Arguments)
	if err != nil {
		log.Warn("tool failed", "tool", params.Name, "error", err)
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
//
// Each tool handler:
//  1. Unmarshals arguments from JSON
//  2. Applies configured defaults for optional parameters
//  3. Loads frames and templates from cache as needed
//  4. Calls the imaging or rangefinder function
//  5. Returns the result or error
func (s *Server) executeTool(ctx context.Context, name string, args json.RawMessage) (interface{}, error) {
	switch name {
	// Basic Image Information
	case "image_load":
		return s.handleImageLoad(args)
	case "image_dimensions":
		return s.handleImageDimensions(args)

	// Template Preparation
	case "image_crop":
		return s.handleImageCrop(args)
	case "image_edge_detect":
		return s.handleImageEdgeDetect(args)

	// Rangefinding
	case "pattern_locate":
		return s.handlePatternLocate(ctx, args)
	case "distance_estimate":
		return s.handleDistanceEstimate(ctx, args)
	case "frame_annotate":
		return s.handleFrameAnnotate(ctx, args)

	default:
		return nil, fmt.Errorf("unknown tool: %s", name)
	}
}

// errorResponse creates a JSON-RPC error response with the given details.
func (s *Server) errorResponse(id interface{}, code int, message, data string) *MCPResponse {
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

// === Basic Image Information Handlers ===

type imageLoadArgs struct {
	Path string `json:"path"`
}

func (s *Server) handleImageLoad(args json.RawMessage) (interface{}, error) {
	var a imageLoadArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	return imaging.LoadImageInfo(s.cache, a.Path)
}

func (s *Server) handleImageDimensions(args json.RawMessage) (interface{}, error) {
	var a imageLoadArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	return imaging.GetDimensions(s.cache, a.Path)
}

// === Template Preparation Handlers ===

type imageCropArgs struct {
	Path string `json:"path"`
	X1   int    `json:"x1"`
	Y1   int    `json:"y1"`
	X2   int    `json:"x2"`
	Y2   int    `json:"y2"`
}

func (s *Server) handleImageCrop(args json.RawMessage) (interface{}, error) {
	var a imageCropArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	img, err := s.cache.Load(a.Path)
	if err != nil {
		return nil, err
	}
	return imaging.Crop(img, imaging.Region{X1: a.X1, Y1: a.Y1, X2: a.X2, Y2: a.Y2})
}

type imageEdgeDetectArgs struct {
	Path          string `json:"path"`
	ThresholdLow  int    `json:"threshold_low"`
	ThresholdHigh int    `json:"threshold_high"`
}

func (s *Server) handleImageEdgeDetect(args json.RawMessage) (interface{}, error) {
	var a imageEdgeDetectArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	if a.ThresholdLow == 0 {
		a.ThresholdLow = s.cfg.Edges.LowThreshold
	}
	if a.ThresholdHigh == 0 {
		a.ThresholdHigh = s.cfg.Edges.HighThreshold
	}
	img, err := s.cache.Load(a.Path)
	if err != nil {
		return nil, err
	}
	return imaging.EdgeDetect(img, a.ThresholdLow, a.ThresholdHigh)
}

// === Rangefinding Handlers ===

// frameArgs names the frame and template shared by the rangefinding tools.
type frameArgs struct {
	FramePath    string          `json:"frame_path"`
	TemplatePath string          `json:"template_path"`
	Region       *imaging.Region `json:"region"`
	Rotation     *int            `json:"rotation"`
}

// loadFrame loads the frame, correcting it for the device rotation when one
// is given. Without a rotation the frame is taken as already upright.
func (s *Server) loadFrame(a frameArgs) (image.Image, error) {
	img, err := s.cache.Load(a.FramePath)
	if err != nil {
		return nil, err
	}
	if a.Rotation == nil {
		return img, nil
	}
	rotation, err := imaging.ParseRotation(*a.Rotation)
	if err != nil {
		return nil, err
	}
	return imaging.CorrectOrientation(img, rotation)
}

// loadTemplate resolves the template from the arguments or the configured
// template. It returns a nil image when neither names one, which measures
// as an invalid template.
func (s *Server) loadTemplate(a frameArgs) (image.Image, error) {
	path, region := a.TemplatePath, a.Region
	if path == "" {
		path = s.cfg.Template.Path
		if region == nil {
			region = s.cfg.Template.Region
		}
	}
	if path == "" {
		return nil, nil
	}

	img, err := s.cache.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load template: %w", err)
	}
	return imaging.CropTemplate(img, region)
}

func (s *Server) loadPair(a frameArgs) (frame, template image.Image, err error) {
	if frame, err = s.loadFrame(a); err != nil {
		return nil, nil, err
	}
	if template, err = s.loadTemplate(a); err != nil {
		return nil, nil, err
	}
	return frame, template, nil
}

// LocateResult is the outcome of pattern_locate.
type LocateResult struct {
	State      string               `json:"state"`
	Reason     string               `json:"reason,omitempty"`
	Backend    string               `json:"backend"`
	Cap        matching.Cap         `json:"cap"`
	Best       matching.Match       `json:"best"`
	Candidates []matching.Candidate `json:"candidates"`
	StoppedAt  float64              `json:"stopped_at,omitempty"`
}

func (s *Server) handlePatternLocate(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a frameArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	frame, template, err := s.loadPair(a)
	if err != nil {
		return nil, err
	}

	backend := s.finder.Backend()
	res, err := matching.NewSearcher(backend, nil).Search(ctx, frame, template)
	if err != nil && ctx.Err() != nil {
		return nil, err
	}

	out := &LocateResult{
		State:      res.State.String(),
		Backend:    backend.Name(),
		Cap:        res.Cap,
		Best:       res.Best,
		Candidates: res.Candidates,
		StoppedAt:  float64(res.StoppedAt),
	}
	if err != nil {
		out.Reason = err.Error()
	}
	return out, nil
}

type distanceEstimateArgs struct {
	frameArgs
	RealWidth   float64 `json:"real_width"`
	FocalLength float64 `json:"focal_length"`
}

// finderFor applies per-call calibration overrides.
func (s *Server) finderFor(realWidth, focalLength float64) (*rangefinder.Finder, error) {
	if realWidth == 0 && focalLength == 0 {
		return s.finder, nil
	}
	cal := s.finder.Calibration()
	if realWidth != 0 {
		cal.RealWidth = realWidth
	}
	if focalLength != 0 {
		cal.FocalLength = focalLength
	}
	return s.finder.WithCalibration(cal)
}

func (s *Server) handleDistanceEstimate(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a distanceEstimateArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	finder, err := s.finderFor(a.RealWidth, a.FocalLength)
	if err != nil {
		return nil, err
	}
	frame, template, err := s.loadPair(a.frameArgs)
	if err != nil {
		return nil, err
	}
	return finder.Measure(ctx, frame, template)
}

type frameAnnotateArgs struct {
	frameArgs
	Color      string `json:"color"`
	OutputPath string `json:"output_path"`
}

// AnnotateResponse carries the annotated frame and the measurement behind it.
type AnnotateResponse struct {
	*imaging.AnnotateResult
	Measurement *rangefinder.Measurement `json:"measurement"`
	SavedTo     string                   `json:"saved_to,omitempty"`
}

func (s *Server) handleFrameAnnotate(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a frameAnnotateArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	if a.Color == "" {
		a.Color = s.cfg.Annotation.Color
	}
	frame, template, err := s.loadPair(a.frameArgs)
	if err != nil {
		return nil, err
	}

	m, err := s.finder.Measure(ctx, frame, template)
	if err != nil {
		return nil, err
	}
	if m.Status == rangefinder.StatusInvalidFrame {
		return nil, fmt.Errorf("cannot annotate: %s", m.Reason)
	}

	box, label := m.Annotation()
	result, err := imaging.Annotate(frame, box, label, a.Color)
	if err != nil {
		return nil, err
	}

	resp := &AnnotateResponse{AnnotateResult: result, Measurement: m}
	if a.OutputPath != "" {
		c, err := imaging.ParseColor(a.Color)
		if err != nil {
			c, _ = imaging.ParseColor(imaging.DefaultAnnotationColor)
		}
		if err := imaging.Save(imaging.DrawAnnotation(frame, box, label, c), a.OutputPath); err != nil {
			return nil, err
		}
		resp.SavedTo = a.OutputPath
	}
	return resp, nil
}
