// Package fingerprint is the HTTP client for the face embedding server. It
// implements vision.Analyzer by uploading frames and crops to /embed/face.
package fingerprint

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/kozaktomas/face-attendance/internal/constants"
	"github.com/kozaktomas/face-attendance/internal/vision"
)

const (
	defaultEmbeddingURL = "http://localhost:8000"
	defaultModel        = "VGG-Face"
	defaultDetector     = "opencv"
)

// Client computes face embeddings using the embedding server
type Client struct {
	baseURL  string
	model    string
	detector string
	maxSide  int
	client   *http.Client
}

// NewClient creates a new embedding client from the embedding configuration
func NewClient(cfg *config.EmbeddingConfig) *Client {
	c := &Client{
		baseURL:  strings.TrimSuffix(cfg.URL, "/"),
		model:    cfg.Model,
		detector: cfg.Detector,
		maxSide:  cfg.MaxFrameSide,
		client:   &http.Client{Timeout: cfg.Timeout},
	}
	if c.baseURL == "" {
		c.baseURL = defaultEmbeddingURL
	}
	if c.model == "" {
		c.model = defaultModel
	}
	if c.detector == "" {
		c.detector = defaultDetector
	}
	if c.maxSide <= 0 {
		c.maxSide = constants.MaxFrameSide
	}
	if c.client.Timeout == 0 {
		c.client.Timeout = 30 * time.Second
	}
	return c
}

// ModelTag identifies the model and detector pair embeddings are produced with
func (c *Client) ModelTag() string {
	return c.model + "+" + c.detector
}

// FaceDetection represents a single detected face
type FaceDetection struct {
	FaceIndex int       `json:"face_index"`
	Dim       int       `json:"dim"`
	Embedding []float32 `json:"embedding"`
	BBox      []float64 `json:"bbox"` // [x1, y1, x2, y2]
	DetScore  float64   `json:"det_score"`
}

// FaceResponse represents the response from the face embedding endpoint
type FaceResponse struct {
	FacesCount int             `json:"faces_count"`
	Faces      []FaceDetection `json:"faces"`
	Model      string          `json:"model"`
}

type errorResponse struct {
	Detail string `json:"detail"`
}

// postMultipartImage posts the image with the model and detector form fields.
// The part carries an explicit Content-Type based on magic byte detection.
func (c *Client) postMultipartImage(ctx context.Context, endpoint string, imageData []byte) ([]byte, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="file"; filename="face.jpg"`)
	h.Set("Content-Type", detectMIMEType(imageData))
	part, err := writer.CreatePart(h)
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := part.Write(imageData); err != nil {
		return nil, fmt.Errorf("failed to write image data: %w", err)
	}
	if err := writer.WriteField("model_name", c.model); err != nil {
		return nil, fmt.Errorf("failed to write model field: %w", err)
	}
	if err := writer.WriteField("detector_backend", c.detector); err != nil {
		return nil, fmt.Errorf("failed to write detector field: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, &buf)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		return body, nil
	case resp.StatusCode == http.StatusUnprocessableEntity && isNoFace(body):
		return nil, vision.ErrNoFaceDetected
	default:
		return nil, fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(body))
	}
}

func isNoFace(body []byte) bool {
	var e errorResponse
	if err := json.Unmarshal(body, &e); err != nil {
		return false
	}
	return strings.Contains(strings.ToLower(e.Detail), "face could not be detected") ||
		strings.Contains(strings.ToLower(e.Detail), "no face")
}

// detectMIMEType detects the MIME type from image data
func detectMIMEType(data []byte) string {
	if len(data) < 8 {
		return "application/octet-stream"
	}
	// JPEG: FF D8 FF
	if data[0] == 0xFF && data[1] == 0xD8 && data[2] == 0xFF {
		return "image/jpeg"
	}
	// PNG: 89 50 4E 47
	if data[0] == 0x89 && data[1] == 0x50 && data[2] == 0x4E && data[3] == 0x47 {
		return "image/png"
	}
	return "application/octet-stream"
}

// ComputeFaceEmbeddings detects faces in an encoded image and computes their embeddings
func (c *Client) ComputeFaceEmbeddings(ctx context.Context, imageData []byte) (*FaceResponse, error) {
	body, err := c.postMultipartImage(ctx, "/embed/face", imageData)
	if err != nil {
		return nil, err
	}

	var faceResp FaceResponse
	if err := json.Unmarshal(body, &faceResp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	if len(faceResp.Faces) == 0 {
		return nil, vision.ErrNoFaceDetected
	}
	return &faceResp, nil
}

// Detect uploads the frame, downscaled when needed, and returns the faces with
// their embeddings and boxes mapped back to frame coordinates.
func (c *Client) Detect(ctx context.Context, frame image.Image) ([]vision.Face, error) {
	small, scale := Downscale(frame, c.maxSide)
	data, err := EncodeJPEG(small)
	if err != nil {
		return nil, err
	}

	resp, err := c.ComputeFaceEmbeddings(ctx, data)
	if err != nil {
		return nil, err
	}

	bounds := frame.Bounds()
	faces := make([]vision.Face, 0, len(resp.Faces))
	for _, f := range resp.Faces {
		if len(f.BBox) != 4 || len(f.Embedding) == 0 {
			continue
		}
		box := vision.BoxFromCorners(
			float64(bounds.Min.X)+f.BBox[0]/scale, float64(bounds.Min.Y)+f.BBox[1]/scale,
			float64(bounds.Min.X)+f.BBox[2]/scale, float64(bounds.Min.Y)+f.BBox[3]/scale,
			bounds,
		)
		faces = append(faces, vision.Face{Box: box, Score: f.DetScore, Embedding: f.Embedding})
	}
	faces = vision.SuppressOverlaps(faces, constants.OverlapIoUThreshold)
	if len(faces) == 0 {
		return nil, vision.ErrNoFaceDetected
	}
	return faces, nil
}

// Embed uploads a face crop and returns the embedding of the most confident face in it.
func (c *Client) Embed(ctx context.Context, face vision.Face) ([]float32, error) {
	if face.Crop == nil {
		return nil, errors.New("face has no crop to embed")
	}
	data, err := EncodeJPEG(face.Crop)
	if err != nil {
		return nil, err
	}
	return c.EmbedImage(ctx, data)
}

// EmbedImage returns the embedding of the most confident face in an encoded image.
func (c *Client) EmbedImage(ctx context.Context, imageData []byte) ([]float32, error) {
	resp, err := c.ComputeFaceEmbeddings(ctx, imageData)
	if err != nil {
		return nil, err
	}
	best := resp.Faces[0]
	for _, f := range resp.Faces[1:] {
		if f.DetScore > best.DetScore {
			best = f
		}
	}
	if len(best.Embedding) == 0 {
		return nil, errors.New("empty embedding returned")
	}
	return best.Embedding, nil
}

// Ping checks that the embedding server answers its health endpoint
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("embedding server unhealthy (status %d)", resp.StatusCode)
	}
	return nil
}
