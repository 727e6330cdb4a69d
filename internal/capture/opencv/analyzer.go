package opencv

import (
	"context"
	"fmt"
	"image"
	"log"
	"math"
	"os"

	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/kozaktomas/face-attendance/internal/constants"
	"github.com/kozaktomas/face-attendance/internal/vision"
	"gocv.io/x/gocv"
)

// Analyzer detects faces with an SSD network and embeds them with a recognition network.
type Analyzer struct {
	detector   gocv.Net
	recognizer gocv.Net
	confidence float32
	modelTag   string

	// recognizer input size
	inputW, inputH int
}

func loadNet(model, cfg, what string) (gocv.Net, error) {
	if model == "" {
		return gocv.Net{}, fmt.Errorf("%s model path is empty", what)
	}
	if _, err := os.Stat(model); err != nil {
		return gocv.Net{}, fmt.Errorf("%s model: %w", what, err)
	}
	net := gocv.ReadNet(model, cfg)
	if net.Empty() {
		return gocv.Net{}, fmt.Errorf("%s model %s could not be loaded", what, model)
	}

	if errB, errT := net.SetPreferableBackend(gocv.NetBackendCUDA), net.SetPreferableTarget(gocv.NetTargetCUDA); errB != nil || errT != nil {
		net.SetPreferableBackend(gocv.NetBackendDefault)
		net.SetPreferableTarget(gocv.NetTargetCPU)
		log.Printf("opencv: %s running on CPU", what)
	} else {
		log.Printf("opencv: %s running on CUDA", what)
	}
	return net, nil
}

// NewAnalyzer loads the detector and recognizer networks.
func NewAnalyzer(cfg *config.OpenCVConfig, modelTag string) (*Analyzer, error) {
	detector, err := loadNet(cfg.DetectorModel, cfg.DetectorConfig, "detector")
	if err != nil {
		return nil, err
	}
	recognizer, err := loadNet(cfg.RecognizerModel, "", "recognizer")
	if err != nil {
		detector.Close()
		return nil, err
	}
	return &Analyzer{
		detector:   detector,
		recognizer: recognizer,
		confidence: float32(cfg.DetectorConfidence),
		modelTag:   modelTag,
		inputW:     112,
		inputH:     112,
	}, nil
}

// ModelTag returns the tag embeddings from this analyzer are stored under.
func (a *Analyzer) ModelTag() string {
	return a.modelTag
}

// Detect runs the SSD face detector over frame.
func (a *Analyzer) Detect(ctx context.Context, frame image.Image) ([]vision.Face, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	img, err := gocv.ImageToMatRGB(frame)
	if err != nil {
		return nil, fmt.Errorf("convert frame: %w", err)
	}
	defer img.Close()

	blob := gocv.BlobFromImage(img, 1.0, image.Pt(300, 300), gocv.NewScalar(104.0, 177.0, 123.0, 0), false, false)
	defer blob.Close()

	a.detector.SetInput(blob, "")
	out := a.detector.Forward("")
	defer out.Close()

	sizes := out.Size()
	if len(sizes) != 4 || sizes[2] == 0 {
		return nil, vision.ErrNoFaceDetected
	}
	rows := out.Reshape(1, sizes[2])
	defer rows.Close()

	bounds := frame.Bounds()
	var faces []vision.Face
	for i := 0; i < sizes[2]; i++ {
		score := rows.GetFloatAt(i, 2)
		if score <= a.confidence {
			continue
		}
		box := vision.BoxFromRelative(
			float64(rows.GetFloatAt(i, 3)), float64(rows.GetFloatAt(i, 4)),
			float64(rows.GetFloatAt(i, 5)), float64(rows.GetFloatAt(i, 6)),
			bounds,
		)
		if box.Empty() {
			continue
		}
		faces = append(faces, vision.Face{Box: box, Score: float64(score)})
	}
	faces = vision.SuppressOverlaps(faces, constants.OverlapIoUThreshold)
	if len(faces) == 0 {
		return nil, vision.ErrNoFaceDetected
	}
	return faces, nil
}

// Embed runs the recognizer on the face crop and returns an L2 normalized vector.
func (a *Analyzer) Embed(ctx context.Context, face vision.Face) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if face.Crop == nil {
		return nil, vision.ErrNoFaceDetected
	}
	crop, err := gocv.ImageToMatRGB(face.Crop)
	if err != nil {
		return nil, fmt.Errorf("convert crop: %w", err)
	}
	defer crop.Close()

	blob := gocv.BlobFromImage(crop, 1.0/255.0, image.Pt(a.inputW, a.inputH), gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()

	a.recognizer.SetInput(blob, "")
	out := a.recognizer.Forward("")
	defer out.Close()

	flat := out.Reshape(1, 1)
	defer flat.Close()

	embedding := make([]float32, flat.Cols())
	var norm float64
	for i := range embedding {
		embedding[i] = flat.GetFloatAt(0, i)
		norm += float64(embedding[i]) * float64(embedding[i])
	}
	if norm == 0 {
		return embedding, nil
	}
	norm = math.Sqrt(norm)
	for i := range embedding {
		embedding[i] = float32(float64(embedding[i]) / norm)
	}
	return embedding, nil
}

// Close releases both networks.
func (a *Analyzer) Close() error {
	err1 := a.detector.Close()
	err2 := a.recognizer.Close()
	if err1 != nil {
		return err1
	}
	return err2
}
