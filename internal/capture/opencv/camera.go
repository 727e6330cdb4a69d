// Package opencv provides the gocv-backed camera, preview window and local DNN face analyzer.
package opencv

import (
	"context"
	"fmt"
	"image"
	"log"
	"strconv"

	"github.com/kozaktomas/face-attendance/internal/capture"
	"github.com/kozaktomas/face-attendance/internal/constants"
	"gocv.io/x/gocv"
)

// Camera reads frames from a local device or a stream URL.
type Camera struct {
	device   string
	capture  *gocv.VideoCapture
	frame    gocv.Mat
	failures int
}

// OpenCamera opens device, which is either a numeric device id or a stream URL.
func OpenCamera(device string) (*Camera, error) {
	var (
		vc  *gocv.VideoCapture
		err error
	)
	if id, convErr := strconv.Atoi(device); convErr == nil {
		vc, err = gocv.OpenVideoCapture(id)
	} else {
		vc, err = gocv.OpenVideoCapture(device)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", capture.ErrDeviceUnavailable, device, err)
	}
	if !vc.IsOpened() {
		vc.Close()
		return nil, fmt.Errorf("%w: %s", capture.ErrDeviceUnavailable, device)
	}
	log.Printf("camera: opened %s", device)
	return &Camera{device: device, capture: vc, frame: gocv.NewMat()}, nil
}

// Next blocks until the device delivers a frame. Repeated empty reads end the stream.
func (c *Camera) Next(ctx context.Context) (image.Image, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if ok := c.capture.Read(&c.frame); !ok || c.frame.Empty() {
			c.failures++
			if c.failures >= constants.MaxCameraReadFailures {
				return nil, fmt.Errorf("%w: %d consecutive empty reads from %s", capture.ErrEndOfStream, c.failures, c.device)
			}
			continue
		}
		c.failures = 0

		img, err := c.frame.ToImage()
		if err != nil {
			return nil, fmt.Errorf("convert frame: %w", err)
		}
		return img, nil
	}
}

// Close releases the device.
func (c *Camera) Close() error {
	c.frame.Close()
	return c.capture.Close()
}
