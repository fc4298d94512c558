package storage

import (
	"context"
	"fmt"
	"os/exec"
)

// Converter renders a DICOM file into a browser-viewable PNG next to the
// source file and returns the rendition path.
type Converter interface {
	Convert(ctx context.Context, dir, filename string) (string, error)
}

// DCMTKConverter shells out to the containerised dcmtk toolkit.
type DCMTKConverter struct {
	// Image is the container image carrying dcmj2pnm.
	Image string
}

// NewDCMTKConverter constructs a converter with the default image.
func NewDCMTKConverter(image string) *DCMTKConverter {
	if image == "" {
		image = "darthunix/dcmtk:latest"
	}
	return &DCMTKConverter{Image: image}
}

// Convert runs dcmj2pnm over the mounted upload directory.
func (c *DCMTKConverter) Convert(ctx context.Context, dir, filename string) (string, error) {
	out := filename + ".png"
	cmd := exec.CommandContext(ctx, "docker", "run", "--rm",
		"-v", dir+":/imgs",
		c.Image,
		"dcmj2pnm", "/imgs/"+filename, "/imgs/"+out, "+oj", "+Wi", "1")
	if output, err := cmd.CombinedOutput(); err != nil {
		return "", fmt.Errorf("storage: convert %s: %w: %s", filename, err, output)
	}
	return out, nil
}

var _ Converter = (*DCMTKConverter)(nil)
