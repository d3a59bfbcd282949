package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"hdfs-drive/internal/model"
	"hdfs-drive/internal/util"
)

// ThumbnailService renders scaled JPEG previews of image files in the
// store. Rendered thumbnails are cached on local disk keyed by storage
// path, size, and source mtime, so a re-uploaded image invalidates its old
// preview naturally.
type ThumbnailService struct {
	drive *DriveService
	root  string
}

func NewThumbnailService(drive *DriveService, root string) *ThumbnailService {
	return &ThumbnailService{drive: drive, root: root}
}

// Get returns an open thumbnail file. The caller closes it.
func (s *ThumbnailService) Get(ctx context.Context, p model.Principal, virtualPath string, size int) (*os.File, error) {
	if size <= 0 {
		size = 256
	}
	if size > 1024 {
		size = 1024
	}

	if !util.IsThumbnailExtension(filepath.Ext(virtualPath)) {
		return nil, fmt.Errorf("no thumbnail for %q: %w", virtualPath, model.ErrInvalidInput)
	}

	entry, r, err := s.drive.Download(ctx, p, virtualPath)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	if err := os.MkdirAll(s.root, 0o755); err != nil {
		return nil, err
	}

	thumbPath := s.cachePath(entry.Path, size, entry.ModifiedAt.UnixMilli())
	if f, err := os.Open(thumbPath); err == nil {
		return f, nil
	}

	src, _, err := image.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("cannot decode %q as an image: %w", virtualPath, model.ErrInvalidInput)
	}

	if err := s.renderScaled(src, thumbPath, size); err != nil {
		return nil, err
	}

	return os.Open(thumbPath)
}

func (s *ThumbnailService) renderScaled(src image.Image, thumbPath string, size int) error {
	bounds := src.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if width <= 0 || height <= 0 {
		return fmt.Errorf("invalid image dimensions: %w", model.ErrInvalidInput)
	}

	maxDim := width
	if height > maxDim {
		maxDim = height
	}
	scale := float64(size) / float64(maxDim)
	if scale > 1 {
		scale = 1
	}

	targetWidth := int(math.Round(float64(width) * scale))
	targetHeight := int(math.Round(float64(height) * scale))
	if targetWidth < 1 {
		targetWidth = 1
	}
	if targetHeight < 1 {
		targetHeight = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, targetWidth, targetHeight))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, bounds, draw.Over, nil)

	// Write to a temp name and rename, so a concurrent reader never sees a
	// half-written thumbnail.
	tmp, err := os.CreateTemp(s.root, ".thumb-*.jpg")
	if err != nil {
		return err
	}
	encodeErr := jpeg.Encode(tmp, dst, &jpeg.Options{Quality: 90})
	closeErr := tmp.Close()
	if encodeErr != nil {
		os.Remove(tmp.Name())
		return encodeErr
	}
	if closeErr != nil {
		os.Remove(tmp.Name())
		return closeErr
	}

	return os.Rename(tmp.Name(), thumbPath)
}

func (s *ThumbnailService) cachePath(actualPath string, size int, mtimeMillis int64) string {
	key := strings.Join([]string{actualPath, strconv.Itoa(size), strconv.FormatInt(mtimeMillis, 10)}, "|")
	hash := sha256.Sum256([]byte(key))

	return filepath.Join(s.root, hex.EncodeToString(hash[:])+".jpg")
}
