package util

import (
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"
	"path/filepath"

	"github.com/HugoSmits86/nativewebp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

const (
	// AvatarDir is where processed avatars land, served under /uploads/.
	AvatarDir  = "uploads/avatars"
	avatarSize = 256
)

// ProcessAvatar decodes an uploaded image, center-crops it square,
// scales it to the avatar size and stores it as <userID>.webp. Every
// stored avatar ends up the same format and dimensions regardless of
// what was uploaded.
func ProcessAvatar(r io.Reader, userID string) (string, error) {
	src, _, err := image.Decode(r)
	if err != nil {
		return "", fmt.Errorf("decode image: %w", err)
	}

	square := centerCrop(src)
	dst := image.NewNRGBA(image.Rect(0, 0, avatarSize, avatarSize))
	draw.CatmullRom.Scale(dst, dst.Bounds(), square, square.Bounds(), draw.Src, nil)

	if err := os.MkdirAll(AvatarDir, 0755); err != nil {
		return "", err
	}

	filename := userID + ".webp"
	f, err := os.Create(filepath.Join(AvatarDir, filename))
	if err != nil {
		return "", err
	}
	defer f.Close()

	if err := nativewebp.Encode(f, dst, nil); err != nil {
		return "", fmt.Errorf("encode webp: %w", err)
	}
	return filename, nil
}

func centerCrop(src image.Image) image.Image {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	if w == h {
		return src
	}

	side := w
	if h < side {
		side = h
	}
	x0 := b.Min.X + (w-side)/2
	y0 := b.Min.Y + (h-side)/2
	rect := image.Rect(x0, y0, x0+side, y0+side)

	if sub, ok := src.(interface {
		SubImage(image.Rectangle) image.Image
	}); ok {
		return sub.SubImage(rect)
	}

	dst := image.NewNRGBA(image.Rect(0, 0, side, side))
	draw.Copy(dst, image.Point{}, src, rect, draw.Src, nil)
	return dst
}

// RemoveAvatar deletes a stored avatar file. Missing files are fine.
func RemoveAvatar(userID string) {
	os.Remove(filepath.Join(AvatarDir, userID+".webp"))
}
