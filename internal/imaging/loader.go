package imaging

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"  // Register GIF format decoder
	_ "image/jpeg" // Register JPEG format decoder
	_ "image/png"  // Register PNG format decoder
	"os"
	"sync"

	_ "golang.org/x/image/bmp"  // Register BMP format decoder
	_ "golang.org/x/image/tiff" // Register TIFF format decoder
	_ "golang.org/x/image/webp" // Register WebP format decoder
)

// DecodeBytes decodes an encoded image held in memory.
func DecodeBytes(data []byte) (image.Image, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("failed to decode image: empty input")
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	return img, nil
}

// ImageCache caches image files by path so repeated tool calls on the same
// file avoid disk reads.
//
// Both the raw encoded bytes and, once requested, the decoded image are kept.
// The raw bytes feed the OCR result fingerprint; the decoded image serves
// drawing operations.
//
// ImageCache is safe for concurrent use by multiple goroutines.
//
// # Memory Management
//
// Entries remain in memory until explicitly removed via Evict() or Clear().
type ImageCache struct {
	mu      sync.RWMutex
	entries map[string]*cachedImage
}

type cachedImage struct {
	data []byte
	img  image.Image
}

// NewImageCache creates and initializes a new empty image cache.
func NewImageCache() *ImageCache {
	return &ImageCache{
		entries: make(map[string]*cachedImage),
	}
}

// LoadBytes returns the raw file content at path, reading it on first use.
func (c *ImageCache) LoadBytes(path string) ([]byte, error) {
	c.mu.RLock()
	if e, ok := c.entries[path]; ok {
		c.mu.RUnlock()
		return e.data, nil
	}
	c.mu.RUnlock()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}

	c.mu.Lock()
	if e, ok := c.entries[path]; ok {
		c.mu.Unlock()
		return e.data, nil
	}
	c.entries[path] = &cachedImage{data: data}
	c.mu.Unlock()

	return data, nil
}

// Load returns the decoded image at path.
//
// # Errors
//
//   - Returns error if the file does not exist or cannot be read
//   - Returns error if the file is not a supported image format
func (c *ImageCache) Load(path string) (image.Image, error) {
	data, err := c.LoadBytes(path)
	if err != nil {
		return nil, err
	}

	c.mu.RLock()
	var img image.Image
	if e, ok := c.entries[path]; ok {
		img = e.img
	}
	c.mu.RUnlock()
	if img != nil {
		return img, nil
	}

	img, err = DecodeBytes(data)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	if e, ok := c.entries[path]; ok {
		e.img = img
	}
	c.mu.Unlock()

	return img, nil
}

// Clear removes all images from the cache, freeing the associated memory.
func (c *ImageCache) Clear() {
	c.mu.Lock()
	c.entries = make(map[string]*cachedImage)
	c.mu.Unlock()
}

// Evict removes a specific image from the cache by its path.
//
// If the path is not in the cache, this method does nothing.
func (c *ImageCache) Evict(path string) {
	c.mu.Lock()
	delete(c.entries, path)
	c.mu.Unlock()
}
