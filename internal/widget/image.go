package widget

import (
	"encoding/base64"
	"encoding/json"
	"sync"

	"github.com/wavesoft/marblebar/internal/kernel"
)

const blankImage = "about:blank"

// Image shows a picture addressed by URI, usually a data URI. A width or
// height of -1 leaves that dimension to the browser.
type Image struct {
	kernel.Base
	mu    sync.RWMutex
	value string
}

func NewImage(title string, width, height int, uri string) *Image {
	if uri == "" {
		uri = blankImage
	}
	img := &Image{value: uri}
	img.Init(img, title)
	img.SetMeta("width", width)
	img.SetMeta("height", height)
	return img
}

func (img *Image) Get() string {
	img.mu.RLock()
	defer img.mu.RUnlock()
	return img.value
}

func (img *Image) Set(uri string) {
	img.mu.Lock()
	img.value = uri
	img.mu.Unlock()
	img.MarkDirty()
}

// SetBinary encodes data as a base64 data URI of the given content type.
func (img *Image) SetBinary(data []byte, contentType string) {
	img.Set(DataURI(data, contentType))
}

// DataURI returns "data:<contentType>;base64,<data>".
func DataURI(data []byte, contentType string) string {
	return "data:" + contentType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// HandleUIEvent ignores every event; images are host-driven.
func (img *Image) HandleUIEvent(kernel.Notifier, string, json.RawMessage) {}

func (img *Image) Value() any { return img.Get() }

func (img *Image) Specs() kernel.PropertySpec {
	return img.Spec("image", img.Get())
}
