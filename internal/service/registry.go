package service

import (
	"fmt"
	"io"
	"path/filepath"
	"sync"

	"wa-blaster/internal/helper"
	"wa-blaster/internal/model"

	"github.com/google/uuid"
)

// UploadFile is one attachment as received from a client.
type UploadFile struct {
	Name    string
	Content io.Reader
}

// Registry holds the message variants and attachment paths of the current campaign.
// Both sets are append-only until Reset.
type Registry struct {
	mu          sync.RWMutex
	messages    []string
	attachments []string
}

func NewRegistry() *Registry {
	return &Registry{}
}

// AddMessage appends text as-is. Duplicates are kept.
func (r *Registry) AddMessage(text string) {
	r.mu.Lock()
	r.messages = append(r.messages, text)
	r.mu.Unlock()
}

func (r *Registry) Messages() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.messages...)
}

func (r *Registry) Attachments() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.attachments...)
}

// SaveAttachments writes files into a fresh directory under root and records their paths.
// Paths of files written before a failure are still recorded.
func (r *Registry) SaveAttachments(root string, files []UploadFile) ([]string, error) {
	id, err := uuid.NewUUID()
	if err != nil {
		return nil, fmt.Errorf("%w: generate batch id: %v", model.ErrFilesystem, err)
	}
	dir := filepath.Join(root, id.String())
	if err := helper.CreateDirectory(dir); err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrFilesystem, err)
	}

	taken := make(map[string]bool, len(files))
	paths := make([]string, 0, len(files))
	defer func() {
		r.mu.Lock()
		r.attachments = append(r.attachments, paths...)
		r.mu.Unlock()
	}()

	for _, f := range files {
		name := helper.UniqueFilename(helper.SanitizeFilename(f.Name), taken)
		taken[name] = true

		dest := filepath.Join(dir, name)
		if err := helper.SaveFile(f.Content, dest); err != nil {
			return paths, fmt.Errorf("%w: %s: %v", model.ErrFilesystem, f.Name, err)
		}
		paths = append(paths, dest)
	}
	return paths, nil
}

// Reset clears both sets. Files on disk are left alone.
func (r *Registry) Reset() {
	r.mu.Lock()
	r.messages = nil
	r.attachments = nil
	r.mu.Unlock()
}
