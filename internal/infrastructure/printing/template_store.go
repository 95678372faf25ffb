package printing

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/crosswms/loadorder/internal/domain/printing"
	"github.com/google/uuid"
)

// TemplateStore holds the manifest layouts, the shared partials and the
// print stylesheet. Files found in an external directory replace the
// embedded ones by file name.
type TemplateStore struct {
	externalDir string

	mu         sync.RWMutex
	layouts    map[printing.DocumentType]StaticTemplate
	partials   string
	stylesheet string
}

// StaticTemplate is a loaded layout
type StaticTemplate struct {
	ID           string // stable, derived from document type and paper
	DocumentType printing.DocumentType
	Name         string
	Description  string
	PaperSize    printing.PaperSize
	Orientation  printing.Orientation
	Margins      printing.Margins
	Content      string
	External     bool // loaded from the external directory
}

// TemplateStoreConfig configures the template store
type TemplateStoreConfig struct {
	// ExternalDir is checked first for each file. Missing files fall back to
	// the embedded copy.
	ExternalDir string
}

// NewTemplateStore creates a new template store
func NewTemplateStore(config *TemplateStoreConfig) (*TemplateStore, error) {
	store := &TemplateStore{}
	if config != nil {
		store.externalDir = config.ExternalDir
	}
	if err := store.Reload(); err != nil {
		return nil, err
	}
	return store, nil
}

// Reload re-reads every file, picking up edits in the external directory
func (s *TemplateStore) Reload() error {
	defaults := GetDefaultTemplates()
	layouts := make(map[printing.DocumentType]StaticTemplate, len(defaults))

	for _, dt := range defaults {
		content, external, err := s.loadTemplateContent(dt.FilePath)
		if err != nil {
			return fmt.Errorf("failed to load template %s: %w", dt.Name, err)
		}
		layouts[dt.DocumentType] = StaticTemplate{
			ID:           generateTemplateID(dt.DocumentType, dt.PaperSize, dt.Orientation),
			DocumentType: dt.DocumentType,
			Name:         dt.Name,
			Description:  dt.Description,
			PaperSize:    dt.PaperSize,
			Orientation:  dt.Orientation,
			Margins:      dt.Margins,
			Content:      content,
			External:     external,
		}
	}

	partials, _, err := s.loadTemplateContent(partialsPath)
	if err != nil {
		return fmt.Errorf("failed to load partials: %w", err)
	}
	stylesheet, _, err := s.loadTemplateContent(stylesheetPath)
	if err != nil {
		return fmt.Errorf("failed to load stylesheet: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.layouts = layouts
	s.partials = partials
	s.stylesheet = stylesheet
	return nil
}

func (s *TemplateStore) loadTemplateContent(embeddedPath string) (string, bool, error) {
	if s.externalDir != "" {
		externalPath := filepath.Join(s.externalDir, filepath.Base(embeddedPath))
		if content, err := os.ReadFile(externalPath); err == nil {
			return string(content), true, nil
		}
	}
	content, err := LoadTemplateContent(embeddedPath)
	return content, false, err
}

// Layout returns the layout for a document type
func (s *TemplateStore) Layout(docType printing.DocumentType) (*StaticTemplate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.layouts[docType]
	if !ok {
		return nil, NewRenderError(ErrCodeTemplateNotFound, "no layout for document type "+docType.String(), nil)
	}
	return &t, nil
}

// GetAll returns every layout in selector order
func (s *TemplateStore) GetAll() []StaticTemplate {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]StaticTemplate, 0, len(s.layouts))
	for _, dt := range printing.SelectableDocumentTypes() {
		if t, ok := s.layouts[dt]; ok {
			out = append(out, t)
		}
	}
	return out
}

// Partials returns the shared {{define}} blocks
func (s *TemplateStore) Partials() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.partials
}

// Stylesheet returns the print-only stylesheet
func (s *TemplateStore) Stylesheet() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stylesheet
}

func generateTemplateID(docType printing.DocumentType, paperSize printing.PaperSize, orientation printing.Orientation) string {
	namespace := uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8") // URL namespace
	name := fmt.Sprintf("loadorder-layout:%s:%s:%s", docType, paperSize, orientation)
	return uuid.NewSHA1(namespace, []byte(name)).String()
}
