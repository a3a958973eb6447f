package consentform

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/consentio/consentio/internal/domain/template"
)

// TemplateStore is the slice of the template domain this service needs: the
// exact-version lookup used to snapshot content at fill time and to resolve
// the freshest copy at render time.
type TemplateStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*template.Template, error)
}

type Service struct {
	repo      Repository
	templates TemplateStore
}

func NewService(repo Repository, templates TemplateStore) *Service {
	return &Service{repo: repo, templates: templates}
}

// Create validates the submission, snapshots the referenced template version
// and persists the form. The form must reference an existing template at
// fill time; the snapshot keeps it renderable if that row is deleted later.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*FilledForm, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	tpl, err := s.templates.GetByID(ctx, req.TemplateID)
	if err != nil {
		if errors.Is(err, template.ErrNotFound) {
			return nil, &ValidationError{Field: "templateId", Reason: "template does not exist"}
		}
		return nil, fmt.Errorf("resolve template: %w", err)
	}

	f := &FilledForm{
		TemplateID:       tpl.ID,
		TemplateTitle:    tpl.Content.Title,
		TemplateSnapshot: tpl.Content,
		PatientData:      req.PatientData,
		PatientPhoto:     req.PatientPhoto,
		ConsentResponses: req.ConsentResponses,
		Signatures:       req.Signatures,
	}
	if err := s.repo.Create(ctx, f); err != nil {
		return nil, fmt.Errorf("create consent form: %w", err)
	}
	return f, nil
}

func (s *Service) GetByID(ctx context.Context, id uuid.UUID) (*FilledForm, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) List(ctx context.Context, limit, offset int) ([]*FilledForm, int, error) {
	return s.repo.List(ctx, limit, offset)
}

func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	return s.repo.Delete(ctx, id)
}

// ResolveForRender returns the form together with the template content to
// render it against. The live row is preferred while it exists; a dangling
// template id falls back to the snapshot taken at fill time and is never an
// error.
func (s *Service) ResolveForRender(ctx context.Context, id uuid.UUID) (*FilledForm, template.TemplateContent, error) {
	f, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, template.TemplateContent{}, err
	}

	tpl, err := s.templates.GetByID(ctx, f.TemplateID)
	if err != nil {
		if errors.Is(err, template.ErrNotFound) {
			return f, f.TemplateSnapshot, nil
		}
		return nil, template.TemplateContent{}, fmt.Errorf("resolve template: %w", err)
	}
	return f, tpl.Content, nil
}
