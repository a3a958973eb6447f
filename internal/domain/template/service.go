package template

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// Service implements the versioning rules over the repository: creates start
// a lineage at version 1, edits and restores supersede the current version
// and append a new one atomically.
type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) Create(ctx context.Context, content TemplateContent, author string) (*Template, error) {
	if err := content.Validate(); err != nil {
		return nil, err
	}
	if author == "" {
		return nil, &ValidationError{Field: "createdBy", Reason: "is required"}
	}

	t := &Template{
		VersionNumber: 1,
		IsCurrent:     true,
		CreatedBy:     author,
		Content:       content,
	}
	if err := s.repo.Create(ctx, t); err != nil {
		return nil, fmt.Errorf("create template: %w", err)
	}
	return t, nil
}

// Update supersedes the lineage's current version and appends newContent as
// the new latest one. The demote and insert happen inside one transaction
// with the lineage lock held, so concurrent editors are serialized and a
// failure midway never leaves the lineage without a current version.
func (s *Service) Update(ctx context.Context, id uuid.UUID, newContent TemplateContent, author string) (*Template, error) {
	if err := newContent.Validate(); err != nil {
		return nil, err
	}

	var created *Template
	err := s.repo.InTx(ctx, func(ctx context.Context) error {
		existing, err := s.repo.GetByID(ctx, id)
		if err != nil {
			return err
		}

		root := existing.LineageRoot()
		if err := s.repo.LockLineage(ctx, root); err != nil {
			return err
		}

		next, err := s.repo.NextVersionNumber(ctx, root)
		if err != nil {
			return err
		}
		if err := s.repo.DemoteCurrent(ctx, root); err != nil {
			return err
		}

		created = &Template{
			ParentID:      &root,
			VersionNumber: next,
			IsCurrent:     true,
			CreatedBy:     author,
			Content:       newContent,
		}
		return s.repo.Create(ctx, created)
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// Restore appends a new latest version whose content is copied verbatim from
// an earlier version. History is never rewound: the source row stays
// untouched and the lineage's maximum version number only grows.
func (s *Service) Restore(ctx context.Context, id, versionID uuid.UUID, author string) (*Template, error) {
	var created *Template
	err := s.repo.InTx(ctx, func(ctx context.Context) error {
		current, err := s.repo.GetByID(ctx, id)
		if err != nil {
			return err
		}
		source, err := s.repo.GetByID(ctx, versionID)
		if err != nil {
			return err
		}

		root := current.LineageRoot()
		if source.LineageRoot() != root {
			return &ValidationError{
				Field:  "versionId",
				Reason: "belongs to a different template lineage",
			}
		}

		if err := s.repo.LockLineage(ctx, root); err != nil {
			return err
		}

		next, err := s.repo.NextVersionNumber(ctx, root)
		if err != nil {
			return err
		}
		if err := s.repo.DemoteCurrent(ctx, root); err != nil {
			return err
		}

		created = &Template{
			ParentID:      &root,
			VersionNumber: next,
			IsCurrent:     true,
			CreatedBy:     author,
			Content:       source.Content,
		}
		return s.repo.Create(ctx, created)
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (s *Service) GetByID(ctx context.Context, id uuid.UUID) (*Template, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) ListCurrent(ctx context.Context, limit, offset int) ([]*Template, int, error) {
	return s.repo.ListCurrent(ctx, limit, offset)
}

// ListVersions returns every version of the lineage the given template
// belongs to, newest first.
func (s *Service) ListVersions(ctx context.Context, id uuid.UUID) ([]*Template, error) {
	t, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.repo.ListLineage(ctx, t.LineageRoot())
}

// Delete hard-deletes a single version. Other versions of the lineage and
// filled forms referencing the deleted row are left untouched.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	return s.repo.Delete(ctx, id)
}
