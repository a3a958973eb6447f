package template

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"
)

type mockRepo struct {
	items map[uuid.UUID]*Template
}

func newMockRepo() *mockRepo {
	return &mockRepo{items: make(map[uuid.UUID]*Template)}
}

func (m *mockRepo) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func (m *mockRepo) LockLineage(ctx context.Context, root uuid.UUID) error {
	return nil
}

func (m *mockRepo) Create(ctx context.Context, t *Template) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	t.CreatedAt = time.Now()
	t.UpdatedAt = t.CreatedAt
	stored := *t
	m.items[t.ID] = &stored
	return nil
}

func (m *mockRepo) GetByID(ctx context.Context, id uuid.UUID) (*Template, error) {
	t, ok := m.items[id]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *t
	return &copied, nil
}

func (m *mockRepo) lineage(root uuid.UUID) []*Template {
	var members []*Template
	for _, t := range m.items {
		if t.ID == root || (t.ParentID != nil && *t.ParentID == root) {
			members = append(members, t)
		}
	}
	return members
}

func (m *mockRepo) ListCurrent(ctx context.Context, limit, offset int) ([]*Template, int, error) {
	var current []*Template
	for _, t := range m.items {
		if t.IsCurrent {
			copied := *t
			current = append(current, &copied)
		}
	}
	return current, len(current), nil
}

func (m *mockRepo) ListLineage(ctx context.Context, root uuid.UUID) ([]*Template, error) {
	members := m.lineage(root)
	sort.Slice(members, func(i, j int) bool {
		return members[i].VersionNumber > members[j].VersionNumber
	})
	var out []*Template
	for _, t := range members {
		copied := *t
		out = append(out, &copied)
	}
	return out, nil
}

func (m *mockRepo) DemoteCurrent(ctx context.Context, root uuid.UUID) error {
	for _, t := range m.lineage(root) {
		t.IsCurrent = false
	}
	return nil
}

func (m *mockRepo) NextVersionNumber(ctx context.Context, root uuid.UUID) (int, error) {
	max := 0
	for _, t := range m.lineage(root) {
		if t.VersionNumber > max {
			max = t.VersionNumber
		}
	}
	return max + 1, nil
}

func (m *mockRepo) Delete(ctx context.Context, id uuid.UUID) error {
	if _, ok := m.items[id]; !ok {
		return ErrNotFound
	}
	delete(m.items, id)
	return nil
}

func validContent(title string) TemplateContent {
	return TemplateContent{
		Title: title,
		PatientFields: []PatientField{
			{ID: "nombre", Type: "text", Label: "Nombre completo", Required: true, Order: 1},
			{ID: "documento", Type: "text", Label: "Documento", Required: true, Order: 2},
		},
		ConsentStatement: "DECLARO QUE he sido informado.",
		SignatureBlocks: []SignatureBlock{
			{Role: "usuario", Label: "Usuario"},
			{Role: "profesional", Label: "Profesional"},
		},
	}
}

// assertLineageInvariants checks that exactly one version is current and
// that version numbers form a contiguous 1..N sequence.
func assertLineageInvariants(t *testing.T, repo *mockRepo, root uuid.UUID) {
	t.Helper()

	members := repo.lineage(root)
	currentCount := 0
	seen := make(map[int]bool)
	maxVersion := 0
	for _, m := range members {
		if m.IsCurrent {
			currentCount++
		}
		if seen[m.VersionNumber] {
			t.Errorf("duplicate version number %d", m.VersionNumber)
		}
		seen[m.VersionNumber] = true
		if m.VersionNumber > maxVersion {
			maxVersion = m.VersionNumber
		}
	}

	if currentCount != 1 {
		t.Errorf("expected exactly one current version, got %d", currentCount)
	}
	for v := 1; v <= maxVersion; v++ {
		if !seen[v] {
			t.Errorf("version sequence has a gap at %d", v)
		}
	}
}

func TestCreate_StartsLineage(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo)

	created, err := svc.Create(context.Background(), validContent("Consentimiento de cirugia"), "jperez")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if created.VersionNumber != 1 {
		t.Errorf("expected version 1, got %d", created.VersionNumber)
	}
	if !created.IsCurrent {
		t.Error("expected new template to be current")
	}
	if created.ParentID != nil {
		t.Error("expected root template to have no parent")
	}
	if created.CreatedBy != "jperez" {
		t.Errorf("expected author jperez, got %s", created.CreatedBy)
	}
}

func TestCreate_Validation(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo)
	ctx := context.Background()

	tests := []struct {
		name   string
		mutate func(c *TemplateContent)
	}{
		{"missing title", func(c *TemplateContent) { c.Title = "" }},
		{"no patient fields", func(c *TemplateContent) { c.PatientFields = nil }},
		{"no signature blocks", func(c *TemplateContent) { c.SignatureBlocks = nil }},
		{"unknown field type", func(c *TemplateContent) { c.PatientFields[0].Type = "dropdown" }},
		{"duplicate field id", func(c *TemplateContent) { c.PatientFields[1].ID = c.PatientFields[0].ID }},
		{"field without label", func(c *TemplateContent) { c.PatientFields[0].Label = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			content := validContent("T")
			tt.mutate(&content)
			_, err := svc.Create(ctx, content, "jperez")
			if err == nil {
				t.Fatal("expected validation error")
			}
			if _, ok := err.(*ValidationError); !ok {
				t.Errorf("expected *ValidationError, got %T", err)
			}
		})
	}

	if len(repo.items) != 0 {
		t.Error("failed creates must not persist anything")
	}
}

func TestUpdate_SupersedesAndAppends(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo)
	ctx := context.Background()

	v1, err := svc.Create(ctx, validContent("Original"), "jperez")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	v2, err := svc.Update(ctx, v1.ID, validContent("Editado"), "mgomez")
	if err != nil {
		t.Fatalf("update: %v", err)
	}

	if v2.VersionNumber != 2 {
		t.Errorf("expected version 2, got %d", v2.VersionNumber)
	}
	if v2.ParentID == nil || *v2.ParentID != v1.ID {
		t.Error("expected new version's parent to be the lineage root")
	}
	if !v2.IsCurrent {
		t.Error("expected new version to be current")
	}

	stored1, _ := repo.GetByID(ctx, v1.ID)
	if stored1.IsCurrent {
		t.Error("expected superseded version to no longer be current")
	}

	assertLineageInvariants(t, repo, v1.ID)
}

func TestUpdate_ThroughOldVersionResolvesLineage(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo)
	ctx := context.Background()

	v1, _ := svc.Create(ctx, validContent("Original"), "jperez")
	v2, _ := svc.Update(ctx, v1.ID, validContent("Segunda"), "jperez")

	// Updating via the v2 row (a non-root member) must still append to the
	// same lineage with the root as parent.
	v3, err := svc.Update(ctx, v2.ID, validContent("Tercera"), "jperez")
	if err != nil {
		t.Fatalf("update: %v", err)
	}

	if v3.VersionNumber != 3 {
		t.Errorf("expected version 3, got %d", v3.VersionNumber)
	}
	if v3.ParentID == nil || *v3.ParentID != v1.ID {
		t.Error("expected parent to remain the lineage root")
	}
	assertLineageInvariants(t, repo, v1.ID)
}

func TestUpdate_NotFound(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo)

	_, err := svc.Update(context.Background(), uuid.New(), validContent("X"), "jperez")
	if err != ErrNotFound {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestRestore_CopiesContentIntoNewVersion(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo)
	ctx := context.Background()

	original := validContent("Original")
	original.ProcedureDescription = "Procedimiento inicial"
	v1, _ := svc.Create(ctx, original, "jperez")
	v2, _ := svc.Update(ctx, v1.ID, validContent("Editado"), "jperez")

	v3, err := svc.Restore(ctx, v2.ID, v1.ID, "mgomez")
	if err != nil {
		t.Fatalf("restore: %v", err)
	}

	if v3.VersionNumber != 3 {
		t.Errorf("restore must append, not rewind: expected version 3, got %d", v3.VersionNumber)
	}
	if v3.Content.Title != "Original" || v3.Content.ProcedureDescription != "Procedimiento inicial" {
		t.Error("expected restored content to match the source version verbatim")
	}
	if v3.ParentID == nil || *v3.ParentID != v1.ID {
		t.Error("expected restored version's parent to be the lineage root")
	}
	if v3.CreatedBy != "mgomez" {
		t.Errorf("expected restore author mgomez, got %s", v3.CreatedBy)
	}

	// The source row itself is untouched.
	stored1, _ := repo.GetByID(ctx, v1.ID)
	if stored1.IsCurrent || stored1.VersionNumber != 1 {
		t.Error("restore must not modify the source version row")
	}

	assertLineageInvariants(t, repo, v1.ID)
}

func TestRestore_RejectsForeignLineage(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo)
	ctx := context.Background()

	a1, _ := svc.Create(ctx, validContent("A"), "jperez")
	b1, _ := svc.Create(ctx, validContent("B"), "jperez")

	_, err := svc.Restore(ctx, a1.ID, b1.ID, "jperez")
	if err == nil {
		t.Fatal("expected error restoring a version from another lineage")
	}
	if _, ok := err.(*ValidationError); !ok {
		t.Errorf("expected *ValidationError, got %T", err)
	}
}

func TestRestore_NotFound(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo)
	ctx := context.Background()

	v1, _ := svc.Create(ctx, validContent("A"), "jperez")

	if _, err := svc.Restore(ctx, v1.ID, uuid.New(), "jperez"); err != ErrNotFound {
		t.Errorf("expected ErrNotFound for missing version, got %v", err)
	}
	if _, err := svc.Restore(ctx, uuid.New(), v1.ID, "jperez"); err != ErrNotFound {
		t.Errorf("expected ErrNotFound for missing template, got %v", err)
	}
}

func TestUpdate_AfterDeleteDoesNotReuseVersionNumbers(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo)
	ctx := context.Background()

	v1, _ := svc.Create(ctx, validContent("Original"), "jperez")
	v2, _ := svc.Update(ctx, v1.ID, validContent("Segunda"), "jperez")
	v3, _ := svc.Update(ctx, v2.ID, validContent("Tercera"), "jperez")

	// Hard-delete a middle version. Version numbering must keep growing
	// from the maximum, not from the row count.
	if err := svc.Delete(ctx, v2.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}

	v4, err := svc.Update(ctx, v3.ID, validContent("Cuarta"), "jperez")
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if v4.VersionNumber != 4 {
		t.Errorf("expected version 4 after deleting a middle version, got %d", v4.VersionNumber)
	}
}

func TestListVersions_NewestFirst(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo)
	ctx := context.Background()

	v1, _ := svc.Create(ctx, validContent("Original"), "jperez")
	svc.Update(ctx, v1.ID, validContent("Segunda"), "jperez")
	svc.Update(ctx, v1.ID, validContent("Tercera"), "jperez")

	versions, err := svc.ListVersions(ctx, v1.ID)
	if err != nil {
		t.Fatalf("list versions: %v", err)
	}

	if len(versions) != 3 {
		t.Fatalf("expected 3 versions, got %d", len(versions))
	}
	for i := 0; i < len(versions)-1; i++ {
		if versions[i].VersionNumber < versions[i+1].VersionNumber {
			t.Error("expected versions ordered newest first")
		}
	}
}

func TestListCurrent_OnePerLineage(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo)
	ctx := context.Background()

	a1, _ := svc.Create(ctx, validContent("A"), "jperez")
	svc.Update(ctx, a1.ID, validContent("A2"), "jperez")
	svc.Create(ctx, validContent("B"), "jperez")

	current, total, err := svc.ListCurrent(ctx, 20, 0)
	if err != nil {
		t.Fatalf("list current: %v", err)
	}
	if total != 2 || len(current) != 2 {
		t.Errorf("expected 2 current templates, got %d (total %d)", len(current), total)
	}
	for _, c := range current {
		if !c.IsCurrent {
			t.Error("listCurrent returned a non-current version")
		}
	}
}

func TestDelete_SingleRowNoCascade(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo)
	ctx := context.Background()

	v1, _ := svc.Create(ctx, validContent("Original"), "jperez")
	v2, _ := svc.Update(ctx, v1.ID, validContent("Segunda"), "jperez")

	if err := svc.Delete(ctx, v1.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}

	if _, err := repo.GetByID(ctx, v1.ID); err != ErrNotFound {
		t.Error("expected deleted row to be gone")
	}
	if _, err := repo.GetByID(ctx, v2.ID); err != nil {
		t.Error("delete must not cascade to other lineage members")
	}

	if err := svc.Delete(ctx, uuid.New()); err != ErrNotFound {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
