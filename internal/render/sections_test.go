package render

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/png"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/consentio/consentio/internal/domain/consentform"
	"github.com/consentio/consentio/internal/domain/template"
)

func testBuilder() *Builder {
	b := NewBuilder(nil, template.HospitalInfo{}, zerolog.Nop())
	b.now = func() time.Time {
		return time.Date(2025, 6, 15, 10, 30, 0, 0, time.UTC)
	}
	return b
}

func testContent() template.TemplateContent {
	return template.TemplateContent{
		Title: "Consentimiento Informado para Endoscopia",
		HospitalInfo: template.HospitalInfo{
			Name:    "Hospital San Rafael",
			NIT:     "900123456-7",
			Address: "Calle 10 # 5-51",
			Phone:   "601 555 0100",
			Email:   "info@sanrafael.co",
		},
		DocumentMetadata: template.DocumentMetadata{
			Type:    "Consentimiento",
			Code:    "GC-F-012",
			Version: "3",
		},
		PatientFields: []template.PatientField{
			{ID: "documento", Type: "text", Label: "Documento", Order: 2},
			{ID: "nombre", Type: "text", Label: "Nombre completo", Order: 1},
		},
		SignatureBlocks: []template.SignatureBlock{
			{Role: "usuario", Label: "Usuario"},
		},
	}
}

func testForm(consent string) *consentform.FilledForm {
	return &consentform.FilledForm{
		ID:               uuid.New(),
		TemplateID:       uuid.New(),
		PatientData:      map[string]string{"nombre": "Ana María Rojas"},
		ConsentResponses: map[string]string{"consent": consent},
	}
}

// tinyPNG returns a base64 data URI of a 1x1 PNG.
func tinyPNG(t *testing.T) string {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 1, 1))); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes())
}

func blocksOfKind(blocks []Block, kind Kind) []Block {
	var out []Block
	for _, b := range blocks {
		if b.Kind == kind {
			out = append(out, b)
		}
	}
	return out
}

func findHeading(blocks []Block, text string) bool {
	for _, b := range blocks {
		if b.Kind == KindHeading && b.Text == text {
			return true
		}
	}
	return false
}

func TestBuild_Deterministic(t *testing.T) {
	b := testBuilder()
	content := testContent()
	form := testForm("si")

	first := b.Build(content, form)
	second := b.Build(content, form)

	if !reflect.DeepEqual(first, second) {
		t.Error("repeated builds over the same inputs produced different block sequences")
	}
}

func TestPatientData_SortedByOrderWithFallback(t *testing.T) {
	b := testBuilder()
	blocks := b.patientData(testContent(), testForm("si"))

	tables := blocksOfKind(blocks, KindTable)
	if len(tables) != 1 {
		t.Fatalf("expected 1 table, got %d", len(tables))
	}
	rows := tables[0].Table.Rows
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	// Declared order is documento(2), nombre(1); the table must follow the
	// ordinal, not declaration order.
	if rows[0][0] != "Nombre completo:" {
		t.Errorf("expected nombre first, got %q", rows[0][0])
	}
	if rows[0][1] != "Ana María Rojas" {
		t.Errorf("unexpected value: %q", rows[0][1])
	}
	if rows[1][1] != notSpecified {
		t.Errorf("missing value must render %q, got %q", notSpecified, rows[1][1])
	}
}

func TestPatientData_PhotoDecodeFailureDegrades(t *testing.T) {
	b := testBuilder()
	form := testForm("si")
	form.PatientPhoto = "data:image/png;base64,not-valid-base64!!!"

	blocks := b.patientData(testContent(), form)

	if imgs := blocksOfKind(blocks, KindImage); len(imgs) != 0 {
		t.Errorf("broken photo must be skipped, got %d image blocks", len(imgs))
	}
	if tables := blocksOfKind(blocks, KindTable); len(tables) != 1 {
		t.Error("patient table must still render when the photo is broken")
	}
}

func TestPatientData_PhotoEmbedded(t *testing.T) {
	b := testBuilder()
	form := testForm("si")
	form.PatientPhoto = tinyPNG(t)

	blocks := b.patientData(testContent(), form)

	imgs := blocksOfKind(blocks, KindImage)
	if len(imgs) != 1 {
		t.Fatalf("expected 1 image block, got %d", len(imgs))
	}
	if imgs[0].Image.Width != imageWidthMM || imgs[0].Image.Height != imageHeightMM {
		t.Error("photo must embed at the fixed thumbnail size")
	}
}

func TestBenefitsRisks_RowCountIsMaxOfLists(t *testing.T) {
	b := testBuilder()
	content := testContent()
	content.BenefitsRisksAlternatives = template.BenefitsRisksAlternatives{
		Benefits:     []string{"Diagnóstico temprano", "Tratamiento oportuno", "Menor estancia"},
		Risks:        []string{"Sangrado"},
		Alternatives: []string{"Radiografía", "Ecografía"},
	}

	blocks := b.benefitsRisksAlternatives(content)
	tables := blocksOfKind(blocks, KindTable)
	if len(tables) != 1 {
		t.Fatalf("expected 1 table, got %d", len(tables))
	}

	tbl := tables[0].Table
	if len(tbl.Rows) != 3 {
		t.Fatalf("expected 3 rows (longest list), got %d", len(tbl.Rows))
	}
	if tbl.Rows[0][0] != "• Diagnóstico temprano" {
		t.Errorf("expected bulleted item, got %q", tbl.Rows[0][0])
	}
	if tbl.Rows[1][1] != "" || tbl.Rows[2][1] != "" {
		t.Error("shorter list must leave blank cells, not wrap or repeat")
	}
	if tbl.Rows[2][2] != "" {
		t.Error("alternatives column must be blank past its length")
	}
}

func TestBenefitsRisks_EmptySkipsSection(t *testing.T) {
	b := testBuilder()
	if blocks := b.benefitsRisksAlternatives(testContent()); blocks != nil {
		t.Errorf("empty lists must emit no blocks, got %d", len(blocks))
	}
}

func TestTextSection_SplitsOnLineBreaks(t *testing.T) {
	b := testBuilder()
	blocks := b.textSection("IMPLICACIONES", "Primera implicación.\n\nSegunda implicación.")

	paras := blocksOfKind(blocks, KindParagraph)
	if len(paras) != 2 {
		t.Fatalf("expected 2 paragraphs, got %d", len(paras))
	}
	if paras[0].Text != "Primera implicación." || paras[1].Text != "Segunda implicación." {
		t.Errorf("line breaks must split into separate paragraphs: %+v", paras)
	}
}

func TestConsentDeclaration_LineClassification(t *testing.T) {
	statement := strings.Join([]string{
		"Yo, el abajo firmante, en pleno uso de mis facultades:",
		"1. He sido informado del procedimiento.",
		"2. He podido hacer preguntas.",
		"DECLARO QUE he comprendido la información recibida.",
		"Firmo en constancia de lo anterior.",
	}, "\n")

	content := testContent()
	content.ConsentStatement = statement

	b := testBuilder()
	blocks := b.consentDeclaration(content)

	var items, bold, plain []string
	for _, blk := range blocks {
		switch {
		case blk.Kind == KindListItem:
			items = append(items, blk.Text)
		case blk.Kind == KindParagraph && blk.Bold:
			bold = append(bold, blk.Text)
		case blk.Kind == KindParagraph:
			plain = append(plain, blk.Text)
		}
	}

	if len(items) != 2 {
		t.Errorf("expected 2 numbered items, got %d", len(items))
	}
	if len(bold) != 1 || !strings.Contains(bold[0], "DECLARO QUE") {
		t.Errorf("declaration line must render bold, got %v", bold)
	}
	if len(plain) != 2 {
		t.Errorf("expected 2 plain paragraphs, got %d", len(plain))
	}

	// Classification is formatting only: every input line must survive
	// verbatim.
	var rendered []string
	rendered = append(rendered, items...)
	rendered = append(rendered, bold...)
	rendered = append(rendered, plain...)
	for _, line := range strings.Split(statement, "\n") {
		found := false
		for _, r := range rendered {
			if r == line {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("line dropped or altered by classification: %q", line)
		}
	}
}

func TestConsentResponse_Callout(t *testing.T) {
	b := testBuilder()

	accepted := b.consentResponse(testForm("si"))
	callouts := blocksOfKind(accepted, KindCallout)
	if len(callouts) != 1 || !callouts[0].Callout.Accepted {
		t.Fatalf("expected accepted callout, got %+v", callouts)
	}
	if !strings.Contains(callouts[0].Callout.Text, "SÍ, ACEPTO") {
		t.Errorf("unexpected accept text: %q", callouts[0].Callout.Text)
	}

	rejected := b.consentResponse(testForm("no"))
	callouts = blocksOfKind(rejected, KindCallout)
	if len(callouts) != 1 || callouts[0].Callout.Accepted {
		t.Fatalf("expected rejected callout, got %+v", callouts)
	}
	if !strings.Contains(callouts[0].Callout.Text, "NO ACEPTO") {
		t.Errorf("unexpected reject text: %q", callouts[0].Callout.Text)
	}

	form := testForm("si")
	form.ConsentResponses = map[string]string{}
	if blocks := b.consentResponse(form); blocks != nil {
		t.Error("missing decision must emit no callout")
	}
}

func TestDigitalAuthorization_IndependentOfConsent(t *testing.T) {
	b := testBuilder()
	form := testForm("no")
	form.ConsentResponses["digitalAuthorization"] = "si"

	blocks := b.digitalAuthorization(form)
	callouts := blocksOfKind(blocks, KindCallout)
	if len(callouts) != 1 || !callouts[0].Callout.Accepted {
		t.Fatalf("expected accepted authorization callout, got %+v", callouts)
	}
	if !strings.Contains(callouts[0].Callout.Text, "SÍ AUTORIZO") {
		t.Errorf("unexpected text: %q", callouts[0].Callout.Text)
	}

	if blocks := b.digitalAuthorization(testForm("si")); blocks != nil {
		t.Error("absent authorization must emit nothing")
	}
}

func TestRevocation_OnlyOnRejectionWithText(t *testing.T) {
	b := testBuilder()
	content := testContent()
	content.RevocationStatement = "Puede revocar este consentimiento en cualquier momento."

	if blocks := b.revocation(content, testForm("no")); !findHeading(blocks, "REVOCATORIA DEL CONSENTIMIENTO") {
		t.Error("rejection with revocation text must emit the section")
	}
	if blocks := b.revocation(content, testForm("si")); blocks != nil {
		t.Error("accepted consent must not emit the revocation section")
	}

	content.RevocationStatement = ""
	if blocks := b.revocation(content, testForm("no")); blocks != nil {
		t.Error("rejection without revocation text must not emit the section")
	}
}

func TestSignatures_AcceptedRoles(t *testing.T) {
	b := testBuilder()
	form := testForm("si")
	form.Signatures = map[string]string{
		"usuario_name":     "Ana María Rojas",
		"usuario_document": "1020345678",
		"profesional_name": "Dr. Luis Medina",
		"acompanante_name": "",
		"responsable_name": "No debería mostrarse",
	}

	blocks := b.signatures(form)
	if !findHeading(blocks, "FIRMAS DEL CONSENTIMIENTO INFORMADO") {
		t.Error("accepted consent must use the standard signatures heading")
	}

	var labels []string
	for _, blk := range blocks {
		if blk.Kind != KindParagraph || !blk.Bold {
			continue
		}
		for _, prefix := range []string{"USUARIO", "PROFESIONAL", "ACOMPAÑANTE", "PERSONA RESPONSABLE"} {
			if strings.HasPrefix(blk.Text, prefix) {
				labels = append(labels, blk.Text)
				break
			}
		}
	}
	if len(labels) != 2 {
		t.Fatalf("expected 2 emitted role blocks (usuario, profesional), got %v", labels)
	}
	for _, l := range labels {
		if strings.HasPrefix(l, "PERSONA RESPONSABLE") {
			t.Error("rejection-only role must not render on accepted consent")
		}
	}
}

func TestSignatures_RejectedRoles(t *testing.T) {
	b := testBuilder()
	form := testForm("no")
	form.Signatures = map[string]string{
		"responsable_name":     "Carlos Pinto",
		"responsable_document": "79456123",
		"usuario_name":         "No debería mostrarse",
	}

	blocks := b.signatures(form)
	if !findHeading(blocks, "FIRMAS - RECHAZO DEL CONSENTIMIENTO") {
		t.Error("rejected consent must use the rejection signatures heading")
	}

	for _, blk := range blocks {
		if blk.Kind == KindParagraph && blk.Bold && strings.HasPrefix(blk.Text, "USUARIO") {
			t.Error("accept-only role must not render on rejected consent")
		}
	}

	tables := blocksOfKind(blocks, KindTable)
	if len(tables) != 1 {
		t.Fatalf("expected 1 signature table, got %d", len(tables))
	}
	if tables[0].Table.Rows[0][0] != "Nombre: Carlos Pinto" {
		t.Errorf("unexpected name cell: %q", tables[0].Table.Rows[0][0])
	}
}

func TestSignatures_Placeholders(t *testing.T) {
	b := testBuilder()

	form := testForm("si")
	form.Signatures = map[string]string{"usuario_name": "Ana"}
	blocks := b.signatures(form)
	found := false
	for _, blk := range blocks {
		if blk.Kind == KindParagraph && blk.Text == "Firma Digital: Sin firma" {
			found = true
		}
	}
	if !found {
		t.Error("role without a signature image must render the no-signature placeholder")
	}

	form.Signatures["usuario_signature"] = "data:image/png;base64,%%%broken%%%"
	blocks = b.signatures(form)
	found = false
	for _, blk := range blocks {
		if blk.Kind == KindParagraph && blk.Text == "Firma Digital: Firma no disponible" {
			found = true
		}
	}
	if !found {
		t.Error("undecodable signature must render the unavailable placeholder")
	}

	form.Signatures["usuario_signature"] = tinyPNG(t)
	blocks = b.signatures(form)
	if imgs := blocksOfKind(blocks, KindImage); len(imgs) != 1 {
		t.Errorf("valid signature must embed an image, got %d image blocks", len(imgs))
	}
}

func TestSignatures_SkippedWhenAllRolesEmpty(t *testing.T) {
	b := testBuilder()
	form := testForm("si")
	form.Signatures = map[string]string{"usuario_name": "", "profesional_document": ""}

	if blocks := b.signatures(form); blocks != nil {
		t.Errorf("all-empty roles must emit no section, got %d blocks", len(blocks))
	}
}

func TestFooter_LegalBoilerplateAndTimestamp(t *testing.T) {
	b := testBuilder()
	blocks := b.footer(testContent())

	footers := blocksOfKind(blocks, KindFooter)
	if len(footers) != 1 {
		t.Fatalf("expected 1 footer block, got %d", len(footers))
	}

	joined := strings.Join(footers[0].Footer.Lines, "\n")
	if !strings.Contains(joined, "Ley 1581 de 2012") {
		t.Error("footer must carry the data-protection boilerplate")
	}
	if !strings.Contains(joined, "Generado el 15/06/2025 a las 10:30") {
		t.Errorf("footer must carry the generation timestamp, got %q", joined)
	}
	if !strings.Contains(joined, "info@sanrafael.co") {
		t.Error("footer must carry the institution contact line")
	}
}

func TestFooter_WebsiteOnItsOwnLine(t *testing.T) {
	b := testBuilder()
	content := testContent()
	content.HospitalInfo.Website = "www.sanrafael.co"

	blocks := b.footer(content)
	footers := blocksOfKind(blocks, KindFooter)
	if len(footers) != 1 {
		t.Fatalf("expected 1 footer block, got %d", len(footers))
	}

	lines := footers[0].Footer.Lines
	found := -1
	for i, line := range lines {
		if line == "www.sanrafael.co" {
			found = i
		}
	}
	if found == -1 {
		t.Fatalf("footer must carry the website, got %q", lines)
	}
	if found == 0 || !strings.Contains(lines[found-1], "info@sanrafael.co") {
		t.Error("website line must follow the contact line")
	}
}

func TestHeader_FallbackHospitalInfo(t *testing.T) {
	fallback := template.HospitalInfo{Name: "Clínica Central", Phone: "601 555 0200"}
	b := NewBuilder(nil, fallback, zerolog.Nop())
	b.now = time.Now

	content := testContent()
	content.HospitalInfo = template.HospitalInfo{}

	blocks := b.header(content)
	headers := blocksOfKind(blocks, KindHeader)
	if len(headers) != 1 {
		t.Fatalf("expected 1 header block, got %d", len(headers))
	}
	if headers[0].Header.Hospital[0] != "Clínica Central" {
		t.Errorf("empty content hospital info must fall back to configuration, got %v", headers[0].Header.Hospital)
	}
}
