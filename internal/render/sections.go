package render

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/consentio/consentio/internal/domain/consentform"
	"github.com/consentio/consentio/internal/domain/template"
)

const notSpecified = "No especificado"

// Builder turns a (template content, filled form) pair into an ordered block
// sequence. Building is pure over its inputs except for the generation
// timestamp in the footer; image decode failures degrade to placeholders and
// are logged, never propagated.
type Builder struct {
	logo     []byte // institution logo as PNG, optional
	fallback template.HospitalInfo
	logger   zerolog.Logger
	now      func() time.Time
}

func NewBuilder(logo []byte, fallback template.HospitalInfo, logger zerolog.Logger) *Builder {
	return &Builder{logo: logo, fallback: fallback, logger: logger, now: time.Now}
}

// Build assembles the document in its fixed section order. Sections with no
// data for this form are skipped entirely.
func (b *Builder) Build(content template.TemplateContent, form *consentform.FilledForm) []Block {
	var blocks []Block

	blocks = append(blocks, b.header(content)...)
	blocks = append(blocks, b.title(content)...)
	blocks = append(blocks, b.patientData(content, form)...)
	blocks = append(blocks, b.procedure(content)...)
	blocks = append(blocks, b.benefitsRisksAlternatives(content)...)
	blocks = append(blocks, b.textSection("IMPLICACIONES", content.Implications)...)
	blocks = append(blocks, b.textSection("RECOMENDACIONES", content.Recommendations)...)
	blocks = append(blocks, b.consentDeclaration(content)...)
	blocks = append(blocks, b.consentResponse(form)...)
	blocks = append(blocks, b.digitalAuthorization(form)...)
	blocks = append(blocks, b.revocation(content, form)...)
	blocks = append(blocks, b.signatures(form)...)
	blocks = append(blocks, b.footer(content)...)

	return blocks
}

func (b *Builder) hospitalInfo(content template.TemplateContent) template.HospitalInfo {
	if content.HospitalInfo != (template.HospitalInfo{}) {
		return content.HospitalInfo
	}
	return b.fallback
}

func (b *Builder) header(content template.TemplateContent) []Block {
	hosp := b.hospitalInfo(content)

	var hospital []string
	if hosp.Name != "" {
		hospital = append(hospital, hosp.Name)
	}
	if hosp.NIT != "" {
		hospital = append(hospital, "NIT: "+hosp.NIT)
	}
	if hosp.Address != "" {
		hospital = append(hospital, hosp.Address)
	}
	if hosp.Phone != "" {
		hospital = append(hospital, "Tel: "+hosp.Phone)
	}

	meta := content.DocumentMetadata
	var metaLines []string
	if meta.Type != "" {
		metaLines = append(metaLines, "Tipo: "+meta.Type)
	}
	if meta.Code != "" {
		metaLines = append(metaLines, "Código: "+meta.Code)
	}
	if meta.Version != "" {
		metaLines = append(metaLines, "Versión: "+meta.Version)
	}
	if meta.EffectiveDate != "" {
		metaLines = append(metaLines, "Fecha: "+meta.EffectiveDate)
	}

	if len(hospital) == 0 && len(metaLines) == 0 && len(b.logo) == 0 {
		return nil
	}

	return []Block{
		{Kind: KindHeader, Header: &Header{Logo: b.logo, Hospital: hospital, Meta: metaLines}},
		spacer(5),
	}
}

func (b *Builder) title(content template.TemplateContent) []Block {
	if content.Title == "" {
		return nil
	}
	return []Block{
		{Kind: KindTitle, Text: content.Title},
		spacer(4),
	}
}

func (b *Builder) patientData(content template.TemplateContent, form *consentform.FilledForm) []Block {
	if len(content.PatientFields) == 0 {
		return nil
	}

	fields := make([]template.PatientField, len(content.PatientFields))
	copy(fields, content.PatientFields)
	sort.SliceStable(fields, func(i, j int) bool {
		return fields[i].Order < fields[j].Order
	})

	rows := make([][]string, 0, len(fields))
	for _, f := range fields {
		value := form.PatientData[f.ID]
		if value == "" {
			value = notSpecified
		}
		rows = append(rows, []string{f.Label + ":", value})
	}

	blocks := []Block{
		heading("DATOS DEL PACIENTE"),
		{Kind: KindTable, Table: &Table{
			Rows:        rows,
			Widths:      []float64{2.5, 4},
			LabelColumn: true,
		}},
	}

	if form.PatientPhoto != "" {
		photo, err := decodeImage(form.PatientPhoto)
		if err != nil {
			b.logger.Warn().Err(err).Str("form_id", form.ID.String()).
				Msg("patient photo failed to decode, rendering without it")
		} else {
			blocks = append(blocks,
				spacer(4),
				boldParagraph("Fotografía del Paciente:"),
				Block{Kind: KindImage, Image: &Image{
					PNG:    photo,
					Width:  imageWidthMM,
					Height: imageHeightMM,
				}},
			)
		}
	}

	blocks = append(blocks, spacer(4))
	return blocks
}

func (b *Builder) procedure(content template.TemplateContent) []Block {
	if content.ProcedureDescription == "" {
		return nil
	}
	return []Block{
		heading("DESCRIPCIÓN DEL PROCEDIMIENTO"),
		paragraph(content.ProcedureDescription),
		spacer(3),
	}
}

func (b *Builder) benefitsRisksAlternatives(content template.TemplateContent) []Block {
	bra := content.BenefitsRisksAlternatives
	rowCount := len(bra.Benefits)
	if len(bra.Risks) > rowCount {
		rowCount = len(bra.Risks)
	}
	if len(bra.Alternatives) > rowCount {
		rowCount = len(bra.Alternatives)
	}
	if rowCount == 0 {
		return nil
	}

	// Row count follows the longest list; shorter lists leave blank cells.
	rows := make([][]string, rowCount)
	for i := 0; i < rowCount; i++ {
		rows[i] = []string{
			bulletAt(bra.Benefits, i),
			bulletAt(bra.Risks, i),
			bulletAt(bra.Alternatives, i),
		}
	}

	return []Block{
		heading("BENEFICIOS, RIESGOS Y ALTERNATIVAS"),
		{Kind: KindTable, Table: &Table{
			Header: []string{"Beneficios", "Riesgos", "Alternativas"},
			Rows:   rows,
			Widths: []float64{1, 1, 1},
		}},
		spacer(3),
	}
}

func bulletAt(items []string, i int) string {
	if i >= len(items) {
		return ""
	}
	return "• " + items[i]
}

// textSection renders a free-text section, splitting on line breaks so the
// author's own paragraph structure survives instead of reflowing into one
// block.
func (b *Builder) textSection(title, text string) []Block {
	if text == "" {
		return nil
	}

	blocks := []Block{heading(title)}
	if strings.Contains(text, "\n") {
		for _, line := range strings.Split(text, "\n") {
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			blocks = append(blocks, paragraph(line))
		}
	} else {
		blocks = append(blocks, paragraph(text))
	}
	return append(blocks, spacer(4))
}

func (b *Builder) consentDeclaration(content template.TemplateContent) []Block {
	if content.ConsentStatement == "" {
		return nil
	}

	blocks := []Block{heading("DECLARACIÓN DE CONSENTIMIENTO INFORMADO")}
	for _, line := range strings.Split(content.ConsentStatement, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		blocks = append(blocks, classifyDeclarationLine(line))
	}
	return append(blocks, spacer(3))
}

// classifyDeclarationLine picks a presentation style for one line of the
// consent statement. This is formatting only: every line passes through
// verbatim whichever branch it takes.
func classifyDeclarationLine(line string) Block {
	if line[0] >= '0' && line[0] <= '9' && strings.Contains(line, ". ") {
		return listItem(line)
	}
	if strings.Contains(strings.ToUpper(line), "DECLARO QUE") {
		return boldParagraph(line)
	}
	return paragraph(line)
}

func (b *Builder) consentResponse(form *consentform.FilledForm) []Block {
	decision := form.Consent()
	if decision == "" {
		return nil
	}

	accepted := decision == consentform.ConsentAccepted
	text := "RESPUESTA DEL PACIENTE: ✗ NO ACEPTO"
	if accepted {
		text = "RESPUESTA DEL PACIENTE: ✓ SÍ, ACEPTO"
	}
	return []Block{
		{Kind: KindCallout, Callout: &Callout{Text: text, Accepted: accepted}},
		spacer(3),
	}
}

func (b *Builder) digitalAuthorization(form *consentform.FilledForm) []Block {
	decision := form.ConsentResponses["digitalAuthorization"]
	if decision == "" {
		return nil
	}

	accepted := decision == consentform.ConsentAccepted
	text := "Autorización de Tratamiento de Datos: ✗ NO AUTORIZO"
	if accepted {
		text = "Autorización de Tratamiento de Datos: ✓ SÍ AUTORIZO"
	}
	return []Block{
		{Kind: KindCallout, Callout: &Callout{Text: text, Accepted: accepted}},
		spacer(3),
	}
}

func (b *Builder) revocation(content template.TemplateContent, form *consentform.FilledForm) []Block {
	if form.Consent() != consentform.ConsentRejected || content.RevocationStatement == "" {
		return nil
	}
	return b.textSection("REVOCATORIA DEL CONSENTIMIENTO", content.RevocationStatement)
}

// signatureRole is one slot in the signatures section. Values are looked up
// in the form's signature map under <role>_name, <role>_document and
// <role>_signature.
type signatureRole struct {
	role  string
	label string
}

var (
	acceptedSignatureRoles = []signatureRole{
		{"usuario", "USUARIO O PERSONA RESPONSABLE"},
		{"profesional", "PROFESIONAL QUE REALIZA EL PROCEDIMIENTO"},
		{"acompanante", "ACOMPAÑANTE (Opcional)"},
	}
	rejectedSignatureRoles = []signatureRole{
		{"responsable", "PERSONA RESPONSABLE O USUARIO"},
		{"acompanante", "ACOMPAÑANTE (Opcional)"},
	}
)

func (b *Builder) signatures(form *consentform.FilledForm) []Block {
	if len(form.Signatures) == 0 {
		return nil
	}

	rejected := form.Consent() == consentform.ConsentRejected
	title := "FIRMAS DEL CONSENTIMIENTO INFORMADO"
	roles := acceptedSignatureRoles
	if rejected {
		title = "FIRMAS - RECHAZO DEL CONSENTIMIENTO"
		roles = rejectedSignatureRoles
	}

	blocks := []Block{heading(title)}
	emitted := 0
	for _, r := range roles {
		name := form.Signatures[r.role+"_name"]
		document := form.Signatures[r.role+"_document"]
		signature := form.Signatures[r.role+"_signature"]

		if name == "" && document == "" && signature == "" {
			continue
		}
		if emitted > 0 {
			blocks = append(blocks, spacer(4))
		} else {
			blocks = append(blocks, spacer(2))
		}
		emitted++

		blocks = append(blocks, boldParagraph(r.label))
		blocks = append(blocks, Block{Kind: KindTable, Table: &Table{
			Rows: [][]string{{
				"Nombre: " + orNotSpecified(name),
				"Documento: " + orNotSpecified(document),
			}},
			Widths:      []float64{1, 1},
			LabelColumn: false,
		}})

		blocks = append(blocks, b.signatureImage(form, r.role, signature)...)
	}

	if emitted == 0 {
		return nil
	}
	return blocks
}

func (b *Builder) signatureImage(form *consentform.FilledForm, role, signature string) []Block {
	if signature == "" {
		return []Block{paragraph("Firma Digital: Sin firma")}
	}

	img, err := decodeImage(signature)
	if err != nil {
		b.logger.Warn().Err(err).Str("form_id", form.ID.String()).Str("role", role).
			Msg("signature image failed to decode, rendering placeholder")
		return []Block{paragraph("Firma Digital: Firma no disponible")}
	}
	return []Block{
		boldParagraph("Firma Digital:"),
		{Kind: KindImage, Image: &Image{
			PNG:    img,
			Width:  imageWidthMM,
			Height: imageHeightMM,
		}},
	}
}

func orNotSpecified(s string) string {
	if s == "" {
		return notSpecified
	}
	return s
}

func (b *Builder) footer(content template.TemplateContent) []Block {
	hosp := b.hospitalInfo(content)

	var contact []string
	if hosp.Address != "" {
		contact = append(contact, hosp.Address)
	}
	if hosp.Phone != "" {
		contact = append(contact, "Tel: "+hosp.Phone)
	}
	if hosp.Email != "" {
		contact = append(contact, "Email: "+hosp.Email)
	}

	lines := []string{}
	if len(contact) > 0 {
		lines = append(lines, strings.Join(contact, " | "))
	}
	if hosp.Website != "" {
		lines = append(lines, hosp.Website)
	}
	lines = append(lines,
		"Este documento cumple con la Ley 1581 de 2012, Decreto 1377, Decreto 1074 de 2015 y demás normativas vigentes sobre protección de datos personales.",
		fmt.Sprintf("Generado el %s", b.now().Format("02/01/2006 a las 15:04")),
	)

	return []Block{
		spacer(4),
		{Kind: KindFooter, Footer: &Footer{Lines: lines}},
	}
}
