package export

import (
	"archive/zip"
	"fmt"
	"io"
	"strings"
	"time"

	"openspec-api/internal/domain/entity"
	"openspec-api/pkg/metrics"
)

// Documents 待导出的三份规格文档
type Documents struct {
	Title        string
	Prompt       string
	Model        string
	Requirements string
	Design       string
	Tasks        string
}

// DocumentsFrom 从工作流状态提取文档
func DocumentsFrom(s *entity.SpecWorkflowState) Documents {
	return Documents{
		Title:        firstLine(s.Prompt),
		Prompt:       s.Prompt,
		Model:        s.Model,
		Requirements: s.Content.Requirements,
		Design:       s.Content.Design,
		Tasks:        s.Content.Tasks,
	}
}

// IsEmpty 三份文档均为空
func (d Documents) IsEmpty() bool {
	return strings.TrimSpace(d.Requirements) == "" &&
		strings.TrimSpace(d.Design) == "" &&
		strings.TrimSpace(d.Tasks) == ""
}

type namedDoc struct {
	phase entity.Phase
	file  string
	body  string
}

func (d Documents) named() []namedDoc {
	return []namedDoc{
		{entity.PhaseRequirements, "requirements.md", d.Requirements},
		{entity.PhaseDesign, "design.md", d.Design},
		{entity.PhaseTasks, "tasks.md", d.Tasks},
	}
}

// Diagrams 所有文档中的图，编号全局连续
func (d Documents) Diagrams() []Diagram {
	var out []Diagram
	for _, doc := range d.named() {
		for _, dg := range ExtractDiagrams(doc.body) {
			dg.Index = len(out) + 1
			dg.Document = string(doc.phase)
			out = append(out, dg)
		}
	}
	return out
}

// Bundle 写出 zip：三份文档、diagrams/*.mmd 以及 README.md 清单；空文档跳过
func Bundle(w io.Writer, docs Documents, now time.Time) error {
	zw := zip.NewWriter(w)

	var files []string
	write := func(name, body string) error {
		fw, err := zw.CreateHeader(&zip.FileHeader{
			Name:     name,
			Method:   zip.Deflate,
			Modified: now,
		})
		if err != nil {
			return fmt.Errorf("create %s: %w", name, err)
		}
		if _, err := io.WriteString(fw, body); err != nil {
			return fmt.Errorf("write %s: %w", name, err)
		}
		files = append(files, name)
		return nil
	}

	for _, doc := range docs.named() {
		if strings.TrimSpace(doc.body) == "" {
			continue
		}
		if err := write(doc.file, ensureTrailingNewline(doc.body)); err != nil {
			return err
		}
	}

	diagrams := docs.Diagrams()
	for _, dg := range diagrams {
		if err := write("diagrams/"+dg.FileName(), dg.Source+"\n"); err != nil {
			return err
		}
	}

	if err := write("README.md", manifest(docs, diagrams, files, now)); err != nil {
		return err
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("finalize zip: %w", err)
	}

	metrics.ExportsTotal.WithLabelValues("bundle").Inc()
	return nil
}

func manifest(docs Documents, diagrams []Diagram, files []string, now time.Time) string {
	var b strings.Builder
	title := docs.Title
	if title == "" {
		title = "Specification"
	}
	fmt.Fprintf(&b, "# %s\n\n", title)
	fmt.Fprintf(&b, "Generated: %s\n", now.UTC().Format(time.RFC3339))
	if docs.Model != "" {
		fmt.Fprintf(&b, "Model: %s\n", docs.Model)
	}
	b.WriteString("\n## Files\n\n")
	for _, f := range files {
		if strings.HasPrefix(f, "diagrams/") {
			continue
		}
		fmt.Fprintf(&b, "- %s\n", f)
	}
	if len(diagrams) > 0 {
		b.WriteString("\n## Diagrams\n\n")
		for _, dg := range diagrams {
			fmt.Fprintf(&b, "- diagrams/%s (%s, from %s.md)\n", dg.FileName(), dg.Kind, dg.Document)
		}
	}
	if docs.Prompt != "" {
		b.WriteString("\n## Prompt\n\n")
		b.WriteString(ensureTrailingNewline(docs.Prompt))
	}
	return b.String()
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	if r := []rune(s); len(r) > 80 {
		s = string(r[:80])
	}
	return strings.TrimSpace(s)
}

func ensureTrailingNewline(s string) string {
	if strings.HasSuffix(s, "\n") {
		return s
	}
	return s + "\n"
}
