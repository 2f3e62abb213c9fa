// Package export 提取 Mermaid 图并打包规格文档
package export

import (
	"fmt"
	"regexp"
	"strings"
)

// Diagram 文档中的一个 Mermaid 图
type Diagram struct {
	Index int `json:"index"`
	// Title 取自图之前最近的标题
	Title  string `json:"title"`
	Kind   string `json:"kind"`
	Source string `json:"source"`
	// Document 来源文档（requirements / design / tasks）
	Document string `json:"document,omitempty"`
}

var (
	headingPattern = regexp.MustCompile(`^\s{0,3}#{1,6}\s+(.+?)\s*#*\s*$`)
	fencePattern   = regexp.MustCompile("^\\s{0,3}(```+|~~~+)\\s*(\\S*)")
	slugPattern    = regexp.MustCompile(`[^a-z0-9]+`)
)

// ExtractDiagrams 按出现顺序提取 ```mermaid 代码块；未闭合的代码块延伸到文末
func ExtractDiagrams(markdown string) []Diagram {
	var (
		out     []Diagram
		heading string
		inFence bool
		fence   string
		mermaid bool
		body    []string
	)

	flush := func() {
		inFence = false
		if !mermaid {
			return
		}
		src := strings.TrimSpace(strings.Join(body, "\n"))
		if src == "" {
			return
		}
		idx := len(out) + 1
		title := heading
		if title == "" {
			title = fmt.Sprintf("Diagram %d", idx)
		}
		out = append(out, Diagram{
			Index:  idx,
			Title:  title,
			Kind:   diagramKind(src),
			Source: src,
		})
	}

	for line := range strings.Lines(markdown) {
		line = strings.TrimRight(line, "\r\n")

		if !inFence {
			if m := fencePattern.FindStringSubmatch(line); m != nil {
				inFence = true
				fence = m[1]
				mermaid = strings.EqualFold(m[2], "mermaid")
				body = body[:0]
				continue
			}
			if m := headingPattern.FindStringSubmatch(line); m != nil {
				heading = strings.TrimSpace(m[1])
			}
			continue
		}

		if t := strings.TrimSpace(line); strings.HasPrefix(t, fence[:3]) &&
			strings.Trim(t, fence[:1]) == "" && len(t) >= len(fence) {
			flush()
			continue
		}
		body = append(body, line)
	}
	if inFence {
		flush()
	}
	return out
}

// diagramKind 首个非注释行的第一个词，如 graph / sequenceDiagram / erDiagram
func diagramKind(src string) string {
	for _, line := range strings.Split(src, "\n") {
		l := strings.TrimSpace(line)
		if l == "" || strings.HasPrefix(l, "%%") || l == "---" {
			continue
		}
		if fields := strings.Fields(l); len(fields) > 0 {
			return fields[0]
		}
	}
	return ""
}

// Slug 生成文件名片段
func Slug(title string) string {
	s := slugPattern.ReplaceAllString(strings.ToLower(title), "-")
	s = strings.Trim(s, "-")
	if len(s) > 60 {
		s = strings.TrimRight(s[:60], "-")
	}
	if s == "" {
		s = "diagram"
	}
	return s
}

// FileName diagrams/ 目录下的文件名，如 01-system-architecture.mmd
func (d Diagram) FileName() string {
	return fmt.Sprintf("%02d-%s.mmd", d.Index, Slug(d.Title))
}

// DiagramSource 返回第 index 个图（从 1 开始）的 .mmd 文本
func DiagramSource(diagrams []Diagram, index int) (string, bool) {
	if index < 1 || index > len(diagrams) {
		return "", false
	}
	return diagrams[index-1].Source + "\n", true
}
