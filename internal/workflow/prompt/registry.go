// Package prompt 管理各阶段的提示词模板
package prompt

import (
	"bytes"
	"embed"
	"fmt"
	"strings"
	"sync"
	"text/template"

	"openspec-api/internal/domain/entity"
)

//go:embed templates/*.txt
var templatesFS embed.FS

type PromptID string

const (
	PromptRequirementsV1 PromptID = "requirements_v1"
	PromptDesignV1       PromptID = "design_v1"
	PromptTasksV1        PromptID = "tasks_v1"
)

// ForPhase 返回阶段对应的模板
func ForPhase(p entity.Phase) (PromptID, error) {
	switch p {
	case entity.PhaseRequirements:
		return PromptRequirementsV1, nil
	case entity.PhaseDesign:
		return PromptDesignV1, nil
	case entity.PhaseTasks:
		return PromptTasksV1, nil
	default:
		return "", fmt.Errorf("no prompt for phase %s", p)
	}
}

// Vars 模板变量
type Vars struct {
	Prompt       string
	Requirements string
	Design       string
	// Previous 与 Feedback 同时存在时要求模型在上一版基础上修改
	Previous     string
	Feedback     string
	ContextFiles []string
}

// Rendered 渲染后的系统与用户提示词
type Rendered struct {
	System string
	User   string
}

type chatTemplate struct {
	system *template.Template
	user   *template.Template
}

type Registry struct {
	mu    sync.RWMutex
	cache map[PromptID]*chatTemplate
}

func NewRegistry() *Registry {
	return &Registry{
		cache: make(map[PromptID]*chatTemplate),
	}
}

// Render 渲染指定模板
func (r *Registry) Render(id PromptID, vars Vars) (*Rendered, error) {
	tpl, err := r.chatTemplate(id)
	if err != nil {
		return nil, err
	}

	var sys, user bytes.Buffer
	if err := tpl.system.Execute(&sys, vars); err != nil {
		return nil, fmt.Errorf("render %s system prompt: %w", id, err)
	}
	if err := tpl.user.Execute(&user, vars); err != nil {
		return nil, fmt.Errorf("render %s user prompt: %w", id, err)
	}
	return &Rendered{
		System: strings.TrimSpace(sys.String()),
		User:   strings.TrimSpace(user.String()),
	}, nil
}

func (r *Registry) chatTemplate(id PromptID) (*chatTemplate, error) {
	if r == nil {
		return nil, fmt.Errorf("prompt registry is nil")
	}

	r.mu.RLock()
	if tpl, ok := r.cache[id]; ok {
		r.mu.RUnlock()
		return tpl, nil
	}
	r.mu.RUnlock()

	r.mu.Lock()
	defer r.mu.Unlock()
	if tpl, ok := r.cache[id]; ok {
		return tpl, nil
	}

	systemPath, userPath, err := resolvePromptFiles(id)
	if err != nil {
		return nil, err
	}
	system, err := parseEmbedded(systemPath)
	if err != nil {
		return nil, err
	}
	user, err := parseEmbedded(userPath)
	if err != nil {
		return nil, err
	}

	tpl := &chatTemplate{system: system, user: user}
	r.cache[id] = tpl
	return tpl, nil
}

func resolvePromptFiles(id PromptID) (systemFile string, userFile string, err error) {
	switch id {
	case PromptRequirementsV1:
		return "templates/requirements_v1.system.txt", "templates/requirements_v1.user.txt", nil
	case PromptDesignV1:
		return "templates/design_v1.system.txt", "templates/design_v1.user.txt", nil
	case PromptTasksV1:
		return "templates/tasks_v1.system.txt", "templates/tasks_v1.user.txt", nil
	default:
		return "", "", fmt.Errorf("unknown prompt id: %s", id)
	}
}

func parseEmbedded(path string) (*template.Template, error) {
	b, err := templatesFS.ReadFile(path)
	if err != nil {
		return nil, err
	}
	tpl, err := template.New(path).Option("missingkey=error").Parse(strings.TrimSpace(string(b)))
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return tpl, nil
}
