// Package messaging 提供基于 Redis Stream 的工作流事件发布
package messaging

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"openspec-api/internal/domain/entity"
)

// Stream 流名称
type Stream string

// StreamWorkflow 默认工作流事件流
const StreamWorkflow Stream = "stream:openspec:workflow"

// Stream 条目字段；type、workflow_id、phase 平铺以便消费端无需解码即可过滤
const (
	fieldType       = "type"
	fieldWorkflowID = "workflow_id"
	fieldPhase      = "phase"
	fieldEnvelope   = "envelope"
)

// Envelope 写入 Stream 的事件载体
type Envelope struct {
	ID          string               `json:"id"`
	Event       entity.WorkflowEvent `json:"event"`
	RequestID   string               `json:"request_id,omitempty"`
	TraceID     string               `json:"trace_id,omitempty"`
	PublishedAt time.Time            `json:"published_at"`
}

func (e *Envelope) values() (map[string]any, error) {
	raw, err := json.Marshal(e)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		fieldType:       e.Event.Type,
		fieldWorkflowID: e.Event.WorkflowID,
		fieldPhase:      string(e.Event.Phase),
		fieldEnvelope:   string(raw),
	}, nil
}

// DecodeEnvelope 从 Stream 条目还原事件
func DecodeEnvelope(msg redis.XMessage) (*Envelope, error) {
	raw, ok := msg.Values[fieldEnvelope].(string)
	if !ok {
		return nil, fmt.Errorf("stream entry %s has no %s field", msg.ID, fieldEnvelope)
	}
	var env Envelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		return nil, fmt.Errorf("decode stream entry %s: %w", msg.ID, err)
	}
	return &env, nil
}
