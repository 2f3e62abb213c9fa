package entity

// 浏览器端存储键，服务端沿用同名字面量以保持兼容
const (
	StorageKeyAPIKey        = "openspec-api-key"
	StorageKeySelectedModel = "openspec-selected-model"
	StorageKeyPrompt        = "openspec-prompt"
	StorageKeyContextFiles  = "openspec-context-files"
	StorageKeyWorkflowState = "openspec-workflow-state"
)
