package validation

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"prompt-vault/backend/internal/domain/prompt"
	response "prompt-vault/backend/internal/infra/common"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schemas/agents.schema.json
var agentsSchemaRaw []byte

var (
	agentsSchemaOnce sync.Once
	agentsSchema     *jsonschema.Schema
	agentsSchemaErr  error
)

// AgentDocument 是导入接口的请求体。
type AgentDocument struct {
	Agents []prompt.AgentItem `json:"agents"`
}

func compiledAgentsSchema() (*jsonschema.Schema, error) {
	agentsSchemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource("agents.schema.json", bytes.NewReader(agentsSchemaRaw)); err != nil {
			agentsSchemaErr = fmt.Errorf("load agents schema: %w", err)
			return
		}
		agentsSchema, agentsSchemaErr = compiler.Compile("agents.schema.json")
		if agentsSchemaErr != nil {
			agentsSchemaErr = fmt.Errorf("compile agents schema: %w", agentsSchemaErr)
		}
	})
	return agentsSchema, agentsSchemaErr
}

// ValidateAgentDocument 按交换格式的 JSON Schema 校验导入内容并解码，所有违规项一次性返回。
func ValidateAgentDocument(raw []byte) (AgentDocument, error) {
	schema, err := compiledAgentsSchema()
	if err != nil {
		return AgentDocument{}, err
	}

	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return AgentDocument{}, response.NewError(http.StatusBadRequest, response.ErrInvalidJSON, "请求体格式错误")
	}

	if err := schema.Validate(doc); err != nil {
		var verr *jsonschema.ValidationError
		if !errors.As(err, &verr) {
			return AgentDocument{}, fmt.Errorf("validate agents: %w", err)
		}
		violations := collectViolations(verr, nil)
		messages := make([]string, 0, len(violations))
		for _, v := range violations {
			messages = append(messages, v.Field+": "+v.Message)
		}
		return AgentDocument{}, response.NewError(http.StatusBadRequest, response.ErrValidation, "导入数据格式错误: "+strings.Join(messages, ", ")).
			WithDetails(violations)
	}

	var out AgentDocument
	if err := json.Unmarshal(raw, &out); err != nil {
		return AgentDocument{}, response.NewError(http.StatusBadRequest, response.ErrInvalidJSON, "请求体格式错误")
	}
	return out, nil
}

// collectViolations 只保留叶子节点，上层节点只是 "doesn't validate" 的汇总。
func collectViolations(verr *jsonschema.ValidationError, acc []FieldViolation) []FieldViolation {
	if len(verr.Causes) == 0 {
		field := verr.InstanceLocation
		if field == "" {
			field = "/"
		}
		return append(acc, FieldViolation{Field: field, Message: verr.Message})
	}
	for _, cause := range verr.Causes {
		acc = collectViolations(cause, acc)
	}
	return acc
}
