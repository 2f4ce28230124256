package mcp

import (
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
)

// decode unmarshals tool arguments into a typed request.
func decode[T any](req mcp.CallToolRequest) (T, error) {
	var out T
	args := req.Params.Arguments
	if args == nil {
		args = map[string]interface{}{}
	}
	b, err := json.Marshal(args)
	if err != nil {
		return out, fmt.Errorf("invalid arguments: %w", err)
	}
	if err := json.Unmarshal(b, &out); err != nil {
		return out, fmt.Errorf("invalid arguments: %w", err)
	}
	return out, nil
}

type positionRequest struct {
	ID string `json:"id"`
}

type xgToMatRequest struct {
	Data string `json:"data"`
	Path string `json:"path"`
	Name string `json:"name"`
	Save bool   `json:"save"`
}

type listMatchesRequest struct {
	Limit int `json:"limit"`
}

type getMatchRequest struct {
	ID      string `json:"id"`
	WithMat *bool  `json:"includeMat"`
}

func jsonResult(v interface{}) (*mcp.CallToolResult, error) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to format result: %w", err)
	}
	return mcp.NewToolResultText(string(b)), nil
}
