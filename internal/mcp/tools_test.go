package mcp

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmmcquay/gammon-mcp/internal/cache"
	"github.com/dmmcquay/gammon-mcp/internal/config"
	"github.com/dmmcquay/gammon-mcp/internal/logging"
	"github.com/dmmcquay/gammon-mcp/internal/metrics"
	"github.com/dmmcquay/gammon-mcp/internal/store"
	"github.com/dmmcquay/gammon-mcp/internal/xgarc/xgarctest"
	"github.com/dmmcquay/gammon-mcp/internal/xgmatch/xgmatchtest"
)

const startXGID = "XGID=-b----E-C---eE---c-e----B-:0:0:1:00:0:0:0:0:10"

func makeRequest(args map[string]interface{}) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	require.NotNil(t, result)
	require.NotEmpty(t, result.Content)
	text, ok := result.Content[0].(mcp.TextContent)
	require.True(t, ok, "expected text content, got %T", result.Content[0])
	return text.Text
}

func sampleArchive() []byte {
	return xgarctest.Payload(xgmatchtest.SampleMatch().Bytes())
}

func newTestHandler(t *testing.T, opts Options) *ToolsHandler {
	t.Helper()
	if opts.Collector == nil {
		opts.Collector = metrics.NewCollector()
	}
	return NewToolsHandler(logging.Discard(), opts)
}

func openStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestHandleConvertPosition(t *testing.T) {
	h := newTestHandler(t, Options{})
	ctx := context.Background()

	tests := []struct {
		name   string
		id     string
		format string
	}{
		{"xgid", startXGID, "xgid"},
		{"gnuid", "4HPwATDgc/ABMA:MAEAAAAAAAAA", "gnuid"},
		{"ogid", "11ccccchhhjjjjj:66666888dddddoo:N0N::B::0:0:0:", "ogid"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := h.HandleConvertPosition(ctx, makeRequest(map[string]interface{}{"id": tt.id}))
			require.NoError(t, err)
			require.False(t, result.IsError, resultText(t, result))

			var got struct {
				Format    string            `json:"format"`
				Encodings map[string]string `json:"encodings"`
				Pips      struct{ X, O int } `json:"pips"`
			}
			require.NoError(t, json.Unmarshal([]byte(resultText(t, result)), &got))
			assert.Equal(t, tt.format, got.Format)
			assert.True(t, strings.HasPrefix(got.Encodings["gnuid"], "4HPwATDgc/ABMA:"), got.Encodings["gnuid"])
			assert.True(t, strings.HasPrefix(got.Encodings["xgid"], "XGID=-b----E-C---eE---c-e----B-:"))
			assert.NotEmpty(t, got.Encodings["ogid"])
			assert.Equal(t, 167, got.Pips.X)
			assert.Equal(t, 167, got.Pips.O)
		})
	}

	stats := h.collector.GetStats()
	conversions, ok := stats["conversions"].(map[string]int64)
	require.True(t, ok)
	assert.EqualValues(t, 1, conversions["gnuid"])
}

func TestHandleConvertPositionErrors(t *testing.T) {
	h := newTestHandler(t, Options{})
	ctx := context.Background()

	tests := []struct {
		name string
		args map[string]interface{}
		want string
	}{
		{"missing id", map[string]interface{}{}, "id is required"},
		{"wrong type", map[string]interface{}{"id": 42}, "invalid input"},
		{"unknown format", map[string]interface{}{"id": "hello"}, "unrecognized"},
		{"bad xgid", map[string]interface{}{"id": "XGID=-b----E-C---eE---c-e----B-:0:0:1"}, "malformed XGID"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := h.HandleConvertPosition(ctx, makeRequest(tt.args))
			require.NoError(t, err)
			assert.True(t, result.IsError)
			assert.Contains(t, resultText(t, result), tt.want)
		})
	}
}

func TestHandlePipCount(t *testing.T) {
	h := newTestHandler(t, Options{})
	result, err := h.HandlePipCount(context.Background(), makeRequest(map[string]interface{}{"id": startXGID}))
	require.NoError(t, err)
	assert.Equal(t, "X: 167  O: 167  (O on roll, difference +0)", resultText(t, result))
}

func TestHandleXGToMat(t *testing.T) {
	data := base64.StdEncoding.EncodeToString(sampleArchive())
	ctx := context.Background()

	t.Run("from data", func(t *testing.T) {
		h := newTestHandler(t, Options{})
		result, err := h.HandleXGToMat(ctx, makeRequest(map[string]interface{}{
			"data": data,
			"name": "alice-bob.xg",
		}))
		require.NoError(t, err)
		require.False(t, result.IsError, resultText(t, result))

		var got ConversionResult
		require.NoError(t, json.Unmarshal([]byte(resultText(t, result)), &got))
		assert.Equal(t, "alice-bob.mat", got.FileName)
		assert.Equal(t, "Alice vs Bob", got.Summary.Title)
		assert.Equal(t, 2, got.Summary.Games)
		assert.False(t, got.Cached)
		assert.Empty(t, got.ID)
		assert.True(t, strings.HasPrefix(got.Mat, "3 point match\n"), got.Mat)
	})

	t.Run("from path", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "session.xg")
		require.NoError(t, os.WriteFile(path, sampleArchive(), 0o600))

		h := newTestHandler(t, Options{})
		result, err := h.HandleXGToMat(ctx, makeRequest(map[string]interface{}{"path": path}))
		require.NoError(t, err)

		var got ConversionResult
		require.NoError(t, json.Unmarshal([]byte(resultText(t, result)), &got))
		assert.Equal(t, "session.mat", got.FileName)
	})

	t.Run("wrapped base64", func(t *testing.T) {
		var wrapped strings.Builder
		for i := 0; i < len(data); i += 76 {
			wrapped.WriteString(data[i:min(i+76, len(data))])
			wrapped.WriteString("\n")
		}
		h := newTestHandler(t, Options{})
		result, err := h.HandleXGToMat(ctx, makeRequest(map[string]interface{}{"data": wrapped.String()}))
		require.NoError(t, err)
		assert.False(t, result.IsError, resultText(t, result))
	})

	t.Run("cache hit", func(t *testing.T) {
		mgr := cache.NewManager(&config.CacheConfig{Enabled: true, MaxItems: 4, MaxSizeBytes: 1 << 20}, logging.Discard(), nil)
		h := newTestHandler(t, Options{Cache: mgr})
		req := makeRequest(map[string]interface{}{"data": data})

		first, err := h.HandleXGToMat(ctx, req)
		require.NoError(t, err)
		second, err := h.HandleXGToMat(ctx, req)
		require.NoError(t, err)

		var a, b ConversionResult
		require.NoError(t, json.Unmarshal([]byte(resultText(t, first)), &a))
		require.NoError(t, json.Unmarshal([]byte(resultText(t, second)), &b))
		assert.False(t, a.Cached)
		assert.True(t, b.Cached)
		assert.Equal(t, a.Mat, b.Mat)
	})

	t.Run("save", func(t *testing.T) {
		s := openStore(t)
		h := newTestHandler(t, Options{Store: s})
		result, err := h.HandleXGToMat(ctx, makeRequest(map[string]interface{}{
			"data": data,
			"name": "alice-bob.xg",
			"save": true,
		}))
		require.NoError(t, err)

		var got ConversionResult
		require.NoError(t, json.Unmarshal([]byte(resultText(t, result)), &got))
		require.NotEmpty(t, got.ID)

		rec, err := s.Get(ctx, got.ID)
		require.NoError(t, err)
		assert.Equal(t, "alice-bob.xg", rec.Source)
		assert.Equal(t, "Alice", rec.Player1)
		assert.Equal(t, 3, rec.MatchLength)
		assert.Equal(t, got.Mat, rec.Mat)
	})
}

func TestHandleXGToMatErrors(t *testing.T) {
	ctx := context.Background()
	h := newTestHandler(t, Options{Limits: config.LimitsConfig{MaxArchiveBytes: 64}})

	tests := []struct {
		name string
		args map[string]interface{}
		want string
	}{
		{"no input", map[string]interface{}{}, "provide either data or path"},
		{"bad base64", map[string]interface{}{"data": "!!!"}, "not valid base64"},
		{"not an archive", map[string]interface{}{"data": base64.StdEncoding.EncodeToString([]byte("plain text file"))}, "not an XG archive"},
		{"too large", map[string]interface{}{"data": base64.StdEncoding.EncodeToString(make([]byte, 1024))}, "exceeds 64 bytes"},
		{"missing file", map[string]interface{}{"path": filepath.Join(t.TempDir(), "nope.xg")}, "nope.xg"},
		{"save without library", map[string]interface{}{"data": "AAAA", "save": true}, "library is disabled"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := h.HandleXGToMat(ctx, makeRequest(tt.args))
			require.NoError(t, err)
			assert.True(t, result.IsError)
			assert.Contains(t, resultText(t, result), tt.want)
		})
	}
}

func TestLibraryTools(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)
	h := newTestHandler(t, Options{Store: s, Limits: config.LimitsConfig{MaxListLimit: 2}})

	for i := 0; i < 3; i++ {
		require.NoError(t, s.Save(ctx, &store.Record{Source: "m.xg", Player1: "Alice", Player2: "Bob", MatchLength: 3, Games: 2, Mat: "3 point match\n"}))
	}

	t.Run("list clamps limit", func(t *testing.T) {
		result, err := h.HandleListMatches(ctx, makeRequest(map[string]interface{}{"limit": 50}))
		require.NoError(t, err)

		var got struct {
			Matches []store.Record `json:"matches"`
			Count   int            `json:"count"`
		}
		require.NoError(t, json.Unmarshal([]byte(resultText(t, result)), &got))
		assert.Equal(t, 2, got.Count)
		for _, m := range got.Matches {
			assert.Empty(t, m.Mat)
		}
	})

	t.Run("get", func(t *testing.T) {
		records, err := s.List(ctx, 1)
		require.NoError(t, err)
		require.Len(t, records, 1)

		result, err := h.HandleGetMatch(ctx, makeRequest(map[string]interface{}{"id": records[0].ID}))
		require.NoError(t, err)
		var rec store.Record
		require.NoError(t, json.Unmarshal([]byte(resultText(t, result)), &rec))
		assert.Equal(t, "3 point match\n", rec.Mat)

		result, err = h.HandleGetMatch(ctx, makeRequest(map[string]interface{}{"id": records[0].ID, "includeMat": false}))
		require.NoError(t, err)
		rec = store.Record{}
		require.NoError(t, json.Unmarshal([]byte(resultText(t, result)), &rec))
		assert.Empty(t, rec.Mat)
	})

	t.Run("get errors", func(t *testing.T) {
		tests := []struct {
			id   string
			want string
		}{
			{"", "id is required"},
			{"not-a-ulid", "invalid match id"},
			{"01ARZ3NDEKTSV4RRFFQ69G5FAV", "match not found"},
		}
		for _, tt := range tests {
			result, err := h.HandleGetMatch(ctx, makeRequest(map[string]interface{}{"id": tt.id}))
			require.NoError(t, err)
			assert.True(t, result.IsError, tt.id)
			assert.Contains(t, resultText(t, result), tt.want)
		}
	})
}

func TestHandleServerStatus(t *testing.T) {
	h := newTestHandler(t, Options{
		Status: func() map[string]interface{} {
			return map[string]interface{}{"rateLimit": map[string]interface{}{"enabled": false}}
		},
	})
	h.collector.RecordToolCall("pipCount", "success", 0)

	result, err := h.HandleServerStatus(context.Background(), makeRequest(nil))
	require.NoError(t, err)

	var got map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(resultText(t, result)), &got))
	assert.Contains(t, got, "cache")
	assert.Contains(t, got, "metrics")
	assert.Contains(t, got, "rateLimit")
	assert.Equal(t, false, got["library"])
}

func TestErrorKind(t *testing.T) {
	assert.Equal(t, "internal", errorKind(assert.AnError))
	assert.Equal(t, "not_found", errorKind(store.ErrNotFound))
	assert.Equal(t, "file_not_found", errorKind(os.ErrNotExist))
	assert.False(t, isUserError(assert.AnError))
	assert.True(t, isUserError(errInvalidInput))
}
