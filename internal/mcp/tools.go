package mcp

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/dmmcquay/gammon-mcp/internal/board"
	"github.com/dmmcquay/gammon-mcp/internal/cache"
	"github.com/dmmcquay/gammon-mcp/internal/config"
	"github.com/dmmcquay/gammon-mcp/internal/logging"
	"github.com/dmmcquay/gammon-mcp/internal/matfmt"
	"github.com/dmmcquay/gammon-mcp/internal/metrics"
	"github.com/dmmcquay/gammon-mcp/internal/posid"
	"github.com/dmmcquay/gammon-mcp/internal/store"
	"github.com/dmmcquay/gammon-mcp/internal/xgmatch"
)

const defaultListLimit = 20

// MatchStore is the subset of *store.Store the tools use.
type MatchStore interface {
	Save(ctx context.Context, rec *store.Record) error
	Get(ctx context.Context, id string) (*store.Record, error)
	List(ctx context.Context, limit int) ([]store.Record, error)
}

// ToolsHandler implements the backgammon MCP tools.
type ToolsHandler struct {
	logger     logging.ContextLogger
	cache      *cache.Manager
	store      MatchStore
	limits     config.LimitsConfig
	collector  *metrics.Collector
	prometheus *metrics.PrometheusCollector
	status     func() map[string]interface{}
	middleware *Middleware
}

// Options carries the optional collaborators of a ToolsHandler. A nil Store
// disables saving and the library tools.
type Options struct {
	Cache      *cache.Manager
	Store      MatchStore
	Limits     config.LimitsConfig
	Collector  *metrics.Collector
	Prometheus *metrics.PrometheusCollector
	// Status adds extra sections to serverStatus, e.g. rate limiter state.
	Status func() map[string]interface{}
}

func NewToolsHandler(logger logging.ContextLogger, opts Options) *ToolsHandler {
	h := &ToolsHandler{
		logger:     logger,
		cache:      opts.Cache,
		store:      opts.Store,
		limits:     opts.Limits,
		collector:  opts.Collector,
		prometheus: opts.Prometheus,
		status:     opts.Status,
	}
	if h.cache == nil {
		h.cache = cache.NewManager(nil, logger, nil)
	}
	if h.limits.MaxListLimit <= 0 {
		h.limits.MaxListLimit = 100
	}
	return h
}

func (h *ToolsHandler) SetMiddleware(middleware *Middleware) {
	h.middleware = middleware
}

func (h *ToolsHandler) wrap(name string, handler ToolHandler) server.ToolHandlerFunc {
	if h.middleware != nil {
		handler = h.middleware.WrapTool(name, handler)
	}
	return server.ToolHandlerFunc(handler)
}

// RegisterTools adds every tool to s. The library tools are skipped when no
// store is configured.
func (h *ToolsHandler) RegisterTools(s *server.MCPServer) {
	s.AddTool(mcp.NewTool("convertPosition",
		mcp.WithDescription("Decode a backgammon position ID (XGID, GNUID or OGID, detected automatically) and return it in all three formats with cube, score and pip counts."),
		mcp.WithString("id",
			mcp.Description("Position ID, e.g. XGID=-b----E-C---eE---c-e----B-:0:0:1:00:0:0:0:0:10"),
			mcp.Required(),
		),
	), h.wrap("convertPosition", h.HandleConvertPosition))

	s.AddTool(mcp.NewTool("pipCount",
		mcp.WithDescription("Return the pip count of each side for a position ID"),
		mcp.WithString("id",
			mcp.Description("Position ID in XGID, GNUID or OGID format"),
			mcp.Required(),
		),
	), h.wrap("pipCount", h.HandlePipCount))

	s.AddTool(mcp.NewTool("xgToMat",
		mcp.WithDescription("Convert an eXtreme Gammon .xg match file to the Jellyfish .mat text format. Provide the file as base64 data or a local path."),
		mcp.WithString("data",
			mcp.Description("Base64-encoded contents of the .xg file"),
		),
		mcp.WithString("path",
			mcp.Description("Local path of the .xg file, used when data is empty"),
		),
		mcp.WithString("name",
			mcp.Description("Original file name, used to name the .mat output"),
		),
		mcp.WithBoolean("save",
			mcp.Description("Store the converted match in the local library"),
		),
	), h.wrap("xgToMat", h.HandleXGToMat))

	s.AddTool(mcp.NewTool("serverStatus",
		mcp.WithDescription("Report tool call statistics, cache usage and rate limit state"),
	), h.wrap("serverStatus", h.HandleServerStatus))

	if h.store == nil {
		return
	}

	s.AddTool(mcp.NewTool("listMatches",
		mcp.WithDescription("List converted matches in the local library, newest first"),
		mcp.WithNumber("limit",
			mcp.Description(fmt.Sprintf("Maximum number of matches (default %d, max %d)", defaultListLimit, h.limits.MaxListLimit)),
		),
	), h.wrap("listMatches", h.HandleListMatches))

	s.AddTool(mcp.NewTool("getMatch",
		mcp.WithDescription("Fetch a converted match from the local library by id"),
		mcp.WithString("id",
			mcp.Description("Match id returned by xgToMat or listMatches"),
			mcp.Required(),
		),
		mcp.WithBoolean("includeMat",
			mcp.Description("Include the .mat text (default true)"),
		),
	), h.wrap("getMatch", h.HandleGetMatch))
}

// toolError turns user-caused errors into tool error results and passes
// everything else up as a protocol error.
func (h *ToolsHandler) toolError(ctx context.Context, err error) (*mcp.CallToolResult, error) {
	kind := errorKind(err)
	if h.prometheus != nil {
		if tool, ok := logging.ToolFromContext(ctx); ok {
			h.prometheus.RecordToolError(tool, kind)
		}
	}
	if isUserError(err) {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return nil, err
}

// ConvertResult is the convertPosition payload.
type ConvertResult struct {
	Format    posid.Format            `json:"format"`
	Encodings map[posid.Format]string `json:"encodings"`
	Board     *board.Board            `json:"board"`
	Metadata  board.Metadata          `json:"metadata"`
	Pips      board.Pips              `json:"pips"`
}

func (h *ToolsHandler) decodePosition(ctx context.Context, req mcp.CallToolRequest) (*posid.Result, error) {
	input, err := decode[positionRequest](req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errInvalidInput, err)
	}
	if strings.TrimSpace(input.ID) == "" {
		return nil, fmt.Errorf("%w: id is required", errInvalidInput)
	}

	res, err := posid.Decode(input.ID)
	format := posid.Format("unknown")
	outcome := metrics.OutcomeOK
	if err != nil {
		outcome = metrics.OutcomeError
		if f, derr := posid.Detect(input.ID); derr == nil {
			format = f
		}
	} else {
		format = res.Format
		if h.collector != nil {
			h.collector.RecordConversion(string(format))
		}
	}
	if h.prometheus != nil {
		h.prometheus.RecordPositionDecode(string(format), outcome)
	}
	if err != nil {
		h.logger.WithContext(ctx).Debug("Position decode failed", "format", string(format), "error", err.Error())
		return nil, err
	}
	return res, nil
}

func (h *ToolsHandler) HandleConvertPosition(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	res, err := h.decodePosition(ctx, req)
	if err != nil {
		return h.toolError(ctx, err)
	}

	return jsonResult(ConvertResult{
		Format:    res.Format,
		Encodings: posid.EncodeAll(res.Board, res.Metadata),
		Board:     res.Board,
		Metadata:  res.Metadata,
		Pips:      res.Board.PipCounts(),
	})
}

func (h *ToolsHandler) HandlePipCount(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	res, err := h.decodePosition(ctx, req)
	if err != nil {
		return h.toolError(ctx, err)
	}

	pips := res.Board.PipCounts()
	text := fmt.Sprintf("X: %d  O: %d  (%s on roll, difference %+d)",
		pips.X, pips.O, res.Metadata.OnRoll, pipLead(pips, res.Metadata.OnRoll))
	return mcp.NewToolResultText(text), nil
}

// pipLead is positive when the side on roll is ahead in the race.
func pipLead(p board.Pips, onRoll board.Side) int {
	if onRoll == board.SideX {
		return p.O - p.X
	}
	return p.X - p.O
}

// ConversionResult is the xgToMat payload.
type ConversionResult struct {
	ID       string          `json:"id,omitempty"`
	FileName string          `json:"fileName"`
	Summary  xgmatch.Summary `json:"summary"`
	Cached   bool            `json:"cached"`
	Mat      string          `json:"mat"`
}

func (h *ToolsHandler) HandleXGToMat(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	logger := h.logger.WithContext(ctx)

	input, err := decode[xgToMatRequest](req)
	if err != nil {
		return h.toolError(ctx, fmt.Errorf("%w: %v", errInvalidInput, err))
	}
	if input.Save && h.store == nil {
		return h.toolError(ctx, fmt.Errorf("%w: the match library is disabled", errInvalidInput))
	}

	data, name, err := h.readArchive(input)
	if err != nil {
		return h.toolError(ctx, err)
	}

	key := cache.Key(data)
	pm, cached := h.cache.Get(key)
	if !cached {
		start := time.Now()
		pm, err = xgmatch.ParseArchive(data)
		if h.prometheus != nil {
			games := 0
			if pm != nil {
				games = len(pm.Games)
			}
			h.prometheus.RecordArchiveParse(len(data), games, time.Since(start).Seconds(), err)
		}
		if err != nil {
			logger.Warn("Archive parse failed", "bytes", len(data), "error", err.Error())
			return h.toolError(ctx, err)
		}
		h.cache.Put(key, pm)
	}

	summary := xgmatch.Summarize(pm)
	result := ConversionResult{
		FileName: matfmt.FileName(name),
		Summary:  summary,
		Cached:   cached,
		Mat:      matfmt.Write(pm),
	}
	logger.Info("Converted match", "match", summary.String(), "cached", cached)

	if input.Save {
		rec := &store.Record{
			Source:      name,
			ArchiveSHA:  key,
			Player1:     pm.Match.Player1,
			Player2:     pm.Match.Player2,
			MatchLength: pm.Match.MatchLength,
			Games:       len(pm.Games),
			Mat:         result.Mat,
		}
		if err := h.store.Save(ctx, rec); err != nil {
			return nil, fmt.Errorf("failed to save match: %w", err)
		}
		if h.prometheus != nil {
			h.prometheus.RecordMatchStored()
		}
		result.ID = rec.ID
	}

	return jsonResult(result)
}

// readArchive returns the archive bytes and a display name.
func (h *ToolsHandler) readArchive(input xgToMatRequest) ([]byte, string, error) {
	name := input.Name

	var data []byte
	switch {
	case input.Data != "":
		// Clients sometimes wrap long base64 values.
		clean := strings.Map(func(r rune) rune {
			if r == '\n' || r == '\r' || r == ' ' || r == '\t' {
				return -1
			}
			return r
		}, input.Data)
		if limit := h.limits.MaxArchiveBytes; limit > 0 && base64.StdEncoding.DecodedLen(len(clean)) > limit+2 {
			return nil, "", fmt.Errorf("%w: archive exceeds %d bytes", errInvalidInput, limit)
		}
		b, err := base64.StdEncoding.DecodeString(clean)
		if err != nil {
			return nil, "", fmt.Errorf("%w: data is not valid base64: %v", errInvalidInput, err)
		}
		data = b
	case input.Path != "":
		info, err := os.Stat(input.Path)
		if err != nil {
			return nil, "", fmt.Errorf("failed to read %s: %w", input.Path, err)
		}
		if limit := h.limits.MaxArchiveBytes; limit > 0 && info.Size() > int64(limit) {
			return nil, "", fmt.Errorf("%w: archive exceeds %d bytes", errInvalidInput, limit)
		}
		b, err := os.ReadFile(input.Path)
		if err != nil {
			return nil, "", fmt.Errorf("failed to read %s: %w", input.Path, err)
		}
		data = b
		if name == "" {
			name = filepath.Base(input.Path)
		}
	default:
		return nil, "", fmt.Errorf("%w: provide either data or path", errInvalidInput)
	}

	if limit := h.limits.MaxArchiveBytes; limit > 0 && len(data) > limit {
		return nil, "", fmt.Errorf("%w: archive exceeds %d bytes", errInvalidInput, limit)
	}
	if name == "" {
		name = "match.xg"
	}
	return data, name, nil
}

func (h *ToolsHandler) HandleListMatches(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[listMatchesRequest](req)
	if err != nil {
		return h.toolError(ctx, fmt.Errorf("%w: %v", errInvalidInput, err))
	}

	limit := input.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > h.limits.MaxListLimit {
		limit = h.limits.MaxListLimit
	}

	records, err := h.store.List(ctx, limit)
	if err != nil {
		return nil, err
	}
	return jsonResult(map[string]interface{}{
		"matches": records,
		"count":   len(records),
	})
}

func (h *ToolsHandler) HandleGetMatch(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[getMatchRequest](req)
	if err != nil {
		return h.toolError(ctx, fmt.Errorf("%w: %v", errInvalidInput, err))
	}
	if input.ID == "" {
		return h.toolError(ctx, fmt.Errorf("%w: id is required", errInvalidInput))
	}

	rec, err := h.store.Get(ctx, input.ID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return h.toolError(ctx, fmt.Errorf("%w: %s", err, input.ID))
		}
		return h.toolError(ctx, err)
	}
	if input.WithMat != nil && !*input.WithMat {
		rec.Mat = ""
	}
	return jsonResult(rec)
}

func (h *ToolsHandler) HandleServerStatus(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	status := map[string]interface{}{
		"cache": map[string]interface{}{
			"enabled": h.cache.IsEnabled(),
			"stats":   h.cache.Stats(),
		},
		"library": h.store != nil,
	}
	if h.collector != nil {
		status["metrics"] = h.collector.GetStats()
	}
	if h.status != nil {
		for k, v := range h.status() {
			status[k] = v
		}
	}
	return jsonResult(status)
}
