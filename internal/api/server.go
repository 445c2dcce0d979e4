package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"MintRelay/internal/mention"
	"MintRelay/pkg/logger"
)

// Server 暴露只读的运维 REST 接口, 用于查看台账与运行状态。
// 所有写入都由调度器独占, 接口层不提供任何修改能力。
type Server struct {
	addr   string
	ledger mention.Ledger
}

// NewServer 构造 API 服务实例。
func NewServer(addr string, ledger mention.Ledger) *Server {
	return &Server{addr: addr, ledger: ledger}
}

// Start 启动 HTTP 服务, 直到上下文取消或出现错误。
func (s *Server) Start(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/api/v1/mentions", s.handleListMentions)
	mux.HandleFunc("/api/v1/mentions/stats", s.handleStats)
	mux.HandleFunc("/api/v1/mentions/", s.handleGetMention)

	server := &http.Server{
		Addr:              s.addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	logger.L().Info("运维接口已启动", "addr", s.addr)

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "仅支持 GET", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleListMentions 按状态等条件分页列出台账记录。
func (s *Server) handleListMentions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "仅支持 GET", http.StatusMethodNotAllowed)
		return
	}

	opts, err := listOptionsFromQuery(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	records, err := s.ledger.List(r.Context(), opts)
	if err != nil {
		logger.L().Error("查询台账列表失败", "error", err)
		http.Error(w, "查询台账失败", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"mentions": records})
}

// handleStats 返回台账的状态统计。
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "仅支持 GET", http.StatusMethodNotAllowed)
		return
	}

	stats, err := s.ledger.Stats(r.Context(), mention.BuildListOptions())
	if err != nil {
		logger.L().Error("查询台账统计失败", "error", err)
		http.Error(w, "查询台账失败", http.StatusInternalServerError)
		return
	}

	checkpoint, err := s.ledger.Checkpoint(r.Context())
	if err != nil {
		logger.L().Error("查询游标失败", "error", err)
		http.Error(w, "查询台账失败", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"stats":         stats,
		"last_tweet_id": checkpoint,
	})
}

// handleGetMention 返回单条提及的处理记录。
func (s *Server) handleGetMention(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "仅支持 GET", http.StatusMethodNotAllowed)
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/api/v1/mentions/")
	if id == "" || strings.Contains(id, "/") {
		http.Error(w, "非法的提及 ID", http.StatusBadRequest)
		return
	}

	entry, err := s.ledger.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, mention.ErrMentionNotFound) {
			http.Error(w, "提及不存在", http.StatusNotFound)
			return
		}
		logger.L().Error("查询提及记录失败", "mention_id", id, "error", err)
		http.Error(w, "查询台账失败", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, mention.Recorded{ID: id, Entry: *entry})
}

// listOptionsFromQuery 把查询参数转换为台账过滤条件。
func listOptionsFromQuery(r *http.Request) (mention.ListOptions, error) {
	var opts []mention.ListOption

	if raw := r.URL.Query().Get("status"); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			status := mention.Status(strings.TrimSpace(part))
			if !mention.IsValidStatus(status) {
				return mention.ListOptions{}, errors.New("不支持的状态: " + string(status))
			}
			opts = append(opts, mention.WithStatuses(status))
		}
	}

	if raw := r.URL.Query().Get("mint_success"); raw != "" {
		success, err := strconv.ParseBool(raw)
		if err != nil {
			return mention.ListOptions{}, errors.New("mint_success 参数必须是布尔值")
		}
		opts = append(opts, mention.WithMintSuccess(success))
	}

	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			return mention.ListOptions{}, errors.New("limit 参数必须是正整数")
		}
		opts = append(opts, mention.WithLimit(limit))
	}

	if raw := r.URL.Query().Get("order"); raw != "" {
		switch raw {
		case "asc":
			opts = append(opts, mention.WithOrder(mention.SortByProcessedAsc))
		case "desc":
			opts = append(opts, mention.WithOrder(mention.SortByProcessedDesc))
		default:
			return mention.ListOptions{}, errors.New("order 参数仅支持 asc/desc")
		}
	}

	return mention.BuildListOptions(opts...), nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.L().Warn("写出响应失败", "error", err)
	}
}
