package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// Pinger はデータベースの疎通確認インターフェース。*sql.DBが実装する。
type Pinger interface {
	PingContext(ctx context.Context) error
}

type healthResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// NewHealthHandler はヘルスチェックハンドラーを返す。
// pingerがnilの場合はプロセスの稼働のみを返す。
func NewHealthHandler(pinger Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if pinger != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := pinger.PingContext(ctx); err != nil {
				slog.Error("health check failed", slog.String("error", err.Error()))
				writeJSON(w, http.StatusServiceUnavailable, healthResponse{
					Status:  "ERROR",
					Message: "Database is unreachable",
				})
				return
			}
		}
		writeJSON(w, http.StatusOK, healthResponse{
			Status:  "OK",
			Message: "Blog Platform API is running",
		})
	}
}
