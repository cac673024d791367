// Package expiry は契約の有効期限を定期的に集計するジョブを提供する。
// データの変更や通知は行わず、状態別の件数をメトリクスとログに出力する。
package expiry

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/slotkeeper/internal/model"
)

// SubscriptionLister は残日数と状態を付与した契約一覧を返す。
// subscription.Ledgerが満たす。
type SubscriptionLister interface {
	List(ctx context.Context) ([]model.SubscriptionView, error)
}

// Recorder はスキャン結果をメトリクスに記録する。
type Recorder interface {
	SetSubscriptionCounts(counts map[model.SubscriptionStatus]int)
	RecordExpiryScan(duration time.Duration)
}

// Summary は1回のスキャン結果。
type Summary struct {
	Active       int
	ExpiringSoon int
	Expired      int
	// ExpiringSoonIDs は期限切れが近い契約のID（終了日順）。
	ExpiringSoonIDs []int64
}

// Scanner は契約の状態別件数を定期的に集計する。
type Scanner struct {
	lister   SubscriptionLister
	recorder Recorder
	logger   *slog.Logger
}

// NewScanner は新しいScannerを生成する。recorderはnilでもよい。
func NewScanner(lister SubscriptionLister, recorder Recorder, logger *slog.Logger) *Scanner {
	return &Scanner{
		lister:   lister,
		recorder: recorder,
		logger:   logger,
	}
}

// RunOnce は全契約を状態別に集計し、メトリクスを更新する。
func (s *Scanner) RunOnce(ctx context.Context) (*Summary, error) {
	start := time.Now()

	views, err := s.lister.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("契約一覧の取得に失敗: %w", err)
	}

	summary := &Summary{}
	counts := make(map[model.SubscriptionStatus]int, 3)
	for _, v := range views {
		counts[v.Status]++
		switch v.Status {
		case model.SubscriptionStatusExpired:
			summary.Expired++
		case model.SubscriptionStatusExpiringSoon:
			summary.ExpiringSoon++
			summary.ExpiringSoonIDs = append(summary.ExpiringSoonIDs, v.ID)
		default:
			summary.Active++
		}
	}

	duration := time.Since(start)
	if s.recorder != nil {
		s.recorder.SetSubscriptionCounts(counts)
		s.recorder.RecordExpiryScan(duration)
	}

	s.logger.Info("期限スキャンが完了しました",
		slog.Int("active", summary.Active),
		slog.Int("expiring_soon", summary.ExpiringSoon),
		slog.Int("expired", summary.Expired),
		slog.Any("expiring_soon_ids", summary.ExpiringSoonIDs),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)

	return summary, nil
}

// Start はintervalごとにスキャンを実行する。起動直後にも1回実行する。
// コンテキストがキャンセルされるまで実行を継続する。
func (s *Scanner) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info("期限スキャンを開始しました", slog.Duration("interval", interval))

	s.runLogged(ctx)
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("期限スキャンを停止しました")
			return
		case <-ticker.C:
			s.runLogged(ctx)
		}
	}
}

func (s *Scanner) runLogged(ctx context.Context) {
	if _, err := s.RunOnce(ctx); err != nil {
		s.logger.Error("期限スキャンの実行に失敗しました",
			slog.String("error", err.Error()),
		)
	}
}
