package app

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/hitoshi/castsite/internal/model"
)

// sweepFailureOutput はスイープ失敗1件の出力形式。
type sweepFailureOutput struct {
	PodcastID string `json:"podcast_id"`
	Stage     string `json:"stage"`
	Error     string `json:"error"`
}

// sweepOutput はsweepコマンドの出力形式。
type sweepOutput struct {
	Total     int                  `json:"total"`
	Succeeded int                  `json:"succeeded"`
	Failures  []sweepFailureOutput `json:"failures"`
}

func newSweepOutput(report *model.SweepReport) sweepOutput {
	out := sweepOutput{
		Total:     report.Total,
		Succeeded: report.Succeeded,
		Failures:  make([]sweepFailureOutput, 0, len(report.Failures)),
	}
	for _, f := range report.Failures {
		msg := ""
		if f.Err != nil {
			msg = f.Err.Error()
		}
		out.Failures = append(out.Failures, sweepFailureOutput{
			PodcastID: f.PodcastID,
			Stage:     string(f.Stage),
			Error:     msg,
		})
	}
	return out
}

// writeResult は結果をインデント付きJSONで書き出す。
func writeResult(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to write result: %w", err)
	}
	return nil
}
