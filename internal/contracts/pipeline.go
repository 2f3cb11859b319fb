package contracts

import (
	"fmt"
	"time"
)

// 파이프라인 Stage 정의 (SSOT)
// 모든 로그, 리포트에서 이 상수를 사용해야 함
//
// 파이프라인 흐름 (고정 순서, 순차 실행):
//   sectors → market → flows → indicators → scores → cleanup

// Stage represents a pipeline stage
type Stage string

const (
	// StageSectors 섹터 메타데이터: 지수코드 추론 및 기록
	// 위치: internal/s1_sector/
	StageSectors Stage = "sectors"

	// StageMarket 당일 시세, 시가총액, 등급, 섹터 지수 수집
	// 위치: internal/batch/market.go
	StageMarket Stage = "market"

	// StageFlows 투자자 수급 수집, 섹터 수급 집계, 섹터 점수
	// 위치: internal/s2_flow/
	StageFlows Stage = "flows"

	// StageIndicators 기술적 지표 계산
	// 위치: internal/s3_indicator/
	StageIndicators Stage = "indicators"

	// StageScores 종목 점수 계산
	// 위치: internal/s4_scoring/
	StageScores Stage = "scores"

	// StageCleanup 보존 기간이 지난 데이터 정리
	StageCleanup Stage = "cleanup"
)

// 백필 작업 (파이프라인 외부, CLI에서 수동 실행)
const (
	StageBackfillBars       Stage = "backfill_bars"
	StageBackfillIndicators Stage = "backfill_indicators"
	StageBackfillFlows      Stage = "backfill_flows"
)

// String returns the stage name
func (s Stage) String() string {
	return string(s)
}

// Description returns Korean description of the stage
func (s Stage) Description() string {
	switch s {
	case StageSectors:
		return "섹터 메타데이터"
	case StageMarket:
		return "당일 시세 수집"
	case StageFlows:
		return "수급 집계/섹터 점수"
	case StageIndicators:
		return "기술적 지표"
	case StageScores:
		return "종목 점수"
	case StageCleanup:
		return "데이터 정리"
	case StageBackfillBars:
		return "일봉 백필"
	case StageBackfillIndicators:
		return "지표 백필"
	case StageBackfillFlows:
		return "수급 백필"
	default:
		return "알 수 없음"
	}
}

// AllStages returns all pipeline stages in execution order
func AllStages() []Stage {
	return []Stage{
		StageSectors,
		StageMarket,
		StageFlows,
		StageIndicators,
		StageScores,
		StageCleanup,
	}
}

// ParseStage converts a stage name into a Stage
func ParseStage(s string) (Stage, error) {
	for _, stage := range AllStages() {
		if string(stage) == s {
			return stage, nil
		}
	}
	return "", fmt.Errorf("unknown stage: %s", s)
}

// OutcomeStatus is the result of processing a single unit (instrument, date, sector, chunk)
type OutcomeStatus string

const (
	OutcomeOK      OutcomeStatus = "ok"
	OutcomeSkipped OutcomeStatus = "skipped" // no data, not an error
	OutcomeFailed  OutcomeStatus = "failed"
)

// Outcome records what happened to one unit of work
type Outcome struct {
	Unit   string        `json:"unit"`
	Status OutcomeStatus `json:"status"`
	Reason string        `json:"reason,omitempty"`
}

// OK builds a successful outcome
func OK(unit string) Outcome {
	return Outcome{Unit: unit, Status: OutcomeOK}
}

// Skipped builds a skipped outcome with a reason
func Skipped(unit, reason string) Outcome {
	return Outcome{Unit: unit, Status: OutcomeSkipped, Reason: reason}
}

// Failed builds a failed outcome from an error
func Failed(unit string, err error) Outcome {
	reason := "unknown error"
	if err != nil {
		reason = err.Error()
	}
	return Outcome{Unit: unit, Status: OutcomeFailed, Reason: reason}
}

// StageReport collects unit outcomes of a single stage run
type StageReport struct {
	Stage    Stage         `json:"stage"`
	Date     time.Time     `json:"date"`
	Started  time.Time     `json:"started"`
	Duration time.Duration `json:"duration"`
	Halted   string        `json:"halted,omitempty"` // 이후 stage 진행 중단 사유
	Outcomes []Outcome     `json:"outcomes"`
}

// Add appends outcomes to the report
func (r *StageReport) Add(outcomes ...Outcome) {
	r.Outcomes = append(r.Outcomes, outcomes...)
}

// Count returns the number of outcomes with the given status
func (r *StageReport) Count(status OutcomeStatus) int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Status == status {
			n++
		}
	}
	return n
}

// Failures returns failed outcomes
func (r *StageReport) Failures() []Outcome {
	failed := make([]Outcome, 0)
	for _, o := range r.Outcomes {
		if o.Status == OutcomeFailed {
			failed = append(failed, o)
		}
	}
	return failed
}

// RunSummary aggregates stage reports of one batch run
type RunSummary struct {
	Date    time.Time     `json:"date"`
	Reports []StageReport `json:"reports"`
}

// Report returns the report for a stage, if it ran
func (s *RunSummary) Report(stage Stage) (*StageReport, bool) {
	for i := range s.Reports {
		if s.Reports[i].Stage == stage {
			return &s.Reports[i], true
		}
	}
	return nil, false
}

// TotalFailed returns the number of failed units across all stages
func (s *RunSummary) TotalFailed() int {
	total := 0
	for i := range s.Reports {
		total += s.Reports[i].Count(OutcomeFailed)
	}
	return total
}
