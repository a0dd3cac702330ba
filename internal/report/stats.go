package report

import (
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/GriffinCanCode/bpforge/internal/domain/pipeline"
)

// Stats summarizes the score distribution and healing effort of a run
type Stats struct {
	Components     int            `json:"components"`
	MeanScore      float64        `json:"mean_score"`
	StdDevScore    float64        `json:"stddev_score"`
	MinScore       float64        `json:"min_score"`
	MedianScore    float64        `json:"median_score"`
	MeanGain       float64        `json:"mean_gain"`
	MeanPasses     float64        `json:"mean_passes"`
	SynthesisCalls int            `json:"synthesis_calls"`
	ByStatus       map[string]int `json:"by_status"`
}

// Summarize computes statistics for a result
func Summarize(res *pipeline.Result) Stats {
	st := Stats{Components: len(res.Components), ByStatus: map[string]int{}}
	if len(res.Components) == 0 {
		return st
	}

	scores := make([]float64, 0, len(res.Components))
	gains := make([]float64, 0, len(res.Components))
	passes := make([]float64, 0, len(res.Components))
	for _, c := range res.Components {
		st.ByStatus[string(c.Status)]++
		st.SynthesisCalls += c.SynthesisCalls
		score := 0.0
		if c.Verdict != nil {
			score = c.Verdict.Score
		}
		scores = append(scores, score)
		gains = append(gains, score-c.InitialScore)
		passes = append(passes, float64(lastPass(c)))
	}

	sort.Float64s(scores)
	st.MeanScore, st.StdDevScore = stat.MeanStdDev(scores, nil)
	if len(scores) < 2 {
		st.StdDevScore = 0
	}
	st.MinScore = scores[0]
	st.MedianScore = stat.Quantile(0.5, stat.Empirical, scores, nil)
	st.MeanGain = stat.Mean(gains, nil)
	st.MeanPasses = stat.Mean(passes, nil)
	return st
}

func lastPass(c pipeline.ComponentResult) int {
	n := 0
	for _, a := range c.Attempts {
		if a.Pass > n {
			n = a.Pass
		}
	}
	return n
}
