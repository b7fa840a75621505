package viewshed

import (
	"fmt"
	"time"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// CountVisible returns the number of true values in a mask.
func CountVisible(cells []bool) int {
	count := 0
	for _, v := range cells {
		if v {
			count++
		}
	}
	return count
}

// MaskAgreement returns the fraction of cells where two masks agree.
// Masks of different shape never agree.
func MaskAgreement(a, b *Mask) float64 {
	if !a.valid() || !b.valid() || a.Rows != b.Rows || a.Cols != b.Cols {
		return 0
	}
	agreements := 0
	for i := range a.Cells {
		if a.Cells[i] == b.Cells[i] {
			agreements++
		}
	}
	return float64(agreements) / float64(len(a.Cells))
}

// PrecisionRecall scores a predicted mask against an oracle mask.
// Precision = TP / (TP + FP), Recall = TP / (TP + FN).
func PrecisionRecall(predicted, oracle *Mask) (precision, recall float64) {
	if !predicted.valid() || !oracle.valid() || len(predicted.Cells) != len(oracle.Cells) {
		return 0, 0
	}
	var tp, fp, fn int
	for i := range predicted.Cells {
		switch {
		case predicted.Cells[i] && oracle.Cells[i]:
			tp++
		case predicted.Cells[i]:
			fp++
		case oracle.Cells[i]:
			fn++
		}
	}
	if tp+fp > 0 {
		precision = float64(tp) / float64(tp+fp)
	}
	if tp+fn > 0 {
		recall = float64(tp) / float64(tp+fn)
	}
	return precision, recall
}

// EngineResult summarises one engine's runs in an evaluation.
type EngineResult struct {
	Algorithm    string    `json:"algorithm"`
	Visible      int       `json:"visible"`
	Total        int       `json:"total"`
	MeanMs       float64   `json:"mean_ms"`
	StdDevMs     float64   `json:"stddev_ms"`
	RunsMs       []float64 `json:"runs_ms"`
	AgreementPct float64   `json:"agreement_pct"`
	Precision    float64   `json:"precision"`
	Recall       float64   `json:"recall"`
	Mask         *Mask     `json:"-"`
}

// Evaluation holds the reference result and every candidate scored
// against it.
type Evaluation struct {
	Reference  EngineResult   `json:"reference"`
	Candidates []EngineResult `json:"candidates"`
}

// Evaluate runs the reference engine once per repeat, then each candidate,
// and scores every candidate mask against the reference mask. repeats < 1
// is treated as 1.
func Evaluate(grid mat.Matrix, p Params, repeats int, reference Engine, candidates ...Engine) (*Evaluation, error) {
	if reference == nil {
		return nil, fmt.Errorf("%w: reference engine is nil", ErrInvalidParameter)
	}
	ref, err := timeEngine(reference, grid, p, repeats)
	if err != nil {
		return nil, fmt.Errorf("reference %s: %w", reference.Name(), err)
	}
	ref.AgreementPct = 100
	ref.Precision, ref.Recall = 1, 1

	eval := &Evaluation{Reference: ref}
	for _, eng := range candidates {
		res, err := timeEngine(eng, grid, p, repeats)
		if err != nil {
			opsf("evaluate: candidate %s failed: %v", eng.Name(), err)
			return nil, fmt.Errorf("candidate %s: %w", eng.Name(), err)
		}
		res.AgreementPct = 100 * MaskAgreement(res.Mask, ref.Mask)
		res.Precision, res.Recall = PrecisionRecall(res.Mask, ref.Mask)
		eval.Candidates = append(eval.Candidates, res)
	}
	return eval, nil
}

func timeEngine(eng Engine, grid mat.Matrix, p Params, repeats int) (EngineResult, error) {
	repeats = max(repeats, 1)
	res := EngineResult{Algorithm: eng.Name(), RunsMs: make([]float64, 0, repeats)}
	for i := 0; i < repeats; i++ {
		start := time.Now()
		mask, err := eng.Compute(grid, p)
		if err != nil {
			return EngineResult{}, err
		}
		res.RunsMs = append(res.RunsMs, float64(time.Since(start).Nanoseconds())/1e6)
		res.Mask = mask
	}
	res.Visible = res.Mask.Count()
	res.Total = len(res.Mask.Cells)
	if repeats == 1 {
		res.MeanMs = res.RunsMs[0]
	} else {
		res.MeanMs, res.StdDevMs = stat.MeanStdDev(res.RunsMs, nil)
	}
	return res, nil
}
