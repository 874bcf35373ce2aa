package reconcile

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/clauseguard/reconcile/internal/model"
)

func TestComposeRAGStatusAllEighteenCombinations(t *testing.T) {
	statuses := []model.RAGStatus{model.RAGGreen, model.RAGAmber, model.RAGRed}
	for _, parsing := range statuses {
		for _, risk := range statuses {
			for _, mismatch := range []bool{false, true} {
				got := ComposeRAGStatus(parsing, risk, mismatch)

				switch {
				case parsing == model.RAGRed || risk == model.RAGRed:
					assert.Equal(t, model.RAGRed, got, "parsing=%s risk=%s mismatch=%v", parsing, risk, mismatch)
				case mismatch && parsing == model.RAGGreen && risk == model.RAGGreen:
					assert.Equal(t, model.RAGAmber, got, "parsing=%s risk=%s mismatch=%v", parsing, risk, mismatch)
				case mismatch:
					assert.Equal(t, model.RAGRed, got, "parsing=%s risk=%s mismatch=%v", parsing, risk, mismatch)
				case parsing == model.RAGGreen && risk == model.RAGGreen:
					assert.Equal(t, model.RAGGreen, got, "parsing=%s risk=%s mismatch=%v", parsing, risk, mismatch)
				default:
					assert.Equal(t, model.RAGAmber, got, "parsing=%s risk=%s mismatch=%v", parsing, risk, mismatch)
				}
			}
		}
	}
}

func TestComposeRAGStatusNeverGreenWithDirectionMismatch(t *testing.T) {
	got := ComposeRAGStatus(model.RAGGreen, model.RAGGreen, true)
	assert.NotEqual(t, model.RAGGreen, got)
}

func TestDeriveRAGRiskMajorDominates(t *testing.T) {
	comparisons := []model.PreAgreedComparison{
		{Severity: model.SeverityMinor},
		{Severity: model.SeverityMajor},
		{Severity: model.SeverityNone},
	}
	assert.Equal(t, model.RAGRed, DeriveRAGRisk(comparisons))
}

func TestDeriveRAGRiskMinorWithoutMajorIsAmber(t *testing.T) {
	comparisons := []model.PreAgreedComparison{
		{Severity: model.SeverityNone},
		{Severity: model.SeverityMinor},
	}
	assert.Equal(t, model.RAGAmber, DeriveRAGRisk(comparisons))
}

func TestDeriveRAGRiskNoComparisonsIsGreen(t *testing.T) {
	assert.Equal(t, model.RAGGreen, DeriveRAGRisk(nil))
}
