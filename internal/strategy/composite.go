package strategy

import (
	"context"
	"fmt"
	"strings"

	"github.com/alejandrodnm/polyguard/internal/domain"
	"github.com/alejandrodnm/polyguard/internal/ports"
)

// ThresholdMinVotes es el número de hijos que deben marcar positivo.
const ThresholdMinVotes = "min_votes"

// Composite combina varios evaluadores: positivo si al menos min_votes
// hijos lo son, confianza = máxima confianza de los hijos.
// Los umbrales se pasan tal cual a cada hijo.
type Composite struct {
	children []ports.StrategyEvaluator
}

// NewComposite crea un evaluador compuesto.
func NewComposite(children ...ports.StrategyEvaluator) *Composite {
	return &Composite{children: children}
}

// Evaluate implementa ports.StrategyEvaluator. El primer error de un hijo
// se propaga: el simulador lo contará como fallo del evaluador.
func (c *Composite) Evaluate(ctx context.Context, unit domain.DataUnit, th domain.Thresholds) (domain.Prediction, error) {
	minVotes := int(th.Get(ThresholdMinVotes, 1))

	votes := 0
	var best domain.Prediction
	var reasons []string
	for i, child := range c.children {
		p, err := child.Evaluate(ctx, unit, th)
		if err != nil {
			return domain.Prediction{}, fmt.Errorf("composite child %d: %w", i, err)
		}
		if p.Positive {
			votes++
			reasons = append(reasons, p.Reason)
		}
		if p.Confidence > best.Confidence {
			best = p
		}
	}

	best.Positive = votes >= minVotes && minVotes > 0
	if len(reasons) > 0 {
		best.Reason = fmt.Sprintf("%d votes: %s", votes, strings.Join(reasons, "; "))
	}
	return best.Normalized(), nil
}
