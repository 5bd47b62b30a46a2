// Package alert contém a regra pura que decide se um alerta deve disparar.
package alert

import (
	"github.com/shopspring/decimal"

	"monitor-precos/internal/models"
)

// Decide aplica a regra de disparo:
//   - alerta já enviado: sempre NoAction (nunca rearma);
//   - busca falhou: NoAction;
//   - preço <= alvo (inclusive): Fire;
//   - caso contrário: Arm.
func Decide(previousAlertSent bool, target decimal.Decimal, result models.PriceResult) models.Decision {
	if previousAlertSent {
		return models.DecisionNoAction
	}
	if !result.OK() {
		return models.DecisionNoAction
	}
	if result.Price.Decimal.LessThanOrEqual(target) {
		return models.DecisionFire
	}
	return models.DecisionArm
}
