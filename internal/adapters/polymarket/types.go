package polymarket

import "encoding/json"

// dataTrade es un trade de GET /trades de la Data API.
// La API devuelve los más recientes primero.
type dataTrade struct {
	ProxyWallet     string      `json:"proxyWallet"`
	Side            string      `json:"side"`
	Asset           string      `json:"asset"`
	ConditionID     string      `json:"conditionId"`
	Size            json.Number `json:"size"`
	Price           json.Number `json:"price"`
	Timestamp       json.Number `json:"timestamp"`
	Outcome         string      `json:"outcome"`
	OutcomeIndex    int         `json:"outcomeIndex"`
	TransactionHash string      `json:"transactionHash"`
}

// gammaMarket es un mercado de GET /markets de Gamma.
// Gamma devuelve algunos campos numéricos como strings JSON, usamos json.Number.
// Outcomes y OutcomePrices son arrays JSON serializados dentro de un string.
type gammaMarket struct {
	ConditionID   string      `json:"conditionId"`
	Question      string      `json:"question"`
	Slug          string      `json:"slug"`
	Category      string      `json:"category"`
	CreatedAt     string      `json:"createdAt"`
	StartDate     string      `json:"startDate"`
	EndDate       string      `json:"endDate"`
	EndDateISO    string      `json:"endDateIso"`
	ClosedTime    string      `json:"closedTime"`
	Volume        json.Number `json:"volume"`
	Active        bool        `json:"active"`
	Closed        bool        `json:"closed"`
	Outcomes      string      `json:"outcomes"`
	OutcomePrices string      `json:"outcomePrices"`
}
