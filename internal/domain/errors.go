package domain

import "errors"

var (
	// ErrInvalidConfig indica una BacktestConfig que no cumple sus invariantes.
	ErrInvalidConfig = errors.New("invalid backtest config")

	// ErrConcurrencyLimit se devuelve cuando ya hay demasiados backtests activos
	// y la política es rechazar.
	ErrConcurrencyLimit = errors.New("backtest concurrency limit reached")

	// ErrBacktestCancelled es el estado terminal de un backtest cancelado.
	// No es un fallo: el usuario pidió pararlo.
	ErrBacktestCancelled = errors.New("backtest cancelled")

	// ErrDatasetUnavailable indica que ninguna fuente pedida devolvió datos.
	ErrDatasetUnavailable = errors.New("historical dataset unavailable")

	// ErrUnknownEvaluator indica que no hay evaluador registrado para la estrategia.
	ErrUnknownEvaluator = errors.New("unknown strategy evaluator")

	// ErrUnknownBacktest indica un ID sin handle (desconocido o ya liberado).
	ErrUnknownBacktest = errors.New("unknown backtest")
)
