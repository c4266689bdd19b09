package backtest

import "sync"

var (
	sharedMu sync.Mutex
	shared   *Framework
)

// Shared devuelve la instancia compartida del proceso, creándola con la
// configuración por defecto (sin fuentes de datos) si aún no existe.
// Los procesos reales la instalan con SetShared al arrancar.
func Shared() *Framework {
	sharedMu.Lock()
	defer sharedMu.Unlock()
	if shared == nil {
		// DefaultConfig siempre es válida.
		shared, _ = New(DefaultConfig(), Dependencies{})
	}
	return shared
}

// SetShared reemplaza la instancia compartida.
func SetShared(f *Framework) {
	sharedMu.Lock()
	defer sharedMu.Unlock()
	shared = f
}

// ResetShared descarta la instancia compartida; la próxima llamada a Shared
// crea una nueva.
func ResetShared() {
	sharedMu.Lock()
	defer sharedMu.Unlock()
	shared = nil
}
