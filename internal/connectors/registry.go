package connectors

import (
	"fmt"

	"github.com/angelmondragon/dropship-backend/pkg/config"
	"github.com/angelmondragon/dropship-backend/pkg/enums"
	"github.com/angelmondragon/dropship-backend/pkg/logger"
)

// Registry maps supplier types to their connector. Connectors are stateless
// and share one transport, so the registry is safe for concurrent use.
type Registry struct {
	connectors map[enums.SupplierType]Connector
}

func NewRegistry(cfg config.SuppliersConfig, logg *logger.Logger) *Registry {
	t := newTransport(cfg, logg)
	return &Registry{
		connectors: map[enums.SupplierType]Connector{
			enums.SupplierTypeTemu:       NewTemu(t),
			enums.SupplierTypeAliExpress: NewAliExpress(t),
			enums.SupplierTypeAmazon:     NewAmazon(t),
		},
	}
}

// Resolve returns the connector for a supplier type, or ErrUnsupportedSupplier
// when none is wired. Callers treat unsupported suppliers as a permanent
// failure for the affected records, never a crash.
func (r *Registry) Resolve(supplierType enums.SupplierType) (Connector, error) {
	connector, ok := r.connectors[supplierType]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedSupplier, supplierType)
	}
	return connector, nil
}
