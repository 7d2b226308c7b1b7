package forecast

import (
	"fmt"
	"time"

	domsvc "PriceCast/internal/domain/service"
)

// Factory builds ensemble submodel sets. The remote model joins the set
// only when a service URL is configured.
type Factory struct {
	remoteURL     string
	remoteTimeout time.Duration
}

// NewFactory creates a Factory. An empty remoteURL disables the remote
// submodel.
func NewFactory(remoteURL string, remoteTimeout time.Duration) *Factory {
	return &Factory{remoteURL: remoteURL, remoteTimeout: remoteTimeout}
}

// ModelRemote names the optional externally served submodel.
const ModelRemote = "remote"

// NewSet returns fresh unfitted submodels for one training cycle.
func (f *Factory) NewSet() []domsvc.Forecaster {
	set := []domsvc.Forecaster{
		NewLinearTrend(),
		NewSmoother(),
		NewGradientModel(),
	}
	if f.remoteURL != "" {
		set = append(set, NewRemoteForecaster(ModelRemote, f.remoteURL, f.remoteTimeout))
	}
	return set
}

// NewByName constructs one empty submodel for state restore.
func (f *Factory) NewByName(name string) (domsvc.Forecaster, error) {
	switch name {
	case ModelLinear:
		return NewLinearTrend(), nil
	case ModelSmoother:
		return NewSmoother(), nil
	case ModelGradient:
		return NewGradientModel(), nil
	case ModelRemote:
		if f.remoteURL == "" {
			return nil, fmt.Errorf("%w: %s (no service url)", ErrUnknownModel, name)
		}
		return NewRemoteForecaster(ModelRemote, f.remoteURL, f.remoteTimeout), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownModel, name)
	}
}

// Names lists the submodels NewSet would build.
func (f *Factory) Names() []string {
	names := []string{ModelLinear, ModelSmoother, ModelGradient}
	if f.remoteURL != "" {
		names = append(names, ModelRemote)
	}
	return names
}

var (
	_ domsvc.Forecaster = (*LinearTrend)(nil)
	_ domsvc.Forecaster = (*Smoother)(nil)
	_ domsvc.Forecaster = (*GradientModel)(nil)
	_ domsvc.Forecaster = (*RemoteForecaster)(nil)
)
