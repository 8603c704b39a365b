package photonics

import "fmt"

// DomainWarning flags a transmission outside [0,1] beyond Tolerance. It is
// informational: the value is still returned to the caller.
type DomainWarning struct {
	Source     string  `json:"source"`
	Quantity   string  `json:"quantity"`
	Wavelength float64 `json:"wavelength"`
	Value      float64 `json:"value"`
}

func (w DomainWarning) Error() string {
	return fmt.Sprintf("%s: %s transmission %g out of [0,1] at wavelength %g", w.Source, w.Quantity, w.Value, w.Wavelength)
}
