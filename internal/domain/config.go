package domain

// DefaultMinRevertReasonLen is the floor for stage-reversion reasons when the
// deployment does not configure one.
const DefaultMinRevertReasonLen = 10

// Config is the runtime configuration carried into services and usecases.
type Config struct {
	FQDN string

	// TrialLicense reflects the tenant license status; the TrialAdministrator
	// role is only assignable while it is true.
	TrialLicense bool

	MinRevertReasonLen int
}

func (c Config) RevertReasonFloor() int {
	if c.MinRevertReasonLen <= 0 {
		return DefaultMinRevertReasonLen
	}
	return c.MinRevertReasonLen
}
