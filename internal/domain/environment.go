package domain

// Environment names the APNs gateway a credential set is issued for.
type Environment string

const (
	EnvironmentProduction Environment = "production"
	EnvironmentSandbox    Environment = "sandbox"
)

func (e Environment) String() string { return string(e) }

// ParseEnvironment maps any value other than exactly "production" to the
// sandbox. Case and whitespace variants are not production.
func ParseEnvironment(s string) Environment {
	if s == string(EnvironmentProduction) {
		return EnvironmentProduction
	}
	return EnvironmentSandbox
}
