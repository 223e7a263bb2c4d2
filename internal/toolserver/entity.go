package toolserver

// TransportStdio is the only transport implemented: one JSON request and one
// JSON response over a spawned process's standard streams.
const TransportStdio = "stdio"

// Definition describes one auxiliary tool server the gate may spawn.
type Definition struct {
	Name      string            `yaml:"name"`
	Transport string            `yaml:"transport"`
	Command   string            `yaml:"command"`
	Args      []string          `yaml:"args"`
	Env       map[string]string `yaml:"env"`
}

// EffectiveTransport returns the transport, defaulting to stdio.
func (d *Definition) EffectiveTransport() string {
	if d.Transport == "" {
		return TransportStdio
	}
	return d.Transport
}
