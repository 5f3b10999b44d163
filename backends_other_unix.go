//go:build unix && !linux && !darwin

package reactor

func platformBackends() []backendCandidate {
	return []backendCandidate{
		{name: "poll", create: newPollBackend},
		{name: "select", create: newSelectBackend},
	}
}
