//go:build darwin

package reactor

func platformBackends() []backendCandidate {
	return []backendCandidate{
		{name: "kqueue", create: newKqueueBackend},
		{name: "poll", create: newPollBackend},
		{name: "select", create: newSelectBackend},
	}
}
