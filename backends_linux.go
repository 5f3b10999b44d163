//go:build linux

package reactor

func platformBackends() []backendCandidate {
	return []backendCandidate{
		{name: "epoll", create: newEpollBackend},
		{name: "poll", create: newPollBackend},
		{name: "select", create: newSelectBackend},
	}
}
