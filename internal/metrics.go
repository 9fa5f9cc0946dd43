package internal

import "expvar"

var (
	requestsTotal   = expvar.NewMap("reviewhooks_requests_total")
	resolveErrors   = expvar.NewMap("reviewhooks_resolve_errors_total")
	normalizeErrors = expvar.NewMap("reviewhooks_normalize_errors_total")
	dispatchedTotal = expvar.NewMap("reviewhooks_dispatched_total")
	taskFailures    = expvar.NewMap("reviewhooks_task_failures_total")
	dedupSkips      = expvar.NewMap("reviewhooks_dedup_skips_total")
)

func IncRequest(provider string) {
	requestsTotal.Add(provider, 1)
}

func IncResolveError(reason string) {
	resolveErrors.Add(reason, 1)
}

func IncNormalizeError(provider string) {
	normalizeErrors.Add(provider, 1)
}

func IncDispatched(provider string) {
	dispatchedTotal.Add(provider, 1)
}

func IncTaskFailure(provider string) {
	taskFailures.Add(provider, 1)
}

func IncDedupSkip(provider string) {
	dedupSkips.Add(provider, 1)
}
