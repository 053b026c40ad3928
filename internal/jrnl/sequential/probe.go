package sequential

// probeAsync is swapped in tests to exercise the fallback path.
var probeAsync = platformAsyncSupported

// AsyncSupported reports whether the async backend can run here. Callers
// check it before asking for BackendAsync, or let NewFactory fall back.
func AsyncSupported() bool {
	return probeAsync()
}
