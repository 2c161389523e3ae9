package retry

import "context"

// retrierKey is the context key under which Do looks up an injected
// Retrier.
type retrierKey struct{}

// ToContext overrides the Retrier Do uses for operations carried out under
// the returned context. Tests inject a NoopRetrier for deterministic
// single-attempt behavior; production code relies on the default below.
func ToContext(ctx context.Context, retrier Retrier) context.Context {
	return context.WithValue(ctx, retrierKey{}, retrier)
}

// defaultRetrier backs every Do call that doesn't inject its own Retrier.
// transport.go is the only production caller and always issues HTTP
// requests, so the default is HTTP-method-aware rather than a bare
// NoopRetrier: GET is retried on 5xx/429/timeout, POST only on 429, timeouts
// and failures that produced no HTTP status at all, since a POST body (git-upload-pack's command payload) has already been
// consumed by the time a 5xx status comes back.
func defaultRetrier() Retrier {
	return NewHTTPRetrier(NewExponentialBackoffRetrier())
}

// Do runs fn, retrying it according to the Retrier found in ctx (or
// defaultRetrier if none was injected via ToContext).
func Do[T any](ctx context.Context, fn func() (T, error)) (T, error) {
	retrier, ok := ctx.Value(retrierKey{}).(Retrier)
	if !ok || retrier == nil {
		retrier = defaultRetrier()
	}

	var (
		result T
		err    error
	)
	for attempt := 1; ; attempt++ {
		result, err = fn()
		if err == nil {
			return result, nil
		}
		if !retrier.ShouldRetry(err, attempt) {
			return result, err
		}
		if waitErr := retrier.Wait(ctx, attempt); waitErr != nil {
			return result, waitErr
		}
	}
}
