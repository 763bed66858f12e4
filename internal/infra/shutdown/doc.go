// Package shutdown coordinates process shutdown.
//
// A Handler collects cleanup hooks, such as closing the store so the WAL is
// synced, and runs them once when SIGINT or SIGTERM arrives or when the
// program asks for it with Trigger.
//
// Usage:
//
//	h := shutdown.NewHandler(5 * time.Second)
//	h.OnShutdown(func(ctx context.Context) error { return engine.Close() })
//	go h.Wait()
//	...
//	h.Trigger() // on "exit"
//	<-h.Done()
package shutdown
